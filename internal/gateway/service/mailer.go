package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/fleetdesk/pkg/i18nx"
	"github.com/aussiebroadwan/fleetdesk/pkg/slogx"
	"golang.org/x/text/language"
)

// Message is an outgoing email carrying an auth link.
type Message struct {
	To      string
	Kind    string // signup, magiclink, recovery, invite
	Subject string
	Link    string
}

// Mailer delivers auth emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes links to the log instead of sending mail. It is the
// delivery used in development and in the container image.
type LogMailer struct {
	Logger *slog.Logger
	Bundle *i18nx.Bundle
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.Subject == "" {
		msg.Subject = subject(m.Bundle, msg.Kind)
	}

	l := m.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	l.InfoContext(ctx, "auth email",
		slog.String("to", msg.To),
		slog.String("kind", msg.Kind),
		slog.String("subject", msg.Subject),
		slog.String("link", msg.Link),
	)
	return nil
}

func subject(b *i18nx.Bundle, kind string) string {
	if b == nil {
		b = i18nx.Default()
	}
	return b.Translate(language.AmericanEnglish, "auth:email."+kind+".subject")
}
