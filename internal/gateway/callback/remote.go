package callback

import (
	"context"

	"github.com/aussiebroadwan/fleetdesk/internal/gateway/domain"
	"github.com/aussiebroadwan/fleetdesk/pkg/gotrue"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aussiebroadwan/fleetdesk/internal/gateway/callback"

// RemoteProvider redeems callbacks against a GoTrue compatible service.
type RemoteProvider struct {
	Client *gotrue.Client
	tracer trace.Tracer
}

func NewRemoteProvider(c *gotrue.Client) *RemoteProvider {
	return &RemoteProvider{Client: c, tracer: otel.Tracer(tracerName)}
}

func (p *RemoteProvider) VerifyOTP(ctx context.Context, otpType domain.OTPType, tokenHash string) (*domain.Identity, error) {
	ctx, span := p.start(ctx, "gotrue.verify", attribute.String("otp.type", string(otpType)))
	defer span.End()

	sess, err := p.Client.VerifyOTP(ctx, string(otpType), tokenHash)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	amr := domain.AMROTP
	if otpType == domain.OTPMagicLink {
		amr = domain.AMRMagicLink
	}
	return identityFromSession(sess, amr), nil
}

func (p *RemoteProvider) ExchangeCode(ctx context.Context, code, verifier string) (*domain.Identity, error) {
	ctx, span := p.start(ctx, "gotrue.exchange_code")
	defer span.End()

	sess, err := p.Client.ExchangeCode(ctx, code, verifier)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return identityFromSession(sess, ""), nil
}

func (p *RemoteProvider) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := p.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func recordError(span trace.Span, err error) {
	code, _ := Classify(err)
	if code != "" {
		span.SetAttributes(attribute.String("gotrue.error_code", code))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// providerClaims is the part of the provider's access token that
// describes how the user authenticated.
type providerClaims struct {
	AAL string `json:"aal"`
	AMR []struct {
		Method string `json:"method"`
	} `json:"amr"`
	jwt.RegisteredClaims
}

// identityFromSession reads the assurance level and methods from the
// provider's access token. The token came straight from the provider, so
// its signature is not checked here.
func identityFromSession(sess *gotrue.Session, fallbackAMR string) *domain.Identity {
	id := &domain.Identity{
		UserID: sess.User.ID,
		Email:  sess.User.Email,
		AAL:    domain.AAL1,
	}

	var claims providerClaims
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, &claims); err == nil {
		if claims.AAL != "" {
			id.AAL = claims.AAL
		}
		for _, m := range claims.AMR {
			id.AMR = append(id.AMR, normalizeMethod(m.Method))
		}
		if id.UserID == "" {
			id.UserID = claims.Subject
		}
	}

	if len(id.AMR) == 0 && fallbackAMR != "" {
		id.AMR = []string{fallbackAMR}
	}
	return id
}

func normalizeMethod(m string) string {
	switch m {
	case "password":
		return domain.AMRPassword
	case "totp":
		return domain.AMRMFA
	}
	return m
}
