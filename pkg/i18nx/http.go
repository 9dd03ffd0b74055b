package i18nx

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "fd_lang"
)

// ResolveTag determines the best supported language for the request: the
// lang query parameter, then the language cookie, then Accept-Language.
func (b *Bundle) ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return b.tags[0]
	}

	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return b.Match(tag)
		}
	}

	if c, err := r.Cookie(LangCookieName); err == nil {
		if tag, err := language.Parse(c.Value); err == nil {
			return b.Match(tag)
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return b.Match(tags...)
		}
	}

	return b.tags[0]
}
