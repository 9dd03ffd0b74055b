package httpx

import (
	"net/http"
	"time"
)

// CookieOptions describes how a cookie is written and cleared.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// Set writes value with the configured attributes. Cookies are always
// HttpOnly.
func (o CookieOptions) Set(w http.ResponseWriter, value string) {
	http.SetCookie(w, o.cookie(value, int(o.MaxAge.Seconds())))
}

// Clear expires the cookie on the client.
func (o CookieOptions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie("", -1))
}

// Read returns the cookie value, or "".
func (o CookieOptions) Read(r *http.Request) string {
	c, err := r.Cookie(o.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (o CookieOptions) cookie(value string, maxAge int) *http.Cookie {
	path := o.Path
	if path == "" {
		path = "/"
	}
	sameSite := o.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     path,
		Domain:   o.Domain,
		MaxAge:   maxAge,
		Secure:   o.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}
