package authprogram

import (
	"net/http"
	"time"

	"github.com/andrebq/cgitauth/authprogram/session"
)

type (
	Decision int
)

const (
	Denied Decision = iota
	Granted
)

const (
	CookieName = "cgit_auth"
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// ExitCode follows cgit's auth filter convention, non-zero means the
// request is authenticated.
func (d Decision) ExitCode() int {
	if d == Granted {
		return 1
	}
	return 0
}

// CookieValue extracts the session cookie from a raw Cookie header. Other
// cookies in the header, valid or not, are ignored.
func CookieValue(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	req := http.Request{Header: http.Header{"Cookie": []string{header}}}
	c, err := req.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// NewCookie returns the cookie carrying tk. An empty domain leaves the
// attribute out.
func NewCookie(tk session.Token, domain string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    tk.Encode(),
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
	}
}

// ExpiredCookie tells the browser to drop the session cookie.
func ExpiredCookie(domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Domain:   domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
	}
}
