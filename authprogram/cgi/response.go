package cgi

import (
	"bufio"
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/authprogram/session"
)

type (
	loginPage struct {
		Action   string
		Redirect string
	}
)

var (
	//go:embed login.html
	pages embed.FS

	loginTemplate = template.Must(template.ParseFS(pages, "login.html"))
)

// WriteLoginAccepted writes the redirect that hands tk to the browser.
func WriteLoginAccepted(w io.Writer, r Request, tk session.Token, ttl time.Duration) error {
	cookie := authprogram.NewCookie(tk, r.Domain(), ttl, r.Secure())
	bw := bufio.NewWriter(w)
	bw.WriteString("Status: 302 Found\n")
	bw.WriteString("Cache-Control: no-cache, no-store\n")
	bw.WriteString("Location: " + r.Location() + "\n")
	bw.WriteString("Set-Cookie: " + cookie.String() + "\n")
	bw.WriteString("\n")
	return bw.Flush()
}

func WriteForbidden(w io.Writer) error {
	_, err := io.WriteString(w, "Status: 403 Forbidden\nCache-Control: no-cache, no-store\n\n")
	return err
}

// RenderLoginForm writes the html form posting to the login url.
func RenderLoginForm(w io.Writer, r Request) error {
	return loginTemplate.Execute(w, loginPage{
		Action:   r.LoginURL,
		Redirect: r.CurrentURL,
	})
}
