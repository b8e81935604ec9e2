// Package cgi translates the fields cgit hands to an auth filter into calls
// against authprogram, and writes the CGI responses.
package cgi

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/andrebq/cgitauth/authprogram"
)

type (
	// Request holds the positional fields of the authenticate-cookie,
	// authenticate-post and body filter calls, in cgit's order.
	Request struct {
		Cookie        string
		RequestMethod string
		QueryString   string
		Referer       string
		PathInfo      string
		Host          string
		HTTPS         string
		Repo          string
		Page          string
		CurrentURL    string
		LoginURL      string
	}
)

const (
	// FieldCount is the number of positional fields cgit passes.
	FieldCount = 11

	maxFormSize = 64 * 1024
)

// FieldNames lists the positional fields in order.
var FieldNames = []string{
	"http-cookie", "request-method", "query-string", "http-referer", "path-info",
	"http-host", "https", "repo", "page", "current-url", "login-url",
}

// ParseArgs builds a Request from the positional arguments. Missing
// trailing fields are left empty.
func ParseArgs(args []string) (Request, error) {
	if len(args) > FieldCount {
		return Request{}, fmt.Errorf("expecting at most %v fields got %v", FieldCount, len(args))
	}
	var fields [FieldCount]string
	copy(fields[:], args)
	return Request{
		Cookie:        fields[0],
		RequestMethod: fields[1],
		QueryString:   fields[2],
		Referer:       fields[3],
		PathInfo:      fields[4],
		Host:          fields[5],
		HTTPS:         fields[6],
		Repo:          fields[7],
		Page:          fields[8],
		CurrentURL:    fields[9],
		LoginURL:      fields[10],
	}, nil
}

// Secure reports whether the request arrived over https.
func (r Request) Secure() bool {
	switch strings.ToLower(r.HTTPS) {
	case "yes", "on", "1":
		return true
	}
	return false
}

// Domain is the cookie domain, the host without a port.
func (r Request) Domain() string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

// Location is where the browser goes after a successful login.
func (r Request) Location() string {
	if r.Referer == "" {
		return "/"
	}
	return r.Referer
}

// ReadCredentials parses the url encoded login form.
func ReadCredentials(body io.Reader) (string, authprogram.PlainText, error) {
	buf, err := io.ReadAll(io.LimitReader(body, maxFormSize))
	if err != nil {
		return "", nil, fmt.Errorf("unable to read login form, cause %w", err)
	}
	form, err := url.ParseQuery(string(buf))
	if err != nil {
		return "", nil, fmt.Errorf("unable to parse login form, cause %w", err)
	}
	return form.Get("username"), authprogram.PlainText(form.Get("password")), nil
}
