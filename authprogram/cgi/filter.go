package cgi

import (
	"context"
	"io"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/internal/logutil"
)

type (
	// Filter answers the calls cgit makes to its auth filter.
	Filter struct {
		Sessions   *authprogram.Sessions
		BypassRoot bool
	}
)

// AuthenticateCookie decides whether r may see the page it asked for.
func (f Filter) AuthenticateCookie(ctx context.Context, r Request) authprogram.Decision {
	log := logutil.GetOrDefault(ctx).With().Str("url", r.CurrentURL).Str("repo", r.Repo).Logger()
	if f.BypassRoot && r.CurrentURL == "/" {
		log.Debug().Msg("Anonymous access to repository index")
		return authprogram.Granted
	}
	d := f.Sessions.VerifyCookie(logutil.WithLogger(ctx, log), r.Cookie)
	log.Debug().Str("decision", d.String()).Msg("Cookie checked")
	return d
}

// AuthenticatePost reads the login form from body and writes either the
// redirect carrying a new session cookie or a 403.
func (f Filter) AuthenticatePost(ctx context.Context, w io.Writer, accounts authprogram.Accounts, r Request, body io.Reader) error {
	user, passwd, err := ReadCredentials(body)
	defer passwd.Zero()
	if err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Warn().Err(err).Msg("Rejecting login form")
		return WriteForbidden(w)
	}
	tk, err := f.Sessions.Login(ctx, accounts, user, passwd)
	if err != nil {
		return WriteForbidden(w)
	}
	return WriteLoginAccepted(w, r, tk, f.Sessions.TTL())
}
