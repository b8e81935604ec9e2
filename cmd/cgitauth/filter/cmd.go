package filter

import (
	"errors"
	"strings"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/authprogram/cgi"
	"github.com/andrebq/cgitauth/internal/cmdflags"
	"github.com/andrebq/cgitauth/internal/logutil"
	"github.com/urfave/cli/v2"
)

const (
	authenticateCookie = "authenticate-cookie"
)

var (
	errGranted = cli.Exit("", authprogram.Granted.ExitCode())
)

// Cmds returns the commands cgit calls on its auth filter.
func Cmds(cfg *cmdflags.Config) []*cli.Command {
	return []*cli.Command{
		authenticateCookieCmd(cfg),
		authenticatePostCmd(cfg),
		bodyCmd(),
	}
}

// DeniesOnError reports whether args run the cookie check, where a failure
// must still be reported as denied.
func DeniesOnError(args []string) bool {
	for _, a := range args {
		if a == authenticateCookie {
			return true
		}
	}
	return false
}

// IsGranted reports whether err is the outcome of an authenticated cookie
// check rather than a failure.
func IsGranted(err error) bool {
	return errors.Is(err, errGranted)
}

func argsUsage() string {
	return strings.Join(cgi.FieldNames, " ")
}

func authenticateCookieCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:            authenticateCookie,
		Usage:           "Check the session cookie, exits with 1 when the request is authenticated",
		ArgsUsage:       argsUsage(),
		SkipFlagParsing: true,
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			req, err := cgi.ParseArgs(ctx.Args().Slice())
			if err != nil {
				log.Warn().Err(err).Msg("Invalid filter arguments")
				return nil
			}
			cache, closeCache, err := cfg.OpenCache(ctx.Context)
			if err != nil {
				log.Error().Err(err).Msg("Unable to open session cache")
				return nil
			}
			defer closeCache()
			f := cgi.Filter{
				Sessions:   authprogram.NewSessions(cache, cfg.CookieTTL),
				BypassRoot: cfg.BypassRoot,
			}
			d := f.AuthenticateCookie(ctx.Context, req)
			if d == authprogram.Granted {
				return errGranted
			}
			return nil
		},
	}
}

func authenticatePostCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:            "authenticate-post",
		Usage:           "Process the login form read from stdin and write the CGI response",
		ArgsUsage:       argsUsage(),
		SkipFlagParsing: true,
		Action: func(ctx *cli.Context) error {
			log := logutil.GetOrDefault(ctx.Context)
			out := ctx.App.Writer
			req, err := cgi.ParseArgs(ctx.Args().Slice())
			if err != nil {
				log.Warn().Err(err).Msg("Invalid filter arguments")
				return cgi.WriteForbidden(out)
			}
			cache, closeCache, err := cfg.OpenCache(ctx.Context)
			if err != nil {
				log.Error().Err(err).Msg("Unable to open session cache")
				return cgi.WriteForbidden(out)
			}
			defer closeCache()
			accounts, closeStore, err := cfg.OpenReader(ctx.Context)
			if err != nil {
				log.Error().Err(err).Str("store", cfg.Database).Msg("Unable to open credential store")
				return cgi.WriteForbidden(out)
			}
			defer closeStore()
			f := cgi.Filter{Sessions: authprogram.NewSessions(cache, cfg.CookieTTL)}
			return f.AuthenticatePost(ctx.Context, out, accounts, req, ctx.App.Reader)
		},
	}
}

func bodyCmd() *cli.Command {
	return &cli.Command{
		Name:            "body",
		Usage:           "Render the login form",
		ArgsUsage:       argsUsage(),
		SkipFlagParsing: true,
		Action: func(ctx *cli.Context) error {
			req, err := cgi.ParseArgs(ctx.Args().Slice())
			if err != nil {
				return err
			}
			return cgi.RenderLoginForm(ctx.App.Writer, req)
		},
	}
}
