package serve

import (
	"fmt"
	"net/url"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/authprogram/api"
	"github.com/andrebq/cgitauth/credstore"
	"github.com/andrebq/cgitauth/internal/authproxy"
	"github.com/andrebq/cgitauth/internal/cmdflags"
	"github.com/andrebq/cgitauth/internal/httpserver"
	"github.com/urfave/cli/v2"
)

func Cmd(cfg *cmdflags.Config) *cli.Command {
	bindAddr := "localhost:7020"
	var upstream string
	return &cli.Command{
		Name:  "serve",
		Usage: "Answer auth sub-requests over HTTP (GET /auth, POST /login, POST /logout, GET /health)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to listen on",
				EnvVars:     []string{cmdflags.EnvPrefix + "BIND"},
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			&cli.StringFlag{
				Name:        "upstream",
				Usage:       "Proxy authenticated requests to this cgit url, leave empty to only serve the auth endpoints",
				EnvVars:     []string{cmdflags.EnvPrefix + "UPSTREAM"},
				Destination: &upstream,
			},
		},
		Action: func(ctx *cli.Context) error {
			var upstreamURL *url.URL
			if upstream != "" {
				var err error
				upstreamURL, err = url.Parse(upstream)
				if err != nil || upstreamURL.Host == "" {
					return fmt.Errorf("invalid upstream url %q", upstream)
				}
			}
			cache, closeCache, err := cfg.OpenCache(ctx.Context)
			if err != nil {
				return err
			}
			defer closeCache()
			// long lived, a snapshot would go stale
			store, err := credstore.Open(ctx.Context, cfg.Database, false)
			if err != nil {
				return err
			}
			defer store.Close()
			realm := api.NewRealm(authprogram.NewSessions(cache, cfg.CookieTTL), store)
			return httpserver.Serve(ctx.Context, bindAddr, authproxy.AsHandler(realm, upstreamURL))
		},
	}
}
