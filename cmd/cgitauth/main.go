package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/cmd/cgitauth/admin"
	"github.com/andrebq/cgitauth/cmd/cgitauth/filter"
	"github.com/andrebq/cgitauth/cmd/cgitauth/serve"
	"github.com/andrebq/cgitauth/internal/cmdflags"
	"github.com/andrebq/cgitauth/internal/logutil"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg := cmdflags.Defaults()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, newApp(&cfg), os.Args)
	cancel()
	os.Exit(code)
}

// run executes app and maps the outcome to the process exit status.
func run(ctx context.Context, app *cli.App, args []string) int {
	err := app.RunContext(ctx, args)
	switch {
	case err == nil:
		return 0
	case filter.IsGranted(err):
		return authprogram.Granted.ExitCode()
	case filter.DeniesOnError(args):
		// cgit reads any non-zero status as authenticated
		fmt.Fprintln(app.ErrWriter, "cgitauth:", err)
		return 0
	}
	return exitCode(app.ErrWriter, err)
}

func newApp(cfg *cmdflags.Config) *cli.App {
	flags := cfg.Flags()
	var logCloser io.Closer
	commands := filter.Cmds(cfg)
	commands = append(commands, admin.Cmds(cfg)...)
	commands = append(commands, serve.Cmd(cfg))
	return &cli.App{
		Name:     "cgitauth",
		Usage:    "Cookie based authentication filter for cgit",
		Flags:    flags,
		Commands: commands,
		Before: func(ctx *cli.Context) error {
			err := cfg.LoadFile(ctx, flags)
			if err != nil {
				return err
			}
			err = cfg.Validate()
			if err != nil {
				return err
			}
			logger, closer, err := logutil.Open(cfg.LogFile, cfg.LogLevel)
			if err != nil {
				return err
			}
			logCloser = closer
			ctx.Context = logutil.WithLogger(ctx.Context, logger.With().Str("cmd", ctx.Args().First()).Logger())
			return nil
		},
		After: func(ctx *cli.Context) error {
			// not returned, it would mask the command outcome
			if logCloser != nil {
				if err := logCloser.Close(); err != nil {
					fmt.Fprintln(ctx.App.ErrWriter, "cgitauth: unable to close log file:", err)
				}
			}
			return nil
		},
		// exit codes are handled by run, so After always runs
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func exitCode(stderr io.Writer, err error) int {
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := exit.Error(); msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		return exit.ExitCode()
	}
	fmt.Fprintln(stderr, "cgitauth:", err)
	return 2
}
