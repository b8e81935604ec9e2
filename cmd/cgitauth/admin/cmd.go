package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/credstore"
	"github.com/andrebq/cgitauth/internal/cmdflags"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// Cmds returns the commands that manage the credential store.
func Cmds(cfg *cmdflags.Config) []*cli.Command {
	return []*cli.Command{
		initCmd(cfg),
		addUserCmd(cfg),
		usersCmd(cfg),
		delUserCmd(cfg),
		reposCmd(cfg),
		resetCmd(cfg),
		upgradeCmd(cfg),
	}
}

func withWriter(ctx context.Context, cfg *cmdflags.Config, fn func(*credstore.Store) error) error {
	store, err := cfg.OpenWriter(ctx)
	if err != nil {
		return err
	}
	err = fn(store)
	cerr := store.Close()
	if err != nil {
		return err
	}
	return cerr
}

func initCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the credential store",
		Action: func(ctx *cli.Context) error {
			return withWriter(ctx.Context, cfg, func(s *credstore.Store) error {
				err := authprogram.Setup(ctx.Context, s)
				var mismatch credstore.VersionMismatch
				if errors.As(err, &mismatch) {
					return fmt.Errorf("%w, run upgrade first", err)
				}
				return err
			})
		},
	}
}

func addUserCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:      "adduser",
		Usage:     "Register a new user, the password is prompted when omitted",
		ArgsUsage: "USER [PASSWORD]",
		Action: func(ctx *cli.Context) error {
			user := ctx.Args().Get(0)
			if user == "" {
				return errors.New("missing user")
			}
			var passwd authprogram.PlainText
			if ctx.NArg() > 1 {
				passwd = authprogram.PlainText(ctx.Args().Get(1))
			} else {
				p, err := readPassword(ctx.App.Reader, ctx.App.ErrWriter)
				if err != nil {
					return err
				}
				passwd = p
			}
			defer passwd.Zero()
			return withWriter(ctx.Context, cfg, func(s *credstore.Store) error {
				err := authprogram.Setup(ctx.Context, s)
				if err != nil {
					return err
				}
				a, err := authprogram.Register(ctx.Context, s, user, passwd, randReader, hashParams)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "Insert %v (%v) to database\n", a.User, a.UID)
				return nil
			})
		},
	}
}

func usersCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "List registered users",
		Action: func(ctx *cli.Context) error {
			s, closeStore, err := cfg.OpenReader(ctx.Context)
			if err != nil {
				return err
			}
			defer closeStore()
			users, err := s.ListUsers(ctx.Context)
			if err != nil {
				return err
			}
			out := ctx.App.Writer
			switch len(users) {
			case 0:
				fmt.Fprintln(out, "There are no users in database")
				return nil
			case 1:
				fmt.Fprintln(out, "There is 1 user in database")
			default:
				fmt.Fprintf(out, "There are %v users in database\n", len(users))
			}
			for _, u := range users {
				fmt.Fprintln(out, u)
			}
			return nil
		},
	}
}

func delUserCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:      "deluser",
		Usage:     "Remove a user and its repository authorizations",
		ArgsUsage: "USER",
		Action: func(ctx *cli.Context) error {
			user := ctx.Args().First()
			if user == "" {
				return errors.New("missing user")
			}
			return withWriter(ctx.Context, cfg, func(s *credstore.Store) error {
				err := s.DeleteAccount(ctx.Context, user)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "Delete %v from database\n", user)
				return nil
			})
		},
	}
}

func reposCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:      "repos",
		Usage:     "Show or replace the repositories a user may access",
		ArgsUsage: "USER [REPO...]",
		Action: func(ctx *cli.Context) error {
			user := ctx.Args().First()
			if user == "" {
				return errors.New("missing user")
			}
			return withWriter(ctx.Context, cfg, func(s *credstore.Store) error {
				if ctx.NArg() > 1 {
					err := s.SetAuthorizedRepos(ctx.Context, user, ctx.Args().Tail())
					if err != nil {
						return err
					}
				}
				a, err := s.LookupAccount(ctx.Context, user)
				if err != nil {
					return err
				}
				repos, err := s.AuthorizedRepos(ctx.Context, a.UID)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "%v: %v\n", user, strings.Join(repos, " "))
				return nil
			})
		},
	}
}

func resetCmd(cfg *cmdflags.Config) *cli.Command {
	var confirm bool
	return &cli.Command{
		Name:  "reset",
		Usage: "Drop every account and recreate the store",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "confirm",
				Usage:       "Required, reset cannot be undone",
				Destination: &confirm,
			},
		},
		Action: func(ctx *cli.Context) error {
			if !confirm {
				return errors.New("add --confirm to reset the store")
			}
			return withWriter(ctx.Context, cfg, func(s *credstore.Store) error {
				err := s.Reset(ctx.Context)
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, "Reset database successfully")
				return nil
			})
		},
	}
}

func upgradeCmd(cfg *cmdflags.Config) *cli.Command {
	return &cli.Command{
		Name:  "upgrade",
		Usage: "Rebuild a store written with the previous layout",
		Action: func(ctx *cli.Context) error {
			report, err := credstore.Upgrade(ctx.Context, cfg.Database, cfg.SnapshotDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Upgrade database successful, %v accounts migrated\n", len(report.Accounts))
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal, otherwise it reads the
// first line of in.
func readPassword(in io.Reader, prompt io.Writer) (authprogram.PlainText, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		p, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, fmt.Errorf("unable to read password, cause %w", err)
		}
		return authprogram.PlainText(p), nil
	}
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if sc.Err() != nil {
			return nil, sc.Err()
		}
		return nil, errors.New("missing password from stdin")
	}
	return authprogram.PlainText(strings.TrimSpace(sc.Text())), nil
}
