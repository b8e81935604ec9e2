package cmdflags

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

type (
	// Config carries every setting shared by the subcommands. Values come
	// from flags, then environment, then the optional yaml file.
	Config struct {
		ConfigFile  string
		Database    string
		SnapshotDir string
		RedisURL    string
		CookieTTL   time.Duration
		BypassRoot  bool
		LogFile     string
		LogLevel    string
	}
)

const (
	EnvPrefix = "CGIT_AUTH_"
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		ConfigFile: "/etc/cgit-auth.yaml",
		Database:   "/var/lib/cgit/auth.db",
		RedisURL:   "redis://127.0.0.1:6379/0",
		CookieTTL:  24 * time.Hour,
		LogFile:    "/tmp/cgit-auth.log",
		LogLevel:   "info",
	}
}

func envVar(name string) []string {
	return []string{EnvPrefix + name}
}

// Flags binds c to the global flags. Every flag except config can also be
// set from the yaml file.
func (c *Config) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Yaml file with default values for the other flags (ignored when missing)",
			EnvVars:     envVar("CONFIG"),
			Value:       c.ConfigFile,
			Destination: &c.ConfigFile,
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"db"},
			Usage:       "Path to the credential store",
			EnvVars:     envVar("DATABASE"),
			Value:       c.Database,
			Destination: &c.Database,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "snapshot-dir",
			Usage:       "Directory for scratch copies of the store, leave empty to read the live file directly",
			EnvVars:     envVar("SNAPSHOT_DIR"),
			Value:       c.SnapshotDir,
			Destination: &c.SnapshotDir,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "redis-url",
			Usage:       "Session cache address, timeouts can be set as url parameters",
			EnvVars:     envVar("REDIS_URL"),
			Value:       c.RedisURL,
			Destination: &c.RedisURL,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:        "cookie-ttl",
			Usage:       "How long a session remains valid",
			EnvVars:     envVar("COOKIE_TTL"),
			Value:       c.CookieTTL,
			Destination: &c.CookieTTL,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "bypass-root",
			Usage:       "Let anonymous users see the repository index",
			EnvVars:     envVar("BYPASS_ROOT"),
			Value:       c.BypassRoot,
			Destination: &c.BypassRoot,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "log-file",
			Usage:       "Where to write logs, use - for stderr (stdout is reserved for cgit)",
			EnvVars:     envVar("LOG_FILE"),
			Value:       c.LogFile,
			Destination: &c.LogFile,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Minimum level to log (trace, debug, info, warn, error)",
			EnvVars:     envVar("LOG_LEVEL"),
			Value:       c.LogLevel,
			Destination: &c.LogLevel,
		}),
	}
}

// LoadFile overlays the yaml file named by the config flag on flags that
// were not set explicitly. A missing file is not an error.
func (c *Config) LoadFile(cCtx *cli.Context, flags []cli.Flag) error {
	if c.ConfigFile == "" {
		return nil
	}
	_, err := os.Stat(c.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to read config file %v, cause %w", c.ConfigFile, err)
	}
	return altsrc.InitInputSourceWithContext(flags, func(*cli.Context) (altsrc.InputSourceContext, error) {
		return altsrc.NewYamlSourceFromFile(c.ConfigFile)
	})(cCtx)
}

// Validate rejects settings no subcommand can work with.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database cannot be empty")
	}
	if c.CookieTTL <= 0 {
		return fmt.Errorf("cookie-ttl must be positive, got %v", c.CookieTTL)
	}
	return nil
}
