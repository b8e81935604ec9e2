package logutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	key byte

	nopCloser struct {
		io.Writer
	}
)

var (
	loggerKey = key(1)
)

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func GetOrDefault(ctx context.Context) zerolog.Logger {
	v := ctx.Value(loggerKey)
	if v == nil {
		return log.Logger
	}
	return v.(zerolog.Logger)
}

// Open returns a logger writing to file at the given level. File "-" means
// stderr; stdout is never used since it carries the CGI response.
func Open(file string, level string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q, cause %w", level, err)
	}
	var out io.WriteCloser
	if file == "" || file == "-" {
		out = nopCloser{os.Stderr}
	} else {
		out, err = os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("unable to open log file %v, cause %w", file, err)
		}
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	return logger, out, nil
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

func (nopCloser) Close() error { return nil }
