package authprogram

import (
	"errors"
	"fmt"

	"github.com/andrebq/cgitauth/authprogram/session"
	"github.com/andrebq/cgitauth/credstore"
	"github.com/rs/zerolog"
)

type (
	MalformedHash struct {
		Reason string
	}

	HashingError struct {
		cause error
	}

	InvalidAccount struct {
		User   string
		Reason string
	}

	// Kind groups errors by how callers should react to them.
	Kind int
)

const (
	KindFatal Kind = iota
	KindNotFound
	KindMalformed
	KindConnectivity
	KindConflict
	KindVersionMismatch
	KindInvalid
	KindDenied
)

var (
	// ErrWrongPassword is the outcome of a login with a known user and a
	// password that does not match.
	ErrWrongPassword = errors.New("wrong password")
)

func (m MalformedHash) Error() string {
	return fmt.Sprintf("malformed password hash: %v", m.Reason)
}

func (h HashingError) Error() string {
	return fmt.Sprintf("unable to hash password, cause %v", h.cause)
}

func (h HashingError) Unwrap() error {
	return h.cause
}

func (i InvalidAccount) Error() string {
	return fmt.Sprintf("invalid account %q: %v", i.User, i.Reason)
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindMalformed:
		return "malformed"
	case KindConnectivity:
		return "connectivity"
	case KindConflict:
		return "conflict"
	case KindVersionMismatch:
		return "version-mismatch"
	case KindInvalid:
		return "invalid"
	case KindDenied:
		return "denied"
	default:
		return "fatal"
	}
}

// Level is the log level errors of this kind are reported at.
func (k Kind) Level() zerolog.Level {
	switch k {
	case KindNotFound, KindDenied:
		return zerolog.InfoLevel
	case KindMalformed:
		return zerolog.DebugLevel
	case KindConflict, KindVersionMismatch, KindInvalid:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Classify returns the Kind of err. Anything unknown is fatal.
func Classify(err error) Kind {
	var (
		notFound    credstore.AccountNotFound
		exists      credstore.AccountExists
		mismatch    credstore.VersionMismatch
		badHash     MalformedHash
		badToken    session.MalformedToken
		badUser     InvalidAccount
		unreachable session.Unreachable
	)
	switch {
	case errors.Is(err, ErrWrongPassword):
		return KindDenied
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &badHash), errors.As(err, &badToken):
		return KindMalformed
	case errors.As(err, &unreachable):
		return KindConnectivity
	case errors.As(err, &exists):
		return KindConflict
	case errors.As(err, &mismatch):
		return KindVersionMismatch
	case errors.As(err, &badUser):
		return KindInvalid
	default:
		return KindFatal
	}
}

// logFailure reports err at the level its kind deserves.
func logFailure(log zerolog.Logger, err error, msg string) {
	kind := Classify(err)
	log.WithLevel(kind.Level()).Err(err).Str("kind", kind.String()).Msg(msg)
}
