package session

import "fmt"

type (
	MalformedToken struct {
		Reason string
	}

	// Unreachable wraps any transport failure talking to the cache.
	Unreachable struct {
		Op    string
		cause error
	}
)

func (m MalformedToken) Error() string {
	return fmt.Sprintf("malformed session token: %v", m.Reason)
}

func (u Unreachable) Error() string {
	return fmt.Sprintf("session cache unreachable during %v, cause %v", u.Op, u.cause)
}

func (u Unreachable) Unwrap() error {
	return u.cause
}

// NewUnreachable is used by Cache implementations to report transport
// failures.
func NewUnreachable(op string, cause error) error {
	return Unreachable{Op: op, cause: cause}
}
