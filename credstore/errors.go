package credstore

import "fmt"

type (
	AccountNotFound struct {
		User string
	}

	AccountExists struct {
		User string
	}

	VersionMismatch struct {
		Got  string
		Want string
	}

	MigrationFailed struct {
		User  string
		cause error
	}
)

func (a AccountNotFound) Error() string {
	return fmt.Sprintf("account %v not found", a.User)
}

func (a AccountExists) Error() string {
	return fmt.Sprintf("account %v already exists", a.User)
}

func (v VersionMismatch) Error() string {
	if v.Got == "" {
		return fmt.Sprintf("store has no layout version but %v is required", v.Want)
	}
	return fmt.Sprintf("got store layout version %v but %v is required", v.Got, v.Want)
}

func (m MigrationFailed) Error() string {
	if m.User == "" {
		return fmt.Sprintf("unable to migrate store, cause %v", m.cause)
	}
	return fmt.Sprintf("unable to migrate account %v, cause %v", m.User, m.cause)
}

func (m MigrationFailed) Unwrap() error {
	return m.cause
}
