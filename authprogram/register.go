package authprogram

import (
	"context"
	"io"
	"regexp"

	"github.com/andrebq/cgitauth/credstore"
	"github.com/google/uuid"
)

type (
	PlainText []byte

	AccountWriter interface {
		CreateAccount(ctx context.Context, a credstore.Account) error
	}
)

const (
	maxUsernameLen = 20
)

var (
	validUsername = regexp.MustCompile(`^\w+$`)
	newUID        = uuid.NewString
)

func (p PlainText) Zero() {
	for i := range p {
		p[i] = 0
	}
}

// ValidateUsername accepts one or more word characters, at most 20 of them.
func ValidateUsername(user string) error {
	switch {
	case user == "":
		return InvalidAccount{User: user, Reason: "username is empty"}
	case len(user) > maxUsernameLen:
		return InvalidAccount{User: user, Reason: "username length should be less than 21"}
	case !validUsername.MatchString(user):
		return InvalidAccount{User: user, Reason: `username must match "^\w+$"`}
	}
	return nil
}

// Register hashes passwd and stores a new account with a fresh uid.
func Register(ctx context.Context, store AccountWriter, user string, passwd PlainText, rnd io.Reader, params HashParams) (credstore.Account, error) {
	err := ValidateUsername(user)
	if err != nil {
		return credstore.Account{}, err
	}
	if len(passwd) == 0 {
		return credstore.Account{}, InvalidAccount{User: user, Reason: "password is empty"}
	}
	hash, err := HashPassword(rnd, passwd, params)
	if err != nil {
		return credstore.Account{}, err
	}
	a := credstore.Account{User: user, PasswordHash: hash, UID: newUID()}
	err = store.CreateAccount(ctx, a)
	if err != nil {
		return credstore.Account{}, err
	}
	return a, nil
}
