package authprogram

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/andrebq/cgitauth/authprogram/session"
	"github.com/andrebq/cgitauth/credstore"
	"github.com/andrebq/cgitauth/internal/logutil"
)

type (
	Accounts interface {
		LookupAccount(ctx context.Context, user string) (credstore.Account, error)
		AuthorizedRepos(ctx context.Context, uid string) ([]string, error)
	}

	// Sessions issues and checks session cookies against a cache.
	Sessions struct {
		cache session.Cache
		repos *session.RepoSets
		ttl   time.Duration
		rnd   io.Reader
	}
)

func NewSessions(cache session.Cache, ttl time.Duration) *Sessions {
	return &Sessions{
		cache: cache,
		repos: session.NewRepoSets(cache),
		ttl:   ttl,
		rnd:   rand.Reader,
	}
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

func (s *Sessions) Cache() session.Cache {
	return s.cache
}

// Login checks user and passwd against accounts and, when they match,
// returns a token whose session entry is already stored.
//
// Failures are logged here with their kind, callers should only deny.
func (s *Sessions) Login(ctx context.Context, accounts Accounts, user string, passwd PlainText) (session.Token, error) {
	log := logutil.GetOrDefault(ctx).With().Str("user", user).Logger()
	tk, err := s.login(ctx, accounts, user, passwd)
	if err != nil {
		logFailure(log, err, "Login rejected")
		return session.Token{}, err
	}
	log.Info().Object("session", tk).Msg("Login accepted")
	return tk, nil
}

func (s *Sessions) login(ctx context.Context, accounts Accounts, user string, passwd PlainText) (session.Token, error) {
	a, err := accounts.LookupAccount(ctx, user)
	if err != nil {
		if errors.As(err, &credstore.AccountNotFound{}) {
			// pay for a hash anyway, timing must not reveal which users exist
			verifyDecoy(passwd)
		}
		return session.Token{}, err
	}
	ok, err := VerifyPassword(passwd, a.PasswordHash)
	if err != nil {
		return session.Token{}, err
	} else if !ok {
		return session.Token{}, ErrWrongPassword
	}
	_, err = s.repos.GetOrPopulate(ctx, a.UID, accounts.AuthorizedRepos)
	if err != nil {
		return session.Token{}, err
	}
	tk, err := session.Mint(s.rnd, user)
	if err != nil {
		return session.Token{}, err
	}
	err = session.Store(ctx, s.cache, tk, s.ttl)
	if err != nil {
		return session.Token{}, err
	}
	return tk, nil
}

// VerifyCookie decides whether the Cookie header carries a valid session.
// Every failure is Denied.
func (s *Sessions) VerifyCookie(ctx context.Context, header string) Decision {
	log := logutil.GetOrDefault(ctx)
	value, found := CookieValue(header)
	if !found {
		log.Debug().Msg("No session cookie")
		return Denied
	}
	tk, err := session.Parse(value)
	if err != nil {
		logFailure(log, err, "Invalid session cookie")
		return Denied
	}
	ok, err := session.Check(ctx, s.cache, tk)
	if err != nil {
		logFailure(log.With().Object("session", tk).Logger(), err, "Unable to check session")
		return Denied
	} else if !ok {
		log.Info().Object("session", tk).Msg("Session expired or forged")
		return Denied
	}
	return Granted
}

// Logout removes the session named by the Cookie header. Headers without a
// well formed session are ignored.
func (s *Sessions) Logout(ctx context.Context, header string) error {
	value, found := CookieValue(header)
	if !found {
		return nil
	}
	tk, err := session.Parse(value)
	if err != nil {
		return nil
	}
	log := logutil.GetOrDefault(ctx)
	err = s.cache.DeleteSession(ctx, tk.Key)
	if err != nil {
		logFailure(log, err, "Unable to revoke session")
		return err
	}
	log.Info().Object("session", tk).Msg("Session revoked")
	return nil
}
