package credstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempStore(ctx context.Context, t *testing.T) (*Store, string) {
	file := filepath.Join(t.TempDir(), "auth.db")
	s, err := Open(ctx, file, true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Log("unable to close store", err)
		}
	})
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	return s, file
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(ctx, t)
	require.NoError(t, s.Init(ctx))
	v, err := s.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, v)
}

func TestAccountsLayout(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(ctx, t)
	td, err := loadTableDef(ctx, s.db, "accounts")
	require.NoError(t, err)
	var names []string
	for _, c := range td.columns {
		names = append(names, c.name)
		require.True(t, c.notNull, "column %v should be not null", c.name)
	}
	require.Equal(t, []string{"user", "password_hash", "uid"}, names)
	require.ElementsMatch(t, []string{"user", "uid"}, td.uniqueColumns())

	_, err = loadTableDef(ctx, s.db, "no_such_table")
	require.Error(t, err)
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(ctx, t)

	alice := Account{User: "alice", PasswordHash: "$argon2id$fake", UID: "uid-alice"}
	require.NoError(t, s.CreateAccount(ctx, alice))
	require.NoError(t, s.CreateAccount(ctx, Account{User: "bob", PasswordHash: "$argon2id$fake", UID: "uid-bob"}))

	err := s.CreateAccount(ctx, Account{User: "alice", PasswordHash: "other", UID: "uid-2"})
	require.True(t, errors.Is(err, AccountExists{User: "alice"}), "got %v", err)

	found, err := s.LookupAccount(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice, found)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, users)

	require.NoError(t, s.SetAuthorizedRepos(ctx, "alice", []string{"linux", "cgit"}))
	repos, err := s.AuthorizedRepos(ctx, alice.UID)
	require.NoError(t, err)
	require.Equal(t, []string{"linux", "cgit"}, repos)

	require.NoError(t, s.SetAuthorizedRepos(ctx, "alice", []string{"cgit"}))
	repos, err = s.AuthorizedRepos(ctx, alice.UID)
	require.NoError(t, err)
	require.Equal(t, []string{"cgit"}, repos)

	repos, err = s.AuthorizedRepos(ctx, "uid-bob")
	require.NoError(t, err)
	require.Empty(t, repos)

	require.NoError(t, s.DeleteAccount(ctx, "alice"))
	_, err = s.LookupAccount(ctx, "alice")
	require.True(t, errors.Is(err, AccountNotFound{User: "alice"}), "got %v", err)
	repos, err = s.AuthorizedRepos(ctx, alice.UID)
	require.NoError(t, err)
	require.Empty(t, repos, "repo authorization should go away with the account")

	err = s.DeleteAccount(ctx, "alice")
	require.True(t, errors.Is(err, AccountNotFound{User: "alice"}), "got %v", err)
	err = s.SetAuthorizedRepos(ctx, "alice", []string{"x"})
	require.True(t, errors.Is(err, AccountNotFound{User: "alice"}), "got %v", err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, _ := tempStore(ctx, t)
	require.NoError(t, s.CreateAccount(ctx, Account{User: "alice", PasswordHash: "h", UID: "u"}))
	require.NoError(t, s.Reset(ctx))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
	v, err := s.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, v)
}

func TestReadOnlyStore(t *testing.T) {
	ctx := context.Background()
	s, file := tempStore(ctx, t)
	require.NoError(t, s.CreateAccount(ctx, Account{User: "alice", PasswordHash: "h", UID: "u"}))

	ro, err := Open(ctx, file, false)
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.LookupAccount(ctx, "alice")
	require.NoError(t, err)
	require.ErrorIs(t, ro.CreateAccount(ctx, Account{User: "bob"}), errReadOnly)

	_, err = Open(ctx, filepath.Join(t.TempDir(), "missing.db"), false)
	require.Error(t, err, "read-only handles should not create stores")
}

func TestOpenSnapshot(t *testing.T) {
	ctx := context.Background()
	s, file := tempStore(ctx, t)
	require.NoError(t, s.CreateAccount(ctx, Account{User: "alice", PasswordHash: "h", UID: "u"}))

	scratch := t.TempDir()
	snap, cleanup, err := OpenSnapshot(ctx, file, scratch)
	require.NoError(t, err)
	require.NotEqual(t, file, snap.Path())

	// writes after the snapshot are not visible through it
	require.NoError(t, s.CreateAccount(ctx, Account{User: "bob", PasswordHash: "h", UID: "u2"}))
	users, err := snap.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)

	require.NoError(t, cleanup())
	left, err := filepath.Glob(filepath.Join(scratch, "*"))
	require.NoError(t, err)
	require.Empty(t, left)
}
