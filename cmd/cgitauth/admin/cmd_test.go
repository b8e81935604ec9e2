package admin

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/credstore"
	"github.com/andrebq/cgitauth/internal/cmdflags"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func init() {
	hashParams = authprogram.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}
}

type harness struct {
	t   *testing.T
	cfg cmdflags.Config
}

func newHarness(t *testing.T) *harness {
	cfg := cmdflags.Defaults()
	cfg.Database = filepath.Join(t.TempDir(), "auth.db")
	return &harness{t: t, cfg: cfg}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	app := &cli.App{
		Name:           "cgitauth",
		Commands:       Cmds(&h.cfg),
		Reader:         strings.NewReader(stdin),
		Writer:         &out,
		ErrWriter:      &out,
		ExitErrHandler: func(*cli.Context, error) {},
	}
	err := app.RunContext(context.Background(), append([]string{"cgitauth"}, args...))
	return out.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	out, err := h.run(stdin, args...)
	require.NoError(h.t, err, out)
	return out
}

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "init")
	h.mustRun("", "init")
	require.Equal(t, "There are no users in database\n", h.mustRun("", "users"))

	out := h.mustRun("", "adduser", "alice", "hunter2")
	require.True(t, strings.HasPrefix(out, "Insert alice ("), out)
	h.mustRun("s3cret\n", "adduser", "bob")
	require.Equal(t, "There are 2 users in database\nalice\nbob\n", h.mustRun("", "users"))

	_, err := h.run("", "adduser", "alice", "other")
	require.ErrorAs(t, err, &credstore.AccountExists{})
	_, err = h.run("", "adduser", "bad name", "x")
	require.ErrorAs(t, err, &authprogram.InvalidAccount{})
	_, err = h.run("", "adduser", "carol")
	require.Error(t, err, "empty stdin means no password")

	require.Equal(t, "alice: cgit linux\n", h.mustRun("", "repos", "alice", "cgit", "linux"))
	require.Equal(t, "alice: cgit linux\n", h.mustRun("", "repos", "alice"))

	require.Equal(t, "Delete alice from database\n", h.mustRun("", "deluser", "alice"))
	_, err = h.run("", "deluser", "alice")
	require.ErrorAs(t, err, &credstore.AccountNotFound{})
	require.Equal(t, "There is 1 user in database\nbob\n", h.mustRun("", "users"))
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "adduser", "alice", "hunter2")

	_, err := h.run("", "reset")
	require.Error(t, err)
	require.Equal(t, "There is 1 user in database\nalice\n", h.mustRun("", "users"))

	require.Equal(t, "Reset database successfully\n", h.mustRun("", "reset", "--confirm"))
	require.Equal(t, "There are no users in database\n", h.mustRun("", "users"))
}

func TestUpgradeCurrentStore(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "init")
	_, err := h.run("", "upgrade")
	require.ErrorAs(t, err, &credstore.VersionMismatch{})
}

func TestReadPasswordFromPipe(t *testing.T) {
	p, err := readPassword(strings.NewReader("  hunter2 \nignored\n"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "hunter2", string(p))
}
