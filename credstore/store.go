package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andrebq/cgitauth/credstore/migrations"
	"github.com/andrebq/cgitauth/internal/fileutil"
	"github.com/andrebq/cgitauth/internal/logutil"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type (
	Store struct {
		db        *sql.DB
		path      string
		writeable bool
	}

	Account struct {
		User         string
		PasswordHash string
		UID          string
	}
)

const (
	// CurrentVersion is the layout created by the embedded migrations.
	CurrentVersion = "2"
	// PreviousVersion is the only layout Upgrade knows how to read.
	PreviousVersion = "1"

	versionKey = "version"
)

var (
	errReadOnly = errors.New("store was opened read-only")

	// metaTables hold the layout version, newest first. auth_meta is where
	// stores created by the previous layout keep it.
	metaTables = []string{"schema_meta", "auth_meta"}
)

func openDatabase(ctx context.Context, file string, readwrite bool) (*sql.DB, error) {
	var connstr string
	if readwrite {
		err := os.MkdirAll(filepath.Dir(file), 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory to store %v, cause %w", file, err)
		}
		connstr = fmt.Sprintf("file:%v?_writable_schema=false&_busy_timeout=5000&mode=rwc", file)
	} else {
		connstr = fmt.Sprintf("file:%v?_busy_timeout=5000&mode=ro", file)
	}
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping store %v, cause %w", file, err)
	}
	return conn, nil
}

// Open connects to the store at file. Read-write handles create the file
// when it does not exist; read-only handles require it.
func Open(ctx context.Context, file string, readwrite bool) (*Store, error) {
	conn, err := openDatabase(ctx, file, readwrite)
	if err != nil {
		return nil, err
	}
	return &Store{db: conn, path: file, writeable: readwrite}, nil
}

// OpenSnapshot copies the store at file into a fresh directory under
// scratchDir and opens the copy read-only. The returned function closes the
// copy and removes it.
func OpenSnapshot(ctx context.Context, file string, scratchDir string) (*Store, func() error, error) {
	dir, err := os.MkdirTemp(scratchDir, "cgitauth-read")
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create snapshot directory, cause %w", err)
	}
	copied := filepath.Join(dir, filepath.Base(file))
	err = fileutil.CopyFile(copied, file)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, fmt.Errorf("unable to snapshot %v, cause %w", file, err)
	}
	s, err := Open(ctx, copied, false)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	return s, func() error {
		cerr := s.Close()
		rerr := os.RemoveAll(dir)
		if cerr != nil {
			return cerr
		}
		return rerr
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Init applies the current layout to a store without one. A store already
// at the current layout is left alone; any other layout is a VersionMismatch.
func (s *Store) Init(ctx context.Context) error {
	if !s.writeable {
		return errReadOnly
	}
	v, err := s.Version(ctx)
	if err != nil {
		return err
	}
	switch v {
	case "":
		_, err := loadTableDef(ctx, s.db, "accounts")
		if err == nil {
			// accounts without a version marker is not something we wrote
			return VersionMismatch{Want: CurrentVersion}
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("unable to inspect store layout, cause %w", err)
		}
		return applyLayout(ctx, s.db)
	case CurrentVersion:
		return nil
	default:
		return VersionMismatch{Got: v, Want: CurrentVersion}
	}
}

// Reset drops every table and applies the current layout again.
func (s *Store) Reset(ctx context.Context) error {
	if !s.writeable {
		return errReadOnly
	}
	for _, tbl := range []string{"accounts", "repo_authorizations", "schema_meta", "auth_meta", "goose_db_version"} {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf("drop table if exists %v", tbl))
		if err != nil {
			return fmt.Errorf("unable to drop table %v, cause %w", tbl, err)
		}
	}
	return applyLayout(ctx, s.db)
}

// Version returns the layout version recorded in the store, or an empty
// string when there is no marker at all.
func (s *Store) Version(ctx context.Context) (string, error) {
	for _, tbl := range metaTables {
		_, err := loadTableDef(ctx, s.db, tbl)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		} else if err != nil {
			return "", fmt.Errorf("unable to inspect store layout, cause %w", err)
		}
		var v string
		err = s.db.QueryRowContext(ctx, fmt.Sprintf(`select "value" from %v where "key" = ?`, tbl), versionKey).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		} else if err != nil {
			return "", fmt.Errorf("unable to read store version from %v, cause %w", tbl, err)
		}
		return v, nil
	}
	return "", nil
}

func (s *Store) LookupAccount(ctx context.Context, user string) (Account, error) {
	a := Account{User: user}
	err := s.db.QueryRowContext(ctx, `select password_hash, uid from accounts where "user" = ?`, user).Scan(&a.PasswordHash, &a.UID)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, AccountNotFound{User: user}
	} else if err != nil {
		return Account{}, fmt.Errorf("unable to lookup account %v, cause %w", user, err)
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a Account) error {
	if !s.writeable {
		return errReadOnly
	}
	_, err := s.db.ExecContext(ctx, `insert into accounts("user", password_hash, uid) values (?, ?, ?)`, a.User, a.PasswordHash, a.UID)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return AccountExists{User: a.User}
	} else if err != nil {
		return fmt.Errorf("unable to create account %v, cause %w", a.User, err)
	}
	return nil
}

// ListUsers returns every user name in insertion order.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select "user" from accounts order by rowid asc`)
	if err != nil {
		return nil, fmt.Errorf("unable to list accounts, cause %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("unable to scan account name, cause %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DeleteAccount removes the account and its repository authorization.
func (s *Store) DeleteAccount(ctx context.Context, user string) error {
	if !s.writeable {
		return errReadOnly
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to start transaction, cause %w", err)
	}
	defer tx.Rollback()
	var uid string
	err = tx.QueryRowContext(ctx, `delete from accounts where "user" = ? returning uid`, user).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountNotFound{User: user}
	} else if err != nil {
		return fmt.Errorf("unable to delete account %v, cause %w", user, err)
	}
	_, err = tx.ExecContext(ctx, `delete from repo_authorizations where uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("unable to delete repo authorization of %v, cause %w", user, err)
	}
	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("unable to delete account %v, cause %w", user, err)
	}
	return nil
}

// AuthorizedRepos returns the repositories uid may access. A missing row is
// an empty set.
func (s *Store) AuthorizedRepos(ctx context.Context, uid string) ([]string, error) {
	var repos string
	err := s.db.QueryRowContext(ctx, `select repos from repo_authorizations where uid = ?`, uid).Scan(&repos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("unable to load repo authorization of %v, cause %w", uid, err)
	}
	return strings.Fields(repos), nil
}

// SetAuthorizedRepos replaces the repository set of user.
func (s *Store) SetAuthorizedRepos(ctx context.Context, user string, repos []string) error {
	if !s.writeable {
		return errReadOnly
	}
	a, err := s.LookupAccount(ctx, user)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `insert into repo_authorizations(uid, repos) values (?, ?)
		on conflict (uid) do update set repos = excluded.repos`, a.UID, strings.Join(repos, " "))
	if err != nil {
		return fmt.Errorf("unable to store repo authorization of %v, cause %w", user, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func applyLayout(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("unable to load store layout, cause %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("unable to apply store layout, cause %w", err)
	}
	log := logutil.GetOrDefault(ctx)
	for _, r := range results {
		log.Debug().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("Applied layout migration")
	}
	return nil
}
