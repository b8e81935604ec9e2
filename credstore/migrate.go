package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/andrebq/cgitauth/internal/fileutil"
	"github.com/andrebq/cgitauth/internal/logutil"
	"github.com/google/uuid"
)

type (
	// MigrationReport lists the accounts written to the new layout, in the
	// order they were read from the old one.
	MigrationReport struct {
		Accounts []Account
	}
)

var (
	newUID = uuid.NewString
)

// Upgrade rebuilds the store at live from the previous layout into the
// current one.
//
// The live file is copied to a scratch directory under scratchDir (the
// system temp dir when empty), the new layout is built next to it and the
// live file is only replaced once every account was copied. Any failure
// before that point leaves live untouched.
//
// Upgrade must not run concurrently with itself or with account writes.
func Upgrade(ctx context.Context, live string, scratchDir string) (MigrationReport, error) {
	log := logutil.GetOrDefault(ctx).With().Str("store", live).Logger()
	dir, err := os.MkdirTemp(scratchDir, "rolling")
	if err != nil {
		return MigrationReport{}, fmt.Errorf("unable to create scratch directory, cause %w", err)
	}
	defer os.RemoveAll(dir)

	oldPath := filepath.Join(dir, "v1.db")
	newPath := filepath.Join(dir, "v2.db")

	err = fileutil.CopyFile(oldPath, live)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("unable to copy %v to scratch directory, cause %w", live, err)
	}
	old, err := Open(ctx, oldPath, false)
	if err != nil {
		return MigrationReport{}, err
	}
	defer old.Close()

	v, err := old.Version(ctx)
	if err != nil {
		return MigrationReport{}, err
	}
	if v != PreviousVersion {
		return MigrationReport{}, VersionMismatch{Got: v, Want: PreviousVersion}
	}
	td, err := checkPreviousAccounts(ctx, old.db)
	if err != nil {
		return MigrationReport{}, err
	}
	if !slices.Contains(td.uniqueColumns(), "user") {
		log.Warn().Msg("Previous accounts table does not enforce unique users, a duplicate will abort the upgrade")
	}

	next, err := Open(ctx, newPath, true)
	if err != nil {
		return MigrationReport{}, err
	}
	err = applyLayout(ctx, next.db)
	if err != nil {
		next.Close()
		return MigrationReport{}, MigrationFailed{cause: err}
	}
	accounts, err := copyAccounts(ctx, old.db, next.db)
	if err != nil {
		next.Close()
		return MigrationReport{}, err
	}
	err = next.Close()
	if err != nil {
		return MigrationReport{}, MigrationFailed{cause: err}
	}

	err = fileutil.ReplaceFile(live, newPath)
	if err != nil {
		return MigrationReport{}, fmt.Errorf("unable to replace %v with upgraded store, cause %w", live, err)
	}
	log.Info().Int("accounts", len(accounts)).Str("version", CurrentVersion).Msg("Store upgraded")
	return MigrationReport{Accounts: accounts}, nil
}

// checkPreviousAccounts makes sure the accounts table has the columns the
// previous layout wrote before anything is copied.
func checkPreviousAccounts(ctx context.Context, db *sql.DB) (*tableDef, error) {
	td, err := loadTableDef(ctx, db, "accounts")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, MigrationFailed{cause: errors.New("store has no accounts table")}
	} else if err != nil {
		return nil, MigrationFailed{cause: err}
	}
	for _, col := range []string{"user", "password"} {
		if !td.hasColumn(col) {
			return nil, MigrationFailed{cause: fmt.Errorf("accounts table has no %v column", col)}
		}
	}
	if td.hasColumn("uid") {
		return nil, MigrationFailed{cause: errors.New("accounts table already has uids")}
	}
	return td, nil
}

func copyAccounts(ctx context.Context, src, dst *sql.DB) ([]Account, error) {
	log := logutil.GetOrDefault(ctx)
	rows, err := src.QueryContext(ctx, `select "user", password from accounts order by rowid asc`)
	if err != nil {
		return nil, MigrationFailed{cause: err}
	}
	defer rows.Close()

	tx, err := dst.BeginTx(ctx, nil)
	if err != nil {
		return nil, MigrationFailed{cause: err}
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `insert into accounts("user", password_hash, uid) values (?, ?, ?)`)
	if err != nil {
		return nil, MigrationFailed{cause: err}
	}
	defer stmt.Close()

	var out []Account
	for rows.Next() {
		var user, hash sql.NullString
		err = rows.Scan(&user, &hash)
		if err != nil {
			return nil, MigrationFailed{User: user.String, cause: err}
		}
		if !user.Valid || !hash.Valid {
			return nil, MigrationFailed{User: user.String, cause: fmt.Errorf("row %v has empty fields", len(out)+1)}
		}
		a := Account{User: user.String, PasswordHash: hash.String, UID: newUID()}
		_, err = stmt.ExecContext(ctx, a.User, a.PasswordHash, a.UID)
		if err != nil {
			return nil, MigrationFailed{User: a.User, cause: err}
		}
		log.Debug().Str("user", a.User).Str("uid", a.UID).Msg("Migrated account")
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, MigrationFailed{cause: err}
	}
	err = tx.Commit()
	if err != nil {
		return nil, MigrationFailed{cause: err}
	}
	return out, nil
}
