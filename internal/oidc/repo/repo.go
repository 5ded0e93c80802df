// Package repo persists refresh sessions, authorization codes and token
// handles in SQL databases, MongoDB and Redis.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/database"
)

// ErrNotFound is returned when a record to delete or fetch does not exist.
var ErrNotFound = errors.New("record not found")

// Default table, collection and key-prefix names.
const (
	DefaultRefreshTable = "oidc_refresh_sessions"
	DefaultCodeTable    = "oidc_authorization_codes"
	DefaultHandleTable  = "oidc_token_handles"
)

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// timestampType picks a column type that keeps the time zone on Postgres.
func timestampType(db *sqlx.DB) string {
	if database.IsPostgres(db.DriverName()) {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// ensureExpiryIndex creates the index every sweep query relies on.
func ensureExpiryIndex(ctx context.Context, db *sqlx.DB, table string) error {
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s (expires_at)`, table, table)
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// execDelete runs a single-row delete and maps "no rows" to ErrNotFound.
func execDelete(ctx context.Context, db *sqlx.DB, query string, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(query), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
