package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
	"github.com/ovaphlow/pitchfork/service-token-sweeper/pkg/utilities"
)

// HandleRepo stores reference token handles.
type HandleRepo struct {
	db    *sqlx.DB
	table string
}

func NewHandleRepo(db *sqlx.DB, table string) *HandleRepo {
	return &HandleRepo{db: db, table: nameOr(table, DefaultHandleTable)}
}

func (r *HandleRepo) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  handle VARCHAR(32) PRIMARY KEY,
  client_id TEXT NOT NULL,
  user_id BIGINT NOT NULL,
  token_type TEXT NOT NULL DEFAULT 'access_token',
  expires_at %s NOT NULL
)`, r.table, timestampType(r.db))
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return ensureExpiryIndex(ctx, r.db, r.table)
}

// Save inserts a handle. An empty Handle is filled with a snowflake id, which
// is returned.
func (r *HandleRepo) Save(ctx context.Context, h entity.TokenHandle) (string, error) {
	if h.Handle == "" {
		h.Handle = utilities.NewSnowflakeID()
	}
	if h.TokenType == "" {
		h.TokenType = "access_token"
	}
	query := fmt.Sprintf(`INSERT INTO %s (handle, client_id, user_id, token_type, expires_at) VALUES (?, ?, ?, ?, ?)`, r.table)
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), h.Handle, h.ClientID, h.UserID, h.TokenType, h.ExpiresAt.UTC()); err != nil {
		return "", err
	}
	return h.Handle, nil
}

func (r *HandleRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]entity.TokenHandle, error) {
	query := fmt.Sprintf(`SELECT handle, client_id, user_id, token_type, expires_at FROM %s WHERE expires_at <= ? ORDER BY expires_at`, r.table)
	var out []entity.TokenHandle
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), cutoff.UTC()); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HandleRepo) Delete(ctx context.Context, handle string) error {
	return execDelete(ctx, r.db, fmt.Sprintf(`DELETE FROM %s WHERE handle = ?`, r.table), handle)
}
