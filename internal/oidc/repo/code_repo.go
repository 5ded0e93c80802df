package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
)

// CodeRepo stores authorization codes until they are redeemed or expire.
type CodeRepo struct {
	db    *sqlx.DB
	table string
}

func NewCodeRepo(db *sqlx.DB, table string) *CodeRepo {
	return &CodeRepo{db: db, table: nameOr(table, DefaultCodeTable)}
}

func (r *CodeRepo) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  code TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  user_id BIGINT NOT NULL,
  redirect_uri TEXT NOT NULL DEFAULT '',
  scope TEXT NOT NULL DEFAULT '',
  expires_at %s NOT NULL
)`, r.table, timestampType(r.db))
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return ensureExpiryIndex(ctx, r.db, r.table)
}

func (r *CodeRepo) Save(ctx context.Context, c entity.AuthorizationCode) error {
	query := fmt.Sprintf(`INSERT INTO %s (code, client_id, user_id, redirect_uri, scope, expires_at) VALUES (?, ?, ?, ?, ?, ?)`, r.table)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), c.Code, c.ClientID, c.UserID, c.RedirectURI, c.Scope, c.ExpiresAt.UTC())
	return err
}

func (r *CodeRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]entity.AuthorizationCode, error) {
	query := fmt.Sprintf(`SELECT code, client_id, user_id, redirect_uri, scope, expires_at FROM %s WHERE expires_at <= ? ORDER BY expires_at`, r.table)
	var out []entity.AuthorizationCode
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), cutoff.UTC()); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CodeRepo) Delete(ctx context.Context, code string) error {
	return execDelete(ctx, r.db, fmt.Sprintf(`DELETE FROM %s WHERE code = ?`, r.table), code)
}
