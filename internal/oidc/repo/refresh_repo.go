package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-token-sweeper/internal/oidc/entity"
)

// RefreshRepo stores opaque refresh tokens keyed by the token itself.
type RefreshRepo struct {
	db    *sqlx.DB
	table string
}

func NewRefreshRepo(db *sqlx.DB, table string) *RefreshRepo {
	return &RefreshRepo{db: db, table: nameOr(table, DefaultRefreshTable)}
}

// EnsureTable creates the table and its expiry index if missing.
func (r *RefreshRepo) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  token TEXT PRIMARY KEY,
  user_id BIGINT NOT NULL,
  client_id TEXT NOT NULL DEFAULT '',
  expires_at %s NOT NULL
)`, r.table, timestampType(r.db))
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", r.table, err)
	}
	return ensureExpiryIndex(ctx, r.db, r.table)
}

func (r *RefreshRepo) Save(ctx context.Context, s entity.RefreshSession) error {
	query := fmt.Sprintf(`INSERT INTO %s (token, user_id, client_id, expires_at) VALUES (?, ?, ?, ?)`, r.table)
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), s.Token, s.UserID, s.ClientID, s.ExpiresAt.UTC())
	return err
}

func (r *RefreshRepo) Get(ctx context.Context, token string) (*entity.RefreshSession, error) {
	query := fmt.Sprintf(`SELECT token, user_id, client_id, expires_at FROM %s WHERE token = ?`, r.table)
	var s entity.RefreshSession
	if err := r.db.GetContext(ctx, &s, r.db.Rebind(query), token); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// ListExpired returns sessions that expired at or before cutoff, oldest first.
func (r *RefreshRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]entity.RefreshSession, error) {
	query := fmt.Sprintf(`SELECT token, user_id, client_id, expires_at FROM %s WHERE expires_at <= ? ORDER BY expires_at`, r.table)
	var out []entity.RefreshSession
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), cutoff.UTC()); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RefreshRepo) Delete(ctx context.Context, token string) error {
	return execDelete(ctx, r.db, fmt.Sprintf(`DELETE FROM %s WHERE token = ?`, r.table), token)
}
