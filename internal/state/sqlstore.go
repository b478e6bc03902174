// internal/state/sqlstore.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLStore keeps consumed ids in the canvas_states table so replays are
// caught across instances. Works on sqlite and postgres.
type SQLStore struct{ DB *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{DB: db} }

func (s *SQLStore) Use(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("state: id is required")
	}
	res, err := s.DB.ExecContext(ctx, `INSERT INTO canvas_states (id, expires_at, used_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, id, expiresAt.Unix(), time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Purge deletes ids whose tokens expired before now. Expired tokens fail
// JWT validation, so their rows are no longer needed for replay checks.
func (s *SQLStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM canvas_states WHERE expires_at < $1`, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
