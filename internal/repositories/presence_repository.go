package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrPresenceNotFound = errors.New("presence record not found")

// PresenceRepository abstracts per-user presence rows.
type PresenceRepository interface {
	Heartbeat(ctx context.Context, userID int, status string, now time.Time) (models.PresenceRecord, error)
	Get(ctx context.Context, userID int) (models.PresenceRecord, error)
	BulkByUserIDs(ctx context.Context, ids []int) ([]models.PresenceRecord, error)
	ListAll(ctx context.Context) ([]models.PresenceRecord, error)
	Bootstrap(ctx context.Context, userID int, lastSeenAt time.Time) error
	ForceOffline(ctx context.Context, userID int, now time.Time) error
}

// PresenceRepo is a sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// Heartbeat upserts the caller's presence row, always refreshing
// last_seen_at. The insert arm covers clients whose bootstrap row never
// materialized.
func (r *PresenceRepo) Heartbeat(ctx context.Context, userID int, status string, now time.Time) (models.PresenceRecord, error) {
	var rec models.PresenceRecord
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO presence (user_id, status, last_seen_at) VALUES ($1, $2, $3)
         ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at
         RETURNING user_id, status, last_seen_at`,
		userID, status, now,
	).StructScan(&rec)
	return rec, err
}

// Get fetches a single presence row.
func (r *PresenceRepo) Get(ctx context.Context, userID int) (models.PresenceRecord, error) {
	var rec models.PresenceRecord
	err := r.db.GetContext(ctx, &rec, `SELECT user_id, status, last_seen_at FROM presence WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PresenceRecord{}, ErrPresenceNotFound
	}
	return rec, err
}

// BulkByUserIDs fetches presence rows for multiple users.
func (r *PresenceRepo) BulkByUserIDs(ctx context.Context, ids []int) ([]models.PresenceRecord, error) {
	if len(ids) == 0 {
		return []models.PresenceRecord{}, nil
	}
	query, args, err := sqlx.In(`SELECT user_id, status, last_seen_at FROM presence WHERE user_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var recs []models.PresenceRecord
	err = r.db.SelectContext(ctx, &recs, r.db.Rebind(query), args...)
	return recs, err
}

// ListAll returns every presence row. Readers derive effective status per
// row: a crashed client leaves a permanently stale "online" row that no
// status index could exclude, so the full scan is deliberate.
func (r *PresenceRepo) ListAll(ctx context.Context) ([]models.PresenceRecord, error) {
	var recs []models.PresenceRecord
	err := r.db.SelectContext(ctx, &recs, `SELECT user_id, status, last_seen_at FROM presence`)
	return recs, err
}

// Bootstrap lazily creates an offline row on first identity sync. Existing
// rows are left untouched.
func (r *PresenceRepo) Bootstrap(ctx context.Context, userID int, lastSeenAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO presence (user_id, status, last_seen_at) VALUES ($1, $2, $3)
         ON CONFLICT (user_id) DO NOTHING`,
		userID, models.StatusOffline, lastSeenAt)
	return err
}

// ForceOffline pins the stored status to offline, used when the identity
// provider reports the subject deleted.
func (r *PresenceRepo) ForceOffline(ctx context.Context, userID int, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO presence (user_id, status, last_seen_at) VALUES ($1, $2, $3)
         ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at`,
		userID, models.StatusOffline, now)
	return err
}
