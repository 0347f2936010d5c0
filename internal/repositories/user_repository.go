package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts identity directory persistence.
type UserRepository interface {
	GetByID(ctx context.Context, userID int) (models.User, error)
	GetBySubject(ctx context.Context, subject string) (models.User, error)
	BulkByIDs(ctx context.Context, ids []int) ([]models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	UpdateProviderFields(ctx context.Context, userID int, name, email, avatarURL string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, subject, name, name_override, email, avatar_url, created_at`

// GetByID fetches a user by internal id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetBySubject fetches a user by identity-provider subject.
func (r *UserRepo) GetBySubject(ctx context.Context, subject string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE subject=$1`, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkByIDs fetches multiple users in one query.
func (r *UserRepo) BulkByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// Create inserts a directory row for a newly synced subject.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (subject, name, email, avatar_url, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+userColumns,
		user.Subject, user.Name, user.Email, user.AvatarURL, createdAt,
	).StructScan(&user)
	return user, err
}

// UpdateProviderFields rewrites the provider-owned fields of a user. Callers
// are expected to diff first and skip the call when nothing changed.
func (r *UserRepo) UpdateProviderFields(ctx context.Context, userID int, name, email, avatarURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name=$2, email=$3, avatar_url=$4 WHERE id=$1`,
		userID, name, email, avatarURL)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
