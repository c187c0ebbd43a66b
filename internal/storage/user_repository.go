package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"image_gateway/internal/models"
)

// UserRepository handles user record database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, device_id, account_id, last_request_at,
	       requests_count, tier, tier_expires_at, created_at, updated_at`

// GetByDeviceID retrieves a user record by its device identifier
func (r *UserRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.UserRecord, error) {
	var user models.UserRecord
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE device_id = $1
	`, userColumns)

	err := r.db.conn.GetContext(ctx, &user, query, deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by device id: %w", err)
	}

	return &user, nil
}

// GetByAccountID retrieves a user record by its external account identifier
func (r *UserRepository) GetByAccountID(ctx context.Context, accountID string) (*models.UserRecord, error) {
	var user models.UserRecord
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE account_id = $1
	`, userColumns)

	err := r.db.conn.GetContext(ctx, &user, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by account id: %w", err)
	}

	return &user, nil
}

// Create inserts a new user record
func (r *UserRepository) Create(ctx context.Context, user *models.UserRecord) error {
	query := `
		INSERT INTO users (id, device_id, account_id, last_request_at,
		                   requests_count, tier, tier_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		user.ID, user.DeviceID, user.AccountID, user.LastRequestAt,
		user.RequestsCount, user.Tier, user.TierExpiresAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Save persists the mutable fields of an existing user record
func (r *UserRepository) Save(ctx context.Context, user *models.UserRecord) error {
	query := `
		UPDATE users
		SET last_request_at = $2, requests_count = $3, tier = $4,
		    tier_expires_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		user.ID, user.LastRequestAt, user.RequestsCount, user.Tier,
		user.TierExpiresAt,
	).Scan(&user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

// ListBannedIdentities returns the canonical identity of every banned record
func (r *UserRepository) ListBannedIdentities(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE tier = $1
		ORDER BY created_at
	`, userColumns)

	var users []*models.UserRecord
	if err := r.db.conn.SelectContext(ctx, &users, query, models.TierBanned); err != nil {
		return nil, fmt.Errorf("failed to list banned users: %w", err)
	}

	identities := make([]string, 0, len(users))
	for _, u := range users {
		identities = append(identities, u.Identity())
	}

	return identities, nil
}

// ResetAllRequestCounts zeroes the per-day request counter on every record.
// Used by the nightly quota sweep; a single bulk update with no ordering
// dependency on concurrent request-path mutations.
func (r *UserRepository) ResetAllRequestCounts(ctx context.Context) (int64, error) {
	result, err := r.db.conn.ExecContext(ctx, `UPDATE users SET requests_count = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset request counts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
