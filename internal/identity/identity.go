package identity

import (
	"context"
	"errors"
	"time"

	"image_gateway/internal/models"
	"image_gateway/internal/storage"
)

var (
	// ErrInvalidIdentity is returned when a device ID fails validation
	ErrInvalidIdentity = errors.New("invalid device id")

	// ErrMissingIdentity is returned when neither identifier is supplied
	ErrMissingIdentity = errors.New("missing identity")
)

// IsValidDeviceID reports whether s is a 16-character hexadecimal device
// identifier. Both upper and lower case digits are accepted.
func IsValidDeviceID(s string) bool {
	if len(s) != 16 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'F':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// UserStore is the subset of the user repository the resolver needs.
type UserStore interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*models.UserRecord, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.UserRecord, error)
	Create(ctx context.Context, user *models.UserRecord) error
}

// Resolver locates or lazily creates the canonical usage record for a
// caller identity.
type Resolver struct {
	store UserStore
}

// NewResolver creates a new identity resolver
func NewResolver(store UserStore) *Resolver {
	return &Resolver{store: store}
}

// Lookup returns the record for a device ID without creating one.
func (r *Resolver) Lookup(ctx context.Context, deviceID string) (*models.UserRecord, error) {
	return r.store.GetByDeviceID(ctx, deviceID)
}

// Resolve returns the canonical record for the supplied identifiers.
//
// Lookups by device ID and account ID run independently; when both match,
// the account record wins. This is a precedence rule, not a merge: a
// device-only record's history is silently orphaned in that case (kept as
// observed upstream behavior, see DESIGN.md).
//
// When no record exists, exactly one is created with tier FREE, a zero
// request count, and a 30-day tier horizon. The caller's tier is never
// mutated here.
func (r *Resolver) Resolve(ctx context.Context, deviceID, accountID string, now time.Time) (*models.UserRecord, error) {
	if deviceID == "" && accountID == "" {
		return nil, ErrMissingIdentity
	}
	if deviceID != "" && !IsValidDeviceID(deviceID) {
		return nil, ErrInvalidIdentity
	}

	var byDevice, byAccount *models.UserRecord

	if deviceID != "" {
		user, err := r.store.GetByDeviceID(ctx, deviceID)
		if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			return nil, err
		}
		byDevice = user
	}

	if accountID != "" {
		user, err := r.store.GetByAccountID(ctx, accountID)
		if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
			return nil, err
		}
		byAccount = user
	}

	if byAccount != nil {
		return byAccount, nil
	}
	if byDevice != nil {
		return byDevice, nil
	}

	user := &models.UserRecord{
		LastRequestAt: now,
		RequestsCount: 0,
		Tier:          models.TierFree,
		TierExpiresAt: now.Add(30 * 24 * time.Hour),
	}
	if deviceID != "" {
		user.DeviceID = &deviceID
	}
	if accountID != "" {
		user.AccountID = &accountID
	}

	if err := r.store.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
