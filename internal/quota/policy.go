package quota

import (
	"context"
	"errors"
	"time"

	"image_gateway/internal/models"
	"image_gateway/internal/storage"
	"image_gateway/internal/utils"
)

// Decision is the outcome of a quota check.
type Decision int

const (
	Allowed Decision = iota
	DeniedBanned
	DeniedQuota
)

// String returns a human-readable label for audit records and logs.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedBanned:
		return "denied_banned"
	case DeniedQuota:
		return "denied_quota"
	}
	return "unknown"
}

// Store is the subset of the user repository the policy engine needs.
type Store interface {
	GetByDeviceID(ctx context.Context, deviceID string) (*models.UserRecord, error)
	Create(ctx context.Context, user *models.UserRecord) error
	Save(ctx context.Context, user *models.UserRecord) error
	ListBannedIdentities(ctx context.Context) ([]string, error)
	ResetAllRequestCounts(ctx context.Context) (int64, error)
}

// Engine decides, per request, whether a caller may consume the image
// generation service and mutates usage state accordingly.
type Engine struct {
	store  Store
	logger *utils.Logger
}

// NewEngine creates a new quota policy engine
func NewEngine(store Store) *Engine {
	return &Engine{
		store:  store,
		logger: utils.NewLogger("quota"),
	}
}

// Authorize evaluates the record against the quota policy at the given
// instant. On Allowed it increments the request counter, stamps the
// request time, and persists the record; on denial the record is left
// untouched (denials are not counted).
//
// The read-modify-write here is not atomic: concurrent requests for the
// same identity can both observe a pre-increment count, over-admitting by
// at most the concurrency degree minus one. Accepted as benign; the
// per-IP limiter bounds the abuse window.
func (e *Engine) Authorize(ctx context.Context, user *models.UserRecord, now time.Time) (Decision, error) {
	if user.IsBanned() {
		return DeniedBanned, nil
	}

	// Counts belong to a calendar day, not a rolling window: two requests
	// a minute apart can land in different days at midnight.
	count := user.RequestsCount
	if !sameCalendarDay(user.LastRequestAt, now) {
		count = 0
	}

	if user.Tier == models.TierFree && count >= models.FreeDailyLimit {
		return DeniedQuota, nil
	}

	user.RequestsCount = count + 1
	user.LastRequestAt = now

	if err := e.store.Save(ctx, user); err != nil {
		return Allowed, err
	}

	return Allowed, nil
}

// Grant sets the tier and expiry horizon on the record for the given
// device ID, creating the record if absent. Idempotent; never touches the
// request counter of an existing record.
func (e *Engine) Grant(ctx context.Context, deviceID string, tier models.UserTier, days int, now time.Time) error {
	expiresAt := now.AddDate(0, 0, days)

	user, err := e.store.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return err
		}
		user = &models.UserRecord{
			DeviceID:      &deviceID,
			LastRequestAt: now,
			RequestsCount: 0,
			Tier:          tier,
			TierExpiresAt: expiresAt,
		}
		return e.store.Create(ctx, user)
	}

	user.Tier = tier
	user.TierExpiresAt = expiresAt
	return e.store.Save(ctx, user)
}

// Ban marks the record for the given device ID as BANNED. Fails with
// storage.ErrUserNotFound when no record exists. BANNED is sticky: there
// is no unban operation.
func (e *Engine) Ban(ctx context.Context, deviceID string) error {
	user, err := e.store.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return err
	}

	user.Tier = models.TierBanned
	return e.store.Save(ctx, user)
}

// ListBanned returns the identities of all banned records.
func (e *Engine) ListBanned(ctx context.Context) ([]string, error) {
	return e.store.ListBannedIdentities(ctx)
}

// sameCalendarDay compares the calendar date (year, month, day) of two
// instants in server-local time.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
