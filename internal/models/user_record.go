package models

import (
	"time"

	"github.com/google/uuid"
)

// UserTier enumerates the entitlement tiers a caller can hold.
type UserTier string

const (
	TierFree   UserTier = "FREE"
	TierPaid   UserTier = "PAID"
	TierBanned UserTier = "BANNED"
)

// FreeDailyLimit is the number of generation requests a FREE caller may
// make per calendar day.
const FreeDailyLimit = 3

// UserRecord tracks usage and entitlement for one caller identity.
// A record is keyed by a 16-character hex device ID, an external account
// ID, or both; exactly one record exists per identity ever seen.
type UserRecord struct {
	ID            uuid.UUID `db:"id"`
	DeviceID      *string   `db:"device_id"`
	AccountID     *string   `db:"account_id"`
	LastRequestAt time.Time `db:"last_request_at"`
	RequestsCount int       `db:"requests_count"`
	Tier          UserTier  `db:"tier"`
	// TierExpiresAt is stored for PAID grants but is not consulted by the
	// request path; automatic demotion on expiry is intentionally dormant.
	TierExpiresAt time.Time `db:"tier_expires_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Identity returns the canonical identity string for the record: the
// account ID when present, otherwise the device ID.
func (u *UserRecord) Identity() string {
	if u.AccountID != nil && *u.AccountID != "" {
		return *u.AccountID
	}
	if u.DeviceID != nil {
		return *u.DeviceID
	}
	return ""
}

// IsBanned reports whether the record is banned. BANNED is sticky: no
// code path transitions a record back out of it.
func (u *UserRecord) IsBanned() bool {
	return u.Tier == TierBanned
}

// IsPaid reports whether the record currently holds the PAID tier.
func (u *UserRecord) IsPaid() bool {
	return u.Tier == TierPaid
}
