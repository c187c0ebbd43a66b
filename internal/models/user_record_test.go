package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestIdentity(t *testing.T) {
	tests := []struct {
		name string
		rec  UserRecord
		want string
	}{
		{"account wins", UserRecord{DeviceID: strPtr("a1b2c3d4e5f60718"), AccountID: strPtr("uid-1")}, "uid-1"},
		{"device fallback", UserRecord{DeviceID: strPtr("a1b2c3d4e5f60718")}, "a1b2c3d4e5f60718"},
		{"empty account falls back", UserRecord{DeviceID: strPtr("a1b2c3d4e5f60718"), AccountID: strPtr("")}, "a1b2c3d4e5f60718"},
		{"nothing", UserRecord{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Identity())
		})
	}
}

func TestTierPredicates(t *testing.T) {
	assert.True(t, (&UserRecord{Tier: TierBanned}).IsBanned())
	assert.False(t, (&UserRecord{Tier: TierFree}).IsBanned())

	assert.True(t, (&UserRecord{Tier: TierPaid}).IsPaid())
	assert.False(t, (&UserRecord{Tier: TierBanned}).IsPaid())
}
