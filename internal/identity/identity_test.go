package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image_gateway/internal/models"
	"image_gateway/internal/storage"
)

// mockStore for testing
type mockStore struct {
	byDevice  map[string]*models.UserRecord
	byAccount map[string]*models.UserRecord
	created   []*models.UserRecord
}

func newMockStore() *mockStore {
	return &mockStore{
		byDevice:  make(map[string]*models.UserRecord),
		byAccount: make(map[string]*models.UserRecord),
	}
}

func (m *mockStore) GetByDeviceID(ctx context.Context, deviceID string) (*models.UserRecord, error) {
	if user, ok := m.byDevice[deviceID]; ok {
		return user, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockStore) GetByAccountID(ctx context.Context, accountID string) (*models.UserRecord, error) {
	if user, ok := m.byAccount[accountID]; ok {
		return user, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockStore) Create(ctx context.Context, user *models.UserRecord) error {
	m.created = append(m.created, user)
	if user.DeviceID != nil {
		m.byDevice[*user.DeviceID] = user
	}
	if user.AccountID != nil {
		m.byAccount[*user.AccountID] = user
	}
	return nil
}

func TestIsValidDeviceID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"lowercase hex", "a1b2c3d4e5f60718", true},
		{"uppercase hex", "A1B2C3D4E5F60718", true},
		{"mixed case", "a1B2c3D4e5F60718", true},
		{"all digits", "0123456789012345", true},
		{"too short", "a1b2c3d4e5f6071", false},
		{"too long", "a1b2c3d4e5f607181", false},
		{"empty", "", false},
		{"non-hex letter", "g1b2c3d4e5f60718", false},
		{"embedded space", "a1b2c3d4 5f60718", false},
		{"unicode", "a1b2c3d4e5f6071é", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDeviceID(tt.input))
		})
	}
}

func TestResolve_MissingIdentity(t *testing.T) {
	resolver := NewResolver(newMockStore())

	_, err := resolver.Resolve(context.Background(), "", "", time.Now())
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestResolve_InvalidDeviceID(t *testing.T) {
	resolver := NewResolver(newMockStore())

	_, err := resolver.Resolve(context.Background(), "not-a-device-id", "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestResolve_AccountWinsOverDevice(t *testing.T) {
	store := newMockStore()
	deviceID := "a1b2c3d4e5f60718"
	accountID := "firebase-uid-1"

	deviceRec := &models.UserRecord{DeviceID: &deviceID, RequestsCount: 2, Tier: models.TierFree}
	accountRec := &models.UserRecord{AccountID: &accountID, RequestsCount: 7, Tier: models.TierPaid}
	store.byDevice[deviceID] = deviceRec
	store.byAccount[accountID] = accountRec

	resolver := NewResolver(store)
	user, err := resolver.Resolve(context.Background(), deviceID, accountID, time.Now())
	require.NoError(t, err)

	assert.Same(t, accountRec, user)
	assert.Empty(t, store.created, "no record should be created when both exist")
}

func TestResolve_DeviceFallback(t *testing.T) {
	store := newMockStore()
	deviceID := "a1b2c3d4e5f60718"

	deviceRec := &models.UserRecord{DeviceID: &deviceID, Tier: models.TierFree}
	store.byDevice[deviceID] = deviceRec

	resolver := NewResolver(store)
	user, err := resolver.Resolve(context.Background(), deviceID, "unknown-account", time.Now())
	require.NoError(t, err)

	assert.Same(t, deviceRec, user)
}

func TestResolve_LazyCreate(t *testing.T) {
	store := newMockStore()
	resolver := NewResolver(store)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("device only", func(t *testing.T) {
		user, err := resolver.Resolve(context.Background(), "00000000000000aa", "", now)
		require.NoError(t, err)

		require.NotNil(t, user.DeviceID)
		assert.Equal(t, "00000000000000aa", *user.DeviceID)
		assert.Nil(t, user.AccountID)
		assert.Equal(t, models.TierFree, user.Tier)
		assert.Equal(t, 0, user.RequestsCount)
		assert.Equal(t, now, user.LastRequestAt)
		assert.Equal(t, now.Add(30*24*time.Hour), user.TierExpiresAt)
	})

	t.Run("account only", func(t *testing.T) {
		user, err := resolver.Resolve(context.Background(), "", "new-account", now)
		require.NoError(t, err)

		require.NotNil(t, user.AccountID)
		assert.Equal(t, "new-account", *user.AccountID)
		assert.Nil(t, user.DeviceID)
		assert.Equal(t, models.TierFree, user.Tier)
	})

	t.Run("repeat lookup finds the created record", func(t *testing.T) {
		first, err := resolver.Resolve(context.Background(), "00000000000000bb", "", now)
		require.NoError(t, err)

		second, err := resolver.Resolve(context.Background(), "00000000000000bb", "", now.Add(time.Hour))
		require.NoError(t, err)

		assert.Same(t, first, second)
	})
}

func TestLookup(t *testing.T) {
	store := newMockStore()
	deviceID := "a1b2c3d4e5f60718"
	rec := &models.UserRecord{DeviceID: &deviceID}
	store.byDevice[deviceID] = rec

	resolver := NewResolver(store)

	user, err := resolver.Lookup(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Same(t, rec, user)

	_, err = resolver.Lookup(context.Background(), "ffffffffffffffff")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Empty(t, store.created, "Lookup must never create records")
}
