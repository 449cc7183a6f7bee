package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-demand-etl/internal/cache"
	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

var (
	_ cache.Store[domain.Coordinates] = (*Store[domain.Coordinates])(nil)
	_ cache.Store[domain.TravelTimes] = (*Store[domain.TravelTimes])(nil)
)

// These tests need a running server; set REDIS_ADDR to enable them.
func testStore[V any](t *testing.T) *Store[V] {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := NewClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	key := "airdemand:test:" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		client.Close()
	})
	return NewStore[V](client, key)
}

func intPtr(v int) *int { return &v }

func TestStore_MissingKeyIsEmpty(t *testing.T) {
	s := testStore[domain.Coordinates](t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, s.CheckReadiness(context.Background()))
}

func TestStore_RoundTrip(t *testing.T) {
	s := testStore[domain.TravelTimes](t)
	ctx := context.Background()
	want := map[string]domain.TravelTimes{
		"Slough":    {DrivingMinutes: intPtr(25), TransitMinutes: intPtr(49)},
		"Stornoway": {},
	}

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
