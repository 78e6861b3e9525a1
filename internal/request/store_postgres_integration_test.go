//go:build integration

package request

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/domain"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	require.NoError(t, store.EnsureSchema(context.Background()))
	t.Cleanup(func() {
		_ = pg.TruncateAll(context.Background(), "blood_requests")
	})
	return store
}

func seedRequest(t *testing.T, store *PostgresStore, id string, status domain.RequestStatus, expiresAt time.Time) *domain.BloodRequest {
	t.Helper()
	req := &domain.BloodRequest{
		ID:          id,
		RecipientID: "recipient-1",
		BloodType:   domain.BloodAPositive,
		Units:       2,
		Urgency:     domain.UrgencyUrgent,
		Status:      status,
		Location:    &geo.Coordinate{Lat: 12.97, Lng: 77.59},
		MatchEntries: []domain.MatchEntry{
			{DonorID: "donor-1", Status: domain.MatchPending, DistanceKm: 4.2, NotifiedAt: time.Now().UTC()},
		},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	require.NoError(t, store.Create(context.Background(), req))
	return req
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	expires := time.Now().UTC().Add(7 * 24 * time.Hour)

	created := seedRequest(t, store, "req-1", domain.RequestPending, expires)
	assert.Equal(t, int64(1), created.Version)

	loaded, err := store.Load(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.BloodType, loaded.BloodType)
	require.Len(t, loaded.MatchEntries, 1)
	assert.Equal(t, "donor-1", loaded.MatchEntries[0].DonorID)
	require.NotNil(t, loaded.Location)
	assert.InDelta(t, 12.97, loaded.Location.Lat, 1e-9)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	err = store.Create(ctx, &domain.BloodRequest{ID: "req-1", RecipientID: "other"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresStore_VersionGuard(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-guard", domain.RequestPending, time.Now().UTC().Add(time.Hour))

	first, err := store.Load(ctx, "req-guard")
	require.NoError(t, err)
	second, err := store.Load(ctx, "req-guard")
	require.NoError(t, err)

	first.MatchEntries[0].Status = domain.MatchAccepted
	first.Status = domain.RequestMatched
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.MatchEntries[0].Status = domain.MatchDeclined
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	settled, err := store.Load(ctx, "req-guard")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchAccepted, settled.MatchEntries[0].Status)
	assert.Equal(t, domain.RequestMatched, settled.Status)
}

func TestPostgresStore_ConcurrentSaves(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	seedRequest(t, store, "req-race", domain.RequestPending, time.Now().UTC().Add(time.Hour))

	const writers = 8
	var wg sync.WaitGroup
	conflicts := make([]bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot, err := store.Load(ctx, "req-race")
			if err != nil {
				return
			}
			snapshot.Status = domain.RequestCancelled
			if err := store.Save(ctx, snapshot); err != nil {
				conflicts[i] = true
			}
		}(i)
	}
	wg.Wait()

	// With every writer starting from the same version, exactly one wins.
	winners := 0
	for _, conflicted := range conflicts {
		if !conflicted {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	settled, err := store.Load(ctx, "req-race")
	require.NoError(t, err)
	assert.Equal(t, int64(2), settled.Version)
}

func TestPostgresStore_ListAndExpired(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedRequest(t, store, "req-a", domain.RequestPending, now.Add(time.Hour))
	seedRequest(t, store, "req-b", domain.RequestPending, now.Add(-time.Hour))
	seedRequest(t, store, "req-c", domain.RequestFulfilled, now.Add(-time.Hour))

	pending, err := store.List(ctx, domain.RequestFilter{Status: domain.RequestPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := store.List(ctx, domain.RequestFilter{RecipientID: "recipient-1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	expired, err := store.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1, "terminal requests never expire")
	assert.Equal(t, "req-b", expired[0].ID)
}
