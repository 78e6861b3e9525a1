package directory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/domain"
	"lifeline/internal/notify"
	"lifeline/pkg/clock"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/sentinel"
)

var origin = geo.Coordinate{Lat: 12.9716, Lng: 77.5946}

// offsetKm shifts origin east by roughly km kilometers. One degree of
// longitude at this latitude is about 108.5 km.
func offsetKm(km float64) *geo.Coordinate {
	return &geo.Coordinate{Lat: origin.Lat, Lng: origin.Lng + km/108.5}
}

func newTestDirectory(t *testing.T) (*Directory, *MemoryPresence) {
	t.Helper()
	presence := NewMemoryPresence(clock.Real{})
	return New(presence, notify.NopPublisher{}, slog.New(slog.DiscardHandler)), presence
}

func seed(t *testing.T, d *Directory, profiles ...Profile) {
	t.Helper()
	for _, p := range profiles {
		require.NoError(t, d.Upsert(p))
	}
}

func TestDirectory_FindCandidates(t *testing.T) {
	d, presence := newTestDirectory(t)
	seed(t, d,
		Profile{ID: "donor-a", BloodType: domain.BloodONegative, Location: offsetKm(5), Eligible: true},
		Profile{ID: "donor-b", BloodType: domain.BloodAPositive, Location: offsetKm(10), Eligible: true},
		Profile{ID: "donor-c", BloodType: domain.BloodBPositive, Location: offsetKm(15), Eligible: true},
		Profile{ID: "recipient-1", BloodType: domain.BloodONegative, Eligible: true},
	)
	require.NoError(t, presence.MarkOnline(context.Background(), "donor-a", time.Minute))

	got, err := d.FindCandidates(context.Background(),
		domain.DonorTypesFor(domain.BloodAPositive), []string{"recipient-1"})
	require.NoError(t, err)

	// A+ accepts A+, A-, O+, O-: donor-a and donor-b qualify, donor-c (B+)
	// does not, and the recipient is excluded despite a compatible type.
	require.Len(t, got, 2)
	assert.Equal(t, "donor-a", got[0].ID)
	assert.True(t, got[0].Online)
	assert.Equal(t, "donor-b", got[1].ID)
	assert.False(t, got[1].Online)
}

func TestDirectory_UpsertValidation(t *testing.T) {
	d, _ := newTestDirectory(t)
	err := d.Upsert(Profile{BloodType: domain.BloodAPositive})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	err = d.Upsert(Profile{ID: "donor-a", BloodType: "H+"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
}

func TestDirectory_UpdateLocation(t *testing.T) {
	presence := NewMemoryPresence(clock.Real{})
	events := make(chan notify.Event, 1)
	d := New(presence, publisherFunc(func(e notify.Event) { events <- e }), slog.New(slog.DiscardHandler))
	seed(t, d, Profile{ID: "donor-a", BloodType: domain.BloodONegative, Eligible: true})

	require.NoError(t, d.UpdateLocation(context.Background(), "donor-a", *offsetKm(3)))

	select {
	case e := <-events:
		assert.Equal(t, notify.EventDonorLocationUpdated, e.Type)
		assert.True(t, e.Target.Broadcast)
		assert.Equal(t, "donor-a", e.Payload["donor_id"])
	default:
		t.Fatal("expected a location broadcast")
	}

	got, err := d.FindCandidates(context.Background(), []domain.BloodType{domain.BloodONegative}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Coordinate)
}

func TestDirectory_UpdateLocationUnknownDonor(t *testing.T) {
	d, _ := newTestDirectory(t)
	err := d.UpdateLocation(context.Background(), "ghost", origin)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDirectory_Nearby(t *testing.T) {
	d, _ := newTestDirectory(t)
	seed(t, d,
		Profile{ID: "near", BloodType: domain.BloodONegative, Location: offsetKm(5), Eligible: true},
		Profile{ID: "far", BloodType: domain.BloodONegative, Location: offsetKm(60), Eligible: true},
		Profile{ID: "deferred", BloodType: domain.BloodONegative, Location: offsetKm(2), Eligible: false},
		Profile{ID: "incompatible", BloodType: domain.BloodABPositive, Location: offsetKm(1), Eligible: true},
		Profile{ID: "nomad", BloodType: domain.BloodONegative, Eligible: true},
	)

	got, err := d.Nearby(context.Background(), domain.BloodAPositive, origin, 50)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].ID)
	assert.InDelta(t, 5, got[0].DistanceKm, 0.2)
}

func TestDirectory_NearbyValidation(t *testing.T) {
	d, _ := newTestDirectory(t)
	_, err := d.Nearby(context.Background(), "Z-", origin, 50)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
	_, err = d.Nearby(context.Background(), domain.BloodAPositive, origin, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
}

func TestMemoryPresence_TTL(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	p := NewMemoryPresence(clk)
	ctx := context.Background()

	require.NoError(t, p.MarkOnline(ctx, "donor-a", time.Minute))
	online, err := p.Online(ctx, []string{"donor-a", "donor-b"})
	require.NoError(t, err)
	assert.True(t, online["donor-a"])
	assert.False(t, online["donor-b"])

	clk.Advance(2 * time.Minute)
	online, err = p.Online(ctx, []string{"donor-a"})
	require.NoError(t, err)
	assert.False(t, online["donor-a"], "presence ages out with its ttl")

	require.NoError(t, p.MarkOnline(ctx, "donor-a", time.Minute))
	require.NoError(t, p.MarkOffline(ctx, "donor-a"))
	online, err = p.Online(ctx, []string{"donor-a"})
	require.NoError(t, err)
	assert.False(t, online["donor-a"])
}

type publisherFunc func(notify.Event)

func (f publisherFunc) Publish(e notify.Event) { f(e) }
