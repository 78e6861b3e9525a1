package donation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/domain"
	"lifeline/pkg/clock"
	dErrors "lifeline/pkg/domain-errors"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := NewInMemoryStore()
	svc := NewService(store, slog.New(slog.DiscardHandler), WithClock(clk))
	return svc, store, clk
}

func TestService_Schedule(t *testing.T) {
	svc, store, clk := newTestService(t)

	got, err := svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-1",
		ScheduledDate: clk.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "donor-1", got.DonorID)
	assert.Empty(t, got.RequestID, "self-scheduled donations reference no request")
	assert.Equal(t, domain.DonationScheduled, got.Status)
	assert.Equal(t, 1, got.Units, "units default to one")

	stored, err := store.Load(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.ID, stored.ID)
}

func TestService_ScheduleValidation(t *testing.T) {
	svc, _, clk := newTestService(t)

	cases := []struct {
		name   string
		params ScheduleParams
	}{
		{"missing donor", ScheduleParams{ScheduledDate: clk.Now().Add(time.Hour)}},
		{"missing date", ScheduleParams{DonorID: "donor-1"}},
		{"past date", ScheduleParams{DonorID: "donor-1", ScheduledDate: clk.Now().Add(-time.Hour)}},
		{"negative units", ScheduleParams{DonorID: "donor-1", ScheduledDate: clk.Now().Add(time.Hour), Units: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), tc.params)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
		})
	}
}

func TestService_History(t *testing.T) {
	svc, _, clk := newTestService(t)

	_, err := svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-1",
		ScheduledDate: clk.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-1",
		ScheduledDate: clk.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-2",
		ScheduledDate: clk.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "donor-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].ScheduledDate.Before(history[1].ScheduledDate),
		"soonest appointment first")
}

func TestService_SetStatus(t *testing.T) {
	svc, _, clk := newTestService(t)
	scheduled, err := svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-1",
		ScheduledDate: clk.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	done, err := svc.SetStatus(context.Background(), scheduled.ID, "donor-1", domain.DonationCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationCompleted, done.Status)

	// Terminal donations do not move again.
	_, err = svc.SetStatus(context.Background(), scheduled.ID, "donor-1", domain.DonationCancelled)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestService_SetStatusGuards(t *testing.T) {
	svc, _, clk := newTestService(t)
	scheduled, err := svc.Schedule(context.Background(), ScheduleParams{
		DonorID:       "donor-1",
		ScheduledDate: clk.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.SetStatus(context.Background(), scheduled.ID, "donor-2", domain.DonationCancelled)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = svc.SetStatus(context.Background(), "missing", "donor-1", domain.DonationCancelled)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.SetStatus(context.Background(), scheduled.ID, "donor-1", "paused")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
