package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/store/memory"
)

func seedLogWithWindows(t *testing.T, st *memory.Store, createdAgo time.Duration, now time.Time) *domain.ActionLog {
	t.Helper()
	ctx := context.Background()

	roas3, roas7 := 1.8, 2.1
	require.NoError(t, st.Metrics().UpsertWindow(ctx, &domain.MetricWindow{
		AudienceID:   "aud-1",
		SnapshotDate: now.Truncate(24 * time.Hour),
		WindowDays:   domain.Window3Day,
		Spend:        900,
		ROAS:         &roas3,
	}))
	require.NoError(t, st.Metrics().UpsertWindow(ctx, &domain.MetricWindow{
		AudienceID:   "aud-1",
		SnapshotDate: now.Truncate(24 * time.Hour),
		WindowDays:   domain.Window7Day,
		Spend:        2100,
		ROAS:         &roas7,
	}))

	l := &domain.ActionLog{
		AudienceID: "aud-1",
		AccountID:  "acc-1",
		Decision:   domain.ActionScale,
		CreatedAt:  now.Add(-createdAgo),
	}
	require.NoError(t, st.ActionLogs().Create(ctx, l))
	return l
}

func TestBackfillWrites3dOutcomeOnce(t *testing.T) {
	st := memory.New()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	seedLogWithWindows(t, st, 4*24*time.Hour, now)

	s := New(st, nil, config.PollingConfig{})
	s.now = func() time.Time { return now }

	s.backfillOutcomes(context.Background())

	due, err := st.ActionLogs().DueForOutcome(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, due, "3d slot filled, 7d not yet due")

	// A second pass must not touch the filled slot.
	s.backfillOutcomes(context.Background())
	logs, err := st.ActionLogs().DueForOutcome(context.Background(), now.Add(4*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Outcome3d)
	assert.Equal(t, 900.0, logs[0].Outcome3d.Spend)
	assert.Nil(t, logs[0].Outcome7d)
}

func TestBackfillWritesBothWindowsWhenOldEnough(t *testing.T) {
	st := memory.New()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	seedLogWithWindows(t, st, 8*24*time.Hour, now)

	s := New(st, nil, config.PollingConfig{})
	s.now = func() time.Time { return now }

	s.backfillOutcomes(context.Background())

	due, err := st.ActionLogs().DueForOutcome(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestBackfillSkipsLogWithoutWindows(t *testing.T) {
	st := memory.New()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.ActionLogs().Create(context.Background(), &domain.ActionLog{
		AudienceID: "aud-missing",
		AccountID:  "acc-1",
		Decision:   domain.ActionHold,
		CreatedAt:  now.Add(-4 * 24 * time.Hour),
	}))

	s := New(st, nil, config.PollingConfig{})
	s.now = func() time.Time { return now }

	s.backfillOutcomes(context.Background())

	// Slot stays open for the next pass.
	due, err := st.ActionLogs().DueForOutcome(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestBackfillFreshLogUntouched(t *testing.T) {
	st := memory.New()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	seedLogWithWindows(t, st, 24*time.Hour, now)

	s := New(st, nil, config.PollingConfig{})
	s.now = func() time.Time { return now }

	s.backfillOutcomes(context.Background())

	logs, err := st.ActionLogs().DueForOutcome(context.Background(), now.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Outcome3d)
	assert.Nil(t, logs[0].Outcome7d)
}
