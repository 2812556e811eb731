package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appschedule "chaletbook/internal/app/schedule"
	"chaletbook/internal/infra/obs"
)

func TestRegisterValidates(t *testing.T) {
	s := New(obs.Discard(), 0)
	noop := func(context.Context) error { return nil }

	require.Error(t, s.Register(appschedule.Job{Name: "", Spec: "@every 1m", Run: noop}))
	require.Error(t, s.Register(appschedule.Job{Name: "bad", Spec: "every minute", Run: noop}))
	require.NoError(t, s.Register(appschedule.Job{Name: "sweep", Spec: "@every 1m", Run: noop}))
	require.ErrorContains(t, s.Register(appschedule.Job{Name: "sweep", Spec: "@every 1m", Run: noop}), "already registered")
}

func TestJobsRunOnSchedule(t *testing.T) {
	s := New(obs.Discard(), time.Second)
	var runs atomic.Int32
	require.NoError(t, s.Register(appschedule.Job{Name: "tick", Spec: "@every 1s", Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		require.True(t, ok)
		runs.Add(1)
		return nil
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

func TestRunNowBoundsContext(t *testing.T) {
	s := New(obs.Discard(), 20*time.Millisecond)
	err := s.RunNow(context.Background(), appschedule.Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
