package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/service"
)

type fakeSweeper struct {
	enabled bool
	runs    atomic.Int32
	block   bool
	done    atomic.Bool
	err     error
}

func (f *fakeSweeper) Enabled() bool { return f.enabled }

func (f *fakeSweeper) Sweep(ctx context.Context) (service.SweepReport, error) {
	f.runs.Add(1)
	if f.block {
		<-ctx.Done()
		f.done.Store(true)
		return service.SweepReport{}, ctx.Err()
	}
	return service.SweepReport{Candidates: 1, Closed: 1}, f.err
}

func TestSchedulerRunsSweepPeriodically(t *testing.T) {
	sweeper := &fakeSweeper{enabled: true}
	s := NewScheduler(sweeper, time.Second, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return sweeper.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestSchedulerSkipsDisabledSweeper(t *testing.T) {
	sweeper := &fakeSweeper{enabled: false}
	s := NewScheduler(sweeper, time.Second, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, s.cron.Entries())
	s.Stop()
	assert.Zero(t, sweeper.runs.Load())
}

func TestSchedulerRejectsSubSecondInterval(t *testing.T) {
	s := NewScheduler(&fakeSweeper{enabled: true}, 100*time.Millisecond, zap.NewNop())
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerStopWaitsForRunningSweep(t *testing.T) {
	sweeper := &fakeSweeper{enabled: true, block: true}
	s := NewScheduler(sweeper, time.Second, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return sweeper.runs.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	assert.True(t, sweeper.done.Load())
}

func TestRunOnceToleratesErrors(t *testing.T) {
	sweeper := &fakeSweeper{enabled: true, err: errors.New("db down")}
	s := NewScheduler(sweeper, time.Second, zap.NewNop())
	s.RunOnce(context.Background())
	assert.Equal(t, int32(1), sweeper.runs.Load())
}

func TestStartActivityWorkerSubscribes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	StartActivityWorker(service.NewActivityService(dispatcher, nil, zap.NewNop()))
	StartActivityWorker(nil)

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketStatusChanged, 1, events.Actor{},
		events.TicketStatusChangedPayload{OldStatus: "open", NewStatus: "closed", Trigger: "inactivity"}))
	assert.NoError(t, err)
}
