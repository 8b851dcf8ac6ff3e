package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/heartbeat"
	"github.com/QuixiAI/Hexis/internal/maintenance"
)

type fakeTerminationChecker struct {
	terminated atomic.Bool
}

func (f *fakeTerminationChecker) IsAgentTerminated(ctx context.Context) (bool, error) {
	return f.terminated.Load(), nil
}

type fakeHeartbeatDriver struct {
	calls   atomic.Int32
	outcome heartbeat.Outcome
	err     error
}

func (f *fakeHeartbeatDriver) RunOnce(ctx context.Context) (heartbeat.Outcome, error) {
	f.calls.Add(1)
	return f.outcome, f.err
}

type fakeMaintenanceScheduler struct {
	calls atomic.Int32
}

func (f *fakeMaintenanceScheduler) Tick(ctx context.Context) maintenance.Result {
	f.calls.Add(1)
	return maintenance.Result{}
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	hb := &fakeHeartbeatDriver{}
	store := &fakeTerminationChecker{}
	r := &Runner{
		Mode:                  ModeHeartbeat,
		Store:                 store,
		Heartbeat:             hb,
		HeartbeatPollInterval: 5 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
	require.Greater(t, hb.calls.Load(), int32(0))
}

func TestRunnerStopsBothLoopsOnHeartbeatTermination(t *testing.T) {
	hb := &fakeHeartbeatDriver{outcome: heartbeat.Outcome{Terminated: true}}
	mnt := &fakeMaintenanceScheduler{}
	store := &fakeTerminationChecker{}
	r := &Runner{
		Mode:                    ModeBoth,
		Store:                   store,
		Heartbeat:               hb,
		Maintenance:             mnt,
		HeartbeatPollInterval:   5 * time.Millisecond,
		MaintenancePollInterval: 5 * time.Millisecond,
	}

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after heartbeat termination")
	}
}

func TestRunnerExitsWhenAlreadyTerminated(t *testing.T) {
	hb := &fakeHeartbeatDriver{}
	store := &fakeTerminationChecker{}
	store.terminated.Store(true)
	r := &Runner{
		Mode:                  ModeHeartbeat,
		Store:                 store,
		Heartbeat:             hb,
		HeartbeatPollInterval: 5 * time.Millisecond,
	}

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not exit when already terminated")
	}
	require.Equal(t, int32(0), hb.calls.Load())
}

func TestRunnerOnlyStartsConfiguredMode(t *testing.T) {
	mnt := &fakeMaintenanceScheduler{}
	store := &fakeTerminationChecker{}
	r := &Runner{
		Mode:                    ModeMaintenance,
		Store:                   store,
		Maintenance:             mnt,
		MaintenancePollInterval: 5 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	r.Run(ctx)
	require.Greater(t, mnt.calls.Load(), int32(0))
}
