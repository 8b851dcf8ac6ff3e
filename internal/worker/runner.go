// Package worker runs the two cooperating long-lived loops described in
// §4.F: a heartbeat loop and a maintenance loop, each polling its own
// driver on a fixed interval until the surrounding context is cancelled or
// the agent is observed terminated.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/QuixiAI/Hexis/internal/heartbeat"
	"github.com/QuixiAI/Hexis/internal/maintenance"
	"github.com/QuixiAI/Hexis/internal/telemetry"
)

// Mode selects which loops a Runner starts, mirroring HEXIS_WORKER_MODE.
type Mode string

const (
	ModeHeartbeat   Mode = "heartbeat"
	ModeMaintenance Mode = "maintenance"
	ModeBoth        Mode = "both"
)

// TerminationChecker is the narrow slice of store.Adapter the runner needs
// to implement "if is_agent_terminated() -> exit" for both loops.
type TerminationChecker interface {
	IsAgentTerminated(ctx context.Context) (bool, error)
}

// HeartbeatDriver is the narrow slice of *heartbeat.Driver the runner needs.
type HeartbeatDriver interface {
	RunOnce(ctx context.Context) (heartbeat.Outcome, error)
}

// MaintenanceScheduler is the narrow slice of *maintenance.Scheduler the
// runner needs.
type MaintenanceScheduler interface {
	Tick(ctx context.Context) maintenance.Result
}

// Runner drives the heartbeat and/or maintenance loops, each as its own
// goroutine, until ctx is cancelled (signal-driven shutdown per §4.F) or a
// heartbeat result reports termination, which stops both loops regardless
// of which one observed it.
type Runner struct {
	Mode Mode

	Store       TerminationChecker
	Heartbeat   HeartbeatDriver
	Maintenance MaintenanceScheduler

	HeartbeatPollInterval   time.Duration
	MaintenancePollInterval time.Duration

	Log telemetry.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Run blocks until ctx is cancelled, the agent is terminated, or both
// configured loops have exited. It never returns an error: loop-level
// failures are logged and the affected loop simply retries on its next
// tick, since a worker that exits on one bad iteration defeats the "stays
// up and keeps polling" contract of a long-lived process.
func (r *Runner) Run(ctx context.Context) {
	r.stopCh = make(chan struct{})

	var wg sync.WaitGroup
	if r.Mode == ModeHeartbeat || r.Mode == ModeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runHeartbeatLoop(ctx)
		}()
	}
	if r.Mode == ModeMaintenance || r.Mode == ModeBoth {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runMaintenanceLoop(ctx)
		}()
	}
	wg.Wait()
}

// stop signals every loop to exit on its next tick. Safe to call multiple
// times or concurrently.
func (r *Runner) stop() {
	r.stopOnce.Do(func() {
		if r.stopCh != nil {
			close(r.stopCh)
		}
	})
}

func (r *Runner) runHeartbeatLoop(ctx context.Context) {
	interval := r.HeartbeatPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if r.terminated(ctx) {
				r.stop()
				return
			}
			outcome, err := r.Heartbeat.RunOnce(ctx)
			if err != nil {
				r.log().Warn(ctx, "worker: heartbeat iteration failed", "error", err.Error())
				continue
			}
			if outcome.Terminated {
				r.log().Info(ctx, "worker: heartbeat observed termination, stopping both loops")
				r.stop()
				return
			}
		}
	}
}

func (r *Runner) runMaintenanceLoop(ctx context.Context) {
	interval := r.MaintenancePollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if r.terminated(ctx) {
				r.stop()
				return
			}
			r.Maintenance.Tick(ctx)
		}
	}
}

func (r *Runner) terminated(ctx context.Context) bool {
	if r.Store == nil {
		return false
	}
	done, err := r.Store.IsAgentTerminated(ctx)
	if err != nil {
		r.log().Warn(ctx, "worker: termination check failed", "error", err.Error())
		return false
	}
	return done
}

func (r *Runner) log() telemetry.Logger {
	if r.Log == nil {
		return telemetry.NoopLogger{}
	}
	return r.Log
}
