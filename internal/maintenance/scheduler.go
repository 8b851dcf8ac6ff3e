// Package maintenance runs the substrate-maintenance and subconscious-decider
// cadences described in §4.E: two independently-gated passes, each a no-op
// when its cadence is not due, polled on their own schedule by the worker
// runtime rather than driven by heartbeats.
package maintenance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/QuixiAI/Hexis/internal/broker"
	"github.com/QuixiAI/Hexis/internal/hooks"
	"github.com/QuixiAI/Hexis/internal/store"
	"github.com/QuixiAI/Hexis/internal/telemetry"
)

// Store is the narrow slice of store.Adapter the scheduler needs, declared
// locally per the same import-direction discipline used throughout the tree.
type Store interface {
	RunMaintenanceIfDue(ctx context.Context) (*store.MaintenanceStats, error)
	ShouldRunSubconsciousDecider(ctx context.Context) (bool, error)
	GetSubconsciousContext(ctx context.Context) (json.RawMessage, error)
	ApplySubconsciousObservations(ctx context.Context, obs store.SubconsciousObservations) error
	MarkSubconsciousDeciderRun(ctx context.Context) error
	PendingOutboxMessages(ctx context.Context, limit int) ([]store.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, ids []string) error
	MarkOutboxFailed(ctx context.Context, id string, errMsg string) error
	EnqueueInboundMessage(ctx context.Context, content string, metadata json.RawMessage) error
}

// InboundMessage is one ingress message pulled from the inbox bridge.
type InboundMessage struct {
	Content  string
	Metadata json.RawMessage
}

// InboxFetcher pulls up to n pending ingress messages from the inbox bridge.
// A nil InboxFetcher disables inbox polling entirely, matching "poll inbox
// bridge (if enabled)" in §4.F step 2.
type InboxFetcher func(ctx context.Context, n int) ([]InboundMessage, error)

// Reaper is the narrow slice of broker.Reaper the scheduler needs.
type Reaper interface {
	Sweep(ctx context.Context) (int, error)
}

// DeciderFunc runs one subconscious-decider LLM pass over the given context
// snapshot and returns its structured observations. Kept as a function value,
// mirroring heartbeat.ThinkFunc, so this package never imports internal/llm;
// the worker runtime resolves llm.subconscious (falling back to
// llm.heartbeat) and substitutes this closure at wiring time.
type DeciderFunc func(ctx context.Context, snapshot json.RawMessage) (store.SubconsciousObservations, error)

// OutboxPublisher delivers one outbox payload to its external destination
// (RabbitMQ when the bridge is enabled, otherwise a no-op). Declared as a
// function value for the same reason as DeciderFunc: the AMQP bridge lives
// in the worker runtime, not here.
type OutboxPublisher func(ctx context.Context, msg store.OutboxMessage) error

// Scheduler runs one maintenance pass per Tick call: poll the inbox bridge,
// reap stale external calls, run substrate maintenance if due, run the subconscious decider if
// due, then flush the outbox. Any step's failure is logged and does not
// prevent the remaining steps from running, matching the worker's "log if
// non-skipped" tolerance for partial progress.
type Scheduler struct {
	Store           Store
	Reaper          Reaper
	Decide          DeciderFunc
	Publish         OutboxPublisher
	FetchInbound    InboxFetcher
	Bus             hooks.Bus
	Log             telemetry.Logger
	OutboxBatchSize int
	InboxBatchSize  int
	InboxPollEvery  time.Duration

	lastInboxPoll time.Time
}

// Result summarizes one Tick call for callers that want to inspect it
// (tests, the CLI's one-shot maintenance command).
type Result struct {
	ReapedCalls      int
	MaintenanceStats *store.MaintenanceStats
	SubconsciousRan  bool
	OutboxFlushed    int
	OutboxFailed     int
	InboundEnqueued  int
}

// Tick runs one pass of every cadence, each independently gated, and returns
// a summary. It never returns an error itself: individual step failures are
// logged and folded into the result rather than aborting the whole pass,
// since a maintenance worker that dies on one bad step stalls every other
// cadence behind it.
func (s *Scheduler) Tick(ctx context.Context) Result {
	var res Result

	res.InboundEnqueued = s.pollInbound(ctx)

	if s.Reaper != nil {
		reaped, err := s.Reaper.Sweep(ctx)
		if err != nil {
			s.log().Warn(ctx, "maintenance: reaper sweep failed", "error", err.Error())
		} else {
			res.ReapedCalls = reaped
		}
	}

	stats, err := s.Store.RunMaintenanceIfDue(ctx)
	if err != nil {
		s.log().Warn(ctx, "maintenance: substrate maintenance failed", "error", err.Error())
	} else if stats != nil {
		res.MaintenanceStats = stats
		s.log().Info(ctx, "maintenance: substrate pass completed",
			"memories_pruned", stats.MemoriesPruned,
			"memories_consolidated", stats.MemoriesConsolidated,
			"scheduled_tasks_due", stats.ScheduledTasksDue)
	}

	if s.runSubconsciousDecider(ctx) {
		res.SubconsciousRan = true
	}

	res.OutboxFlushed, res.OutboxFailed = s.flushOutbox(ctx)

	s.publish(ctx, hooks.NewMaintenanceRunCompletedEvent(res.ReapedCalls, res.OutboxFlushed, res.SubconsciousRan))
	return res
}

// pollInbound pulls pending ingress messages from the inbox bridge and
// enqueues each into working memory, per §4.F step 2. It honors
// InboxPollEvery as a minimum inter-poll interval distinct from the worker's
// own tick cadence, matching RABBITMQ_POLL_INBOX_EVERY's contract of
// throttling the bridge independently of how often Tick itself runs.
func (s *Scheduler) pollInbound(ctx context.Context) int {
	if s.FetchInbound == nil {
		return 0
	}
	if s.InboxPollEvery > 0 && time.Since(s.lastInboxPoll) < s.InboxPollEvery {
		return 0
	}
	s.lastInboxPoll = time.Now()

	batch := s.InboxBatchSize
	if batch <= 0 {
		batch = 20
	}
	messages, err := s.FetchInbound(ctx, batch)
	if err != nil {
		s.log().Warn(ctx, "maintenance: failed to poll inbox bridge", "error", err.Error())
		return 0
	}
	enqueued := 0
	for _, msg := range messages {
		if err := s.Store.EnqueueInboundMessage(ctx, msg.Content, msg.Metadata); err != nil {
			s.log().Warn(ctx, "maintenance: failed to enqueue inbound message", "error", err.Error())
			continue
		}
		enqueued++
	}
	return enqueued
}

// runSubconsciousDecider runs the decider pass if its cadence is due,
// marking the run regardless of outcome per §4.E.
func (s *Scheduler) runSubconsciousDecider(ctx context.Context) bool {
	due, err := s.Store.ShouldRunSubconsciousDecider(ctx)
	if err != nil {
		s.log().Warn(ctx, "maintenance: subconscious cadence check failed", "error", err.Error())
		return false
	}
	if !due || s.Decide == nil {
		return false
	}

	ran := false
	defer func() {
		if markErr := s.Store.MarkSubconsciousDeciderRun(ctx); markErr != nil {
			s.log().Warn(ctx, "maintenance: failed to mark subconscious run", "error", markErr.Error())
		}
	}()

	snapshot, err := s.Store.GetSubconsciousContext(ctx)
	if err != nil {
		s.log().Warn(ctx, "maintenance: failed to gather subconscious context", "error", err.Error())
		return ran
	}
	obs, err := s.Decide(ctx, snapshot)
	if err != nil {
		s.log().Warn(ctx, "maintenance: subconscious decider failed", "error", err.Error())
		return ran
	}
	if err := s.Store.ApplySubconsciousObservations(ctx, obs); err != nil {
		s.log().Warn(ctx, "maintenance: failed to apply subconscious observations", "error", err.Error())
		return ran
	}
	ran = true
	return ran
}

// flushOutbox delivers pending outbox rows via Publish, a no-op when no
// bridge is configured (Publish == nil), per §4.F's "when RabbitMQ bridge is
// enabled" qualifier.
func (s *Scheduler) flushOutbox(ctx context.Context) (flushed, failed int) {
	if s.Publish == nil {
		return 0, 0
	}
	batch := s.OutboxBatchSize
	if batch <= 0 {
		batch = 50
	}
	messages, err := s.Store.PendingOutboxMessages(ctx, batch)
	if err != nil {
		s.log().Warn(ctx, "maintenance: failed to list pending outbox messages", "error", err.Error())
		return 0, 0
	}

	var sent []string
	for _, msg := range messages {
		if err := s.Publish(ctx, msg); err != nil {
			if markErr := s.Store.MarkOutboxFailed(ctx, msg.ID, err.Error()); markErr != nil {
				s.log().Warn(ctx, "maintenance: failed to mark outbox message failed", "id", msg.ID, "error", markErr.Error())
			}
			failed++
			continue
		}
		sent = append(sent, msg.ID)
	}
	if len(sent) > 0 {
		if err := s.Store.MarkOutboxSent(ctx, sent); err != nil {
			s.log().Warn(ctx, "maintenance: failed to mark outbox messages sent", "error", err.Error())
		} else {
			flushed = len(sent)
		}
	}
	return flushed, failed
}

func (s *Scheduler) publish(ctx context.Context, event hooks.Event) {
	if s.Bus == nil {
		return
	}
	_ = s.Bus.Publish(ctx, event)
}

func (s *Scheduler) log() telemetry.Logger {
	if s.Log == nil {
		return telemetry.NoopLogger{}
	}
	return s.Log
}

var _ Reaper = (*broker.Reaper)(nil)
