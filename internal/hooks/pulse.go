package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// PulseMirror is a Subscriber that republishes every event it receives onto
// a single Pulse stream backed by Redis, so out-of-process consumers can
// tail heartbeat activity without linking against the control plane binary. It is registered
// alongside the in-process subscribers rather than replacing Bus, so the
// Redis dependency is additive: if Pulse is never configured, Bus still
// fans out events to in-process subscribers exactly as before.
type PulseMirror struct {
	stream *streaming.Stream
}

// NewPulseMirror opens (or creates) the named Pulse stream on redis. name is
// typically "hexis.events".
func NewPulseMirror(ctx context.Context, redisClient *redis.Client, name string) (*PulseMirror, error) {
	stream, err := streaming.NewStream(name, redisClient, streamopts.WithStreamMaxLen(10_000))
	if err != nil {
		return nil, xerrors.Wrap("hooks.pulse_stream_failed", err)
	}
	return &PulseMirror{stream: stream}, nil
}

type envelope struct {
	Type        EventType       `json:"type"`
	HeartbeatID string          `json:"heartbeat_id,omitempty"`
	Timestamp   int64           `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// HandleEvent implements Subscriber.
func (m *PulseMirror) HandleEvent(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap("hooks.marshal_failed", err)
	}
	env := envelope{
		Type:        event.Type(),
		HeartbeatID: event.HeartbeatID(),
		Timestamp:   event.Timestamp(),
		Payload:     payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return xerrors.Wrap("hooks.marshal_failed", err)
	}
	if _, err := m.stream.Add(ctx, string(event.Type()), raw); err != nil {
		return xerrors.Wrap("hooks.pulse_publish_failed", fmt.Errorf("publish %s: %w", event.Type(), err))
	}
	return nil
}

// Close is a no-op: the caller owns the Redis connection lifecycle and the
// stream itself outlives any one mirror instance, so stream consumers can
// replay history after a restart.
func (m *PulseMirror) Close(context.Context) error {
	return nil
}
