package amqpbridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNilBridgeDegradesToNoop(t *testing.T) {
	var b *Bridge

	require.NoError(t, b.Publish(context.Background(), json.RawMessage(`{}`)))

	msgs, err := b.PollInbox(context.Background(), 5)
	require.NoError(t, err)
	require.Nil(t, msgs)

	require.NoError(t, b.Close())
}

func TestPollInboxZeroCountReturnsEmpty(t *testing.T) {
	b := &Bridge{}
	msgs, err := b.PollInbox(context.Background(), 0)
	require.NoError(t, err)
	require.Nil(t, msgs)
}

func TestInboundPayloadRoundTrips(t *testing.T) {
	raw := []byte(`{"content":"hello","metadata":{"source":"sms"}}`)
	var p inboundPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	require.Equal(t, "hello", p.Content)
	require.JSONEq(t, `{"source":"sms"}`, string(p.Metadata))
}
