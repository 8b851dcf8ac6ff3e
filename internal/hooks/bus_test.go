package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPublishFanOut(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	count := 0
	sub := SubscriberFunc(func(context.Context, Event) error {
		count++
		return nil
	})
	_, err := bus.Register(sub)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewHeartbeatStartedEvent("hb1", "call1")))
	require.NoError(t, bus.Publish(ctx, NewHeartbeatFinalizedEvent("hb1", "mem1", "completed")))
	require.Equal(t, 2, count)
}

func TestBusRegisterNil(t *testing.T) {
	bus := NewBus()
	_, err := bus.Register(nil)
	require.Error(t, err)
}

func TestBusStopsAtFirstSubscriberError(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var calledSecond bool
	boom := errors.New("boom")
	_, err := bus.Register(SubscriberFunc(func(context.Context, Event) error { return boom }))
	require.NoError(t, err)
	_, err = bus.Register(SubscriberFunc(func(context.Context, Event) error {
		calledSecond = true
		return nil
	}))
	require.NoError(t, err)

	err = bus.Publish(ctx, NewHeartbeatStartedEvent("hb1", "call1"))
	require.ErrorIs(t, err, boom)
	require.False(t, calledSecond)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	count := 0
	sub := SubscriberFunc(func(context.Context, Event) error {
		count++
		return nil
	})
	subscription, err := bus.Register(sub)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, NewHeartbeatStartedEvent("hb1", "call1")))
	require.NoError(t, subscription.Close())
	require.NoError(t, subscription.Close())
	require.NoError(t, bus.Publish(ctx, NewHeartbeatFinalizedEvent("hb1", "mem1", "completed")))
	require.Equal(t, 1, count)
}
