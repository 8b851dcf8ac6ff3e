package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	resp     Response
	err      error
	captured Request
	calls    int
}

func (f *fakeClient) Complete(ctx context.Context, req Request) (Response, error) {
	f.captured = req
	f.calls++
	if f.err != nil {
		return Response{}, f.err
	}
	return f.resp, nil
}

type fakeLimiter struct {
	err     error
	waitKey string
}

func (f *fakeLimiter) Wait(ctx context.Context, key string) error {
	f.waitKey = key
	return f.err
}

func TestWrapAppliesLimiterBeforeDelegating(t *testing.T) {
	inner := &fakeClient{resp: Response{Text: "ok"}}
	limiter := &fakeLimiter{}
	client := Wrap(inner, limiter)

	resp, err := client.Complete(context.Background(), Request{Model: "gpt-4.1"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Equal(t, "gpt-4.1", limiter.waitKey)
	require.Equal(t, 1, inner.calls)
}

func TestWrapDefaultsKeyWhenModelBlank(t *testing.T) {
	inner := &fakeClient{resp: Response{Text: "ok"}}
	limiter := &fakeLimiter{}
	client := Wrap(inner, limiter)

	_, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, "default", limiter.waitKey)
}

func TestWrapShortCircuitsOnLimiterError(t *testing.T) {
	inner := &fakeClient{resp: Response{Text: "ok"}}
	limiter := &fakeLimiter{err: errors.New("throttled")}
	client := Wrap(inner, limiter)

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4.1"})
	require.Error(t, err)
	require.Equal(t, 0, inner.calls)
}

func TestWrapWithNilLimiterReturnsUnwrappedClient(t *testing.T) {
	inner := &fakeClient{resp: Response{Text: "ok"}}
	client := Wrap(inner, nil)
	require.Same(t, inner, client.(*fakeClient))
}
