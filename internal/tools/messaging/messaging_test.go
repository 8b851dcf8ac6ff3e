package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func TestSendDiscordMessageRequiresSender(t *testing.T) {
	_, err := SendDiscordMessage{}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{
		"channel_id": "123", "content": "hi",
	})
	require.Error(t, err)
	require.Equal(t, tools.KindMissingConfig, xerrors.KindOf(err))
}

func TestSendEmailRequiresFields(t *testing.T) {
	s := SendEmail{Sender: WebhookSender{URL: "http://example.invalid"}}
	_, err := s.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"body": "hi"})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestSendEmailPostsToWebhook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := SendEmail{Sender: WebhookSender{URL: server.URL}}
	res, err := s.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{
		"to": "a@example.com", "subject": "hello", "body": "world",
	})
	require.NoError(t, err)
	require.Equal(t, true, res.Output["sent"])
}

func TestWebhookSenderSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := CreateCalendarEvent{Sender: WebhookSender{URL: server.URL}}
	_, err := c.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{
		"title": "sync", "start_time": "t0", "end_time": "t1",
	})
	require.Error(t, err)
	require.Equal(t, tools.KindHTTPError, xerrors.KindOf(err))
}

func TestCreateCalendarEventRequiresFields(t *testing.T) {
	c := CreateCalendarEvent{Sender: WebhookSender{URL: "http://example.invalid"}}
	_, err := c.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"title": "sync"})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}
