// Package messaging implements the calendar/email/messaging tool family
// from §4.C: API-backed senders, all requiring approval, all marked
// not-parallel-safe because they produce externally observable side
// effects. Discord is the one family with a concrete transport
// (bwmarrin/discordgo); email and calendar ship a generic webhook sender so
// the category has a real HTTP path without committing to one provider.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/QuixiAI/Hexis/internal/tools"
)

// DiscordSender wraps a discordgo session for the send_discord_message tool.
type DiscordSender struct {
	session *discordgo.Session
}

// NewDiscordSender opens a discordgo session authenticated with a bot
// token. The session is not connected to the gateway; only the REST client
// is needed to send messages.
func NewDiscordSender(botToken string) (*DiscordSender, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, tools.Wrap(tools.KindAuthFailed, err)
	}
	return &DiscordSender{session: session}, nil
}

// SendDiscordMessage posts to a Discord channel.
type SendDiscordMessage struct {
	Sender *DiscordSender
}

func (SendDiscordMessage) Spec() tools.Spec {
	return tools.Spec{
		Name:             "send_discord_message",
		Description:      "Send a message to a Discord channel.",
		Category:         tools.CategoryMessaging,
		EnergyCost:       3,
		RequiresApproval: true,
		SupportsParallel: false,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"channel_id":{"type":"string"},"content":{"type":"string"}},"required":["channel_id","content"]}`),
	}
}

func (s SendDiscordMessage) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if s.Sender == nil || s.Sender.session == nil {
		return tools.Result{}, tools.Errorf(tools.KindMissingConfig, "no Discord bot token configured")
	}
	channelID, _ := args["channel_id"].(string)
	content, _ := args["content"].(string)
	if channelID == "" || content == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "channel_id and content are required")
	}
	msg, err := s.Sender.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ec.Go))
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindNetworkError, err)
	}
	return tools.Result{Output: map[string]any{"message_id": msg.ID}}, nil
}

// WebhookSender posts a JSON payload to a configured webhook URL. Used by
// both the email and calendar tool families below, since neither commits to
// one concrete provider the way messaging commits to Discord.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

func (w WebhookSender) post(ctx context.Context, payload map[string]any) error {
	if w.URL == "" {
		return tools.Errorf(tools.KindMissingConfig, "no webhook URL configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return tools.Wrap(tools.KindInvalidParams, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return tools.Wrap(tools.KindNetworkError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return tools.Wrap(tools.KindNetworkError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return tools.Errorf(tools.KindHTTPError, "webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SendEmail posts an email send request to a configured webhook.
type SendEmail struct {
	Sender WebhookSender
}

func (SendEmail) Spec() tools.Spec {
	return tools.Spec{
		Name:             "send_email",
		Description:      "Send an email via the configured email webhook.",
		Category:         tools.CategoryEmail,
		EnergyCost:       4,
		RequiresApproval: true,
		SupportsParallel: false,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"to":{"type":"string"},"subject":{"type":"string"},"body":{"type":"string"}},"required":["to","subject","body"]}`),
	}
}

func (s SendEmail) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	if to == "" || subject == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "to and subject are required")
	}
	if err := s.Sender.post(ec.Go, map[string]any{"to": to, "subject": subject, "body": body}); err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Output: map[string]any{"sent": true}}, nil
}

// CreateCalendarEvent posts an event-creation request to a configured
// webhook.
type CreateCalendarEvent struct {
	Sender WebhookSender
}

func (CreateCalendarEvent) Spec() tools.Spec {
	return tools.Spec{
		Name:             "create_calendar_event",
		Description:      "Create a calendar event via the configured calendar webhook.",
		Category:         tools.CategoryCalendar,
		EnergyCost:       4,
		RequiresApproval: true,
		SupportsParallel: false,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"title":{"type":"string"},"start_time":{"type":"string"},"end_time":{"type":"string"},"description":{"type":"string"}},"required":["title","start_time","end_time"]}`),
	}
}

func (c CreateCalendarEvent) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	title, _ := args["title"].(string)
	start, _ := args["start_time"].(string)
	end, _ := args["end_time"].(string)
	if title == "" || start == "" || end == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "title, start_time, and end_time are required")
	}
	payload := map[string]any{
		"title": title, "start_time": start, "end_time": end,
		"description": args["description"],
	}
	if err := c.Sender.post(ec.Go, payload); err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Output: map[string]any{"created": true}}, nil
}
