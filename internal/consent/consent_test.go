package consent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "consents"))
}

func TestHasValidConsentFalseWhenNoCertificate(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.HasValidConsent("anthropic", "claude-x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequestConsentAcceptGrantsValidConsent(t *testing.T) {
	s := newTestStore(t)
	model := Model{Provider: "anthropic", ModelID: "claude-x"}

	ask := func(ctx context.Context, m Model, consentText string) (string, error) {
		return "ACCEPT\nI consent to these terms.", nil
	}
	cert, err := s.RequestConsent(context.Background(), model, "please consent", ask)
	require.NoError(t, err)
	require.Equal(t, DecisionAccept, cert.Decision)
	require.True(t, cert.Valid())

	ok, err := s.HasValidConsent("anthropic", "claude-x")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRequestConsentDeclineDoesNotGrantConsent(t *testing.T) {
	s := newTestStore(t)
	model := Model{Provider: "anthropic", ModelID: "claude-x"}

	ask := func(ctx context.Context, m Model, consentText string) (string, error) {
		return "DECLINE\nnot today", nil
	}
	cert, err := s.RequestConsent(context.Background(), model, "please consent", ask)
	require.NoError(t, err)
	require.False(t, cert.Valid())

	ok, err := s.HasValidConsent("anthropic", "claude-x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevokeConsentInvalidatesPriorAccept(t *testing.T) {
	s := newTestStore(t)
	model := Model{Provider: "anthropic", ModelID: "claude-x"}
	ask := func(ctx context.Context, m Model, consentText string) (string, error) {
		return "ACCEPT", nil
	}
	_, err := s.RequestConsent(context.Background(), model, "please consent", ask)
	require.NoError(t, err)

	ok, err := s.HasValidConsent("anthropic", "claude-x")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.RevokeConsent("anthropic", "claude-x", "policy changed")
	require.NoError(t, err)

	ok, err = s.HasValidConsent("anthropic", "claude-x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLatestLexicographicFilenameIsAuthoritative(t *testing.T) {
	s := newTestStore(t)
	model := Model{Provider: "openai", ModelID: "gpt-x"}

	accept := func(ctx context.Context, m Model, consentText string) (string, error) {
		return "ACCEPT", nil
	}
	decline := func(ctx context.Context, m Model, consentText string) (string, error) {
		return "DECLINE", nil
	}

	_, err := s.RequestConsent(context.Background(), model, "v1", accept)
	require.NoError(t, err)

	ok, err := s.HasValidConsent("openai", "gpt-x")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.RevokeConsent("openai", "gpt-x", "superseded")
	require.NoError(t, err)

	ok, err = s.HasValidConsent("openai", "gpt-x")
	require.NoError(t, err)
	require.False(t, ok)

	_ = decline
}
