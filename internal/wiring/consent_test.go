package wiring

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConfigReader struct {
	values map[string]json.RawMessage
}

func (f fakeConfigReader) Get(ctx context.Context, key string, out any) error {
	v, ok := f.values[key]
	if !ok {
		return errNotFound
	}
	return json.Unmarshal(v, out)
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }

func TestCheckConsentPassesWhenNoRolesConfigured(t *testing.T) {
	t.Setenv("CONSENT_DIR", filepath.Join(t.TempDir(), "consents"))
	reader := fakeConfigReader{values: map[string]json.RawMessage{}}
	require.NoError(t, checkConsent(context.Background(), reader))
}

func TestCheckConsentFailsWithoutCertificate(t *testing.T) {
	t.Setenv("CONSENT_DIR", filepath.Join(t.TempDir(), "consents"))
	reader := fakeConfigReader{values: map[string]json.RawMessage{
		"llm.heartbeat": json.RawMessage(`{"provider":"anthropic","model_id":"claude-x"}`),
	}}
	err := checkConsent(context.Background(), reader)
	require.Error(t, err)
	var consentErr *ErrConsentRequired
	require.ErrorAs(t, err, &consentErr)
	require.Equal(t, "anthropic", consentErr.Provider)
}
