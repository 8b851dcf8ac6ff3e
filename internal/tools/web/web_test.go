package web

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuixiAI/Hexis/internal/tools"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

func TestIsPrivateOrLocalDetectsLoopback(t *testing.T) {
	require.True(t, isPrivateOrLocal("localhost"))
	require.True(t, isPrivateOrLocal("127.0.0.1"))
	require.True(t, isPrivateOrLocal("127.0.0.1:8080"))
	require.True(t, isPrivateOrLocal("10.0.0.5"))
	require.True(t, isPrivateOrLocal("192.168.1.1"))
}

func TestIsPrivateOrLocalAllowsPublicIP(t *testing.T) {
	require.False(t, isPrivateOrLocal("8.8.8.8"))
}

func TestExtractTextStripsTagsAndScripts(t *testing.T) {
	body := []byte(`<html><head><style>body{color:red}</style></head><body><script>alert(1)</script><p>Hello <b>World</b></p></body></html>`)
	text := extractText(body)
	require.Contains(t, text, "Hello")
	require.Contains(t, text, "World")
	require.NotContains(t, text, "alert")
	require.NotContains(t, text, "color:red")
}

func TestWebFetchRejectsPrivateTarget(t *testing.T) {
	w := NewWebFetch(10, 10)
	_, err := w.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"url": "http://127.0.0.1/secret"})
	require.Error(t, err)
	require.Equal(t, tools.KindPathNotAllowed, xerrors.KindOf(err))
}

func TestWebFetchRejectsUnsupportedScheme(t *testing.T) {
	w := NewWebFetch(10, 10)
	_, err := w.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"url": "ftp://example.com/file"})
	require.Error(t, err)
	require.Equal(t, tools.KindInvalidParams, xerrors.KindOf(err))
}

func TestWebSearchRequiresProvider(t *testing.T) {
	_, err := WebSearch{}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"query": "hexis"})
	require.Error(t, err)
	require.Equal(t, tools.KindMissingConfig, xerrors.KindOf(err))
}

type fakeSearchProvider struct{ hits []SearchHit }

func (f fakeSearchProvider) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	return f.hits, nil
}

func TestWebSearchHappyPath(t *testing.T) {
	provider := fakeSearchProvider{hits: []SearchHit{{Title: "t", URL: "u", Snippet: "s"}}}
	res, err := WebSearch{Provider: provider}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"query": "hexis"})
	require.NoError(t, err)
	results := res.Output["results"].([]map[string]any)
	require.Len(t, results, 1)
	require.Equal(t, "t", results[0]["title"])
}

func TestWebSummarizeRequiresSummarizeFunc(t *testing.T) {
	_, err := WebSummarize{}.Execute(&tools.ExecContext{Go: context.Background()}, map[string]any{"url": "https://example.com"})
	require.Error(t, err)
	require.Equal(t, tools.KindMissingConfig, xerrors.KindOf(err))
}
