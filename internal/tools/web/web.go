// Package web implements the web tool family from §4.C: web_search (via a
// pluggable search provider), web_fetch (content extraction, blocking
// localhost/private targets), and web_summarize (fetch plus LLM-backed
// summarization through a SummarizeFunc; the summarization call is not
// queued through the external-call broker).
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/QuixiAI/Hexis/internal/tools"
)

const maxFetchBytes = 5 << 20

// SearchProvider abstracts the pluggable backend web_search calls out to
// (e.g. a hosted search API keyed via ToolsConfig.APIKeys).
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearchHit is one search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SummarizeFunc sends fetched content to an LLM for summarization and
// returns the summary text. Wiring binds it to wiring.NewSummarizeFunc,
// which calls the chat-role model directly; no external call is queued with
// the broker. Kept as a function value rather than an interface so this
// package never needs to know about the llm or wiring packages.
type SummarizeFunc func(ctx context.Context, content, instructions string) (string, error)

func hostLimiter(qps float64, burst int) *rate.Limiter {
	if qps <= 0 {
		qps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

// isPrivateOrLocal reports whether host resolves to a loopback, private, or
// link-local address, per §4.C's "disallows localhost/private IPs".
func isPrivateOrLocal(host string) bool {
	h := host
	if i := strings.LastIndex(host, ":"); i >= 0 {
		h = host[:i]
	}
	if h == "localhost" {
		return true
	}
	ips, err := net.LookupIP(h)
	if err != nil {
		// Unresolvable host: let the HTTP client's own error surface
		// rather than silently treating it as a network block.
		return false
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}
	return false
}

func fetch(ctx context.Context, limiter *rate.Limiter, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", tools.Wrap(tools.KindInvalidParams, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", tools.Errorf(tools.KindInvalidParams, "unsupported scheme %q", parsed.Scheme)
	}
	if isPrivateOrLocal(parsed.Host) {
		return "", tools.Errorf(tools.KindPathNotAllowed, "fetching local or private network targets is not permitted")
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return "", tools.Wrap(tools.KindFetchTimeout, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", tools.Wrap(tools.KindNetworkError, err)
	}
	req.Header.Set("User-Agent", "Hexis/1.0 (+agent)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", tools.Errorf(tools.KindFetchTimeout, "fetch of %s timed out", rawURL)
		}
		return "", tools.Wrap(tools.KindNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", tools.Errorf(tools.KindHTTPError, "fetch of %s returned status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", tools.Wrap(tools.KindNetworkError, err)
	}
	return extractText(body), nil
}

// extractText strips HTML tags down to readable text. Parse failures fall
// back to the raw body, since a non-HTML response (plain text, JSON) is
// still useful content.
func extractText(body []byte) string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return string(body)
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}

// WebSearch queries the configured SearchProvider.
type WebSearch struct {
	Provider SearchProvider
}

func (WebSearch) Spec() tools.Spec {
	return tools.Spec{
		Name:             "web_search",
		Description:      "Search the web via the configured search provider.",
		Category:         tools.CategoryWeb,
		EnergyCost:       3,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"integer"}},"required":["query"]}`),
	}
}

func (w WebSearch) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if w.Provider == nil {
		return tools.Result{}, tools.Errorf(tools.KindMissingConfig, "no search provider configured")
	}
	query, _ := args["query"].(string)
	if query == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "query is required")
	}
	limit := 10
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	hits, err := w.Provider.Search(ec.Go, query, limit)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindNetworkError, err)
	}
	results := make([]map[string]any, len(hits))
	for i, h := range hits {
		results[i] = map[string]any{"title": h.Title, "url": h.URL, "snippet": h.Snippet}
	}
	return tools.Result{Output: map[string]any{"results": results}}, nil
}

// WebFetch retrieves and extracts the readable text of a URL.
type WebFetch struct {
	Limiter *rate.Limiter
}

// NewWebFetch builds a WebFetch with one QPS limiter shared by every fetch,
// whatever the host.
func NewWebFetch(qps float64, burst int) WebFetch {
	return WebFetch{Limiter: hostLimiter(qps, burst)}
}

func (WebFetch) Spec() tools.Spec {
	return tools.Spec{
		Name:             "web_fetch",
		Description:      "Fetch a URL and extract its readable text content.",
		Category:         tools.CategoryWeb,
		EnergyCost:       2,
		IsReadOnly:       true,
		SupportsParallel: true,
		Parameters:       tools.MustSchema(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`),
	}
}

func (w WebFetch) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "url is required")
	}
	ctx, cancel := context.WithTimeout(ec.Go, 20*time.Second)
	defer cancel()
	content, err := fetch(ctx, w.Limiter, rawURL)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Output: map[string]any{"content": content, "url": rawURL}}, nil
}

// WebSummarize fetches a URL then routes the content through the
// external-call broker for LLM summarization.
type WebSummarize struct {
	Limiter   *rate.Limiter
	Summarize SummarizeFunc
}

func (WebSummarize) Spec() tools.Spec {
	return tools.Spec{
		Name:        "web_summarize",
		Description: "Fetch a URL and summarize its content via the language model.",
		Category:    tools.CategoryWeb,
		EnergyCost:  6,
		IsReadOnly:  true,
		Parameters:  tools.MustSchema(`{"type":"object","properties":{"url":{"type":"string"},"instructions":{"type":"string"}},"required":["url"]}`),
	}
}

func (w WebSummarize) Execute(ec *tools.ExecContext, args map[string]any) (tools.Result, error) {
	if w.Summarize == nil {
		return tools.Result{}, tools.Errorf(tools.KindMissingConfig, "no summarization backend configured")
	}
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return tools.Result{}, tools.Errorf(tools.KindInvalidParams, "url is required")
	}
	instructions, _ := args["instructions"].(string)

	fetchCtx, cancel := context.WithTimeout(ec.Go, 20*time.Second)
	content, err := fetch(fetchCtx, w.Limiter, rawURL)
	cancel()
	if err != nil {
		return tools.Result{}, err
	}

	summary, err := w.Summarize(ec.Go, content, instructions)
	if err != nil {
		return tools.Result{}, tools.Wrap(tools.KindExecutionFailed, err)
	}
	return tools.Result{Output: map[string]any{"summary": summary, "url": rawURL}}, nil
}
