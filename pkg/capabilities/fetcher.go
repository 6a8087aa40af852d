package capabilities

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// MaxPageText bounds the website text handed to the AI capability.
const MaxPageText = 12000

const maxPageBytes = 2 << 20

// HTTPFetcher fetches pages directly and falls back to a CORS-style proxy that
// takes the target URL as a query parameter.
type HTTPFetcher struct {
	proxyURL string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher. An empty proxyURL disables the fallback.
func NewHTTPFetcher(proxyURL string, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		proxyURL: proxyURL,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   logger,
	}
}

// Fetch returns the page body, or an empty string when both paths fail.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) string {
	target = NormalizeURL(target)
	if target == "" {
		return ""
	}

	body, err := f.get(ctx, target)
	if err == nil && body != "" {
		return body
	}

	f.logger.WarnContext(ctx, "direct fetch failed", "url", target, "error", err)

	if f.proxyURL == "" {
		return ""
	}

	body, err = f.get(ctx, f.proxyURL+url.QueryEscape(target))
	if err != nil {
		f.logger.WarnContext(ctx, "proxy fetch failed", "url", target, "error", err)

		return ""
	}

	return body
}

func (f *HTTPFetcher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ErrUnexpectedStatus
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// NormalizeURL adds a scheme to bare hostnames. It returns "" for blank input.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	return raw
}

// ExtractText returns the visible text of an HTML document, whitespace
// collapsed and truncated to limit runes.
func ExtractText(document string, limit int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(document))

	var (
		builder strings.Builder
		skip    int
	)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return truncate(strings.Join(strings.Fields(builder.String()), " "), limit)
		case html.StartTagToken:
			if isInvisible(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if isInvisible(tokenizer) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				builder.Write(tokenizer.Text())
				builder.WriteByte(' ')
			}
		}
	}
}

func isInvisible(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()

	switch string(name) {
	case "script", "style", "noscript", "svg", "template":
		return true
	default:
		return false
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}
