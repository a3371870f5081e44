package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxFetchBody = 10 * 1024 * 1024 // 10 MB, matching the teacher corpus's response cap

// HTTPFetch is a reference agent that treats the task prompt as a URL and
// performs a GET request, returning a truncated body as its summary. It
// demonstrates an agent whose failures must be tagged transient/permanent:
// network errors and 5xx are transient, 4xx (other than 429) is permanent.
type HTTPFetch struct {
	client *http.Client
}

// NewHTTPFetch returns the http_fetch reference agent.
func NewHTTPFetch() *HTTPFetch {
	return &HTTPFetch{client: &http.Client{}}
}

func (h *HTTPFetch) Type() string { return "http_fetch" }

func (h *HTTPFetch) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	url := strings.TrimSpace(in.Prompt)
	if url == "" {
		return Result{}, Permanent(fmt.Errorf("http_fetch: empty url in prompt"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, Permanent(fmt.Errorf("build request: %w", err))
	}

	if log != nil {
		log(LogLine{Level: "info", Message: "fetching " + url})
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, Transient(fmt.Errorf("fetch %s: %w", url, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return Result{}, Transient(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Result{}, Transient(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	case resp.StatusCode >= 400:
		return Result{}, Permanent(fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}

	summary := string(body)
	if len(summary) > 500 {
		summary = summary[:500] + "…"
	}

	return Result{
		Summary: summary,
		Artifacts: []ArtifactBlob{
			{MimeType: resp.Header.Get("Content-Type"), Data: body},
		},
	}, nil
}
