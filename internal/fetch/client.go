package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Client fetches normalized grooming feeds over HTTP. It implements Fetcher.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a feed client with the given timeout and request budget.
func NewClient(timeout time.Duration, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// feedDocument is the normalized feed wire format.
type feedDocument struct {
	Date string `json:"date"`
	Runs []struct {
		Name       string  `json:"name"`
		Difficulty *string `json:"difficulty"`
	} `json:"runs"`
}

// FetchReport performs a rate-limited GET against the resort's feed URL.
func (c *Client) FetchReport(ctx context.Context, resort store.Resort) (time.Time, []report.GroomedRun, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resort.SourceURL, nil)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("fetch %s feed: %w", resort.Slug, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("read feed body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, nil, fmt.Errorf("%s feed returned %d: %s", resort.Slug, resp.StatusCode, truncate(body, 200))
	}

	var doc feedDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return time.Time{}, nil, fmt.Errorf("decode %s feed: %w", resort.Slug, err)
	}

	date, err := time.ParseInLocation(time.DateOnly, doc.Date, resort.Location())
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("parse feed date %q: %w", doc.Date, err)
	}

	runs := make([]report.GroomedRun, 0, len(doc.Runs))
	for _, r := range doc.Runs {
		if r.Name == "" {
			continue
		}
		runs = append(runs, report.GroomedRun{Name: r.Name, Difficulty: r.Difficulty})
	}
	return date, runs, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
