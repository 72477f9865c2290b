// Package fetch retrieves normalized grooming report feeds over HTTP.
//
// Resort-specific PDF/HTML/JSON dialects are parsed upstream; the feed this
// client consumes is a single normalized JSON document per resort:
//
//	{"date": "2026-01-15", "runs": [{"name": "Jackpot", "difficulty": "blue"}]}
//
// Requests carry a timeout and a token-bucket rate limit so a stalled or
// chatty upstream never blocks other resorts' cycles.
package fetch

import (
	"context"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/report"
	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Fetcher supplies the day's groomed-run list for a resort, already parsed.
type Fetcher interface {
	FetchReport(ctx context.Context, resort store.Resort) (time.Time, []report.GroomedRun, error)
}
