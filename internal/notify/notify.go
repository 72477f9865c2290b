// Package notify composes and delivers subscriber-facing messages on the
// delivery bus. The bus terminates this service's responsibility: downstream
// consumers handle SMS/email fan-out per subscriber.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluemoonski/bluemoon-data/internal/store"
)

// Kind tags the message payload for downstream routing.
type Kind string

const (
	KindNotableRuns Kind = "notable_runs"
	KindNoRuns      Kind = "no_runs"
	KindAlert       Kind = "ops_alert"
)

// Message is one delivery-bus payload.
type Message struct {
	Kind       Kind      `json:"kind"`
	ResortID   int64     `json:"resort_id"`
	ResortSlug string    `json:"resort_slug"`
	Topic      string    `json:"topic"`
	Date       string    `json:"date"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	RunNames   []string  `json:"run_names,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher delivers a message and returns a delivery identifier on success.
// No identifier means no delivery: callers must not persist a notification
// or alert row without one.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (string, error)
}

// NotableMessage builds the subscriber notification for a day's rarely
// groomed runs.
func NotableMessage(resort store.Resort, notable store.NotableReport, sentAt time.Time) Message {
	names := make([]string, len(notable.Runs))
	for i, r := range notable.Runs {
		names[i] = r.Name
	}
	return Message{
		Kind:       KindNotableRuns,
		ResortID:   resort.ID,
		ResortSlug: resort.Slug,
		Topic:      resort.Topic,
		Date:       notable.Date.Format(time.DateOnly),
		Subject:    fmt.Sprintf("Rarely groomed today at %s", resort.Name),
		Body:       fmt.Sprintf("%s groomed today: %s", resort.Name, joinNames(names)),
		RunNames:   names,
		SentAt:     sentAt,
	}
}

// NoRunsMessage builds the "nothing groomed today" notice.
func NoRunsMessage(resort store.Resort, rep store.DailyReport, sentAt time.Time) Message {
	return Message{
		Kind:       KindNoRuns,
		ResortID:   resort.ID,
		ResortSlug: resort.Slug,
		Topic:      resort.Topic,
		Date:       rep.Date.Format(time.DateOnly),
		Subject:    fmt.Sprintf("No grooming reported at %s", resort.Name),
		Body:       fmt.Sprintf("%s reported no groomed runs for %s.", resort.Name, rep.Date.Format(time.DateOnly)),
		SentAt:     sentAt,
	}
}

// AlertMessage builds the operational alert for a resort whose expected
// notification never fired.
func AlertMessage(resort store.Resort, notable store.NotableReport, sentAt time.Time) Message {
	return Message{
		Kind:       KindAlert,
		ResortID:   resort.ID,
		ResortSlug: resort.Slug,
		Topic:      resort.Topic,
		Date:       notable.Date.Format(time.DateOnly),
		Subject:    fmt.Sprintf("Missed notification for %s", resort.Name),
		Body: fmt.Sprintf("%s has not sent its expected grooming notification for %s.",
			resort.Name, notable.Date.Format(time.DateOnly)),
		SentAt: sentAt,
	}
}

// joinNames renders a run list as prose: "A", "A and B", "A, B and C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
