package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/processiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// NotificationJobArgs is the JSON snapshot of a committed process change.
// The worker never reads the store back.
type NotificationJobArgs struct {
	Notification string    `json:"notification"`
	ProcessID    string    `json:"process_id"`
	ProcessType  string    `json:"process_type"`
	Status       string    `json:"status"`
	PhaseID      string    `json:"phase_id,omitempty"`
	Owner        string    `json:"owner"`
	EventID      string    `json:"event_id"`
	FromPhaseID  string    `json:"from_phase_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	Actor        string    `json:"actor"`
	At           time.Time `json:"at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "process.notification" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a notification as an async job in River.
func (p *Publisher) Publish(ctx context.Context, n domain.Notification) error {
	_, err := p.client.Insert(ctx, argsFor(n), nil)
	if err != nil {
		return fmt.Errorf("enqueuing %s job: %w", n.Kind, err)
	}
	return nil
}

func argsFor(n domain.Notification) NotificationJobArgs {
	return NotificationJobArgs{
		Notification: string(n.Kind),
		ProcessID:    n.Process.ID,
		ProcessType:  string(n.Process.Type),
		Status:       string(n.Process.Status),
		PhaseID:      n.Process.CurrentPhaseID,
		Owner:        string(n.Process.CurrentOwner),
		EventID:      n.Event.ID,
		FromPhaseID:  n.Event.FromPhaseID,
		Note:         n.Event.Note,
		Actor:        n.Event.Actor,
		At:           n.Event.At.UTC(),
	}
}
