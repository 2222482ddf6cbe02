package river

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Migrate applies River's own migrations (river_job, river_leader, ...).
// They are versioned apart from the application's goose schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("running river migrations: %w", err)
	}
	return nil
}

// Setup migrates the queue tables and returns a client that runs
// NotificationWorker. Nothing is processed until client.Start.
func Setup(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Client, error) {
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &NotificationWorker{logger: logger})

	client, err := river.NewClient(riversqlite.New(db), &river.Config{
		Logger: logger,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
