package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// NotificationWorker drains process notifications from the River queue.
// It only logs them; delivery to external subscribers is not wired yet.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]

	logger *slog.Logger
}

// Work processes a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	logger := w.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "process notification",
		"notification", job.Args.Notification,
		"process_id", job.Args.ProcessID,
		"process_type", job.Args.ProcessType,
		"status", job.Args.Status,
		"phase_id", job.Args.PhaseID,
		"owner", job.Args.Owner,
		"actor", job.Args.Actor,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
