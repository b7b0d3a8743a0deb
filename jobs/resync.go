package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStoresResync re-fetches every mirrored table, recovering from
	// change-feed events missed during an outage.
	TaskStoresResync = "stores:resync"
)

// Resyncer re-fetches one store's backing table from scratch.
type Resyncer interface {
	FetchAll(ctx context.Context) error
}

// NewStoresResyncTask constructs the resync task. The payload is empty; the
// handler closes over the stores.
func NewStoresResyncTask() *asynq.Task {
	return asynq.NewTask(TaskStoresResync, nil)
}

// NewStoresResyncHandler builds the handler that resyncs every store. A
// single failing store does not stop the others; the first error is
// returned so Asynq retries the run.
func NewStoresResyncHandler(logger *slog.Logger, stores map[string]Resyncer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var firstErr error
		for name, store := range stores {
			if err := store.FetchAll(ctx); err != nil {
				logger.Error("resync store", slog.String("store", name), slog.Any("error", err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			logger.Info("resynced store", slog.String("store", name))
		}
		return firstErr
	}
}
