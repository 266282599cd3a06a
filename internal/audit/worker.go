package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit entries from a channel and exports them to a Sink.
// Export is best effort: a failed publish is logged and the worker moves on.
type Worker struct {
	sink   Sink
	inbox  <-chan Entry
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Entry, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run blocks until ctx is cancelled or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Publish(ctx, entry); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "failed to export audit entry",
					"entry_id", entry.ID,
					"action", entry.Action,
					"error", err,
				)
			}
		}
	}
}
