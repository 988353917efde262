package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// HistoryPurgeJobName names the history retention job in logs.
const HistoryPurgeJobName = "history-purge"

// HistoryPurger deletes history entries older than a cutoff.
type HistoryPurger interface {
	PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryPurgeJob returns a job that removes history older than retention.
func HistoryPurgeJob(purger HistoryPurger, retention time.Duration, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cutoff := now().Add(-retention)
		n, err := purger.PurgeHistoryBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("Purged expired chat history", "entries", n, "cutoff", cutoff)
		}
		return nil
	}
}
