package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"courier/contract"
)

// StorageGCWorker periodically runs badger's value-log garbage collection.
// Badger never reclaims value-log space on its own; without this the store
// grows unbounded under sustained traffic.
type StorageGCWorker struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewStorageGCWorker(log *slog.Logger, db *badger.DB, interval time.Duration) *StorageGCWorker {
	return &StorageGCWorker{log: log, db: db, interval: interval}
}

func (w *StorageGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping storage GC")
			return nil
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there was nothing
			// worth collecting; that is the normal idle case.
			err := w.db.RunValueLogGC(0.5)
			switch {
			case err == nil:
				w.log.Debug("Value log GC rewrote a file")
			case errors.Is(err, badger.ErrNoRewrite):
			default:
				w.log.Warn("Value log GC failed", "err", err)
			}
		}
	}
}

var _ contract.Worker = (*StorageGCWorker)(nil)
