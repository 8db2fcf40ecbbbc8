package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
)

type Refresher interface {
	Refresh(ctx context.Context, id string) error
}

// * RefreshWorker refreshes every snapshot on a ticker and single users on request.
// * It doubles as the in-process refresh queue when no broker is configured.
type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
	requests  chan string
}

func NewRefreshWorker(refresher Refresher, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		interval:  interval,
		requests:  make(chan string, 64),
	}
}

// * PublishRefresh queues a request without blocking; a full queue is reported, not waited on
func (w *RefreshWorker) PublishRefresh(ctx context.Context, userID string) error {
	select {
	case w.requests <- userID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New(
			"QUEUE_FULL",
			"Refresh queue is full",
			"Too many refresh requests are pending, try again later",
			nil,
			errors.LevelError,
		).WithStatus(http.StatusServiceUnavailable)
	}
}

func (w *RefreshWorker) Run(ctx context.Context) {
	if err := w.refresher.Refresh(ctx, ""); err != nil {
		logger.Error("initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.refresher.Refresh(ctx, ""); err != nil {
				logger.Error("refresh failed: %v", err)
			} else {
				logger.Info("successfully refreshed snapshots")
			}

		case id := <-w.requests:
			if err := w.refresher.Refresh(ctx, id); err != nil {
				logger.Error("requested refresh of %q failed: %v", id, err)
			}

		case <-ctx.Done():
			logger.Info("stopping refresh worker")
			return
		}
	}
}
