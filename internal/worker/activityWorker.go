package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/models"
)

var (
	ErrQueueFull = errors.New("activity queue is full")
	ErrClosed    = errors.New("activity worker is closed")
)

type ActivityRepo interface {
	Append(context.Context, []models.LinkActivity) error
}

// ActivityWorker appends activity entries in batches off the request path.
// Failed batches are logged and reported on Errors; they are not retried.
type ActivityWorker struct {
	in        chan models.LinkActivity
	errs      chan error
	done      chan struct{}
	logger    *zap.Logger
	repo      ActivityRepo
	batchSize int
	interval  time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewActivityWorker(logger *zap.Logger, repo ActivityRepo, batchSize int, interval time.Duration) *ActivityWorker {
	if batchSize < 1 {
		batchSize = 25
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &ActivityWorker{
		in:        make(chan models.LinkActivity, batchSize*4),
		errs:      make(chan error, 16),
		done:      make(chan struct{}),
		logger:    logger,
		repo:      repo,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Record enqueues entry without blocking.
func (w *ActivityWorker) Record(ctx context.Context, entry models.LinkActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrClosed
	}

	select {
	case w.in <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Errors reports failed batch appends. Errors are dropped when nobody reads.
func (w *ActivityWorker) Errors() <-chan error {
	return w.errs
}

// Run flushes queued entries until Close is called. Start it in its own
// goroutine.
func (w *ActivityWorker) Run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var batch []models.LinkActivity

	flush := func() {
		w.logger.Debug("Flushing activity entries", zap.Int("count", len(batch)))

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := w.repo.Append(ctx, batch); err != nil {
			w.logger.Error("Cannot append activity entries", zap.Int("count", len(batch)), zap.Error(err))
			select {
			case w.errs <- err:
			default:
			}
		}
		batch = nil
	}

	for {
		select {
		case entry, ok := <-w.in:
			if !ok {
				if len(batch) > 0 {
					flush()
				}
				return
			}
			batch = append(batch, entry)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			if len(batch) == 0 {
				continue
			}
			flush()
		}
	}
}

// Close stops accepting entries and waits until Run has flushed the queue.
func (w *ActivityWorker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.in)
	}
	w.mu.Unlock()

	<-w.done
}
