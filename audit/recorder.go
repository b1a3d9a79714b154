package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/thisisjab/docquery/entity"
)

// Storage persists request records. Buffering is handled by Recorder.
type Storage interface {
	StoreRequests(ctx context.Context, records ...entity.RequestRecord) error
}

// Recorder buffers request records and flushes them to a Storage.
// Never disable buffering and scheduled flushing together.
type Recorder struct {
	storage Storage
	logger  *slog.Logger
	buffer  []entity.RequestRecord
	mu      sync.Mutex
	wg      sync.WaitGroup

	// bufferMaxSize is the number of records held before an immediate flush.
	// Zero disables size based flushing.
	bufferMaxSize uint

	// flushInterval is the period of scheduled flushes. Zero disables them.
	flushInterval time.Duration
}

type Config struct {
	BufferSize    uint          `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func NewRecorder(logger *slog.Logger, storage Storage, cfg Config) (*Recorder, error) {
	if storage == nil {
		return nil, errors.New("audit storage is required")
	}

	if cfg.BufferSize == 0 && cfg.FlushInterval == 0 {
		return nil, errors.New("buffer size and flush interval cannot both be zero")
	}

	if cfg.FlushInterval < 0 {
		return nil, errors.New("flush interval cannot be negative")
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Recorder{
		logger:        logger,
		storage:       storage,
		bufferMaxSize: cfg.BufferSize,
		buffer:        make([]entity.RequestRecord, 0, cfg.BufferSize),
		flushInterval: cfg.FlushInterval,
	}, nil
}

// Run flushes on every tick until ctx is done, then flushes what is left and
// waits for pending writes.
func (r *Recorder) Run(ctx context.Context) {
	var tick <-chan time.Time

	if r.flushInterval > 0 {
		ticker := time.NewTicker(r.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled; the final write gets a fresh one.
			r.Flush(context.WithoutCancel(ctx))
			r.wg.Wait()
			return
		case <-tick:
			r.Flush(ctx)
		}
	}
}

// Record buffers records. It never blocks on storage.
func (r *Recorder) Record(ctx context.Context, records ...entity.RequestRecord) {
	if len(records) == 0 {
		return
	}

	var toFlush []entity.RequestRecord

	r.mu.Lock()
	r.buffer = append(r.buffer, records...)

	if r.bufferMaxSize > 0 && uint(len(r.buffer)) >= r.bufferMaxSize {
		toFlush = r.buffer
		r.buffer = make([]entity.RequestRecord, 0, r.bufferMaxSize)
	}
	r.mu.Unlock()

	if toFlush != nil {
		r.store(ctx, toFlush)
	}
}

// Flush hands the current buffer to storage asynchronously.
func (r *Recorder) Flush(ctx context.Context) {
	var toFlush []entity.RequestRecord

	r.mu.Lock()
	if len(r.buffer) > 0 {
		toFlush = r.buffer
		r.buffer = make([]entity.RequestRecord, 0, r.bufferMaxSize)
	}
	r.mu.Unlock()

	if len(toFlush) > 0 {
		r.store(ctx, toFlush)
	}
}

// Wait blocks until every started write has returned.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// store writes in the background. The write outlives the request that filled
// the buffer, so it only keeps the values of ctx, not its cancellation.
func (r *Recorder) store(ctx context.Context, records []entity.RequestRecord) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Go(func() {
		if err := r.storage.StoreRequests(ctx, records...); err != nil {
			r.logger.Error("failed to store request records", "count", len(records), "error", err)
			return
		}

		r.logger.Debug("stored request records", "count", len(records))
	})
}
