package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"latksync/internal/stroke"
)

type HybridOptions struct {
	QueueSize     int           // pending cold writes before Append falls back to a direct write
	BatchSize     int           // cold write batch size
	FlushInterval time.Duration // max age of a partial batch
	DirectTimeout time.Duration // timeout of the direct-write fallback
}

func DefaultHybridOptions() HybridOptions {
	return HybridOptions{
		QueueSize:     10000,
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
		DirectTimeout: 500 * time.Millisecond,
	}
}

// HybridStore writes through to a hot store (Redis) and batches writes to a
// cold store (Postgres) on a background goroutine. Reads prefer the hot store.
type HybridStore struct {
	hot    BatchStore
	cold   BatchStore
	opts   HybridOptions
	logger *slog.Logger

	writeChan chan Entry
	stopChan  chan struct{}
	done      chan struct{}

	mu     sync.RWMutex // held for writing only while closing
	closed atomic.Bool
}

// NewHybridStore starts the batch writer; Close stops it after a final flush.
func NewHybridStore(hot, cold BatchStore, opts HybridOptions, logger *slog.Logger) *HybridStore {
	d := DefaultHybridOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = d.QueueSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = d.BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = d.FlushInterval
	}
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = d.DirectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &HybridStore{
		hot:       hot,
		cold:      cold,
		opts:      opts,
		logger:    logger.With("component", "archive"),
		writeChan: make(chan Entry, opts.QueueSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	go h.batchWriter()
	return h
}

// Append writes to the hot store immediately and queues the cold write. When
// the queue is full the cold write happens inline with a short timeout.
func (h *HybridStore) Append(ctx context.Context, room string, s stroke.Stroke) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed.Load() {
		return ErrClosed
	}

	if err := h.hot.Append(ctx, room, s); err != nil {
		h.logger.Error("hot_write_failed", "room", room, "frame", s.Index, "error", err)
		return fmt.Errorf("hot write failed: %w", err)
	}

	if depth := len(h.writeChan); depth > cap(h.writeChan)/2 {
		h.logger.Warn("write_queue_high_watermark", "queue_depth", depth)
	}

	select {
	case h.writeChan <- Entry{Room: room, Stroke: s.Clone()}:
	default:
		h.logger.Warn("write_queue_full", "room", room)
		dctx, cancel := context.WithTimeout(ctx, h.opts.DirectTimeout)
		defer cancel()
		if err := h.cold.Append(dctx, room, s); err != nil {
			h.logger.Error("cold_direct_write_failed", "error", err)
			return fmt.Errorf("cold direct write failed: %w", err)
		}
	}
	return nil
}

// Frame reads the hot store and falls back to the cold one on a miss.
func (h *HybridStore) Frame(ctx context.Context, room string, index int) ([]stroke.Stroke, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	strokes, err := h.hot.Frame(ctx, room, index)
	if err == nil && len(strokes) > 0 {
		return strokes, nil
	}
	if err != nil {
		h.logger.Warn("hot_read_failed", "room", room, "frame", index, "error", err)
	}
	h.logger.Debug("hot_miss_fallback_to_cold", "room", room, "frame", index)
	return h.cold.Frame(ctx, room, index)
}

// Indices merges both stores: expired hot keys and queued cold writes each
// hide frames from one side.
func (h *HybridStore) Indices(ctx context.Context, room string) ([]int, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	hot, err := h.hot.Indices(ctx, room)
	if err != nil {
		h.logger.Warn("hot_read_failed", "room", room, "error", err)
	}
	cold, err := h.cold.Indices(ctx, room)
	if err != nil {
		return nil, err
	}
	return mergeIndices(hot, cold), nil
}

func (h *HybridStore) batchWriter() {
	defer close(h.done)

	ticker := time.NewTicker(h.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, h.opts.BatchSize)
	h.logger.Info("batch_writer_started", "interval", h.opts.FlushInterval.String(), "batch_size", h.opts.BatchSize)

	for {
		select {
		case <-h.stopChan:
			// nothing is sent once closed is set, so the queue can be drained
		drain:
			for {
				select {
				case e := <-h.writeChan:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			h.logger.Info("batch_writer_shutting_down", "remaining", len(batch))
			h.flushBatch(batch)
			return

		case e := <-h.writeChan:
			batch = append(batch, e)
			if len(batch) >= h.opts.BatchSize {
				h.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				h.logger.Debug("periodic_batch_flush", "count", len(batch))
				h.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (h *HybridStore) flushBatch(batch []Entry) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.cold.AppendBatch(ctx, batch); err != nil {
		h.logger.Error("batch_insert_failed", "count", len(batch), "error", err)
		return
	}
	h.logger.Info("batch_insert_success",
		"count", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close flushes queued writes and closes both stores. Later calls do nothing.
func (h *HybridStore) Close() error {
	h.mu.Lock()
	if !h.closed.CompareAndSwap(false, true) {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	close(h.stopChan)
	<-h.done

	var errs []error
	if err := h.hot.Close(); err != nil {
		h.logger.Error("failed_to_close_hot_store", "error", err)
		errs = append(errs, err)
	}
	if err := h.cold.Close(); err != nil {
		h.logger.Error("failed_to_close_cold_store", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
