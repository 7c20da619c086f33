package inbox

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Inbox provides a generic typed interface for message channels with
// slow-send reporting.
// T is the message type that will be sent through the inbox
type Inbox[T any] struct {
	ch           chan T
	slowAfter    time.Duration
	logger       *slog.Logger
	stats        *Stats
	maxDepthSeen atomic.Int64
}

// Stats tracks inbox usage and performance metrics
type Stats struct {
	TotalSent     int64
	TotalReceived int64
	SlowSendCount int64
	CurrentDepth  int
	MaxDepthSeen  int
}

// New creates a new inbox with the specified buffer size. Sends that block
// longer than slowAfter are logged once and keep waiting.
func New[T any](bufferSize int, slowAfter time.Duration, logger *slog.Logger) *Inbox[T] {
	return &Inbox[T]{
		ch:        make(chan T, bufferSize),
		slowAfter: slowAfter,
		logger:    logger,
		stats:     &Stats{},
	}
}

// Send delivers a message, blocking until the receiver has room or ctx is
// done. Messages are never dropped while ctx is live.
// Returns false only if ctx ended first.
func (ib *Inbox[T]) Send(ctx context.Context, msg T) bool {
	select {
	case ib.ch <- msg:
		ib.sent()
		return true
	default:
	}

	slow := time.NewTimer(ib.slowAfter)
	defer slow.Stop()

	for {
		select {
		case ib.ch <- msg:
			ib.sent()
			return true
		case <-slow.C:
			atomic.AddInt64(&ib.stats.SlowSendCount, 1)
			ib.logger.Warn("inbox send blocked",
				"waited", ib.slowAfter,
				"current_depth", len(ib.ch))
		case <-ctx.Done():
			return false
		}
	}
}

func (ib *Inbox[T]) sent() {
	atomic.AddInt64(&ib.stats.TotalSent, 1)
	depth := int64(len(ib.ch))
	for {
		seen := ib.maxDepthSeen.Load()
		if depth <= seen || ib.maxDepthSeen.CompareAndSwap(seen, depth) {
			return
		}
	}
}

// C returns the receive side of the inbox for use in select statements.
// Callers must call Received after every message taken from C.
func (ib *Inbox[T]) C() <-chan T {
	return ib.ch
}

// Received records that a message taken from C was processed
func (ib *Inbox[T]) Received() {
	atomic.AddInt64(&ib.stats.TotalReceived, 1)
}

// TryReceive attempts to receive a message without blocking
// Returns the message and true if available, zero value and false otherwise
func (ib *Inbox[T]) TryReceive() (T, bool) {
	select {
	case msg := <-ib.ch:
		ib.Received()
		return msg, true
	default:
		var zero T
		return zero, false
	}
}

// GetStats returns a copy of the current inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	return Stats{
		TotalSent:     atomic.LoadInt64(&ib.stats.TotalSent),
		TotalReceived: atomic.LoadInt64(&ib.stats.TotalReceived),
		SlowSendCount: atomic.LoadInt64(&ib.stats.SlowSendCount),
		CurrentDepth:  len(ib.ch),
		MaxDepthSeen:  int(ib.maxDepthSeen.Load()),
	}
}

// Len returns the current number of messages in the inbox
func (ib *Inbox[T]) Len() int {
	return len(ib.ch)
}
