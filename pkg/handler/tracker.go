package handler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/pkg/offset"
	"github.com/downfa11-org/cursus-quickstart/pkg/types"
	"github.com/downfa11-org/cursus-quickstart/util"
)

const DefaultReportBatchSize = 1000

// Tracker owns the dedup and throughput state of one handler. Separate
// trackers never share counters.
type Tracker struct {
	store     offset.SeenStore
	batchSize int64

	handled     atomic.Int64
	duplicates  atomic.Int64
	ackFailures atomic.Int64
	windowStart atomic.Int64 // unix nanos, 0 until the first message
}

// Stats is a point-in-time view of a Tracker.
type Stats struct {
	Handled     int64
	Duplicates  int64
	AckFailures int64
	Elapsed     time.Duration
}

func NewTracker(store offset.SeenStore, batchSize int64) *Tracker {
	if store == nil {
		store = offset.NewMemoryStore()
	}
	if batchSize <= 0 {
		batchSize = DefaultReportBatchSize
	}
	return &Tracker{store: store, batchSize: batchSize}
}

// Accept records a delivery and reports whether it is the first one for its
// offset. A store failure is logged and the delivery is counted as new.
func (t *Tracker) Accept(ctx context.Context, msg *types.Message) bool {
	key := offset.Key{Topic: msg.Topic, QueueID: msg.QueueID, Offset: msg.QueueOffset}

	isNew, err := t.store.MarkSeen(ctx, key)
	if err != nil {
		util.Warn("dedup store failed for %s, counting as new: %v", key, err)
		isNew = true
	}

	if !isNew {
		t.duplicates.Add(1)
		metrics.MessagesDuplicate.Inc()
		util.Debug("duplicated offset %s", key)
		return false
	}

	metrics.MessagesHandled.Inc()
	count := t.handled.Add(1)
	if count == 1 {
		t.windowStart.Store(time.Now().UnixNano())
	}
	if count%t.batchSize == 0 {
		elapsed := t.Elapsed()
		util.Info("Total handled %d messages, time spent: %dms", count, elapsed.Milliseconds())
		metrics.ObserveThroughput(count, elapsed.Seconds())
	}
	return true
}

func (t *Tracker) ackFailed() {
	t.ackFailures.Add(1)
	metrics.AckFailures.Inc()
}

func (t *Tracker) Handled() int64 { return t.handled.Load() }

func (t *Tracker) Duplicates() int64 { return t.duplicates.Load() }

func (t *Tracker) AckFailures() int64 { return t.ackFailures.Load() }

// Elapsed is the time since the first message of the current window.
func (t *Tracker) Elapsed() time.Duration {
	start := t.windowStart.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

// Reset starts a new counting window. Seen offsets are kept.
func (t *Tracker) Reset() {
	t.handled.Store(0)
	t.windowStart.Store(0)
}

func (t *Tracker) Stats() Stats {
	return Stats{
		Handled:     t.Handled(),
		Duplicates:  t.Duplicates(),
		AckFailures: t.AckFailures(),
		Elapsed:     t.Elapsed(),
	}
}
