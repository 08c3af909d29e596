package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/pkg/scheduler"
	"github.com/downfa11-org/cursus-quickstart/pkg/types"
)

type recorder struct {
	mu      sync.Mutex
	msgs    []*types.Message
	ackErrs []error
	panicOn int64
}

func (r *recorder) Handle(msg *types.Message, mc types.MessageContext) {
	if msg.QueueOffset == r.panicOn {
		panic("boom")
	}
	err := mc.OnMessageHandled(msg)
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.ackErrs = append(r.ackErrs, err)
	r.mu.Unlock()
}

func (r *recorder) offsets(queueID int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.msgs {
		if m.QueueID == queueID {
			out = append(out, m.QueueOffset)
		}
	}
	return out
}

type fakeCommitter struct {
	mu    sync.Mutex
	calls []map[string]map[int32]kgo.EpochOffset
	err   error
}

func (f *fakeCommitter) commit(_ context.Context, offsets map[string]map[int32]kgo.EpochOffset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, offsets)
	return f.err
}

func (f *fakeCommitter) last() map[string]map[int32]kgo.EpochOffset {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func newTestConsumer(t *testing.T, h types.MessageHandler) (*Consumer, *fakeCommitter) {
	t.Helper()
	cfg := &config.ConsumerConfig{}
	cfg.Normalize()

	c := NewConsumer(cfg, scheduler.New(scheduler.WithMetrics(false)))
	fc := &fakeCommitter{}
	c.handler = h
	c.commit = fc.commit
	t.Cleanup(func() {
		c.mu.Lock()
		workers := c.workers
		c.workers = make(map[types.MessageQueue]*queueWorker)
		c.mu.Unlock()
		stopWorkers(workers)
	})
	return c, fc
}

func records(topic string, partition int32, offsets ...int64) []*kgo.Record {
	recs := make([]*kgo.Record, len(offsets))
	for i, off := range offsets {
		recs[i] = &kgo.Record{Topic: topic, Partition: partition, Offset: off, Value: []byte("v")}
	}
	return recs
}

func TestSubscribeIgnoresDuplicates(t *testing.T) {
	c, _ := newTestConsumer(t, &recorder{panicOn: -1})
	c.Subscribe("a").Subscribe("b").Subscribe("a")
	assert.Equal(t, []string{"a", "b"}, c.topics)
}

func TestStartValidation(t *testing.T) {
	c, _ := newTestConsumer(t, nil)

	_, err := c.Start(nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = c.Start(&recorder{})
	assert.ErrorIs(t, err, ErrNoSubscription)

	require.NoError(t, c.Close())
	c.Subscribe("SampleTopic")
	_, err = c.Start(&recorder{})
	assert.ErrorIs(t, err, ErrConsumerClosed)
	assert.NoError(t, c.Close())
}

func TestClientOptsAreValid(t *testing.T) {
	c, _ := newTestConsumer(t, &recorder{})
	c.Subscribe("SampleTopic")

	cl, err := kgo.NewClient(c.clientOpts()...)
	require.NoError(t, err)
	cl.Close()
}

func TestAssignmentTracksQueues(t *testing.T) {
	c, _ := newTestConsumer(t, &recorder{panicOn: -1})

	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {2, 0}, "a": {1}})
	assert.Equal(t, []types.MessageQueue{{Topic: "a", QueueID: 1}, {Topic: "t", QueueID: 0}, {Topic: "t", QueueID: 2}}, c.GetCurrentQueues())
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.AssignedQueues))

	// reassigning an owned queue keeps the existing worker
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0}})
	assert.Len(t, c.GetCurrentQueues(), 3)

	c.onLost(context.Background(), nil, map[string][]int32{"t": {2}})
	assert.Equal(t, []types.MessageQueue{{Topic: "a", QueueID: 1}, {Topic: "t", QueueID: 0}}, c.GetCurrentQueues())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.AssignedQueues))
}

func TestDeliveryInOrderPerQueue(t *testing.T) {
	rec := &recorder{panicOn: -1}
	c, _ := newTestConsumer(t, rec)
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0, 1}})

	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 0}, records("t", 0, 0, 1, 2))
	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 1}, records("t", 1, 5, 6))
	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 0}, records("t", 0, 3))

	require.Eventually(t, func() bool {
		return len(rec.offsets(0)) == 4 && len(rec.offsets(1)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{0, 1, 2, 3}, rec.offsets(0))
	assert.Equal(t, []int64{5, 6}, rec.offsets(1))

	off, err := c.offsets.Get("t", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), off)
	off, err = c.offsets.Get("t", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), off)
}

func TestDispatchToUnassignedQueueIsDropped(t *testing.T) {
	rec := &recorder{panicOn: -1}
	c, _ := newTestConsumer(t, rec)

	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 9}, records("t", 9, 0))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.offsets(9))
}

func TestHandlerPanicIsContained(t *testing.T) {
	rec := &recorder{panicOn: 1}
	c, _ := newTestConsumer(t, rec)
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0}})

	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 0}, records("t", 0, 0, 1, 2))
	require.Eventually(t, func() bool { return len(rec.offsets(0)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{0, 2}, rec.offsets(0))
}

func TestOnMessageHandled(t *testing.T) {
	c, _ := newTestConsumer(t, &recorder{panicOn: -1})
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0}})

	assert.Error(t, c.OnMessageHandled(nil))

	err := c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 3, QueueOffset: 1})
	assert.ErrorIs(t, err, ErrQueueNotAssigned)

	require.NoError(t, c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 0, QueueOffset: 10}))
	// an older ack never moves the offset back
	require.NoError(t, c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 0, QueueOffset: 4}))
	off, err := c.offsets.Get("t", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(11), off)
}

func TestCommitPending(t *testing.T) {
	c, fc := newTestConsumer(t, &recorder{panicOn: -1})

	require.NoError(t, c.commitPending(context.Background()))
	assert.Empty(t, fc.calls, "nothing to commit")

	c.offsets.Advance("t", 0, 5)
	c.offsets.Advance("t", 1, 8)
	require.NoError(t, c.commitTask(context.Background()))
	assert.Equal(t, map[string]map[int32]kgo.EpochOffset{
		"t": {0: {Epoch: -1, Offset: 5}, 1: {Epoch: -1, Offset: 8}},
	}, fc.last())

	_, err := c.offsets.Get("t", 0)
	assert.Error(t, err, "drained after commit")
}

func TestCommitFailureRequeues(t *testing.T) {
	c, fc := newTestConsumer(t, &recorder{panicOn: -1})
	before := testutil.ToFloat64(metrics.CommitFailures)

	fc.err = errors.New("coordinator unavailable")
	c.offsets.Advance("t", 0, 5)
	err := c.commitPending(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fc.err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CommitFailures))

	// a newer ack recorded before the retry wins
	c.offsets.Advance("t", 0, 7)
	fc.err = nil
	require.NoError(t, c.commitPending(context.Background()))
	assert.Equal(t, kgo.EpochOffset{Epoch: -1, Offset: 7}, fc.last()["t"][0])
}

func TestRevokeCommitsAndForgets(t *testing.T) {
	rec := &recorder{panicOn: -1}
	c, fc := newTestConsumer(t, rec)
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0, 1}})

	c.dispatch(types.MessageQueue{Topic: "t", QueueID: 0}, records("t", 0, 0, 1))
	require.Eventually(t, func() bool { return len(rec.offsets(0)) == 2 }, time.Second, 5*time.Millisecond)

	c.onRevoked(context.Background(), nil, map[string][]int32{"t": {0}})
	assert.Equal(t, []types.MessageQueue{{Topic: "t", QueueID: 1}}, c.GetCurrentQueues())
	require.Len(t, fc.calls, 1)
	assert.Equal(t, int64(2), fc.last()["t"][0].Offset)

	err := c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 0, QueueOffset: 2})
	assert.ErrorIs(t, err, ErrQueueNotAssigned)
}

func TestRevokeWithFailedCommitDropsOffsets(t *testing.T) {
	c, fc := newTestConsumer(t, &recorder{panicOn: -1})
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0}})
	require.NoError(t, c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 0, QueueOffset: 3}))

	fc.err = errors.New("rebalance in progress")
	c.onRevoked(context.Background(), nil, map[string][]int32{"t": {0}})

	_, err := c.offsets.Get("t", 0)
	assert.Error(t, err)
}

func TestLostDoesNotCommit(t *testing.T) {
	c, fc := newTestConsumer(t, &recorder{panicOn: -1})
	c.onAssigned(context.Background(), nil, map[string][]int32{"t": {0}})
	require.NoError(t, c.OnMessageHandled(&types.Message{Topic: "t", QueueID: 0, QueueOffset: 3}))

	c.onLost(context.Background(), nil, map[string][]int32{"t": {0}})
	assert.Empty(t, fc.calls)
	assert.Empty(t, c.GetCurrentQueues())
	_, err := c.offsets.Get("t", 0)
	assert.Error(t, err)
}

func TestToMessage(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	msg := toMessage(&kgo.Record{Topic: "t", Partition: 3, Offset: 42, Key: []byte("k"), Value: []byte("v"), Timestamp: ts})
	assert.Equal(t, &types.Message{Topic: "t", QueueID: 3, QueueOffset: 42, Key: []byte("k"), Payload: []byte("v"), Timestamp: ts}, msg)
}

func TestOnCommittedReceivesPositions(t *testing.T) {
	c, fc := newTestConsumer(t, &recorder{panicOn: -1})

	var mu sync.Mutex
	got := map[types.MessageQueue]int64{}
	c.OnCommitted(func(topic string, queueID int, next int64) {
		mu.Lock()
		defer mu.Unlock()
		got[types.MessageQueue{Topic: topic, QueueID: queueID}] = next
	})

	fc.err = errors.New("unavailable")
	c.offsets.Advance("t", 0, 5)
	require.Error(t, c.commitPending(context.Background()))
	assert.Empty(t, got, "failed commits are not reported")

	fc.err = nil
	c.offsets.Advance("t", 1, 2)
	require.NoError(t, c.commitPending(context.Background()))
	assert.Equal(t, map[types.MessageQueue]int64{{Topic: "t", QueueID: 0}: 5, {Topic: "t", QueueID: 1}: 2}, got)
}
