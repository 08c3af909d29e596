// Package kafka binds the consumer session to a Kafka group consumer built
// on franz-go. Each assigned partition is delivered on its own goroutine and
// acknowledged offsets are committed by a scheduled task.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/pkg/offset"
	"github.com/downfa11-org/cursus-quickstart/pkg/scheduler"
	"github.com/downfa11-org/cursus-quickstart/pkg/types"
	"github.com/downfa11-org/cursus-quickstart/util"
)

const (
	CommitTaskName = "CommitConsumerOffsets"

	maxPollRecords = 10000
	closeTimeout   = 10 * time.Second
)

var (
	ErrNilHandler       = errors.New("message handler is nil")
	ErrNoSubscription   = errors.New("no topic subscribed")
	ErrAlreadyStarted   = errors.New("consumer already started")
	ErrConsumerClosed   = errors.New("consumer closed")
	ErrQueueNotAssigned = errors.New("queue is not assigned to this consumer")
	errNilMessage       = errors.New("nil message")
)

var (
	_ types.Consumer       = (*Consumer)(nil)
	_ types.MessageContext = (*Consumer)(nil)
)

type commitFunc func(ctx context.Context, offsets map[string]map[int32]kgo.EpochOffset) error

type Consumer struct {
	cfg     *config.ConsumerConfig
	sched   *scheduler.Scheduler
	offsets *offset.OffsetManager
	extra   []kgo.Opt

	mu       sync.Mutex
	topics   []string
	workers  map[types.MessageQueue]*queueWorker
	handler  types.MessageHandler
	client   *kgo.Client
	commit   commitFunc
	onCommit func(topic string, queueID int, next int64)
	commitID scheduler.TaskID
	started  bool
	closed   bool

	ctx      context.Context
	cancel   context.CancelFunc
	pollDone chan struct{}
}

// NewConsumer creates an idle consumer. A nil scheduler uses scheduler.Default.
// Extra kgo options are appended after the ones derived from cfg.
func NewConsumer(cfg *config.ConsumerConfig, sched *scheduler.Scheduler, opts ...kgo.Opt) *Consumer {
	if sched == nil {
		sched = scheduler.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:      cfg,
		sched:    sched,
		offsets:  offset.NewOffsetManager(),
		extra:    opts,
		workers:  make(map[types.MessageQueue]*queueWorker),
		ctx:      ctx,
		cancel:   cancel,
		pollDone: make(chan struct{}),
	}
}

func (c *Consumer) Subscribe(topic string) types.Consumer {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.topics {
		if t == topic {
			return c
		}
	}
	c.topics = append(c.topics, topic)
	return c
}

// OnCommitted registers fn to run for every queue position committed to the
// group. Must be called before Start.
func (c *Consumer) OnCommitted(fn func(topic string, queueID int, next int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCommit = fn
}

// Start joins the group and begins delivering to handler.
func (c *Consumer) Start(handler types.MessageHandler) (types.Consumer, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrConsumerClosed
	case c.started:
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	case len(c.topics) == 0:
		c.mu.Unlock()
		return nil, ErrNoSubscription
	}

	cl, err := kgo.NewClient(c.clientOpts()...)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	c.client = cl
	c.handler = handler
	if c.commit == nil {
		c.commit = c.commitWithClient
	}

	interval := c.cfg.AutoCommitInterval
	id, err := c.sched.ScheduleTask(CommitTaskName, c.commitTask, interval, interval)
	if err != nil {
		c.client = nil
		c.mu.Unlock()
		cl.Close()
		return nil, err
	}
	c.commitID = id
	c.started = true
	c.mu.Unlock()

	util.Info("🚀 Consumer %s started (group=%s, topics=%v)", c.cfg.ConsumerName, c.cfg.GroupID, c.topics)
	go c.poll()
	return c, nil
}

func (c *Consumer) clientOpts() []kgo.Opt {
	cfg := c.cfg
	metadataMaxAge := millis(cfg.UpdateQueueCountIntervalMS)
	metadataMinAge := 5 * time.Second
	if metadataMinAge > metadataMaxAge {
		metadataMinAge = metadataMaxAge
	}

	topics := append([]string(nil), c.topics...)
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BrokerAddrs...),
		kgo.ClientID(util.NewInstanceID(cfg.ConsumerName)),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(topics...),
		kgo.FetchMaxWait(millis(cfg.PullRequestTimeoutMS)),
		kgo.SessionTimeout(millis(cfg.SessionTimeoutMS)),
		kgo.HeartbeatInterval(millis(cfg.HeartbeatIntervalMS)),
		kgo.RebalanceTimeout(millis(cfg.RebalanceTimeoutMS)),
		kgo.MetadataMaxAge(metadataMaxAge),
		kgo.MetadataMinAge(metadataMinAge),
		kgo.OnPartitionsAssigned(c.onAssigned),
		kgo.OnPartitionsRevoked(c.onRevoked),
		kgo.OnPartitionsLost(c.onLost),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.WithLogger(NewLogger()),
	}
	return append(opts, c.extra...)
}

// GetCurrentQueues returns the assigned queues sorted by topic and id.
func (c *Consumer) GetCurrentQueues() []types.MessageQueue {
	c.mu.Lock()
	defer c.mu.Unlock()

	queues := make([]types.MessageQueue, 0, len(c.workers))
	for q := range c.workers {
		queues = append(queues, q)
	}
	return types.DistinctQueues(queues)
}

// OnMessageHandled records msg as processed so its offset is committed on
// the next commit cycle.
func (c *Consumer) OnMessageHandled(msg *types.Message) error {
	if msg == nil {
		return errNilMessage
	}
	q := types.MessageQueue{Topic: msg.Topic, QueueID: msg.QueueID}

	c.mu.Lock()
	_, owned := c.workers[q]
	c.mu.Unlock()
	if !owned {
		return fmt.Errorf("%s: %w", q, ErrQueueNotAssigned)
	}

	// kafka commits the next offset to read
	c.offsets.Advance(msg.Topic, msg.QueueID, msg.QueueOffset+1)
	return nil
}

// Close stops delivery, commits what was acknowledged and leaves the group.
// Safe to call more than once.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.cancel()
	if !started {
		return nil
	}

	if err := c.sched.ShutdownTask(c.commitID); err != nil && !errors.Is(err, scheduler.ErrTaskNotFound) {
		util.Warn("failed to stop offset commit task: %v", err)
	}
	<-c.pollDone

	c.mu.Lock()
	workers := c.workers
	c.workers = make(map[types.MessageQueue]*queueWorker)
	c.mu.Unlock()
	stopWorkers(workers)

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := c.commitPending(ctx)

	c.client.Close()
	metrics.AssignedQueues.Set(0)
	util.Info("🛑 Consumer %s closed", c.cfg.ConsumerName)
	return err
}

func (c *Consumer) poll() {
	defer close(c.pollDone)
	defer c.client.AllowRebalance()

	for {
		fetches := c.client.PollRecords(c.ctx, maxPollRecords)
		if fetches.IsClientClosed() || c.ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			util.Error("fetch error on %s-%d: %v", topic, partition, err)
		})
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			c.dispatch(types.MessageQueue{Topic: p.Topic, QueueID: int(p.Partition)}, p.Records)
		})
		c.client.AllowRebalance()
	}
}

func (c *Consumer) dispatch(q types.MessageQueue, recs []*kgo.Record) {
	c.mu.Lock()
	w, ok := c.workers[q]
	c.mu.Unlock()
	if !ok {
		util.Warn("dropping %d records for unassigned queue %s", len(recs), q)
		return
	}

	select {
	case w.recs <- recs:
	case <-w.quit:
	case <-c.ctx.Done():
	}
}

func (c *Consumer) onAssigned(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for topic, partitions := range assigned {
		for _, p := range partitions {
			q := types.MessageQueue{Topic: topic, QueueID: int(p)}
			if _, ok := c.workers[q]; ok {
				continue
			}
			w := newQueueWorker(q)
			c.workers[q] = w
			go w.run(c.handler, c)
		}
	}
	metrics.AssignedQueues.Set(float64(len(c.workers)))
	util.Debug("partitions assigned: %v (now %d queues)", assigned, len(c.workers))
}

// onRevoked stops the revoked queues and commits their acknowledged offsets
// while the group still owns them.
func (c *Consumer) onRevoked(ctx context.Context, _ *kgo.Client, revoked map[string][]int32) {
	c.release(revoked)
	if err := c.commitPending(ctx); err != nil {
		util.Warn("commit on revoke failed: %v", err)
	}
	c.forget(revoked)
}

// onLost drops the queues without committing; another member may own them.
func (c *Consumer) onLost(_ context.Context, _ *kgo.Client, lost map[string][]int32) {
	c.release(lost)
	c.forget(lost)
}

func (c *Consumer) release(partitions map[string][]int32) {
	c.mu.Lock()
	stopped := make(map[types.MessageQueue]*queueWorker)
	for topic, ps := range partitions {
		for _, p := range ps {
			q := types.MessageQueue{Topic: topic, QueueID: int(p)}
			if w, ok := c.workers[q]; ok {
				stopped[q] = w
				delete(c.workers, q)
			}
		}
	}
	metrics.AssignedQueues.Set(float64(len(c.workers)))
	c.mu.Unlock()

	stopWorkers(stopped)
	util.Debug("partitions released: %v", partitions)
}

func (c *Consumer) forget(partitions map[string][]int32) {
	for topic, ps := range partitions {
		for _, p := range ps {
			c.offsets.Forget(topic, int(p))
		}
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
