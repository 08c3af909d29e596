package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/util"
)

func (c *Consumer) commitTask(ctx context.Context) error {
	return c.commitPending(ctx)
}

// commitPending commits every acknowledged offset. On failure the offsets
// are put back so the next cycle retries them.
func (c *Consumer) commitPending(ctx context.Context) error {
	pending := c.offsets.Drain()
	if len(pending) == 0 {
		return nil
	}

	offsets := make(map[string]map[int32]kgo.EpochOffset, len(pending))
	for topic, queues := range pending {
		parts := make(map[int32]kgo.EpochOffset, len(queues))
		for queueID, off := range queues {
			parts[int32(queueID)] = kgo.EpochOffset{Epoch: -1, Offset: off}
		}
		offsets[topic] = parts
	}

	if err := c.commit(ctx, offsets); err != nil {
		c.offsets.Restore(pending)
		metrics.CommitFailures.Inc()
		return fmt.Errorf("commit offsets: %w", err)
	}
	util.Debug("committed offsets %v", pending)

	c.mu.Lock()
	hook := c.onCommit
	c.mu.Unlock()
	if hook != nil {
		for topic, queues := range pending {
			for queueID, next := range queues {
				hook(topic, queueID, next)
			}
		}
	}
	return nil
}

func (c *Consumer) commitWithClient(ctx context.Context, offsets map[string]map[int32]kgo.EpochOffset) error {
	var errs []error
	c.client.CommitOffsetsSync(ctx, offsets, func(_ *kgo.Client, _ *kmsg.OffsetCommitRequest, resp *kmsg.OffsetCommitResponse, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		errs = append(errs, commitResponseErrors(resp)...)
	})
	return errors.Join(errs...)
}

func commitResponseErrors(resp *kmsg.OffsetCommitResponse) []error {
	if resp == nil {
		return nil
	}
	var errs []error
	for _, t := range resp.Topics {
		for _, p := range t.Partitions {
			if err := kerr.ErrorForCode(p.ErrorCode); err != nil {
				errs = append(errs, fmt.Errorf("%s-%d: %w", t.Topic, p.Partition, err))
			}
		}
	}
	return errs
}
