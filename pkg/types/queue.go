package types

import (
	"fmt"
	"sort"
	"strings"
)

// MessageQueue identifies one partition of a topic.
type MessageQueue struct {
	Topic   string
	QueueID int
}

func (q MessageQueue) String() string {
	return fmt.Sprintf("%s-%d", q.Topic, q.QueueID)
}

// DistinctQueues returns the queues with duplicates removed, sorted by topic then id.
func DistinctQueues(queues []MessageQueue) []MessageQueue {
	seen := make(map[MessageQueue]struct{}, len(queues))
	out := make([]MessageQueue, 0, len(queues))
	for _, q := range queues {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].QueueID < out[j].QueueID
	})
	return out
}

// QueueIDs renders queue ids as "0,1,2" for log lines.
func QueueIDs(queues []MessageQueue) string {
	ids := make([]string, len(queues))
	for i, q := range queues {
		ids[i] = fmt.Sprint(q.QueueID)
	}
	return strings.Join(ids, ",")
}
