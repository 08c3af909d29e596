package offset

import (
	"fmt"
	"sync"
)

// OffsetManager tracks the highest acknowledged offset per topic queue
// until it is drained for commit.
type OffsetManager struct {
	mu      sync.RWMutex
	offsets map[string]map[int]int64 // topic -> queueID -> offset
}

func NewOffsetManager() *OffsetManager {
	return &OffsetManager{
		offsets: make(map[string]map[int]int64),
	}
}

func (om *OffsetManager) Get(topic string, queueID int) (int64, error) {
	om.mu.RLock()
	defer om.mu.RUnlock()

	if queues, ok := om.offsets[topic]; ok {
		if offset, ok := queues[queueID]; ok {
			return offset, nil
		}
	}
	return -1, fmt.Errorf("no offset found for %s[%d]", topic, queueID)
}

// Advance records offset if it is beyond the current one and reports
// whether it moved.
func (om *OffsetManager) Advance(topic string, queueID int, offset int64) bool {
	om.mu.Lock()
	defer om.mu.Unlock()
	return om.advanceLocked(topic, queueID, offset)
}

func (om *OffsetManager) advanceLocked(topic string, queueID int, offset int64) bool {
	queues, ok := om.offsets[topic]
	if !ok {
		queues = make(map[int]int64)
		om.offsets[topic] = queues
	}
	if current, ok := queues[queueID]; ok && current >= offset {
		return false
	}
	queues[queueID] = offset
	return true
}

// Drain returns the pending offsets and clears them.
func (om *OffsetManager) Drain() map[string]map[int]int64 {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.offsets) == 0 {
		return nil
	}
	out := om.offsets
	om.offsets = make(map[string]map[int]int64, len(out))
	return out
}

// Restore merges offsets back after a failed commit, keeping newer values.
func (om *OffsetManager) Restore(pending map[string]map[int]int64) {
	om.mu.Lock()
	defer om.mu.Unlock()

	for topic, queues := range pending {
		for queueID, offset := range queues {
			om.advanceLocked(topic, queueID, offset)
		}
	}
}

// Forget drops the pending offset of a queue that is no longer owned.
func (om *OffsetManager) Forget(topic string, queueID int) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if queues, ok := om.offsets[topic]; ok {
		delete(queues, queueID)
		if len(queues) == 0 {
			delete(om.offsets, topic)
		}
	}
}
