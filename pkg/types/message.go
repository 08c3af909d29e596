package types

import (
	"fmt"
	"time"
)

// Message is a single delivered record.
type Message struct {
	Topic       string
	QueueID     int
	QueueOffset int64 // per-queue position, monotonically increasing
	Key         []byte
	Payload     []byte
	Timestamp   time.Time
}

func (m *Message) String() string {
	return fmt.Sprintf("%s[%d]@%d", m.Topic, m.QueueID, m.QueueOffset)
}
