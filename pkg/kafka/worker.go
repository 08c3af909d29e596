package kafka

import (
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/types"
	"github.com/downfa11-org/cursus-quickstart/util"
)

// queueWorker delivers the records of one partition in offset order.
type queueWorker struct {
	queue types.MessageQueue
	recs  chan []*kgo.Record
	quit  chan struct{}
	done  chan struct{}
}

func newQueueWorker(q types.MessageQueue) *queueWorker {
	return &queueWorker{
		queue: q,
		recs:  make(chan []*kgo.Record, 5),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (w *queueWorker) run(h types.MessageHandler, mc types.MessageContext) {
	defer close(w.done)
	util.Debug("Starting delivery for %s", w.queue)
	defer util.Debug("Closing delivery for %s", w.queue)

	for {
		select {
		case <-w.quit:
			return
		case recs := <-w.recs:
			for _, r := range recs {
				select {
				case <-w.quit:
					return
				default:
				}
				w.deliver(h, mc, r)
			}
		}
	}
}

func (w *queueWorker) deliver(h types.MessageHandler, mc types.MessageContext, r *kgo.Record) {
	msg := toMessage(r)
	defer func() {
		if rec := recover(); rec != nil {
			util.Error("handler panic on %s: %v", msg, rec)
		}
	}()
	h.Handle(msg, mc)
}

// stopWorkers signals every worker and waits for in-flight deliveries.
func stopWorkers(workers map[types.MessageQueue]*queueWorker) {
	var wg sync.WaitGroup
	for _, w := range workers {
		close(w.quit)
		wg.Add(1)
		go func(w *queueWorker) {
			defer wg.Done()
			<-w.done
		}(w)
	}
	wg.Wait()
}

func toMessage(r *kgo.Record) *types.Message {
	return &types.Message{
		Topic:       r.Topic,
		QueueID:     int(r.Partition),
		QueueOffset: r.Offset,
		Key:         r.Key,
		Payload:     r.Value,
		Timestamp:   r.Timestamp,
	}
}
