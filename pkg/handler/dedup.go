// Package handler implements the message handler that counts each offset
// once and acknowledges every delivery.
package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/downfa11-org/cursus-quickstart/pkg/types"
	"github.com/downfa11-org/cursus-quickstart/util"
)

var errNoContext = errors.New("no message context")

type DedupHandler struct {
	tracker      *Tracker
	storeTimeout time.Duration
}

type Option func(*DedupHandler)

// WithStoreTimeout bounds each dedup store lookup. Defaults to 5s.
func WithStoreTimeout(d time.Duration) Option {
	return func(h *DedupHandler) {
		if d > 0 {
			h.storeTimeout = d
		}
	}
}

func NewDedupHandler(tracker *Tracker, opts ...Option) *DedupHandler {
	h := &DedupHandler{tracker: tracker, storeTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *DedupHandler) Tracker() *Tracker {
	return h.tracker
}

// Handle counts msg if its offset is new and acknowledges it either way.
// Safe for concurrent use.
func (h *DedupHandler) Handle(msg *types.Message, mc types.MessageContext) {
	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	h.tracker.Accept(ctx, msg)
	cancel()

	if err := acknowledge(msg, mc); err != nil {
		h.tracker.ackFailed()
		util.Error("failed to acknowledge %s: %v", msg, err)
	}
}

func acknowledge(msg *types.Message, mc types.MessageContext) (err error) {
	if mc == nil {
		return errNoContext
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return mc.OnMessageHandled(msg)
}
