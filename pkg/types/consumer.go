package types

// Consumer is the client-side session with the broker. Heartbeats, pull
// scheduling and the rebalance algorithm live behind this interface.
type Consumer interface {
	Subscribe(topic string) Consumer
	Start(handler MessageHandler) (Consumer, error)
	// GetCurrentQueues returns a snapshot of the locally assigned queues.
	GetCurrentQueues() []MessageQueue
	Close() error
}

// MessageHandler receives deliveries. Handle may be called concurrently for
// different queues.
type MessageHandler interface {
	Handle(msg *Message, ctx MessageContext)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(msg *Message, ctx MessageContext)

func (f MessageHandlerFunc) Handle(msg *Message, ctx MessageContext) {
	f(msg, ctx)
}

// MessageContext acknowledges a delivery back to the consumer.
type MessageContext interface {
	OnMessageHandled(msg *Message) error
}
