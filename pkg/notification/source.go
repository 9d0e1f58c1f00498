package notification

import (
	"context"
	"errors"
	"time"
)

// ErrSourceClosed the transport closed its delivery stream
var ErrSourceClosed = errors.New("notification source closed")

// Message one transport delivery
type Message struct {
	ID      string
	Body    []byte
	Receipt string
	Tag     uint64
}

// Source at-least-once notification transport. A message that is neither acked nor released
// is redelivered by the transport.
type Source interface {
	// Receive block up to wait for at most max messages, an empty batch is not an error
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Ack remove the message from the transport
	Ack(ctx context.Context, msg Message) error
	// Release hand the message back for redelivery
	Release(ctx context.Context, msg Message) error
	Close() error
}
