package notification

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// amqpChannel subset of *amqp.Channel used by the source
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
	Close() error
}

// AMQPSource consume MinIO bucket notifications published to a RabbitMQ queue
type AMQPSource struct {
	channel  amqpChannel
	queue    string
	prefetch int

	once       sync.Once
	deliveries <-chan amqp.Delivery
	consumeErr error
}

// NewAMQPSource create an AMQPSource, prefetch bounds unacked deliveries held by this consumer
func NewAMQPSource(ch *amqp.Channel, queue string, prefetch int) *AMQPSource {
	return newAMQPSource(ch, queue, prefetch)
}

func newAMQPSource(ch amqpChannel, queue string, prefetch int) *AMQPSource {
	if prefetch <= 0 {
		prefetch = 5
	}
	return &AMQPSource{channel: ch, queue: queue, prefetch: prefetch}
}

func (s *AMQPSource) consume() error {
	s.once.Do(func() {
		if err := s.channel.Qos(s.prefetch, 0, false); err != nil {
			s.consumeErr = fmt.Errorf("set qos: %w", err)
			return
		}
		s.deliveries, s.consumeErr = s.channel.Consume(
			s.queue, // queue
			"",      // consumer tag，留空由系統分配
			false,   // autoAck 為 false，使用手動確認
			false,   // exclusive
			false,   // noLocal
			false,   // noWait
			nil,     // arguments
		)
	})
	return s.consumeErr
}

// Receive wait up to wait for the first delivery, then drain what is already buffered up to max
func (s *AMQPSource) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if err := s.consume(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	var msgs []Message
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case d, ok := <-s.deliveries:
		if !ok {
			return nil, ErrSourceClosed
		}
		msgs = append(msgs, toMessage(d))
	}

	for len(msgs) < max {
		select {
		case d, ok := <-s.deliveries:
			if !ok {
				return msgs, nil
			}
			msgs = append(msgs, toMessage(d))
		default:
			return msgs, nil
		}
	}
	return msgs, nil
}

func toMessage(d amqp.Delivery) Message {
	id := d.MessageId
	if id == "" {
		id = strconv.FormatUint(d.DeliveryTag, 10)
	}
	return Message{ID: id, Body: d.Body, Tag: d.DeliveryTag}
}

// Ack 處理成功後確認訊息
func (s *AMQPSource) Ack(_ context.Context, msg Message) error {
	return s.channel.Ack(msg.Tag, false)
}

// Release requeue the delivery. The quorum queue x-delivery-limit routes it to the dead letter exchange
// once the broker's redelivery ceiling is reached.
func (s *AMQPSource) Release(_ context.Context, msg Message) error {
	return s.channel.Nack(msg.Tag, false, true)
}

// Close close the channel
func (s *AMQPSource) Close() error {
	return s.channel.Close()
}
