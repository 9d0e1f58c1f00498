package database

import (
	"fmt"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitMQURL build amqp url
func RabbitMQURL(user, password, host, port string) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, host, port)
}

// ConnectRabbitMQWithRetry 嘗試連線到 RabbitMQ
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; attempt <= d.RetryCount; attempt++ {
		conn, err = amqp.Dial(d.ConnectStr)
		if err == nil {
			logger.Log.Info("RabbitMQ connected", zap.Int("attempt", attempt))
			return conn, nil
		}

		logger.Log.Warn("RabbitMQ connect failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max", d.RetryCount),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法連線 RabbitMQ，經過 %d 次嘗試: %w", d.RetryCount, err)
}

// GetRabbitMQChannelWithRetry 使用已有的 RabbitMQ 連線嘗試取得 Channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, maxRetries int, baseDelay time.Duration) (*amqp.Channel, error) {
	var ch *amqp.Channel
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ch, err = conn.Channel()
		if err == nil {
			return ch, nil
		}

		logger.Log.Warn("RabbitMQ channel open failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max", maxRetries),
			zap.Error(err),
		)
		time.Sleep(baseDelay * time.Second)
	}

	return nil, fmt.Errorf("無法取得 RabbitMQ Channel，經過 %d 次嘗試: %w", maxRetries, err)
}

// DeclareNotificationQueue declare the quorum queue MinIO publishes bucket events to.
// deliveryLimit and deadLetterExchange hand poison messages to the broker's own dead-letter route.
func DeclareNotificationQueue(ch *amqp.Channel, name, deadLetterExchange string, deliveryLimit int) (amqp.Queue, error) {
	args := amqp.Table{"x-queue-type": "quorum"}
	if deliveryLimit > 0 {
		args["x-delivery-limit"] = int32(deliveryLimit)
	}
	if deadLetterExchange != "" {
		if err := ch.ExchangeDeclare(deadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("declare dead letter exchange[%s]: %w", deadLetterExchange, err)
		}
		if _, err := ch.QueueDeclare(deadLetterExchange, true, false, false, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("declare dead letter queue[%s]: %w", deadLetterExchange, err)
		}
		if err := ch.QueueBind(deadLetterExchange, "", deadLetterExchange, false, nil); err != nil {
			return amqp.Queue{}, fmt.Errorf("bind dead letter queue[%s]: %w", deadLetterExchange, err)
		}
		args["x-dead-letter-exchange"] = deadLetterExchange
	}

	q, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		args,  // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue[%s]: %w", name, err)
	}
	return q, nil
}
