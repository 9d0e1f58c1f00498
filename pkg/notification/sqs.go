package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const sqsMaxBatch = 10

// sqsAPI subset of *sqs.Client used by the source
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSSource long-poll S3 event notifications from an SQS queue
type SQSSource struct {
	client   sqsAPI
	queueURL string
}

// NewSQSSource create an SQSSource
func NewSQSSource(client *sqs.Client, queueURL string) *SQSSource {
	return &SQSSource{client: client, queueURL: queueURL}
}

// Receive long-poll, wait is capped at the 20s SQS limit
func (s *SQSSource) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	if max > sqsMaxBatch {
		max = sqsMaxBatch
	}
	waitSeconds := int32(wait / time.Second)
	if waitSeconds > 20 {
		waitSeconds = 20
	}

	out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:      aws.ToString(m.MessageId),
			Body:    []byte(aws.ToString(m.Body)),
			Receipt: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Ack delete the message
func (s *SQSSource) Ack(ctx context.Context, msg Message) error {
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

// Release leave the message in flight, SQS redelivers it after the visibility timeout and moves it
// to the redrive queue after maxReceiveCount.
func (s *SQSSource) Release(context.Context, Message) error {
	return nil
}

// Close nothing to close for sqs
func (s *SQSSource) Close() error {
	return nil
}
