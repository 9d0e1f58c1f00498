package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"video_pipeline_service/internal/video/domain"
	"video_pipeline_service/pkg/config"
	"video_pipeline_service/pkg/database"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrListUnsupported the sink is write-only
var ErrListUnsupported = errors.New("dead letter sink does not support listing")

// DeadLetterRepo append-only record of exhausted jobs, read only by operators
type DeadLetterRepo interface {
	Append(ctx context.Context, record domain.DeadLetterRecord) error
	List(ctx context.Context, limit int64) ([]domain.DeadLetterRecord, error)
}

type mongoDeadLetterRepo struct {
	collection *mongo.Collection
}

// NewMongoDeadLetterRepo create DeadLetterRepo on a mongo collection
func NewMongoDeadLetterRepo(db *mongo.Database, collection string) DeadLetterRepo {
	return &mongoDeadLetterRepo{collection: db.Collection(collection)}
}

// EnsureIndexes index videoId and failedAt for operator queries
func EnsureIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "videoId", Value: 1}}},
		{Keys: bson.D{{Key: "failedAt", Value: -1}}},
	})
	return err
}

func (r *mongoDeadLetterRepo) Append(ctx context.Context, record domain.DeadLetterRecord) error {
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return domain.Transient("append dead letter", err)
	}
	return nil
}

func (r *mongoDeadLetterRepo) List(ctx context.Context, limit int64) ([]domain.DeadLetterRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "failedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find dead letters: %w", err)
	}
	defer cursor.Close(ctx)

	records := []domain.DeadLetterRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode dead letters: %w", err)
	}
	return records, nil
}

// kafkaWriter subset of *kafka.Writer
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaDeadLetterRepo struct {
	writer kafkaWriter
}

// NewKafkaDeadLetterRepo create DeadLetterRepo publishing to a kafka topic keyed by video id
func NewKafkaDeadLetterRepo(writer *kafka.Writer) DeadLetterRepo {
	return &kafkaDeadLetterRepo{writer: writer}
}

func (r *kafkaDeadLetterRepo) Append(ctx context.Context, record domain.DeadLetterRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.VideoID),
		Value: value,
		Time:  record.FailedAt,
	}); err != nil {
		return domain.Transient("publish dead letter", err)
	}
	return nil
}

func (r *kafkaDeadLetterRepo) List(context.Context, int64) ([]domain.DeadLetterRecord, error) {
	return nil, ErrListUnsupported
}

// OpenDeadLetterRepo connect the sink selected by the yaml dead_letter block, mongo when driver is empty.
// The returned func releases the connection.
func OpenDeadLetterRepo(ctx context.Context, c config.DeadLetterConfig) (DeadLetterRepo, func(context.Context) error, error) {
	switch c.Driver {
	case "kafka":
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       c.Kafka.Brokers,
			Topic:         c.Kafka.Topic,
			RetryCount:    c.Kafka.RetryCount,
			RetryInterval: time.Duration(c.Kafka.RetryInterval),
		})
		if err != nil {
			return nil, nil, err
		}
		return NewKafkaDeadLetterRepo(writer), func(context.Context) error { return writer.Close() }, nil
	default:
		collection := c.Mongo.Collection
		if collection == "" {
			collection = "dead_letters"
		}
		m, err := database.NewMongoDB(ctx, database.Connection{
			ConnectStr:    c.Mongo.URI,
			RetryCount:    c.Mongo.RetryCount,
			RetryInterval: c.Mongo.RetryInterval,
		}, c.Mongo.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := EnsureIndexes(ctx, m.Database, collection); err != nil {
			_ = m.Close(ctx)
			return nil, nil, fmt.Errorf("dead letter indexes: %w", err)
		}
		return NewMongoDeadLetterRepo(m.Database, collection), m.Close, nil
	}
}
