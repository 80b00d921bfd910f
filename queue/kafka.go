package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/01cheese/OnlineCompiler/task"
)

// KafkaConfig defines configuration for the Kafka backend.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaQueue publishes tasks to a topic and consumes them through a consumer
// group, so each task reaches one worker.
type KafkaQueue struct {
	writer messageWriter
	reader messageReader
}

// NewKafkaQueue creates a Kafka-backed queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("group id is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  time.Second,
	})

	return newKafkaQueue(writer, reader), nil
}

func newKafkaQueue(writer messageWriter, reader messageReader) *KafkaQueue {
	return &KafkaQueue{writer: writer, reader: reader}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, t task.Task) error {
	payload, err := encodeTask(t)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(t.ID), Value: payload}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", t.ID, err)
	}
	return nil
}

// Dequeue reads the next message; with a consumer group the offset is
// committed as part of the read.
func (q *KafkaQueue) Dequeue(ctx context.Context) (task.Task, error) {
	msg, err := q.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return task.Task{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return task.Task{}, ErrClosed
		}
		return task.Task{}, fmt.Errorf("failed to dequeue task: %w", err)
	}
	return decodeTask(msg.Value)
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}
