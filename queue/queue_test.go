package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01cheese/OnlineCompiler/task"
)

func sampleTask(id string) task.Task {
	return task.Task{
		ID:          id,
		Language:    "python",
		SourceCode:  `print("hello")`,
		SubmittedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func exerciseFIFO(t *testing.T, q Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, sampleTask(id)))
	}
	for _, id := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleTask(id), got)
	}
}

func TestMemoryQueue(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		exerciseFIFO(t, NewMemoryQueue(8))
	})

	t.Run("DequeueHonoursContext", func(t *testing.T) {
		q := NewMemoryQueue(1)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := q.Dequeue(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("EnqueueBlocksWhenFull", func(t *testing.T) {
		q := NewMemoryQueue(1)
		require.NoError(t, q.Enqueue(context.Background(), sampleTask("a")))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, q.Enqueue(ctx, sampleTask("b")), context.DeadlineExceeded)
		assert.Equal(t, 1, q.Len())
	})

	t.Run("Close", func(t *testing.T) {
		q := NewMemoryQueue(1)
		require.NoError(t, q.Close())
		require.NoError(t, q.Close())

		_, err := q.Dequeue(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, q.Enqueue(context.Background(), sampleTask("a")), ErrClosed)
	})

	t.Run("EachTaskDeliveredOnce", func(t *testing.T) {
		q := NewMemoryQueue(100)
		ctx := context.Background()
		for i := 0; i < 100; i++ {
			require.NoError(t, q.Enqueue(ctx, sampleTask(fmt.Sprintf("task-%d", i))))
		}

		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
					got, err := q.Dequeue(dctx)
					cancel()
					if err != nil {
						return
					}
					mu.Lock()
					seen[got.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 100)
		for id, n := range seen {
			assert.Equal(t, 1, n, id)
		}
	})
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	t.Run("FIFO", func(t *testing.T) {
		exerciseFIFO(t, NewRedisQueue(rdb, "test:fifo"))
	})

	t.Run("DefaultKey", func(t *testing.T) {
		q := NewRedisQueue(rdb, "")
		require.NoError(t, q.Enqueue(context.Background(), sampleTask("k")))

		n, err := rdb.LLen(context.Background(), DefaultKey).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("DequeueHonoursContext", func(t *testing.T) {
		q := NewRedisQueue(rdb, "test:empty")
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := q.Dequeue(ctx)
		assert.Error(t, err)
	})

	t.Run("Closed", func(t *testing.T) {
		q := NewRedisQueue(rdb, "test:closed")
		require.NoError(t, q.Close())

		assert.ErrorIs(t, q.Enqueue(context.Background(), sampleTask("x")), ErrClosed)
		_, err := q.Dequeue(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		q := NewRedisQueue(rdb, "test:corrupt")
		require.NoError(t, rdb.LPush(context.Background(), "test:corrupt", "{").Err())

		_, err := q.Dequeue(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode task")
	})
}

type fakeKafka struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
	writeErr error
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	f.messages = append(f.messages, msgs...)
	f.mu.Unlock()
	return nil
}

func (f *fakeKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return kafka.Message{}, io.EOF
	}
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeKafka) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestKafkaQueue(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		fake := &fakeKafka{}
		exerciseFIFO(t, newKafkaQueue(fake, fake))
	})

	t.Run("KeyedByTaskID", func(t *testing.T) {
		fake := &fakeKafka{}
		q := newKafkaQueue(fake, fake)
		require.NoError(t, q.Enqueue(context.Background(), sampleTask("key-1")))

		require.Len(t, fake.messages, 1)
		assert.Equal(t, []byte("key-1"), fake.messages[0].Key)
	})

	t.Run("WriteError", func(t *testing.T) {
		fake := &fakeKafka{writeErr: errors.New("leader not available")}
		q := newKafkaQueue(fake, fake)

		err := q.Enqueue(context.Background(), sampleTask("w"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to enqueue task w")
	})

	t.Run("ClosedReader", func(t *testing.T) {
		fake := &fakeKafka{}
		q := newKafkaQueue(fake, fake)
		require.NoError(t, q.Close())

		_, err := q.Dequeue(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("ConfigValidation", func(t *testing.T) {
		_, err := NewKafkaQueue(KafkaConfig{})
		assert.EqualError(t, err, "brokers are required")

		_, err = NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		assert.EqualError(t, err, "topic is required")

		_, err = NewKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "tasks"})
		assert.EqualError(t, err, "group id is required")
	})
}

func TestNew(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		q, err := New(Config{Backend: BackendMemory}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryQueue{}, q)
	})

	t.Run("RedisRequiresClient", func(t *testing.T) {
		_, err := New(Config{Backend: BackendRedis}, nil)
		require.Error(t, err)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := New(Config{Backend: "sqs"}, nil)
		assert.EqualError(t, err, "unsupported queue backend: sqs")
	})
}
