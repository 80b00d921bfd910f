package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/01cheese/OnlineCompiler/task"
)

// RedisNotifier uses Redis PUBLISH/SUBSCRIBE.
type RedisNotifier struct {
	rdb redis.UniversalClient
}

// NewRedisNotifier creates a RedisNotifier on an existing client.
func NewRedisNotifier(rdb redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, result task.Result) error {
	payload, err := encode(result)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, task.Topic(result.TaskID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server, so a
// publish that happens afterwards is guaranteed to be delivered.
func (n *RedisNotifier) Subscribe(ctx context.Context, taskID string) (Subscription, error) {
	pubsub := n.rdb.Subscribe(ctx, task.Topic(taskID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &redisSubscription{pubsub: pubsub}, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisSubscription) Result(ctx context.Context) (task.Result, error) {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return task.Result{}, fmt.Errorf("failed to receive result: %w", err)
	}
	return decode([]byte(msg.Payload))
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
