package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/01cheese/OnlineCompiler/task"
)

const flushTimeout = 2 * time.Second

// NATSNotifier uses core NATS subjects.
type NATSNotifier struct {
	nc *nats.Conn
}

// NewNATSNotifier creates a NATSNotifier on an existing connection.
func NewNATSNotifier(nc *nats.Conn) *NATSNotifier {
	return &NATSNotifier{nc: nc}
}

func (n *NATSNotifier) Publish(_ context.Context, result task.Result) error {
	payload, err := encode(result)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(task.Topic(result.TaskID), payload); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// Subscribe flushes the connection so the interest is registered with the
// server before it returns.
func (n *NATSNotifier) Subscribe(_ context.Context, taskID string) (Subscription, error) {
	sub, err := n.nc.SubscribeSync(task.Topic(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := n.nc.FlushTimeout(flushTimeout); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	return &natsSubscription{sub: sub}, nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Result(ctx context.Context) (task.Result, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		return task.Result{}, fmt.Errorf("failed to receive result: %w", err)
	}
	return decode(msg.Data)
}

func (s *natsSubscription) Close() error {
	return s.sub.Unsubscribe()
}
