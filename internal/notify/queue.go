package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Sender is satisfied by *aws.Publisher.
type Sender interface {
	SendJSON(ctx context.Context, v interface{}, attributes map[string]string) (string, error)
}

// QueueNotifier publishes messages to SQS for the worker.
type QueueNotifier struct {
	sender  Sender
	log     *log.Helper
	nowFunc func() time.Time
}

func NewQueueNotifier(sender Sender, logger log.Logger) *QueueNotifier {
	return &QueueNotifier{
		sender:  sender,
		log:     log.NewHelper(log.With(logger, "module", "notify")),
		nowFunc: time.Now,
	}
}

func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = q.nowFunc().UTC()
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	id, err := q.sender.SendJSON(ctx, msg, map[string]string{
		"kind":     msg.Kind,
		"order_id": msg.OrderID,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.Kind, err)
	}
	q.log.Debugw("msg", "enqueued notification", "kind", msg.Kind, "message_id", id)
	return nil
}
