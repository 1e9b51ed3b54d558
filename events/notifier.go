package events

import (
	"context"
	"sync"
	"time"

	"settleup-backend/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier publishes events in the background. Notify never blocks the caller
// and publish failures are only logged and counted.
type Notifier struct {
	publisher Publisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewNotifier(publisher Publisher, timeout time.Duration) *Notifier {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Notifier{publisher: publisher, timeout: timeout}
}

func (n *Notifier) Notify(event Event) {
	if n == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				metrics.Notifications.WithLabelValues("panic").Inc()
				zap.L().Error("Recovered from panic while publishing event",
					zap.String("event_type", string(event.Type)), zap.Any("panic", p))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.publisher.Publish(ctx, event); err != nil {
			metrics.Notifications.WithLabelValues("error").Inc()
			zap.L().Warn("Failed to publish event",
				zap.String("event_type", string(event.Type)),
				zap.String("group_id", event.GroupID),
				zap.String("settlement_id", event.SettlementID),
				zap.Error(err))
			return
		}
		metrics.Notifications.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until every in-flight publish has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.wg.Wait()
	return n.publisher.Close()
}
