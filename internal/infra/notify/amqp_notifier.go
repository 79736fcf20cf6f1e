// internal/infra/notify/amqp_notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"estate_lifecycle_engine/internal/domain/notify"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQPNotifier publishes notification events to a durable RabbitMQ queue
// consumed by the delivery services (email, in-app). Publishing is best
// effort: callers log a returned error and move on, per the engine's
// at-most-once-attempted notification policy.
type AMQPNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *logrus.Logger
}

// notificationEvent is the wire shape placed on the queue.
type notificationEvent struct {
	UserID  string            `json:"user_id"`
	Tier    string            `json:"tier"`
	ItemID  string            `json:"item_id,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// NewAMQPNotifier dials the broker and declares the notification queue.
// The queue is durable so events survive broker restarts.
func NewAMQPNotifier(url, queue string, logger *logrus.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare notification queue: %w", err)
	}

	return &AMQPNotifier{conn: conn, channel: ch, queue: queue, logger: logger}, nil
}

// Send publishes one notification event. Failures are returned for the
// caller to log; they never roll back the state transition that produced
// the notification.
func (n *AMQPNotifier) Send(ctx context.Context, msg notify.Notification) error {
	body, err := json.Marshal(notificationEvent{
		UserID:  msg.UserID,
		Tier:    msg.Tier,
		ItemID:  msg.ItemID,
		Payload: msg.Payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}
	n.logger.Debugf("Published '%s' notification for user %s to queue %s", msg.Tier, msg.UserID, n.queue)
	return nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
