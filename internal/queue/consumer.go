package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/authflow/internal/logging"
)

// Mailer delivers a verification email.
type Mailer interface {
	SendVerification(ctx context.Context, ev VerificationRequested) error
}

// Consumer drains the verification queue and hands each message to a Mailer.
type Consumer struct {
	URL    string
	Mailer Mailer
	Log    logging.Logger
}

func NewConsumer(url string, m Mailer, log logging.Logger) *Consumer {
	return &Consumer{URL: url, Mailer: m, Log: log.With("component", "verification-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are re-dialled with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn(ctx, "dial broker failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn(ctx, "consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warn(ctx, "set QoS failed", "error", err)
	}

	if _, err := ch.QueueDeclare(VerificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, VerificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(ctx, d.Body); err != nil {
			c.Log.Error(ctx, "handle message failed", "error", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and sends the mail.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev VerificationRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.URL == "" {
		return errors.New("event missing email or url")
	}
	if err := c.Mailer.SendVerification(ctx, ev); err != nil {
		return fmt.Errorf("send verification to user %d: %w", ev.UserID, err)
	}
	c.Log.Info(ctx, "verification mail sent", "user_id", ev.UserID)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
