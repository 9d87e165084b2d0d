package queue

import (
	"context"
	"time"

	"github.com/iliyamo/authflow/internal/logging"
)

// Direct delivers verification mail in-process on a background goroutine.
// It stands in for the broker when RabbitMQ is not configured; delivery
// failures are logged, never returned.
type Direct struct {
	Mailer  Mailer
	Log     logging.Logger
	Timeout time.Duration
}

func NewDirect(m Mailer, log logging.Logger) *Direct {
	return &Direct{Mailer: m, Log: log.With("component", "verification-direct"), Timeout: 30 * time.Second}
}

func (d *Direct) PublishVerification(_ context.Context, ev VerificationRequested) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.Mailer.SendVerification(ctx, ev); err != nil {
			d.Log.Error(ctx, "verification mail failed", "user_id", ev.UserID, "error", err)
		}
	}()
	return nil
}
