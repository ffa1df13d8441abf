package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// Asynq task types.
const (
	TaskOrderConfirmed = "notify:order_confirmed"
	QueueNotify        = "notify"
)

// TaskNotifier bridges dispatched outbox events onto the task queue. Only
// order confirmations fan out to customers; other topics stay log-only.
type TaskNotifier struct {
	Client *asynq.Client
}

func (n TaskNotifier) Notify(ctx context.Context, ev store.DomainEvent) error {
	if n.Client == nil {
		return errors.New("notify: asynq client not configured")
	}
	if ev.Topic != events.TopicOrderCreated {
		return nil
	}
	task := asynq.NewTask(TaskOrderConfirmed, ev.Payload)
	_, err := n.Client.EnqueueContext(ctx, task, asynq.Queue(QueueNotify), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", TaskOrderConfirmed, err)
	}
	return nil
}

// OrderConfirmedPayload mirrors the order.created event body.
type OrderConfirmedPayload struct {
	OrderID  string `json:"orderId"`
	UserID   string `json:"userId"`
	Zone     string `json:"zone"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
	Coupon   string `json:"coupon,omitempty"`
}

// UserLookup resolves the recipient address for a confirmation mail.
type UserLookup interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
}

// EmailWorker processes notification tasks from the queue.
type EmailWorker struct {
	Mail   common.EmailSender
	Users  UserLookup
	Logger *zerolog.Logger
}

// HandleOrderConfirmed is the asynq handler for TaskOrderConfirmed.
func (w EmailWorker) HandleOrderConfirmed(ctx context.Context, task *asynq.Task) error {
	var payload OrderConfirmedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become valid; do not retry.
		return fmt.Errorf("notify: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	uID, err := cart.ToUUID(payload.UserID)
	if err != nil {
		return fmt.Errorf("notify: invalid user id %q: %w", payload.UserID, asynq.SkipRetry)
	}
	user, err := w.Users.GetUserByID(ctx, uID)
	if err != nil {
		return fmt.Errorf("notify: lookup user: %w", err)
	}
	subject := fmt.Sprintf("Order %s confirmed", payload.OrderID)
	body := fmt.Sprintf("Hi %s,\n\nYour order %s is confirmed. Total: %d %s.\n",
		user.Name, payload.OrderID, payload.Total, payload.Currency)
	if err := w.Mail.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	if w.Logger != nil {
		w.Logger.Info().Str("order_id", payload.OrderID).Str("to", user.Email).Msg("order confirmation sent")
	}
	return nil
}

// Mux registers all notification handlers on an asynq mux.
func (w EmailWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOrderConfirmed, w.HandleOrderConfirmed)
	return mux
}
