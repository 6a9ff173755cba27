// Package notify delivers chat messages without blocking or failing the caller.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/sensorbridge/core/logger"
	tgsender "github.com/m3rciful/sensorbridge/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Sender is the part of *tele.Bot used to deliver text.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier sends text messages fire-and-forget.
type Notifier struct {
	sender     Sender
	dispatcher *tgsender.Dispatcher
}

// New starts a Notifier whose worker pool is sized by opts. Call Close on shutdown.
func New(sender Sender, opts tgsender.Options) *Notifier {
	n := &Notifier{sender: sender}
	n.dispatcher = tgsender.NewDispatcher(n.deliver, opts)
	return n
}

func (n *Notifier) deliver(_ context.Context, m tgsender.Message) error {
	_, err := n.sender.Send(tele.ChatID(m.ChatID), m.Text)
	return err
}

// Notify makes one sendMessage call to chatID. Failures are logged by the
// dispatcher and dropped; nothing is reported back.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) {
	if n == nil || n.sender == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Queued messages outlive the request that produced them.
	ctx = context.WithoutCancel(ctx)
	m := tgsender.Message{ChatID: chatID, Text: text}

	err := n.dispatcher.Enqueue(ctx, m)
	if err == nil {
		return
	}
	if errors.Is(err, tgsender.ErrQueueFull) {
		logger.Warn(ctx, "tg.sender", "send.queue_full",
			slog.Int64("chat_id", chatID),
			slog.String("outcome", "fallback"),
		)
	}
	n.dispatcher.Deliver(ctx, m)
}

// Failures returns how many deliveries failed.
func (n *Notifier) Failures() uint64 { return n.dispatcher.Failures() }

// Close waits for queued messages. Later calls to Notify send inline.
func (n *Notifier) Close() { n.dispatcher.Close() }
