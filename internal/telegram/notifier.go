package telegram

import (
	"context"
	"fmt"

	"cryptofolio-bot-go/internal/notify"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// sender is the part of *tele.Bot used to deliver notifications.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers notifications to the admin chat.
type Notifier struct {
	sender sender
	chat   tele.ChatID
	logger *zap.Logger
}

var _ notify.Notifier = (*Notifier)(nil)

func NewNotifier(s sender, adminID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: s,
		chat:   tele.ChatID(adminID),
		logger: logger,
	}
}

// Notify sends n as an HTML message, with an inline button when n carries an
// action.
func (n *Notifier) Notify(ctx context.Context, nt notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := []interface{}{tele.ModeHTML}
	if a := nt.Action; a != nil {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data(a.Label, a.Unique, a.Data)))
		opts = append(opts, markup)
	}

	if _, err := n.sender.Send(n.chat, nt.Text, opts...); err != nil {
		return fmt.Errorf("failed to send notification %s: %w", nt.ID, err)
	}
	n.logger.Debug("Notification sent", zap.String("id", nt.ID))
	return nil
}
