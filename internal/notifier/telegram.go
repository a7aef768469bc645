// Package notifier доставляет уведомления участникам через Telegram.
package notifier

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть API бота, которая нужна для отправки (*bot.Bot)
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type TelegramDeliverer struct {
	sender MessageSender
	logger *zap.Logger
}

func NewTelegramDeliverer(sender MessageSender, logger *zap.Logger) *TelegramDeliverer {
	return &TelegramDeliverer{
		sender: sender,
		logger: logger,
	}
}

// NewBot создаёт клиента Telegram без обработчиков входящих сообщений
func NewBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

// Deliver отправляет уведомление в чат участника. Участники без чата пропускаются
func (d *TelegramDeliverer) Deliver(ctx context.Context, recipient *model.Participant, n model.Notification) error {
	if recipient.TelegramChatID == 0 {
		d.logger.Debug("Recipient has no telegram chat, skipping",
			zap.String("recipient_id", recipient.ID),
		)
		return nil
	}

	_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: recipient.TelegramChatID,
		Text:   FormatNotification(n),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	d.logger.Info("Notification delivered",
		zap.String("recipient_id", recipient.ID),
		zap.String("notification_id", n.ID.String()),
	)

	return nil
}

// FormatNotification текст сообщения для Telegram
func FormatNotification(n model.Notification) string {
	return fmt.Sprintf("🔔 %s\n\n📅 %s", n.Message, formatting.FormatDateTime(n.CreatedAt))
}
