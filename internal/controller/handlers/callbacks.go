package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleCancelCallback обрабатывает нажатие кнопки отмены записи
func (h *Handlers) HandleCancelCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	callback := update.CallbackQuery

	h.logger.Info("Callback received",
		zap.String("data", callback.Data),
		zap.Int64("user_id", callback.From.ID),
	)

	text := h.cancelCallbackReply(callback.From.ID, callback.Data)

	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		h.logger.Error("Failed to answer callback", zap.Error(err))
	}
}

// cancelCallbackReply в личном чате chat id совпадает с id пользователя
func (h *Handlers) cancelCallbackReply(userID int64, data string) string {
	id, err := ParseIDFromCallback(data)
	if err != nil {
		return ErrorText(err)
	}
	p, err := h.participants.ByTelegramChat(userID)
	if err != nil {
		return ErrorText(err)
	}
	return h.cancelReply(p, id)
}
