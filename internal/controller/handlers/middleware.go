package handlers

import (
	"context"
	"errors"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireParticipant находит участника, привязанного к чату
// Возвращает участника и true если OK, nil и false если нет
func (h *Handlers) requireParticipant(ctx context.Context, b *bot.Bot, update *models.Update) (*model.Participant, bool) {
	if update.Message == nil {
		return nil, false
	}

	chatID := update.Message.Chat.ID
	p, err := h.participants.ByTelegramChat(chatID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			h.logger.Error("Failed to get participant", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		h.sendError(ctx, b, chatID, "❌ This chat is not linked to a participant. Use /start to see your chat id.")
		return nil, false
	}

	return p, true
}

// requireProvider проверяет что участник ведёт консультации
func (h *Handlers) requireProvider(ctx context.Context, b *bot.Bot, update *models.Update) (*model.Participant, bool) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return nil, false
	}

	if !p.Role.IsProvider() {
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ This command is available to providers only.")
		return nil, false
	}

	return p, true
}

// sendError отправляет сообщение об ошибке и логирует если не удалось
func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send error message",
			zap.Int64("chat_id", chatID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
