// Package controller подключает ядро планирования к Telegram-боту.
package controller

import (
	"context"

	"github.com/Freeeeeet/consultation_scheduler/internal/controller/handlers"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot      *bot.Bot
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewBotController(botInstance *bot.Bot, cmdHandlers *handlers.Handlers, logger *zap.Logger) *BotController {
	return &BotController{
		bot:      botInstance,
		handlers: cmdHandlers,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)

	// Команды студентов
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/book", bot.MatchTypePrefix, c.handlers.HandleBook)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slots", bot.MatchTypePrefix, c.handlers.HandleSlots)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/appointments", bot.MatchTypeExact, c.handlers.HandleAppointments)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, c.handlers.HandleCancel)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/queue", bot.MatchTypePrefix, c.handlers.HandleQueue)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/calendar", bot.MatchTypePrefix, c.handlers.HandleCalendar)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/notifications", bot.MatchTypeExact, c.handlers.HandleNotifications)

	// Команды провайдеров
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/next", bot.MatchTypeExact, c.handlers.HandleNext)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/complete", bot.MatchTypePrefix, c.handlers.HandleComplete)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/priority", bot.MatchTypePrefix, c.handlers.HandlePriority)

	// Кнопки отмены под списком записей
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, handlers.CancelAppointmentPrefix, bot.MatchTypePrefix, c.handlers.HandleCancelCallback)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Start"},
		{Command: "help", Description: "❓ Commands"},
		{Command: "book", Description: "➕ Book a consultation"},
		{Command: "slots", Description: "🗓 Free time of a provider"},
		{Command: "appointments", Description: "📅 My appointments"},
		{Command: "cancel", Description: "❌ Cancel an appointment"},
		{Command: "queue", Description: "👥 Provider queue"},
		{Command: "calendar", Description: "🖼 Provider schedule picture"},
		{Command: "notifications", Description: "🔔 My notifications"},
		{Command: "next", Description: "▶️ Call the next student (provider)"},
		{Command: "complete", Description: "✔️ Finish a consultation (provider)"},
		{Command: "priority", Description: "⚡ Prioritize an appointment (provider)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота и блокируется до отмены контекста
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}
