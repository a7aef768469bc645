package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Commands:\n\n" +
	"For students:\n" +
	"/book <provider> <minutes> <topic> - Book the first free time\n" +
	"/slots <provider> [dd.mm.yyyy] [minutes] - Free time for a day\n" +
	"/appointments - My appointments\n" +
	"/cancel <id> - Cancel an appointment\n" +
	"/queue <provider> - Provider queue\n" +
	"/calendar <provider> - Provider schedule as a picture\n" +
	"/notifications - My notifications\n\n" +
	"For providers:\n" +
	"/queue - My queue\n" +
	"/calendar - My schedule as a picture\n" +
	"/next - Call the next appointment\n" +
	"/complete <id> - Finish a consultation\n" +
	"/priority <id> on|off - Move an appointment to the priority queue"

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.startReply(update.Message.Chat.ID), nil)
}

func (h *Handlers) startReply(chatID int64) string {
	p, err := h.participants.ByTelegramChat(chatID)
	if err != nil {
		return fmt.Sprintf(
			"👋 Hi!\n\n"+
				"This chat is not linked to a participant yet.\n"+
				"Ask the administrator to register you with chat id %d.", chatID)
	}
	return fmt.Sprintf("👋 Hi, %s!\n\nYou are registered as %s.\n\n%s", p.Name, p.Role, helpText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText, nil)
}

// HandleBook обрабатывает команду /book
func (h *Handlers) HandleBook(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.bookReply(p, commandArgs(update.Message.Text)), nil)
}

func (h *Handlers) bookReply(p *model.Participant, args []string) string {
	if len(args) < 3 {
		return "Usage: /book <provider> <minutes> <topic>"
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return "✏️ Duration must be a number of minutes."
	}

	a, err := h.engine.Book(p.ID, args[0], strings.Join(args[2:], " "), minutes)
	if err != nil {
		h.logger.Info("Booking rejected",
			zap.String("requester_id", p.ID),
			zap.String("provider_id", args[0]),
			zap.Error(err),
		)
		return ErrorText(err)
	}
	return "✅ Booked!\n\n" + FormatAppointment(*a)
}

// HandleSlots обрабатывает команду /slots
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireParticipant(ctx, b, update); !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.slotsReply(commandArgs(update.Message.Text)), nil)
}

func (h *Handlers) slotsReply(args []string) string {
	if len(args) == 0 {
		return "Usage: /slots <provider> [dd.mm.yyyy] [minutes]"
	}

	date := h.now().In(h.location)
	if len(args) > 1 {
		d, err := time.ParseInLocation("02.01.2006", args[1], h.location)
		if err != nil {
			return "✏️ Date must look like 19.10.2026."
		}
		date = d
	}
	minutes := 0
	if len(args) > 2 {
		m, err := strconv.Atoi(args[2])
		if err != nil {
			return "✏️ Duration must be a number of minutes."
		}
		minutes = m
	}

	slots, err := h.engine.AvailableSlots(args[0], date, minutes)
	if err != nil {
		return ErrorText(err)
	}
	if len(slots) == 0 {
		return fmt.Sprintf("📭 No free time on %s.", date.Format("02.01.2006"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 Free time on %s:\n", date.Format("02.01.2006"))
	for _, s := range slots {
		sb.WriteString("• " + formatting.FormatTimeRange(s.StartTime, s.EndTime) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HandleAppointments обрабатывает команду /appointments
func (h *Handlers) HandleAppointments(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}
	text, keyboard := h.appointmentsReply(p)
	h.sendMessage(ctx, b, update.Message.Chat.ID, text, keyboard)
}

func (h *Handlers) appointmentsReply(p *model.Participant) (string, *models.InlineKeyboardMarkup) {
	list := h.engine.AppointmentsFor(p.ID)
	if len(list) == 0 {
		return "📭 You have no appointments.\n\nBook one with /book.", nil
	}

	var blocks []string
	var rows [][]models.InlineKeyboardButton
	for _, a := range list {
		blocks = append(blocks, FormatAppointment(a))
		if a.Status == model.AppointmentStatusPending {
			rows = append(rows, []models.InlineKeyboardButton{{
				Text:         fmt.Sprintf("❌ Cancel #%d", a.ID),
				CallbackData: fmt.Sprintf("%s%d", CancelAppointmentPrefix, a.ID),
			}})
		}
	}

	text := "📅 Your appointments:\n\n" + strings.Join(blocks, "\n\n")
	if len(rows) == 0 {
		return text, nil
	}
	return text, &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// HandleCancel обрабатывает команду /cancel
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "Usage: /cancel <id>", nil)
		return
	}
	id, err := parseAppointmentID(args[0])
	if err != nil {
		h.sendError(ctx, b, update.Message.Chat.ID, ErrorText(err))
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.cancelReply(p, id), nil)
}

func (h *Handlers) cancelReply(p *model.Participant, id int64) string {
	a, err := h.engine.Appointment(id)
	if err != nil {
		return ErrorText(err)
	}
	if !involves(a, p.ID) {
		return ErrorText(fmt.Errorf("%w: appointment #%d", model.ErrNotFound, id))
	}
	if err := h.engine.Cancel(id); err != nil {
		return ErrorText(err)
	}
	return fmt.Sprintf("✅ Appointment #%d cancelled.", id)
}

// HandleQueue обрабатывает команду /queue
func (h *Handlers) HandleQueue(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.queueReply(p, commandArgs(update.Message.Text)), nil)
}

func (h *Handlers) queueReply(p *model.Participant, args []string) string {
	providerID := p.ID
	if len(args) > 0 {
		providerID = args[0]
	} else if !p.Role.IsProvider() {
		return "Usage: /queue <provider>"
	}

	snap, err := h.engine.Queue(providerID)
	if err != nil {
		return ErrorText(err)
	}
	wait, err := h.engine.EstimatedWait(providerID)
	if err != nil {
		return ErrorText(err)
	}

	ordered := snap.Ordered()
	if len(ordered) == 0 {
		return fmt.Sprintf("📭 Queue of %s is empty.", providerID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Queue of %s: %d waiting, about %s\n", providerID, len(ordered), formatting.FormatDuration(wait))
	for i, a := range ordered {
		mark := ""
		if a.Priority {
			mark = " ⚡"
		}
		fmt.Fprintf(&sb, "\n%d. #%d %s %s%s", i+1, a.ID,
			formatting.FormatTimeRange(a.ScheduledAt, a.EndsAt()), a.Topic, mark)
	}
	return sb.String()
}

// HandleNext обрабатывает команду /next
func (h *Handlers) HandleNext(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.nextReply(p), nil)
}

func (h *Handlers) nextReply(p *model.Participant) string {
	a, err := h.engine.DequeueNext(p.ID)
	if err != nil {
		return ErrorText(err)
	}
	if a == nil {
		return "📭 Nobody is waiting."
	}
	return "▶️ Now serving:\n\n" + FormatAppointment(*a)
}

// HandleComplete обрабатывает команду /complete
func (h *Handlers) HandleComplete(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.completeReply(p, commandArgs(update.Message.Text)), nil)
}

func (h *Handlers) completeReply(p *model.Participant, args []string) string {
	if len(args) != 1 {
		return "Usage: /complete <id>"
	}
	id, err := parseAppointmentID(args[0])
	if err != nil {
		return ErrorText(err)
	}

	a, err := h.engine.Appointment(id)
	if err != nil {
		return ErrorText(err)
	}
	if a.ProviderID != p.ID {
		return ErrorText(fmt.Errorf("%w: appointment #%d", model.ErrNotFound, id))
	}
	if err := h.engine.Complete(id); err != nil {
		return ErrorText(err)
	}
	return fmt.Sprintf("✔️ Consultation #%d completed.", id)
}

// HandlePriority обрабатывает команду /priority
func (h *Handlers) HandlePriority(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireProvider(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.priorityReply(p, commandArgs(update.Message.Text)), nil)
}

func (h *Handlers) priorityReply(p *model.Participant, args []string) string {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return "Usage: /priority <id> on|off"
	}
	id, err := parseAppointmentID(args[0])
	if err != nil {
		return ErrorText(err)
	}

	a, err := h.engine.Appointment(id)
	if err != nil {
		return ErrorText(err)
	}
	if a.ProviderID != p.ID {
		return ErrorText(fmt.Errorf("%w: appointment #%d", model.ErrNotFound, id))
	}

	result, err := h.engine.SetPriority(id, args[1] == "on")
	if err != nil {
		return ErrorText(err)
	}
	if args[1] == "off" {
		return fmt.Sprintf("✅ Appointment #%d moved back to the regular queue.", id)
	}

	text := fmt.Sprintf("⚡ Appointment #%d moved to %s.",
		id, formatting.FormatDateTime(result.Appointment.ScheduledAt))
	if n := len(result.Rescheduled); n > 0 {
		text += fmt.Sprintf("\n🔁 Rescheduled: %d", n)
	}
	if result.Partial() {
		text += fmt.Sprintf("\n⚠️ Could not move: %d, left at their time", len(result.Unmoved))
	}
	return text
}

// HandleNotifications обрабатывает команду /notifications
func (h *Handlers) HandleNotifications(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, h.notificationsReply(p), nil)
}

const notificationsShown = 10

func (h *Handlers) notificationsReply(p *model.Participant) string {
	list := h.notifications.List(p.ID)
	if len(list) == 0 {
		return "🔕 No notifications."
	}
	if len(list) > notificationsShown {
		list = list[len(list)-notificationsShown:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔔 Unread: %d\n", h.notifications.UnreadCount(p.ID))
	for _, n := range list {
		mark := "✉️"
		if n.Read {
			mark = "📭"
		}
		fmt.Fprintf(&sb, "\n%s %s\n%s\n", mark, formatting.FormatDateTime(n.CreatedAt), n.Message)
	}
	h.notifications.MarkAllRead(p.ID)
	return strings.TrimRight(sb.String(), "\n")
}

// HandleCalendar обрабатывает команду /calendar - картинка горизонта провайдера
func (h *Handlers) HandleCalendar(ctx context.Context, b *bot.Bot, update *models.Update) {
	p, ok := h.requireParticipant(ctx, b, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	image, caption, err := h.calendarImage(p, commandArgs(update.Message.Text))
	if err != nil {
		h.sendMessage(ctx, b, chatID, ErrorText(err), nil)
		return
	}

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "calendar.png", Data: bytes.NewReader(image)},
		Caption: caption,
	})
	if err != nil {
		h.logger.Error("Failed to send calendar image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handlers) calendarImage(p *model.Participant, args []string) ([]byte, string, error) {
	providerID := p.ID
	if len(args) > 0 {
		providerID = args[0]
	} else if !p.Role.IsProvider() {
		return nil, "", fmt.Errorf("%w: usage /calendar <provider>", model.ErrValidation)
	}

	views, err := h.engine.Horizon(providerID)
	if err != nil {
		return nil, "", err
	}

	free := 0
	for _, v := range views {
		if v.State == service.SlotFree {
			free++
		}
	}

	image, err := HorizonImage("Schedule of "+providerID, views, h.now().In(h.location))
	if err != nil {
		return nil, "", err
	}
	return image, fmt.Sprintf("🗓 %s: %d of %d slots free", providerID, free, len(views)), nil
}
