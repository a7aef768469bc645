package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
)

// CancelAppointmentPrefix префикс callback data кнопки отмены: "cancel_appt:12"
const CancelAppointmentPrefix = "cancel_appt:"

// commandArgs аргументы после команды: "/book@bot a b" -> [a b]
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

func parseAppointmentID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: appointment id %q", model.ErrValidation, s)
	}
	return id, nil
}

// ParseIDFromCallback извлекает ID из callback data
func ParseIDFromCallback(data string) (int64, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: callback data %q", model.ErrValidation, data)
	}
	return parseAppointmentID(parts[1])
}

// ErrorText переводит ошибку ядра в сообщение для пользователя
func ErrorText(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "✏️ " + err.Error()
	case errors.Is(err, model.ErrNotFound):
		return "🔍 " + err.Error()
	case errors.Is(err, model.ErrEligibility):
		return "🚫 " + err.Error()
	case errors.Is(err, model.ErrNoCapacity), errors.Is(err, model.ErrCapacity):
		return "📭 " + err.Error()
	case errors.Is(err, model.ErrInvalidState):
		return "⚠️ " + err.Error()
	case errors.Is(err, model.ErrDuplicateIdentity):
		return "👥 " + err.Error()
	}
	return "❌ Something went wrong. Please try again later."
}

// FormatAppointment форматирует запись для отображения
func FormatAppointment(a model.Appointment) string {
	text := fmt.Sprintf(
		"📌 #%d %s\n"+
			"📅 %s, %s\n"+
			"👤 %s → %s\n"+
			"%s",
		a.ID, a.Topic,
		formatting.FormatDateTime(a.ScheduledAt), formatting.FormatDuration(a.DurationMinutes),
		a.RequesterID, a.ProviderID,
		formatting.GetAppointmentStatusDisplay(a.Status),
	)
	if a.Priority {
		text += " ⚡ priority"
	}
	return text
}

func involves(a *model.Appointment, participantID string) bool {
	return a.RequesterID == participantID || a.ProviderID == participantID
}
