package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository"
	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var monday = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	h, _ := newTestHandlersWithClock(t)
	return h
}

// newTestHandlersWithClock возвращает обработчики и указатель на их текущее время
func newTestHandlersWithClock(t *testing.T) (*Handlers, *time.Time) {
	t.Helper()

	logger := zap.NewNop()
	participants := service.NewParticipantService(nil, logger)
	notifications := service.NewNotificationService(nil, participants, logger)

	opts := service.DefaultOptions()
	opts.Grid = calendar.Grid{
		SlotDuration: 15 * time.Minute,
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   10 * time.Hour,
		Location:     time.UTC,
	}
	opts.HorizonDays = 1

	current := monday
	now := func() time.Time { return current }
	engine, err := service.NewSchedulingService(repository.NewStore(), participants, notifications, opts, logger, service.WithClock(now))
	require.NoError(t, err)

	for _, p := range []*model.Participant{
		{ID: "student1", Name: "Ana", Role: model.RoleRequester, Topics: []string{"Operating Systems"}, TelegramChatID: 101},
		{ID: "student2", Name: "Ben", Role: model.RoleRequester, Topics: []string{"Operating Systems"}, TelegramChatID: 102},
		{ID: "prof.santos", Name: "Santos", Role: model.RoleProviderTeaching, Topics: []string{"Operating Systems"}, TelegramChatID: 201},
	} {
		require.NoError(t, participants.Register(context.Background(), p))
	}

	h := NewHandlers(engine, participants, notifications, time.UTC, logger)
	h.now = now
	return h, &current
}

func participant(t *testing.T, h *Handlers, id string) *model.Participant {
	t.Helper()
	p, err := h.participants.Get(id)
	require.NoError(t, err)
	return p
}

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, []string{"prof.santos", "30", "Operating", "Systems"}, commandArgs("/book@consult_bot prof.santos 30 Operating  Systems"))
	assert.Empty(t, commandArgs("/next"))
	assert.Nil(t, commandArgs("   "))
}

func TestParseIDFromCallback(t *testing.T) {
	id, err := ParseIDFromCallback(CancelAppointmentPrefix + "12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = ParseIDFromCallback("cancel_appt:x")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = ParseIDFromCallback("garbage")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestErrorText(t *testing.T) {
	assert.Contains(t, ErrorText(fmt.Errorf("%w: provider x", model.ErrNoCapacity)), "📭")
	assert.Contains(t, ErrorText(fmt.Errorf("%w: topic", model.ErrEligibility)), "🚫")
	assert.Equal(t, "❌ Something went wrong. Please try again later.", ErrorText(errors.New("pool closed")))
}

func TestStartReply(t *testing.T) {
	h := newTestHandlers(t)

	assert.Contains(t, h.startReply(101), "Hi, Ana!")
	assert.Contains(t, h.startReply(999), "chat id 999")
}

func TestBookAndCancel(t *testing.T) {
	h := newTestHandlers(t)
	student := participant(t, h, "student1")

	reply := h.bookReply(student, []string{"prof.santos", "30", "Operating", "Systems"})
	assert.Contains(t, reply, "✅ Booked!")
	assert.Contains(t, reply, "#1 Operating Systems")
	assert.Contains(t, reply, "19.10.2026 09:00")

	assert.Contains(t, h.bookReply(student, []string{"prof.santos", "thirty", "OS"}), "minutes")
	assert.Contains(t, h.bookReply(student, []string{"prof.santos", "30", "Compilers"}), "🚫")
	assert.Contains(t, h.bookReply(student, []string{"prof.santos"}), "Usage")

	text, keyboard := h.appointmentsReply(student)
	assert.Contains(t, text, "#1 Operating Systems")
	require.NotNil(t, keyboard)
	assert.Equal(t, CancelAppointmentPrefix+"1", keyboard.InlineKeyboard[0][0].CallbackData)

	// чужую запись отменить нельзя
	assert.Contains(t, h.cancelReply(participant(t, h, "student2"), 1), "🔍")

	assert.Equal(t, "✅ Appointment #1 cancelled.", h.cancelCallbackReply(101, CancelAppointmentPrefix+"1"))
	assert.Contains(t, h.cancelReply(student, 1), "⚠️")

	_, keyboard = h.appointmentsReply(student)
	assert.Nil(t, keyboard)
}

func TestSlotsReply(t *testing.T) {
	h := newTestHandlers(t)
	h.bookReply(participant(t, h, "student1"), []string{"prof.santos", "15", "Operating", "Systems"})

	reply := h.slotsReply([]string{"prof.santos"})
	assert.NotContains(t, reply, "09:00-09:15")
	assert.Contains(t, reply, "09:15-09:30")

	reply = h.slotsReply([]string{"prof.santos", "19.10.2026", "45"})
	assert.Contains(t, reply, "09:15-09:30")
	assert.NotContains(t, reply, "09:30-09:45")

	assert.Contains(t, h.slotsReply([]string{"prof.santos", "2026-10-19"}), "Date")
	assert.Contains(t, h.slotsReply([]string{"prof.santos", "20.10.2026"}), "No free time")
	assert.Contains(t, h.slotsReply([]string{"student1"}), "🚫")
}

func TestProviderFlow(t *testing.T) {
	h := newTestHandlers(t)
	prof := participant(t, h, "prof.santos")
	h.bookReply(participant(t, h, "student1"), []string{"prof.santos", "15", "Operating", "Systems"})
	h.bookReply(participant(t, h, "student2"), []string{"prof.santos", "15", "Operating", "Systems"})

	reply := h.priorityReply(prof, []string{"#2", "on"})
	assert.Contains(t, reply, "19.10.2026 09:00")
	assert.Contains(t, reply, "Rescheduled: 1")

	queue := h.queueReply(prof, nil)
	assert.Contains(t, queue, "2 waiting, about 30 min")
	assert.Contains(t, queue, "1. #2 09:00-09:15 Operating Systems ⚡")
	assert.Contains(t, queue, "2. #1 09:15-09:30")

	assert.Equal(t, "Usage: /queue <provider>", h.queueReply(participant(t, h, "student1"), nil))

	assert.Contains(t, h.nextReply(prof), "#2 Operating Systems")
	assert.Equal(t, "✔️ Consultation #2 completed.", h.completeReply(prof, []string{"2"}))
	assert.Contains(t, h.completeReply(prof, []string{"2"}), "⚠️")
	assert.Contains(t, h.nextReply(prof), "#1")
	assert.Equal(t, "📭 Nobody is waiting.", h.nextReply(prof))

	assert.Contains(t, h.priorityReply(prof, []string{"1", "maybe"}), "Usage")
}

func TestNotificationsReply(t *testing.T) {
	h := newTestHandlers(t)
	student := participant(t, h, "student1")

	assert.Equal(t, "🔕 No notifications.", h.notificationsReply(student))

	h.bookReply(student, []string{"prof.santos", "15", "Operating", "Systems"})
	h.cancelReply(student, 1)

	reply := h.notificationsReply(student)
	assert.Contains(t, reply, "Unread: 1")
	assert.Contains(t, reply, "was cancelled")
	assert.Zero(t, h.notifications.UnreadCount("student1"))
}
