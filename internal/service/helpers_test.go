package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day1 = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

// hourGrid рабочий день 09:00-10:00 без перерыва: четыре слота по 15 минут
func hourGrid() calendar.Grid {
	return calendar.Grid{
		SlotDuration: 15 * time.Minute,
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   10 * time.Hour,
		Location:     time.UTC,
	}
}

type fixture struct {
	engine        *SchedulingService
	participants  *ParticipantService
	notifications *NotificationService
	clock         *testClock
}

func newFixture(t *testing.T, grid calendar.Grid, horizonDays int) *fixture {
	t.Helper()

	logger := zap.NewNop()
	clock := &testClock{now: at(day1, 8, 0)}

	participants := NewParticipantService(nil, logger)
	notifications := NewNotificationService(nil, participants, logger)

	opts := DefaultOptions()
	opts.Grid = grid
	opts.HorizonDays = horizonDays

	engine, err := NewSchedulingService(repository.NewStore(), participants, notifications, opts, logger, WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		engine:        engine,
		participants:  participants,
		notifications: notifications,
		clock:         clock,
	}

	f.register(t, "student1", model.RoleRequester, "Operating Systems")
	f.register(t, "student2", model.RoleRequester, "Operating Systems", "Data Structures")
	f.register(t, "prof.santos", model.RoleProviderTeaching, "Operating Systems")
	f.register(t, "counselor.garcia", model.RoleProviderAdvising)

	return f
}

func (f *fixture) register(t *testing.T, id string, role model.Role, topics ...string) {
	t.Helper()
	require.NoError(t, f.participants.Register(context.Background(), &model.Participant{
		ID:     id,
		Name:   id,
		Role:   role,
		Topics: topics,
	}))
}

func (f *fixture) book(t *testing.T, requesterID string, minutes int) *model.Appointment {
	t.Helper()
	a, err := f.engine.Book(requesterID, "prof.santos", "Operating Systems", minutes)
	require.NoError(t, err)
	return a
}

func (f *fixture) get(t *testing.T, id int64) *model.Appointment {
	t.Helper()
	a, err := f.engine.Appointment(id)
	require.NoError(t, err)
	return a
}

// requireQueueMembership каждая ожидающая запись провайдера стоит ровно в одной подочереди, остальные - ни в одной
func (f *fixture) requireQueueMembership(t *testing.T, providerID string) {
	t.Helper()

	snap, err := f.engine.Queue(providerID)
	require.NoError(t, err)

	seen := make(map[int64]int)
	for _, a := range snap.Ordered() {
		seen[a.ID]++
	}
	for _, a := range f.engine.AppointmentsFor(providerID) {
		if a.Status == model.AppointmentStatusPending {
			require.Equal(t, 1, seen[a.ID], "pending appointment %d", a.ID)
		} else {
			require.Zero(t, seen[a.ID], "appointment %d is %s", a.ID, a.Status)
		}
	}
}

func slotStarts(slots []model.Slot) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime)
	}
	return out
}
