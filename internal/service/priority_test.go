package service

import (
	"testing"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingCount(f *fixture, providerID string) int {
	count := 0
	for _, a := range f.engine.AppointmentsFor(providerID) {
		if a.Status == model.AppointmentStatusPending {
			count++
		}
	}
	return count
}

func TestSetPriority_CascadesEarlierAppointments(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)
	c := f.book(t, "student1", 15)
	require.Equal(t, at(day1, 9, 30), c.ScheduledAt)

	before := pendingCount(f, "prof.santos")

	result, err := f.engine.SetPriority(c.ID, true)
	require.NoError(t, err)
	assert.False(t, result.Partial())

	assert.Equal(t, at(day1, 9, 0), result.Appointment.ScheduledAt)
	assert.True(t, result.Appointment.Priority)
	assert.Equal(t, at(day1, 9, 15), f.get(t, a.ID).ScheduledAt)
	assert.Equal(t, at(day1, 9, 30), f.get(t, b.ID).ScheduledAt)

	assert.Equal(t, []Reschedule{
		{AppointmentID: a.ID, From: at(day1, 9, 0), To: at(day1, 9, 15)},
		{AppointmentID: b.ID, From: at(day1, 9, 15), To: at(day1, 9, 30)},
	}, result.Rescheduled)

	assert.Equal(t, before, pendingCount(f, "prof.santos"))
	for _, a := range f.engine.AppointmentsFor("prof.santos") {
		assert.Equal(t, model.AppointmentStatusPending, a.Status)
	}

	snap, err := f.engine.Queue("prof.santos")
	require.NoError(t, err)
	require.Len(t, snap.Priority, 1)
	assert.Equal(t, c.ID, snap.Priority[0].ID)
	require.Len(t, snap.Regular, 2)
	assert.Equal(t, a.ID, snap.Regular[0].ID)
	assert.Equal(t, b.ID, snap.Regular[1].ID)
	f.requireQueueMembership(t, "prof.santos")

	// student1 - владелец a и c, student2 - владелец b
	assert.Len(t, f.notifications.List("student1"), 2)
	assert.Len(t, f.notifications.List("student2"), 1)
}

func TestSetPriority_KeepsSingleOccupancy(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.book(t, "student1", 15)
	b := f.book(t, "student2", 30)
	c := f.book(t, "student1", 15)

	_, err := f.engine.SetPriority(c.ID, true)
	require.NoError(t, err)

	list := f.engine.AppointmentsFor("prof.santos")
	for i := range list {
		for j := i + 1; j < len(list); j++ {
			x, y := list[i], list[j]
			overlap := x.ScheduledAt.Before(y.EndsAt()) && y.ScheduledAt.Before(x.EndsAt())
			assert.False(t, overlap, "appointments %d and %d overlap", x.ID, y.ID)
		}
	}
	assert.Equal(t, at(day1, 9, 30), f.get(t, b.ID).ScheduledAt)
}

func TestSetPriority_LeavesUnmovableInPlace(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)
	x := f.book(t, "student1", 15)

	f.clock.now = at(day1, 9, 40)

	result, err := f.engine.SetPriority(x.ID, true)
	require.NoError(t, err)

	assert.Equal(t, at(day1, 9, 45), result.Appointment.ScheduledAt)
	assert.True(t, result.Partial())
	assert.Equal(t, []int64{a.ID, b.ID}, result.Unmoved)
	assert.Empty(t, result.Rescheduled)

	assert.Equal(t, at(day1, 9, 0), f.get(t, a.ID).ScheduledAt)
	assert.Equal(t, at(day1, 9, 15), f.get(t, b.ID).ScheduledAt)
	f.requireQueueMembership(t, "prof.santos")
}

func TestSetPriority_RollsBackWithoutFreeSlot(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	x := f.book(t, "student2", 15)
	f.book(t, "student1", 15)
	f.book(t, "student2", 15)

	f.clock.now = at(day1, 9, 20)

	_, err := f.engine.SetPriority(x.ID, true)
	require.ErrorIs(t, err, model.ErrNoCapacity)

	gotA, gotX := f.get(t, a.ID), f.get(t, x.ID)
	assert.Equal(t, at(day1, 9, 0), gotA.ScheduledAt)
	assert.Equal(t, at(day1, 9, 15), gotX.ScheduledAt)
	assert.False(t, gotX.Priority)

	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Empty(t, free)
	assert.Empty(t, f.notifications.List("student1"))
}

func TestSetPriority_Guards(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)

	_, err := f.engine.SetPriority(a.ID, false)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.engine.SetPriority(a.ID, true)
	require.NoError(t, err)
	_, err = f.engine.SetPriority(a.ID, true)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	require.NoError(t, f.engine.Cancel(b.ID))
	_, err = f.engine.SetPriority(b.ID, true)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.engine.SetPriority(404, true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetPriority_RemoveKeepsSlot(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)

	promoted, err := f.engine.SetPriority(b.ID, true)
	require.NoError(t, err)

	result, err := f.engine.SetPriority(b.ID, false)
	require.NoError(t, err)
	assert.False(t, result.Appointment.Priority)
	assert.Equal(t, promoted.Appointment.ScheduledAt, result.Appointment.ScheduledAt)

	snap, err := f.engine.Queue("prof.santos")
	require.NoError(t, err)
	assert.Empty(t, snap.Priority)
	require.Len(t, snap.Regular, 2)
	assert.Equal(t, b.ID, snap.Regular[0].ID)
	f.requireQueueMembership(t, "prof.santos")
}
