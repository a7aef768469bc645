package service

import (
	"testing"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_SingleSlotWorkday(t *testing.T) {
	grid := hourGrid()
	grid.WorkdayEnd = 9*time.Hour + 15*time.Minute
	f := newFixture(t, grid, 1)

	a := f.book(t, "student1", 15)

	assert.Equal(t, at(day1, 9, 0), a.ScheduledAt)
	assert.Equal(t, model.AppointmentStatusPending, a.Status)
	assert.False(t, a.Priority)

	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestBook_FirstFitIsChronological(t *testing.T) {
	f := newFixture(t, hourGrid(), 2)

	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 30)
	c := f.book(t, "student1", 30)

	assert.Equal(t, at(day1, 9, 0), a.ScheduledAt)
	assert.Equal(t, at(day1, 9, 15), b.ScheduledAt)
	// 09:45-10:00 слишком короткое окно, переходим на следующий день
	assert.Equal(t, at(day1.AddDate(0, 0, 1), 9, 0), c.ScheduledAt)

	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(day1, 9, 45)}, slotStarts(free))
}

func TestBook_Deterministic(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.book(t, "student1", 15)

	first := f.book(t, "student2", 15)
	require.NoError(t, f.engine.Cancel(first.ID))
	second := f.book(t, "student2", 15)

	assert.Equal(t, first.ScheduledAt, second.ScheduledAt)
	assert.Greater(t, second.ID, first.ID)
}

func TestAvailableSlots_SkipsPastSlots(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.clock.now = at(day1, 9, 40)

	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(day1, 9, 45)}, slotStarts(free))
	assert.NotContains(t, slotStarts(free), at(day1, 9, 0))

	a := f.book(t, "student1", 15)
	assert.Equal(t, at(day1, 9, 45), a.ScheduledAt)

	free, err = f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestBook_RoundsDurationUp(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)

	a := f.book(t, "student1", 20)

	assert.Equal(t, 30, a.DurationMinutes)
	next := f.book(t, "student2", 15)
	assert.Equal(t, at(day1, 9, 30), next.ScheduledAt)
}

func TestBook_DurationValidation(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)

	for _, minutes := range []int{10, 0, 121} {
		_, err := f.engine.Book("student1", "prof.santos", "Operating Systems", minutes)
		assert.ErrorIs(t, err, model.ErrValidation, "duration %d", minutes)
	}

	_, err := f.engine.Book("student1", "prof.santos", "  ", 15)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBook_Eligibility(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)

	tests := []struct {
		name      string
		requester string
		provider  string
		topic     string
		wantErr   error
	}{
		{"provider does not teach topic", "student2", "prof.santos", "Data Structures", model.ErrEligibility},
		{"enrolled requester", "student1", "prof.santos", "Operating Systems", nil},
		{"provider is a requester", "student1", "student2", "Operating Systems", model.ErrEligibility},
		{"requester is a provider", "counselor.garcia", "prof.santos", "Operating Systems", model.ErrEligibility},
		{"advising accepts any topic", "student1", "counselor.garcia", "Academic Advising", nil},
		{"unknown provider", "student1", "prof.nobody", "Operating Systems", model.ErrNotFound},
		{"unknown requester", "ghost", "prof.santos", "Operating Systems", model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Book(tt.requester, tt.provider, tt.topic, 15)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBook_TeachingRequiresEnrollment(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.register(t, "student3", model.RoleRequester, "Data Structures")

	_, err := f.engine.Book("student3", "prof.santos", "Operating Systems", 15)
	assert.ErrorIs(t, err, model.ErrEligibility)
}

func TestBook_NoCapacity(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	f.book(t, "student1", 60)

	_, err := f.engine.Book("student2", "prof.santos", "Operating Systems", 15)
	assert.ErrorIs(t, err, model.ErrNoCapacity)
}

func TestBook_SkipsBreak(t *testing.T) {
	grid := calendar.Grid{
		SlotDuration: 15 * time.Minute,
		WorkdayStart: 11*time.Hour + 30*time.Minute,
		WorkdayEnd:   14 * time.Hour,
		BreakStart:   12 * time.Hour,
		BreakEnd:     13 * time.Hour,
		Location:     time.UTC,
	}
	f := newFixture(t, grid, 1)

	a := f.book(t, "student1", 30)
	b := f.book(t, "student2", 30)

	assert.Equal(t, at(day1, 11, 30), a.ScheduledAt)
	// окно 11:30-12:00 занято, перерыв разрывает непрерывность
	assert.Equal(t, at(day1, 13, 0), b.ScheduledAt)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)

	require.NoError(t, f.engine.Cancel(a.ID))

	got := f.get(t, a.ID)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)

	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(free), at(day1, 9, 0))

	assert.Len(t, f.notifications.List("student1"), 1)
	assert.Len(t, f.notifications.List("prof.santos"), 1)

	size, err := f.engine.QueueSize("prof.santos")
	require.NoError(t, err)
	assert.Zero(t, size)
	f.requireQueueMembership(t, "prof.santos")
}

func TestCancel_Twice(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)

	require.NoError(t, f.engine.Cancel(a.ID))
	assert.ErrorIs(t, f.engine.Cancel(a.ID), model.ErrInvalidState)
	assert.ErrorIs(t, f.engine.Cancel(999), model.ErrNotFound)
}

func TestEstimatedWait(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)

	wait := func() int {
		w, err := f.engine.EstimatedWait("prof.santos")
		require.NoError(t, err)
		return w
	}

	assert.Zero(t, wait())
	a := f.book(t, "student1", 15)
	assert.Equal(t, 15, wait())
	b := f.book(t, "student2", 30)
	assert.Equal(t, 45, wait())

	require.NoError(t, f.engine.Cancel(b.ID))
	assert.Equal(t, 15, wait())

	next, err := f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	require.Equal(t, a.ID, next.ID)
	assert.Zero(t, wait())
}

func TestDequeueNext(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)

	next, err := f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	assert.Equal(t, a.ID, next.ID)
	assert.Equal(t, model.AppointmentStatusInProgress, next.Status)

	// время потрачено, слот снова свободен
	free, err := f.engine.AvailableSlots("prof.santos", day1, 15)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(free), at(day1, 9, 0))

	next, err = f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	assert.Equal(t, b.ID, next.ID)

	next, err = f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	assert.Nil(t, next)

	f.requireQueueMembership(t, "prof.santos")
}

func TestDequeueNext_PriorityFirst(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)

	_, err := f.engine.SetPriority(b.ID, true)
	require.NoError(t, err)

	next, err := f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	assert.Equal(t, b.ID, next.ID)

	next, err = f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	assert.Equal(t, a.ID, next.ID)
}

func TestComplete(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)

	assert.ErrorIs(t, f.engine.Complete(a.ID), model.ErrInvalidState)

	_, err := f.engine.DequeueNext("prof.santos")
	require.NoError(t, err)
	require.NoError(t, f.engine.Complete(a.ID))

	assert.Equal(t, model.AppointmentStatusCompleted, f.get(t, a.ID).Status)
	assert.ErrorIs(t, f.engine.Cancel(a.ID), model.ErrInvalidState)
}

func TestAppointmentsFor(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)
	a := f.book(t, "student1", 15)
	b := f.book(t, "student2", 15)
	c := f.book(t, "student1", 15)

	mine := f.engine.AppointmentsFor("student1")
	require.Len(t, mine, 2)
	assert.Equal(t, a.ID, mine[0].ID)
	assert.Equal(t, c.ID, mine[1].ID)

	assert.Len(t, f.engine.AppointmentsFor("prof.santos"), 3)
	assert.Equal(t, b.ID, f.engine.AppointmentsFor("student2")[0].ID)
}

func TestQueue_UnknownProvider(t *testing.T) {
	f := newFixture(t, hourGrid(), 1)

	_, err := f.engine.Queue("nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.engine.QueueSize("student1")
	assert.ErrorIs(t, err, model.ErrEligibility)
}

func TestNewSchedulingService_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MinDurationMinutes = 60
	opts.MaxDurationMinutes = 30

	_, err := NewSchedulingService(nil, nil, nil, opts, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}
