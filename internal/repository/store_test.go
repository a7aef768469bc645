package repository

import (
	"testing"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AttachProviderIsIdempotent(t *testing.T) {
	s := NewStore()

	_, ok := s.Calendar("prof")
	assert.False(t, ok)

	s.AttachProvider("prof", calendar.DefaultGrid())
	cal, ok := s.Calendar("prof")
	require.True(t, ok)
	q, ok := s.Queue("prof")
	require.True(t, ok)

	s.AttachProvider("prof", calendar.DefaultGrid())
	again, _ := s.Calendar("prof")
	sameQueue, _ := s.Queue("prof")
	assert.Same(t, cal, again)
	assert.Same(t, q, sameQueue)
}

func TestStore_Appointments(t *testing.T) {
	s := NewStore()

	put := func(requester, provider string, status model.AppointmentStatus) int64 {
		a := &model.Appointment{ID: s.NextAppointmentID(), RequesterID: requester, ProviderID: provider, Status: status}
		s.PutAppointment(a)
		return a.ID
	}
	first := put("s1", "prof", model.AppointmentStatusPending)
	second := put("s2", "prof", model.AppointmentStatusCancelled)
	third := put("s1", "advisor", model.AppointmentStatusPending)

	assert.Equal(t, []int64{1, 2, 3}, []int64{first, second, third})

	ids := func(list []*model.Appointment) []int64 {
		var out []int64
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2, 3}, ids(s.Appointments()))
	assert.Equal(t, []int64{1}, ids(s.ProviderAppointments("prof", model.AppointmentStatusPending)))
	assert.Equal(t, []int64{1, 3}, ids(s.ParticipantAppointments("s1")))
	assert.Equal(t, []int64{1, 2}, ids(s.ParticipantAppointments("prof")))

	s.DeleteAppointment(second)
	_, ok := s.Appointment(second)
	assert.False(t, ok)

	// идентификаторы не переиспользуются после удаления
	assert.Equal(t, int64(4), s.NextAppointmentID())
}
