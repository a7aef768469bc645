package repository

import (
	"cmp"
	"slices"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/queue"
)

// Store владеет всеми индексами ядра в памяти: записи, календари и очереди провайдеров.
// Не потокобезопасен, доступ сериализует SchedulingService.
type Store struct {
	appointments map[int64]*model.Appointment
	calendars    map[string]*calendar.Calendar
	queues       map[string]*queue.DualQueue
	lastID       int64
}

func NewStore() *Store {
	return &Store{
		appointments: make(map[int64]*model.Appointment),
		calendars:    make(map[string]*calendar.Calendar),
		queues:       make(map[string]*queue.DualQueue),
	}
}

// AttachProvider создаёт календарь и очередь провайдера, если их ещё нет
func (s *Store) AttachProvider(providerID string, grid calendar.Grid) {
	if _, ok := s.calendars[providerID]; !ok {
		s.calendars[providerID] = calendar.New(providerID, grid)
	}
	if _, ok := s.queues[providerID]; !ok {
		s.queues[providerID] = queue.New(providerID)
	}
}

func (s *Store) Calendar(providerID string) (*calendar.Calendar, bool) {
	c, ok := s.calendars[providerID]
	return c, ok
}

func (s *Store) Queue(providerID string) (*queue.DualQueue, bool) {
	q, ok := s.queues[providerID]
	return q, ok
}

// NextAppointmentID монотонно выдаёт идентификаторы записей
func (s *Store) NextAppointmentID() int64 {
	s.lastID++
	return s.lastID
}

func (s *Store) PutAppointment(a *model.Appointment) {
	s.appointments[a.ID] = a
}

func (s *Store) Appointment(id int64) (*model.Appointment, bool) {
	a, ok := s.appointments[id]
	return a, ok
}

func (s *Store) DeleteAppointment(id int64) {
	delete(s.appointments, id)
}

// Appointments все записи, отсортированные по идентификатору
func (s *Store) Appointments() []*model.Appointment {
	return s.filter(func(*model.Appointment) bool { return true })
}

// ProviderAppointments записи провайдера в заданном статусе
func (s *Store) ProviderAppointments(providerID string, status model.AppointmentStatus) []*model.Appointment {
	return s.filter(func(a *model.Appointment) bool {
		return a.ProviderID == providerID && a.Status == status
	})
}

// ParticipantAppointments записи, где участник - студент или провайдер
func (s *Store) ParticipantAppointments(participantID string) []*model.Appointment {
	return s.filter(func(a *model.Appointment) bool {
		return a.RequesterID == participantID || a.ProviderID == participantID
	})
}

func (s *Store) filter(keep func(*model.Appointment) bool) []*model.Appointment {
	var out []*model.Appointment
	for _, a := range s.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b *model.Appointment) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
