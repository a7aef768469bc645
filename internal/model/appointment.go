package model

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending    AppointmentStatus = "pending"     // Занимает слот, ждёт в очереди
	AppointmentStatusInProgress AppointmentStatus = "in_progress" // Вызван из очереди
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusMissed     AppointmentStatus = "missed" // Время прошло, а консультация не началась
)

// CanTransition проверяет допустимость перехода между статусами
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	switch s {
	case AppointmentStatusPending:
		switch to {
		case AppointmentStatusInProgress, AppointmentStatusCancelled, AppointmentStatusMissed:
			return true
		}
	case AppointmentStatusInProgress:
		return to == AppointmentStatusCompleted
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusMissed:
		return false
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusMissed:
		return true
	case AppointmentStatusPending, AppointmentStatusInProgress:
		return false
	}
	return false
}

type Appointment struct {
	ID              int64             `json:"id"`
	RequesterID     string            `json:"requester_id"`
	ProviderID      string            `json:"provider_id"`
	Topic           string            `json:"topic"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          AppointmentStatus `json:"status"`
	Priority        bool              `json:"priority"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	// Занятый слот (не сериализуется, принадлежит календарю провайдера)
	Slot *Slot `json:"-"`
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(a.Duration())
}

// Transition переводит запись в новый статус или возвращает ErrInvalidState
func (a *Appointment) Transition(to AppointmentStatus, at time.Time) error {
	if !a.Status.CanTransition(to) {
		return fmt.Errorf("%w: appointment %d is %s, cannot become %s", ErrInvalidState, a.ID, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = at
	return nil
}

// Snapshot возвращает копию без ссылки на слот
func (a *Appointment) Snapshot() Appointment {
	c := *a
	c.Slot = nil
	return c
}
