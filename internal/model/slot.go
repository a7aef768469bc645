package model

import "time"

// Slot один интервал сетки расписания провайдера
type Slot struct {
	ProviderID    string    `json:"provider_id"`
	Date          time.Time `json:"date"` // полночь календарного дня
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	AppointmentID int64     `json:"appointment_id"` // 0 - слот свободен
}

func (s *Slot) Available() bool {
	return s.AppointmentID == 0
}

func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
