package service

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"go.uber.org/zap"
)

// Reschedule перенос одной записи
type Reschedule struct {
	AppointmentID int64
	From          time.Time
	To            time.Time
}

// PromotionResult итог изменения приоритета.
// Unmoved - вытесненные записи, для которых не нашлось слота позже; они остались на прежнем времени.
type PromotionResult struct {
	Appointment model.Appointment
	Rescheduled []Reschedule
	Unmoved     []int64
}

// Partial сообщает, что часть вытесненных записей не удалось сдвинуть
func (r *PromotionResult) Partial() bool {
	return len(r.Unmoved) > 0
}

// placement исходное положение записи для отката
type placement struct {
	appt *model.Appointment
	slot *model.Slot
	at   time.Time
}

func restore(cal *calendar.Calendar, saved []placement) {
	for _, p := range saved {
		if p.appt.Slot != nil && p.appt.Slot.AppointmentID == p.appt.ID {
			cal.Release(p.appt.Slot)
		}
	}
	for _, p := range saved {
		p.appt.ScheduledAt = p.at
		p.appt.Slot = p.slot
		if p.slot != nil {
			p.slot.AppointmentID = p.appt.ID
		}
	}
}

// SetPriority включает или снимает приоритет ожидающей записи.
//
// Включение ставит запись на самый ранний свободный слот, а все обычные записи провайдера,
// стоявшие раньше неё, по порядку сдвигаются вперёд, каждая на следующий свободный слот после предыдущей.
// Если вытесненную запись некуда сдвинуть, она остаётся на своём времени (см. PromotionResult.Unmoved);
// если и это невозможно, повышение откатывается целиком с ErrNoCapacity.
//
// Снятие приоритета возвращает запись в обычную очередь на её текущем слоте.
func (s *SchedulingService) SetPriority(appointmentID int64, priority bool) (*PromotionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.appointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != model.AppointmentStatusPending {
		return nil, fmt.Errorf("%w: appointment %d is %s", model.ErrInvalidState, a.ID, a.Status)
	}
	if a.Priority == priority {
		return nil, fmt.Errorf("%w: appointment %d already has priority=%t", model.ErrInvalidState, a.ID, priority)
	}

	q, ok := s.store.Queue(a.ProviderID)
	if !ok || !q.Contains(a) {
		return nil, fmt.Errorf("%w: appointment %d is not queued", model.ErrNotFound, a.ID)
	}

	if !priority {
		a.Priority = false
		a.UpdatedAt = s.now()
		q.Move(a)

		s.logger.Info("Appointment priority removed", zap.Int64("appointment_id", a.ID))

		return &PromotionResult{Appointment: a.Snapshot()}, nil
	}

	return s.promote(a)
}

func (s *SchedulingService) promote(a *model.Appointment) (*PromotionResult, error) {
	cal, _ := s.store.Calendar(a.ProviderID)
	q, _ := s.store.Queue(a.ProviderID)
	now := s.now()

	var displaced []*model.Appointment
	for _, other := range s.store.ProviderAppointments(a.ProviderID, model.AppointmentStatusPending) {
		if other.ID != a.ID && !other.Priority && other.ScheduledAt.Before(a.ScheduledAt) {
			displaced = append(displaced, other)
		}
	}
	byScheduledAt(displaced)

	moving := map[int64]bool{a.ID: true}
	saved := []placement{{appt: a, slot: a.Slot, at: a.ScheduledAt}}
	for _, d := range displaced {
		moving[d.ID] = true
		saved = append(saved, placement{appt: d, slot: d.Slot, at: d.ScheduledAt})
	}

	for _, p := range saved {
		if p.slot != nil && p.slot.AppointmentID == p.appt.ID {
			cal.Release(p.slot)
		}
		p.appt.Slot = nil
	}

	busy := s.busy(a.ProviderID, moving)

	target := cal.FindFirstAvailable(a.Duration(), now, busy)
	if target == nil {
		restore(cal, saved)
		return nil, fmt.Errorf("%w: no slot for priority appointment %d", model.ErrNoCapacity, a.ID)
	}
	if err := cal.Claim(target, a, busy); err != nil {
		restore(cal, saved)
		return nil, fmt.Errorf("claim priority slot: %w", err)
	}
	busy = append(busy, interval(a))

	result := &PromotionResult{}
	prev := a.ScheduledAt
	for i, d := range displaced {
		orig := saved[i+1]

		if next := cal.FindFirstAvailable(d.Duration(), prev.Add(time.Nanosecond), busy); next != nil {
			if err := cal.Claim(next, d, busy); err == nil {
				busy = append(busy, interval(d))
				prev = d.ScheduledAt
				if !d.ScheduledAt.Equal(orig.at) {
					result.Rescheduled = append(result.Rescheduled, Reschedule{
						AppointmentID: d.ID,
						From:          orig.at,
						To:            d.ScheduledAt,
					})
				}
				continue
			}
		}

		// Сдвинуть некуда: оставляем на прежнем времени, если оно всё ещё свободно
		if orig.slot != nil && cal.Claim(orig.slot, d, busy) == nil {
			busy = append(busy, interval(d))
			result.Unmoved = append(result.Unmoved, d.ID)
			continue
		}

		restore(cal, saved)
		return nil, fmt.Errorf("%w: displaced appointment %d cannot be rescheduled", model.ErrNoCapacity, d.ID)
	}

	a.Priority = true
	a.UpdatedAt = now
	for _, d := range displaced {
		d.UpdatedAt = now
	}
	q.Move(a)
	q.Resort()

	for _, r := range result.Rescheduled {
		d, _ := s.store.Appointment(r.AppointmentID)
		s.notifier.Notify(d.RequesterID, fmt.Sprintf(
			"Appointment #%d (%s) was rescheduled from %s to %s because a priority consultation was inserted.",
			d.ID, d.Topic, formatting.FormatDateTime(r.From), formatting.FormatDateTime(r.To)))
	}
	s.notifier.Notify(a.RequesterID, fmt.Sprintf(
		"Appointment #%d (%s) now has priority and is scheduled for %s.",
		a.ID, a.Topic, formatting.FormatDateTime(a.ScheduledAt)))

	if result.Partial() {
		s.logger.Warn("Priority cascade left appointments in place",
			zap.Int64("appointment_id", a.ID),
			zap.Int64s("unmoved", result.Unmoved),
		)
	}
	s.logger.Info("Appointment promoted",
		zap.Int64("appointment_id", a.ID),
		zap.String("provider_id", a.ProviderID),
		zap.Time("scheduled_at", a.ScheduledAt),
		zap.Int("rescheduled", len(result.Rescheduled)),
	)

	result.Appointment = a.Snapshot()
	return result, nil
}
