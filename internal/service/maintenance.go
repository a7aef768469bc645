package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"go.uber.org/zap"
)

// CleanupReport итог очистки устаревших записей
type CleanupReport struct {
	Missed           int
	RemovedCompleted int
	RemovedCancelled int
	RemovedMissed    int
}

// CleanupStale переводит просроченные ожидающие записи в Missed, удаляет отменённые,
// а также завершённые и пропущенные старше срока хранения
func (s *SchedulingService) CleanupStale(now time.Time) CleanupReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report CleanupReport
	cutoff := now.Add(-s.opts.Retention)

	for _, a := range s.store.Appointments() {
		switch a.Status {
		case model.AppointmentStatusCompleted:
			if a.ScheduledAt.Before(cutoff) {
				s.store.DeleteAppointment(a.ID)
				report.RemovedCompleted++
			}
		case model.AppointmentStatusCancelled:
			s.detach(a)
			s.store.DeleteAppointment(a.ID)
			report.RemovedCancelled++
		case model.AppointmentStatusMissed:
			if a.ScheduledAt.Before(cutoff) {
				s.store.DeleteAppointment(a.ID)
				report.RemovedMissed++
			}
		case model.AppointmentStatusPending:
			if !a.ScheduledAt.Before(now) {
				continue
			}
			if err := a.Transition(model.AppointmentStatusMissed, now); err != nil {
				continue
			}
			// Время слота уже прошло, освобождать его незачем; из очереди убираем
			if q, ok := s.store.Queue(a.ProviderID); ok {
				q.Remove(a)
			}
			msg := fmt.Sprintf("Appointment #%d (%s) on %s is now %s.",
				a.ID, a.Topic, formatting.FormatDateTime(a.ScheduledAt),
				formatting.GetAppointmentStatusDisplay(a.Status))
			s.notifier.Notify(a.RequesterID, msg)
			s.notifier.Notify(a.ProviderID, msg)
			report.Missed++
		case model.AppointmentStatusInProgress:
		}
	}

	s.logger.Info("Stale appointments cleaned up",
		zap.Int("missed", report.Missed),
		zap.Int("removed_completed", report.RemovedCompleted),
		zap.Int("removed_cancelled", report.RemovedCancelled),
		zap.Int("removed_missed", report.RemovedMissed),
	)

	return report
}

// RegenerationReport итог пересоздания горизонта
type RegenerationReport struct {
	Slots       int
	Reanchored  int // записи, оставшиеся на своём времени
	Rescheduled int // записи, перенесённые на первый свободный слот
	Cancelled   int // записи, для которых места не нашлось
}

func (r *RegenerationReport) add(o RegenerationReport) {
	r.Slots += o.Slots
	r.Reanchored += o.Reanchored
	r.Rescheduled += o.Rescheduled
	r.Cancelled += o.Cancelled
}

// GenerateHorizon пересоздаёт слоты провайдера на days дней вперёд и заново привязывает ожидающие записи
func (s *SchedulingService) GenerateHorizon(providerID string, days int) (RegenerationReport, error) {
	if days <= 0 {
		return RegenerationReport{}, fmt.Errorf("%w: horizon must be at least one day", model.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, cal, _, err := s.provider(providerID)
	if err != nil {
		return RegenerationReport{}, err
	}
	return s.regenerate(cal, days), nil
}

// RegenerateAll пересоздаёт горизонт всех провайдеров реестра
func (s *SchedulingService) RegenerateAll(days int) (RegenerationReport, error) {
	var total RegenerationReport
	var errs []error
	for _, p := range s.directory.Providers() {
		report, err := s.GenerateHorizon(p.ID, days)
		if err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.ID, err))
			continue
		}
		total.add(report)
	}
	return total, errors.Join(errs...)
}

func (s *SchedulingService) regenerate(cal *calendar.Calendar, days int) RegenerationReport {
	now := s.now()
	providerID := cal.ProviderID()
	q, _ := s.store.Queue(providerID)

	report := RegenerationReport{Slots: cal.Generate(now, days)}

	pending := s.store.ProviderAppointments(providerID, model.AppointmentStatusPending)
	byScheduledAt(pending)
	for _, a := range pending {
		a.Slot = nil
	}

	var busy []calendar.Interval
	var orphans []*model.Appointment
	for _, a := range pending {
		slot := cal.SlotAt(a.ScheduledAt)
		if slot != nil && cal.Claim(slot, a, busy) == nil {
			busy = append(busy, interval(a))
			report.Reanchored++
			continue
		}
		orphans = append(orphans, a)
	}

	for _, a := range orphans {
		from := a.ScheduledAt
		if slot := cal.FindFirstAvailable(a.Duration(), now, busy); slot != nil && cal.Claim(slot, a, busy) == nil {
			busy = append(busy, interval(a))
			a.UpdatedAt = now
			s.notifier.Notify(a.RequesterID, fmt.Sprintf(
				"Appointment #%d (%s) was moved from %s to %s after the schedule changed.",
				a.ID, a.Topic, formatting.FormatDateTime(from), formatting.FormatDateTime(a.ScheduledAt)))
			report.Rescheduled++
			continue
		}

		if err := a.Transition(model.AppointmentStatusCancelled, now); err != nil {
			continue
		}
		q.Remove(a)
		msg := fmt.Sprintf("Appointment #%d (%s) on %s was cancelled: no free time left in the schedule.",
			a.ID, a.Topic, formatting.FormatDateTime(from))
		s.notifier.Notify(a.RequesterID, msg)
		s.notifier.Notify(a.ProviderID, msg)
		report.Cancelled++
	}
	q.Resort()

	s.logger.Info("Horizon regenerated",
		zap.String("provider_id", providerID),
		zap.Int("days", days),
		zap.Int("slots", report.Slots),
		zap.Int("reanchored", report.Reanchored),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("cancelled", report.Cancelled),
	)

	return report
}
