package service

import (
	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
)

type SlotState string

const (
	SlotFree    SlotState = "free"
	SlotBooked  SlotState = "booked"  // слот-якорь записи
	SlotCovered SlotState = "covered" // занят продолжением многослотовой записи
	SlotPast    SlotState = "past"    // свободен, но время уже прошло
)

// SlotView состояние одного слота для отображения
type SlotView struct {
	Slot     model.Slot
	State    SlotState
	Priority bool
}

// Horizon состояние всех слотов провайдера на текущем горизонте, по времени
func (s *SchedulingService) Horizon(providerID string) ([]SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, cal, _, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	busy := s.busy(providerID, nil)
	slots := cal.Slots()
	views := make([]SlotView, 0, len(slots))
	for _, sl := range slots {
		v := SlotView{Slot: *sl, State: SlotFree}
		switch {
		case !sl.Available():
			v.State = SlotBooked
			if a, ok := s.store.Appointment(sl.AppointmentID); ok {
				v.Priority = a.Priority
			}
		case covered(sl, busy):
			v.State = SlotCovered
		case sl.StartTime.Before(now):
			v.State = SlotPast
		}
		views = append(views, v)
	}
	return views, nil
}

func covered(sl *model.Slot, busy []calendar.Interval) bool {
	own := calendar.Interval{Start: sl.StartTime, End: sl.EndTime}
	for _, b := range busy {
		if own.Overlaps(b) {
			return true
		}
	}
	return false
}
