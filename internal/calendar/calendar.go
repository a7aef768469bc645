package calendar

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
)

// Interval полуоткрытый интервал [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func overlapsAny(i Interval, busy []Interval) bool {
	for _, b := range busy {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}

type Day struct {
	Date  time.Time
	Slots []*model.Slot
}

type slotRef struct {
	day *Day
	pos int
}

// Calendar слоты одного провайдера по дням горизонта.
// Не потокобезопасен: вызывающий сериализует доступ.
type Calendar struct {
	providerID string
	grid       Grid
	days       []*Day
	index      map[int64]slotRef
}

func New(providerID string, grid Grid) *Calendar {
	return &Calendar{
		providerID: providerID,
		grid:       grid,
		index:      make(map[int64]slotRef),
	}
}

func (c *Calendar) ProviderID() string {
	return c.providerID
}

func (c *Calendar) Grid() Grid {
	return c.grid
}

// Generate пересоздаёт горизонт на days дней начиная с дня from.
// Все прежние слоты отбрасываются; ссылки на них становятся устаревшими.
func (c *Calendar) Generate(from time.Time, days int) int {
	c.days = nil
	c.index = make(map[int64]slotRef)

	start := c.grid.Midnight(from)
	total := 0
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		day := &Day{Date: date, Slots: c.grid.SlotsFor(c.providerID, date)}
		for pos, s := range day.Slots {
			c.index[s.StartTime.UnixNano()] = slotRef{day: day, pos: pos}
		}
		c.days = append(c.days, day)
		total += len(day.Slots)
	}
	return total
}

// Dates возвращает дни горизонта в хронологическом порядке
func (c *Calendar) Dates() []time.Time {
	dates := make([]time.Time, 0, len(c.days))
	for _, d := range c.days {
		dates = append(dates, d.Date)
	}
	return dates
}

// Slots все слоты горизонта в хронологическом порядке
func (c *Calendar) Slots() []*model.Slot {
	var out []*model.Slot
	for _, d := range c.days {
		out = append(out, d.Slots...)
	}
	return out
}

// SlotAt находит актуальный слот, начинающийся ровно в start
func (c *Calendar) SlotAt(start time.Time) *model.Slot {
	ref, ok := c.index[start.UnixNano()]
	if !ok {
		return nil
	}
	return ref.day.Slots[ref.pos]
}

// Owns проверяет, что слот принадлежит текущему горизонту
func (c *Calendar) Owns(slot *model.Slot) bool {
	return slot != nil && c.SlotAt(slot.StartTime) == slot
}

// Window длина непрерывного свободного окна, начинающегося со слота.
// Слот свободен, если не занят и не пересекается с busy. При need > 0 подсчёт останавливается, как только окно достигло need.
func (c *Calendar) Window(slot *model.Slot, busy []Interval, need time.Duration) time.Duration {
	if !c.Owns(slot) {
		return 0
	}
	ref := c.index[slot.StartTime.UnixNano()]

	end := slot.StartTime
	for _, s := range ref.day.Slots[ref.pos:] {
		if !s.StartTime.Equal(end) {
			break
		}
		if !s.Available() || overlapsAny(Interval{Start: s.StartTime, End: s.EndTime}, busy) {
			break
		}
		end = s.EndTime
		if need > 0 && end.Sub(slot.StartTime) >= need {
			break
		}
	}
	return end.Sub(slot.StartTime)
}

// FindFirstAvailable ищет первый по времени слот не раньше notBefore, с которого помещается need
func (c *Calendar) FindFirstAvailable(need time.Duration, notBefore time.Time, busy []Interval) *model.Slot {
	for _, day := range c.days {
		for _, s := range day.Slots {
			if s.StartTime.Before(notBefore) {
				continue
			}
			if c.Window(s, busy, need) >= need {
				return s
			}
		}
	}
	return nil
}

// AvailableSlots слоты дня не раньше notBefore, с которых можно начать запись длительностью need
func (c *Calendar) AvailableSlots(date time.Time, need time.Duration, notBefore time.Time, busy []Interval) []*model.Slot {
	date = c.grid.Midnight(date)
	if need <= 0 {
		need = c.grid.SlotDuration
	}

	var free []*model.Slot
	for _, day := range c.days {
		if !day.Date.Equal(date) {
			continue
		}
		for _, s := range day.Slots {
			if s.StartTime.Before(notBefore) {
				continue
			}
			if c.Window(s, busy, need) >= need {
				free = append(free, s)
			}
		}
	}
	return free
}

// Claim закрепляет слот за записью. busy не должен содержать саму запись
func (c *Calendar) Claim(slot *model.Slot, appt *model.Appointment, busy []Interval) error {
	if !c.Owns(slot) {
		return fmt.Errorf("%w: slot is not part of the current horizon", model.ErrCapacity)
	}
	need := appt.Duration()
	if got := c.Window(slot, busy, need); got < need {
		return fmt.Errorf("%w: slot %s has %s free, need %s",
			model.ErrCapacity, slot.StartTime.Format(time.DateTime), got, need)
	}

	slot.AppointmentID = appt.ID
	appt.Slot = slot
	appt.ScheduledAt = slot.StartTime
	return nil
}

// Release освобождает слот. Повторный вызов ничего не делает
func (c *Calendar) Release(slot *model.Slot) {
	if slot == nil {
		return
	}
	slot.AppointmentID = 0
}
