// Package calendar строит сетку слотов провайдера и отвечает на запросы о свободном времени.
package calendar

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
)

// Grid описывает рабочий день провайдера. Смещения отсчитываются от полуночи
type Grid struct {
	SlotDuration time.Duration
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
	BreakStart   time.Duration // BreakStart == BreakEnd - перерыва нет
	BreakEnd     time.Duration
	Location     *time.Location
}

// DefaultGrid 09:00-17:00, обед 12:00-13:00, слоты по 15 минут
func DefaultGrid() Grid {
	return Grid{
		SlotDuration: 15 * time.Minute,
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   17 * time.Hour,
		BreakStart:   12 * time.Hour,
		BreakEnd:     13 * time.Hour,
		Location:     time.Local,
	}
}

func (g Grid) Validate() error {
	if g.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", model.ErrValidation)
	}
	if g.WorkdayStart < 0 || g.WorkdayEnd > 24*time.Hour || g.WorkdayStart >= g.WorkdayEnd {
		return fmt.Errorf("%w: workday %s-%s is invalid", model.ErrValidation, g.WorkdayStart, g.WorkdayEnd)
	}
	if g.BreakStart > g.BreakEnd {
		return fmt.Errorf("%w: break ends before it starts", model.ErrValidation)
	}
	if g.hasBreak() && (g.BreakStart < g.WorkdayStart || g.BreakEnd > g.WorkdayEnd) {
		return fmt.Errorf("%w: break must be inside the workday", model.ErrValidation)
	}
	if g.WorkdayEnd-g.WorkdayStart < g.SlotDuration {
		return fmt.Errorf("%w: workday is shorter than one slot", model.ErrValidation)
	}
	return nil
}

func (g Grid) location() *time.Location {
	if g.Location == nil {
		return time.Local
	}
	return g.Location
}

func (g Grid) hasBreak() bool {
	return g.BreakEnd > g.BreakStart
}

// Midnight возвращает начало календарного дня t в часовом поясе сетки
func (g Grid) Midnight(t time.Time) time.Time {
	t = t.In(g.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.location())
}

// at строит момент времени по дню и смещению; через time.Date, чтобы не съезжать при переводе часов
func (g Grid) at(date time.Time, offset time.Duration) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, int(offset), g.location())
}

// RoundUp округляет длительность до кратной длине слота
func (g Grid) RoundUp(d time.Duration) time.Duration {
	if rem := d % g.SlotDuration; rem != 0 {
		return d + g.SlotDuration - rem
	}
	return d
}

// SlotsFor нарезает рабочий день на слоты, пропуская перерыв
func (g Grid) SlotsFor(providerID string, date time.Time) []*model.Slot {
	date = g.Midnight(date)

	var slots []*model.Slot
	for off := g.WorkdayStart; off+g.SlotDuration <= g.WorkdayEnd; off += g.SlotDuration {
		end := off + g.SlotDuration
		if g.hasBreak() && off < g.BreakEnd && g.BreakStart < end {
			continue
		}
		slots = append(slots, &model.Slot{
			ProviderID: providerID,
			Date:       date,
			StartTime:  g.at(date, off),
			EndTime:    g.at(date, end),
		})
	}
	return slots
}
