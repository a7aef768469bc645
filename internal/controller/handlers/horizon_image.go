package handlers

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Константы размеров и отступов
const (
	imageHeight      = 900
	headerHeight     = 70
	legendHeight     = 40
	leftLabelsWidth  = 70
	dayWidth         = 150
	dayPaddingX      = 6
	slotBorderRadius = 4.0
	minutesPerDay    = 24 * 60
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 60}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{220, 220, 220, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	slotFreeColor     = color.RGBA{133, 193, 85, 220}
	slotBookedColor   = color.RGBA{255, 182, 193, 255}
	slotPriorityColor = color.RGBA{255, 165, 0, 230}
	slotCoveredColor  = color.RGBA{255, 220, 225, 255}
	slotPastColor     = color.RGBA{190, 190, 190, 200}
	slotTextColor     = color.RGBA{20, 24, 28, 230}
)

type dayColumn struct {
	date  time.Time
	slots []service.SlotView
}

// minuteRange границы отображаемого времени суток в минутах
type minuteRange struct {
	first int
	last  int
}

// HorizonImage рисует горизонт провайдера: колонка на день, слоты по времени суток
func HorizonImage(title string, views []service.SlotView, now time.Time) ([]byte, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("%w: horizon has no slots", model.ErrValidation)
	}

	days := groupByDay(views)
	span := calculateMinuteRange(views)
	width := leftLabelsWidth + len(days)*dayWidth
	bodyHeight := float64(imageHeight - headerHeight - legendHeight)
	perMinute := bodyHeight / float64(span.last-span.first)
	y := func(minute int) float64 {
		return float64(headerHeight) + float64(minute-span.first)*perMinute
	}

	dc := gg.NewContext(width, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(width)/2, 20, 0.5, 0.5)

	for i, day := range days {
		x := float64(leftLabelsWidth + i*dayWidth)
		drawDayBackground(dc, x, i, bodyHeight, isSameDay(day.date, now))

		dc.SetColor(textColor)
		dc.DrawStringAnchored(day.date.Format("Mon 02.01"), x+dayWidth/2, float64(headerHeight)-15, 0.5, 0.5)

		for _, v := range day.slots {
			top := y(minuteOfDay(v.Slot.StartTime))
			bottom := y(endMinute(v.Slot))
			drawSlot(dc, v, x, top, bottom-top)
		}
	}

	drawHourLines(dc, span, y, width)

	if nowMinute := minuteOfDay(now); nowMinute >= span.first && nowMinute <= span.last {
		for i, day := range days {
			if !isSameDay(day.date, now) {
				continue
			}
			x := float64(leftLabelsWidth + i*dayWidth)
			dc.SetColor(currentTimeColor)
			dc.SetLineWidth(2.0)
			dc.DrawLine(x, y(nowMinute), x+dayWidth, y(nowMinute))
			dc.Stroke()
		}
	}

	drawLegend(dc, float64(imageHeight-legendHeight/2))

	return encodeImage(dc)
}

func groupByDay(views []service.SlotView) []dayColumn {
	var days []dayColumn
	for _, v := range views {
		if n := len(days); n > 0 && days[n-1].date.Equal(v.Slot.Date) {
			days[n-1].slots = append(days[n-1].slots, v)
			continue
		}
		days = append(days, dayColumn{date: v.Slot.Date, slots: []service.SlotView{v}})
	}
	return days
}

// calculateMinuteRange округляет границы до целых часов
func calculateMinuteRange(views []service.SlotView) minuteRange {
	r := minuteRange{first: minutesPerDay, last: 0}
	for _, v := range views {
		r.first = min(r.first, minuteOfDay(v.Slot.StartTime))
		r.last = max(r.last, endMinute(v.Slot))
	}
	r.first = r.first / 60 * 60
	r.last = min((r.last+59)/60*60, minutesPerDay)
	return r
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// endMinute конец слота; слот, заканчивающийся в полночь, даёт 24:00
func endMinute(s model.Slot) int {
	m := minuteOfDay(s.EndTime)
	if m <= minuteOfDay(s.StartTime) {
		return minutesPerDay
	}
	return m
}

func isSameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func drawDayBackground(dc *gg.Context, x float64, index int, height float64, today bool) {
	switch {
	case today:
		dc.SetColor(todayBgColor)
	case index%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, float64(headerHeight), dayWidth, height)
	dc.Fill()
}

func drawHourLines(dc *gg.Context, span minuteRange, y func(int) float64, width int) {
	for m := span.first; m <= span.last; m += 60 {
		hy := y(m)
		dc.SetColor(hourLineColor)
		dc.SetLineWidth(0.3)
		dc.DrawLine(leftLabelsWidth, hy, float64(width), hy)
		dc.Stroke()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", m/60), leftLabelsWidth-8, hy, 1, 0.5)
	}
}

func drawSlot(dc *gg.Context, v service.SlotView, x, top, height float64) {
	dc.SetColor(slotColor(v))
	dc.DrawRoundedRectangle(x+dayPaddingX, top+1, dayWidth-2*dayPaddingX, height-2, slotBorderRadius)
	dc.Fill()

	if height < 14 {
		return
	}
	dc.SetColor(slotTextColor)
	dc.DrawStringAnchored(formatting.FormatTimeRange(v.Slot.StartTime, v.Slot.EndTime),
		x+dayPaddingX+4, top+height/2, 0, 0.5)
}

func slotColor(v service.SlotView) color.Color {
	switch v.State {
	case service.SlotBooked:
		if v.Priority {
			return slotPriorityColor
		}
		return slotBookedColor
	case service.SlotCovered:
		return slotCoveredColor
	case service.SlotPast:
		return slotPastColor
	case service.SlotFree:
		return slotFreeColor
	}
	return slotFreeColor
}

func drawLegend(dc *gg.Context, cy float64) {
	items := []struct {
		label string
		clr   color.Color
	}{
		{"Free", slotFreeColor},
		{"Booked", slotBookedColor},
		{"Priority", slotPriorityColor},
		{"Continuation", slotCoveredColor},
		{"Past", slotPastColor},
	}

	x := float64(leftLabelsWidth)
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, cy-7, 14, 14, 3)
		dc.Fill()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(item.label, x+20, cy, 0, 0.5)
		x += 110
	}
}

func encodeImage(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
