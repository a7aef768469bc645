package formatting

import "github.com/Freeeeeet/consultation_scheduler/internal/model"

// StatusDisplay представляет отображение статуса записи
type StatusDisplay struct {
	Emoji string
	Text  string
}

func (d StatusDisplay) String() string {
	return d.Emoji + " " + d.Text
}

// GetAppointmentStatusDisplay возвращает emoji и текст для статуса записи
func GetAppointmentStatusDisplay(status model.AppointmentStatus) StatusDisplay {
	displays := map[model.AppointmentStatus]StatusDisplay{
		model.AppointmentStatusPending:    {"⏳", "Pending"},
		model.AppointmentStatusInProgress: {"▶️", "In progress"},
		model.AppointmentStatusCompleted:  {"✔️", "Completed"},
		model.AppointmentStatusCancelled:  {"❌", "Cancelled"},
		model.AppointmentStatusMissed:     {"⌛", "Missed"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}
