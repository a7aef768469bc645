package handlers

import (
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	engine        *service.SchedulingService
	participants  *service.ParticipantService
	notifications *service.NotificationService
	location      *time.Location
	now           func() time.Time
	logger        *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	engine *service.SchedulingService,
	participants *service.ParticipantService,
	notifications *service.NotificationService,
	location *time.Location,
	logger *zap.Logger,
) *Handlers {
	if location == nil {
		location = time.Local
	}
	return &Handlers{
		engine:        engine,
		participants:  participants,
		notifications: notifications,
		location:      location,
		now:           time.Now,
		logger:        logger,
	}
}
