package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"go.uber.org/zap"
)

// Maintainer операции обслуживания ядра планирования
type Maintainer interface {
	CleanupStale(now time.Time) service.CleanupReport
	RegenerateAll(days int) (service.RegenerationReport, error)
}

// Registry реестр участников, перечитываемый перед каждым проходом
type Registry interface {
	Load(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами: очистка устаревших записей и пересоздание горизонта
type Scheduler struct {
	engine      Maintainer
	registry    Registry
	interval    time.Duration
	horizonDays int
	now         func() time.Time
	logger      *zap.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	started     bool
	done        chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(engine Maintainer, registry Registry, interval time.Duration, horizonDays int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		engine:      engine,
		registry:    registry,
		interval:    interval,
		horizonDays: horizonDays,
		now:         time.Now,
		logger:      logger,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.started = true
	go s.runMaintenanceTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	if s.started {
		<-s.done
	}
}

func (s *Scheduler) runMaintenanceTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("Maintenance task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Maintenance task cancelled")
			return
		}
	}
}

// RunOnce перечитывает реестр участников, очищает устаревшие записи, затем пересоздаёт горизонт всех провайдеров.
// Ошибка чтения реестра не прерывает проход: работаем с уже загруженными участниками
func (s *Scheduler) RunOnce(ctx context.Context) {
	participants := 0
	if s.registry != nil {
		n, err := s.registry.Load(ctx)
		if err != nil {
			s.logger.Error("Failed to reload participants", zap.Error(err))
		}
		participants = n
	}

	cleanup := s.engine.CleanupStale(s.now())

	report, err := s.engine.RegenerateAll(s.horizonDays)
	if err != nil {
		s.logger.Error("Failed to regenerate horizon", zap.Error(err))
	}

	s.logger.Info("Maintenance completed",
		zap.Int("participants", participants),
		zap.Int("missed", cleanup.Missed),
		zap.Int("slots", report.Slots),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("cancelled", report.Cancelled),
	)
}
