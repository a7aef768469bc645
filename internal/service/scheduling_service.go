package service

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/formatting"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/queue"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository"
	"go.uber.org/zap"
)

// Directory источник участников для ядра планирования
type Directory interface {
	Get(id string) (*model.Participant, error)
	Providers() []*model.Participant
}

// Notifier приёмник уведомлений о побочных эффектах планирования
type Notifier interface {
	Notify(recipientID, message string) model.Notification
}

// Options параметры ядра планирования
type Options struct {
	Grid               calendar.Grid
	HorizonDays        int
	MinDurationMinutes int
	MaxDurationMinutes int
	Retention          time.Duration // сколько хранить завершённые и пропущенные записи
}

func DefaultOptions() Options {
	return Options{
		Grid:               calendar.DefaultGrid(),
		HorizonDays:        7,
		MinDurationMinutes: 15,
		MaxDurationMinutes: 120,
		Retention:          7 * 24 * time.Hour,
	}
}

func (o Options) Validate() error {
	if err := o.Grid.Validate(); err != nil {
		return err
	}
	if o.HorizonDays <= 0 {
		return fmt.Errorf("%w: horizon must be at least one day", model.ErrValidation)
	}
	if o.MinDurationMinutes <= 0 || o.MinDurationMinutes > o.MaxDurationMinutes {
		return fmt.Errorf("%w: duration bounds %d..%d are invalid",
			model.ErrValidation, o.MinDurationMinutes, o.MaxDurationMinutes)
	}
	if o.Retention < 0 {
		return fmt.Errorf("%w: retention is negative", model.ErrValidation)
	}
	return nil
}

type Option func(*SchedulingService)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(s *SchedulingService) {
		s.now = now
	}
}

// SchedulingService единственная точка изменения календарей, очередей и жизненного цикла записей.
// Все публичные операции сериализуются одним мьютексом и применяются целиком.
type SchedulingService struct {
	mu        sync.Mutex
	store     *repository.Store
	directory Directory
	notifier  Notifier
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

func NewSchedulingService(
	store *repository.Store,
	directory Directory,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
	options ...Option,
) (*SchedulingService, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("scheduling options: %w", err)
	}

	s := &SchedulingService{
		store:     store,
		directory: directory,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// provider находит провайдера и его календарь с очередью; при первом обращении строит горизонт
func (s *SchedulingService) provider(providerID string) (*model.Participant, *calendar.Calendar, *queue.DualQueue, error) {
	p, err := s.directory.Get(providerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !p.Role.IsProvider() {
		return nil, nil, nil, fmt.Errorf("%w: %s is not a provider", model.ErrEligibility, providerID)
	}

	s.store.AttachProvider(p.ID, s.opts.Grid)
	cal, _ := s.store.Calendar(p.ID)
	q, _ := s.store.Queue(p.ID)

	if len(cal.Dates()) == 0 {
		count := cal.Generate(s.now(), s.opts.HorizonDays)
		s.logger.Info("Horizon generated",
			zap.String("provider_id", p.ID),
			zap.Int("days", s.opts.HorizonDays),
			zap.Int("slots", count),
		)
	}
	return p, cal, q, nil
}

// busy интервалы всех ожидающих записей провайдера, кроме исключённых
func (s *SchedulingService) busy(providerID string, exclude map[int64]bool) []calendar.Interval {
	var out []calendar.Interval
	for _, a := range s.store.ProviderAppointments(providerID, model.AppointmentStatusPending) {
		if exclude[a.ID] || a.Slot == nil {
			continue
		}
		out = append(out, interval(a))
	}
	return out
}

func interval(a *model.Appointment) calendar.Interval {
	return calendar.Interval{Start: a.ScheduledAt, End: a.EndsAt()}
}

// normalizeDuration проверяет границы и округляет вверх до длины слота
func (s *SchedulingService) normalizeDuration(minutes int) (int, error) {
	if minutes < s.opts.MinDurationMinutes || minutes > s.opts.MaxDurationMinutes {
		return 0, fmt.Errorf("%w: duration %d is outside %d..%d minutes",
			model.ErrValidation, minutes, s.opts.MinDurationMinutes, s.opts.MaxDurationMinutes)
	}
	rounded := s.opts.Grid.RoundUp(time.Duration(minutes) * time.Minute)
	return int(rounded / time.Minute), nil
}

// checkEligibility сверяет роли и предметы студента и провайдера
func checkEligibility(requester, provider *model.Participant, topic string) error {
	if requester.Role != model.RoleRequester {
		return fmt.Errorf("%w: %s cannot request consultations", model.ErrEligibility, requester.ID)
	}

	switch provider.Role {
	case model.RoleRequester:
		return fmt.Errorf("%w: %s is not a provider", model.ErrEligibility, provider.ID)
	case model.RoleProviderTeaching:
		if !provider.HasTopic(topic) {
			return fmt.Errorf("%w: %s does not teach %q", model.ErrEligibility, provider.ID, topic)
		}
		if !requester.HasTopic(topic) {
			return fmt.Errorf("%w: %s is not enrolled in %q", model.ErrEligibility, requester.ID, topic)
		}
	case model.RoleProviderAdvising:
	}
	return nil
}

// Book записывает студента на первый свободный слот провайдера
func (s *SchedulingService) Book(requesterID, providerID, topic string, durationMinutes int) (*model.Appointment, error) {
	duration, err := s.normalizeDuration(durationMinutes)
	if err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is empty", model.ErrValidation)
	}

	requester, err := s.directory.Get(requesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}
	providerRec, err := s.directory.Get(providerID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if err := checkEligibility(requester, providerRec, topic); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, cal, q, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	busy := s.busy(providerID, nil)
	need := time.Duration(duration) * time.Minute

	slot := cal.FindFirstAvailable(need, now, busy)
	if slot == nil {
		return nil, fmt.Errorf("%w: provider %s has no %d-minute window", model.ErrNoCapacity, providerID, duration)
	}

	appt := &model.Appointment{
		ID:              s.store.NextAppointmentID(),
		RequesterID:     requester.ID,
		ProviderID:      providerID,
		Topic:           topic,
		DurationMinutes: duration,
		Status:          model.AppointmentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := cal.Claim(slot, appt, busy); err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	s.store.PutAppointment(appt)

	if !q.Enqueue(appt) {
		// Компенсация: запись и слот не должны пережить неудачную постановку в очередь
		cal.Release(slot)
		s.store.DeleteAppointment(appt.ID)
		return nil, fmt.Errorf("%w: appointment %d is already queued", model.ErrInvalidState, appt.ID)
	}

	s.logger.Info("Appointment booked",
		zap.Int64("appointment_id", appt.ID),
		zap.String("requester_id", appt.RequesterID),
		zap.String("provider_id", providerID),
		zap.String("topic", topic),
		zap.Time("scheduled_at", appt.ScheduledAt),
		zap.Int("duration_minutes", duration),
	)

	return snapshot(appt), nil
}

func snapshot(a *model.Appointment) *model.Appointment {
	c := a.Snapshot()
	return &c
}

func (s *SchedulingService) appointment(id int64) (*model.Appointment, error) {
	a, ok := s.store.Appointment(id)
	if !ok {
		return nil, fmt.Errorf("%w: appointment %d", model.ErrNotFound, id)
	}
	return a, nil
}

// Cancel отменяет ожидающую запись и освобождает её слот
func (s *SchedulingService) Cancel(appointmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.appointment(appointmentID)
	if err != nil {
		return err
	}
	if a.Status != model.AppointmentStatusPending {
		return fmt.Errorf("%w: only pending appointments can be cancelled, %d is %s",
			model.ErrInvalidState, a.ID, a.Status)
	}

	if err := a.Transition(model.AppointmentStatusCancelled, s.now()); err != nil {
		return err
	}
	s.detach(a)

	msg := fmt.Sprintf("Appointment #%d (%s) on %s was cancelled.",
		a.ID, a.Topic, formatting.FormatDateTime(a.ScheduledAt))
	s.notifier.Notify(a.RequesterID, msg)
	s.notifier.Notify(a.ProviderID, msg)

	s.logger.Info("Appointment cancelled",
		zap.Int64("appointment_id", a.ID),
		zap.String("provider_id", a.ProviderID),
	)

	return nil
}

// detach освобождает слот записи и убирает её из очереди провайдера
func (s *SchedulingService) detach(a *model.Appointment) {
	if cal, ok := s.store.Calendar(a.ProviderID); ok && a.Slot != nil && a.Slot.AppointmentID == a.ID {
		cal.Release(a.Slot)
	}
	a.Slot = nil
	if q, ok := s.store.Queue(a.ProviderID); ok {
		q.Remove(a)
	}
}

// DequeueNext вызывает следующую запись: сначала приоритетную, затем обычную.
// Возвращает nil, если очередь пуста.
func (s *SchedulingService) DequeueNext(providerID string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, q, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}

	a := q.Dequeue()
	if a == nil {
		return nil, nil
	}

	if err := a.Transition(model.AppointmentStatusInProgress, s.now()); err != nil {
		// Очередь содержит только ожидающие записи; возвращаем запись на место
		q.Enqueue(a)
		return nil, err
	}
	s.detach(a)

	s.notifier.Notify(a.RequesterID,
		fmt.Sprintf("Your consultation #%d (%s) is starting now: %s, %s.", a.ID, a.Topic,
			formatting.FormatTimeRange(a.ScheduledAt, a.EndsAt()), formatting.FormatDuration(a.DurationMinutes)))

	s.logger.Info("Appointment dequeued",
		zap.Int64("appointment_id", a.ID),
		zap.String("provider_id", providerID),
		zap.Bool("priority", a.Priority),
	)

	return snapshot(a), nil
}

// Complete завершает начатую консультацию
func (s *SchedulingService) Complete(appointmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.appointment(appointmentID)
	if err != nil {
		return err
	}
	if err := a.Transition(model.AppointmentStatusCompleted, s.now()); err != nil {
		return err
	}

	s.logger.Info("Appointment completed", zap.Int64("appointment_id", a.ID))

	return nil
}

// Appointment возвращает копию записи
func (s *SchedulingService) Appointment(appointmentID int64) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.appointment(appointmentID)
	if err != nil {
		return nil, err
	}
	return snapshot(a), nil
}

// AppointmentsFor записи участника (как студента или провайдера) по времени
func (s *SchedulingService) AppointmentsFor(participantID string) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.store.ParticipantAppointments(participantID)
	byScheduledAt(list)
	return snapshots(list)
}

// QueueSnapshot содержимое очереди провайдера для отображения
type QueueSnapshot struct {
	ProviderID string
	Priority   []model.Appointment
	Regular    []model.Appointment
}

// Ordered порядок обслуживания
func (qs QueueSnapshot) Ordered() []model.Appointment {
	return append(slices.Clone(qs.Priority), qs.Regular...)
}

func snapshots(list []*model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(list))
	for _, a := range list {
		out = append(out, a.Snapshot())
	}
	return out
}

func (s *SchedulingService) Queue(providerID string) (QueueSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, q, err := s.provider(providerID)
	if err != nil {
		return QueueSnapshot{}, err
	}
	return QueueSnapshot{
		ProviderID: providerID,
		Priority:   snapshots(q.Priority()),
		Regular:    snapshots(q.Regular()),
	}, nil
}

func (s *SchedulingService) QueueSize(providerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, q, err := s.provider(providerID)
	if err != nil {
		return 0, err
	}
	return q.Size(), nil
}

// EstimatedWait суммарная длительность ожидающих записей провайдера в минутах
func (s *SchedulingService) EstimatedWait(providerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, q, err := s.provider(providerID)
	if err != nil {
		return 0, err
	}
	return q.EstimatedWait(), nil
}

// AvailableSlots слоты дня, с которых ещё можно записаться на durationMinutes (0 - один слот)
func (s *SchedulingService) AvailableSlots(providerID string, date time.Time, durationMinutes int) ([]model.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, cal, _, err := s.provider(providerID)
	if err != nil {
		return nil, err
	}

	need := s.opts.Grid.RoundUp(time.Duration(durationMinutes) * time.Minute)
	slots := cal.AvailableSlots(date, need, s.now(), s.busy(providerID, nil))

	out := make([]model.Slot, 0, len(slots))
	for _, sl := range slots {
		out = append(out, *sl)
	}
	return out, nil
}

func byScheduledAt(list []*model.Appointment) {
	slices.SortStableFunc(list, func(a, b *model.Appointment) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
