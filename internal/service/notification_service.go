package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const outboxSize = 256

// Deliverer доставляет уведомление во внешний канал (Telegram)
type Deliverer interface {
	Deliver(ctx context.Context, recipient *model.Participant, n model.Notification) error
}

// ParticipantLookup поиск участника по идентификатору
type ParticipantLookup interface {
	Get(id string) (*model.Participant, error)
}

// NotificationService хранит уведомления участников и, если задан Deliverer, отправляет их в фоне
type NotificationService struct {
	mu          sync.Mutex
	byRecipient map[string][]*model.Notification
	deliverer   Deliverer
	recipients  ParticipantLookup
	outbox      chan model.Notification
	now         func() time.Time
	logger      *zap.Logger
}

// NewNotificationService создаёт сервис уведомлений. deliverer может быть nil
func NewNotificationService(deliverer Deliverer, recipients ParticipantLookup, logger *zap.Logger) *NotificationService {
	s := &NotificationService{
		byRecipient: make(map[string][]*model.Notification),
		deliverer:   deliverer,
		recipients:  recipients,
		now:         time.Now,
		logger:      logger,
	}
	if deliverer != nil {
		s.outbox = make(chan model.Notification, outboxSize)
	}
	return s
}

// Notify записывает уведомление и ставит его в очередь на доставку
func (s *NotificationService) Notify(recipientID, message string) model.Notification {
	n := &model.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.byRecipient[recipientID] = append(s.byRecipient[recipientID], n)
	s.mu.Unlock()

	if s.outbox != nil {
		select {
		case s.outbox <- *n:
		default:
			s.logger.Warn("Notification outbox is full, delivery skipped",
				zap.String("recipient_id", recipientID),
				zap.String("notification_id", n.ID.String()),
			)
		}
	}

	return *n
}

// List уведомления участника в порядке создания
func (s *NotificationService) List(participantID string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byRecipient[participantID]
	out := make([]model.Notification, 0, len(list))
	for _, n := range list {
		out = append(out, *n)
	}
	return out
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(participantID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byRecipient[participantID]
	i := slices.IndexFunc(list, func(n *model.Notification) bool { return n.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: notification %s", model.ErrNotFound, id)
	}
	list[i].Read = true
	return nil
}

// MarkAllRead помечает прочитанными все уведомления участника и возвращает их количество
func (s *NotificationService) MarkAllRead(participantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, n := range s.byRecipient[participantID] {
		if !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked
}

func (s *NotificationService) UnreadCount(participantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.byRecipient[participantID] {
		if !n.Read {
			count++
		}
	}
	return count
}

// Run доставляет уведомления из очереди до отмены контекста
func (s *NotificationService) Run(ctx context.Context) {
	if s.outbox == nil {
		return
	}

	s.logger.Info("Notification delivery started")

	for {
		select {
		case n := <-s.outbox:
			s.deliver(ctx, n)
		case <-ctx.Done():
			s.logger.Info("Notification delivery stopped")
			return
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, n model.Notification) {
	recipient, err := s.recipients.Get(n.RecipientID)
	if err != nil {
		s.logger.Warn("Notification recipient not found",
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err),
		)
		return
	}

	if err := s.deliverer.Deliver(ctx, recipient, n); err != nil {
		s.logger.Error("Failed to deliver notification",
			zap.String("recipient_id", n.RecipientID),
			zap.String("notification_id", n.ID.String()),
			zap.Error(err),
		)
	}
}
