package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"go.uber.org/zap"
)

// ParticipantStore долговременное хранилище реестра (Postgres). Может отсутствовать
type ParticipantStore interface {
	Create(ctx context.Context, p *model.Participant) error
	AddTopic(ctx context.Context, participantID, topic string) error
	List(ctx context.Context) ([]*model.Participant, error)
}

// ParticipantService реестр студентов и провайдеров
type ParticipantService struct {
	mu           sync.RWMutex
	participants map[string]*model.Participant
	store        ParticipantStore
	logger       *zap.Logger
}

func NewParticipantService(store ParticipantStore, logger *zap.Logger) *ParticipantService {
	return &ParticipantService{
		participants: make(map[string]*model.Participant),
		store:        store,
		logger:       logger,
	}
}

// Load подгружает участников из хранилища; повторный вызов подхватывает добавленных в обход сервиса
func (s *ParticipantService) Load(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	participants, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range participants {
		s.participants[p.ID] = p
	}

	s.logger.Debug("Participants loaded", zap.Int("count", len(participants)))

	return len(participants), nil
}

// Register регистрирует нового участника
func (s *ParticipantService) Register(ctx context.Context, p *model.Participant) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: participant id is empty", model.ErrValidation)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", model.ErrValidation, p.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.ID]; exists {
		return fmt.Errorf("%w: %s", model.ErrDuplicateIdentity, p.ID)
	}

	stored := p.Clone()
	stored.Topics = slices.Compact(slices.Sorted(slices.Values(stored.Topics)))

	if s.store != nil {
		if err := s.store.Create(ctx, stored); err != nil {
			return fmt.Errorf("create participant: %w", err)
		}
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.participants[stored.ID] = stored
	*p = *stored.Clone()

	s.logger.Info("Participant registered",
		zap.String("participant_id", p.ID),
		zap.String("role", string(p.Role)),
		zap.Strings("topics", p.Topics),
	)

	return nil
}

// Get возвращает копию участника
func (s *ParticipantService) Get(id string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, fmt.Errorf("%w: participant %s", model.ErrNotFound, id)
	}
	return p.Clone(), nil
}

// ByTelegramChat находит участника по привязанному чату Telegram
func (s *ParticipantService) ByTelegramChat(chatID int64) (*model.Participant, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("%w: telegram chat 0", model.ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.participants {
		if p.TelegramChatID == chatID {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: telegram chat %d", model.ErrNotFound, chatID)
}

// AddTopic расширяет набор предметов участника
func (s *ParticipantService) AddTopic(ctx context.Context, id, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("%w: topic is empty", model.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return fmt.Errorf("%w: participant %s", model.ErrNotFound, id)
	}
	if p.HasTopic(topic) {
		return nil
	}

	if s.store != nil {
		if err := s.store.AddTopic(ctx, id, topic); err != nil {
			return fmt.Errorf("add topic: %w", err)
		}
	}
	p.AddTopic(topic)

	s.logger.Info("Topic added",
		zap.String("participant_id", id),
		zap.String("topic", topic),
	)

	return nil
}

// List все участники, по идентификатору
func (s *ParticipantService) List() []*model.Participant {
	return s.collect(func(*model.Participant) bool { return true })
}

// Providers участники, ведущие консультации
func (s *ParticipantService) Providers() []*model.Participant {
	return s.collect(func(p *model.Participant) bool { return p.Role.IsProvider() })
}

func (s *ParticipantService) collect(keep func(*model.Participant) bool) []*model.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Participant
	for _, p := range s.participants {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Participant) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
