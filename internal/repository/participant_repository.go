package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantRepository реестр участников в Postgres
type ParticipantRepository struct {
	*base.Repository
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{Repository: base.NewRepository(pool)}
}

const selectParticipants = `
	SELECT p.id, p.name, p.role, p.telegram_chat_id, p.created_at,
	       COALESCE(array_agg(t.topic ORDER BY t.topic) FILTER (WHERE t.topic IS NOT NULL), '{}')
	FROM participants p
	LEFT JOIN participant_topics t ON t.participant_id = p.id
`

// Create сохраняет участника вместе с его предметами
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO participants (id, name, role, telegram_chat_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`

		err := tx.QueryRow(ctx, query, p.ID, p.Name, p.Role, p.TelegramChatID).Scan(&p.CreatedAt)
		if err != nil {
			if base.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", model.ErrDuplicateIdentity, p.ID)
			}
			return fmt.Errorf("create participant: %w", err)
		}

		for _, topic := range p.Topics {
			if err := insertTopic(ctx, tx, p.ID, topic); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertTopic(ctx context.Context, tx pgx.Tx, participantID, topic string) error {
	query := `
		INSERT INTO participant_topics (participant_id, topic)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, participantID, topic); err != nil {
		return fmt.Errorf("insert participant topic: %w", err)
	}
	return nil
}

// AddTopic добавляет предмет участнику
func (r *ParticipantRepository) AddTopic(ctx context.Context, participantID, topic string) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		return insertTopic(ctx, tx, participantID, topic)
	})
}

// GetByID получает участника по идентификатору
func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*model.Participant, error) {
	query := selectParticipants + `
		WHERE p.id = $1
		GROUP BY p.id
	`

	p, err := scanParticipant(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, fmt.Errorf("%w: participant %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get participant by id: %w", err)
	}
	return p, nil
}

// List возвращает всех участников
func (r *ParticipantRepository) List(ctx context.Context) ([]*model.Participant, error) {
	query := selectParticipants + `
		GROUP BY p.id
		ORDER BY p.created_at ASC
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	var p model.Participant
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Role,
		&p.TelegramChatID,
		&p.CreatedAt,
		&p.Topics,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
