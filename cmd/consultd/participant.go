package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/consultation_scheduler/internal/app"
	"github.com/Freeeeeet/consultation_scheduler/internal/config"
	"github.com/Freeeeeet/consultation_scheduler/internal/model"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository"
	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func participantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Manage the participant registry",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a student or provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			roleName, _ := cmd.Flags().GetString("role")
			topics, _ := cmd.Flags().GetStringSlice("topic")
			chatID, _ := cmd.Flags().GetInt64("telegram-chat")

			role, err := model.ParseRole(roleName)
			if err != nil {
				return err
			}

			return withRegistry(func(ctx context.Context, repo *repository.ParticipantRepository, logger *zap.Logger) error {
				p := &model.Participant{
					ID:             id,
					Name:           name,
					Role:           role,
					Topics:         topics,
					TelegramChatID: chatID,
				}
				if err := register(ctx, repo, logger, p); err != nil {
					return err
				}
				printParticipant(p)
				return nil
			})
		},
	}
	addCmd.Flags().String("id", "", "Participant identifier")
	addCmd.Flags().String("name", "", "Display name")
	addCmd.Flags().String("role", string(model.RoleRequester), "requester, provider_teaching or provider_advising")
	addCmd.Flags().StringSlice("topic", nil, "Enrolled or taught topic (repeatable)")
	addCmd.Flags().Int64("telegram-chat", 0, "Telegram chat id for notifications")
	_ = addCmd.MarkFlagRequired("id")
	cmd.AddCommand(addCmd)

	topicCmd := &cobra.Command{
		Use:   "add-topic <participant-id> <topic>",
		Short: "Enroll a participant in a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, repo *repository.ParticipantRepository, logger *zap.Logger) error {
				return enroll(ctx, repo, logger, args[0], args[1])
			})
		},
	}
	cmd.AddCommand(topicCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <participant-id>",
		Short: "Show a registered participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, repo *repository.ParticipantRepository, _ *zap.Logger) error {
				p, err := repo.GetByID(ctx, args[0])
				if err != nil {
					return err
				}
				printParticipant(p)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(ctx context.Context, repo *repository.ParticipantRepository, _ *zap.Logger) error {
				participants, err := repo.List(ctx)
				if err != nil {
					return err
				}
				for _, p := range participants {
					printParticipant(p)
				}
				return nil
			})
		},
	})

	return cmd
}

// register проводит участника через реестр, чтобы сработали проверки роли и дубликатов
func register(ctx context.Context, store service.ParticipantStore, logger *zap.Logger, p *model.Participant) error {
	participants := service.NewParticipantService(store, logger)
	if _, err := participants.Load(ctx); err != nil {
		return err
	}
	return participants.Register(ctx, p)
}

// enroll добавляет предмет участнику с теми же проверками, что и в работающем сервере
func enroll(ctx context.Context, store service.ParticipantStore, logger *zap.Logger, id, topic string) error {
	participants := service.NewParticipantService(store, logger)
	if _, err := participants.Load(ctx); err != nil {
		return err
	}
	return participants.AddTopic(ctx, id, topic)
}

func withRegistry(fn func(ctx context.Context, repo *repository.ParticipantRepository, logger *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDSN == "" {
		return errors.New("DB_DSN is required for the participant registry")
	}

	logger := app.NewLogger(cfg.Environment, cfg.ServiceName, cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, repository.NewParticipantRepository(pool), logger)
}

func printParticipant(p *model.Participant) {
	topics := "-"
	if len(p.Topics) > 0 {
		topics = strings.Join(p.Topics, ", ")
	}
	fmt.Printf("%-20s %-18s %-24s %s\n", p.ID, p.Role, p.Name, topics)
}
