package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/consultation_scheduler/internal/app"
	"github.com/Freeeeeet/consultation_scheduler/internal/calendar"
	"github.com/Freeeeeet/consultation_scheduler/internal/config"
	"github.com/Freeeeeet/consultation_scheduler/internal/controller"
	"github.com/Freeeeeet/consultation_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/consultation_scheduler/internal/notifier"
	"github.com/Freeeeeet/consultation_scheduler/internal/repository"
	"github.com/Freeeeeet/consultation_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consultd",
		Short: "Consultation scheduling and queueing engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(participantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with background maintenance and notification delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run participant registry migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, mg *app.Migrator) error {
				return mg.Up(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, mg *app.Migrator) error {
				return mg.Down(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, mg *app.Migrator) error {
				version, err := mg.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Current migration version: %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(ctx context.Context, mg *app.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDSN == "" {
		return errors.New("DB_DSN is required for migrations")
	}

	logger := app.NewLogger(cfg.Environment, cfg.ServiceName, cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(ctx, mg)
}

func schedulingOptions(cfg *config.Config) service.Options {
	return service.Options{
		Grid: calendar.Grid{
			SlotDuration: cfg.SlotDuration,
			WorkdayStart: cfg.WorkdayStart,
			WorkdayEnd:   cfg.WorkdayEnd,
			BreakStart:   cfg.BreakStart,
			BreakEnd:     cfg.BreakEnd,
			Location:     cfg.Location,
		},
		HorizonDays:        cfg.HorizonDays,
		MinDurationMinutes: cfg.MinDuration,
		MaxDurationMinutes: cfg.MaxDuration,
		Retention:          cfg.Retention,
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.ServiceName, cfg.LogLevel)
	defer logger.Sync()

	if cfg.DBDSN == "" {
		return errors.New("DB_DSN is required: participants are registered in Postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Sugar().Infow("Starting consultation scheduler",
		"environment", cfg.Environment,
		"telegram", cfg.TelegramEnabled(),
	)

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	mg, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	err = mg.Up(ctx)
	mg.Close()
	if err != nil {
		return err
	}

	// Реестр перечитывается на каждом проходе планировщика: участники, добавленные
	// через "consultd participant", появляются без перезапуска
	participants := service.NewParticipantService(repository.NewParticipantRepository(pool), logger)
	count, err := participants.Load(ctx)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	logger.Info("Participants loaded", zap.Int("count", count))

	var tg *bot.Bot
	var deliverer service.Deliverer
	if cfg.TelegramEnabled() {
		tg, err = notifier.NewBot(cfg.TelegramToken)
		if err != nil {
			return err
		}
		deliverer = notifier.NewTelegramDeliverer(tg, logger)
	}
	notifications := service.NewNotificationService(deliverer, participants, logger)

	engine, err := service.NewSchedulingService(
		repository.NewStore(),
		participants,
		notifications,
		schedulingOptions(cfg),
		logger,
	)
	if err != nil {
		return err
	}

	scheduler := app.NewScheduler(engine, participants, cfg.MaintenanceInterval, cfg.HorizonDays, logger)
	scheduler.Start(ctx)
	go notifications.Run(ctx)

	if tg != nil {
		botController := controller.NewBotController(
			tg,
			handlers.NewHandlers(engine, participants, notifications, cfg.Location, logger),
			logger,
		)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	<-ctx.Done()
	scheduler.Stop()

	logger.Info("Consultation scheduler stopped")
	return nil
}
