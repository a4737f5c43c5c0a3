package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/kiranaconnect/kirana/internal/agent"
	"github.com/kiranaconnect/kirana/internal/config"
	"github.com/kiranaconnect/kirana/internal/eventbus"
	"github.com/kiranaconnect/kirana/internal/lock"
	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// app is the fully wired reminder service shared by serve and sweep.
type app struct {
	store     storage.BuyerStore
	runs      storage.SweepRunStore
	bus       eventbus.EventBus
	provider  notification.Provider
	generator *reminder.Generator
	scheduler *scheduler.Scheduler
	sweeper   *scheduler.Sweeper

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (a *app, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a = &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.openStore(ctx, cfg, log); err != nil {
		return nil, err
	}

	copyCfg, err := reminder.LoadCopy(cfg.CopyFile)
	if err != nil {
		return nil, err
	}

	var completer agent.Completer = agent.TemplateCompleter{}
	if cfg.LLMProvider == config.LLMProviderClaude {
		completer = agent.NewClaudeCompleter(cfg.ClaudeModel)
	}

	clock := clockwork.NewRealClock()
	a.generator = reminder.NewGenerator(reminder.Config{
		Completer:         completer,
		Copy:              copyCfg,
		SiteURL:           cfg.SiteURL,
		DiscountThreshold: cfg.DiscountThreshold,
		Clock:             clock,
	})

	a.provider = newProvider(cfg, log)

	a.bus = eventbus.New(0, log)
	a.closers = append(a.closers, func() error { a.bus.Close(); return nil })

	a.scheduler, err = scheduler.New(scheduler.Config{
		Store:            a.store,
		Generator:        a.generator,
		Provider:         a.provider,
		Logger:           log.With("component", "scheduler"),
		EventPublisher:   a.bus,
		Clock:            clock,
		BaseInterval:     cfg.BaseInterval,
		MaxNotifications: cfg.MaxNotifications,
		MinDwell:         cfg.MinDwell,
		FireTimeout:      cfg.FireTimeout,
		Escalation:       cfg.Escalation,
	})
	if err != nil {
		return nil, err
	}

	sweepCfg := scheduler.SweeperConfig{
		Store:            a.store,
		Generator:        a.generator,
		Provider:         a.provider,
		Logger:           log.With("component", "sweeper"),
		Runs:             a.runs,
		EventPublisher:   a.bus,
		Clock:            clock,
		Interval:         cfg.SweepInterval,
		AbandonThreshold: cfg.AbandonThreshold,
	}
	if cfg.RedisURL != "" {
		client, err := lock.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		sweepCfg.Locker = lock.NewRedisLocker(client)
		log.Info("distributed sweep lock enabled")
	}
	a.sweeper, err = scheduler.NewSweeper(sweepCfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.OpsAlertEmails) > 0 {
		alerts := notification.NewAlertHandler(a.provider, cfg.OpsAlertEmails, map[string]string{
			scheduler.EventSweepFailed: "abandoned-cart sweep failed",
			scheduler.EventCartFailed:  "whole-cart reminder failed",
		}, log.With("component", "alerts"))
		a.bus.Subscribe(alerts.Handle)
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		buyers := storage.NewPostgresBuyerStore(pool)
		if err := buyers.EnsureSchema(ctx); err != nil {
			return err
		}
		a.store = buyers
		a.runs = storage.NewPostgresSweepRunStore(pool)
		log.Info("using postgres buyer store")
	default:
		db, created, err := storage.NewSQLiteDB(ctx, cfg.SQLitePath())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.store = storage.NewSQLiteBuyerStore(db)
		a.runs = storage.NewSQLiteSweepRunStore(db)
		log.Info("using sqlite buyer store", "path", cfg.SQLitePath(), "created", created)
	}
	return nil
}

func newProvider(cfg *config.AppConfig, log *slog.Logger) notification.Provider {
	var p notification.Provider
	if cfg.SMTPEnabled() {
		p = notification.NewSMTPProvider(notification.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			FromAddr:   cfg.SMTPFrom,
			Encryption: cfg.SMTPEncryption,
		})
	} else {
		log.Warn("SMTP_HOST not set; reminders will only be logged")
		p = notification.NewLogProvider(log.With("component", "mail"))
	}
	if cfg.EmailRatePerMinute > 0 {
		p = notification.NewRateLimitedProvider(p, cfg.EmailRatePerMinute)
	}
	return p
}
