package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/config"
	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/goals"
	"voice-reminders/internal/reporting"
	"voice-reminders/internal/telephony"
	"voice-reminders/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// Deps is the wired service graph shared by the API server and reminderctl.
type Deps struct {
	DB    *sql.DB
	Redis *redis.Client

	Goals     *goals.Service
	Reports   *reporting.Service
	Audit     *audit.Service
	Scheduler *cronjob.Client
	Locker    *utils.RedisLocker
}

// Open connects storage and builds every service. Redis is optional: when it
// cannot be reached sweeps run without the single-flight lock.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Deps, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	d := &Deps{DB: db}

	if cfg.DB.AutoMigrate {
		if err := utils.Migrate(ctx, db, goals.Schema, audit.Schema); err != nil {
			d.Close()
			return nil, err
		}
		log.Info("schema migrated")
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Warn("redis unavailable; sweeps run unlocked", "err", err)
	} else {
		d.Redis = rdb
		d.Locker = utils.NewRedisLocker(rdb, "voice-reminders:")
	}

	sched, err := cronjob.NewClient(cronjob.Config{
		APIKey:  cfg.Scheduler.APIKey,
		BaseURL: cfg.Scheduler.BaseURL,
		Timeout: cfg.Scheduler.Timeout,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Scheduler = sched

	voice, err := telephony.NewBlandProvider(telephony.BlandConfig{
		APIKey:  cfg.Voice.APIKey,
		BaseURL: cfg.Voice.BaseURL,
		Timeout: cfg.Voice.Timeout,
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Audit = audit.NewService(audit.NewPostgresRepo(db))
	repo := goals.NewPostgresRepo(db)
	d.Goals = goals.NewService(repo, sched, voice, goals.Options{
		CallbackURL:    cfg.CallbackURL(),
		WebhookURL:     cfg.WebhookURL(),
		CallbackSecret: cfg.Callback.Secret,
		Audit:          d.Audit,
	})
	d.Reports = reporting.NewService(repo)
	return d, nil
}

func (d *Deps) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}
