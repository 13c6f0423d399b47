package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/ticketdeploy/internal/blob/s3"
	"github.com/alanyoungcy/ticketdeploy/internal/cache/redis"
	"github.com/alanyoungcy/ticketdeploy/internal/config"
	"github.com/alanyoungcy/ticketdeploy/internal/deploy"
	"github.com/alanyoungcy/ticketdeploy/internal/domain"
	"github.com/alanyoungcy/ticketdeploy/internal/notify"
	"github.com/alanyoungcy/ticketdeploy/internal/store/postgres"
)

// Dependencies holds the optional backends. Any field may be nil when the
// corresponding section is disabled.
type Dependencies struct {
	DeploymentStore domain.DeploymentStore
	AuditStore      domain.AuditStore
	LockManager     domain.LockManager
	EventBus        domain.EventBus
	BlobWriter      domain.BlobWriter
	Notifier        *notify.Notifier
}

// Wire connects every enabled backend and returns a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	if cfg.Database.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)

		if cfg.Database.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.DeploymentStore = postgres.NewDeploymentStore(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
	}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.LockManager = redis.NewLockManager(rc, cfg.Redis.LockPrefix)
		deps.EventBus = redis.NewEventBus(rc, cfg.Redis.StreamLen)
	}

	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		if err := sc.Health(ctx); err != nil {
			return fail("s3", err)
		}
		deps.BlobWriter = s3blob.NewWriter(sc)
	}

	if senders := notifySenders(cfg.Notify); len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.DeploymentStore != nil),
		slog.Bool("redis", deps.EventBus != nil),
		slog.Bool("s3", deps.BlobWriter != nil),
		slog.Bool("notify", deps.Notifier != nil),
	)
	return deps, cleanup, nil
}

func notifySenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}

// Sinks returns the deployment sinks for every wired backend.
func (d *Dependencies) Sinks(cfg config.DeployConfig) []deploy.Sink {
	var sinks []deploy.Sink
	if d.DeploymentStore != nil {
		sinks = append(sinks, deploy.NewStoreSink(d.DeploymentStore, d.AuditStore))
	}
	if d.BlobWriter != nil {
		sinks = append(sinks, deploy.NewArchiveSink(d.BlobWriter, cfg.ArchivePrefix))
	}
	if d.EventBus != nil && (cfg.BusChannel != "" || cfg.BusStream != "") {
		sinks = append(sinks, deploy.NewBusSink(d.EventBus, cfg.BusChannel, cfg.BusStream))
	}
	if d.Notifier != nil {
		sinks = append(sinks, deploy.NewNotifySink(d.Notifier))
	}
	return sinks
}
