package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/mintfolio/dutchmint/internal/blob/s3"
	"github.com/mintfolio/dutchmint/internal/cache/redis"
	"github.com/mintfolio/dutchmint/internal/config"
	"github.com/mintfolio/dutchmint/internal/domain"
	"github.com/mintfolio/dutchmint/internal/ledger/eth"
	"github.com/mintfolio/dutchmint/internal/notify"
	"github.com/mintfolio/dutchmint/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	SaleStore      domain.SaleStore
	LifecycleStore domain.LifecycleStore
	ReceiptStore   domain.ReceiptStore
	AuditStore     domain.AuditStore

	// Caches
	SaleCache   domain.SaleInfoCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Token ledger
	Holdings domain.HoldingsOracle
	Access   domain.AccessControl

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsChain returns true for modes that serve purchases and admin calls,
// which need the token ledger for holdings and ownership reads.
func needsChain(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true when the receipt archiver must be wired.
func needsS3(cfg *config.Config) bool {
	return cfg.Mode == "archive" || cfg.Archive.Enabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.SaleStore = postgres.NewSaleStore(pool)
	deps.LifecycleStore = postgres.NewLifecycleStore(pool)
	deps.ReceiptStore = postgres.NewReceiptStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SaleCache = redis.NewSaleCache(redisClient, cfg.Mint.CacheTTL.Duration)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Token ledger (only for modes that read holdings / ownership) ---
	if needsChain(cfg.Mode) {
		ethClient, err := eth.New(ctx, eth.ClientConfig{RPCURL: cfg.Chain.RPCURL})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: eth: %w", err)
		}
		closers = append(closers, ethClient.Close)

		holdings, err := eth.NewHoldings(ethClient)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: holdings oracle: %w", err)
		}
		access, err := eth.NewAccessControl(ethClient, cfg.Chain.Admins())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: access control: %w", err)
		}
		deps.Holdings = holdings
		deps.Access = access
	}

	// --- S3 blob storage (only when the archiver runs) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.ReceiptStore, deps.AuditStore, logger)
		if cfg.Archive.BatchSize > 0 {
			deps.Archiver.BatchSize = cfg.Archive.BatchSize
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
