package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/config"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
	"invoicetrack/internal/repository"
	"invoicetrack/internal/service"
	"invoicetrack/internal/transport/websocket"
	"invoicetrack/pkg/database/postgres"
)

// App holds the wired engine. The HTTP server and the CLI both build one.
type App struct {
	Config  config.AppConfig
	DB      *sql.DB
	Redis   *clients.RedisClient
	Hub     *websocket.Hub
	Metrics *metrics.Metrics

	// LocalExports is set when exports are written to disk and served under
	// the public files prefix.
	LocalExports *clients.StorageClient
	Outbox       *clients.ReminderQueue
	Tokens       *repository.OperatorTokenRepository

	Invoices  *service.InvoiceService
	Payments  *service.PaymentService
	Scans     *service.ScanService
	Reminders *service.ReminderService
	Exports   *service.ExportService

	closers []func()
	log     zerolog.Logger
}

type Options struct {
	// Hub receives engine events. Nil drops them.
	Hub          *websocket.Hub
	// RequireRedis fails startup when Redis is unreachable instead of falling
	// back to in-process locks and export statuses.
	RequireRedis bool
}

func New(ctx context.Context, cfg config.AppConfig, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Hub:     opts.Hub,
		Metrics: metrics.Default(),
		log:     logger.WithComponent("app"),
	}

	db, err := postgres.NewPostgresConnection(ctx, postgres.ConnectionInfo{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Username: cfg.Postgres.User,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
		Password: cfg.Postgres.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = postgres.Close(db) })

	if err := postgres.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	rdb, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		DialTimeout: time.Duration(cfg.Redis.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Redis.Timeout) * time.Second,
		Prefix:      cfg.Redis.Prefix,
	})
	switch {
	case err == nil:
		a.Redis = rdb
		a.closers = append(a.closers, rdb.Close)
	case opts.RequireRedis:
		a.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	default:
		a.log.Warn().Err(err).Msg("redis unavailable, using in-process locks")
	}

	docs, exportStore, err := a.initStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var extractor service.Extractor
	if cfg.DocumentAI.Enabled {
		dai, err := clients.NewDocumentAIClient(ctx, clients.DocumentAIConfig{
			ProjectID:        cfg.DocumentAI.ProjectID,
			Location:         cfg.DocumentAI.Location,
			ProcessorID:      cfg.DocumentAI.ProcessorID,
			ProcessorVersion: cfg.DocumentAI.ProcessorVersion,
			CredentialsFile:  cfg.DocumentAI.CredentialsFile,
			Timeout:          cfg.DocumentAI.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("document ai init: %w", err)
		}
		extractor = dai
		a.closers = append(a.closers, func() { _ = dai.Close() })
	}

	var locker service.Locker = service.NewKeyedMutex()
	if a.Redis != nil {
		locker = service.NewRedisLocker(a.Redis, cfg.Redis.LockTTL, cfg.Redis.LockWait, a.Metrics)
	}

	notifier := clients.NewWebSocketClient(opts.Hub)
	repo := repository.NewInvoiceRepository(db)
	clk := clock.SystemClock{}

	a.Tokens = repository.NewOperatorTokenRepository(db)
	a.Outbox = clients.NewReminderQueue(a.Redis, notifier)

	var transport service.ReminderTransport
	if a.Redis != nil {
		transport = a.Outbox
	}

	a.Invoices = service.NewInvoiceService(repo, docs, extractor, locker, clk, notifier, a.Metrics)
	a.Payments = service.NewPaymentService(repo, locker, clk, notifier, a.Metrics)
	a.Scans = service.NewScanService(repo, clk, a.Redis, notifier, a.Metrics, cfg.Scan.CacheTTL)
	a.Reminders = service.NewReminderService(repo, transport, clk, a.Metrics)
	a.Exports = service.NewExportService(repo, a.Redis, exportStore, notifier, clk)

	return a, nil
}

func (a *App) initStorage(ctx context.Context) (service.DocumentStore, service.ExportStore, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case "s3":
		s3, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			PresignTTL:      cfg.ExportRetention,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 init: %w", err)
		}
		return s3, s3, nil
	case "", "local":
		docs, err := clients.NewLocalStorage(cfg.Storage.DocumentDir, "", "")
		if err != nil {
			return nil, nil, err
		}
		exports, err := clients.NewLocalStorage(cfg.Storage.ExportDir, cfg.Storage.PublicPrefix, cfg.ExternalURL)
		if err != nil {
			return nil, nil, err
		}
		a.LocalExports = exports
		return docs, exports, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
