// Package container provides dependency wiring and lifecycle management
// for the purchase invoice service.
package container

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/extraction"
	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/application/service"
	"github.com/garyjia/reno-purchases/internal/config"
	"github.com/garyjia/reno-purchases/internal/infrastructure/external/openai"
	"github.com/garyjia/reno-purchases/internal/infrastructure/imageprep"
	"github.com/garyjia/reno-purchases/internal/infrastructure/lock"
	"github.com/garyjia/reno-purchases/internal/infrastructure/persistence/repository"
	"github.com/garyjia/reno-purchases/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/reno-purchases/internal/infrastructure/storage"
	"github.com/garyjia/reno-purchases/pkg/utils"
)

// ProviderOpenAI is the only engine provider compiled in
const ProviderOpenAI = "openai"

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB *sqlite.DB
}

// ExtractionBundle holds the extractor and the audit sink it writes to.
type ExtractionBundle struct {
	Extractor   *extraction.Orchestrator
	auditLogger *zap.Logger
}

// LockBundle holds the locker and the Redis client backing it, if any.
type LockBundle struct {
	Locker port.Locker
	redis  *redis.Client
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := sqlite.Open(sqlite.Options{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := sqlite.NewMigrator(db, logger).RunMigrations(ctx, sqlite.EmbeddedMigrations()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{DB: db}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Project:    repository.NewProjectRepository(db, logger),
		Material:   repository.NewMaterialRepository(db, logger),
		Attachment: repository.NewAttachmentRepository(db, logger),
		Invoice:    repository.NewInvoiceRepository(db, logger),
		Ledger:     repository.NewLedgerRepository(db, logger),
	}
}

// ProvideStorage creates the attachment file storage.
func ProvideStorage(cfg *config.StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	return storage.NewLocalFileStorage(cfg.BaseDir, logger)
}

// ProvideExtractor builds the orchestrator. An engine is registered only when
// its credential is present; otherwise extraction degrades to the fallback invoice.
// A failure to open the audit sink is logged and extraction proceeds without it.
func ProvideExtractor(cfg *config.ExtractionConfig, logger *zap.Logger) (*ExtractionBundle, error) {
	prompts, err := extraction.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	engines := map[string]port.ExtractionEngine{}
	if cfg.APIKey != "" {
		engines[ProviderOpenAI] = openai.NewEngine(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger.Named("openai"))
	} else {
		logger.Warn("No extraction API key configured, extraction will return placeholder invoices")
	}

	bundle := &ExtractionBundle{}
	if cfg.Debug {
		auditLogger, err := utils.NewAuditLogger(cfg.DebugLogPath)
		if err != nil {
			logger.Warn("Extraction audit log disabled", zap.String("path", cfg.DebugLogPath), zap.Error(err))
		} else {
			bundle.auditLogger = auditLogger
		}
	}

	bundle.Extractor = extraction.NewOrchestrator(
		extraction.Config{
			Provider:      cfg.Provider,
			FastModel:     cfg.FastModel,
			ThoroughModel: cfg.ThoroughModel,
			MaxRawBytes:   cfg.MaxRawBytes,
		},
		engines,
		imageprep.NewPreparer(cfg.MaxImageDimension, logger),
		prompts,
		extraction.NewAuditLog(bundle.auditLogger),
		logger.Named("extraction"),
	)
	return bundle, nil
}

// ProvideLocker creates the per-invoice locker for the configured backend.
func ProvideLocker(ctx context.Context, cfg *config.LockConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg.Backend != config.LockBackendRedis {
		return &LockBundle{Locker: lock.NewLocalLocker()}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Using Redis lock backend", zap.String("addr", cfg.RedisAddr))

	return &LockBundle{
		Locker: lock.NewRedisLocker(rdb, cfg.TTL, logger),
		redis:  rdb,
	}, nil
}

// ServiceDeps holds the dependencies of the application services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Files     port.FileStorage
	Extractor port.InvoiceExtractor
	Locker    port.Locker
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	r := deps.Repos
	attachments := service.NewAttachmentService(r.Project, r.Attachment, deps.Files, deps.Logger)

	return &ServiceBundle{
		Project:    service.NewProjectService(r.Project, r.Material, deps.Logger),
		Attachment: attachments,
		Invoice: service.NewInvoiceService(
			r.Project, r.Material, r.Invoice, attachments, deps.Extractor, deps.Locker, deps.Logger),
		Confirmation: service.NewConfirmationService(
			r.Project, r.Material, r.Invoice, r.Ledger, deps.TxManager, deps.Locker, deps.Logger),
		Ledger: service.NewLedgerService(r.Project, r.Material, r.Ledger, deps.Logger),
	}
}
