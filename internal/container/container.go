package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/port"
	"github.com/garyjia/reno-purchases/internal/application/service"
	"github.com/garyjia/reno-purchases/internal/config"
)

// Container owns every component of the service. Components are built in
// dependency order by Start and released in reverse order by Close.
type Container struct {
	config *config.Config
	logger *zap.Logger

	database     *DatabaseBundle
	repositories *RepositoryBundle
	fileStorage  port.FileStorage
	extraction   *ExtractionBundle
	locks        *LockBundle
	services     *ServiceBundle

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Project    port.ProjectRepository
	Material   port.MaterialRepository
	Attachment port.AttachmentRepository
	Invoice    port.InvoiceRepository
	Ledger     port.LedgerRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Project      service.ProjectService
	Attachment   service.AttachmentService
	Invoice      service.InvoiceService
	Confirmation service.ConfirmationService
	Ledger       service.LedgerService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a container. Nothing is opened until Start.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. Attachment storage
// 3. Extraction engine and orchestrator
// 4. Per-invoice locker
// 5. Application services
// On failure everything already opened is closed again.
func (c *Container) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	defer func() {
		if err != nil {
			_ = c.release()
		}
	}()

	c.logger.Info("Starting container initialization")

	c.database, err = ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.repositories = ProvideRepositories(c.database.DB, c.logger)
	c.logger.Info("Database initialized")

	c.fileStorage, err = ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.extraction, err = ProvideExtractor(&c.config.Extraction, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize extraction: %w", err)
	}
	c.logger.Info("Extraction initialized",
		zap.String("provider", c.config.Extraction.Provider),
		zap.Bool("engine_configured", c.config.Extraction.APIKey != ""),
		zap.Bool("audit_log", c.extraction.auditLogger != nil))

	c.locks, err = ProvideLocker(ctx, &c.config.Lock, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize locker: %w", err)
	}

	c.services = ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.database.DB,
		Files:     c.fileStorage,
		Extractor: c.extraction.Extractor,
		Locker:    c.locks.Locker,
		Logger:    c.logger,
	})

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close releases all components in reverse order of Start.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	err := c.release()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) release() error {
	var errs []error

	if c.locks != nil && c.locks.redis != nil {
		if err := c.locks.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.extraction != nil && c.extraction.auditLogger != nil {
		_ = c.extraction.auditLogger.Sync()
	}

	if c.database != nil {
		if err := c.database.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.locks, c.extraction, c.database = nil, nil, nil
	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of the database and, when used, Redis.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	check := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.database == nil {
		check("database", fmt.Errorf("not initialized"))
	} else {
		check("database", c.database.DB.PingContext(ctx))
	}

	if c.locks != nil && c.locks.redis != nil {
		check("redis", c.locks.redis.Ping(ctx).Err())
	}

	if c.extraction != nil && c.config.Extraction.APIKey == "" {
		status.Components["extraction"] = ComponentHealth{Healthy: true, Message: "fallback extractor"}
	}

	return status
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
