package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edupulse/attempt-service/internal/repositories"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// SubmissionGrace is how long past the deadline a manual submission is
	// still accepted before it is closed as timed out.
	SubmissionGrace time.Duration

	// SweepInterval is how often the background sweeper looks for attempts
	// whose deadline has passed.
	SweepInterval time.Duration

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator Validator
	events    EventPublisher
	config    ServiceManagerConfig

	attemptService    AttemptService
	submissionService SubmissionService
	gradingService    GradingService
	exportService     ExportService
	sweeper           *TimeoutSweeper

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(repo repositories.Repository, logger *slog.Logger, validator Validator, events EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    events,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(repo repositories.Repository, logger *slog.Logger, validator Validator, events EventPublisher) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,
		SubmissionGrace:    30 * time.Second,
		SweepInterval:      15 * time.Second,
		DefaultTimeout:     30 * time.Second,
	}

	return NewServiceManager(repo, logger, validator, events, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.gradingService = NewGradingService(sm.logger)
	sm.attemptService = NewAttemptService(sm.repo, sm.logger, sm.validator, sm.events)
	sm.submissionService = NewSubmissionService(sm.repo, sm.gradingService, sm.logger, sm.validator, sm.events, sm.config.SubmissionGrace)
	sm.exportService = NewExportService(sm.repo, sm.logger)
	sm.sweeper = NewTimeoutSweeper(sm.repo, sm.submissionService, sm.logger, sm.config.SubmissionGrace, sm.config.SweepInterval)

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository not reachable: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.attemptService == nil {
		panic("attempt service not initialized")
	}

	return sm.attemptService
}

func (sm *serviceManager) Submission() SubmissionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.submissionService == nil {
		panic("submission service not initialized")
	}

	return sm.submissionService
}

func (sm *serviceManager) Grading() GradingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.gradingService == nil {
		panic("grading service not initialized")
	}

	return sm.gradingService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.exportService == nil {
		panic("export service not initialized")
	}

	return sm.exportService
}

// Sweeper exposes the timeout sweeper so main can run it.
func (sm *serviceManager) Sweeper() *TimeoutSweeper {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized || sm.sweeper == nil {
		panic("sweeper not initialized")
	}

	return sm.sweeper
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.events != nil {
		if err := sm.events.Close(); err != nil {
			sm.logger.Error("failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down")

	return nil
}
