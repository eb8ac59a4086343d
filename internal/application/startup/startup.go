// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/tractstack-tracking/internal/application/container"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractstack-tracking/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/tractstack-tracking/internal/presentation/http/server"
	"github.com/AtRiskMedia/tractstack-tracking/pkg/config"
)

// Initialize loads configuration, wires the container and serves until a
// termination signal arrives.
func Initialize() error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 2: Logging
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.DefaultLevel = cfg.Logging.SlogLevel()
	loggerConfig.JSONFormat = cfg.Logging.JSON
	loggerConfig.OutputToFile = cfg.Logging.ToFile
	loggerConfig.LogDirectory = cfg.Logging.Directory
	loggerConfig.IncludeSource = cfg.Logging.Source

	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.LogStartupPhase("logging", time.Since(start), true)

	// Step 3: Container
	containerStart := time.Now()
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())
	appContainer := container.NewContainer(cfg, logger, perfTracker, logging.GetBroadcaster())
	logger.LogStartupPhase("container", time.Since(containerStart), true)

	if !appContainer.Guarantor.Scripts().LibraryAvailable() {
		logger.Startup().Warn("Library script asset is missing; pages will emit a console notice instead of the static tag")
	}

	// Step 4: Background workers
	go perfTracker.RunCleanup(ctx)

	// Step 5: HTTP server
	httpServer := server.New(appContainer)
	logger.Startup().Info("HTTP server initialized",
		"address", httpServer.Addr(),
		"libraryPath", cfg.Tracking.LibraryPath,
		"cookiePrefix", cfg.Tracking.CookiePrefix)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete", "totalDuration", time.Since(start))

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}
