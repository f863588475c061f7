package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/dispatcher"
	"github.com/finclose/close-engine/internal/application/service"
	"github.com/finclose/close-engine/internal/config"
	"github.com/finclose/close-engine/internal/infrastructure/external/lark"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/repository"
	"github.com/finclose/close-engine/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/finclose/close-engine/internal/interfaces/http"
	"github.com/finclose/close-engine/pkg/database"
	"github.com/finclose/close-engine/pkg/utils"
)

func main() {
	// Local overrides from .env; absence is fine.
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting close engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	appLogger := utils.NewAppLogger(logger)

	// Repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	batchRepo := repository.NewBatchRepository(db.DB, logger)
	recordRepo := repository.NewRecordRepository(db.DB, logger)
	commentRepo := repository.NewCommentRepository(db.DB, logger)
	stepRepo := repository.NewStepRepository(db.DB, logger)

	// Event dispatcher
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(appLogger))
	defer disp.Close()

	// Application services
	locks := service.NewBatchLocks()
	auditService := service.NewAuditService(recordRepo, cfg.Export.MaxRangeDays, appLogger)
	approvalService := service.NewApprovalService(
		batchRepo, commentRepo, stepRepo, txManager, auditService, disp, locks, appLogger)
	workflowService := service.NewWorkflowService(
		batchRepo, stepRepo, commentRepo, txManager, disp, locks, appLogger)
	exportService := service.NewExportService(auditService, workflowService, appLogger)

	// Notifications go to the finance ops chat when enabled
	if cfg.Lark.Enabled {
		notifier := lark.NewNotifier(lark.Config{
			AppID:      cfg.Lark.AppID,
			AppSecret:  cfg.Lark.AppSecret,
			APITimeout: cfg.Lark.APITimeout,
		}, logger)
		notificationService := service.NewNotificationService(
			notifier, cfg.Lark.ChatID, cfg.Notification.SendTimeout, appLogger)
		notificationService.Register(disp)
		logger.Info("Lark notifications enabled", zap.String("chat_id", cfg.Lark.ChatID))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		MaxLogRangeDays: cfg.Export.MaxRangeDays,
	}, approvalService, workflowService, auditService, exportService, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
