// Command test-notification sends a single test message to the configured
// Lark chat to verify credentials and chat wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/config"
	"github.com/finclose/close-engine/internal/infrastructure/external/lark"
)

func main() {
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
	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" || cfg.Lark.ChatID == "" {
		fmt.Fprintln(os.Stderr, "LARK_APP_ID, LARK_APP_SECRET and LARK_CHAT_ID must be set")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	notifier := lark.NewNotifier(lark.Config{
		AppID:      cfg.Lark.AppID,
		AppSecret:  cfg.Lark.AppSecret,
		APITimeout: cfg.Lark.APITimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Close engine notification test at %s", time.Now().Format(time.RFC3339))
	if err := notifier.SendMessage(ctx, cfg.Lark.ChatID, msg); err != nil {
		logger.Fatal("Test notification failed", zap.Error(err))
	}

	logger.Info("Test notification sent", zap.String("chat_id", cfg.Lark.ChatID))
}
