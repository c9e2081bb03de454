// API Gatewayサービスのエントリポイント。
// Bearerトークンを検証する認証ゲートを通したうえでms-userサービスへリクエストを転送する。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/gateway"
	"github.com/nao1215/authgate/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "設定ファイルのパス（省略時はAUTHGATE_CONFIG）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, closeAll, err := gateway.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("Gatewayサーバーの初期化に失敗しました", zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := closeAll(closeCtx); err != nil {
			logger.Warn("終了処理に失敗しました", zap.Error(err))
		}
	}()

	if err := server.Run(ctx); err != nil {
		logger.Error("Gatewayサービスが異常終了しました", zap.Error(err))
		return err
	}
	return nil
}
