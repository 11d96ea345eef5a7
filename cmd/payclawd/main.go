package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"PayClaw/internal/api"
	"PayClaw/internal/config"
	"PayClaw/internal/ledger"
	"PayClaw/internal/observability/metrics"
	"PayClaw/internal/policy"
	"PayClaw/internal/remote"
	"PayClaw/internal/spend"
	"PayClaw/pkg/logger"
)

// main 是 payclawd 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("payclawd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("PAYCLAW_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "payclaw.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("关闭日志输出失败: %v", err)
		}
	}()

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", slog.Any("error", err))
			}
		}()
	}

	logger.L().Info("payclawd 启动",
		slog.String("mode", string(cfg.Mode())),
		slog.String("address", cfg.Server.Address),
	)

	server := api.NewServer(cfg.Server.Address, svc)
	return server.Start(ctx)
}

// buildService 按执行模式装配账本与生命周期管理器。
func buildService(cfg *config.Config) (*spend.Service, error) {
	switch cfg.Mode() {
	case config.ModeRemote:
		client, err := remote.NewClient(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
		})
		if err != nil {
			return nil, err
		}
		remoteLedger := remote.NewLedger(client)
		return spend.New(remoteLedger, spend.WithIdentitySource(remoteLedger)), nil
	default:
		pol, err := policy.Load(cfg.Policy.Path)
		if err != nil {
			return nil, err
		}
		return spend.New(ledger.NewLocal(pol)), nil
	}
}
