package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuqie6/PlayPulse/internal/bootstrap"
	"github.com/yuqie6/PlayPulse/internal/httpapi"
	"github.com/yuqie6/PlayPulse/internal/pkg/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "配置文件路径（默认可执行文件旁的 config/config.yaml）")
	flag.Parse()

	if cfgPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			slog.Error("获取默认配置路径失败", "error", err)
			os.Exit(1)
		}
		cfgPath = p
	}
	if written, err := config.WriteDefaultIfMissing(cfgPath); err != nil {
		slog.Warn("写出默认配置失败", "path", cfgPath, "error", err)
	} else if written {
		slog.Info("已生成默认配置", "path", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := bootstrap.NewCore(cfgPath)
	if err != nil {
		slog.Error("启动 PlayPulse 失败", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	slog.Info("PlayPulse Agent 启动中...", "name", core.Cfg.App.Name, "version", core.Cfg.App.Version)
	if core.DB.SafeMode {
		slog.Warn("数据库处于安全模式，写接口已禁用", "reason", core.DB.MigrationError)
	}

	// 运行期只热更新日志级别，其余配置需重启生效
	if err := config.Watch(cfgPath, nil); err != nil {
		slog.Warn("配置热更新不可用", "error", err)
	}

	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: core.Cfg.Server.ListenAddr})
	if err != nil {
		slog.Error("启动 HTTP 服务失败", "error", err)
		os.Exit(1)
	}
	slog.Info("PlayPulse Agent 已启动", "base_url", srv.BaseURL())

	<-ctx.Done()
	slog.Info("正在关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP 服务关闭异常", "error", err)
	}
	slog.Info("PlayPulse Agent 已退出")
}
