package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/yuqie6/PlayPulse/internal/pkg/buildinfo"
)

// Config 应用配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Playthrough PlaythroughConfig `mapstructure:"playthrough"`
	Wellness    WellnessConfig    `mapstructure:"wellness"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// PlaythroughConfig 计时状态机配置
type PlaythroughConfig struct {
	CompletionistTypes []string `mapstructure:"completionist_types"`
}

// WellnessConfig 健康指标配置
type WellnessConfig struct {
	DefaultAge      int    `mapstructure:"default_age"`
	Timezone        string `mapstructure:"timezone"`
	BackfillMaxDays int    `mapstructure:"backfill_max_days"`
	BackfillWorkers int    `mapstructure:"backfill_workers"`
}

// Location 解析时区；空或 Local 使用本机时区
func (w WellnessConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(w.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("解析时区失败: %w", err)
	}
	return loc, nil
}

// Default 返回全部默认值组成的配置（用于首次运行写出配置文件）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	return decode(v)
}

// Watch 监听配置文件变化，解析成功后回调；日志级别会被立即应用
func Watch(configPath string, onChange func(*Config)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("配置热更新失败", "path", e.Name, "error", err)
			return
		}
		SetLogLevel(cfg.App.LogLevel)
		slog.Info("配置已热更新", "path", e.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if _, err := cfg.Wellness.Location(); err != nil {
		return nil, err
	}

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	if cfg.App.LogPath != "" {
		cfg.App.LogPath = resolvePath(cfg.App.LogPath)
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "pulse-agent")
	v.SetDefault("app.version", buildinfo.Version)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:8765")

	// Storage
	v.SetDefault("storage.db_path", "./data/pulse.db")

	// Playthrough
	v.SetDefault("playthrough.completionist_types", []string{"100%", "100_percent"})

	// Wellness
	v.SetDefault("wellness.default_age", 18)
	v.SetDefault("wellness.timezone", "Local")
	v.SetDefault("wellness.backfill_max_days", 366)
	v.SetDefault("wellness.backfill_workers", 4)
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

var logLevel = new(slog.LevelVar)

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level string
	Path  string // 为空只输出到 stdout
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogger 安装默认 logger；返回的 Closer 用于关闭日志文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	SetLogLevel(opts.Level)

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// SetLogLevel 运行时调整日志级别
func SetLogLevel(level string) {
	logLevel.Set(ParseLevel(level))
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
