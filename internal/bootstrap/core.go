package bootstrap

import (
	"fmt"
	"io"
	"time"

	"github.com/yuqie6/PlayPulse/internal/eventbus"
	"github.com/yuqie6/PlayPulse/internal/pkg/config"
	"github.com/yuqie6/PlayPulse/internal/repository"
	"github.com/yuqie6/PlayPulse/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	CfgPath   string
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub
	Location  *time.Location

	Repos struct {
		Playthrough *repository.PlaythroughRepository
		Session     *repository.SessionHistoryRepository
		Mood        *repository.MoodRepository
		Metrics     *repository.MetricsRepository
		User        *repository.UserRepository
		Settings    *repository.HealthSettingsRepository
	}

	Services struct {
		Playthroughs *service.PlaythroughService
		Wellness     *service.WellnessService
	}
}

// NewCore 加载配置、打开数据库并装配服务
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, err := config.SetupLogger(config.LoggerOptions{
		Level: cfg.App.LogLevel,
		Path:  cfg.App.LogPath,
	})
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Wellness.Location()
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	c := NewCoreWithDB(cfg, db, loc)
	c.CfgPath = cfgPath
	c.LogCloser = logCloser
	return c, nil
}

// NewCoreWithDB 在已打开的数据库上装配仓储与服务（测试与 CLI 复用）
func NewCoreWithDB(cfg *config.Config, database *repository.Database, loc *time.Location) *Core {
	if loc == nil {
		loc = time.Local
	}
	c := &Core{
		Cfg:      cfg,
		DB:       database,
		Hub:      eventbus.NewHub(),
		Location: loc,
	}
	db := database.DB

	// Repos
	c.Repos.Playthrough = repository.NewPlaythroughRepository(db)
	c.Repos.Session = repository.NewSessionHistoryRepository(db)
	c.Repos.Mood = repository.NewMoodRepository(db)
	c.Repos.Metrics = repository.NewMetricsRepository(db)
	c.Repos.User = repository.NewUserRepository(db)
	c.Repos.Settings = repository.NewHealthSettingsRepository(db)

	// Services
	c.Services.Wellness = service.NewWellnessService(
		c.Repos.Session,
		c.Repos.Mood,
		c.Repos.Metrics,
		c.Repos.User,
		c.Repos.Settings,
		&service.WellnessServiceConfig{
			DefaultAge:      c.Cfg.Wellness.DefaultAge,
			Location:        c.Location,
			BackfillMaxDays: c.Cfg.Wellness.BackfillMaxDays,
			BackfillWorkers: c.Cfg.Wellness.BackfillWorkers,
		},
	)
	c.Services.Playthroughs = service.NewPlaythroughService(
		c.Repos.Playthrough,
		c.Repos.Session,
		c.Services.Wellness,
		c.Hub,
		&service.PlaythroughServiceConfig{
			CompletionistTypes: c.Cfg.Playthrough.CompletionistTypes,
			Location:           c.Location,
		},
	)
	return c
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}

// RequireWritable 安全模式下拒绝写操作
func (c *Core) RequireWritable() error {
	if c == nil || c.DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	if c.DB.SafeMode {
		return fmt.Errorf("数据库处于安全模式，已禁用写入操作: %s", c.DB.MigrationError)
	}
	return nil
}
