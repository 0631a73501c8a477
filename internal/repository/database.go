package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/PlayPulse/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database 数据库句柄与迁移状态
type Database struct {
	DB             *gorm.DB
	SafeMode       bool // 迁移失败时为 true，写操作由上层拒绝
	SchemaVersion  int
	MigrationError string
}

// NewDatabase 打开 SQLite 并按版本迁移；迁移失败不返回错误，而是进入安全模式
func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := configureDB(db); err != nil {
		return nil, fmt.Errorf("配置数据库失败: %w", err)
	}

	d := &Database{DB: db}
	if err := migrateWithVersion(db, d); err != nil {
		d.SafeMode = true
		d.MigrationError = err.Error()
		slog.Error("数据库迁移失败，进入安全模式", "path", dbPath, "schema_version", d.SchemaVersion, "error", err)
		return d, nil
	}

	slog.Info("数据库已就绪", "path", dbPath, "schema_version", d.SchemaVersion)
	return d, nil
}

func configureDB(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL", // 计时写入与看板读取并发
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000", // 写锁竞争时等待
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("执行 %s 失败: %w", pragma, err)
		}
	}
	return nil
}

// migrationStep 把库从 version-1 升到 version
type migrationStep struct {
	version int
	name    string
	apply   func(db *gorm.DB) error
}

var migrations = []migrationStep{
	{
		version: 1,
		name:    "游玩、会话账本与每日指标",
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&schema.UserProfile{},
				&schema.Playthrough{},
				&schema.SessionHistory{},
				&schema.MoodEntry{},
				&schema.DailyMetrics{},
			)
		},
	},
	{
		version: 2,
		name:    "健康设置",
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(&schema.HealthSettings{})
		},
	},
}

// LatestSchemaVersion 当前程序能识别的最高版本
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// migrateWithVersion 依次执行高于当前版本的步骤，每步成功后立即落版本号
func migrateWithVersion(db *gorm.DB, out *Database) error {
	if db == nil || out == nil {
		return fmt.Errorf("db 与 out 不能为空")
	}

	// schema_meta 先于一切建立，迁移中途失败也能留下已达到的版本
	if err := db.AutoMigrate(&schema.SchemaMeta{}); err != nil {
		return fmt.Errorf("创建 schema_meta 失败: %w", err)
	}

	var meta schema.SchemaMeta
	if err := db.First(&meta, 1).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("读取 schema_meta 失败: %w", err)
		}
		meta = schema.SchemaMeta{ID: 1}
		if err := db.Create(&meta).Error; err != nil {
			return fmt.Errorf("初始化 schema_meta 失败: %w", err)
		}
	}
	out.SchemaVersion = meta.SchemaVersion

	if latest := LatestSchemaVersion(); meta.SchemaVersion > latest {
		return fmt.Errorf("数据库 schema_version=%d 高于程序支持的 %d，请升级 PlayPulse", meta.SchemaVersion, latest)
	}

	for _, step := range migrations {
		if step.version <= meta.SchemaVersion {
			continue
		}
		if err := step.apply(db); err != nil {
			return fmt.Errorf("迁移到 v%d（%s）失败: %w", step.version, step.name, err)
		}
		meta.SchemaVersion = step.version
		if err := db.Save(&meta).Error; err != nil {
			return fmt.Errorf("写入 schema_meta 失败: %w", err)
		}
		out.SchemaVersion = step.version
		slog.Info("数据库迁移完成", "version", step.version, "step", step.name)
	}
	return nil
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
