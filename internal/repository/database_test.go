package repository

import (
	"path/filepath"
	"testing"

	"github.com/yuqie6/PlayPulse/internal/schema"
)

func TestNewDatabaseMigratesToLatest(t *testing.T) {
	d, err := NewDatabase(filepath.Join(t.TempDir(), "data", "pulse.db"))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	defer d.Close()

	if d.SafeMode || d.SchemaVersion != LatestSchemaVersion() {
		t.Fatalf("expected v%d without safe mode, got v%d safe=%v (%s)", LatestSchemaVersion(), d.SchemaVersion, d.SafeMode, d.MigrationError)
	}
	for _, table := range []any{&schema.Playthrough{}, &schema.DailyMetrics{}, &schema.HealthSettings{}} {
		if !d.DB.Migrator().HasTable(table) {
			t.Fatalf("missing table for %T", table)
		}
	}
}

func TestMigrateUpgradesFromOlderVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")
	d, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	// 模拟 v1 时代的库：没有 health_settings
	if err := d.DB.Migrator().DropTable(&schema.HealthSettings{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := d.DB.Model(&schema.SchemaMeta{}).Where("id = ?", 1).Update("schema_version", 1).Error; err != nil {
		t.Fatalf("downgrade meta: %v", err)
	}
	_ = d.Close()

	d, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if d.SafeMode || d.SchemaVersion != 2 {
		t.Fatalf("expected upgrade to v2, got v%d safe=%v", d.SchemaVersion, d.SafeMode)
	}
	if !d.DB.Migrator().HasTable(&schema.HealthSettings{}) {
		t.Fatal("v2 step should create health_settings")
	}
}

func TestNewerSchemaEntersSafeMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.db")
	d, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	future := LatestSchemaVersion() + 1
	if err := d.DB.Model(&schema.SchemaMeta{}).Where("id = ?", 1).Update("schema_version", future).Error; err != nil {
		t.Fatalf("bump meta: %v", err)
	}
	_ = d.Close()

	d, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen should not fail, got %v", err)
	}
	defer d.Close()
	if !d.SafeMode || d.MigrationError == "" {
		t.Fatal("expected safe mode with a migration error")
	}
	if d.SchemaVersion != future {
		t.Fatalf("should report the on-disk version %d, got %d", future, d.SchemaVersion)
	}
}
