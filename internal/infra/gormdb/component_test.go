package gormdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:16;uniqueIndex"`
}

func TestSQLiteDatasourceWithMigrations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_init.sql"), []byte(`
-- bootstrap
CREATE TABLE IF NOT EXISTS t_probe (id INTEGER PRIMARY KEY, v TEXT);
INSERT INTO t_probe (id, v) VALUES (1, 'a');
`), 0o644))

	gc := NewGormComponent(&Config{
		Enabled:  true,
		LogLevel: "silent",
		DataSources: map[string]*DataSourceConfig{
			"main": {
				Driver:         DriverSQLite,
				Database:       filepath.Join(dir, "norns.db"),
				MigrateEnabled: true,
				MigrateDir:     dir,
				AutoMigrate:    true,
			},
		},
	})
	gc.RegisterModels(&widget{})
	ctx := context.Background()
	require.NoError(t, gc.Start(ctx))
	defer gc.Stop(ctx)
	require.NoError(t, gc.HealthCheck())

	db, err := gc.GetDB("main")
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Table("t_probe").Count(&n).Error)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.Create(&widget{Code: "x"}).Error)
	assert.True(t, db.Migrator().HasTable(&widget{}))

	_, err = gc.GetDB("other")
	assert.Error(t, err)
}

func TestDisabledComponentFailsStart(t *testing.T) {
	gc := NewGormComponent(&Config{Enabled: false})
	assert.Error(t, gc.Start(context.Background()))
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(&DataSourceConfig{Host: "db", User: "u", Password: "p", Database: "norns"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/norns?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.NotContains(t, dsn, "loc=", "utc is the driver default")

	dsn, err = buildDSN(&DataSourceConfig{Host: "db", User: "u", Database: "norns", Params: map[string]string{"loc": "Local"}})
	require.NoError(t, err)
	assert.Contains(t, dsn, "loc=Local")

	dsn, err = buildDSN(&DataSourceConfig{Driver: DriverPostgres, Host: "pg", User: "u", Database: "norns"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "host=pg port=5432 user=u")
	assert.Contains(t, dsn, "sslmode=disable")

	_, err = buildDSN(&DataSourceConfig{Driver: DriverSQLite})
	assert.Error(t, err)
}

func TestSplitSQLDropsComments(t *testing.T) {
	got := splitSQL("-- c\nCREATE TABLE a (x INT);\n\n;SELECT 1;")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "SELECT 1"}, got)
}
