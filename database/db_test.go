package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"notion-lite/workspace/config"
)

func TestSetup_SQLite(t *testing.T) {
	cfg := config.Config{
		AppEnv:     "test",
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "workspace.db"),
	}

	db, err := Setup(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.True(t, db.DB.Migrator().HasTable("blocks"))
	assert.True(t, db.DB.Migrator().HasTable("events"))
}

func TestSetup_UnknownDriver(t *testing.T) {
	_, err := Setup(config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	database := &Database{DB: db}

	assert.NotPanics(t, func() {
		database.Close()
	})
	assert.NotPanics(t, func() {
		(&Database{}).Close()
	})
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))
}
