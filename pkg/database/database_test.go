package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector_UnsupportedDriver(t *testing.T) {
	_, err := Dialector(&Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDialector_KnownDrivers(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(&Config{Driver: driver, Host: "localhost", Port: 1, FilePath: ":memory:"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d, driver)
	}
}

func TestOpen_AppliesPoolSettings(t *testing.T) {
	db, err := Open(sqlite.Open("file::memory:"), &Config{MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
