package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "host=localhost dbname=bezis")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DBDriver)
	require.True(t, cfg.DBAutoMigrate)
	require.Equal(t, 10, cfg.DBMaxOpenConns)
	require.Equal(t, 15*time.Second, cfg.DBStatementTimeout)
	require.Equal(t, ":8081", cfg.HTTPAddr)
	require.Equal(t, "MST", cfg.MustahiqCodePrefix)
	require.InDelta(t, 0.15, cfg.OCRMinConfidence, 1e-9)
	require.True(t, cfg.UsingDevSecret())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Asia/Jakarta", loc.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "file:bezis.db")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("DB_STATEMENT_TIMEOUT", "2s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MUSTAHIQ_CODE_PREFIX", "MSH")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.False(t, cfg.DBAutoMigrate)
	require.Equal(t, 2*time.Second, cfg.DBStatementTimeout)
	require.False(t, cfg.UsingDevSecret())
	require.Equal(t, "MSH", cfg.MustahiqCodePrefix)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DSN", "")
	_, err := Load()
	require.ErrorContains(t, err, "DB_DSN")

	t.Setenv("DB_DSN", "file:bezis.db")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	require.ErrorContains(t, err, "DB_DRIVER")
}
