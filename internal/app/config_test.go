package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REPORT_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
}

func TestInTestModeRefresh(t *testing.T) {
	t.Setenv("DEFTERDAR_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("DEFTERDAR_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
