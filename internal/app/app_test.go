package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasegate/internal/infrastructure"
)

func writeTempRoster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `payload:
  - name: alice
    validation_time: 60
  - name: bob
    validation_time: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewApplication(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	t.Setenv("LEASEGATE_PATHS_ROSTER_FILE", writeTempRoster(t))

	app, err := NewApplication("")
	require.NoError(t, err)

	assert.Equal(t, 2, app.Table.Len())
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.Registry)
	assert.NotNil(t, app.adminServer)

	app.Table.Stop()
}

func TestNewApplication_AdminDisabled(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	t.Setenv("LEASEGATE_PATHS_ROSTER_FILE", writeTempRoster(t))
	t.Setenv("LEASEGATE_ADMIN_ENABLED", "false")

	app, err := NewApplication("")
	require.NoError(t, err)
	assert.Nil(t, app.adminServer)

	app.Table.Stop()
}

func TestNewApplication_MissingRoster(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	t.Setenv("LEASEGATE_PATHS_ROSTER_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := NewApplication("")
	assert.Error(t, err)
}

func TestNewApplication_BadConfig(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
	t.Setenv("LEASEGATE_SERVER_PORT", "-1")

	_, err := NewApplication("")
	assert.Error(t, err)
}
