package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evervolv/evsettings/pkg/hardware"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "127.0.0.1:7001", cfg.Server.Addr)
	assert.True(t, cfg.Server.TLS)
	assert.Equal(t, 100, cfg.Server.MaxConns)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 255, cfg.Resources.BatteryBrightnessLevel)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yml", `
data_dir: /var/lib/evsettings
server:
  addr: 0.0.0.0:7101
  tls: false
auth:
  tokens:
    launcher: [read, write]
resources:
  qs_quick_pulldown: 1
  lockscreen_rotation: true
hardware:
  nodes:
    FEATURE_KEY_DISABLE: /sys/devices/virtual/input/disable_keys
logging:
  level: debug
  format: json
`)
	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/evsettings", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:7101", cfg.Server.Addr)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, "127.0.0.1:7002", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"read", "write"}, cfg.Auth.Tokens["launcher"])
	assert.Equal(t, 1, cfg.Resources.QSQuickPulldown)
	assert.True(t, cfg.Resources.LockscreenRotation)
	// Untouched resources keep their defaults
	assert.Equal(t, 255, cfg.Resources.NotificationBrightnessLevel)
	// Viper folds map keys to lower case
	assert.Equal(t, "/sys/devices/virtual/input/disable_keys", cfg.Hardware.Nodes["feature_key_disable"])
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yml", "data_dir: /from/file\n")
	t.Setenv("EVSETTINGS_DATA_DIR", "/from/env")
	t.Setenv("EVSETTINGS_RESOURCES_BATTERY_STYLE", "2")
	t.Setenv("EVSETTINGS_LOGGING_NO_COLOR", "true")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 2, cfg.Resources.BatteryStyle)
	assert.True(t, cfg.Logging.NoColor)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "EVSETTINGS_SERVER_HTTP_ADDR"
	require.Empty(t, os.Getenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	envFile := writeFile(t, ".env", key+"=127.0.0.1:9999\n")
	cfg, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.HTTPAddr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yml")})
	assert.Error(t, err)

	_, err = Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)

	path := writeFile(t, "config.yml", "logging:\n  level: chatty\n")
	_, err = Load(Options{ConfigFile: path})
	assert.Error(t, err)
}

func TestLoadVibratorAndGestures(t *testing.T) {
	dir := t.TempDir()
	vib := filepath.Join(dir, "vmax")
	dt2w := filepath.Join(dir, "dt2w")
	require.NoError(t, os.WriteFile(vib, []byte("40\n"), 0o644))
	require.NoError(t, os.WriteFile(dt2w, []byte("0\n"), 0o644))

	path := writeFile(t, "config.yml", `
hardware:
  vibrator:
    node: `+vib+`
    default: 50
    min: 10
    max: 100
    warning: 80
  gestures:
    - id: 1
      name: double_tap
      keycode: 62
      node: `+dt2w+`
`)
	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)
	require.True(t, cfg.Hardware.Configured())
	assert.Equal(t, 100, cfg.Hardware.Vibrator.Max)
	require.Len(t, cfg.Hardware.Gestures, 1)
	assert.Equal(t, "double_tap", cfg.Hardware.Gestures[0].Name)

	svc, err := hardware.NewSysfsService(cfg.Hardware.Nodes, zerolog.Nop(), cfg.Hardware.ServiceOptions()...)
	require.NoError(t, err)
	ctx := context.Background()

	mask, err := svc.SupportedFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(hardware.Vibrator|hardware.TouchscreenGestures), mask)

	level, err := svc.VibratorIntensity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, level.Current)
	assert.Equal(t, 80, level.Warning)

	gestures, err := svc.TouchscreenGestures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []hardware.Gesture{{ID: 1, Name: "double_tap", Keycode: 62}}, gestures)
}

func TestLoadRejectsBadHardware(t *testing.T) {
	path := writeFile(t, "config.yml", `
hardware:
  vibrator:
    node: /sys/vmax
    min: 10
    max: 5
`)
	_, err := Load(Options{ConfigFile: path})
	assert.Error(t, err)

	path = writeFile(t, "config.yml", `
hardware:
  gestures:
    - id: 1
      node: /sys/a
    - id: 1
      node: /sys/b
`)
	_, err = Load(Options{ConfigFile: path})
	assert.Error(t, err)
}
