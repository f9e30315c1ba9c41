package hardware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNode(t *testing.T, dir, name, value string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(value+"\n"), 0o644))
	return path
}

func TestParseFeature(t *testing.T) {
	f, ok := ParseFeature("FEATURE_KEY_DISABLE")
	require.True(t, ok)
	assert.Equal(t, KeyDisable, f)

	for _, name := range []string{"KEY_DISABLE", "FEATURE_UNKNOWN", ""} {
		_, ok := ParseFeature(name)
		assert.False(t, ok, name)
	}

	for _, f := range Features {
		parsed, ok := ParseFeature(f.String())
		require.True(t, ok)
		assert.Equal(t, f, parsed)
	}
}

func TestIsBoolean(t *testing.T) {
	assert.True(t, KeyDisable.IsBoolean())
	assert.True(t, TouchHovering.IsBoolean())
	assert.False(t, Vibrator.IsBoolean())
	assert.False(t, TouchscreenGestures.IsBoolean())
}

func TestSysfsService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keys := writeNode(t, dir, "disable_keys", "0")

	svc, err := NewSysfsService(map[string]string{
		"feature_key_disable":    keys,
		"FEATURE_TOUCH_HOVERING": filepath.Join(dir, "missing"),
	}, zerolog.Nop())
	require.NoError(t, err)

	mask, err := svc.SupportedFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, int(KeyDisable), mask)

	enabled, err := svc.Get(ctx, KeyDisable)
	require.NoError(t, err)
	assert.False(t, enabled)

	applied, err := svc.Set(ctx, KeyDisable, true)
	require.NoError(t, err)
	assert.True(t, applied)
	enabled, err = svc.Get(ctx, KeyDisable)
	require.NoError(t, err)
	assert.True(t, enabled)

	applied, err = svc.Set(ctx, TouchHovering, true)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = svc.Get(ctx, Vibrator)
	assert.ErrorIs(t, err, ErrNotBoolean)
}

func TestSysfsServiceRejectsUnknownName(t *testing.T) {
	_, err := NewSysfsService(map[string]string{"FEATURE_WARP_DRIVE": "/dev/null"}, zerolog.Nop())
	assert.Error(t, err)
}

type brokenRemote struct{}

var errBroken = errors.New("service unavailable")

func (brokenRemote) SupportedFeatures(context.Context) (int, error) { return 0, errBroken }
func (brokenRemote) Get(context.Context, Feature) (bool, error) { return false, errBroken }
func (brokenRemote) Set(context.Context, Feature, bool) (bool, error) { return false, errBroken }
func (brokenRemote) VibratorIntensity(context.Context) (Intensity, error) {
	return Intensity{}, errBroken
}
func (brokenRemote) SetVibratorIntensity(context.Context, int) (bool, error) { return false, errBroken }
func (brokenRemote) TouchscreenGestures(context.Context) ([]Gesture, error) { return nil, errBroken }
func (brokenRemote) SetTouchscreenGestureEnabled(context.Context, int, bool) (bool, error) {
	return false, errBroken
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := NewService(map[Feature]Toggle{
		HighTouchSensitivity: SysfsToggle{Path: writeNode(t, dir, "glove", "1")},
	}, zerolog.Nop())
	m := NewManager(svc, zerolog.Nop())

	assert.True(t, m.IsSupported(ctx, HighTouchSensitivity))
	assert.True(t, m.IsSupportedName(ctx, "FEATURE_HIGH_TOUCH_SENSITIVITY"))
	assert.False(t, m.IsSupportedName(ctx, "HIGH_TOUCH_SENSITIVITY"))
	assert.False(t, m.IsSupported(ctx, KeySwap))

	enabled, err := m.Get(ctx, HighTouchSensitivity)
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = m.Set(ctx, TouchscreenGestures, true)
	assert.ErrorIs(t, err, ErrNotBoolean)
}

func TestManagerRemoteFailure(t *testing.T) {
	ctx := context.Background()
	m := NewManager(brokenRemote{}, zerolog.Nop())

	assert.Zero(t, m.SupportedFeatures(ctx))
	assert.False(t, m.IsSupported(ctx, KeyDisable))

	enabled, err := m.Get(ctx, KeyDisable)
	require.NoError(t, err)
	assert.False(t, enabled)

	applied, err := m.Set(ctx, KeyDisable, true)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, Intensity{}, m.VibratorIntensity(ctx))
	assert.False(t, m.SetVibratorIntensity(ctx, 10))
	assert.Nil(t, m.TouchscreenGestures(ctx))
	assert.False(t, m.SetTouchscreenGestureEnabled(ctx, Gesture{ID: 1}, true))
}

func TestVibrator(t *testing.T) {
	ctx := context.Background()
	node := writeNode(t, t.TempDir(), "vtg_level", "60")
	svc := NewService(nil, zerolog.Nop(), WithVibrator(SysfsVibrator{
		Path: node, Default: 60, Min: 12, Max: 127, Warning: 100,
	}))
	m := NewManager(svc, zerolog.Nop())

	assert.True(t, m.IsSupported(ctx, Vibrator))
	assert.Equal(t, Intensity{Current: 60, Default: 60, Min: 12, Max: 127, Warning: 100}, m.VibratorIntensity(ctx))

	assert.True(t, m.SetVibratorIntensity(ctx, 90))
	assert.Equal(t, 90, m.VibratorIntensity(ctx).Current)

	_, err := svc.SetVibratorIntensity(ctx, 128)
	assert.ErrorIs(t, err, ErrIntensityRange)
	assert.False(t, m.SetVibratorIntensity(ctx, 11))
	assert.Equal(t, 90, m.VibratorIntensity(ctx).Current)
}

func TestVibratorMissingNode(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, zerolog.Nop(), WithVibrator(SysfsVibrator{Path: filepath.Join(t.TempDir(), "missing")}))

	mask, err := svc.SupportedFeatures(ctx)
	require.NoError(t, err)
	assert.Zero(t, mask)
	applied, err := svc.SetVibratorIntensity(ctx, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestTouchscreenGestures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := NewService(nil, zerolog.Nop(), WithGestures(SysfsGestures{
		{Gesture: Gesture{ID: 2, Name: "Letter W", Keycode: 250}, Path: writeNode(t, dir, "w", "0")},
		{Gesture: Gesture{ID: 1, Name: "Double tap", Keycode: 251}, Path: writeNode(t, dir, "dt", "1")},
		{Gesture: Gesture{ID: 3, Name: "Letter M", Keycode: 252}, Path: filepath.Join(dir, "missing")},
	}))
	m := NewManager(svc, zerolog.Nop())

	assert.True(t, m.IsSupported(ctx, TouchscreenGestures))
	gestures := m.TouchscreenGestures(ctx)
	assert.Equal(t, []Gesture{
		{ID: 1, Name: "Double tap", Keycode: 251},
		{ID: 2, Name: "Letter W", Keycode: 250},
	}, gestures)

	assert.True(t, m.SetTouchscreenGestureEnabled(ctx, gestures[1], true))
	raw, err := os.ReadFile(filepath.Join(dir, "w"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(raw))

	_, err = svc.SetTouchscreenGestureEnabled(ctx, 9, true)
	assert.ErrorIs(t, err, ErrUnknownGesture)
}
