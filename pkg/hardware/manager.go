package hardware

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Manager is the client-facing view of the hardware service. Transport
// failures are logged and read as "unsupported" or "disabled".
type Manager struct {
	remote Remote
	log    zerolog.Logger
}

func NewManager(remote Remote, log zerolog.Logger) *Manager {
	return &Manager{remote: remote, log: log.With().Str("component", "hardware").Logger()}
}

// SupportedFeatures returns the supported bitmask, or 0 when the service is unreachable.
func (m *Manager) SupportedFeatures(ctx context.Context) int {
	if m.remote == nil {
		return 0
	}
	mask, err := m.remote.SupportedFeatures(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("can't read supported hardware features")
		return 0
	}
	return mask
}

// IsSupported reports whether f is supported on this device.
func (m *Manager) IsSupported(ctx context.Context, f Feature) bool {
	return Has(m.SupportedFeatures(ctx), f)
}

// IsSupportedName is IsSupported for a "FEATURE_*" name. Unknown names are unsupported.
func (m *Manager) IsSupportedName(ctx context.Context, name string) bool {
	f, ok := ParseFeature(name)
	if !ok {
		return false
	}
	return m.IsSupported(ctx, f)
}

// Get reports whether a boolean feature is enabled.
func (m *Manager) Get(ctx context.Context, f Feature) (bool, error) {
	if !f.IsBoolean() {
		return false, fmt.Errorf("%w: %s", ErrNotBoolean, f)
	}
	if m.remote == nil {
		return false, nil
	}
	enabled, err := m.remote.Get(ctx, f)
	if err != nil {
		m.log.Warn().Err(err).Str("feature", f.String()).Msg("can't get feature")
		return false, nil
	}
	return enabled, nil
}

// Set enables or disables a boolean feature and reports whether it took effect.
func (m *Manager) Set(ctx context.Context, f Feature, enable bool) (bool, error) {
	if !f.IsBoolean() {
		return false, fmt.Errorf("%w: %s", ErrNotBoolean, f)
	}
	if m.remote == nil {
		return false, nil
	}
	applied, err := m.remote.Set(ctx, f, enable)
	if err != nil {
		m.log.Warn().Err(err).Str("feature", f.String()).Msg("can't set feature")
		return false, nil
	}
	return applied, nil
}

// VibratorIntensity returns the vibrator's strength range; all zeros when the
// service is unreachable or has no vibrator.
func (m *Manager) VibratorIntensity(ctx context.Context) Intensity {
	if m.remote == nil {
		return Intensity{}
	}
	in, err := m.remote.VibratorIntensity(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("can't get vibrator intensity")
		return Intensity{}
	}
	return in
}

// SetVibratorIntensity sets the vibrator strength, between the Min and Max
// of VibratorIntensity inclusive, and reports whether it took effect.
func (m *Manager) SetVibratorIntensity(ctx context.Context, level int) bool {
	if m.remote == nil {
		return false
	}
	applied, err := m.remote.SetVibratorIntensity(ctx, level)
	if err != nil {
		m.log.Warn().Err(err).Int("level", level).Msg("can't set vibrator intensity")
		return false
	}
	return applied
}

// TouchscreenGestures lists the gestures the device offers.
func (m *Manager) TouchscreenGestures(ctx context.Context) []Gesture {
	if m.remote == nil {
		return nil
	}
	gestures, err := m.remote.TouchscreenGestures(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("can't list touchscreen gestures")
		return nil
	}
	return gestures
}

// SetTouchscreenGestureEnabled switches g and reports whether it took effect.
func (m *Manager) SetTouchscreenGestureEnabled(ctx context.Context, g Gesture, enable bool) bool {
	if m.remote == nil {
		return false
	}
	applied, err := m.remote.SetTouchscreenGestureEnabled(ctx, g.ID, enable)
	if err != nil {
		m.log.Warn().Err(err).Str("gesture", g.Name).Msg("can't set touchscreen gesture")
		return false
	}
	return applied
}
