package hardware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Remote is the hardware service as seen by a client. It is implemented by
// Service in process and by the network client.
type Remote interface {
	SupportedFeatures(ctx context.Context) (int, error)
	Get(ctx context.Context, f Feature) (bool, error)
	Set(ctx context.Context, f Feature, enable bool) (bool, error)

	VibratorIntensity(ctx context.Context) (Intensity, error)
	SetVibratorIntensity(ctx context.Context, level int) (bool, error)
	TouchscreenGestures(ctx context.Context) ([]Gesture, error)
	SetTouchscreenGestureEnabled(ctx context.Context, id int, enable bool) (bool, error)
}

// Service owns the vendor controls of the device.
type Service struct {
	toggles   map[Feature]Toggle
	vibrator  VibratorControl
	gestures  GestureControl
	supported int
	log       zerolog.Logger
}

// Option adds a non-boolean control to a Service.
type Option func(*Service)

// WithVibrator serves FEATURE_VIBRATOR from v.
func WithVibrator(v VibratorControl) Option {
	return func(s *Service) { s.vibrator = v }
}

// WithGestures serves FEATURE_TOUCHSCREEN_GESTURES from g.
func WithGestures(g GestureControl) Option {
	return func(s *Service) { s.gestures = g }
}

// NewService checks every control once and records which features are supported.
func NewService(toggles map[Feature]Toggle, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		toggles: make(map[Feature]Toggle, len(toggles)),
		log:     log.With().Str("component", "hardware").Logger(),
	}
	for f, t := range toggles {
		if t == nil || !t.Supported() {
			continue
		}
		s.toggles[f] = t
		s.supported |= int(f)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.vibrator != nil && s.vibrator.Supported() {
		s.supported |= int(Vibrator)
	} else {
		s.vibrator = nil
	}
	if s.gestures != nil && s.gestures.Supported() {
		s.supported |= int(TouchscreenGestures)
	} else {
		s.gestures = nil
	}
	s.log.Debug().Int("supported", s.supported).Msg("detected hardware features")
	return s
}

// NewSysfsService builds a Service from feature name to node path pairs,
// e.g. {"FEATURE_KEY_DISABLE": "/sys/.../disable_keys"}. Names are matched
// case-insensitively since config loaders fold map keys.
func NewSysfsService(nodes map[string]string, log zerolog.Logger, opts ...Option) (*Service, error) {
	toggles := make(map[Feature]Toggle, len(nodes))
	for name, path := range nodes {
		f, ok := ParseFeature(strings.ToUpper(name))
		if !ok {
			return nil, fmt.Errorf("unknown hardware feature %q", name)
		}
		toggles[f] = SysfsToggle{Path: path}
	}
	return NewService(toggles, log, opts...), nil
}

// SupportedFeatures returns the supported feature bitmask.
func (s *Service) SupportedFeatures(context.Context) (int, error) {
	return s.supported, nil
}

// Get reports whether a boolean feature is enabled. Unsupported features and
// toggle failures read as disabled.
func (s *Service) Get(_ context.Context, f Feature) (bool, error) {
	if !f.IsBoolean() {
		return false, fmt.Errorf("%w: %s", ErrNotBoolean, f)
	}
	t, ok := s.toggles[f]
	if !ok {
		return false, nil
	}
	enabled, err := t.Enabled()
	if err != nil {
		s.log.Debug().Err(err).Str("feature", f.String()).Msg("can't read feature")
		return false, nil
	}
	return enabled, nil
}

// Set switches a boolean feature and reports whether it took effect.
func (s *Service) Set(_ context.Context, f Feature, enable bool) (bool, error) {
	if !f.IsBoolean() {
		return false, fmt.Errorf("%w: %s", ErrNotBoolean, f)
	}
	t, ok := s.toggles[f]
	if !ok {
		return false, nil
	}
	applied, err := t.SetEnabled(enable)
	if err != nil {
		s.log.Warn().Err(err).Str("feature", f.String()).Bool("enable", enable).Msg("can't set feature")
		return false, nil
	}
	return applied, nil
}

// VibratorIntensity returns the vibrator's strength range. An unsupported or
// unreadable vibrator reads as all zeros.
func (s *Service) VibratorIntensity(context.Context) (Intensity, error) {
	if s.vibrator == nil {
		return Intensity{}, nil
	}
	in, err := s.vibrator.Intensity()
	if err != nil {
		s.log.Debug().Err(err).Msg("can't read vibrator intensity")
		return Intensity{}, nil
	}
	return in, nil
}

// SetVibratorIntensity sets the vibrator strength, which must lie within the
// vibrator's [Min, Max].
func (s *Service) SetVibratorIntensity(_ context.Context, level int) (bool, error) {
	if s.vibrator == nil {
		return false, nil
	}
	in, err := s.vibrator.Intensity()
	if err != nil {
		s.log.Warn().Err(err).Msg("can't read vibrator intensity")
		return false, nil
	}
	if level < in.Min || level > in.Max {
		return false, fmt.Errorf("%w: %d not in [%d, %d]", ErrIntensityRange, level, in.Min, in.Max)
	}
	applied, err := s.vibrator.SetIntensity(level)
	if err != nil {
		s.log.Warn().Err(err).Int("level", level).Msg("can't set vibrator intensity")
		return false, nil
	}
	return applied, nil
}

// TouchscreenGestures lists the gestures the device offers, or none when
// gestures are unsupported.
func (s *Service) TouchscreenGestures(context.Context) ([]Gesture, error) {
	if s.gestures == nil {
		return nil, nil
	}
	gestures, err := s.gestures.Gestures()
	if err != nil {
		s.log.Debug().Err(err).Msg("can't list touchscreen gestures")
		return nil, nil
	}
	return gestures, nil
}

// SetTouchscreenGestureEnabled switches one gesture by id.
func (s *Service) SetTouchscreenGestureEnabled(_ context.Context, id int, enable bool) (bool, error) {
	if s.gestures == nil {
		return false, nil
	}
	applied, err := s.gestures.SetGestureEnabled(id, enable)
	if errors.Is(err, ErrUnknownGesture) {
		return false, err
	}
	if err != nil {
		s.log.Warn().Err(err).Int("gesture", id).Bool("enable", enable).Msg("can't set touchscreen gesture")
		return false, nil
	}
	return applied, nil
}
