package hardware

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Toggle is a vendor control that can be switched on and off.
type Toggle interface {
	// Supported reports whether the control is present on this device.
	Supported() bool
	Enabled() (bool, error)
	// SetEnabled reports whether the control accepted the new state.
	SetEnabled(enable bool) (bool, error)
}

// SysfsToggle drives a control exposed as a kernel node holding "0" or "1".
type SysfsToggle struct {
	Path string
}

func (s SysfsToggle) Supported() bool {
	info, err := os.Stat(s.Path)
	return err == nil && info.Mode().IsRegular()
}

func (s SysfsToggle) Enabled() (bool, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return strings.TrimSpace(string(raw)) == "1", nil
}

func (s SysfsToggle) SetEnabled(enable bool) (bool, error) {
	value := "0"
	if enable {
		value = "1"
	}
	// Kernel nodes cannot be replaced by rename, so write in place.
	if err := os.WriteFile(s.Path, []byte(value), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", s.Path, err)
	}
	return true, nil
}

// Intensity is the strength range of a vibrator. Warning is the level above
// which the UI cautions the user.
type Intensity struct {
	Current int `json:"current"`
	Default int `json:"default"`
	Min     int `json:"min"`
	Max     int `json:"max"`
	Warning int `json:"warning"`
}

// VibratorControl is a vibrator with adjustable strength.
type VibratorControl interface {
	Supported() bool
	Intensity() (Intensity, error)
	// SetIntensity reports whether the vibrator accepted the new strength.
	SetIntensity(level int) (bool, error)
}

// SysfsVibrator drives a vibrator whose strength is a kernel node holding a
// decimal level. The range is fixed by the device configuration.
type SysfsVibrator struct {
	Path    string
	Default int
	Min     int
	Max     int
	Warning int
}

func (s SysfsVibrator) Supported() bool {
	return SysfsToggle{Path: s.Path}.Supported()
}

func (s SysfsVibrator) Intensity() (Intensity, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Intensity{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	current, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return Intensity{}, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return Intensity{Current: current, Default: s.Default, Min: s.Min, Max: s.Max, Warning: s.Warning}, nil
}

func (s SysfsVibrator) SetIntensity(level int) (bool, error) {
	if err := os.WriteFile(s.Path, []byte(strconv.Itoa(level)), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", s.Path, err)
	}
	return true, nil
}

// Gesture is a touchscreen gesture detected while the screen is off. Keycode
// is the key event the gesture is reported as.
type Gesture struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Keycode int    `json:"keycode"`
}

// GestureControl enables and disables touchscreen gestures.
type GestureControl interface {
	Supported() bool
	Gestures() ([]Gesture, error)
	// SetGestureEnabled reports whether the gesture took the new state.
	SetGestureEnabled(id int, enable bool) (bool, error)
}

// SysfsGesture is a gesture switched by its own "0"/"1" node.
type SysfsGesture struct {
	Gesture
	Path string
}

// SysfsGestures drives gestures exposed as one kernel node each. Gestures
// whose node is missing are not offered.
type SysfsGestures []SysfsGesture

func (s SysfsGestures) Supported() bool {
	for _, g := range s {
		if (SysfsToggle{Path: g.Path}).Supported() {
			return true
		}
	}
	return false
}

func (s SysfsGestures) Gestures() ([]Gesture, error) {
	out := make([]Gesture, 0, len(s))
	for _, g := range s {
		if (SysfsToggle{Path: g.Path}).Supported() {
			out = append(out, g.Gesture)
		}
	}
	slices.SortFunc(out, func(a, b Gesture) int { return a.ID - b.ID })
	return out, nil
}

func (s SysfsGestures) SetGestureEnabled(id int, enable bool) (bool, error) {
	for _, g := range s {
		if g.ID == id {
			return SysfsToggle{Path: g.Path}.SetEnabled(enable)
		}
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownGesture, id)
}
