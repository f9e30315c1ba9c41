// Package hardware exposes vendor hardware toggles such as key disabling or
// glove mode as a feature bitmask with simple boolean controls.
package hardware

import (
	"errors"
	"fmt"
	"strings"
)

// Feature is one hardware capability. Values are bits of the supported mask.
type Feature int

const (
	Vibrator             Feature = 0x1
	KeyDisable           Feature = 0x2
	TouchscreenGestures  Feature = 0x4
	HighTouchSensitivity Feature = 0x8
	TouchHovering        Feature = 0x10
	KeySwap              Feature = 0x20
	HighTouchPollingRate Feature = 0x40
)

var (
	// ErrNotBoolean is returned when Get or Set is used on a feature without a
	// simple on/off control.
	ErrNotBoolean = errors.New("feature is not a boolean")
	// ErrIntensityRange is returned for a vibrator level outside [Min, Max].
	ErrIntensityRange = errors.New("vibrator intensity out of range")
	// ErrUnknownGesture is returned for a gesture id the device does not offer.
	ErrUnknownGesture = errors.New("unknown touchscreen gesture")
)

// Features lists every known feature.
var Features = []Feature{
	Vibrator,
	KeyDisable,
	TouchscreenGestures,
	HighTouchSensitivity,
	TouchHovering,
	KeySwap,
	HighTouchPollingRate,
}

var featureNames = map[Feature]string{
	Vibrator:             "FEATURE_VIBRATOR",
	KeyDisable:           "FEATURE_KEY_DISABLE",
	TouchscreenGestures:  "FEATURE_TOUCHSCREEN_GESTURES",
	HighTouchSensitivity: "FEATURE_HIGH_TOUCH_SENSITIVITY",
	TouchHovering:        "FEATURE_TOUCH_HOVERING",
	KeySwap:              "FEATURE_KEY_SWAP",
	HighTouchPollingRate: "FEATURE_HIGH_TOUCH_POLLING_RATE",
}

var booleanFeatures = map[Feature]bool{
	KeyDisable:           true,
	HighTouchSensitivity: true,
	TouchHovering:        true,
	KeySwap:              true,
	HighTouchPollingRate: true,
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FEATURE_0x%x", int(f))
}

// IsBoolean reports whether f has a simple enable/disable control.
func (f Feature) IsBoolean() bool { return booleanFeatures[f] }

// ParseFeature resolves a "FEATURE_*" name as used by preference constraints.
func ParseFeature(name string) (Feature, bool) {
	if !strings.HasPrefix(name, "FEATURE_") {
		return 0, false
	}
	for f, n := range featureNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// Has reports whether every bit of f is set in mask.
func Has(mask int, f Feature) bool {
	return mask&int(f) == int(f)
}
