package settings

import (
	"maps"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/evervolv/evsettings/pkg/schema"
	"github.com/evervolv/evsettings/pkg/validator"
)

// Legacy names are kept for migration bookkeeping only.
var (
	LegacySystem = mapset.NewSet(
		ProximityOnWake,
		TouchscreenGestureHapticFeedback,
		KeyHomeLongPressAction,
		KeyHomeDoubleTapAction,
		KeyMenuAction,
		KeyMenuLongPressAction,
		KeyAssistAction,
		KeyAssistLongPressAction,
		KeyAppSwitchAction,
		KeyAppSwitchLongPressAction,
		VolbtnMusicControls,
		HomeWakeScreen,
		BackWakeScreen,
		MenuWakeScreen,
		AssistWakeScreen,
		AppSwitchWakeScreen,
		CameraWakeScreen,
		VolumeWakeScreen,
		EnableForwardLookup,
		EnablePeopleLookup,
		EnableReverseLookup,
		ForwardLookupProvider,
		PeopleLookupProvider,
		ReverseLookupProvider,
		DialerOpencnamAccountSID,
		DialerOpencnamAuthToken,
		StatusBarAmPm,
		StatusBarQuickQSPulldown,
	)
	LegacySecure = mapset.NewSet(
		DevForceShowNavbar,
		PowerMenuActions,
		AdvancedReboot,
	)
	LegacyGlobal = mapset.NewSet[string]()
)

// movedTo records names that moved out of a namespace. Reads on the source
// namespace are served by the destination; writes on the source are refused.
var movedTo = map[schema.Namespace]map[string]schema.Namespace{
	schema.System: {
		BerryBlackTheme: schema.Secure,
	},
	schema.Secure: {},
	schema.Global: {},
}

var systemValidators = map[string]validator.Validator{
	LongScreenApps:                      validator.AlwaysTrue,
	ProximityOnWake:                     validator.Boolean,
	TouchscreenGestureHapticFeedback:    validator.Boolean,
	KeyHomeLongPressAction:              validator.Action,
	KeyHomeDoubleTapAction:              validator.Action,
	KeyMenuAction:                       validator.Action,
	KeyMenuLongPressAction:              validator.Action,
	KeyAssistAction:                     validator.Action,
	KeyAssistLongPressAction:            validator.Action,
	KeyAppSwitchAction:                  validator.Action,
	KeyAppSwitchLongPressAction:         validator.Action,
	VolbtnMusicControls:                 validator.Boolean,
	HomeWakeScreen:                      validator.Boolean,
	BackWakeScreen:                      validator.Boolean,
	MenuWakeScreen:                      validator.Boolean,
	AssistWakeScreen:                    validator.Boolean,
	AppSwitchWakeScreen:                 validator.Boolean,
	CameraWakeScreen:                    validator.Boolean,
	VolumeWakeScreen:                    validator.Boolean,
	EnableForwardLookup:                 validator.Boolean,
	EnablePeopleLookup:                  validator.Boolean,
	EnableReverseLookup:                 validator.Boolean,
	ForwardLookupProvider:               validator.AlwaysTrue,
	PeopleLookupProvider:                validator.AlwaysTrue,
	ReverseLookupProvider:               validator.AlwaysTrue,
	DialerOpencnamAccountSID:            validator.AlwaysTrue,
	DialerOpencnamAuthToken:             validator.AlwaysTrue,
	StatusBarBatteryStyle:               validator.IntRange(0, 6),
	BerryGlobalStyle:                    validator.IntRange(0, 3),
	BerryCurrentAccent:                  validator.NonNull,
	BerryDarkOverlay:                    validator.NonNull,
	BerryManagedByApp:                   validator.NonNull,
	StatusBarAmPm:                       validator.IntRange(0, 2),
	StatusBarQuickQSPulldown:            validator.IntRange(0, 2),
	HighTouchSensitivityEnable:          validator.Boolean,
	SwipeToScreenshot:                   validator.Boolean,
	ButtonBrightness:                    validator.IntRange(1, 255),
	ButtonBacklightTimeout:              validator.NonNegativeInt,
	NotificationLightBrightnessLevel:    validator.IntRange(1, 255),
	NotificationLightBrightnessLevelZen: validator.IntRange(1, 255),
	NotificationLightScreenOn:           validator.Boolean,
	NotificationLightPulseDefaultColor:  validator.Color,
	NotificationLightPulseDefaultLedOn:  validator.NonNegativeInt,
	NotificationLightPulseDefaultLedOff: validator.NonNegativeInt,
	NotificationLightPulseCallColor:     validator.Color,
	NotificationLightPulseCallLedOn:     validator.NonNegativeInt,
	NotificationLightPulseCallLedOff:    validator.NonNegativeInt,
	NotificationLightPulseVmailColor:    validator.Color,
	NotificationLightPulseVmailLedOn:    validator.NonNegativeInt,
	NotificationLightPulseVmailLedOff:   validator.NonNegativeInt,
	NotificationLightPulseCustomEnable:  validator.Boolean,
	NotificationLightPulseCustomValues:  validator.PulseCustomValues,
	NotificationLightColorAuto:          validator.Boolean,
	BatteryLightEnabled:                 validator.Boolean,
	BatteryLightPulse:                   validator.Boolean,
	BatteryLightLowColor:                validator.Color,
	BatteryLightMediumColor:             validator.Color,
	BatteryLightFullColor:               validator.Color,
	BatteryLightBrightnessLevel:         validator.IntRange(1, 255),
	BatteryLightBrightnessLevelZen:      validator.IntRange(1, 255),
	ZenAllowLights:                      validator.Boolean,
	ZenPriorityAllowLights:              validator.Boolean,
	AlertSliderOrder:                    validator.Boolean,
	AlertSliderSilentMode:               validator.Boolean,
	CameraSleepOnRelease:                validator.Boolean,
	CameraLaunch:                        validator.Boolean,
	LockscreenRotation:                  validator.Boolean,
	MagicalTestPassingEnabler:           validator.AlwaysTrue,
}

var secureValidators = map[string]validator.Validator{
	DevForceShowNavbar:                          validator.Boolean,
	AdvancedReboot:                              validator.Boolean,
	PowerMenuActions:                            validator.AlwaysTrue,
	FeatureTouchHovering:                        validator.Boolean,
	VibratorIntensity:                           validator.NonNull,
	VolumePanelOnLeft:                           validator.Boolean,
	VolumePanelExpandable:                       validator.Boolean,
	LockscreenVisualizerEnabled:                 validator.Boolean,
	LockscreenTranslucentNotificationsBgEnabled: validator.Boolean,
	LockscreenMediaMetadata:                     validator.Boolean,
	NetworkTrafficMode:                          validator.IntRange(0, 3),
	NetworkTrafficAutohide:                      validator.Boolean,
	NetworkTrafficUnits:                         validator.IntRange(0, 3),
	NetworkTrafficShowUnits:                     validator.Boolean,
	BerryBlackTheme:                             validator.Boolean,
	MagicalTestPassingEnabler:                   validator.AlwaysTrue,
}

var globalValidators = map[string]validator.Validator{
	MagicalTestPassingEnabler: validator.AlwaysTrue,
}

func validatorsFor(ns schema.Namespace) map[string]validator.Validator {
	switch ns {
	case schema.System:
		return systemValidators
	case schema.Secure:
		return secureValidators
	case schema.Global:
		return globalValidators
	}
	return nil
}

// Validators returns a copy of the name -> validator map of a namespace.
// The map is meant for external tooling; writes never consult it.
func Validators(ns schema.Namespace) map[string]validator.Validator {
	return maps.Clone(validatorsFor(ns))
}

// Validate checks value against the validator registered for name.
// known is false when the namespace has no validator for name.
func Validate(ns schema.Namespace, name, value string) (known, ok bool) {
	v, found := validatorsFor(ns)[name]
	if !found {
		return false, false
	}
	return true, v.Validate(value)
}

// IsLegacy reports whether name is on the legacy list of ns.
func IsLegacy(ns schema.Namespace, name string) bool {
	switch ns {
	case schema.System:
		return LegacySystem.Contains(name)
	case schema.Secure:
		return LegacySecure.Contains(name)
	case schema.Global:
		return LegacyGlobal.Contains(name)
	}
	return false
}

// MovedTo reports the namespace name now lives in, if it moved out of ns.
func MovedTo(ns schema.Namespace, name string) (schema.Namespace, bool) {
	dst, ok := movedTo[ns][name]
	return dst, ok
}
