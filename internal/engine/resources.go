package engine

// Resources are the device defaults seeded into a freshly created database.
type Resources struct {
	QSQuickPulldown                int    `mapstructure:"qs_quick_pulldown"`
	BatteryBrightnessLevel         int    `mapstructure:"battery_brightness_level"`
	BatteryBrightnessLevelZen      int    `mapstructure:"battery_brightness_level_zen"`
	NotificationBrightnessLevel    int    `mapstructure:"notification_brightness_level"`
	NotificationBrightnessLevelZen int    `mapstructure:"notification_brightness_level_zen"`
	NotificationPulseCustomEnable  bool   `mapstructure:"notification_pulse_custom_enable"`
	NotificationPulseCustomValue   string `mapstructure:"notification_pulse_custom_value"`
	BatteryStyle                   int    `mapstructure:"battery_style"`
	LockscreenRotation             bool   `mapstructure:"lockscreen_rotation"`
	ForceShowNavbar                int    `mapstructure:"force_show_navbar"`
	LockscreenVisualizer           bool   `mapstructure:"lockscreen_visualizer"`
	LockscreenMediaMetadata        bool   `mapstructure:"lockscreen_media_metadata"`
	VolumePanelOnLeft              bool   `mapstructure:"volume_panel_on_left"`
	FingerprintWakeAndUnlock       bool   `mapstructure:"fingerprint_wake_and_unlock"`
}

// DefaultResources returns the stock device defaults.
func DefaultResources() Resources {
	return Resources{
		QSQuickPulldown:                0,
		BatteryBrightnessLevel:         255,
		BatteryBrightnessLevelZen:      255,
		NotificationBrightnessLevel:    255,
		NotificationBrightnessLevelZen: 255,
		NotificationPulseCustomEnable:  false,
		BatteryStyle:                   0,
		LockscreenRotation:             false,
		ForceShowNavbar:                0,
		LockscreenVisualizer:           true,
		LockscreenMediaMetadata:        true,
		VolumePanelOnLeft:              false,
		FingerprintWakeAndUnlock:       true,
	}
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
