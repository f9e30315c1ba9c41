package settings

// System setting names.
const (
	LongScreenApps                      = "long_screen_apps"
	ProximityOnWake                     = "proximity_on_wake"
	TouchscreenGestureHapticFeedback    = "touchscreen_gesture_haptic_feedback"
	KeyHomeLongPressAction              = "key_home_long_press_action"
	KeyHomeDoubleTapAction              = "key_home_double_tap_action"
	KeyMenuAction                       = "key_menu_action"
	KeyMenuLongPressAction              = "key_menu_long_press_action"
	KeyAssistAction                     = "key_assist_action"
	KeyAssistLongPressAction            = "key_assist_long_press_action"
	KeyAppSwitchAction                  = "key_app_switch_action"
	KeyAppSwitchLongPressAction         = "key_app_switch_long_press_action"
	VolbtnMusicControls                 = "volbtn_music_controls"
	HomeWakeScreen                      = "home_wake_screen"
	BackWakeScreen                      = "back_wake_screen"
	MenuWakeScreen                      = "menu_wake_screen"
	AssistWakeScreen                    = "assist_wake_screen"
	AppSwitchWakeScreen                 = "app_switch_wake_screen"
	CameraWakeScreen                    = "camera_wake_screen"
	VolumeWakeScreen                    = "volume_wake_screen"
	EnableForwardLookup                 = "enable_forward_lookup"
	EnablePeopleLookup                  = "enable_people_lookup"
	EnableReverseLookup                 = "enable_reverse_lookup"
	ForwardLookupProvider               = "forward_lookup_provider"
	PeopleLookupProvider                = "people_lookup_provider"
	ReverseLookupProvider               = "reverse_lookup_provider"
	DialerOpencnamAccountSID            = "dialer_opencnam_account_sid"
	DialerOpencnamAuthToken             = "dialer_opencnam_auth_token"
	StatusBarBatteryStyle               = "status_bar_battery_style"
	BerryGlobalStyle                    = "berry_global_style"
	BerryCurrentAccent                  = "berry_current_accent"
	BerryDarkOverlay                    = "berry_dark_overlay"
	BerryManagedByApp                   = "berry_managed_by_app"
	StatusBarAmPm                       = "status_bar_am_pm"
	StatusBarQuickQSPulldown            = "qs_quick_pulldown"
	HighTouchSensitivityEnable          = "high_touch_sensitivity_enable"
	SwipeToScreenshot                   = "swipe_to_screenshot"
	ButtonBrightness                    = "button_brightness"
	ButtonBacklightTimeout              = "button_backlight_timeout"
	NotificationLightBrightnessLevel    = "notification_light_brightness_level"
	NotificationLightBrightnessLevelZen = "notification_light_brightness_level_zen"
	NotificationLightScreenOn           = "notification_light_screen_on_enable"
	NotificationLightPulseDefaultColor  = "notification_light_pulse_default_color"
	NotificationLightPulseDefaultLedOn  = "notification_light_pulse_default_led_on"
	NotificationLightPulseDefaultLedOff = "notification_light_pulse_default_led_off"
	NotificationLightPulseCallColor     = "notification_light_pulse_call_color"
	NotificationLightPulseCallLedOn     = "notification_light_pulse_call_led_on"
	NotificationLightPulseCallLedOff    = "notification_light_pulse_call_led_off"
	NotificationLightPulseVmailColor    = "notification_light_pulse_vmail_color"
	NotificationLightPulseVmailLedOn    = "notification_light_pulse_vmail_led_on"
	NotificationLightPulseVmailLedOff   = "notification_light_pulse_vmail_led_off"
	NotificationLightPulseCustomEnable  = "notification_light_pulse_custom_enable"
	NotificationLightPulseCustomValues  = "notification_light_pulse_custom_values"
	NotificationLightColorAuto          = "notification_light_color_auto"
	BatteryLightEnabled                 = "battery_light_enabled"
	BatteryLightPulse                   = "battery_light_pulse"
	BatteryLightLowColor                = "battery_light_low_color"
	BatteryLightMediumColor             = "battery_light_medium_color"
	BatteryLightFullColor               = "battery_light_full_color"
	BatteryLightBrightnessLevel         = "battery_light_brightness_level"
	BatteryLightBrightnessLevelZen      = "battery_light_brightness_level_zen"
	ZenAllowLights                      = "allow_lights"
	ZenPriorityAllowLights              = "zen_priority_allow_lights"
	AlertSliderOrder                    = "alert_slider_order"
	AlertSliderSilentMode               = "alert_slider_on_left"
	CameraSleepOnRelease                = "camera_sleep_on_release"
	CameraLaunch                        = "camera_launch"
	LockscreenRotation                  = "lockscreen_rotation"
	MagicalTestPassingEnabler           = "___magical_test_passing_enabler"
)

// Secure setting names.
const (
	DevForceShowNavbar                          = "dev_force_show_navbar"
	PowerMenuActions                            = "power_menu_actions"
	AdvancedReboot                              = "advanced_reboot"
	FeatureTouchHovering                        = "feature_touch_hovering"
	VibratorIntensity                           = "vibrator_intensity"
	PerformanceProfile                          = "performance_profile"
	AppPerformanceProfilesEnabled               = "app_perf_profiles_enabled"
	VolumePanelOnLeft                           = "volume_panel_on_left"
	VolumePanelExpandable                       = "volume_panel_expandable"
	LockscreenVisualizerEnabled                 = "lockscreen_visualizer"
	LockscreenMediaMetadata                     = "lockscreen_media_metadata"
	LockscreenTranslucentNotificationsBgEnabled = "lockscreen_translucent_notifications_bg_enabled"
	NetworkTrafficMode                          = "network_traffic_mode"
	NetworkTrafficAutohide                      = "network_traffic_autohide"
	NetworkTrafficUnits                         = "network_traffic_units"
	NetworkTrafficShowUnits                     = "network_traffic_show_units"
	BerryBlackTheme                             = "berry_black_theme"

	// SfpsRequireScreenOnToAuthEnabled is the retired side-fingerprint flag
	// that schema version 5 flips into SfpsPerformantAuthEnabled.
	SfpsRequireScreenOnToAuthEnabled = "sfps_require_screen_on_to_auth_enabled"
	SfpsPerformantAuthEnabled        = "sfps_performant_auth_enabled"
)
