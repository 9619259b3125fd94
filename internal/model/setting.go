package model

import "time"

// Setting keys accepted by the settings endpoints.  Keys ending in _logo or
// _favicon hold a public path to an uploaded file.
const (
	SettingAppName       = "app_name"
	SettingPrimaryColor  = "primary_color"
	SettingAppLogo       = "app_logo"
	SettingLoginLogo     = "login_logo"
	SettingAppFavicon    = "app_favicon"
	SettingAppLogoDark   = "app_logo_dark"
	SettingLoginLogoDark = "login_logo_dark"
)

// TextSettings lists the keys that are set from plain form values.
var TextSettings = []string{SettingAppName, SettingPrimaryColor}

// FileSettings lists the keys that are set from uploaded files.
var FileSettings = []string{
	SettingAppLogo,
	SettingLoginLogo,
	SettingAppFavicon,
	SettingAppLogoDark,
	SettingLoginLogoDark,
}

// DefaultSettings are returned for keys that have never been stored.
var DefaultSettings = map[string]string{
	SettingAppName:      "Reservas",
	SettingPrimaryColor: "#2563eb",
}

// Setting is a row of the `settings` key/value table.
type Setting struct {
	Key       string    // settings.setting_key
	Value     string    // settings.setting_value
	UpdatedAt time.Time // settings.updated_at
}
