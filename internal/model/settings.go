package model

const (
	SettingLogo       = "logo"
	SettingZone       = "zone"
	SettingLateTime   = "lateTime"
	SettingSheetURL   = "sheetUrl"
	SettingWebhookURL = "webhookUrl"
)

// Settings is the app configuration document. It is a plain field map because the
// remote document may carry keys this build does not know about, and merges are per key.
type Settings map[string]any

func DefaultSettings() Settings {
	return Settings{
		SettingLogo:       nil,
		SettingZone:       nil,
		SettingLateTime:   "",
		SettingSheetURL:   "",
		SettingWebhookURL: "",
	}
}

// Merge returns a copy of s with every key of incoming overwriting the existing value.
func (s Settings) Merge(incoming map[string]any) Settings {
	out := s.Clone()
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s Settings) String(key string) string { return asString(s[key]) }

func (s Settings) Logo() string       { return s.String(SettingLogo) }
func (s Settings) LateTime() string   { return s.String(SettingLateTime) }
func (s Settings) SheetURL() string   { return s.String(SettingSheetURL) }
func (s Settings) WebhookURL() string { return s.String(SettingWebhookURL) }

func (s Settings) Zone() any { return s[SettingZone] }
