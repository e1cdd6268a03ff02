package models

import "fmt"

type UserSettings struct {
	Notifications bool     `json:"notifications"`
	Theme         Theme    `json:"theme"`
	Language      Language `json:"language"`
	ReminderTime  string   `json:"reminderTime,omitempty"` // "HH:MM"
	Timezone      string   `json:"timezone,omitempty"`
}

func DefaultUserSettings() UserSettings {
	return UserSettings{
		Notifications: true,
		Theme:         ThemeLight,
		Language:      LanguageTurkish,
	}
}

type SettingsPatch struct {
	Notifications *bool     `json:"notifications,omitempty"`
	Theme         *Theme    `json:"theme,omitempty"`
	Language      *Language `json:"language,omitempty"`
	ReminderTime  *string   `json:"reminderTime,omitempty"`
	Timezone      *string   `json:"timezone,omitempty"`
}

func (p SettingsPatch) Validate() error {
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidValue, *p.Theme)
	}
	if p.Language != nil && !p.Language.Valid() {
		return fmt.Errorf("%w: language %q", ErrInvalidValue, *p.Language)
	}
	return nil
}

func (p SettingsPatch) Apply(s *UserSettings) {
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.ReminderTime != nil {
		s.ReminderTime = *p.ReminderTime
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
}
