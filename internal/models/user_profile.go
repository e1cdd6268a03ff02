package models

import (
	"fmt"
	"time"
)

type UserProfile struct {
	ID                   string       `json:"id"`
	FullName             string       `json:"fullName"`
	Email                string       `json:"email,omitempty"`
	Instrument           Instrument   `json:"instrument,omitempty"`
	Level                Level        `json:"level,omitempty"`
	PracticeGoal         PracticeGoal `json:"practiceGoal,omitempty"`
	IsOnboardingComplete bool         `json:"isOnboardingComplete"`
	LineUserID           string       `json:"lineUserId,omitempty"`
	CreatedAt            string       `json:"createdAt"`
	UpdatedAt            string       `json:"updatedAt,omitempty"`
}

// ProfilePatch is a partial profile update. Nil fields keep the stored value.
type ProfilePatch struct {
	FullName             *string       `json:"fullName,omitempty"`
	Email                *string       `json:"email,omitempty"`
	Instrument           *Instrument   `json:"instrument,omitempty"`
	Level                *Level        `json:"level,omitempty"`
	PracticeGoal         *PracticeGoal `json:"practiceGoal,omitempty"`
	IsOnboardingComplete *bool         `json:"isOnboardingComplete,omitempty"`
	LineUserID           *string       `json:"lineUserId,omitempty"`
}

func (p ProfilePatch) Validate() error {
	if p.Instrument != nil && !p.Instrument.Valid() {
		return fmt.Errorf("%w: instrument %q", ErrInvalidValue, *p.Instrument)
	}
	if p.Level != nil && !p.Level.Valid() {
		return fmt.Errorf("%w: level %q", ErrInvalidValue, *p.Level)
	}
	if p.PracticeGoal != nil && !p.PracticeGoal.Valid() {
		return fmt.Errorf("%w: practice goal %d", ErrInvalidValue, *p.PracticeGoal)
	}
	return nil
}

// Apply merges the patch shallowly into the profile.
func (p ProfilePatch) Apply(profile *UserProfile, now time.Time) {
	if p.FullName != nil {
		profile.FullName = *p.FullName
	}
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.Instrument != nil {
		profile.Instrument = *p.Instrument
	}
	if p.Level != nil {
		profile.Level = *p.Level
	}
	if p.PracticeGoal != nil {
		profile.PracticeGoal = *p.PracticeGoal
	}
	if p.IsOnboardingComplete != nil {
		profile.IsOnboardingComplete = *p.IsOnboardingComplete
	}
	if p.LineUserID != nil {
		profile.LineUserID = *p.LineUserID
	}
	if profile.CreatedAt == "" {
		profile.CreatedAt = now.UTC().Format(time.RFC3339)
	}
	profile.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// Onboarding is the answer set collected by the onboarding wizard.
type Onboarding struct {
	FullName     string       `json:"fullName"`
	Email        string       `json:"email,omitempty"`
	Instrument   Instrument   `json:"instrument"`
	Level        Level        `json:"level"`
	PracticeGoal PracticeGoal `json:"practiceGoal"`
}

func (o Onboarding) Validate() error {
	if o.FullName == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidValue)
	}
	return o.Patch().Validate()
}

// Patch converts the completed wizard into a profile update.
func (o Onboarding) Patch() ProfilePatch {
	done := true
	p := ProfilePatch{
		FullName:             &o.FullName,
		Instrument:           &o.Instrument,
		Level:                &o.Level,
		PracticeGoal:         &o.PracticeGoal,
		IsOnboardingComplete: &done,
	}
	if o.Email != "" {
		p.Email = &o.Email
	}
	return p
}
