package models

import (
	"fmt"
	"strings"
)

type Instrument string

const (
	InstrumentGuitar Instrument = "gitar"
	InstrumentPiano  Instrument = "piyano"
	InstrumentDrums  Instrument = "bateri"
)

var Instruments = []Instrument{InstrumentGuitar, InstrumentPiano, InstrumentDrums}

// ParseInstrument accepts the stored values and their English aliases.
func ParseInstrument(s string) (Instrument, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gitar", "guitar":
		return InstrumentGuitar, nil
	case "piyano", "piano":
		return InstrumentPiano, nil
	case "bateri", "drum", "drums":
		return InstrumentDrums, nil
	}
	return "", fmt.Errorf("%w: instrument %q", ErrInvalidValue, s)
}

func (i Instrument) Valid() bool {
	for _, v := range Instruments {
		if i == v {
			return true
		}
	}
	return false
}

// DisplayName is the Turkish name used in prompts and greetings.
func (i Instrument) DisplayName() string {
	switch i {
	case InstrumentGuitar:
		return "gitar"
	case InstrumentPiano:
		return "piyano"
	case InstrumentDrums:
		return "bateri"
	}
	return string(i)
}

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: level %q", ErrInvalidValue, s)
	}
	return l, nil
}

func (l Level) Valid() bool {
	return l == LevelBeginner || l == LevelIntermediate || l == LevelAdvanced
}

// PracticeGoal is the daily practice goal in minutes.
type PracticeGoal int

const (
	PracticeGoal10 PracticeGoal = 10
	PracticeGoal20 PracticeGoal = 20
	PracticeGoal30 PracticeGoal = 30
)

func (g PracticeGoal) Valid() bool {
	return g == PracticeGoal10 || g == PracticeGoal20 || g == PracticeGoal30
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool { return t == ThemeLight || t == ThemeDark }

type Language string

const (
	LanguageTurkish Language = "tr"
	LanguageEnglish Language = "en"
)

func (l Language) Valid() bool { return l == LanguageTurkish || l == LanguageEnglish }

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if g != GenderMale && g != GenderFemale {
		return "", fmt.Errorf("%w: gender %q", ErrInvalidValue, s)
	}
	return g, nil
}
