package models

type Lesson struct {
	ID            string        `json:"id" yaml:"id"`
	Title         string        `json:"title" yaml:"title"`
	Instrument    Instrument    `json:"instrument" yaml:"instrument"`
	Level         Level         `json:"level" yaml:"level"`
	Duration      int           `json:"duration" yaml:"duration"` // minutes
	Topics        []string      `json:"topics" yaml:"topics"`
	Objectives    []string      `json:"objectives" yaml:"objectives"`
	Prerequisites []string      `json:"prerequisites,omitempty" yaml:"prerequisites"`
	PracticeGoals PracticeGoals `json:"practiceGoals" yaml:"practice_goals"`
}

type PracticeGoals struct {
	Minimum     int `json:"minimum" yaml:"minimum"`
	Recommended int `json:"recommended" yaml:"recommended"`
}

type Teacher struct {
	ID              string      `json:"id" yaml:"id"`
	Name            string      `json:"name" yaml:"name"`
	Gender          Gender      `json:"gender" yaml:"gender"`
	Instrument      Instrument  `json:"instrument" yaml:"instrument"`
	Language        string      `json:"language" yaml:"language"`
	Locale          string      `json:"locale" yaml:"locale"`
	Avatar          string      `json:"avatar" yaml:"avatar"`
	BackgroundColor string      `json:"backgroundColor" yaml:"background_color"`
	Personality     Personality `json:"personality" yaml:"personality"`
	Expertise       []string    `json:"expertise" yaml:"expertise"`
	Introduction    string      `json:"introduction" yaml:"introduction"`
}

type Personality struct {
	TeachingStyle string `json:"teachingStyle" yaml:"teaching_style"`
	Communication string `json:"communication" yaml:"communication"`
	Motivation    string `json:"motivation" yaml:"motivation"`
}
