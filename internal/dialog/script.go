// Package dialog runs the scripted part of a lesson: a graph of teacher
// steps, some with answer options and some that advance on their own.
package dialog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"music-tutor/internal/models"

	"gopkg.in/yaml.v2"
)

//go:embed scripts/*.yaml
var scriptFS embed.FS

var ErrNoScript = errors.New("no dialog script for instrument")

// Script is a validated dialog graph. The first step is the entry point.
type Script struct {
	ID         string              `yaml:"id"`
	Title      string              `yaml:"title"`
	Instrument models.Instrument   `yaml:"instrument"`
	Level      models.Level        `yaml:"level"`
	LessonID   string              `yaml:"lesson_id"`
	Steps      []models.DialogStep `yaml:"steps"`

	byID map[string]int
}

// Load returns the embedded script for an instrument and level, falling back
// to the beginner script when the level has none.
func Load(instrument models.Instrument, level models.Level) (*Script, error) {
	for _, lv := range []models.Level{level, models.LevelBeginner} {
		doc, err := scriptFS.ReadFile(fmt.Sprintf("scripts/%s_%s.yaml", instrument, lv))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dialog script: %w", err)
		}
		return Parse(doc)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoScript, instrument)
}

// Parse decodes and validates a script document.
func Parse(doc []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("error parsing dialog script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the graph and builds the step index.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script %q has no steps", s.ID)
	}
	idx := make(map[string]int, len(s.Steps))
	for i, st := range s.Steps {
		if st.ID == "" {
			return fmt.Errorf("script %q: step %d has no id", s.ID, i)
		}
		if _, dup := idx[st.ID]; dup {
			return fmt.Errorf("script %q: duplicate step id %q", s.ID, st.ID)
		}
		if !st.Type.Valid() {
			return fmt.Errorf("script %q: step %q: unknown type %q", s.ID, st.ID, st.Type)
		}
		if len(st.Options) > 0 && st.NextDialogID != "" {
			return fmt.Errorf("script %q: step %q has both options and next", s.ID, st.ID)
		}
		if st.DelayMs < 0 {
			return fmt.Errorf("script %q: step %q: negative delay", s.ID, st.ID)
		}
		idx[st.ID] = i
	}
	for _, st := range s.Steps {
		if st.NextDialogID != "" {
			if _, ok := idx[st.NextDialogID]; !ok {
				return fmt.Errorf("script %q: step %q: next %q does not exist", s.ID, st.ID, st.NextDialogID)
			}
		}
		seen := make(map[string]bool, len(st.Options))
		for _, o := range st.Options {
			if o.ID == "" || o.Text == "" {
				return fmt.Errorf("script %q: step %q: option needs id and text", s.ID, st.ID)
			}
			if seen[o.ID] {
				return fmt.Errorf("script %q: step %q: duplicate option %q", s.ID, st.ID, o.ID)
			}
			seen[o.ID] = true
			if _, ok := idx[o.Next]; !ok {
				return fmt.Errorf("script %q: step %q: option %q points to missing step %q", s.ID, st.ID, o.ID, o.Next)
			}
		}
	}
	s.byID = idx
	return nil
}

// Step looks a step up by id.
func (s *Script) Step(id string) (models.DialogStep, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.DialogStep{}, false
	}
	return s.Steps[i], true
}

func (s *Script) first() models.DialogStep {
	return s.Steps[0]
}
