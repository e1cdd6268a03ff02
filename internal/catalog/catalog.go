// Package catalog holds the static lesson catalog and teacher personas.
// The data is embedded and read-only at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"music-tutor/internal/models"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed data/lessons.yaml
var lessonsYAML []byte

//go:embed data/teachers.yaml
var teachersYAML []byte

type Catalog struct {
	lessons  []models.Lesson
	byID     map[string]models.Lesson
	teachers []models.Teacher
}

type lessonFile struct {
	Lessons []models.Lesson `yaml:"lessons"`
}

type teacherFile struct {
	Teachers []models.Teacher `yaml:"teachers"`
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(lessonsYAML, teachersYAML)
})

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Parse builds a catalog from YAML documents and validates it.
func Parse(lessonsDoc, teachersDoc []byte) (*Catalog, error) {
	var lf lessonFile
	if err := yaml.Unmarshal(lessonsDoc, &lf); err != nil {
		return nil, fmt.Errorf("error parsing lessons yaml: %w", err)
	}
	var tf teacherFile
	if err := yaml.Unmarshal(teachersDoc, &tf); err != nil {
		return nil, fmt.Errorf("error parsing teachers yaml: %w", err)
	}

	c := &Catalog{
		lessons:  lf.Lessons,
		byID:     make(map[string]models.Lesson, len(lf.Lessons)),
		teachers: tf.Teachers,
	}
	for _, l := range lf.Lessons {
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		if !l.Instrument.Valid() {
			return nil, fmt.Errorf("lesson %q: %w: instrument %q", l.ID, models.ErrInvalidValue, l.Instrument)
		}
		if !l.Level.Valid() {
			return nil, fmt.Errorf("lesson %q: %w: level %q", l.ID, models.ErrInvalidValue, l.Level)
		}
		c.byID[l.ID] = l
	}
	for _, l := range lf.Lessons {
		for _, pre := range l.Prerequisites {
			if _, ok := c.byID[pre]; !ok {
				return nil, fmt.Errorf("lesson %q: prerequisite %q: %w", l.ID, pre, models.ErrUnknownLesson)
			}
		}
	}
	for _, t := range tf.Teachers {
		if !t.Instrument.Valid() {
			return nil, fmt.Errorf("teacher %q: %w: instrument %q", t.ID, models.ErrInvalidValue, t.Instrument)
		}
		if t.Gender != models.GenderMale && t.Gender != models.GenderFemale {
			return nil, fmt.Errorf("teacher %q: %w: gender %q", t.ID, models.ErrInvalidValue, t.Gender)
		}
	}
	return c, nil
}

func (c *Catalog) HasLesson(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Lesson(id string) (models.Lesson, error) {
	l, ok := c.byID[id]
	if !ok {
		return models.Lesson{}, fmt.Errorf("%w: %s", models.ErrUnknownLesson, id)
	}
	return l, nil
}

// Lessons filters by instrument and level; empty values match everything.
func (c *Catalog) Lessons(instrument models.Instrument, level models.Level) []models.Lesson {
	var out []models.Lesson
	for _, l := range c.lessons {
		if instrument != "" && l.Instrument != instrument {
			continue
		}
		if level != "" && l.Level != level {
			continue
		}
		out = append(out, l)
	}
	return out
}

// NextLesson returns the first incomplete lesson whose prerequisites are all completed.
func (c *Catalog) NextLesson(instrument models.Instrument, level models.Level, completed []string) (models.Lesson, bool) {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	for _, l := range c.Lessons(instrument, level) {
		if done[l.ID] {
			continue
		}
		ready := true
		for _, pre := range l.Prerequisites {
			if !done[pre] {
				ready = false
				break
			}
		}
		if ready {
			return l, true
		}
	}
	return models.Lesson{}, false
}

// Teachers returns the personas for an instrument; an empty instrument returns all.
func (c *Catalog) Teachers(instrument models.Instrument) []models.Teacher {
	var out []models.Teacher
	for _, t := range c.teachers {
		if instrument == "" || t.Instrument == instrument {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) Teacher(id string) (models.Teacher, bool) {
	for _, t := range c.teachers {
		if t.ID == id {
			return t, true
		}
	}
	return models.Teacher{}, false
}

// TeacherByGender picks the first persona of the gender, preferring the instrument.
func (c *Catalog) TeacherByGender(instrument models.Instrument, gender models.Gender) (models.Teacher, bool) {
	var fallback *models.Teacher
	for i, t := range c.teachers {
		if t.Gender != gender {
			continue
		}
		if t.Instrument == instrument {
			return t, true
		}
		if fallback == nil {
			fallback = &c.teachers[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return models.Teacher{}, false
}
