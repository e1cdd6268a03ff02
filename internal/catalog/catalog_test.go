package catalog

import (
	"errors"
	"music-tutor/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Lessons("", ""), 9)
	assert.Len(t, c.Lessons(models.InstrumentPiano, models.LevelBeginner), 3)
	assert.True(t, c.HasLesson("bateri-102"))
	assert.False(t, c.HasLesson("violin-101"))

	l, err := c.Lesson("gitar-102")
	require.NoError(t, err)
	assert.Equal(t, []string{"gitar-101"}, l.Prerequisites)
	assert.Equal(t, 45, l.PracticeGoals.Recommended)

	_, err = c.Lesson("nope")
	assert.True(t, errors.Is(err, models.ErrUnknownLesson))
}

func TestNextLesson(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	next, ok := c.NextLesson(models.InstrumentGuitar, models.LevelBeginner, nil)
	require.True(t, ok)
	assert.Equal(t, "gitar-101", next.ID)

	next, ok = c.NextLesson(models.InstrumentGuitar, models.LevelBeginner, []string{"gitar-101"})
	require.True(t, ok)
	assert.Equal(t, "gitar-102", next.ID)

	_, ok = c.NextLesson(models.InstrumentGuitar, models.LevelBeginner, []string{"gitar-101", "gitar-102", "gitar-103"})
	assert.False(t, ok)
}

func TestTeachers(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Teachers(models.InstrumentGuitar), 2)
	assert.Empty(t, c.Teachers(models.InstrumentDrums))

	teacher, ok := c.TeacherByGender(models.InstrumentPiano, models.GenderMale)
	require.True(t, ok)
	assert.Equal(t, "Ahmet", teacher.Name)
}

func TestParseRejectsDanglingPrerequisite(t *testing.T) {
	lessons := []byte(`
lessons:
  - id: a
    instrument: gitar
    level: beginner
    prerequisites: [missing]
`)
	_, err := Parse(lessons, []byte("teachers: []"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownLesson))
}

func TestParseRejectsUnknownInstrument(t *testing.T) {
	lessons := []byte(`
lessons:
  - id: a
    instrument: ukulele
    level: beginner
`)
	_, err := Parse(lessons, []byte("teachers: []"))
	assert.True(t, errors.Is(err, models.ErrInvalidValue))
}
