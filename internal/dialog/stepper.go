package dialog

import (
	"errors"
	"fmt"
	"music-tutor/internal/models"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoMatchingOption = errors.New("answer does not match any option")
	ErrUnknownOption    = errors.New("unknown option")
	ErrNoOptions        = errors.New("current step has no options")
	ErrAwaitingAnswer   = errors.New("current step is waiting for an answer")
	ErrScriptEnded      = errors.New("dialog script has ended")
)

// DefaultDelay applies to fixed-next steps that do not set their own delay.
const DefaultDelay = 1500 * time.Millisecond

type MatchMode int

const (
	// MatchExact compares the answer with option text or id after case,
	// diacritic, punctuation and whitespace folding.
	MatchExact MatchMode = iota
	// MatchContains picks the first option whose text occurs in the answer.
	MatchContains
)

// Stepper walks a script. It is safe for concurrent use.
type Stepper struct {
	mu      sync.Mutex
	script  *Script
	mode    MatchMode
	current models.DialogStep
	history []string
}

func NewStepper(script *Script, mode MatchMode) *Stepper {
	first := script.first()
	return &Stepper{
		script:  script,
		mode:    mode,
		current: first,
		history: []string{first.ID},
	}
}

func (s *Stepper) Script() *Script {
	return s.script
}

// Current returns the step being shown.
func (s *Stepper) Current() models.DialogStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History lists visited step ids in order.
func (s *Stepper) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// Done reports whether the current step is terminal.
func (s *Stepper) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return terminal(s.current)
}

// Choose follows an option of the current step by id.
func (s *Stepper) Choose(optionID string) (models.DialogStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectOptions(); err != nil {
		return s.current, err
	}
	for _, o := range s.current.Options {
		if o.ID == optionID {
			return s.moveTo(o.Next)
		}
	}
	return s.current, fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
}

// Answer matches free text against the current options. With MatchExact an
// unmatched answer returns ErrNoMatchingOption and the step does not change.
func (s *Stepper) Answer(text string) (models.DialogStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectOptions(); err != nil {
		return s.current, err
	}
	o, ok := match(s.current.Options, text, s.mode)
	if !ok {
		return s.current, ErrNoMatchingOption
	}
	return s.moveTo(o.Next)
}

// Advance follows the fixed next pointer of the current step.
func (s *Stepper) Advance() (models.DialogStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if terminal(s.current) {
		return s.current, ErrScriptEnded
	}
	if len(s.current.Options) > 0 {
		return s.current, ErrAwaitingAnswer
	}
	return s.moveTo(s.current.NextDialogID)
}

// AutoAdvance reports whether the current step moves on by itself and after
// how long.
func (s *Stepper) AutoAdvance() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.NextDialogID == "" {
		return 0, false
	}
	if s.current.DelayMs > 0 {
		return time.Duration(s.current.DelayMs) * time.Millisecond, true
	}
	return DefaultDelay, true
}

func (s *Stepper) expectOptions() error {
	if terminal(s.current) {
		return ErrScriptEnded
	}
	if len(s.current.Options) == 0 {
		return ErrNoOptions
	}
	return nil
}

func (s *Stepper) moveTo(id string) (models.DialogStep, error) {
	next, ok := s.script.Step(id)
	if !ok {
		return s.current, fmt.Errorf("step %q not found in script %q", id, s.script.ID)
	}
	s.current = next
	s.history = append(s.history, next.ID)
	return next, nil
}

func terminal(st models.DialogStep) bool {
	return len(st.Options) == 0 && st.NextDialogID == ""
}

func match(options []models.DialogOption, text string, mode MatchMode) (models.DialogOption, bool) {
	answer := Normalize(text)
	if answer == "" {
		return models.DialogOption{}, false
	}
	for _, o := range options {
		if answer == Normalize(o.Text) || answer == Normalize(o.ID) {
			return o, true
		}
	}
	if mode != MatchContains {
		return models.DialogOption{}, false
	}
	for _, o := range options {
		if strings.Contains(answer, Normalize(o.Text)) {
			return o, true
		}
	}
	return models.DialogOption{}, false
}

var dotless = runes.Map(func(r rune) rune {
	if r == 'ı' {
		return 'i'
	}
	return r
})

// Normalize lowercases with Turkish rules, strips diacritics and
// punctuation, and collapses whitespace. "  HAYIR, Yeni başlıyorum! "
// becomes "hayir yeni basliyorum".
func Normalize(s string) string {
	t := transform.Chain(
		cases.Lower(language.Turkish),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.In(unicode.P)),
		dotless,
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}
