package models

type DialogType string

const (
	DialogGreeting    DialogType = "greeting"
	DialogAssessment  DialogType = "assessment"
	DialogInstruction DialogType = "instruction"
	DialogFeedback    DialogType = "feedback"
	DialogQuestion    DialogType = "question"
)

func (t DialogType) Valid() bool {
	switch t {
	case DialogGreeting, DialogAssessment, DialogInstruction, DialogFeedback, DialogQuestion:
		return true
	}
	return false
}

// Step actions understood by the lesson runner.
const (
	ActionShowPosture    = "show_posture"
	ActionCompleteLesson = "complete_lesson"
)

// DialogStep is one node of a scripted lesson conversation.
type DialogStep struct {
	ID           string         `json:"id" yaml:"id"`
	TeacherID    string         `json:"teacherId,omitempty" yaml:"teacher_id"`
	Type         DialogType     `json:"type" yaml:"type"`
	Content      string         `json:"content" yaml:"content"`
	Action       string         `json:"action,omitempty" yaml:"action"`
	Options      []DialogOption `json:"options,omitempty" yaml:"options"`
	NextDialogID string         `json:"nextDialogId,omitempty" yaml:"next"`
	DelayMs      int            `json:"delayMs,omitempty" yaml:"delay_ms"`
}

type DialogOption struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
	Next string `json:"next" yaml:"next"`
}
