package utils

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"music-tutor/internal/metrics"
	"music-tutor/internal/models"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v2"
)

//go:embed prompt/music_teacher.yaml
var musicTeacherYAML []byte

//go:embed prompt/practice_feedback.yaml
var practiceFeedbackYAML []byte

const (
	completionTemperature = 0.7
	completionMaxTokens   = 150
	transcriptionLanguage = "tr"
)

var (
	ErrEmptyInput    = errors.New("message content is empty")
	ErrAuth          = errors.New("openai api key invalid or missing")
	ErrRateLimit     = errors.New("openai usage limit exceeded")
	ErrModel         = errors.New("openai model unavailable")
	ErrEmptyResponse = errors.New("openai returned no choices")
	ErrNoSpeech      = errors.New("no speech recognized")
)

type PromptTemplate struct {
	SystemPrompt   string `yaml:"system_prompt"`
	PromptTemplate string `yaml:"prompt_template"`
}

type PracticeFeedback struct {
	Suggestions   []string `json:"suggestions"`
	Improvements  []string `json:"improvements"`
	Encouragement string   `json:"encouragement"`
}

type ConnectionReport struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	Model         string `json:"model"`
	APIKeyPresent bool   `json:"apiKeyPresent"`
}

type OpenaiAPI interface {
	GetMusicTeacherResponse(ctx context.Context, instrument models.Instrument, message string) (string, error)
	GeneratePracticeFeedback(ctx context.Context, instrument models.Instrument, level models.Level, analysis models.MusicAnalysis) (PracticeFeedback, error)
	TestConnection(ctx context.Context) ConnectionReport
}

// TranscriberAPI turns recorded speech into text.
type TranscriberAPI interface {
	Transcribe(ctx context.Context, speech io.Reader, fileName string) (string, error)
}

type OpenaiClient struct {
	client    *openai.Client
	model     string
	chatModel string
	hasKey    bool
}

func NewOpenAIClient(apiKey string, baseUrl string, model string) (OpenaiAPI, error) {
	config := openai.DefaultConfig(apiKey)
	if baseUrl != "" {
		config.BaseURL = baseUrl
	}
	if model == "" {
		model = openai.GPT3Dot5TurboInstruct
	}
	return &OpenaiClient{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		chatModel: openai.GPT4oMini,
		hasKey:    apiKey != "",
	}, nil
}

// GetMusicTeacherResponse asks the completion model to answer as a teacher of
// the given instrument. It keeps no conversation state between calls.
func (c *OpenaiClient) GetMusicTeacherResponse(ctx context.Context, instrument models.Instrument, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyInput
	}
	if !c.hasKey {
		return "", ErrAuth
	}

	var prompt PromptTemplate
	if err := yaml.Unmarshal(musicTeacherYAML, &prompt); err != nil {
		return "", fmt.Errorf("error parsing prompt yaml: %w", err)
	}
	text := strings.ReplaceAll(prompt.PromptTemplate, "{{.Instrument}}", string(instrument))
	text = strings.ReplaceAll(text, "{{.Message}}", message)

	start := time.Now()
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.model,
		Prompt:      text,
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
		TopP:        1,
	})
	metrics.ObserveCompletion("chat", start, err)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

func (c *OpenaiClient) GeneratePracticeFeedback(ctx context.Context, instrument models.Instrument, level models.Level, analysis models.MusicAnalysis) (PracticeFeedback, error) {
	if !c.hasKey {
		return PracticeFeedback{}, ErrAuth
	}

	var prompt PromptTemplate
	if err := yaml.Unmarshal(practiceFeedbackYAML, &prompt); err != nil {
		return PracticeFeedback{}, fmt.Errorf("error parsing feedback prompt yaml: %w", err)
	}
	systemPrompt := strings.ReplaceAll(prompt.SystemPrompt, "{{.Instrument}}", string(instrument))
	systemPrompt = strings.ReplaceAll(systemPrompt, "{{.Level}}", string(level))

	measurements, err := json.Marshal(analysis)
	if err != nil {
		return PracticeFeedback{}, fmt.Errorf("failed to marshal analysis: %w", err)
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: string(measurements),
			},
		},
		Temperature: completionTemperature,
	})
	metrics.ObserveCompletion("feedback", start, err)
	if err != nil {
		return PracticeFeedback{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return PracticeFeedback{}, ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if !strings.Contains(content, "{") {
		return PracticeFeedback{
			Encouragement: strings.Trim(strings.TrimSpace(content), "\""),
		}, nil
	}
	var feedback PracticeFeedback
	if err := json.Unmarshal([]byte(content), &feedback); err != nil {
		return PracticeFeedback{}, fmt.Errorf("error unmarshalling feedback response: %w", err)
	}
	return feedback, nil
}

// Transcribe sends a recording to the speech model and returns the Turkish
// text it heard. fileName carries the audio format, e.g. "speech.wav".
func (c *OpenaiClient) Transcribe(ctx context.Context, speech io.Reader, fileName string) (string, error) {
	if !c.hasKey {
		return "", ErrAuth
	}

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   speech,
		FilePath: fileName,
		Language: transcriptionLanguage,
	})
	metrics.ObserveCompletion("transcription", start, err)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// TestConnection sends a greeting through the teacher prompt and reports the outcome.
func (c *OpenaiClient) TestConnection(ctx context.Context) ConnectionReport {
	report := ConnectionReport{Model: c.model, APIKeyPresent: c.hasKey}
	reply, err := c.GetMusicTeacherResponse(ctx, models.InstrumentGuitar, "Merhaba")
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Success = true
	report.Message = reply
	return report
}

func classifyOpenAIError(err error) error {
	status := 0
	code := ""

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		if code == "" {
			code = apiErr.Type
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || code == "invalid_api_key":
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case status == http.StatusTooManyRequests || code == "insufficient_quota" || code == "rate_limit_exceeded":
		return fmt.Errorf("%w: %w", ErrRateLimit, err)
	case status == http.StatusNotFound || code == "model_not_found":
		return fmt.Errorf("%w: %w", ErrModel, err)
	}
	return fmt.Errorf("OpenAI API error: %w", err)
}

// UserMessage turns a completion error into the text shown in the chat.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "Mesaj içeriği boş olamaz."
	case errors.Is(err, ErrNoSpeech):
		return "Sesinizi anlayamadım. Lütfen tekrar konuşun."
	case errors.Is(err, ErrAuth):
		return "API anahtarı geçersiz veya eksik. Lütfen ayarlarınızı kontrol edin."
	case errors.Is(err, ErrRateLimit):
		return "API kullanım limiti aşıldı. Lütfen daha sonra tekrar deneyin."
	case errors.Is(err, ErrModel):
		return "Model kullanımında bir sorun oluştu. Lütfen sistem yöneticinize başvurun."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "İstek zaman aşımına uğradı. Lütfen tekrar deneyin."
	}
	return "Üzgünüm, şu anda yanıt veremiyorum. Lütfen tekrar deneyin."
}

func (f PracticeFeedback) String() string {
	var sb strings.Builder
	if f.Encouragement != "" {
		sb.WriteString(f.Encouragement + "\n")
	}
	if len(f.Suggestions) > 0 {
		sb.WriteString("Öneriler:\n")
		for _, s := range f.Suggestions {
			sb.WriteString(fmt.Sprintf("  • %s\n", s))
		}
	}
	if len(f.Improvements) > 0 {
		sb.WriteString("Geliştirilecek noktalar:\n")
		for _, s := range f.Improvements {
			sb.WriteString(fmt.Sprintf("  • %s\n", s))
		}
	}
	return sb.String()
}
