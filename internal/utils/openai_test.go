package utils

import (
	"context"
	"encoding/json"
	"errors"
	"music-tutor/internal/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newCompletionServer(t *testing.T, status int, body string, hits *int32, lastPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && lastPrompt != nil {
			if p, ok := req["prompt"].(string); ok {
				*lastPrompt = p
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetMusicTeacherResponse(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns trimmed first choice", func(t *testing.T) {
		var hits int32
		var prompt string
		srv := newCompletionServer(t, http.StatusOK,
			`{"id":"cmpl-1","object":"text_completion","choices":[{"text":"\n  Merhaba! Akorlarla başlayalım.  ","index":0,"finish_reason":"stop"}]}`,
			&hits, &prompt)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		reply, err := client.GetMusicTeacherResponse(ctx, models.InstrumentGuitar, "Nereden başlamalıyım?")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "Merhaba! Akorlarla başlayalım." {
			t.Errorf("Expected trimmed reply, got %q", reply)
		}
		if !strings.Contains(prompt, "Sen deneyimli bir gitar öğretmenisin.") {
			t.Errorf("Prompt does not prime the teacher role: %q", prompt)
		}
		if !strings.Contains(prompt, `"Nereden başlamalıyım?"`) {
			t.Errorf("Prompt does not embed the message: %q", prompt)
		}
	})

	t.Run("Blank message makes no request", func(t *testing.T) {
		var hits int32
		srv := newCompletionServer(t, http.StatusOK, `{}`, &hits, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		_, err := client.GetMusicTeacherResponse(ctx, models.InstrumentPiano, "   ")
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Expected ErrEmptyInput, got %v", err)
		}
		if atomic.LoadInt32(&hits) != 0 {
			t.Errorf("Expected no request, got %d", hits)
		}
	})

	t.Run("No choices", func(t *testing.T) {
		var hits int32
		srv := newCompletionServer(t, http.StatusOK, `{"id":"x","choices":[]}`, &hits, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		_, err := client.GetMusicTeacherResponse(ctx, models.InstrumentDrums, "Merhaba")
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("Expected ErrEmptyResponse, got %v", err)
		}
	})

	errorCases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"Invalid key", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuth},
		{"Quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, ErrRateLimit},
		{"Model", http.StatusNotFound, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`, ErrModel},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			var hits int32
			srv := newCompletionServer(t, tc.status, tc.body, &hits, nil)
			client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

			_, err := client.GetMusicTeacherResponse(ctx, models.InstrumentGuitar, "Merhaba")
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if UserMessage(err) == UserMessage(errors.New("other")) {
				t.Errorf("Expected a specific user message for %v", tc.want)
			}
		})
	}

	t.Run("Missing key", func(t *testing.T) {
		client, _ := NewOpenAIClient("", "http://127.0.0.1:0/v1", "")
		_, err := client.GetMusicTeacherResponse(ctx, models.InstrumentGuitar, "Merhaba")
		if !errors.Is(err, ErrAuth) {
			t.Errorf("Expected ErrAuth, got %v", err)
		}

		report := client.TestConnection(ctx)
		if report.Success || report.APIKeyPresent {
			t.Errorf("Unexpected report: %+v", report)
		}
	})
}

func TestGeneratePracticeFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("JSON reply", func(t *testing.T) {
		var hits int32
		content := `{\"suggestions\":[\"Metronomu 60 BPM'e ayarla\"],\"improvements\":[\"Ritim\"],\"encouragement\":\"Harika gidiyorsun!\"}`
		srv := newCompletionServer(t, http.StatusOK,
			`{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"`+content+`"},"finish_reason":"stop"}]}`,
			&hits, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		feedback, err := client.GeneratePracticeFeedback(ctx, models.InstrumentGuitar, models.LevelBeginner, models.MusicAnalysis{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(feedback.Suggestions) != 1 || feedback.Encouragement != "Harika gidiyorsun!" {
			t.Errorf("Unexpected feedback: %+v", feedback)
		}
		if !strings.Contains(feedback.String(), "Öneriler:") {
			t.Errorf("String() misses suggestions: %q", feedback.String())
		}
	})

	t.Run("Plain text reply becomes encouragement", func(t *testing.T) {
		var hits int32
		srv := newCompletionServer(t, http.StatusOK,
			`{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"\"Devam et!\""},"finish_reason":"stop"}]}`,
			&hits, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		feedback, err := client.GeneratePracticeFeedback(ctx, models.InstrumentPiano, models.LevelAdvanced, models.MusicAnalysis{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if feedback.Encouragement != "Devam et!" {
			t.Errorf("Expected encouragement fallback, got %+v", feedback)
		}
	})
}

func TestTranscribe(t *testing.T) {
	ctx := context.Background()

	newServer := func(t *testing.T, status int, body string, form *map[string]string) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if form != nil && r.ParseMultipartForm(1<<20) == nil {
				got := map[string]string{
					"path":     r.URL.Path,
					"model":    r.FormValue("model"),
					"language": r.FormValue("language"),
				}
				if _, header, err := r.FormFile("file"); err == nil {
					got["file"] = header.Filename
				}
				*form = got
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("Returns recognized text", func(t *testing.T) {
		var form map[string]string
		srv := newServer(t, http.StatusOK, `{"text":"  evet, hazırım "}`, &form)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		text, err := client.(TranscriberAPI).Transcribe(ctx, strings.NewReader("RIFF...."), "speech.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "evet, hazırım" {
			t.Errorf("Expected trimmed text, got %q", text)
		}
		if form["path"] != "/v1/audio/transcriptions" || form["model"] != "whisper-1" || form["language"] != "tr" || form["file"] != "speech.wav" {
			t.Errorf("Unexpected transcription request: %v", form)
		}
	})

	t.Run("Silence", func(t *testing.T) {
		srv := newServer(t, http.StatusOK, `{"text":""}`, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		_, err := client.(TranscriberAPI).Transcribe(ctx, strings.NewReader("RIFF"), "speech.wav")
		if !errors.Is(err, ErrNoSpeech) {
			t.Errorf("Expected ErrNoSpeech, got %v", err)
		}
		if UserMessage(err) != "Sesinizi anlayamadım. Lütfen tekrar konuşun." {
			t.Errorf("Unexpected user message %q", UserMessage(err))
		}
	})

	t.Run("Rejected key", func(t *testing.T) {
		srv := newServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`, nil)
		client, _ := NewOpenAIClient("sk-test", srv.URL+"/v1", "")

		_, err := client.(TranscriberAPI).Transcribe(ctx, strings.NewReader("RIFF"), "speech.wav")
		if !errors.Is(err, ErrAuth) {
			t.Errorf("Expected ErrAuth, got %v", err)
		}
	})

	t.Run("No key makes no request", func(t *testing.T) {
		client, _ := NewOpenAIClient("", "http://127.0.0.1:1/v1", "")
		_, err := client.(TranscriberAPI).Transcribe(ctx, strings.NewReader("RIFF"), "speech.wav")
		if !errors.Is(err, ErrAuth) {
			t.Errorf("Expected ErrAuth, got %v", err)
		}
	})
}
