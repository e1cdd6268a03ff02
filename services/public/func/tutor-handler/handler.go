package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"music-tutor/internal/catalog"
	"music-tutor/internal/models"
	"music-tutor/internal/repository"
	"music-tutor/internal/utils"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

// ReminderScheduler manages the per-user practice reminder schedule.
type ReminderScheduler interface {
	Enable(ctx context.Context, userID, reminderTime, timezone string) error
	Disable(ctx context.Context, userID string) error
	TriggerNow(ctx context.Context, userID string) error
}

type Handler struct {
	logger       *logrus.Entry
	envVars      *EnvVars
	openaiClient utils.OpenaiAPI
	catalog      *catalog.Catalog
	profileRepo  utils.ProfileRepository
	progressRepo utils.ProgressRepository
	settingsRepo utils.SettingsRepository
	schedules    ReminderScheduler
	now          func() time.Time
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, openaiClient utils.OpenaiAPI, lessons *catalog.Catalog, profileRepo utils.ProfileRepository, progressRepo utils.ProgressRepository, settingsRepo utils.SettingsRepository, schedules ReminderScheduler) (*Handler, error) {
	return &Handler{
		logger:       logger,
		envVars:      envVars,
		openaiClient: openaiClient,
		catalog:      lessons,
		profileRepo:  profileRepo,
		progressRepo: progressRepo,
		settingsRepo: settingsRepo,
		schedules:    schedules,
		now:          time.Now,
	}, nil
}

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ChatRequest struct {
	Instrument string `json:"instrument"`
	Message    string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type PracticeRequest struct {
	Minutes     int                         `json:"minutes"`
	Seconds     int                         `json:"seconds"`
	Performance *models.SessionPerformance `json:"performance,omitempty"`
}

type LessonProgressRequest struct {
	Percent int `json:"percent"`
}

type StreakResponse struct {
	Streak int `json:"streak"`
}

var errBadRequest = errors.New("bad request")

// A single practice report covers at most one day.
const maxPracticeMinutes = 24 * 60

func (h *Handler) EventHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	segments := strings.Split(strings.Trim(request.Path, "/"), "/")
	h.logger.WithFields(logrus.Fields{
		"method": request.HTTPMethod,
		"path":   request.Path,
	}).Info("request handling")

	var (
		data any
		err  error
	)
	switch {
	case len(segments) == 1 && segments[0] == "lessons" && request.HTTPMethod == http.MethodGet:
		data, err = h.listLessons(request.QueryStringParameters)
	case len(segments) == 1 && segments[0] == "teachers" && request.HTTPMethod == http.MethodGet:
		data, err = h.listTeachers(request.QueryStringParameters)
	case len(segments) == 1 && segments[0] == "chat" && request.HTTPMethod == http.MethodPost:
		data, err = h.chat(ctx, request.Body)
	case len(segments) >= 2 && segments[0] == "users" && segments[1] != "":
		return h.userRoute(ctx, request, segments[1], segments[2:])
	default:
		return h.errorResponse(http.StatusNotFound, "Not found"), nil
	}
	if err != nil {
		return h.failure(err), nil
	}
	return h.successResponse(http.StatusOK, data), nil
}

func (h *Handler) userRoute(ctx context.Context, request events.APIGatewayProxyRequest, userID string, rest []string) (events.APIGatewayProxyResponse, error) {
	var (
		data any
		err  error
	)
	route := request.HTTPMethod + " " + strings.Join(rest, "/")
	switch {
	case route == "DELETE ":
		err = h.deleteAccount(ctx, userID)
	case route == "GET profile":
		data, err = h.getProfile(ctx, userID)
	case route == "PUT profile":
		var patch models.ProfilePatch
		if err = decode(request.Body, &patch); err == nil {
			data, err = h.profileRepo.SaveProfile(ctx, userID, patch)
		}
	case route == "POST onboarding":
		var answers models.Onboarding
		if err = decode(request.Body, &answers); err == nil {
			data, err = h.profileRepo.CompleteOnboarding(ctx, userID, answers)
		}
	case route == "GET progress":
		data, err = h.getProgress(ctx, userID)
	case route == "PUT progress":
		var patch models.ProgressPatch
		if err = decode(request.Body, &patch); err == nil {
			data, err = h.progressRepo.SaveProgress(ctx, userID, patch)
		}
	case route == "DELETE progress":
		err = h.progressRepo.ResetProgress(ctx, userID)
	case route == "POST practice":
		data, err = h.addPractice(ctx, userID, request.Body)
	case route == "GET streak":
		var streak int
		streak, err = h.progressRepo.CalculateStreak(ctx, userID, h.now())
		data = StreakResponse{Streak: streak}
	case route == "GET stats/weekly":
		data, err = h.progressRepo.WeeklyStats(ctx, userID, h.now())
	case route == "GET settings":
		data, err = h.settingsRepo.GetSettings(ctx, userID)
	case route == "PUT settings":
		data, err = h.saveSettings(ctx, userID, request.Body)
	case len(rest) == 3 && rest[0] == "lessons" && rest[2] == "complete" && request.HTTPMethod == http.MethodPost:
		data, err = h.progressRepo.CompleteLesson(ctx, userID, rest[1])
	case len(rest) == 3 && rest[0] == "lessons" && rest[2] == "progress" && request.HTTPMethod == http.MethodPut:
		var body LessonProgressRequest
		if err = decode(request.Body, &body); err == nil {
			data, err = h.progressRepo.UpdateLessonProgress(ctx, userID, rest[1], body.Percent)
		}
	default:
		return h.errorResponse(http.StatusNotFound, "Not found"), nil
	}
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"userId": userID,
			"route":  route,
		}).Error("Failed to handle user request")
		return h.failure(err), nil
	}
	return h.successResponse(http.StatusOK, data), nil
}

func (h *Handler) listLessons(query map[string]string) ([]models.Lesson, error) {
	var instrument models.Instrument
	if raw := query["instrument"]; raw != "" {
		parsed, err := models.ParseInstrument(raw)
		if err != nil {
			return nil, err
		}
		instrument = parsed
	}
	level := models.Level(query["level"])
	if level != "" && !level.Valid() {
		return nil, fmt.Errorf("%w: level %q", models.ErrInvalidValue, level)
	}
	lessons := h.catalog.Lessons(instrument, level)
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

func (h *Handler) listTeachers(query map[string]string) ([]models.Teacher, error) {
	var instrument models.Instrument
	if raw := query["instrument"]; raw != "" {
		parsed, err := models.ParseInstrument(raw)
		if err != nil {
			return nil, err
		}
		instrument = parsed
	}
	teachers := h.catalog.Teachers(instrument)
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, nil
}

func (h *Handler) chat(ctx context.Context, body string) (*ChatResponse, error) {
	var req ChatRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	instrument := models.InstrumentGuitar
	if req.Instrument != "" {
		parsed, err := models.ParseInstrument(req.Instrument)
		if err != nil {
			return nil, err
		}
		instrument = parsed
	}
	reply, err := h.openaiClient.GetMusicTeacherResponse(ctx, instrument, req.Message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get teacher response")
		return nil, err
	}
	return &ChatResponse{Reply: reply}, nil
}

func (h *Handler) getProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := h.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, repository.ErrRecordNotFound
	}
	return profile, nil
}

func (h *Handler) getProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	progress, err := h.progressRepo.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, repository.ErrRecordNotFound
	}
	return progress, nil
}

func (h *Handler) addPractice(ctx context.Context, userID, body string) (*models.UserProgress, error) {
	var req PracticeRequest
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	if req.Minutes < 0 || req.Seconds < 0 || req.Minutes > maxPracticeMinutes || req.Seconds > maxPracticeMinutes*60 {
		return nil, fmt.Errorf("%w: practice time out of range", errBadRequest)
	}
	d := time.Duration(req.Minutes)*time.Minute + time.Duration(req.Seconds)*time.Second
	if d > maxPracticeMinutes*time.Minute {
		return nil, fmt.Errorf("%w: practice time longer than a day", errBadRequest)
	}
	return h.progressRepo.AddPracticeTime(ctx, userID, d, req.Performance)
}

// saveSettings stores the patch and keeps the reminder schedule in line with
// the notifications flag. Schedule failures are logged, not returned.
func (h *Handler) saveSettings(ctx context.Context, userID, body string) (*models.UserSettings, error) {
	var patch models.SettingsPatch
	if err := decode(body, &patch); err != nil {
		return nil, err
	}
	settings, err := h.settingsRepo.SaveSettings(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if h.schedules == nil || (patch.Notifications == nil && patch.ReminderTime == nil && patch.Timezone == nil) {
		return settings, nil
	}

	if !settings.Notifications {
		if err := h.schedules.Disable(ctx, userID); err != nil {
			h.logger.WithError(err).Error("Failed to disable practice reminder")
		}
		return settings, nil
	}

	reminderTime := settings.ReminderTime
	if reminderTime == "" {
		reminderTime = h.envVars.reminderTime
	}
	timezone := settings.Timezone
	if timezone == "" {
		timezone = h.envVars.timezone
	}
	if err := h.schedules.Enable(ctx, userID, reminderTime, timezone); err != nil {
		h.logger.WithError(err).Error("Failed to schedule practice reminder")
		return settings, nil
	}
	if patch.Notifications != nil {
		if err := h.schedules.TriggerNow(ctx, userID); err != nil {
			h.logger.WithError(err).Error("Failed to trigger practice reminder")
		}
	}
	return settings, nil
}

func (h *Handler) deleteAccount(ctx context.Context, userID string) error {
	if err := h.profileRepo.DeleteAccount(ctx, userID); err != nil {
		return err
	}
	if h.schedules != nil {
		if err := h.schedules.Disable(ctx, userID); err != nil {
			h.logger.WithError(err).Error("Failed to remove practice reminder")
		}
	}
	return nil
}

func decode(body string, v any) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrInvalidValue),
		errors.Is(err, utils.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrRecordNotFound),
		errors.Is(err, models.ErrUnknownLesson):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, utils.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, utils.ErrAuth),
		errors.Is(err, utils.ErrModel),
		errors.Is(err, utils.ErrEmptyResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) failure(err error) events.APIGatewayProxyResponse {
	status := statusFor(err)
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		message = "Internal server error"
	case status == http.StatusTooManyRequests || status == http.StatusBadGateway:
		message = utils.UserMessage(err)
	}
	return h.errorResponse(status, message)
}

func (h *Handler) errorResponse(statusCode int, message string) events.APIGatewayProxyResponse {
	response := APIResponse{
		Status:  "error",
		Message: message,
	}

	body, _ := json.Marshal(response)
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(body),
	}
}

func (h *Handler) successResponse(statusCode int, data any) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(APIResponse{Status: "ok", Data: data})
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(body),
	}
}
