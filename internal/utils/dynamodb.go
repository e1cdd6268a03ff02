package utils

import (
	"context"
	"music-tutor/internal/models"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDbAPI defines the DynamoDB operations needed by our application
type DynamoDbAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ProfileRepository defines profile and account operations
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.UserProfile, error)
	CompleteOnboarding(ctx context.Context, userID string, answers models.Onboarding) (*models.UserProfile, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// ProgressRepository defines practice progress operations
type ProgressRepository interface {
	GetProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	SaveProgress(ctx context.Context, userID string, patch models.ProgressPatch) (*models.UserProgress, error)
	InitializeProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	ResetProgress(ctx context.Context, userID string) error
	AddPracticeTime(ctx context.Context, userID string, d time.Duration, perf *models.SessionPerformance) (*models.UserProgress, error)
	CompleteLesson(ctx context.Context, userID, lessonID string) (*models.UserProgress, error)
	UpdateLessonProgress(ctx context.Context, userID, lessonID string, percent int) (*models.UserProgress, error)
	CalculateStreak(ctx context.Context, userID string, now time.Time) (int, error)
	WeeklyStats(ctx context.Context, userID string, now time.Time) ([]models.DailyPractice, error)
}

// SettingsRepository defines user preference operations
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.UserSettings, error)
}

// AuthRepository defines the mocked sign-in operations, scoped per device
type AuthRepository interface {
	Login(ctx context.Context, device, email string) (*models.LoginResponse, error)
	Register(ctx context.Context, device, email, fullName string) (*models.LoginResponse, error)
	Logout(ctx context.Context, device string) error
	IsAuthenticated(ctx context.Context, device string) (bool, error)
	CurrentUser(ctx context.Context, device string) (*models.AuthUser, error)
	Token(ctx context.Context, device string) (string, error)
}
