package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"music-tutor/internal/catalog"
	"music-tutor/internal/config"
	"music-tutor/internal/models"
	"music-tutor/internal/reminder"
	"music-tutor/internal/repository"
	"music-tutor/internal/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	errNotLoggedIn    = errors.New("not logged in, run `tutor login` first")
	errNoOpenAIKey    = errors.New("OPENAI_API_KEY is not set")
	errNoProfile      = errors.New("no profile yet, run `tutor onboard` first")
	errSchedulesUnset = errors.New("reminder scheduling needs REMINDER_FUNCTION_ARN and SCHEDULER_ROLE_ARN")
)

// app holds what every command needs once the config is loaded.
type app struct {
	cfg      *config.Config
	logger   *logrus.Entry
	location *time.Location
	store    repository.RecordStore
	lessons  *catalog.Catalog
	profiles utils.ProfileRepository
	progress utils.ProgressRepository
	settings utils.SettingsRepository
	auth     utils.AuthRepository
}

func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	logger := logrus.WithField(COMPONENT, SERVICENAME)

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	lessons, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson catalog: %w", err)
	}

	storeCfg := repository.StoreConfig{
		Backend:     cfg.StoreBackend,
		TableName:   cfg.TableName,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: "music-tutor:",
	}
	switch cfg.StoreBackend {
	case repository.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	case repository.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		storeCfg.DynamoDB = dynamodb.NewFromConfig(awsCfg)
	}
	store, err := repository.OpenStore(ctx, logger, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.StoreBackend,
		"device":  cfg.Device,
	}).Debug("Store opened")

	return &app{
		cfg:      cfg,
		logger:   logger,
		location: location,
		store:    store,
		lessons:  lessons,
		profiles: repository.NewProfileRepository(logger, store),
		progress: repository.NewProgressRepository(logger, store, lessons, location),
		settings: repository.NewSettingsRepository(logger, store),
		auth:     repository.NewAuthRepository(logger, store, cfg.AuthSecret),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close store")
	}
}

// currentUser returns the signed-in user of this device.
func (a *app) currentUser(ctx context.Context) (*models.AuthUser, error) {
	ok, err := a.auth.IsAuthenticated(ctx, a.cfg.Device)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotLoggedIn
	}
	user, err := a.auth.CurrentUser(ctx, a.cfg.Device)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNotLoggedIn
	}
	return user, nil
}

// profile returns the signed-in user's profile, or errNoProfile.
func (a *app) profile(ctx context.Context) (*models.AuthUser, *models.UserProfile, error) {
	user, err := a.currentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	profile, err := a.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return user, nil, err
	}
	if profile == nil {
		return user, nil, errNoProfile
	}
	return user, profile, nil
}

func (a *app) openai() (utils.OpenaiAPI, error) {
	if a.cfg.OpenAIAPIKey == "" {
		return nil, errNoOpenAIKey
	}
	return utils.NewOpenAIClient(a.cfg.OpenAIAPIKey, a.cfg.OpenAIBaseURL, a.cfg.OpenAIModel)
}

// schedules returns the EventBridge schedule manager when both ARNs are configured.
func (a *app) schedules(ctx context.Context) (*reminder.ScheduleManager, error) {
	if a.cfg.ReminderFunctionArn == "" || a.cfg.SchedulerRoleArn == "" {
		return nil, errSchedulesUnset
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return reminder.NewScheduleManager(a.logger, scheduler.NewFromConfig(awsCfg), awslambda.NewFromConfig(awsCfg),
		a.cfg.ReminderFunctionArn, a.cfg.SchedulerRoleArn), nil
}

func (a *app) linebot() (utils.LinebotAPI, bool) {
	if a.cfg.ChannelSecret == "" || a.cfg.ChannelToken == "" {
		return nil, false
	}
	bot, err := utils.NewLineBotClient(a.cfg.ChannelSecret, a.cfg.ChannelToken)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to create LINE client")
		return nil, false
	}
	return bot, true
}

// instrumentAndLevel resolves flag values, falling back to the profile and
// then to beginner guitar.
func (a *app) instrumentAndLevel(ctx context.Context, instrumentFlag, levelFlag string) (models.Instrument, models.Level, error) {
	instrument, level := models.InstrumentGuitar, models.LevelBeginner
	if _, profile, err := a.profile(ctx); err == nil {
		if profile.Instrument.Valid() {
			instrument = profile.Instrument
		}
		if profile.Level.Valid() {
			level = profile.Level
		}
	}
	if instrumentFlag != "" {
		i, err := models.ParseInstrument(instrumentFlag)
		if err != nil {
			return "", "", err
		}
		instrument = i
	}
	if levelFlag != "" {
		l, err := models.ParseLevel(levelFlag)
		if err != nil {
			return "", "", err
		}
		level = l
	}
	return instrument, level, nil
}

// syncWriter serializes writes from timer and analysis goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
