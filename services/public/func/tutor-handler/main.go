package main

import (
	"context"
	"errors"
	"music-tutor/internal/catalog"
	"music-tutor/internal/reminder"
	"music-tutor/internal/repository"
	"music-tutor/internal/utils"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "tutor-handler"
)

type EnvVars struct {
	openaiBaseUrl       string
	openaiApiKey        string
	openaiModel         string
	storeBackend        string
	tableName           string
	sqlitePath          string
	redisAddr           string
	reminderFunctionArn string
	schedulerRoleArn    string
	reminderTime        string
	timezone            string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	openaiApiKey := os.Getenv("OPENAI_API_KEY")
	if openaiApiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	storeBackend := os.Getenv("STORE_BACKEND")
	if storeBackend == "" {
		storeBackend = repository.BackendDynamoDB
	}

	tableName := os.Getenv("TABLE_NAME")
	if storeBackend == repository.BackendDynamoDB && tableName == "" {
		return nil, errors.New("TABLE_NAME is not set")
	}

	timezone := os.Getenv("TIMEZONE")
	if timezone == "" {
		timezone = "Europe/Istanbul"
	}
	reminderTime := os.Getenv("REMINDER_TIME")
	if reminderTime == "" {
		reminderTime = reminder.DefaultReminderTime
	}

	return &EnvVars{
		openaiBaseUrl:       os.Getenv("OPENAI_BASE_URL"),
		openaiApiKey:        openaiApiKey,
		openaiModel:         os.Getenv("OPENAI_MODEL"),
		storeBackend:        storeBackend,
		tableName:           tableName,
		sqlitePath:          os.Getenv("SQLITE_PATH"),
		redisAddr:           os.Getenv("REDIS_ADDR"),
		reminderFunctionArn: os.Getenv("REMINDER_FUNCTION_ARN"),
		schedulerRoleArn:    os.Getenv("SCHEDULER_ROLE_ARN"),
		reminderTime:        reminderTime,
		timezone:            timezone,
	}, nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
	logger := logrus.WithField(COMPONENT, SERVICENAME)

	envVars, err := getEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	location, err := time.LoadLocation(envVars.timezone)
	if err != nil {
		logger.WithError(err).Error("Failed to load timezone")
		panic(err)
	}

	openaiClient, err := utils.NewOpenAIClient(envVars.openaiApiKey, envVars.openaiBaseUrl, envVars.openaiModel)
	if err != nil {
		panic(err)
	}

	lessons, err := catalog.Default()
	if err != nil {
		logger.WithError(err).Error("Failed to load lesson catalog")
		panic(err)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(err)
	}

	store, err := repository.OpenStore(context.TODO(), logger, repository.StoreConfig{
		Backend:     envVars.storeBackend,
		TableName:   envVars.tableName,
		SQLitePath:  envVars.sqlitePath,
		RedisAddr:   envVars.redisAddr,
		RedisPrefix: "music-tutor:",
		DynamoDB:    dynamodb.NewFromConfig(cfg),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to open record store")
		panic(err)
	}

	var schedules ReminderScheduler
	if envVars.reminderFunctionArn != "" && envVars.schedulerRoleArn != "" {
		schedules = reminder.NewScheduleManager(logger, scheduler.NewFromConfig(cfg), awslambda.NewFromConfig(cfg),
			envVars.reminderFunctionArn, envVars.schedulerRoleArn)
	} else {
		logger.Warn("Reminder scheduling disabled: REMINDER_FUNCTION_ARN or SCHEDULER_ROLE_ARN is not set")
	}

	handler, err := NewHandler(logger, envVars, openaiClient, lessons,
		repository.NewProfileRepository(logger, store),
		repository.NewProgressRepository(logger, store, lessons, location),
		repository.NewSettingsRepository(logger, store),
		schedules)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
