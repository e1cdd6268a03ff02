package main

import (
	"context"
	"errors"
	"music-tutor/internal/catalog"
	"music-tutor/internal/repository"
	"music-tutor/internal/utils"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "practice-reminder"
)

type EnvVars struct {
	channelSecret string
	channelToken  string
	storeBackend  string
	tableName     string
	sqlitePath    string
	redisAddr     string
	timezone      string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	channelSecret := os.Getenv("CHANNEL_SECRET")
	if channelSecret == "" {
		return nil, errors.New("CHANNEL_SECRET is not set")
	}

	channelToken := os.Getenv("CHANNEL_TOKEN")
	if channelToken == "" {
		return nil, errors.New("CHANNEL_TOKEN is not set")
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

	return &EnvVars{
		channelSecret: channelSecret,
		channelToken:  channelToken,
		storeBackend:  storeBackend,
		tableName:     tableName,
		sqlitePath:    os.Getenv("SQLITE_PATH"),
		redisAddr:     os.Getenv("REDIS_ADDR"),
		timezone:      timezone,
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

	linebotClient, err := utils.NewLineBotClient(envVars.channelSecret, envVars.channelToken)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize LINE Bot")
		panic(err)
	}

	lessons, err := catalog.Default()
	if err != nil {
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

	handler, err := NewHandler(logger, linebotClient,
		repository.NewProfileRepository(logger, store),
		repository.NewProgressRepository(logger, store, lessons, location),
		repository.NewSettingsRepository(logger, store),
		location)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.HandleReminder)
}
