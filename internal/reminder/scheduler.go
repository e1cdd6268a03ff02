package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/sirupsen/logrus"
)

const scheduleGroup = "default"

type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	GetSchedule(ctx context.Context, params *scheduler.GetScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.GetScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Event is the payload the practice-reminder function receives.
type Event struct {
	UserID string `json:"userId"`
}

type ScheduleManager struct {
	logger      *logrus.Entry
	scheduler   SchedulerAPI
	lambda      LambdaAPI
	functionArn string
	roleArn     string
}

func NewScheduleManager(logger *logrus.Entry, schedulerClient SchedulerAPI, lambdaClient LambdaAPI, functionArn, roleArn string) *ScheduleManager {
	return &ScheduleManager{
		logger:      logger,
		scheduler:   schedulerClient,
		lambda:      lambdaClient,
		functionArn: functionArn,
		roleArn:     roleArn,
	}
}

func ScheduleName(userID string) string {
	return fmt.Sprintf("practice-reminder-%s", userID)
}

// Enable replaces the user's daily schedule with one firing at reminderTime
// (HH:MM in timezone).
func (m *ScheduleManager) Enable(ctx context.Context, userID, reminderTime, timezone string) error {
	if reminderTime == "" {
		reminderTime = DefaultReminderTime
	}
	expression, err := DailyCronExpression(reminderTime, timezone, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create cron expression: %w", err)
	}
	if err := m.Disable(ctx, userID); err != nil {
		return err
	}

	payload, err := json.Marshal(Event{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	name := ScheduleName(userID)
	out, err := m.scheduler.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(scheduleGroup),
		FlexibleTimeWindow: &types.FlexibleTimeWindow{
			Mode: types.FlexibleTimeWindowModeOff,
		},
		ScheduleExpression: aws.String(expression),
		Target: &types.Target{
			Arn:     aws.String(m.functionArn),
			RoleArn: aws.String(m.roleArn),
			Input:   aws.String(string(payload)),
		},
	})
	if err != nil {
		m.logger.WithError(err).Error("Failed to create EventBridge schedule")
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"scheduleName": name,
		"expression":   expression,
		"scheduleArn":  aws.ToString(out.ScheduleArn),
	}).Info("Successfully created practice reminder schedule")
	return nil
}

// Disable deletes the user's schedule; a missing schedule is not an error.
func (m *ScheduleManager) Disable(ctx context.Context, userID string) error {
	name := ScheduleName(userID)
	_, err := m.scheduler.GetSchedule(ctx, &scheduler.GetScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(scheduleGroup),
	})
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up schedule: %w", err)
	}

	_, err = m.scheduler.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(name),
		GroupName: aws.String(scheduleGroup),
	})
	if err != nil && !errors.As(err, &notFound) {
		m.logger.WithError(err).Error("Failed to delete existing schedule")
		return fmt.Errorf("failed to delete existing schedule: %w", err)
	}
	m.logger.WithField("scheduleName", name).Info("Deleted practice reminder schedule")
	return nil
}

// TriggerNow invokes the reminder function asynchronously for one user.
func (m *ScheduleManager) TriggerNow(ctx context.Context, userID string) error {
	payload, err := json.Marshal(Event{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = m.lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(m.functionArn),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		m.logger.WithError(err).Error("Failed to invoke practice reminder")
		return fmt.Errorf("failed to invoke reminder: %w", err)
	}
	return nil
}

// DailyCronExpression converts HH:MM in timezone to an EventBridge cron in UTC,
// using the offset in effect on the day of now.
func DailyCronExpression(reminderTime, timezone string, now time.Time) (string, error) {
	t, err := time.Parse("15:04", reminderTime)
	if err != nil {
		return "", fmt.Errorf("invalid time format: %s", reminderTime)
	}
	loc := time.UTC
	if timezone != "" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return "", fmt.Errorf("invalid timezone: %s", timezone)
		}
	}
	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), t.Hour(), t.Minute(), 0, 0, loc).UTC()
	return fmt.Sprintf("cron(%d %d * * ? *)", at.Minute(), at.Hour()), nil
}
