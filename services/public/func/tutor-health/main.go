package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "tutor-health"
)

type HealthResponse struct {
	Service      string          `json:"service"`
	Status       string          `json:"status"`
	Integrations map[string]bool `json:"integrations"`
}

// integrations reports which optional backends have their settings present.
func integrations(getenv func(string) string) map[string]bool {
	set := func(keys ...string) bool {
		for _, k := range keys {
			if getenv(k) == "" {
				return false
			}
		}
		return true
	}
	return map[string]bool{
		"openai":    set("OPENAI_API_KEY"),
		"avatar":    set("D_ID_API_KEY"),
		"line":      set("CHANNEL_SECRET", "CHANNEL_TOKEN"),
		"dynamodb":  set("TABLE_NAME"),
		"sqlite":    set("SQLITE_PATH"),
		"redis":     set("REDIS_ADDR"),
		"scheduler": set("REMINDER_FUNCTION_ARN", "SCHEDULER_ROLE_ARN"),
	}
}

func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logrus.WithFields(logrus.Fields{
		COMPONENT:   SERVICENAME,
		"requestId": request.RequestContext.RequestID,
	}).Info("Processing health request")

	body, _ := json.Marshal(HealthResponse{
		Service:      "music-tutor",
		Status:       "ok",
		Integrations: integrations(os.Getenv),
	})
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: string(body),
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
	lambda.Start(Handler)
}
