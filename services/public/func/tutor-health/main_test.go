package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func TestIntegrations(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"CHANNEL_SECRET": "secret",
	}
	got := integrations(func(k string) string { return env[k] })

	if !got["openai"] {
		t.Errorf("Expected openai to be configured")
	}
	if got["line"] {
		t.Errorf("Expected line to need both secret and token")
	}
	if got["redis"] {
		t.Errorf("Expected redis to be unconfigured")
	}
}

func TestHandler(t *testing.T) {
	resp, err := Handler(context.Background(), events.APIGatewayProxyRequest{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("Expected JSON body, got %v", err)
	}
	if body.Service != "music-tutor" {
		t.Errorf("Expected service music-tutor, got %s", body.Service)
	}
}
