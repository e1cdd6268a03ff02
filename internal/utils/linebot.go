package utils

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v7/linebot"
)

type LinebotAPI interface {
	PushMessage(to string, message string) error
}

type LineBotClient struct {
	client *linebot.Client
	sender string
}

func NewLineBotClient(channelSecret string, channelToken string) (LinebotAPI, error) {
	client, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create line bot client: %w", err)
	}
	return &LineBotClient{
		client: client,
		sender: "Müzik Öğretmeni",
	}, nil
}

func (c *LineBotClient) PushMessage(to string, message string) error {
	msg := linebot.NewTextMessage(message).WithSender(&linebot.Sender{Name: c.sender})
	if _, err := c.client.PushMessage(to, msg).Do(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}
