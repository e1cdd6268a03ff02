package models

import "time"

type Sender string

const (
	SenderAI   Sender = "ai"
	SenderUser Sender = "user"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeLink  MessageType = "link"
	MessageTypeError MessageType = "error"
)

// Message is one chat turn of an open lesson session. It is never persisted.
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type"`
	URL       string      `json:"url,omitempty"`
	Action    string      `json:"action,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
