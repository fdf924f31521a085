package models

import (
	"encoding/json"
	"time"
)

type FrameType string

const (
	FrameAuth         FrameType = "auth"
	FrameChat         FrameType = "chat"
	FrameNotification FrameType = "notification"
)

// Frame is the envelope of every WebSocket message in both directions.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type AuthStatus struct {
	Status string `json:"status"`
}

type ChatPayload struct {
	MessageID int       `json:"messageId"`
	Username  string    `json:"username"`
	GroupID   int       `json:"groupId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationPayload = Notification
