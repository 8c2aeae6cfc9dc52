package types

import (
	"time"
)

const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventCleanupLogged = "cleanup_logged"
)

type Notifier interface {
	LifecycleManager
	Publish(event string, payload interface{})
}

type Event struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
