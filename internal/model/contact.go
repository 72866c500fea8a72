package model

import "time"

// ChatContact maps a handle to the Telegram chat the bot last talked to it in.
// The notifier needs it because Telegram cannot message a bare username.
type ChatContact struct {
	Handle   string    `json:"handle"`
	UserID   int64     `json:"userId"`
	ChatID   int64     `json:"chatId"`
	LastSeen time.Time `json:"lastSeen"`
}

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderClaimed ReminderStatus = "claimed"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

// Reminder is a one-shot weigh-in nudge scheduled by the "remind tomorrow" reply.
type Reminder struct {
	ID        string         `json:"id"`
	Handle    string         `json:"handle"`
	ChatID    int64          `json:"chatId"`
	RunAt     time.Time      `json:"runAt"`
	Status    ReminderStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"lastError,omitempty"`
}
