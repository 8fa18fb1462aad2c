package domain

import "time"

// Chat is a registered group conversation where responders work.
type Chat struct {
	ID             int64
	PlatformChatID int64
	Title          string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
