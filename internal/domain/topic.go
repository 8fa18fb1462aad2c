package domain

import "time"

// Topic is a routing category. A topic without a bound chat cannot receive tickets.
type Topic struct {
	ID          int64
	Name        string
	Description *string
	ChatID      *int64
	CreatedAt   time.Time
}

// Bound reports whether the topic has a group chat assigned.
func (t *Topic) Bound() bool {
	return t.ChatID != nil
}
