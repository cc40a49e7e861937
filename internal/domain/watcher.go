package domain

import "time"

// Watcher subscribes a user to a ticket's notifications. A user may watch a
// ticket at most once.
type Watcher struct {
	TicketID  string
	UserID    string
	CreatedAt time.Time
}
