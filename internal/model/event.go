package model

import "time"

// AuthEventsQueue is the durable queue auth events are published to.
const AuthEventsQueue = "auth.events"

// Auth event types published to the auth.events queue.
const (
    EventUserRegistered  = "user.registered"
    EventUserLoggedIn    = "user.logged_in"
    EventSessionRotated  = "session.rotated"
    EventSessionRevoked  = "session.revoked"
    EventRefreshReplayed = "refresh.replayed"
)

// AuthEvent is published after credential lifecycle changes.  It carries
// identifiers only, never secrets or hashes.
type AuthEvent struct {
    ID         string    `json:"id"`
    Type       string    `json:"type"`
    UserID     string    `json:"user_id"`
    OccurredAt time.Time `json:"occurred_at"`
}
