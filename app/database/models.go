package database

import (
	"time"
)

// PushSubscription is a registered web-push endpoint. Payload is the
// canonical re-encoding of the browser's subscription JSON (sorted keys, no
// insignificant whitespace) and ID is its SHA-256.
type PushSubscription struct {
	ID        string
	Payload   []byte
	ExpiresAt time.Time
}

func (s PushSubscription) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
