// Package session keeps server-side dashboard sessions. A session holds the
// pass-through upstream credential, sealed at rest, and expires after an idle
// timeout that slides on every use.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when a session is absent or expired.
var ErrNotFound = errors.New("session not found")

// Record is the stored form of a session.
type Record struct {
	Username   string    `json:"username"`
	Credential []byte    `json:"credential"` // sealed
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists session records with an idle TTL.
type Store interface {
	// Save stores rec under id, expiring after ttl.
	Save(ctx context.Context, id string, rec Record, ttl time.Duration) error

	// Load returns the record for id and pushes its expiry ttl into the future.
	Load(ctx context.Context, id string, ttl time.Duration) (Record, error)

	// Delete removes id. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
