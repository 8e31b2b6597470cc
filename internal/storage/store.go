package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Store provides an interface for persisting receiver data: capture
// sessions and the readings emitted during them. All write operations are
// atomic.
type Store interface {
	// CreateSession initializes a new capture session and returns its
	// unique identifier. Source names the edge source (e.g. "gpio");
	// config is the effective configuration, stored for later inspection.
	// Config can be a string, []byte, or any JSON-serializable value.
	CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error)

	// Session retrieves a capture session by its ID.
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all capture sessions, ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreReadings saves a batch of emitted readings for a session in a
	// single transaction.
	StoreReadings(ctx context.Context, sessionID int64, readings []rf.Reading) error

	// Readings returns the readings of a session in emission order,
	// optionally filtered by protocol (empty string means all).
	Readings(ctx context.Context, sessionID int64, proto string) ([]rf.Reading, error)

	// Close releases all database connections and resources. After Close
	// is called, the store instance cannot be reused. It is safe to call
	// Close multiple times.
	Close() error
}
