package storage

import (
	"time"
)

// Session represents a single capture session of the receiver.
// Each session records when capture started and which edge source fed it.
type Session struct {
	ID        int64     `json:"id"`               // Unique identifier for the session
	StartTime time.Time `json:"startTime"`        // When the capture session began
	Source    string    `json:"source"`           // Edge source name (e.g. "gpio")
	Config    *string   `json:"config,omitempty"` // Effective configuration in JSON format
}
