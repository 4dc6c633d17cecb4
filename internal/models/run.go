package models

import (
	"time"

	"github.com/google/uuid"
)

// RunResult is what one pipeline run produced, handed to the optional sinks
// after the snapshot files are on disk.
type RunResult struct {
	RunID        uuid.UUID
	RunAt        time.Time
	Raw          []Listing
	Filtered     []Listing
	RawPath      string
	FilteredPath string
}
