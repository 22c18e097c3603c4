package backend

import (
	"context"

	"aidflow/internal/data"
	"aidflow/internal/services"
)

// Backend bundles every data port the server needs.
type Backend interface {
	data.RecordWriter
	data.RecordReader
	data.CalendarStore
	data.ActivityLister
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its optional companions.
// Series and Publisher are nil when the chosen backend cannot provide them.
type BackendResult struct {
	Backend   Backend
	Series    services.SeriesStore
	Publisher services.RecordChangePublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
