package backend

import (
	"context"
	"time"

	"bilancio/internal/services"
	"bilancio/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is a composed store plus what the caller must release.
type BackendResult struct {
	Store store.Store
	// Publisher is nil unless transaction-sync messages are enabled.
	Publisher services.SyncPublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type  BackendType
	Owner string

	// DataDirectory holds the JSON files of the memory backend, and the
	// budgets, recurring definitions and goals of the sheets and webhook
	// backends.
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Webhook specific
	WebhookURL     string
	WebhookTimeout time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend  BackendType = "sqlite"
	SheetsBackend  BackendType = "sheets"
	MemoryBackend  BackendType = "memory"
	WebhookBackend BackendType = "webhook"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend, WebhookBackend:
		return true
	default:
		return false
	}
}
