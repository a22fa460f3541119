package backend

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/storage"
	"bilancio/internal/store"
	"bilancio/internal/store/google"
	"bilancio/internal/store/memory"
	"bilancio/internal/store/webhook"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case WebhookBackend:
		return f.createWebhookBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{Store: repo, Cleanup: repo.Close}

	// AMQP is optional: without a broker transactions stay queued in SQLite
	// until a worker picks them up.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			result.Publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"owner", config.Owner,
		"amqp_enabled", result.Publisher != nil)

	return result, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	creds, err := google.LoadCredentials(config.GoogleServiceAccountJSON, config.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		Owner:           config.Owner,
		CredentialsJSON: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	local, err := f.localStore(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized Google Sheets backend", "owner", config.Owner)

	return &BackendResult{Store: withTransactions(local, cli)}, nil
}

func (f *DefaultFactory) createWebhookBackend(config Config) (*BackendResult, error) {
	cli, err := webhook.New(config.WebhookURL, config.Owner, config.WebhookTimeout, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webhook client: %w", err)
	}

	local, err := f.localStore(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized webhook backend", "owner", config.Owner)

	return &BackendResult{Store: withTransactions(local, cli)}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	local, err := f.localStore(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend",
		"data_directory", config.DataDirectory,
		"owner", config.Owner)

	return &BackendResult{Store: local}, nil
}

func (f *DefaultFactory) localStore(config Config) (*memory.Store, error) {
	if config.DataDirectory == "" {
		return memory.New(config.Owner), nil
	}
	s, err := memory.NewFromDir(config.DataDirectory, config.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}
	return s, nil
}

// withTransactions keeps budgets, recurring definitions and goals in local
// and routes transactions to remote.
func withTransactions(local *memory.Store, remote store.TransactionStore) store.Store {
	return store.Composite{
		TransactionStore: remote,
		BudgetStore:      local,
		RecurringStore:   local,
		GoalStore:        local,
	}
}
