package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/store"
	"bilancio/internal/store/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "ftp"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "webhook", User: "anna", WebhookURL: "http://x"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != WebhookBackend || cfg.Owner != "anna" || cfg.WebhookURL != "http://x" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory without directory", Config{Type: MemoryBackend, Owner: "anna"}, false},
		{"missing owner", Config{Type: MemoryBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend, Owner: "anna"}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, Owner: "anna", GoogleSpreadsheetID: "x"}, true},
		{"webhook without url", Config{Type: WebhookBackend, Owner: "anna"}, true},
		{"unknown type", Config{Type: "ftp", Owner: "anna"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type: MemoryBackend, Owner: "anna", DataDirectory: dir,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Publisher != nil {
		t.Error("memory backend must not publish")
	}

	ctx := context.Background()
	if err := res.Store.SaveBudgets(ctx, []core.Budget{{ID: 1, Category: "Casa", Limit: core.Money{Cents: 50000}}}); err != nil {
		t.Fatalf("SaveBudgets: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, memory.FileName("budgets", "anna"))); err != nil {
		t.Fatalf("budgets file not written: %v", err)
	}
}

func TestCreateWebhookBackendComposesLocalCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[{"id":1,"type":"income","description":"Stipendio","amount":100,"category":"Stipendio","date":"2024-04-01","owner":"anna"}]}`))
	}))
	defer srv.Close()

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type: WebhookBackend, Owner: "anna", WebhookURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if _, ok := res.Store.(store.Composite); !ok {
		t.Fatalf("expected a composite store, got %T", res.Store)
	}

	ctx := context.Background()
	txs, err := res.Store.LoadTransactions(ctx)
	if err != nil || len(txs) != 1 {
		t.Fatalf("LoadTransactions = %v, %v", txs, err)
	}
	if err := res.Store.SaveGoals(ctx, []core.Goal{{ID: 2, Name: "Vacanze", Target: core.Money{Cents: 100000}}}); err != nil {
		t.Fatalf("SaveGoals: %v", err)
	}
	goals, err := res.Store.LoadGoals(ctx)
	if err != nil || len(goals) != 1 {
		t.Fatalf("LoadGoals = %v, %v", goals, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type: SQLiteBackend, Owner: "anna", SQLiteDBPath: filepath.Join(t.TempDir(), "b.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if res.Publisher != nil {
		t.Error("no AMQP URL means no publisher")
	}
	txs, err := res.Store.LoadTransactions(context.Background())
	if err != nil || len(txs) != 0 {
		t.Fatalf("LoadTransactions = %v, %v", txs, err)
	}
}
