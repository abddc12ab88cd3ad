package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/config"
	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/replica"
	"github.com/mmynk/physioledger/internal/snapshot"
	"github.com/mmynk/physioledger/internal/storage"
	"github.com/mmynk/physioledger/pkg/logging"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ledgerd %s failed: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestImportExportThroughDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_DB_PATH", filepath.Join(dir, "ledger.db"))
	t.Setenv("LEDGER_MONGO_URI", "")
	t.Setenv("LOG_LEVEL", "error")

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &snapshot.Document{
		Version:    snapshot.Version,
		ExportDate: created,
		Clients: []models.Client{{
			ID: "client_01", Name: "Ada", Phone: "555", Status: models.ClientActive,
			Messages: []models.Message{}, CreatedAt: created, TotalPaid: decimal.Zero,
		}},
		Sessions: []models.Session{{
			ID: "sess_01", ClientID: "client_01", Date: "2025-01-02", Time: "10:00",
			Type: "rehab", DurationMinutes: 60, CreatedAt: created,
		}},
	}
	backup := filepath.Join(dir, "backup.json")
	f, err := os.Create(backup)
	if err != nil {
		t.Fatal(err)
	}
	if err := snapshot.Encode(f, in); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if got := run(t, "import", "--mode", "replace", backup); !strings.Contains(got, "2 imported") {
		t.Errorf("import output = %q", got)
	}
	if got := run(t, "import", backup); !strings.Contains(got, "0 imported, 2 skipped") {
		t.Errorf("second import output = %q", got)
	}

	out := filepath.Join(dir, "out.json")
	run(t, "export", "-o", out)

	f, err = os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc, err := snapshot.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(doc.Clients) != 1 || doc.Clients[0].Name != "Ada" || len(doc.Sessions) != 1 {
		t.Errorf("exported = %+v", doc)
	}

	// Another account's ledger is separate.
	other := run(t, "export", "--user", "someone")
	if strings.Contains(other, "Ada") {
		t.Errorf("user ledger contains guest data: %s", other)
	}
}

func TestStackSyncsStoredLedgers(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "ledger.db")
	logger := logging.New(io.Discard, slog.LevelError)

	st, err := openStack(cfg, logger, nil)
	if err != nil {
		t.Fatalf("openStack failed: %v", err)
	}
	user := storage.ScopeFor("42")
	store, err := st.Get(ctx, user)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := store.AddClient(ctx, ledger.ClientInput{Name: "Ada", Phone: "555"}); err != nil {
		t.Fatalf("AddClient failed: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Nothing is opened after a restart, the database still knows the scope.
	st, err = openStack(cfg, logger, nil)
	if err != nil {
		t.Fatalf("openStack failed: %v", err)
	}
	defer st.Close(ctx)

	scopes, err := st.Scopes(ctx)
	if err != nil {
		t.Fatalf("Scopes failed: %v", err)
	}
	if !slices.Equal(scopes, []string{storage.GuestScope, user}) {
		t.Errorf("Scopes = %v", scopes)
	}

	remote := replica.NewMemory()
	if err := replica.NewSyncer(remote, replica.WithLogger(logger)).SyncAll(ctx, st); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if docs, _ := remote.ListByOwner(ctx, user); len(docs) != 1 {
		t.Errorf("replica holds %d docs for %s, want 1", len(docs), user)
	}
}

func TestImportRejectsUnknownMode(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"import", "--mode", "append", "backup.json"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unknown import mode") {
		t.Errorf("Execute error = %v", err)
	}
}

func TestCORS(t *testing.T) {
	h := cors("https://clinic.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{method: http.MethodOptions, want: http.StatusOK},
		{method: http.MethodPost, want: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/physioledger.v1.LedgerService/GetStats", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://clinic.example" {
				t.Errorf("Allow-Origin = %q", got)
			}
		})
	}
}
