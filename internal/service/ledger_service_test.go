package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/middleware"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/snapshot"
	"github.com/mmynk/physioledger/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupLedgerTestServer serves a LedgerService backed by an in-memory
// adapter. Every request runs on the guest ledger.
func setupLedgerTestServer(t *testing.T) (*httptest.Server, *ledger.Registry) {
	t.Helper()

	registry := ledger.NewRegistry(memory.New(),
		ledger.WithLogger(discardLogger()),
		ledger.WithClock(func() time.Time { return testNow }),
	)
	svc := NewLedgerService(registry, discardLogger())
	svc.now = func() time.Time { return testNow }

	path, handler := svc.Handler(connect.WithInterceptors(middleware.LoggingInterceptor(discardLogger())))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, registry
}

// call invokes one unary procedure on the test server.
func call[Req, Res any](t *testing.T, server *httptest.Server, procedure string, req *Req, header ...string) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, server.URL+procedure, Codec())
	r := connect.NewRequest(req)
	for i := 0; i+1 < len(header); i += 2 {
		r.Header().Set(header[i], header[i+1])
	}
	res, err := client.CallUnary(context.Background(), r)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func mustCall[Req, Res any](t *testing.T, server *httptest.Server, procedure string, req *Req, header ...string) *Res {
	t.Helper()
	res, err := call[Req, Res](t, server, procedure, req, header...)
	if err != nil {
		t.Fatalf("%s failed: %v", procedure, err)
	}
	return res
}

func wantCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code = %v, want %v (%v)", got, want, err)
	}
}

func TestLedgerServiceAdaScenario(t *testing.T) {
	server, _ := setupLedgerTestServer(t)

	client := mustCall[AddClientRequest, ClientResponse](t, server, AddClientProcedure, &AddClientRequest{
		Name:  "Ada",
		Phone: "555-0100",
	}).Client
	if client.ID == "" || client.Status != models.ClientActive {
		t.Fatalf("unexpected client: %+v", client)
	}

	pkg := mustCall[AddPackageRequest, PackageResponse](t, server, AddPackageProcedure, &AddPackageRequest{
		ClientID:      client.ID,
		Name:          "10-pack",
		TotalSessions: 10,
		Price:         decimal.NewFromInt(1000),
		PaidAmount:    decimal.NewFromInt(400),
	}).Package
	if pkg.RemainingSessions != 10 {
		t.Errorf("RemainingSessions = %d, want 10", pkg.RemainingSessions)
	}

	mustCall[RecordSessionRequest, SessionResponse](t, server, RecordSessionProcedure, &RecordSessionRequest{
		ClientID: client.ID,
		Date:     "2025-03-14",
		Time:     "10:00",
		Type:     "massage",
	})

	paid := mustCall[RecordPaymentRequest, PaymentResponse](t, server, RecordPaymentProcedure, &RecordPaymentRequest{
		PackageID: pkg.ID,
		Amount:    decimal.NewFromInt(600),
	})
	if !paid.Package.PaidAmount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("PaidAmount = %s, want 1000", paid.Package.PaidAmount)
	}
	if paid.Package.RemainingSessions != 9 || paid.UsedSessions != 1 {
		t.Errorf("RemainingSessions = %d, UsedSessions = %d; want 9, 1", paid.Package.RemainingSessions, paid.UsedSessions)
	}

	_, err := call[RecordPaymentRequest, PaymentResponse](t, server, RecordPaymentProcedure, &RecordPaymentRequest{
		PackageID: pkg.ID,
		Amount:    decimal.NewFromInt(1),
	})
	wantCode(t, err, connect.CodeInvalidArgument)

	detail := mustCall[ClientRequest, ClientDetailResponse](t, server, GetClientProcedure, &ClientRequest{ClientID: client.ID})
	if len(detail.Sessions) != 1 || len(detail.Packages) != 1 || len(detail.Payments) != 2 {
		t.Errorf("detail has %d sessions, %d packages, %d payments; want 1, 1, 2",
			len(detail.Sessions), len(detail.Packages), len(detail.Payments))
	}
	if !detail.Summary.Outstanding.IsZero() || !detail.Summary.TotalPaid.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("summary = %+v", detail.Summary)
	}

	finance := mustCall[Empty, FinanceResponse](t, server, GetFinanceProcedure, &Empty{})
	if !finance.TotalIncome.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("TotalIncome = %s, want 1000", finance.TotalIncome)
	}
	if !finance.MonthlyIncome.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("MonthlyIncome = %s, want 1000", finance.MonthlyIncome)
	}
	if finance.SessionsThisMonth != 1 || finance.TotalClients != 1 || finance.ActivePackages != 1 {
		t.Errorf("finance = %+v", finance)
	}
	if len(finance.RecentPayments) != 2 || finance.RecentPayments[0].ClientName != "Ada" {
		t.Errorf("recent payments = %+v", finance.RecentPayments)
	}

	cal := mustCall[CalendarRequest, CalendarResponse](t, server, GetCalendarProcedure, &CalendarRequest{})
	if cal.Year != 2025 || cal.Month != 3 {
		t.Errorf("calendar month = %d-%d, want 2025-3", cal.Year, cal.Month)
	}
	var booked int
	for _, d := range cal.Days {
		booked += len(d.Sessions)
		if d.Date == "2025-03-14" && (len(d.Sessions) != 1 || d.Sessions[0].ClientName != "Ada") {
			t.Errorf("2025-03-14 = %+v", d)
		}
	}
	if booked != 1 || cal.Total != 1 || cal.BusiestDay != "2025-03-14" {
		t.Errorf("calendar has %d sessions (total %d, busiest %q), want 1 on 2025-03-14", booked, cal.Total, cal.BusiestDay)
	}

	report := mustCall[Empty, MonthlyReportResponse](t, server, GetMonthlyReportProcedure, &Empty{})
	if report.TotalSessions != 1 || report.SessionsByType["massage"] != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestLedgerServiceErrors(t *testing.T) {
	server, _ := setupLedgerTestServer(t)

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "client without phone",
			call: func() error {
				_, err := call[AddClientRequest, ClientResponse](t, server, AddClientProcedure, &AddClientRequest{Name: "Ada"})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown client",
			call: func() error {
				_, err := call[ClientRequest, ClientDetailResponse](t, server, GetClientProcedure, &ClientRequest{ClientID: "client_missing"})
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "session for unknown client",
			call: func() error {
				_, err := call[RecordSessionRequest, SessionResponse](t, server, RecordSessionProcedure, &RecordSessionRequest{
					ClientID: "client_missing", Date: "2025-03-14", Time: "10:00", Type: "massage",
				})
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "payments of unknown package",
			call: func() error {
				_, err := call[PackageRequest, PaymentsResponse](t, server, ListPaymentsProcedure, &PackageRequest{PackageID: "package_missing"})
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "calendar month out of range",
			call: func() error {
				_, err := call[CalendarRequest, CalendarResponse](t, server, GetCalendarProcedure, &CalendarRequest{Year: 2025, Month: 13})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "import with unknown mode",
			call: func() error {
				_, err := call[ImportRequest, ImportResponse](t, server, ImportProcedure, &ImportRequest{
					Mode:     "append",
					Document: &snapshot.Document{Version: snapshot.Version},
				})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "import without document",
			call: func() error {
				_, err := call[ImportRequest, ImportResponse](t, server, ImportProcedure, &ImportRequest{Mode: snapshot.Replace})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), tt.want)
		})
	}
}

func TestLedgerServiceListClients(t *testing.T) {
	server, _ := setupLedgerTestServer(t)

	for _, in := range []AddClientRequest{
		{Name: "Ada Lovelace", Phone: "555-0100"},
		{Name: "Grace Hopper", Phone: "555-0200", Email: "grace@example.com"},
		{Name: "Linus", Phone: "555-0300"},
	} {
		mustCall[AddClientRequest, ClientResponse](t, server, AddClientProcedure, &in)
	}

	all := mustCall[ListClientsRequest, ListClientsResponse](t, server, ListClientsProcedure, &ListClientsRequest{})
	if len(all.Clients) != 3 {
		t.Fatalf("got %d clients, want 3", len(all.Clients))
	}

	linus := all.Clients[2].Client
	mustCall[ClientRequest, ClientResponse](t, server, ToggleClientStatusProcedure, &ClientRequest{ClientID: linus.ID})

	tests := []struct {
		name string
		req  ListClientsRequest
		want []string
	}{
		{name: "by name", req: ListClientsRequest{Query: "ada"}, want: []string{"Ada Lovelace"}},
		{name: "by email", req: ListClientsRequest{Query: "EXAMPLE.com"}, want: []string{"Grace Hopper"}},
		{name: "by phone", req: ListClientsRequest{Query: "0300"}, want: []string{"Linus"}},
		{name: "frozen", req: ListClientsRequest{Status: models.ClientFrozen}, want: []string{"Linus"}},
		{name: "active", req: ListClientsRequest{Status: models.ClientActive}, want: []string{"Ada Lovelace", "Grace Hopper"}},
		{name: "no match", req: ListClientsRequest{Query: "nobody"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustCall[ListClientsRequest, ListClientsResponse](t, server, ListClientsProcedure, &tt.req)
			if len(res.Clients) != len(tt.want) {
				t.Fatalf("got %d clients, want %d", len(res.Clients), len(tt.want))
			}
			for i, row := range res.Clients {
				if row.Client.Name != tt.want[i] {
					t.Errorf("client %d = %q, want %q", i, row.Client.Name, tt.want[i])
				}
			}
		})
	}
}

func TestLedgerServiceDeleteClient(t *testing.T) {
	server, _ := setupLedgerTestServer(t)

	c := mustCall[AddClientRequest, ClientResponse](t, server, AddClientProcedure, &AddClientRequest{Name: "Ada", Phone: "555"}).Client
	mustCall[AddPackageRequest, PackageResponse](t, server, AddPackageProcedure, &AddPackageRequest{
		ClientID: c.ID, Name: "5-pack", TotalSessions: 5, Price: decimal.NewFromInt(250), PaidAmount: decimal.NewFromInt(50),
	})
	mustCall[AddClientMessageRequest, MessageResponse](t, server, AddClientMessageProcedure, &AddClientMessageRequest{
		ClientID: c.ID, Text: "Reminder sent",
	})

	mustCall[ClientRequest, Empty](t, server, DeleteClientProcedure, &ClientRequest{ClientID: c.ID})

	stats := mustCall[Empty, StatsResponse](t, server, GetStatsProcedure, &Empty{})
	if stats.Stats.Total() != 0 {
		t.Errorf("stats after delete = %+v, want empty", stats.Stats)
	}
	_, err := call[ClientRequest, Empty](t, server, DeleteClientProcedure, &ClientRequest{ClientID: c.ID})
	wantCode(t, err, connect.CodeNotFound)
}

func TestLedgerServiceExportImport(t *testing.T) {
	server, _ := setupLedgerTestServer(t)

	c := mustCall[AddClientRequest, ClientResponse](t, server, AddClientProcedure, &AddClientRequest{Name: "Ada", Phone: "555"}).Client
	mustCall[RecordSessionRequest, SessionResponse](t, server, RecordSessionProcedure, &RecordSessionRequest{
		ClientID: c.ID, Date: "2025-03-10", Time: "09:00", Type: "rehab",
	})

	exported := mustCall[Empty, ExportResponse](t, server, ExportProcedure, &Empty{}).Document
	if exported.Version != snapshot.Version || len(exported.Clients) != 1 || len(exported.Sessions) != 1 {
		t.Fatalf("exported = %+v", exported)
	}

	merged := mustCall[ImportRequest, ImportResponse](t, server, ImportProcedure, &ImportRequest{Mode: snapshot.Merge, Document: exported})
	if merged.Result.Imported != 0 || merged.Result.Skipped != 2 {
		t.Errorf("merge result = %+v, want 0 imported, 2 skipped", merged.Result)
	}

	other, _ := setupLedgerTestServer(t)
	replaced := mustCall[ImportRequest, ImportResponse](t, other, ImportProcedure, &ImportRequest{Mode: snapshot.Replace, Document: exported})
	if replaced.Result.Imported != 2 {
		t.Errorf("replace result = %+v, want 2 imported", replaced.Result)
	}
	sessions := mustCall[ClientRequest, SessionsResponse](t, other, ListSessionsProcedure, &ClientRequest{ClientID: c.ID})
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].Type != "rehab" {
		t.Errorf("sessions after import = %+v", sessions.Sessions)
	}

	flushed := mustCall[Empty, StatsResponse](t, other, GetStatsProcedure, &Empty{})
	if flushed.Dirty {
		t.Error("ledger is dirty after a successful import")
	}
	mustCall[Empty, Empty](t, other, FlushProcedure, &Empty{})
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{name: "validation", err: &ledger.ValidationError{Field: "name", Message: "is required"}, want: connect.CodeInvalidArgument},
		{name: "overpayment", err: &ledger.OverpaymentError{PackageID: "p"}, want: connect.CodeInvalidArgument},
		{name: "not found", err: &ledger.NotFoundError{Kind: "client", ID: "c"}, want: connect.CodeNotFound},
		{name: "format", err: &snapshot.FormatError{Reason: "bad"}, want: connect.CodeInvalidArgument},
		{name: "canceled", err: context.Canceled, want: connect.CodeCanceled},
		{name: "other", err: errors.New("boom"), want: connect.CodeInternal},
		{name: "already connect", err: connect.NewError(connect.CodePermissionDenied, errors.New("no")), want: connect.CodePermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toConnectError(tt.err).Code(); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}
