package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/physioledger/internal/calculator"
	"github.com/mmynk/physioledger/internal/ledger"
	"github.com/mmynk/physioledger/internal/middleware"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/snapshot"
)

// LedgerServiceName is the fully-qualified name of the ledger service.
const LedgerServiceName = "physioledger.v1.LedgerService"

// Procedure paths of the ledger service.
const (
	AddClientProcedure          = "/" + LedgerServiceName + "/AddClient"
	GetClientProcedure          = "/" + LedgerServiceName + "/GetClient"
	ListClientsProcedure        = "/" + LedgerServiceName + "/ListClients"
	ToggleClientStatusProcedure = "/" + LedgerServiceName + "/ToggleClientStatus"
	AddClientMessageProcedure   = "/" + LedgerServiceName + "/AddClientMessage"
	DeleteClientProcedure       = "/" + LedgerServiceName + "/DeleteClient"
	RecordSessionProcedure      = "/" + LedgerServiceName + "/RecordSession"
	DeleteSessionProcedure      = "/" + LedgerServiceName + "/DeleteSession"
	ListSessionsProcedure       = "/" + LedgerServiceName + "/ListSessions"
	AddPackageProcedure         = "/" + LedgerServiceName + "/AddPackage"
	DeletePackageProcedure      = "/" + LedgerServiceName + "/DeletePackage"
	ListPackagesProcedure       = "/" + LedgerServiceName + "/ListPackages"
	RecordPaymentProcedure      = "/" + LedgerServiceName + "/RecordPayment"
	ListPaymentsProcedure       = "/" + LedgerServiceName + "/ListPayments"
	GetFinanceProcedure         = "/" + LedgerServiceName + "/GetFinance"
	GetCalendarProcedure        = "/" + LedgerServiceName + "/GetCalendar"
	GetMonthlyReportProcedure   = "/" + LedgerServiceName + "/GetMonthlyReport"
	ExportProcedure             = "/" + LedgerServiceName + "/Export"
	ImportProcedure             = "/" + LedgerServiceName + "/Import"
	GetStatsProcedure           = "/" + LedgerServiceName + "/GetStats"
	FlushProcedure              = "/" + LedgerServiceName + "/Flush"
)

// LedgerService exposes the ledger of the caller's scope over Connect.
type LedgerService struct {
	registry *ledger.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedgerService creates a new LedgerService over the given registry.
func NewLedgerService(registry *ledger.Registry, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{registry: registry, logger: logger, now: time.Now}
}

// unary serves fn against the ledger of the caller's scope.
func unary[Req, Res any](
	s *LedgerService,
	procedure string,
	fn func(ctx context.Context, store *ledger.Store, req *Req) (*Res, error),
	opts []connect.HandlerOption,
) http.Handler {
	return connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		store, err := s.registry.Get(ctx, middleware.GetScope(ctx))
		if err != nil {
			s.logger.Error("Failed to open ledger", "scope", middleware.GetScope(ctx), "error", err)
			return nil, toConnectError(err)
		}
		res, err := fn(ctx, store, req.Msg)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(res), nil
	}, opts...)
}

// Handler returns the service's path prefix and handler.
func (s *LedgerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{Codec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AddClientProcedure, unary(s, AddClientProcedure, s.addClient, opts))
	mux.Handle(GetClientProcedure, unary(s, GetClientProcedure, s.getClient, opts))
	mux.Handle(ListClientsProcedure, unary(s, ListClientsProcedure, s.listClients, opts))
	mux.Handle(ToggleClientStatusProcedure, unary(s, ToggleClientStatusProcedure, s.toggleClientStatus, opts))
	mux.Handle(AddClientMessageProcedure, unary(s, AddClientMessageProcedure, s.addClientMessage, opts))
	mux.Handle(DeleteClientProcedure, unary(s, DeleteClientProcedure, s.deleteClient, opts))
	mux.Handle(RecordSessionProcedure, unary(s, RecordSessionProcedure, s.recordSession, opts))
	mux.Handle(DeleteSessionProcedure, unary(s, DeleteSessionProcedure, s.deleteSession, opts))
	mux.Handle(ListSessionsProcedure, unary(s, ListSessionsProcedure, s.listSessions, opts))
	mux.Handle(AddPackageProcedure, unary(s, AddPackageProcedure, s.addPackage, opts))
	mux.Handle(DeletePackageProcedure, unary(s, DeletePackageProcedure, s.deletePackage, opts))
	mux.Handle(ListPackagesProcedure, unary(s, ListPackagesProcedure, s.listPackages, opts))
	mux.Handle(RecordPaymentProcedure, unary(s, RecordPaymentProcedure, s.recordPayment, opts))
	mux.Handle(ListPaymentsProcedure, unary(s, ListPaymentsProcedure, s.listPayments, opts))
	mux.Handle(GetFinanceProcedure, unary(s, GetFinanceProcedure, s.getFinance, opts))
	mux.Handle(GetCalendarProcedure, unary(s, GetCalendarProcedure, s.getCalendar, opts))
	mux.Handle(GetMonthlyReportProcedure, unary(s, GetMonthlyReportProcedure, s.getMonthlyReport, opts))
	mux.Handle(ExportProcedure, unary(s, ExportProcedure, s.export, opts))
	mux.Handle(ImportProcedure, unary(s, ImportProcedure, s.importDocument, opts))
	mux.Handle(GetStatsProcedure, unary(s, GetStatsProcedure, s.getStats, opts))
	mux.Handle(FlushProcedure, unary(s, FlushProcedure, s.flush, opts))

	return "/" + LedgerServiceName + "/", mux
}

// Clients

func (s *LedgerService) addClient(ctx context.Context, store *ledger.Store, req *AddClientRequest) (*ClientResponse, error) {
	c, err := store.AddClient(ctx, ledger.ClientInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Complaints: req.Complaints,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &ClientResponse{Client: c}, nil
}

func (s *LedgerService) getClient(_ context.Context, store *ledger.Store, req *ClientRequest) (*ClientDetailResponse, error) {
	view := store.View()
	i := view.FindClient(req.ClientID)
	if i < 0 {
		return nil, &ledger.NotFoundError{Kind: "client", ID: req.ClientID}
	}
	summary, _ := calculator.SummarizeClient(view, req.ClientID)

	res := &ClientDetailResponse{
		Client:   view.Clients[i],
		Summary:  toSummary(summary),
		Sessions: []models.Session{},
		Packages: []models.Package{},
		Payments: []models.Payment{},
	}
	for _, x := range view.Sessions {
		if x.ClientID == req.ClientID {
			res.Sessions = append(res.Sessions, x)
		}
	}
	for _, x := range view.Packages {
		if x.ClientID == req.ClientID {
			res.Packages = append(res.Packages, x)
		}
	}
	for _, x := range view.Payments {
		if x.ClientID == req.ClientID {
			res.Payments = append(res.Payments, x)
		}
	}
	return res, nil
}

func (s *LedgerService) listClients(_ context.Context, store *ledger.Store, req *ListClientsRequest) (*ListClientsResponse, error) {
	view := store.View()
	summaries := calculator.SummarizeClients(view)
	query := strings.ToLower(strings.TrimSpace(req.Query))

	res := &ListClientsResponse{Clients: []ClientRow{}}
	for i, c := range view.Clients {
		if req.Status != "" && c.Status != req.Status {
			continue
		}
		if query != "" && !matches(c, query) {
			continue
		}
		res.Clients = append(res.Clients, ClientRow{Client: c, Summary: toSummary(summaries[i])})
	}
	return res, nil
}

func matches(c models.Client, query string) bool {
	for _, field := range []string{c.Name, c.Phone, c.Email} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func (s *LedgerService) toggleClientStatus(ctx context.Context, store *ledger.Store, req *ClientRequest) (*ClientResponse, error) {
	c, err := store.ToggleClientStatus(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	return &ClientResponse{Client: c}, nil
}

func (s *LedgerService) addClientMessage(ctx context.Context, store *ledger.Store, req *AddClientMessageRequest) (*MessageResponse, error) {
	msg, err := store.AddClientMessage(ctx, req.ClientID, req.Text)
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: msg}, nil
}

func (s *LedgerService) deleteClient(ctx context.Context, store *ledger.Store, req *ClientRequest) (*Empty, error) {
	if err := store.DeleteClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// Sessions

func (s *LedgerService) recordSession(ctx context.Context, store *ledger.Store, req *RecordSessionRequest) (*SessionResponse, error) {
	sess, err := store.RecordSession(ctx, ledger.SessionInput{
		ClientID:        req.ClientID,
		Date:            req.Date,
		Time:            req.Time,
		Type:            req.Type,
		DurationMinutes: req.Duration,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &SessionResponse{Session: sess}, nil
}

func (s *LedgerService) deleteSession(ctx context.Context, store *ledger.Store, req *SessionRequest) (*Empty, error) {
	if err := store.DeleteSession(ctx, req.SessionID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *LedgerService) listSessions(_ context.Context, store *ledger.Store, req *ClientRequest) (*SessionsResponse, error) {
	if _, err := store.Client(req.ClientID); err != nil {
		return nil, err
	}
	return &SessionsResponse{Sessions: store.SessionsForClient(req.ClientID)}, nil
}

// Packages and payments

func (s *LedgerService) addPackage(ctx context.Context, store *ledger.Store, req *AddPackageRequest) (*PackageResponse, error) {
	pkg, err := store.AddPackage(ctx, ledger.PackageInput{
		ClientID:      req.ClientID,
		Name:          req.Name,
		TotalSessions: req.TotalSessions,
		Price:         req.Price,
		PaidAmount:    req.PaidAmount,
		StartDate:     req.StartDate,
		Method:        req.Method,
	})
	if err != nil {
		return nil, err
	}
	return &PackageResponse{Package: pkg, UsedSessions: pkg.UsedSessions()}, nil
}

func (s *LedgerService) deletePackage(ctx context.Context, store *ledger.Store, req *PackageRequest) (*Empty, error) {
	if err := store.DeletePackage(ctx, req.PackageID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *LedgerService) listPackages(_ context.Context, store *ledger.Store, req *ClientRequest) (*PackagesResponse, error) {
	if _, err := store.Client(req.ClientID); err != nil {
		return nil, err
	}
	return &PackagesResponse{Packages: store.PackagesForClient(req.ClientID)}, nil
}

func (s *LedgerService) recordPayment(ctx context.Context, store *ledger.Store, req *RecordPaymentRequest) (*PaymentResponse, error) {
	payment, err := store.RecordPayment(ctx, ledger.PaymentInput{
		PackageID: req.PackageID,
		Amount:    req.Amount,
		Date:      req.Date,
		Method:    req.Method,
		Note:      req.Note,
	})
	if err != nil {
		return nil, err
	}
	pkg, err := store.Package(payment.PackageID)
	if err != nil {
		return nil, err
	}
	return &PaymentResponse{Payment: payment, Package: pkg, UsedSessions: pkg.UsedSessions()}, nil
}

func (s *LedgerService) listPayments(_ context.Context, store *ledger.Store, req *PackageRequest) (*PaymentsResponse, error) {
	if _, err := store.Package(req.PackageID); err != nil {
		return nil, err
	}
	return &PaymentsResponse{Payments: store.PaymentsForPackage(req.PackageID)}, nil
}

// Aggregations

func (s *LedgerService) getFinance(_ context.Context, store *ledger.Store, _ *Empty) (*FinanceResponse, error) {
	view := store.View()
	f := calculator.Summarize(view, s.now())

	res := &FinanceResponse{
		MonthlyIncome:     f.MonthlyIncome,
		TotalIncome:       f.TotalIncome,
		Outstanding:       f.Outstanding,
		SessionsThisMonth: f.SessionsThisMonth,
		TotalClients:      f.TotalClients,
		TotalSessions:     f.TotalSessions,
		ActivePackages:    f.ActivePackages,
		RecentPayments:    []PaymentRow{},
	}
	for _, row := range calculator.RecentPayments(view, calculator.DefaultRecentPayments) {
		res.RecentPayments = append(res.RecentPayments, PaymentRow{
			Payment:     row.Payment,
			ClientName:  row.ClientName,
			PackageName: row.PackageName,
		})
	}
	return res, nil
}

func (s *LedgerService) getCalendar(_ context.Context, store *ledger.Store, req *CalendarRequest) (*CalendarResponse, error) {
	now := s.now()
	year, month := req.Year, time.Month(req.Month)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	if month < time.January || month > time.December {
		return nil, &ledger.ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}

	m := calculator.Calendar(store.View(), year, month)
	res := &CalendarResponse{Year: m.Year, Month: int(m.Month), Days: make([]CalendarDay, len(m.Days)), Total: m.Total()}
	if busiest, ok := m.Busiest(); ok {
		res.BusiestDay = busiest.Date
	}
	for i, d := range m.Days {
		day := CalendarDay{Date: d.Date, Sessions: make([]CalendarEntry, len(d.Entries))}
		for j, e := range d.Entries {
			day.Sessions[j] = CalendarEntry{Session: e.Session, ClientName: e.ClientName}
		}
		res.Days[i] = day
	}
	return res, nil
}

func (s *LedgerService) getMonthlyReport(_ context.Context, store *ledger.Store, _ *Empty) (*MonthlyReportResponse, error) {
	r := calculator.Monthly(store.View(), s.now(), calculator.DefaultTopClients)
	return &MonthlyReportResponse{
		From:              r.From,
		To:                r.To,
		TotalSessions:     r.TotalSessions,
		TotalIncome:       r.TotalIncome,
		SessionsByType:    r.SessionsByType,
		TopClients:        r.TopClients,
		AvgSessionsPerDay: r.AvgSessionsPerDay,
	}, nil
}

// Snapshots

func (s *LedgerService) export(_ context.Context, store *ledger.Store, _ *Empty) (*ExportResponse, error) {
	doc := snapshot.Export(store, s.now())
	s.logger.Info("Ledger exported", "scope", store.Scope(), "records", doc.Stats().Total())
	return &ExportResponse{Document: doc}, nil
}

func (s *LedgerService) importDocument(ctx context.Context, store *ledger.Store, req *ImportRequest) (*ImportResponse, error) {
	mode := req.Mode
	if mode == "" {
		mode = snapshot.Merge
	}
	if _, err := snapshot.ParseMode(string(mode)); err != nil {
		return nil, &snapshot.FormatError{Reason: "unknown mode", Err: err}
	}

	res, err := snapshot.Import(ctx, store, req.Document, mode)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Ledger imported", "scope", store.Scope(), "mode", mode, "imported", res.Imported, "skipped", res.Skipped)
	return &ImportResponse{Result: res}, nil
}

func (s *LedgerService) getStats(_ context.Context, store *ledger.Store, _ *Empty) (*StatsResponse, error) {
	return &StatsResponse{Stats: snapshot.StatsOf(store.View()), Dirty: store.Dirty()}, nil
}

func (s *LedgerService) flush(ctx context.Context, store *ledger.Store, _ *Empty) (*Empty, error) {
	if err := store.Flush(ctx); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}
