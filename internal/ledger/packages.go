package ledger

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// PackageInput holds the fields of a new package.
type PackageInput struct {
	ClientID      string
	Name          string
	TotalSessions int
	Price         decimal.Decimal

	// PaidAmount is paid up front and recorded as the package's initial
	// payment.
	PaidAmount decimal.Decimal

	// StartDate defaults to today.
	StartDate string

	// Method of the initial payment, defaulting to DefaultPaymentMethod.
	Method string
}

// AddPackage creates an active package with all of its sessions remaining.
// A positive PaidAmount is backed by an initial payment dated on the
// package's start date.
func (s *Store) AddPackage(ctx context.Context, in PackageInput) (models.Package, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return models.Package{}, invalid("name", "required")
	case in.TotalSessions <= 0:
		return models.Package{}, invalid("totalSessions", "must be positive, got %d", in.TotalSessions)
	case in.Price.IsNegative():
		return models.Package{}, invalid("price", "must not be negative")
	case in.PaidAmount.IsNegative():
		return models.Package{}, invalid("paidAmount", "must not be negative")
	case in.PaidAmount.GreaterThan(in.Price):
		return models.Package{}, invalid("paidAmount", "%s exceeds price %s", in.PaidAmount, in.Price)
	}
	if err := s.checkAmount("price", in.Price); err != nil {
		return models.Package{}, err
	}
	if err := s.checkAmount("paidAmount", in.PaidAmount); err != nil {
		return models.Package{}, err
	}

	start := strings.TrimSpace(in.StartDate)
	if start != "" {
		if _, err := models.ParseDate(start); err != nil || len(start) != len(models.DateLayout) {
			return models.Package{}, invalid("startDate", "expected YYYY-MM-DD, got %q", start)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.FindClient(in.ClientID) < 0 {
		return models.Package{}, &NotFoundError{Kind: "client", ID: in.ClientID}
	}
	if start == "" {
		start = s.today()
	}

	now := s.timestamp()
	pkg := models.Package{
		ID:                s.newID(models.PrefixPackage),
		ClientID:          in.ClientID,
		Name:              name,
		TotalSessions:     in.TotalSessions,
		RemainingSessions: in.TotalSessions,
		Price:             in.Price,
		PaidAmount:        in.PaidAmount,
		StartDate:         start,
		Status:            models.PackageActive,
		CreatedAt:         now,
	}
	s.data.Packages = append(s.data.Packages, pkg)
	touched := []storage.Collection{storage.Packages}

	if in.PaidAmount.IsPositive() {
		s.data.Payments = append(s.data.Payments, models.Payment{
			ID:        s.newID(models.PrefixPayment),
			PackageID: pkg.ID,
			ClientID:  pkg.ClientID,
			Amount:    in.PaidAmount,
			Date:      start,
			Method:    methodOrDefault(in.Method),
			Note:      InitialPaymentNote,
			CreatedAt: now,
		})
		s.recomputeTotalPaid(pkg.ClientID)
		touched = append(touched, storage.Payments, storage.Clients)
	}

	s.logger.Info("Package added",
		"scope", s.scope,
		"package_id", pkg.ID,
		"client_id", pkg.ClientID,
		"sessions", pkg.TotalSessions,
		"price", pkg.Price.String(),
		"paid", pkg.PaidAmount.String(),
	)
	return pkg, s.persist(ctx, touched...)
}

// Package returns a copy of the package with id.
func (s *Store) Package(id string) (models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindPackage(id)
	if i < 0 {
		return models.Package{}, &NotFoundError{Kind: "package", ID: id}
	}
	return s.data.Packages[i], nil
}

// PackagesForClient returns the client's packages in creation order.
func (s *Store) PackagesForClient(clientID string) []models.Package {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Package{}
	for _, p := range s.data.Packages {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// DeletePackage removes a package and its payments. Sessions already
// recorded against it are kept.
func (s *Store) DeletePackage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindPackage(id)
	if i < 0 {
		return &NotFoundError{Kind: "package", ID: id}
	}
	clientID := s.data.Packages[i].ClientID

	s.data.Packages = slices.Delete(s.data.Packages, i, i+1)
	s.data.Payments = slices.DeleteFunc(s.data.Payments, func(p models.Payment) bool { return p.PackageID == id })
	s.recomputeTotalPaid(clientID)

	s.logger.Info("Package deleted", "scope", s.scope, "package_id", id, "client_id", clientID)
	return s.persist(ctx, storage.Packages, storage.Payments, storage.Clients)
}

// PaymentInput holds the fields of a payment to record.
type PaymentInput struct {
	PackageID string
	Amount    decimal.Decimal

	// Date defaults to today.
	Date string

	// Method defaults to DefaultPaymentMethod.
	Method string
	Note   string
}

// RecordPayment records money received against a package. The amount must
// be positive and must not exceed the package's outstanding amount.
func (s *Store) RecordPayment(ctx context.Context, in PaymentInput) (models.Payment, error) {
	if !in.Amount.IsPositive() {
		return models.Payment{}, invalid("amount", "must be positive")
	}
	if err := s.checkAmount("amount", in.Amount); err != nil {
		return models.Payment{}, err
	}
	date := strings.TrimSpace(in.Date)
	if date != "" {
		if _, err := models.ParseDate(date); err != nil || len(date) != len(models.DateLayout) {
			return models.Payment{}, invalid("date", "expected YYYY-MM-DD, got %q", date)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindPackage(in.PackageID)
	if i < 0 {
		return models.Payment{}, &NotFoundError{Kind: "package", ID: in.PackageID}
	}
	pkg := &s.data.Packages[i]
	if outstanding := pkg.Outstanding(); in.Amount.GreaterThan(outstanding) {
		return models.Payment{}, &OverpaymentError{
			PackageID:   pkg.ID,
			Amount:      in.Amount,
			Outstanding: outstanding,
		}
	}
	if date == "" {
		date = s.today()
	}

	payment := models.Payment{
		ID:        s.newID(models.PrefixPayment),
		PackageID: pkg.ID,
		ClientID:  pkg.ClientID,
		Amount:    in.Amount,
		Date:      date,
		Method:    methodOrDefault(in.Method),
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: s.timestamp(),
	}
	s.data.Payments = append(s.data.Payments, payment)
	pkg.PaidAmount = pkg.PaidAmount.Add(in.Amount)

	if c := s.data.FindClient(pkg.ClientID); c >= 0 {
		s.data.Clients[c].TotalPaid = s.data.Clients[c].TotalPaid.Add(in.Amount)
	}

	s.logger.Info("Payment recorded",
		"scope", s.scope,
		"payment_id", payment.ID,
		"package_id", pkg.ID,
		"amount", in.Amount.String(),
		"outstanding", pkg.Outstanding().String(),
	)
	return payment, s.persist(ctx, storage.Payments, storage.Packages, storage.Clients)
}

// PaymentsForPackage returns the package's payments in recording order.
func (s *Store) PaymentsForPackage(packageID string) []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Payment{}
	for _, p := range s.data.Payments {
		if p.PackageID == packageID {
			out = append(out, p)
		}
	}
	return out
}

func methodOrDefault(method string) string {
	if m := strings.TrimSpace(method); m != "" {
		return m
	}
	return DefaultPaymentMethod
}
