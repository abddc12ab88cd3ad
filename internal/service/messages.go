package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/calculator"
	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/snapshot"
)

// Empty is the request or response of procedures without fields.
type Empty struct{}

// Clients

type AddClientRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	Complaints string `json:"complaints,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type ClientRequest struct {
	ClientID string `json:"clientId"`
}

type ClientResponse struct {
	Client models.Client `json:"client"`
}

// ListClientsRequest filters clients. Query matches name, phone or email,
// case-insensitively; Status restricts to active or frozen clients.
type ListClientsRequest struct {
	Query  string              `json:"query,omitempty"`
	Status models.ClientStatus `json:"status,omitempty"`
}

type ClientRow struct {
	Client  models.Client `json:"client"`
	Summary Summary       `json:"summary"`
}

type ListClientsResponse struct {
	Clients []ClientRow `json:"clients"`
}

type ClientDetailResponse struct {
	Client   models.Client    `json:"client"`
	Summary  Summary          `json:"summary"`
	Sessions []models.Session `json:"sessions"`
	Packages []models.Package `json:"packages"`
	Payments []models.Payment `json:"payments"`
}

// Summary is the per-client aggregate.
type Summary struct {
	SessionCount      int             `json:"sessionCount"`
	PackageValue      decimal.Decimal `json:"packageValue"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	HasActivePackage  bool            `json:"hasActivePackage"`
	RemainingSessions int             `json:"remainingSessions"`
}

func toSummary(s calculator.ClientSummary) Summary {
	return Summary{
		SessionCount:      s.SessionCount,
		PackageValue:      s.PackageValue,
		TotalPaid:         s.TotalPaid,
		Outstanding:       s.Outstanding,
		HasActivePackage:  s.HasActivePackage,
		RemainingSessions: s.RemainingSessions,
	}
}

type AddClientMessageRequest struct {
	ClientID string `json:"clientId"`
	Text     string `json:"text"`
}

type MessageResponse struct {
	Message models.Message `json:"message"`
}

// Sessions

type RecordSessionRequest struct {
	ClientID string `json:"clientId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Type     string `json:"type"`
	Duration int    `json:"duration,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type SessionResponse struct {
	Session models.Session `json:"session"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type SessionsResponse struct {
	Sessions []models.Session `json:"sessions"`
}

// Packages and payments

type AddPackageRequest struct {
	ClientID      string          `json:"clientId"`
	Name          string          `json:"name"`
	TotalSessions int             `json:"totalSessions"`
	Price         decimal.Decimal `json:"price"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	StartDate     string          `json:"startDate,omitempty"`
	Method        string          `json:"method,omitempty"`
}

type PackageRequest struct {
	PackageID string `json:"packageId"`
}

type PackageResponse struct {
	Package      models.Package `json:"package"`
	UsedSessions int            `json:"usedSessions"`
}

type PackagesResponse struct {
	Packages []models.Package `json:"packages"`
}

type RecordPaymentRequest struct {
	PackageID string          `json:"packageId"`
	Amount    decimal.Decimal `json:"amount"`
	Date      string          `json:"date,omitempty"`
	Method    string          `json:"method,omitempty"`
	Note      string          `json:"note,omitempty"`
}

type PaymentResponse struct {
	Payment      models.Payment `json:"payment"`
	Package      models.Package `json:"package"`
	UsedSessions int            `json:"usedSessions"`
}

type PaymentsResponse struct {
	Payments []models.Payment `json:"payments"`
}

// Aggregations

type FinanceResponse struct {
	MonthlyIncome     decimal.Decimal `json:"monthlyIncome"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	SessionsThisMonth int             `json:"sessionsThisMonth"`
	TotalClients      int             `json:"totalClients"`
	TotalSessions     int             `json:"totalSessions"`
	ActivePackages    int             `json:"activePackages"`
	RecentPayments    []PaymentRow    `json:"recentPayments"`
}

type PaymentRow struct {
	models.Payment
	ClientName  string `json:"clientName"`
	PackageName string `json:"packageName"`
}

// CalendarRequest selects a month; zero values select the current one.
type CalendarRequest struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

type CalendarDay struct {
	Date     string          `json:"date"`
	Sessions []CalendarEntry `json:"sessions"`
}

type CalendarEntry struct {
	models.Session
	ClientName string `json:"clientName"`
}

type CalendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
	Total int           `json:"total"`
	// BusiestDay is empty when the month has no sessions.
	BusiestDay string `json:"busiestDay,omitempty"`
}

type MonthlyReportResponse struct {
	From              string                   `json:"from"`
	To                string                   `json:"to"`
	TotalSessions     int                      `json:"totalSessions"`
	TotalIncome       decimal.Decimal          `json:"totalIncome"`
	SessionsByType    map[string]int           `json:"sessionsByType"`
	TopClients        []calculator.ClientCount `json:"topClients"`
	AvgSessionsPerDay decimal.Decimal          `json:"avgSessionsPerDay"`
}

// Snapshots

type ExportResponse struct {
	Document *snapshot.Document `json:"document"`
}

type ImportRequest struct {
	Mode     snapshot.Mode      `json:"mode"`
	Document *snapshot.Document `json:"document"`
}

type ImportResponse struct {
	Result snapshot.Result `json:"result"`
}

type StatsResponse struct {
	Stats snapshot.Stats `json:"stats"`
	Dirty bool           `json:"dirty"`
}

// Auth

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type UserResponse struct {
	User User `json:"user"`
}

func toUser(u *models.User) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   time.Unix(u.CreatedAt, 0).UTC(),
	}
}
