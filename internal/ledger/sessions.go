package ledger

import (
	"context"
	"slices"
	"strings"

	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// SessionInput holds the fields of a session to record.
type SessionInput struct {
	ClientID string
	Date     string
	Time     string
	Type     string

	// DurationMinutes defaults to models.DefaultSessionMinutes when zero.
	DurationMinutes int
	Notes           string
}

// RecordSession creates a session and consumes one session of the client's
// active package, if any. The package is completed when its last session is
// consumed. With several active packages the earliest created one is used.
// Sessions are recorded even when the client has no active package.
func (s *Store) RecordSession(ctx context.Context, in SessionInput) (models.Session, error) {
	date := strings.TrimSpace(in.Date)
	clock := strings.TrimSpace(in.Time)
	kind := strings.TrimSpace(in.Type)

	switch {
	case date == "":
		return models.Session{}, invalid("date", "required")
	case clock == "":
		return models.Session{}, invalid("time", "required")
	case kind == "":
		return models.Session{}, invalid("type", "required")
	case in.DurationMinutes < 0:
		return models.Session{}, invalid("duration", "must not be negative")
	}
	if _, err := models.ParseDate(date); err != nil || len(date) != len(models.DateLayout) {
		return models.Session{}, invalid("date", "expected YYYY-MM-DD, got %q", date)
	}
	if _, err := models.ParseTime(clock); err != nil {
		return models.Session{}, invalid("time", "expected HH:MM, got %q", clock)
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = models.DefaultSessionMinutes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.FindClient(in.ClientID) < 0 {
		return models.Session{}, &NotFoundError{Kind: "client", ID: in.ClientID}
	}

	session := models.Session{
		ID:              s.newID(models.PrefixSession),
		ClientID:        in.ClientID,
		Date:            date,
		Time:            clock,
		Type:            kind,
		DurationMinutes: duration,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       s.timestamp(),
	}
	s.data.Sessions = append(s.data.Sessions, session)
	touched := []storage.Collection{storage.Sessions}

	if i := s.activePackage(in.ClientID); i >= 0 {
		p := &s.data.Packages[i]
		p.RemainingSessions--
		if p.RemainingSessions == 0 {
			p.Status = models.PackageCompleted
		}
		touched = append(touched, storage.Packages)
		s.logger.Info("Package session consumed",
			"scope", s.scope,
			"package_id", p.ID,
			"remaining", p.RemainingSessions,
			"status", p.Status,
		)
	}

	s.logger.Info("Session recorded", "scope", s.scope, "session_id", session.ID, "client_id", in.ClientID)
	return session, s.persist(ctx, touched...)
}

// activePackage returns the index of the client's earliest created active
// package with sessions left, or -1.
func (s *Store) activePackage(clientID string) int {
	best := -1
	for i, p := range s.data.Packages {
		if p.ClientID != clientID || !p.Active() || p.RemainingSessions <= 0 {
			continue
		}
		if best < 0 || p.CreatedAt.Before(s.data.Packages[best].CreatedAt) {
			best = i
		}
	}
	return best
}

// DeleteSession removes a session. Package counters are not restored.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindSession(id)
	if i < 0 {
		return &NotFoundError{Kind: "session", ID: id}
	}
	s.data.Sessions = slices.Delete(s.data.Sessions, i, i+1)

	s.logger.Info("Session deleted", "scope", s.scope, "session_id", id)
	return s.persist(ctx, storage.Sessions)
}

// SessionsForClient returns the client's sessions in recording order.
func (s *Store) SessionsForClient(clientID string) []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Session{}
	for _, x := range s.data.Sessions {
		if x.ClientID == clientID {
			out = append(out, x)
		}
	}
	return out
}
