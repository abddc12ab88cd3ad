package ledger

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/physioledger/internal/models"
	"github.com/mmynk/physioledger/internal/storage"
)

// ClientInput holds the fields of a new client.
type ClientInput struct {
	Name       string
	Phone      string
	Email      string
	Complaints string
	Notes      string
}

// AddClient creates an active client with no messages and nothing paid.
// Name and phone are required.
func (s *Store) AddClient(ctx context.Context, in ClientInput) (models.Client, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" {
		return models.Client{}, invalid("name", "required")
	}
	if phone == "" {
		return models.Client{}, invalid("phone", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client := models.Client{
		ID:         s.newID(models.PrefixClient),
		Name:       name,
		Phone:      phone,
		Email:      strings.TrimSpace(in.Email),
		Complaints: strings.TrimSpace(in.Complaints),
		Notes:      strings.TrimSpace(in.Notes),
		Status:     models.ClientActive,
		Messages:   []models.Message{},
		CreatedAt:  s.timestamp(),
		TotalPaid:  decimal.Zero,
	}
	s.data.Clients = append(s.data.Clients, client)

	s.logger.Info("Client added", "scope", s.scope, "client_id", client.ID)
	return cloneClient(client), s.persist(ctx, storage.Clients)
}

// Client returns a copy of the client with id.
func (s *Store) Client(id string) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindClient(id)
	if i < 0 {
		return models.Client{}, &NotFoundError{Kind: "client", ID: id}
	}
	return cloneClient(s.data.Clients[i]), nil
}

// ToggleClientStatus switches a client between active and frozen.
func (s *Store) ToggleClientStatus(ctx context.Context, clientID string) (models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindClient(clientID)
	if i < 0 {
		return models.Client{}, &NotFoundError{Kind: "client", ID: clientID}
	}

	c := &s.data.Clients[i]
	if c.Frozen() {
		c.Status = models.ClientActive
	} else {
		c.Status = models.ClientFrozen
	}

	s.logger.Info("Client status changed", "scope", s.scope, "client_id", clientID, "status", c.Status)
	return cloneClient(*c), s.persist(ctx, storage.Clients)
}

// AddClientMessage appends a message to a client's log.
func (s *Store) AddClientMessage(ctx context.Context, clientID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, invalid("text", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindClient(clientID)
	if i < 0 {
		return models.Message{}, &NotFoundError{Kind: "client", ID: clientID}
	}

	msg := models.Message{
		ID:        s.newID(models.PrefixMessage),
		Text:      text,
		Timestamp: s.timestamp(),
	}
	c := &s.data.Clients[i]
	c.Messages = append(c.Messages, msg)

	s.logger.Info("Client message added", "scope", s.scope, "client_id", clientID, "message_id", msg.ID)
	return msg, s.persist(ctx, storage.Clients)
}

// DeleteClient removes a client together with all of its sessions,
// packages and payments.
func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.data.FindClient(clientID)
	if i < 0 {
		return &NotFoundError{Kind: "client", ID: clientID}
	}

	owned := func(id string) bool { return id == clientID }
	s.data.Clients = slices.Delete(s.data.Clients, i, i+1)
	s.data.Sessions = slices.DeleteFunc(s.data.Sessions, func(x models.Session) bool { return owned(x.ClientID) })
	s.data.Packages = slices.DeleteFunc(s.data.Packages, func(x models.Package) bool { return owned(x.ClientID) })
	s.data.Payments = slices.DeleteFunc(s.data.Payments, func(x models.Payment) bool { return owned(x.ClientID) })

	s.logger.Info("Client deleted", "scope", s.scope, "client_id", clientID)
	return s.persist(ctx, storage.Collections...)
}

// recomputeTotalPaid refreshes the TotalPaid cache of one client.
func (s *Store) recomputeTotalPaid(clientID string) {
	i := s.data.FindClient(clientID)
	if i < 0 {
		return
	}
	total := decimal.Zero
	for _, p := range s.data.Payments {
		if p.ClientID == clientID {
			total = total.Add(p.Amount)
		}
	}
	s.data.Clients[i].TotalPaid = total
}

func cloneClient(c models.Client) models.Client {
	c.Messages = slices.Clone(c.Messages)
	if c.Messages == nil {
		c.Messages = []models.Message{}
	}
	return c
}
