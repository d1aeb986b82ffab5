// Package support files and tracks support tickets through the SOS GraphQL
// API.
package support

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

const ticketFields = `
                id
                title
                description
                status
                priority
                userEmail
                assignedTo
                createdAt
                updatedAt`

const listQuery = `query SupportTickets($first: Int) {
    tickets(first: $first) {
        edges {
            node {` + ticketFields + `
            }
        }
        total
    }
}`

const createMutation = `mutation CreateTicket($input: CreateSupportTicket!) {
    createSupportTicket(createSupportTicketInput: $input) {` + ticketFields + `
    }
}`

const updateMutation = `mutation UpdateTicket($ticketId: Int!, $updateSupportTicketInput: UpdateSupportTicket!) {
    updateSupportTicket(ticketId: $ticketId, updateSupportTicketInput: $updateSupportTicketInput) {
        message
    }
}`

const deleteMutation = `mutation DeleteSupportTicket($id: ID!) {
    deleteSupportTicket(id: $id) {
        success
    }
}`

const (
	DefaultListSize = 100
	// getListSize bounds the list Get scans since the API has no single-ticket query
	getListSize = 1000
)

// Ticket states known to the API
const (
	StatusOpen       = "OPEN"
	StatusInProgress = "IN_PROGRESS"
	StatusClosed     = "CLOSED"
)

// Priorities known to the API
var Priorities = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

const DefaultPriority = "MEDIUM"

// Ticket is a support ticket
type Ticket struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	UserEmail   string `json:"userEmail"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// flexID decodes integer and string ids alike
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// NormalizePriority upper-cases p and checks it is a known priority. An
// empty value means the default.
func NormalizePriority(p string) (string, error) {
	if p == "" {
		return DefaultPriority, nil
	}
	p = strings.ToUpper(p)
	for _, known := range Priorities {
		if p == known {
			return p, nil
		}
	}
	return "", vantage.Abortf("INVALID PRIORITY", "Invalid priority '%s'. Use one of: %s", p, strings.Join(Priorities, ", "))
}

// NormalizeStatus upper-cases s and checks it is a known status
func NormalizeStatus(s string) (string, error) {
	up := strings.ReplaceAll(strings.ToUpper(s), "-", "_")
	switch up {
	case StatusOpen, StatusInProgress, StatusClosed:
		return up, nil
	}
	return "", vantage.Abortf("INVALID STATUS", "Invalid status '%s'. Use one of: %s, %s, %s", s, StatusOpen, StatusInProgress, StatusClosed)
}

func ticketNumber(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return 0, vantage.Abortf("INVALID TICKET ID", "Ticket id must be a positive number, got '%s'.", id)
	}
	return n, nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Status   string
	Priority string
	Limit    int
}

// Service wraps the support ticket GraphQL operations
type Service struct {
	client     *api.Client
	graphqlURL string
}

func NewService(client *api.Client, graphqlURL string) *Service {
	return &Service{client: client, graphqlURL: graphqlURL}
}

// List returns tickets. Status and priority are filtered client side.
func (s *Service) List(ctx context.Context, filter Filter) ([]Ticket, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListSize
	}

	var out struct {
		Tickets struct {
			Edges []struct {
				Node Ticket `json:"node"`
			} `json:"edges"`
			Total int `json:"total"`
		} `json:"tickets"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, listQuery, map[string]interface{}{"first": limit}, &out); err != nil {
		return nil, err
	}

	result := make([]Ticket, 0, len(out.Tickets.Edges))
	for _, edge := range out.Tickets.Edges {
		t := edge.Node
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		result = append(result, t)
	}
	log.Debug("Listed support tickets", "count", len(result), "total", out.Tickets.Total)
	return result, nil
}

// Get finds a ticket by id
func (s *Service) Get(ctx context.Context, id string) (*Ticket, error) {
	all, err := s.List(ctx, Filter{Limit: getListSize})
	if err != nil {
		return nil, err
	}
	for i := range all {
		if string(all[i].ID) == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("ticket %q: %w", id, vantage.ErrNotFound)
}

// Create files a new ticket
func (s *Service) Create(ctx context.Context, title, description, priority string) (*Ticket, error) {
	if strings.TrimSpace(title) == "" {
		return nil, vantage.Abortf("TITLE REQUIRED", "A support ticket needs a title. Supply one with --title.")
	}
	if strings.TrimSpace(description) == "" {
		return nil, vantage.Abortf("DESCRIPTION REQUIRED", "A support ticket needs a description. Supply one with --description.")
	}
	priority, err := NormalizePriority(priority)
	if err != nil {
		return nil, err
	}

	var out struct {
		CreateSupportTicket *Ticket `json:"createSupportTicket"`
	}
	err = s.client.GraphQL(ctx, s.graphqlURL, createMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"title":       title,
			"description": description,
			"priority":    priority,
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.CreateSupportTicket == nil {
		return nil, vantage.Abortf("TICKET CREATION FAILED", "Failed to create support ticket: no response from server.")
	}
	return out.CreateSupportTicket, nil
}

// Update replaces the description of a ticket and returns the refreshed
// ticket. The API accepts no other changes.
func (s *Service) Update(ctx context.Context, id, description string) (*Ticket, error) {
	n, err := ticketNumber(id)
	if err != nil {
		return nil, err
	}

	var out struct {
		UpdateSupportTicket *struct {
			Message string `json:"message"`
		} `json:"updateSupportTicket"`
	}
	err = s.client.GraphQL(ctx, s.graphqlURL, updateMutation, map[string]interface{}{
		"ticketId":                 n,
		"updateSupportTicketInput": map[string]interface{}{"description": description},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.UpdateSupportTicket == nil {
		return nil, vantage.Abortf("TICKET UPDATE FAILED", "Failed to update support ticket '%s': no response from server.", id)
	}
	log.Debug("Updated support ticket", "id", id, "message", out.UpdateSupportTicket.Message)

	return s.Get(ctx, id)
}

// Delete removes a ticket
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := ticketNumber(id); err != nil {
		return err
	}

	var out struct {
		DeleteSupportTicket *struct {
			Success bool `json:"success"`
		} `json:"deleteSupportTicket"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, deleteMutation, map[string]interface{}{"id": id}, &out); err != nil {
		return err
	}
	if out.DeleteSupportTicket == nil || !out.DeleteSupportTicket.Success {
		return vantage.Abortf("TICKET DELETION FAILED", "The API did not delete support ticket '%s'.", id)
	}
	return nil
}
