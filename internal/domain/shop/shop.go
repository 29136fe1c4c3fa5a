// Package shop contains the Shop bounded context.
// A Shop is one installed store on the commerce platform. Its credential is
// used for every bulk-export request made on its behalf, and its connection
// status gates whether outstanding export jobs are still worth polling.
package shop

import (
	"strings"
	"time"

	"github.com/shopsight/backend/internal/domain/shared"
)

// Status represents the connection status of a shop
type Status string

const (
	// StatusConnected means the install/auth flow completed and the credential is usable
	StatusConnected Status = "connected"
	// StatusDisconnected means the shop uninstalled or revoked access
	StatusDisconnected Status = "disconnected"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	return s == StatusConnected || s == StatusDisconnected
}

// Shop is an installed store on the commerce platform
type Shop struct {
	shared.BaseAggregateRoot
	Domain         string     `json:"domain"`
	Name           string     `json:"name"`
	AccessToken    string     `json:"-"`
	Status         Status     `json:"status"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// NewShop creates a connected shop from a completed install flow
func NewShop(domain, name, accessToken string) (*Shop, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, shared.NewDomainError("INVALID_SHOP_DOMAIN", "Shop domain cannot be empty")
	}
	if accessToken == "" {
		return nil, shared.NewDomainError("INVALID_CREDENTIAL", "Shop access token cannot be empty")
	}

	return &Shop{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Domain:            domain,
		Name:              name,
		AccessToken:       accessToken,
		Status:            StatusConnected,
		ConnectedAt:       time.Now(),
	}, nil
}

// IsConnected returns true if the shop credential is usable
func (s *Shop) IsConnected() bool {
	return s.Status == StatusConnected
}

// Disconnect marks the shop as uninstalled. Outstanding export jobs for the
// shop must be abandoned by the caller.
func (s *Shop) Disconnect() error {
	if s.Status == StatusDisconnected {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = StatusDisconnected
	s.DisconnectedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()
	return nil
}

// Reconnect restores a disconnected shop with a fresh credential
func (s *Shop) Reconnect(accessToken string) error {
	if accessToken == "" {
		return shared.NewDomainError("INVALID_CREDENTIAL", "Shop access token cannot be empty")
	}
	now := time.Now()
	s.AccessToken = accessToken
	s.Status = StatusConnected
	s.ConnectedAt = now
	s.DisconnectedAt = nil
	s.UpdatedAt = now
	s.IncrementVersion()
	return nil
}
