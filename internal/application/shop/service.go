// Package shop handles the shop connection lifecycle: completing installs,
// reconnects, and the disconnect flow that abandons outstanding export jobs.
package shop

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
)

// JobAbandoner abandons the outstanding export jobs of a shop.
// Implemented by the export application service.
type JobAbandoner interface {
	AbandonShopJobs(ctx context.Context, shopID uuid.UUID) (int64, error)
}

// Service manages shop connections
type Service struct {
	shops  shop.Repository
	jobs   JobAbandoner
	logger *zap.Logger
}

// NewService creates a new shop Service
func NewService(shops shop.Repository, jobs JobAbandoner, logger *zap.Logger) *Service {
	return &Service{
		shops:  shops,
		jobs:   jobs,
		logger: logger,
	}
}

// ConnectResult reports the outcome of a Connect call
type ConnectResult struct {
	Shop *shop.Shop
	// New is true when this install created the shop rather than
	// refreshing the credential of a known one
	New bool
}

// Connect completes an install flow. A shop seen for the first time is
// created; a known shop gets its credential refreshed, reconnecting it if it
// had been disconnected.
func (s *Service) Connect(ctx context.Context, domain, name, accessToken string) (*ConnectResult, error) {
	existing, err := s.shops.FindByDomain(ctx, domain)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := existing.Reconnect(accessToken); err != nil {
			return nil, err
		}
		if name != "" {
			existing.Name = name
		}
		if err := s.shops.Save(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("shop reconnected",
			zap.String("shop_id", existing.ID.String()),
			zap.String("domain", existing.Domain),
		)
		return &ConnectResult{Shop: existing}, nil
	}

	sh, err := shop.NewShop(domain, name, accessToken)
	if err != nil {
		return nil, err
	}
	if err := s.shops.Save(ctx, sh); err != nil {
		return nil, err
	}

	s.logger.Info("shop connected",
		zap.String("shop_id", sh.ID.String()),
		zap.String("domain", sh.Domain),
	)
	return &ConnectResult{Shop: sh, New: true}, nil
}

// Disconnect marks a shop disconnected and abandons its outstanding export
// jobs so the scheduler stops polling them.
func (s *Service) Disconnect(ctx context.Context, shopID uuid.UUID) (*shop.Shop, error) {
	sh, err := s.shops.FindByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if err := sh.Disconnect(); err != nil {
		return nil, err
	}
	if err := s.shops.Save(ctx, sh); err != nil {
		return nil, err
	}

	abandoned, err := s.jobs.AbandonShopJobs(ctx, shopID)
	if err != nil {
		// The shop is already disconnected; job abandonment failing only
		// delays cleanup until the jobs age out
		s.logger.Error("failed to abandon jobs for disconnected shop",
			zap.String("shop_id", shopID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("shop disconnected",
		zap.String("shop_id", sh.ID.String()),
		zap.String("domain", sh.Domain),
		zap.Int64("jobs_abandoned", abandoned),
	)
	return sh, nil
}

// Get returns one shop by id
func (s *Service) Get(ctx context.Context, shopID uuid.UUID) (*shop.Shop, error) {
	return s.shops.FindByID(ctx, shopID)
}

// ListConnected returns all currently connected shops
func (s *Service) ListConnected(ctx context.Context) ([]*shop.Shop, error) {
	return s.shops.FindConnected(ctx)
}
