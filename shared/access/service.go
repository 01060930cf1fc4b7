// Package access decides which callers may use admin operations.
package access

import (
	"context"

	"venuepark/internal/apperr"

	"github.com/rs/zerolog"
)

// Directory reports whether a caller holds the admin flag.
type Directory interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Service implements the admin checks used by the booking and parking engines.
type Service struct {
	directory Directory
	logger    zerolog.Logger
}

// NewService creates a new access control service.
func NewService(directory Directory, logger zerolog.Logger) *Service {
	return &Service{
		directory: directory,
		logger:    logger.With().Str("component", "access").Logger(),
	}
}

// IsAdmin reports the caller's admin flag. Unknown callers are not admins.
func (s *Service) IsAdmin(ctx context.Context, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	ok, err := s.directory.IsAdmin(ctx, callerID)
	if err != nil {
		return false, apperr.Store("admin lookup", err)
	}
	return ok, nil
}

// RequireAdmin fails with Unauthorized unless the caller is an admin.
func (s *Service) RequireAdmin(ctx context.Context, callerID string) error {
	ok, err := s.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn().Str("caller_id", callerID).Msg("admin operation denied")
		return apperr.Unauthorized("admin privileges required")
	}
	return nil
}

// RequireOwnerOrAdmin lets the record owner through, then falls back to the admin check.
func (s *Service) RequireOwnerOrAdmin(ctx context.Context, callerID, ownerID string) error {
	if callerID != "" && callerID == ownerID {
		return nil
	}
	ok, err := s.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unauthorized("not allowed to access this record")
	}
	return nil
}
