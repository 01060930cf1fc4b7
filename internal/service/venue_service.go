package service

import (
	"context"
	"strings"

	"venuepark/internal/apperr"
	"venuepark/internal/config"
	"venuepark/internal/events"
	"venuepark/internal/models"
	"venuepark/internal/repository"
	"venuepark/internal/slots"
	"venuepark/shared/access"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VenueSummary is the venue header shown above a slot grid.
type VenueSummary struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	PriceUnit string  `json:"priceUnit"`
}

// VenueSlots pairs a venue summary with its annotated slots for one date.
type VenueSlots struct {
	Venue VenueSummary     `json:"venue"`
	Slots []slots.SlotInfo `json:"slots"`
}

// VenueService manages the venue catalog.
type VenueService struct {
	venues   repository.VenueRepository
	bookings *BookingService
	access   *access.Service
	events   events.Publisher
	deps     Deps
	logger   zerolog.Logger
}

func NewVenueService(d Deps, bookings *BookingService) *VenueService {
	d = d.withDefaults()
	return &VenueService{
		venues:   d.Venues,
		bookings: bookings,
		access:   d.Access,
		events:   d.Events,
		deps:     d,
		logger:   componentLogger(d.Logger, "venue"),
	}
}

// GetList returns enabled venues, optionally of one type.
func (s *VenueService) GetList(ctx context.Context, venueType string) ([]models.Venue, error) {
	list, err := s.venues.ListVenues(ctx, repository.VenueFilter{Type: strings.TrimSpace(venueType), EnabledOnly: true})
	if err != nil {
		return nil, translate(err, "venue", "list venues")
	}
	if list == nil {
		list = []models.Venue{}
	}
	return list, nil
}

func (s *VenueService) GetDetail(ctx context.Context, venueID string) (*models.Venue, error) {
	v, err := s.venues.GetVenue(ctx, venueID)
	if err != nil {
		return nil, translate(err, "venue", "load venue")
	}
	return v, nil
}

// GetTimeSlots returns the slot grid of an enabled venue.
func (s *VenueService) GetTimeSlots(ctx context.Context, venueID, date string) (*VenueSlots, error) {
	v, err := s.GetDetail(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !v.Enabled {
		return nil, apperr.InvalidState("venue is disabled")
	}
	grid, err := s.bookings.slotsFor(ctx, v, date)
	if err != nil {
		return nil, err
	}
	return &VenueSlots{
		Venue: VenueSummary{Name: v.Name, Price: v.Price, PriceUnit: v.PriceUnit},
		Slots: grid,
	}, nil
}

func (s *VenueService) Add(ctx context.Context, sess Session, v models.Venue) (*models.Venue, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	if err := validateVenue(&v); err != nil {
		return nil, err
	}
	now := s.deps.Clock()
	v.ID = uuid.NewString()
	v.Enabled = true
	v.SeedName = ""
	v.AdminModified = true
	v.CreateTime = now
	v.UpdateTime = now
	if err := s.venues.CreateVenue(ctx, &v); err != nil {
		return nil, translate(err, "venue", "create venue")
	}

	s.logger.Info().Str("request_id", sess.RequestID).Str("venue_id", v.ID).Str("name", v.Name).Msg("venue added")
	s.events.Publish(ctx, events.VenueChanged, &v)
	return &v, nil
}

func (s *VenueService) Update(ctx context.Context, sess Session, venueID string, patch models.VenuePatch) (*models.Venue, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	now := s.deps.Clock()
	updated, err := s.venues.UpdateVenue(ctx, venueID, func(v *models.Venue) error {
		patch.Apply(v)
		if err := validateVenue(v); err != nil {
			return err
		}
		v.AdminModified = true
		v.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "venue", "update venue")
	}

	s.logger.Info().Str("request_id", sess.RequestID).Str("venue_id", venueID).Msg("venue updated")
	s.events.Publish(ctx, events.VenueChanged, updated)
	return updated, nil
}

func (s *VenueService) Disable(ctx context.Context, sess Session, venueID string) (*models.Venue, error) {
	return s.setEnabled(ctx, sess, venueID, false)
}

func (s *VenueService) Enable(ctx context.Context, sess Session, venueID string) (*models.Venue, error) {
	return s.setEnabled(ctx, sess, venueID, true)
}

func (s *VenueService) setEnabled(ctx context.Context, sess Session, venueID string, enabled bool) (*models.Venue, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	now := s.deps.Clock()
	updated, err := s.venues.UpdateVenue(ctx, venueID, func(v *models.Venue) error {
		v.Enabled = enabled
		v.AdminModified = true
		v.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "venue", "toggle venue")
	}

	s.logger.Info().Str("request_id", sess.RequestID).Str("venue_id", venueID).Bool("enabled", enabled).Msg("venue availability changed")
	s.events.Publish(ctx, events.VenueChanged, updated)
	return updated, nil
}

// SyncCatalog applies venues.yaml keyed by entry name. Venues an admin has
// added or modified are never overwritten, and venues missing from the file
// are left alone.
func (s *VenueService) SyncCatalog(ctx context.Context, cfg *config.VenuesConfig) error {
	now := s.deps.Clock()
	var inserted, updated, skipped int
	for _, vc := range cfg.Venues {
		v := venueFromConfig(vc)
		if err := validateVenue(&v); err != nil {
			return err
		}
		v.ID = uuid.NewString()
		v.SeedName = vc.Name
		v.CreateTime = now
		v.UpdateTime = now
		outcome, err := s.venues.SyncSeedVenue(ctx, &v)
		if err != nil {
			return translate(err, "venue", "sync venue catalog")
		}
		switch outcome {
		case repository.SeedInserted:
			inserted++
		case repository.SeedUpdated:
			updated++
		default:
			skipped++
			s.logger.Debug().Str("seed", vc.Name).Str("venue_id", v.ID).Msg("seed left to admin edits")
		}
	}
	s.logger.Info().
		Int("inserted", inserted).
		Int("updated", updated).
		Int("skipped", skipped).
		Msg("venue catalog synced")
	return nil
}

func venueFromConfig(vc config.VenueConfig) models.Venue {
	v := models.Venue{
		Name:           vc.Name,
		Type:           vc.Type,
		Description:    vc.Description,
		Location:       vc.Location,
		Price:          vc.Price,
		PriceUnit:      vc.PriceUnit,
		NeedApproval:   vc.NeedApproval,
		MinCancelHours: vc.MinCancelHours,
		Enabled:        vc.IsEnabled(),
	}
	if vc.Schedule != nil {
		v.OpenTime = vc.Schedule.OpenTime
		v.CloseTime = vc.Schedule.CloseTime
		v.SlotDuration = vc.Schedule.SlotDurationMinutes
	}
	return v
}

func validateVenue(v *models.Venue) error {
	v.Name = strings.TrimSpace(v.Name)
	v.Type = strings.TrimSpace(v.Type)
	if v.Name == "" {
		return apperr.Validation("venue name is required")
	}
	if v.Type == "" {
		return apperr.Validation("venue type is required")
	}
	if v.OpenTime == "" {
		v.OpenTime = slots.DefaultOpenTime
	}
	if v.CloseTime == "" {
		v.CloseTime = slots.DefaultCloseTime
	}
	if v.SlotDuration <= 0 {
		v.SlotDuration = slots.DefaultSlotDuration
	}
	if slots.ValidateClock(v.OpenTime) != nil || slots.ValidateClock(v.CloseTime) != nil {
		return apperr.Validation("openTime and closeTime must be HH:MM")
	}
	if v.CloseTime <= v.OpenTime {
		return apperr.Validation("closeTime must be after openTime")
	}
	if v.Price < 0 {
		return apperr.Validation("price cannot be negative")
	}
	if v.MinCancelHours != nil && *v.MinCancelHours < 0 {
		return apperr.Validation("minCancelHours cannot be negative")
	}
	return nil
}
