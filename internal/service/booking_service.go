package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/events"
	"venuepark/internal/lock"
	"venuepark/internal/metrics"
	"venuepark/internal/models"
	"venuepark/internal/repository"
	"venuepark/internal/slots"
	"venuepark/shared/access"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	reasonUserCancelled = "user cancelled"
	reasonAdminRejected = "admin rejected"
)

// CreateBookingInput is the create payload.
type CreateBookingInput struct {
	VenueID   string `json:"venueId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
	Remark    string `json:"remark"`
}

func (in *CreateBookingInput) normalize() error {
	in.VenueID = strings.TrimSpace(in.VenueID)
	in.UserName = strings.TrimSpace(in.UserName)
	in.UserPhone = strings.TrimSpace(in.UserPhone)

	switch {
	case in.VenueID == "":
		return apperr.Validation("venueId is required")
	case in.Date == "":
		return apperr.Validation("date is required")
	case in.StartTime == "" || in.EndTime == "":
		return apperr.Validation("startTime and endTime are required")
	case in.UserName == "":
		return apperr.Validation("userName is required")
	case in.UserPhone == "":
		return apperr.Validation("userPhone is required")
	}
	if slots.ValidateClock(in.StartTime) != nil || slots.ValidateClock(in.EndTime) != nil {
		return apperr.Validation("startTime and endTime must be HH:MM")
	}
	if in.EndTime <= in.StartTime {
		return apperr.Validation("endTime must be after startTime")
	}
	return nil
}

// BookingListInput filters the caller's own bookings.
type BookingListInput struct {
	Status   string `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// AdminBookingListInput filters all bookings.
type AdminBookingListInput struct {
	VenueID  string `json:"venueId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// BookingService reserves venue slots and drives the booking lifecycle.
type BookingService struct {
	bookings  repository.BookingRepository
	venues    repository.VenueRepository
	access    *access.Service
	locker    lock.Locker
	events    events.Publisher
	generator *slots.Generator
	deps      Deps
	logger    zerolog.Logger
}

func NewBookingService(d Deps) *BookingService {
	d = d.withDefaults()
	return &BookingService{
		bookings:  d.Store,
		venues:    d.Venues,
		access:    d.Access,
		locker:    d.Locker,
		events:    d.Events,
		generator: slots.NewGenerator(d.Store, d.Clock),
		deps:      d,
		logger:    componentLogger(d.Logger, "booking"),
	}
}

// Create books one slot. The conflict check and insert are atomic per
// (venue, date, start).
func (s *BookingService) Create(ctx context.Context, sess Session, in CreateBookingInput) (*models.Booking, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	venue, err := s.venues.GetVenue(ctx, in.VenueID)
	if err != nil {
		return nil, translate(err, "venue", "load venue")
	}
	if !venue.Enabled {
		return nil, apperr.InvalidState("venue is disabled")
	}

	date, err := parseDate(in.Date, s.deps.Location)
	if err != nil {
		return nil, err
	}
	window, ok := slots.FindWindow(date, scheduleOf(venue), in.StartTime)
	if !ok || window.EndTime.Format(models.TimeLayout) != in.EndTime {
		return nil, apperr.Validation("requested time does not match a bookable slot")
	}
	now := s.deps.Clock()
	if !window.StartTime.After(now) {
		return nil, apperr.Validation("this time slot has already started")
	}

	status := models.BookingConfirmed
	if venue.NeedApproval {
		status = models.BookingPending
	}
	b := &models.Booking{
		ID:         uuid.NewString(),
		OwnerID:    sess.CallerID,
		VenueID:    venue.ID,
		VenueName:  venue.Name,
		VenueType:  venue.Type,
		Date:       in.Date,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Status:     status,
		UserName:   in.UserName,
		UserPhone:  in.UserPhone,
		Remark:     in.Remark,
		CreateTime: now,
		UpdateTime: now,
	}

	err = lock.With(ctx, s.locker, lock.BookingKey(b.VenueID, b.Date, b.StartTime), func() error {
		return s.bookings.CreateBookingIfFree(ctx, b)
	})
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		metrics.IncSlotConflict()
		s.logger.Info().
			Str("request_id", sess.RequestID).
			Str("venue_id", b.VenueID).
			Str("date", b.Date).
			Str("start", b.StartTime).
			Msg("slot already booked")
		return nil, translate(err, "booking", "create booking")
	case err != nil:
		s.logger.Error().Err(err).Str("request_id", sess.RequestID).Str("venue_id", b.VenueID).Msg("create booking")
		return nil, translate(err, "booking", "create booking")
	}

	metrics.IncBookingCreated(string(b.Status))
	s.logger.Info().
		Str("request_id", sess.RequestID).
		Str("booking_id", b.ID).
		Str("venue_id", b.VenueID).
		Str("caller_id", sess.CallerID).
		Str("status", string(b.Status)).
		Msg("booking created")
	s.events.Publish(ctx, events.BookingCreated, b)
	return b, nil
}

// Cancel lets the owner release an active booking ahead of the venue's lead time.
func (s *BookingService) Cancel(ctx context.Context, sess Session, bookingID string) (*models.Booking, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	current, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "booking", "load booking")
	}
	if current.OwnerID != sess.CallerID {
		return nil, apperr.Unauthorized("only the booking owner can cancel it")
	}

	lead := time.Duration(models.DefaultMinCancelHours) * time.Hour
	if venue, err := s.venues.GetVenue(ctx, current.VenueID); err == nil {
		lead = venue.CancelLeadTime()
	}

	now := s.deps.Clock()
	updated, err := s.bookings.UpdateBooking(ctx, bookingID, func(b *models.Booking) error {
		if !b.Status.CanTransitionTo(models.BookingCancelled) {
			return apperr.InvalidState(fmt.Sprintf("a %s booking cannot be cancelled", b.Status))
		}
		start, err := b.StartAt(s.deps.Location)
		if err != nil {
			return fmt.Errorf("parse booking start: %w", err)
		}
		if start.Sub(now) < lead {
			return apperr.Newf(apperr.KindTooLateToCancel,
				"bookings can only be cancelled at least %d hours before the start", int(lead.Hours()))
		}
		b.Status = models.BookingCancelled
		b.CancelReason = reasonUserCancelled
		b.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "booking", "cancel booking")
	}

	metrics.IncBookingCancelled()
	s.logger.Info().Str("request_id", sess.RequestID).Str("booking_id", bookingID).Str("caller_id", sess.CallerID).Msg("booking cancelled")
	s.events.Publish(ctx, events.BookingCancelled, updated)
	return updated, nil
}

// Approve confirms a pending booking.
func (s *BookingService) Approve(ctx context.Context, sess Session, bookingID string) (*models.Booking, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	now := s.deps.Clock()
	updated, err := s.bookings.UpdateBooking(ctx, bookingID, func(b *models.Booking) error {
		if b.Status != models.BookingPending {
			return apperr.InvalidState(fmt.Sprintf("only pending bookings can be approved, this one is %s", b.Status))
		}
		b.Status = models.BookingConfirmed
		b.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "booking", "approve booking")
	}

	metrics.IncAdminDecision("approve")
	s.logger.Info().Str("request_id", sess.RequestID).Str("booking_id", bookingID).Str("caller_id", sess.CallerID).Msg("booking approved")
	s.events.Publish(ctx, events.BookingApproved, updated)
	return updated, nil
}

// Reject cancels an active booking on behalf of an admin.
func (s *BookingService) Reject(ctx context.Context, sess Session, bookingID, reason string) (*models.Booking, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = reasonAdminRejected
	}
	now := s.deps.Clock()
	updated, err := s.bookings.UpdateBooking(ctx, bookingID, func(b *models.Booking) error {
		if !b.Status.CanTransitionTo(models.BookingCancelled) {
			return apperr.InvalidState(fmt.Sprintf("a %s booking cannot be rejected", b.Status))
		}
		b.Status = models.BookingCancelled
		b.CancelReason = reason
		b.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "booking", "reject booking")
	}

	metrics.IncAdminDecision("reject")
	s.logger.Info().Str("request_id", sess.RequestID).Str("booking_id", bookingID).Str("caller_id", sess.CallerID).Str("reason", reason).Msg("booking rejected")
	s.events.Publish(ctx, events.BookingRejected, updated)
	return updated, nil
}

func (s *BookingService) GetMyList(ctx context.Context, sess Session, in BookingListInput) (*models.Page[models.Booking], error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	f := models.BookingFilter{
		OwnerID:    sess.CallerID,
		Pagination: models.Pagination{Page: in.Page, PageSize: in.PageSize},
	}
	if in.Status != "" {
		st, err := models.ParseBookingStatus(in.Status)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		f.Status = st
	}
	return s.list(ctx, f)
}

func (s *BookingService) GetAllList(ctx context.Context, sess Session, in AdminBookingListInput) (*models.Page[models.Booking], error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	f := models.BookingFilter{
		VenueID:    in.VenueID,
		Date:       in.Date,
		Pagination: models.Pagination{Page: in.Page, PageSize: in.PageSize},
	}
	if in.Status != "" {
		st, err := models.ParseBookingStatus(in.Status)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		f.Status = st
	}
	return s.list(ctx, f)
}

func (s *BookingService) list(ctx context.Context, f models.BookingFilter) (*models.Page[models.Booking], error) {
	f.Pagination = f.Pagination.Normalize()
	data, total, err := s.bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, translate(err, "booking", "list bookings")
	}
	return &models.Page[models.Booking]{Data: data, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetDetail returns a booking to its owner or an admin.
func (s *BookingService) GetDetail(ctx context.Context, sess Session, bookingID string) (*models.Booking, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "booking", "load booking")
	}
	if err := s.access.RequireOwnerOrAdmin(ctx, sess.CallerID, b.OwnerID); err != nil {
		return nil, err
	}
	return b, nil
}

// GetAvailableSlots annotates the venue's slots for date.
func (s *BookingService) GetAvailableSlots(ctx context.Context, venueID, date string) ([]slots.SlotInfo, error) {
	venue, err := s.venues.GetVenue(ctx, venueID)
	if err != nil {
		return nil, translate(err, "venue", "load venue")
	}
	return s.slotsFor(ctx, venue, date)
}

func (s *BookingService) slotsFor(ctx context.Context, venue *models.Venue, date string) ([]slots.SlotInfo, error) {
	day, err := parseDate(date, s.deps.Location)
	if err != nil {
		return nil, err
	}
	generated, err := s.generator.GenerateSlots(ctx, venue.ID, day, scheduleOf(venue))
	if err != nil {
		return nil, translate(err, "venue", "generate slots")
	}
	return slots.ToSlotInfo(generated), nil
}

func scheduleOf(v *models.Venue) slots.Schedule {
	return slots.Schedule{OpenTime: v.OpenTime, CloseTime: v.CloseTime, SlotDuration: v.SlotDuration}
}
