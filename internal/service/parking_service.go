package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const adminRegisterPurpose = "admin registration"

// ParkingDefaults apply until an admin saves a parking config.
type ParkingDefaults struct {
	TotalSpaces      int
	ExpectedDuration int // minutes
}

type RegisterInput struct {
	PlateNumber      string `json:"plateNumber"`
	Purpose          string `json:"purpose"`
	ExpectedDuration int    `json:"expectedDuration"`
}

type ReserveInput struct {
	PlateNumber      string `json:"plateNumber"`
	ReserveDate      string `json:"reserveDate"`
	ReserveStartTime string `json:"reserveStartTime"`
	ReserveEndTime   string `json:"reserveEndTime"`
}

type ParkingListInput struct {
	Status   string `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// AdminParkingListInput filters all records. StartDate and EndDate bound the
// creation day, both inclusive.
type AdminParkingListInput struct {
	PlateNumber string `json:"plateNumber"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
}

// ParkingService registers vehicles, reserves spaces and advances parking
// records through entry and exit.
type ParkingService struct {
	store    repository.Store
	access   *access.Service
	locker   lock.Locker
	events   events.Publisher
	defaults ParkingDefaults
	deps     Deps
	logger   zerolog.Logger
}

func NewParkingService(d Deps, defaults ParkingDefaults) *ParkingService {
	d = d.withDefaults()
	if defaults.TotalSpaces <= 0 {
		defaults.TotalSpaces = 100
	}
	if defaults.ExpectedDuration <= 0 {
		defaults.ExpectedDuration = 120
	}
	return &ParkingService{
		store:    d.Store,
		access:   d.Access,
		locker:   d.Locker,
		events:   d.Events,
		defaults: defaults,
		deps:     d,
		logger:   componentLogger(d.Logger, "parking"),
	}
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Register creates a visitor record and attaches its admission token.
func (s *ParkingService) Register(ctx context.Context, sess Session, in RegisterInput) (*models.ParkingRecord, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	return s.registerVisitor(ctx, sess, sess.CallerID, in)
}

// AdminRegister records a vehicle on behalf of a visitor at the gate.
func (s *ParkingService) AdminRegister(ctx context.Context, sess Session, in RegisterInput) (*models.ParkingRecord, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Purpose) == "" {
		in.Purpose = adminRegisterPurpose
	}
	return s.registerVisitor(ctx, sess, models.AdminRegisterOwner, in)
}

func (s *ParkingService) registerVisitor(ctx context.Context, sess Session, ownerID string, in RegisterInput) (*models.ParkingRecord, error) {
	plate := normalizePlate(in.PlateNumber)
	if plate == "" {
		return nil, apperr.Validation("plate number is required")
	}
	expected := in.ExpectedDuration
	if expected <= 0 {
		expected = s.defaults.ExpectedDuration
	}

	now := s.deps.Clock()
	r := &models.ParkingRecord{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		PlateNumber:      plate,
		Type:             models.ParkingVisitor,
		Purpose:          strings.TrimSpace(in.Purpose),
		ExpectedDuration: expected,
		Status:           models.ParkingPending,
		CreateTime:       now,
		UpdateTime:       now,
	}
	if err := s.store.CreateParkingRecord(ctx, r); err != nil {
		s.logger.Error().Err(err).Str("request_id", sess.RequestID).Str("plate", plate).Msg("register vehicle")
		return nil, translate(err, "parking record", "register vehicle")
	}

	metrics.IncParkingEvent("register")
	return s.attachToken(ctx, sess, r, events.ParkingRegistered)
}

// Reserve books a space for a window on a future day, within lot capacity.
func (s *ParkingService) Reserve(ctx context.Context, sess Session, in ReserveInput) (*models.ParkingRecord, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	plate := normalizePlate(in.PlateNumber)
	switch {
	case plate == "":
		return nil, apperr.Validation("plate number is required")
	case in.ReserveDate == "":
		return nil, apperr.Validation("reserveDate is required")
	case in.ReserveStartTime == "":
		return nil, apperr.Validation("reserveStartTime is required")
	}
	if _, err := parseDate(in.ReserveDate, s.deps.Location); err != nil {
		return nil, err
	}
	if slots.ValidateClock(in.ReserveStartTime) != nil {
		return nil, apperr.Validation("reserveStartTime must be HH:MM")
	}
	if in.ReserveEndTime != "" {
		if slots.ValidateClock(in.ReserveEndTime) != nil {
			return nil, apperr.Validation("reserveEndTime must be HH:MM")
		}
		if in.ReserveEndTime <= in.ReserveStartTime {
			return nil, apperr.Validation("reserveEndTime must be after reserveStartTime")
		}
	}

	total, err := s.totalSpaces(ctx)
	if err != nil {
		return nil, err
	}

	now := s.deps.Clock()
	r := &models.ParkingRecord{
		ID:               uuid.NewString(),
		OwnerID:          sess.CallerID,
		PlateNumber:      plate,
		Type:             models.ParkingReserve,
		ReserveDate:      in.ReserveDate,
		ReserveStartTime: in.ReserveStartTime,
		ReserveEndTime:   in.ReserveEndTime,
		Status:           models.ParkingPending,
		CreateTime:       now,
		UpdateTime:       now,
	}

	err = lock.With(ctx, s.locker, lock.ParkingKey(r.ReserveDate), func() error {
		return s.store.CreateReservationWithinCapacity(ctx, r, total)
	})
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded):
		metrics.IncCapacityRejected()
		s.logger.Info().
			Str("request_id", sess.RequestID).
			Str("date", r.ReserveDate).
			Str("start", r.ReserveStartTime).
			Int("total_spaces", total).
			Msg("parking capacity exceeded")
		s.events.Publish(ctx, events.ParkingCapacityRejected, r)
		return nil, translate(err, "parking record", "reserve parking")
	case err != nil:
		s.logger.Error().Err(err).Str("request_id", sess.RequestID).Str("plate", plate).Msg("reserve parking")
		return nil, translate(err, "parking record", "reserve parking")
	}

	metrics.IncParkingEvent("reserve")
	return s.attachToken(ctx, sess, r, events.ParkingReserved)
}

// attachToken is the second write of a create: the token embeds the record id.
func (s *ParkingService) attachToken(ctx context.Context, sess Session, r *models.ParkingRecord, eventType string) (*models.ParkingRecord, error) {
	token, err := models.NewAdmissionToken(r.ID, r.PlateNumber, r.CreateTime)
	if err != nil {
		return nil, apperr.Store("encode admission token", err)
	}
	updated, err := s.store.UpdateParkingRecord(ctx, r.ID, func(rec *models.ParkingRecord) error {
		rec.QRCode = token
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", sess.RequestID).Str("record_id", r.ID).Msg("attach admission token")
		return nil, translate(err, "parking record", "attach admission token")
	}

	s.logger.Info().
		Str("request_id", sess.RequestID).
		Str("record_id", updated.ID).
		Str("owner_id", updated.OwnerID).
		Str("plate", updated.PlateNumber).
		Str("type", string(updated.Type)).
		Msg("parking record created")
	s.events.Publish(ctx, eventType, updated)
	return updated, nil
}

// CancelReserve lets the owner drop a record that has not entered yet.
func (s *ParkingService) CancelReserve(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	current, err := s.store.GetParkingRecord(ctx, recordID)
	if err != nil {
		return nil, translate(err, "parking record", "load parking record")
	}
	if current.OwnerID != sess.CallerID {
		return nil, apperr.Unauthorized("only the record owner can cancel it")
	}

	now := s.deps.Clock()
	updated, err := s.store.UpdateParkingRecord(ctx, recordID, func(r *models.ParkingRecord) error {
		if !r.Status.CanTransitionTo(models.ParkingCancelled) {
			return apperr.InvalidState(fmt.Sprintf("a %s record cannot be cancelled", r.Status))
		}
		r.Status = models.ParkingCancelled
		r.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "parking record", "cancel reservation")
	}

	metrics.IncParkingEvent("cancel")
	s.logger.Info().Str("request_id", sess.RequestID).Str("record_id", recordID).Str("caller_id", sess.CallerID).Msg("parking reservation cancelled")
	s.events.Publish(ctx, events.ParkingCancelled, updated)
	return updated, nil
}

// ConfirmEntry marks the vehicle as inside. Owner or admin.
func (s *ParkingService) ConfirmEntry(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	if err := s.requireOwnerOrAdmin(ctx, sess, recordID); err != nil {
		return nil, err
	}
	return s.enter(ctx, sess, recordID)
}

// ConfirmExit marks the vehicle as gone and stores the stay in minutes. Owner or admin.
func (s *ParkingService) ConfirmExit(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	if err := s.requireOwnerOrAdmin(ctx, sess, recordID); err != nil {
		return nil, err
	}
	return s.exit(ctx, sess, recordID)
}

func (s *ParkingService) AdminConfirmEntry(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	return s.enter(ctx, sess, recordID)
}

func (s *ParkingService) AdminConfirmExit(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	return s.exit(ctx, sess, recordID)
}

func (s *ParkingService) requireOwnerOrAdmin(ctx context.Context, sess Session, recordID string) error {
	if err := sess.require(); err != nil {
		return err
	}
	r, err := s.store.GetParkingRecord(ctx, recordID)
	if err != nil {
		return translate(err, "parking record", "load parking record")
	}
	return s.access.RequireOwnerOrAdmin(ctx, sess.CallerID, r.OwnerID)
}

func (s *ParkingService) enter(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	now := s.deps.Clock()
	updated, err := s.store.UpdateParkingRecord(ctx, recordID, func(r *models.ParkingRecord) error {
		if !r.Status.CanTransitionTo(models.ParkingEntered) {
			return apperr.InvalidState(fmt.Sprintf("entry needs a pending record, this one is %s", r.Status))
		}
		entry := now
		r.Status = models.ParkingEntered
		r.EntryTime = &entry
		r.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "parking record", "confirm entry")
	}

	metrics.IncParkingEvent("enter")
	s.logger.Info().
		Str("request_id", sess.RequestID).
		Str("record_id", recordID).
		Str("plate", updated.PlateNumber).
		Str("caller_id", sess.CallerID).
		Msg("vehicle entered")
	s.events.Publish(ctx, events.ParkingEntered, updated)
	return updated, nil
}

func (s *ParkingService) exit(ctx context.Context, sess Session, recordID string) (*models.ParkingRecord, error) {
	now := s.deps.Clock()
	updated, err := s.store.UpdateParkingRecord(ctx, recordID, func(r *models.ParkingRecord) error {
		if !r.Status.CanTransitionTo(models.ParkingExited) {
			return apperr.InvalidState(fmt.Sprintf("exit needs an entered record, this one is %s", r.Status))
		}
		duration := 0
		if r.EntryTime != nil {
			duration = models.StayMinutes(*r.EntryTime, now)
		}
		exit := now
		r.Status = models.ParkingExited
		r.ExitTime = &exit
		r.Duration = &duration
		r.UpdateTime = now
		return nil
	})
	if err != nil {
		return nil, translate(err, "parking record", "confirm exit")
	}

	metrics.IncParkingEvent("exit")
	s.logger.Info().
		Str("request_id", sess.RequestID).
		Str("record_id", recordID).
		Str("plate", updated.PlateNumber).
		Int("duration", *updated.Duration).
		Msg("vehicle exited")
	s.events.Publish(ctx, events.ParkingExited, updated)
	return updated, nil
}

func (s *ParkingService) GetMyRecords(ctx context.Context, sess Session, in ParkingListInput) (*models.Page[models.ParkingRecord], error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	f := models.ParkingFilter{
		OwnerID:    sess.CallerID,
		Pagination: models.Pagination{Page: in.Page, PageSize: in.PageSize},
	}
	if in.Status != "" {
		st, err := models.ParseParkingStatus(in.Status)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		f.Status = st
	}
	return s.list(ctx, f)
}

// GetCurrentParking returns the caller's vehicles that are inside right now.
func (s *ParkingService) GetCurrentParking(ctx context.Context, sess Session) ([]models.ParkingRecord, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	page, err := s.list(ctx, models.ParkingFilter{
		OwnerID:    sess.CallerID,
		Status:     models.ParkingEntered,
		Pagination: models.Pagination{PageSize: models.MaxPageSize},
	})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// GetParkingStatus reports lot occupancy. availableSpaces may go negative
// when visitors push the lot over capacity.
func (s *ParkingService) GetParkingStatus(ctx context.Context) (*models.ParkingStatusSummary, error) {
	total, err := s.totalSpaces(ctx)
	if err != nil {
		return nil, err
	}
	used, err := s.store.CountParkingRecords(ctx, repository.ParkingCount{Status: models.ParkingEntered})
	if err != nil {
		return nil, translate(err, "parking record", "count entered vehicles")
	}
	today := s.deps.Clock().In(s.deps.Location).Format(models.DateLayout)
	reserved, err := s.store.CountParkingRecords(ctx, repository.ParkingCount{
		Status:      models.ParkingPending,
		Type:        models.ParkingReserve,
		ReserveDate: today,
	})
	if err != nil {
		return nil, translate(err, "parking record", "count reservations")
	}
	return &models.ParkingStatusSummary{
		TotalSpaces:     total,
		UsedSpaces:      used,
		AvailableSpaces: total - used,
		ReservedToday:   reserved,
	}, nil
}

func (s *ParkingService) GetAllRecords(ctx context.Context, sess Session, in AdminParkingListInput) (*models.Page[models.ParkingRecord], error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	f := models.ParkingFilter{
		PlateNumber: strings.TrimSpace(in.PlateNumber),
		Pagination:  models.Pagination{Page: in.Page, PageSize: in.PageSize},
	}
	if in.Status != "" {
		st, err := models.ParseParkingStatus(in.Status)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		f.Status = st
	}
	switch t := models.ParkingType(in.Type); t {
	case "", models.ParkingVisitor, models.ParkingReserve:
		f.Type = t
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown parking type %q", in.Type))
	}
	if in.StartDate != "" {
		from, err := parseDate(in.StartDate, s.deps.Location)
		if err != nil {
			return nil, err
		}
		f.CreatedFrom = from
	}
	if in.EndDate != "" {
		to, err := parseDate(in.EndDate, s.deps.Location)
		if err != nil {
			return nil, err
		}
		f.CreatedTo = to.AddDate(0, 0, 1)
	}
	return s.list(ctx, f)
}

func (s *ParkingService) list(ctx context.Context, f models.ParkingFilter) (*models.Page[models.ParkingRecord], error) {
	f.Pagination = f.Pagination.Normalize()
	data, total, err := s.store.ListParkingRecords(ctx, f)
	if err != nil {
		return nil, translate(err, "parking record", "list parking records")
	}
	return &models.Page[models.ParkingRecord]{Data: data, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetConfig returns the saved config, or the defaults when none was saved.
func (s *ParkingService) GetConfig(ctx context.Context) (*models.ParkingConfig, error) {
	cfg, err := s.store.GetParkingConfig(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.ParkingConfig{TotalSpaces: s.defaults.TotalSpaces}, nil
	}
	if err != nil {
		return nil, translate(err, "parking config", "load parking config")
	}
	return cfg, nil
}

func (s *ParkingService) UpdateConfig(ctx context.Context, sess Session, cfg models.ParkingConfig) (*models.ParkingConfig, error) {
	if err := s.access.RequireAdmin(ctx, sess.CallerID); err != nil {
		return nil, err
	}
	if cfg.TotalSpaces <= 0 {
		return nil, apperr.Validation("totalSpaces must be positive")
	}
	cfg.UpdateTime = s.deps.Clock()
	if err := s.store.SaveParkingConfig(ctx, &cfg); err != nil {
		return nil, translate(err, "parking config", "save parking config")
	}
	s.logger.Info().Str("request_id", sess.RequestID).Str("caller_id", sess.CallerID).Int("total_spaces", cfg.TotalSpaces).Msg("parking config updated")
	return &cfg, nil
}

func (s *ParkingService) totalSpaces(ctx context.Context) (int, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.TotalSpaces, nil
}
