package service

import (
	"errors"
	"strings"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/events"
	"venuepark/internal/lock"
	"venuepark/internal/models"
	"venuepark/internal/repository"
	"venuepark/shared/access"

	"github.com/rs/zerolog"
)

// Session identifies the caller of one operation. It is built once per
// request from the verified token and never re-derived.
type Session struct {
	CallerID  string
	RequestID string
}

// Clock returns the current instant.
type Clock func() time.Time

// Deps are the collaborators shared by every service.
type Deps struct {
	Store repository.Store
	// Venues overrides Store for catalog reads and writes, e.g. with a cache.
	Venues   repository.VenueRepository
	Access   *access.Service
	Locker   lock.Locker
	Events   events.Publisher
	Location *time.Location
	Clock    Clock
	Logger   zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Venues == nil {
		d.Venues = d.Store
	}
	if d.Access == nil {
		d.Access = access.NewService(d.Store, d.Logger)
	}
	if d.Locker == nil {
		d.Locker = lock.NewKeyed()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// translate turns repository failures into app errors. Errors that are
// already classified pass through untouched.
func translate(err error, what, op string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, repository.ErrSlotTaken):
		return apperr.New(apperr.KindSlotUnavailable, "this time slot is already booked")
	case errors.Is(err, repository.ErrCapacityExceeded):
		return apperr.New(apperr.KindCapacityExceeded, "no parking spaces left for this time")
	case errors.Is(err, lock.ErrNotAcquired):
		return apperr.Wrap(apperr.KindStore, "system busy, please retry", err)
	default:
		return apperr.Store(op, err)
	}
}

func (s Session) require() error {
	if strings.TrimSpace(s.CallerID) == "" {
		return apperr.Unauthorized("caller identity is required")
	}
	return nil
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
	}
	return d, nil
}

func componentLogger(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
