// Package repository defines the persistence contract shared by the
// in-memory store and the SQLite database.
package repository

import (
	"context"
	"errors"
	"time"

	"venuepark/internal/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrSlotTaken        = errors.New("slot already booked")
	ErrCapacityExceeded = errors.New("parking capacity exceeded")
)

// BookingMutation edits a freshly read booking inside the store's critical
// section. Returning an error aborts the write.
type BookingMutation func(b *models.Booking) error

// ParkingMutation edits a freshly read parking record inside the store's
// critical section. Returning an error aborts the write.
type ParkingMutation func(r *models.ParkingRecord) error

type BookingRepository interface {
	// CreateBookingIfFree inserts b unless an active booking already holds
	// (venue, date, start). Returns ErrSlotTaken on conflict.
	CreateBookingIfFree(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, fn BookingMutation) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, int, error)
	BookedStartTimes(ctx context.Context, venueID, date string) (map[string]bool, error)
}

// ParkingCount selects records for occupancy counters. Zero fields match anything.
type ParkingCount struct {
	Status      models.ParkingStatus
	Type        models.ParkingType
	ReserveDate string
}

type ParkingRepository interface {
	CreateParkingRecord(ctx context.Context, r *models.ParkingRecord) error
	// CreateReservationWithinCapacity inserts r unless the occupying
	// reservations overlapping its window already reach totalSpaces.
	// Returns ErrCapacityExceeded when full.
	CreateReservationWithinCapacity(ctx context.Context, r *models.ParkingRecord, totalSpaces int) error
	GetParkingRecord(ctx context.Context, id string) (*models.ParkingRecord, error)
	UpdateParkingRecord(ctx context.Context, id string, fn ParkingMutation) (*models.ParkingRecord, error)
	ListParkingRecords(ctx context.Context, f models.ParkingFilter) ([]models.ParkingRecord, int, error)
	CountParkingRecords(ctx context.Context, c ParkingCount) (int, error)
}

// VenueFilter selects catalog entries.
type VenueFilter struct {
	Type        string
	EnabledOnly bool
}

type VenueRepository interface {
	CreateVenue(ctx context.Context, v *models.Venue) error
	GetVenue(ctx context.Context, id string) (*models.Venue, error)
	UpdateVenue(ctx context.Context, id string, fn func(v *models.Venue) error) (*models.Venue, error)
	ListVenues(ctx context.Context, f VenueFilter) ([]models.Venue, error)
	// SyncSeedVenue applies a venues.yaml entry keyed by v.SeedName. A new
	// seed is inserted unless its name is already used by another venue. An
	// existing seeded venue is overwritten only while no admin has modified
	// it. The stored id is written back to v.
	SyncSeedVenue(ctx context.Context, v *models.Venue) (SeedOutcome, error)
}

// SeedOutcome reports what SyncSeedVenue did.
type SeedOutcome int

const (
	SeedInserted SeedOutcome = iota
	SeedUpdated
	SeedSkipped
)

type ConfigRepository interface {
	// GetParkingConfig returns ErrNotFound until a config has been saved.
	GetParkingConfig(ctx context.Context) (*models.ParkingConfig, error)
	SaveParkingConfig(ctx context.Context, cfg *models.ParkingConfig) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	// UpsertUser creates u or refreshes its profile and login time. The
	// admin flag of an existing user is never changed here.
	UpsertUser(ctx context.Context, u *models.User) error
	UpdateUserProfile(ctx context.Context, id string, p models.UserProfile, at time.Time) (*models.User, error)
	// SetAdmins grants the admin flag to exactly the given ids.
	SetAdmins(ctx context.Context, ids []string) error
	IsAdmin(ctx context.Context, id string) (bool, error)
}

// Store is the full persistence collaborator.
type Store interface {
	BookingRepository
	ParkingRepository
	VenueRepository
	ConfigRepository
	UserRepository

	Ping(ctx context.Context) error
	Close() error
}
