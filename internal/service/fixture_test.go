package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	adminID = "admin-1"
	aliceID = "alice"
	bobID   = "bob"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	deps     Deps
	bookings *BookingService
	parking  *ParkingService
	venues   *VenueService
}

// newFixture starts the clock at 2026-10-15 09:00 UTC.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.SetAdmins(context.Background(), []string{adminID}))

	clock := &fakeClock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	deps := Deps{
		Store:    store,
		Location: time.UTC,
		Clock:    clock.Now,
		Logger:   zerolog.New(io.Discard),
	}
	bookings := NewBookingService(deps)
	return &fixture{
		store:    store,
		clock:    clock,
		deps:     deps,
		bookings: bookings,
		parking:  NewParkingService(deps, ParkingDefaults{TotalSpaces: 100, ExpectedDuration: 120}),
		venues:   NewVenueService(deps, bookings),
	}
}

func (f *fixture) addVenue(t *testing.T, id string, mutate func(v *models.Venue)) *models.Venue {
	t.Helper()
	v := &models.Venue{
		ID:           id,
		Name:         "Venue " + id,
		Type:         "badminton",
		OpenTime:     "08:00",
		CloseTime:    "22:00",
		SlotDuration: 60,
		Price:        40,
		PriceUnit:    "hour",
		Enabled:      true,
	}
	if mutate != nil {
		mutate(v)
	}
	require.NoError(t, f.store.CreateVenue(context.Background(), v))
	return v
}

func sess(callerID string) Session {
	return Session{CallerID: callerID, RequestID: "req-" + callerID}
}

func bookingInput(venueID, date, start, end string) CreateBookingInput {
	return CreateBookingInput{
		VenueID:   venueID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		UserName:  "Alice",
		UserPhone: "13800000000",
	}
}
