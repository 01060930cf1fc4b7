package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"venuepark/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateBookingIfFree_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	var ok, taken int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateBookingIfFree(ctx, &models.Booking{
				ID:        fmt.Sprintf("b%d", i),
				VenueID:   "v1",
				Date:      "2026-05-20",
				StartTime: "09:00",
				Status:    models.BookingConfirmed,
			})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrSlotTaken):
				atomic.AddInt32(&taken, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(attempts-1), taken)
}

func TestMemoryStore_CancelledBookingFreesSlot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &models.Booking{ID: "b1", VenueID: "v1", Date: "2026-05-20", StartTime: "09:00", Status: models.BookingPending}
	require.NoError(t, store.CreateBookingIfFree(ctx, first))

	_, err := store.UpdateBooking(ctx, "b1", func(b *models.Booking) error {
		b.Status = models.BookingCancelled
		return nil
	})
	require.NoError(t, err)

	second := &models.Booking{ID: "b2", VenueID: "v1", Date: "2026-05-20", StartTime: "09:00", Status: models.BookingPending}
	assert.NoError(t, store.CreateBookingIfFree(ctx, second))

	booked, err := store.BookedStartTimes(ctx, "v1", "2026-05-20")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"09:00": true}, booked)
}

func TestMemoryStore_UpdateBookingAbortKeepsRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateBookingIfFree(ctx, &models.Booking{ID: "b1", Status: models.BookingPending}))

	boom := errors.New("precondition failed")
	_, err := store.UpdateBooking(ctx, "b1", func(b *models.Booking) error {
		b.Status = models.BookingConfirmed
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status)

	_, err = store.UpdateBooking(ctx, "missing", func(b *models.Booking) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReservationCapacity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	reserve := func(id, start, end string) *models.ParkingRecord {
		return &models.ParkingRecord{
			ID:               id,
			Type:             models.ParkingReserve,
			Status:           models.ParkingPending,
			ReserveDate:      "2026-05-20",
			ReserveStartTime: start,
			ReserveEndTime:   end,
		}
	}

	require.NoError(t, store.CreateReservationWithinCapacity(ctx, reserve("r1", "09:00", "11:00"), 2))
	require.NoError(t, store.CreateReservationWithinCapacity(ctx, reserve("r2", "10:00", "12:00"), 2))

	err := store.CreateReservationWithinCapacity(ctx, reserve("r3", "10:30", "10:45"), 2)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Disjoint window still fits.
	assert.NoError(t, store.CreateReservationWithinCapacity(ctx, reserve("r4", "13:00", "14:00"), 2))

	// Cancelling frees a space in the window.
	_, err = store.UpdateParkingRecord(ctx, "r1", func(r *models.ParkingRecord) error {
		r.Status = models.ParkingCancelled
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, store.CreateReservationWithinCapacity(ctx, reserve("r5", "10:30", "10:45"), 2))
}

func TestMemoryStore_ReservationCapacity_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const total, attempts = 5, 30
	var wg sync.WaitGroup
	var admitted int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateReservationWithinCapacity(ctx, &models.ParkingRecord{
				ID:               fmt.Sprintf("r%d", i),
				Type:             models.ParkingReserve,
				Status:           models.ParkingPending,
				ReserveDate:      "2026-05-20",
				ReserveStartTime: "09:00",
			}, total)
			if err == nil {
				atomic.AddInt32(&admitted, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(total), admitted)
}

func TestMemoryStore_ListParkingRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)

	for i, plate := range []string{"AB123", "CD456", "XAB99"} {
		require.NoError(t, store.CreateParkingRecord(ctx, &models.ParkingRecord{
			ID:          fmt.Sprintf("p%d", i),
			OwnerID:     "u1",
			PlateNumber: plate,
			Type:        models.ParkingVisitor,
			Status:      models.ParkingPending,
			CreateTime:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recs, total, err := store.ListParkingRecords(ctx, models.ParkingFilter{PlateNumber: "ab"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "XAB99", recs[0].PlateNumber, "newest first")

	recs, total, err = store.ListParkingRecords(ctx, models.ParkingFilter{
		CreatedFrom: base.Add(30 * time.Minute),
		CreatedTo:   base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "CD456", recs[0].PlateNumber)

	recs, total, err = store.ListParkingRecords(ctx, models.ParkingFilter{Pagination: models.Pagination{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 1)
	assert.Equal(t, "AB123", recs[0].PlateNumber)
}

func TestMemoryStore_Users(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetAdmins(ctx, []string{"admin-1"}))

	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: "admin-1", NickName: "Boss"}))
	isAdmin, err := store.IsAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, isAdmin, "login must not clear the admin flag")

	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: "u1", NickName: "Ann"}))
	isAdmin, err = store.IsAdmin(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	u, err := store.UpdateUserProfile(ctx, "u1", models.UserProfile{Phone: "555"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.NickName)
	assert.Equal(t, "555", u.Phone)

	require.NoError(t, store.SetAdmins(ctx, nil))
	isAdmin, err = store.IsAdmin(ctx, "admin-1")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}
