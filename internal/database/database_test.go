package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"venuepark/internal/config"
	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "venuepark.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newBooking(id, owner, start string) *models.Booking {
	return &models.Booking{
		ID:         id,
		OwnerID:    owner,
		VenueID:    "v1",
		VenueName:  "Court A",
		VenueType:  "badminton",
		Date:       "2026-10-16",
		StartTime:  start,
		EndTime:    start[:2] + ":59",
		Status:     models.BookingPending,
		UserName:   "Alice",
		UserPhone:  "13800000000",
		CreateTime: baseTime,
		UpdateTime: baseTime,
	}
}

func TestCreateBookingIfFree_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const attempts = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		taken  int
		others []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.CreateBookingIfFree(ctx, newBooking(fmt.Sprintf("b%d", i), "alice", "10:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrSlotTaken):
				taken++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, taken)

	booked, err := db.BookedStartTimes(ctx, "v1", "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"10:00": true}, booked)
}

func TestUpdateBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBookingIfFree(ctx, newBooking("b1", "alice", "10:00")))

	_, err := db.UpdateBooking(ctx, "b1", func(b *models.Booking) error {
		b.Status = models.BookingCancelled
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	got, err := db.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status)

	cancelled, err := db.UpdateBooking(ctx, "b1", func(b *models.Booking) error {
		b.Status = models.BookingCancelled
		b.CancelReason = "user cancelled"
		b.UpdateTime = baseTime.Add(time.Minute)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user cancelled", cancelled.CancelReason)

	// The freed slot takes a new booking, and the old one cannot come back.
	require.NoError(t, db.CreateBookingIfFree(ctx, newBooking("b2", "bob", "10:00")))
	_, err = db.UpdateBooking(ctx, "b1", func(b *models.Booking) error {
		b.Status = models.BookingPending
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrSlotTaken)

	_, err = db.UpdateBooking(ctx, "missing", func(*models.Booking) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListBookings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i, start := range []string{"08:00", "09:00", "10:00"} {
		b := newBooking(fmt.Sprintf("b%d", i), "alice", start)
		b.CreateTime = baseTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.CreateBookingIfFree(ctx, b))
	}
	other := newBooking("x", "bob", "11:00")
	other.Status = models.BookingConfirmed
	require.NoError(t, db.CreateBookingIfFree(ctx, other))

	list, total, err := db.ListBookings(ctx, models.BookingFilter{OwnerID: "alice", Pagination: models.Pagination{Page: 1, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "b2", list[0].ID)
	assert.True(t, list[0].CreateTime.Equal(baseTime.Add(2*time.Hour)))

	_, total, err = db.ListBookings(ctx, models.BookingFilter{Status: models.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = db.ListBookings(ctx, models.BookingFilter{
		CreatedFrom: baseTime.Add(time.Hour),
		CreatedTo:   baseTime.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func newReservation(id, date, start, end string) *models.ParkingRecord {
	return &models.ParkingRecord{
		ID:               id,
		OwnerID:          "alice",
		PlateNumber:      "A" + id,
		Type:             models.ParkingReserve,
		ReserveDate:      date,
		ReserveStartTime: start,
		ReserveEndTime:   end,
		Status:           models.ParkingPending,
		CreateTime:       baseTime,
		UpdateTime:       baseTime,
	}
}

func TestCreateReservationWithinCapacity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateReservationWithinCapacity(ctx, newReservation("r1", "2026-10-16", "09:00", "12:00"), 2))
	require.NoError(t, db.CreateReservationWithinCapacity(ctx, newReservation("r2", "2026-10-16", "10:00", ""), 2))

	err := db.CreateReservationWithinCapacity(ctx, newReservation("r3", "2026-10-16", "11:00", "11:30"), 2)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
	_, err = db.GetParkingRecord(ctx, "r3")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.CreateReservationWithinCapacity(ctx, newReservation("r4", "2026-10-16", "07:00", "08:00"), 2))
	require.NoError(t, db.CreateReservationWithinCapacity(ctx, newReservation("r5", "2026-10-17", "11:00", "11:30"), 2))

	_, err = db.UpdateParkingRecord(ctx, "r1", func(r *models.ParkingRecord) error {
		r.Status = models.ParkingCancelled
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, db.CreateReservationWithinCapacity(ctx, newReservation("r3", "2026-10-16", "11:00", "11:30"), 2))
}

func TestParkingRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	visitor := &models.ParkingRecord{
		ID:               "p1",
		OwnerID:          "bob",
		PlateNumber:      "B12345",
		Type:             models.ParkingVisitor,
		ExpectedDuration: 120,
		Status:           models.ParkingPending,
		CreateTime:       baseTime,
		UpdateTime:       baseTime,
	}
	require.NoError(t, db.CreateParkingRecord(ctx, visitor))
	require.NoError(t, db.CreateParkingRecord(ctx, newReservation("r1", "2026-10-15", "18:00", "")))

	entry := baseTime.Add(time.Minute)
	exit := entry.Add(75 * time.Minute)
	duration := 75
	_, err := db.UpdateParkingRecord(ctx, "p1", func(r *models.ParkingRecord) error {
		r.Status = models.ParkingExited
		r.EntryTime = &entry
		r.ExitTime = &exit
		r.Duration = &duration
		r.QRCode = `{"type":"parking_entry"}`
		return nil
	})
	require.NoError(t, err)

	got, err := db.GetParkingRecord(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got.EntryTime)
	assert.True(t, got.EntryTime.Equal(entry))
	assert.True(t, got.ExitTime.Equal(exit))
	assert.Equal(t, 75, *got.Duration)
	assert.Equal(t, `{"type":"parking_entry"}`, got.QRCode)

	res, err := db.GetParkingRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, res.EntryTime)
	assert.Nil(t, res.Duration)

	list, total, err := db.ListParkingRecords(ctx, models.ParkingFilter{PlateNumber: "b123"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "p1", list[0].ID)

	_, total, err = db.ListParkingRecords(ctx, models.ParkingFilter{Type: models.ParkingReserve, OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	n, err := db.CountParkingRecords(ctx, repository.ParkingCount{
		Status:      models.ParkingPending,
		Type:        models.ParkingReserve,
		ReserveDate: "2026-10-15",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.CountParkingRecords(ctx, repository.ParkingCount{Status: models.ParkingEntered})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVenues(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	court := &models.Venue{
		ID: "v1", Name: "Court A", Type: "badminton", OpenTime: "08:00", CloseTime: "22:00",
		SlotDuration: 60, Price: 40, Enabled: true, CreateTime: baseTime, UpdateTime: baseTime,
	}
	require.NoError(t, db.CreateVenue(ctx, court))

	got, err := db.GetVenue(ctx, "v1")
	require.NoError(t, err)
	assert.Nil(t, got.MinCancelHours)
	assert.Empty(t, got.SeedName)

	_, err = db.UpdateVenue(ctx, "v1", func(v *models.Venue) error {
		none := 0
		v.Enabled = false
		v.MinCancelHours = &none
		return nil
	})
	require.NoError(t, err)
	got, err = db.GetVenue(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, got.MinCancelHours)
	assert.Zero(t, *got.MinCancelHours)

	enabled, err := db.ListVenues(ctx, repository.VenueFilter{EnabledOnly: true})
	require.NoError(t, err)
	assert.Empty(t, enabled)

	_, err = db.UpdateVenue(ctx, "v1", func(v *models.Venue) error {
		v.Enabled = true
		return nil
	})
	require.NoError(t, err)
	enabled, err = db.ListVenues(ctx, repository.VenueFilter{EnabledOnly: true, Type: "badminton"})
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	_, err = db.GetVenue(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSyncSeedVenue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := func(id, name string, price float64) *models.Venue {
		return &models.Venue{
			ID: id, Name: name, SeedName: name, Type: "badminton", OpenTime: "08:00", CloseTime: "22:00",
			SlotDuration: 60, Price: price, Enabled: true, CreateTime: baseTime, UpdateTime: baseTime,
		}
	}

	outcome, err := db.SyncSeedVenue(ctx, seed("s1", "Court A", 40))
	require.NoError(t, err)
	assert.Equal(t, repository.SeedInserted, outcome)

	again := seed("fresh-id", "Court A", 55)
	outcome, err = db.SyncSeedVenue(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, repository.SeedUpdated, outcome)
	assert.Equal(t, "s1", again.ID)
	got, err := db.GetVenue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 55.0, got.Price)
	assert.Equal(t, "Court A", got.SeedName)

	_, err = db.UpdateVenue(ctx, "s1", func(v *models.Venue) error {
		v.Name = "Court A (renamed)"
		v.Enabled = false
		v.AdminModified = true
		return nil
	})
	require.NoError(t, err)

	outcome, err = db.SyncSeedVenue(ctx, seed("fresh-id", "Court A", 70))
	require.NoError(t, err)
	assert.Equal(t, repository.SeedSkipped, outcome)
	got, err = db.GetVenue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Court A (renamed)", got.Name)
	assert.False(t, got.Enabled)
	assert.Equal(t, 55.0, got.Price)

	require.NoError(t, db.CreateVenue(ctx, &models.Venue{
		ID: "a1", Name: "Pool", Type: "swimming", OpenTime: "08:00", CloseTime: "22:00",
		SlotDuration: 60, Enabled: true, AdminModified: true, CreateTime: baseTime, UpdateTime: baseTime,
	}))
	outcome, err = db.SyncSeedVenue(ctx, seed("p1", "Pool", 10))
	require.NoError(t, err)
	assert.Equal(t, repository.SeedSkipped, outcome)

	all, err := db.ListVenues(ctx, repository.VenueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsersAndAdmins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "alice", NickName: "Alice", Phone: "138", CreateTime: baseTime, UpdateTime: baseTime}))
	require.NoError(t, db.SetAdmins(ctx, []string{"alice", "root"}))

	for _, id := range []string{"alice", "root"} {
		isAdmin, err := db.IsAdmin(ctx, id)
		require.NoError(t, err)
		assert.True(t, isAdmin, id)
	}

	// A later login keeps the admin flag and the known phone.
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "alice", NickName: "Alice B", CreateTime: baseTime, UpdateTime: baseTime}))
	u, err := db.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, "Alice B", u.NickName)
	assert.Equal(t, "138", u.Phone)

	require.NoError(t, db.SetAdmins(ctx, []string{"root"}))
	isAdmin, err := db.IsAdmin(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	isAdmin, err = db.IsAdmin(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	u, err = db.UpdateUserProfile(ctx, "alice", models.UserProfile{AvatarURL: "https://img/a.png"}, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Alice B", u.NickName)
	assert.Equal(t, "https://img/a.png", u.AvatarURL)

	_, err = db.UpdateUserProfile(ctx, "nobody", models.UserProfile{NickName: "x"}, baseTime)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParkingConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetParkingConfig(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.SaveParkingConfig(ctx, &models.ParkingConfig{TotalSpaces: 50, UpdateTime: baseTime}))
	require.NoError(t, db.SaveParkingConfig(ctx, &models.ParkingConfig{TotalSpaces: 60, UpdateTime: baseTime}))

	cfg, err := db.GetParkingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.TotalSpaces)
}

type recordingUploader struct {
	keys []string
	err  error
}

func (u *recordingUploader) UploadFile(ctx context.Context, localPath, key string) error {
	u.keys = append(u.keys, key)
	return u.err
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateBookingIfFree(ctx, newBooking("b1", "alice", "10:00")))

	dir := filepath.Join(t.TempDir(), "backups")
	uploader := &recordingUploader{err: errors.New("bucket unreachable")}
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 7}, uploader, &logger)
	svc.now = func() time.Time { return baseTime }

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20261015_090000.db"), path)
	assert.Equal(t, []string{"backups/backup_20261015_090000.db"}, uploader.keys)

	snapshot, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer snapshot.Close()
	b, err := snapshot.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", b.StartTime)

	stale := filepath.Join(dir, "backup_20200101_000000.db")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	svc.now = time.Now
	svc.CleanupOldBackups()
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
