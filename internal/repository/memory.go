package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"venuepark/internal/models"
)

// MemoryStore keeps every collection in process memory. One mutex guards all
// collections, so each check-then-write runs as a single critical section.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	parking  map[string]models.ParkingRecord
	venues   map[string]models.Venue
	users    map[string]models.User
	config   *models.ParkingConfig
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]models.Booking),
		parking:  make(map[string]models.ParkingRecord),
		venues:   make(map[string]models.Venue),
		users:    make(map[string]models.User),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Bookings

func (s *MemoryStore) CreateBookingIfFree(ctx context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bookings {
		if existing.VenueID == b.VenueID && existing.Date == b.Date &&
			existing.StartTime == b.StartTime && existing.Status.IsActive() {
			return ErrSlotTaken
		}
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemoryStore) UpdateBooking(ctx context.Context, id string, fn BookingMutation) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&b); err != nil {
		return nil, err
	}
	s.bookings[id] = b
	return &b, nil
}

func (s *MemoryStore) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, int, error) {
	s.mu.RLock()
	var matched []models.Booking
	for _, b := range s.bookings {
		if f.OwnerID != "" && b.OwnerID != f.OwnerID {
			continue
		}
		if f.VenueID != "" && b.VenueID != f.VenueID {
			continue
		}
		if f.Date != "" && b.Date != f.Date {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !inCreatedRange(b.CreateTime, f.CreatedFrom, f.CreatedTo) {
			continue
		}
		matched = append(matched, b)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreateTime, matched[j].CreateTime, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, f.Pagination), len(matched), nil
}

func (s *MemoryStore) BookedStartTimes(ctx context.Context, venueID, date string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booked := make(map[string]bool)
	for _, b := range s.bookings {
		if b.VenueID == venueID && b.Date == date && b.Status.IsActive() {
			booked[b.StartTime] = true
		}
	}
	return booked, nil
}

// Parking

func (s *MemoryStore) CreateParkingRecord(ctx context.Context, r *models.ParkingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parking[r.ID] = *r
	return nil
}

func (s *MemoryStore) CreateReservationWithinCapacity(ctx context.Context, r *models.ParkingRecord, totalSpaces int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, end := r.Window()
	occupied := 0
	for _, existing := range s.parking {
		if existing.OccupiesCapacity() && existing.OverlapsWindow(r.ReserveDate, start, end) {
			occupied++
		}
	}
	if occupied >= totalSpaces {
		return ErrCapacityExceeded
	}
	s.parking[r.ID] = *r
	return nil
}

func (s *MemoryStore) GetParkingRecord(ctx context.Context, id string) (*models.ParkingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.parking[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) UpdateParkingRecord(ctx context.Context, id string, fn ParkingMutation) (*models.ParkingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.parking[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&r); err != nil {
		return nil, err
	}
	s.parking[id] = r
	return &r, nil
}

func (s *MemoryStore) ListParkingRecords(ctx context.Context, f models.ParkingFilter) ([]models.ParkingRecord, int, error) {
	plate := strings.ToUpper(f.PlateNumber)

	s.mu.RLock()
	var matched []models.ParkingRecord
	for _, r := range s.parking {
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if plate != "" && !strings.Contains(r.PlateNumber, plate) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if !inCreatedRange(r.CreateTime, f.CreatedFrom, f.CreatedTo) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreateTime, matched[j].CreateTime, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, f.Pagination), len(matched), nil
}

func (s *MemoryStore) CountParkingRecords(ctx context.Context, c ParkingCount) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.parking {
		if c.Status != "" && r.Status != c.Status {
			continue
		}
		if c.Type != "" && r.Type != c.Type {
			continue
		}
		if c.ReserveDate != "" && r.ReserveDate != c.ReserveDate {
			continue
		}
		n++
	}
	return n, nil
}

// Venues

func (s *MemoryStore) CreateVenue(ctx context.Context, v *models.Venue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.venues[v.ID] = *v
	return nil
}

func (s *MemoryStore) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.venues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryStore) UpdateVenue(ctx context.Context, id string, fn func(v *models.Venue) error) (*models.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.venues[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(&v); err != nil {
		return nil, err
	}
	s.venues[id] = v
	return &v, nil
}

func (s *MemoryStore) ListVenues(ctx context.Context, f VenueFilter) ([]models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Venue
	for _, v := range s.venues {
		if f.EnabledOnly && !v.Enabled {
			continue
		}
		if f.Type != "" && v.Type != f.Type {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) SyncSeedVenue(ctx context.Context, v *models.Venue) (SeedOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seeded, named *models.Venue
	for id := range s.venues {
		existing := s.venues[id]
		if existing.SeedName != "" && existing.SeedName == v.SeedName {
			seeded = &existing
		}
		if existing.Name == v.Name {
			named = &existing
		}
	}

	if seeded == nil {
		if named != nil {
			return SeedSkipped, nil
		}
		s.venues[v.ID] = *v
		return SeedInserted, nil
	}

	v.ID = seeded.ID
	v.CreateTime = seeded.CreateTime
	if seeded.AdminModified || (named != nil && named.ID != seeded.ID) {
		return SeedSkipped, nil
	}
	s.venues[v.ID] = *v
	return SeedUpdated, nil
}

// Parking config

func (s *MemoryStore) GetParkingConfig(ctx context.Context) (*models.ParkingConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, ErrNotFound
	}
	cfg := *s.config
	return &cfg, nil
}

func (s *MemoryStore) SaveParkingConfig(ctx context.Context, cfg *models.ParkingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *cfg
	s.config = &c
	return nil
}

// Users

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.ID]; ok {
		u.IsAdmin = existing.IsAdmin
		u.CreateTime = existing.CreateTime
		if u.Phone == "" {
			u.Phone = existing.Phone
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UpdateUserProfile(ctx context.Context, id string, p models.UserProfile, at time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyProfile(&u, p, at)
	s.users[id] = u
	return &u, nil
}

func (s *MemoryStore) SetAdmins(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins := make(map[string]bool, len(ids))
	for _, id := range ids {
		admins[id] = true
	}
	for id, u := range s.users {
		u.IsAdmin = admins[id]
		s.users[id] = u
		delete(admins, id)
	}
	now := time.Now()
	for id := range admins {
		s.users[id] = models.User{ID: id, IsAdmin: true, CreateTime: now, UpdateTime: now}
	}
	return nil
}

func (s *MemoryStore) IsAdmin(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.users[id].IsAdmin, nil
}

func applyProfile(u *models.User, p models.UserProfile, at time.Time) {
	if p.NickName != "" {
		u.NickName = p.NickName
	}
	if p.AvatarURL != "" {
		u.AvatarURL = p.AvatarURL
	}
	if p.Phone != "" {
		u.Phone = p.Phone
	}
	u.UpdateTime = at
}

func inCreatedRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func newerFirst(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA > idB
	}
	return a.After(b)
}

func paginate[T any](items []T, p models.Pagination) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
