package service

import (
	"context"
	"testing"

	"venuepark/internal/apperr"
	"venuepark/internal/config"
	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenueService_GetList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.venues.GetList(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	f.addVenue(t, "v1", nil)
	f.addVenue(t, "v2", func(v *models.Venue) { v.Type = "tennis" })
	f.addVenue(t, "v3", func(v *models.Venue) { v.Enabled = false })

	list, err = f.venues.GetList(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.venues.GetList(ctx, "tennis")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].ID)
}

func TestVenueService_GetTimeSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVenue(t, "v1", func(v *models.Venue) { v.CloseTime = "11:00" })
	f.addVenue(t, "off", func(v *models.Venue) { v.Enabled = false })

	_, err := f.bookings.Create(ctx, sess(aliceID), bookingInput("v1", "2026-10-16", "09:00", "10:00"))
	require.NoError(t, err)

	grid, err := f.venues.GetTimeSlots(ctx, "v1", "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, "Venue v1", grid.Venue.Name)
	assert.Equal(t, 40.0, grid.Venue.Price)
	require.Len(t, grid.Slots, 3)
	assert.Equal(t, "09:00", grid.Slots[1].StartTime)
	assert.NotEqual(t, grid.Slots[0].Status, grid.Slots[1].Status)

	_, err = f.venues.GetTimeSlots(ctx, "off", "2026-10-16")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	_, err = f.venues.GetTimeSlots(ctx, "missing", "2026-10-16")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.venues.GetTimeSlots(ctx, "v1", "16.10.2026")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestVenueService_Add(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.venues.Add(ctx, sess(aliceID), models.Venue{Name: "Court", Type: "tennis"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	tests := []struct {
		name  string
		venue models.Venue
	}{
		{"missing name", models.Venue{Type: "tennis"}},
		{"missing type", models.Venue{Name: "Court"}},
		{"close before open", models.Venue{Name: "Court", Type: "tennis", OpenTime: "20:00", CloseTime: "08:00"}},
		{"bad clock", models.Venue{Name: "Court", Type: "tennis", OpenTime: "8"}},
		{"negative price", models.Venue{Name: "Court", Type: "tennis", Price: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.venues.Add(ctx, sess(adminID), tt.venue)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	v, err := f.venues.Add(ctx, sess(adminID), models.Venue{ID: "ignored", Name: " Court ", Type: "tennis", Enabled: false})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", v.ID)
	assert.Equal(t, "Court", v.Name)
	assert.True(t, v.Enabled)
	assert.Equal(t, "08:00", v.OpenTime)
	assert.Equal(t, "22:00", v.CloseTime)
	assert.Equal(t, 60, v.SlotDuration)

	got, err := f.venues.GetDetail(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
}

func TestVenueService_UpdateAndToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVenue(t, "v1", nil)

	price := 55.0
	updated, err := f.venues.Update(ctx, sess(adminID), "v1", models.VenuePatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 55.0, updated.Price)
	assert.Equal(t, "Venue v1", updated.Name)

	badClose := "07:00"
	_, err = f.venues.Update(ctx, sess(adminID), "v1", models.VenuePatch{CloseTime: &badClose})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	stored, err := f.venues.GetDetail(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "22:00", stored.CloseTime)

	_, err = f.venues.Update(ctx, sess(adminID), "missing", models.VenuePatch{Price: &price})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.venues.Disable(ctx, sess(aliceID), "v1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	disabled, err := f.venues.Disable(ctx, sess(adminID), "v1")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	_, err = f.bookings.Create(ctx, sess(aliceID), bookingInput("v1", "2026-10-16", "10:00", "11:00"))
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	enabled, err := f.venues.Enable(ctx, sess(adminID), "v1")
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	_, err = f.bookings.Create(ctx, sess(aliceID), bookingInput("v1", "2026-10-16", "10:00", "11:00"))
	assert.NoError(t, err)
}

func TestVenueService_SyncCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sched := &config.VenueScheduleConfig{OpenTime: "09:00", CloseTime: "18:00", SlotDurationMinutes: 90}
	disabled := false

	cfg := &config.VenuesConfig{Venues: []config.VenueConfig{
		{Name: "Court A", Type: "badminton", Price: 40, Schedule: sched},
		{Name: "Field 1", Type: "football", NeedApproval: true, Enabled: &disabled, Schedule: sched},
	}}
	require.NoError(t, f.venues.SyncCatalog(ctx, cfg))

	all, err := f.store.ListVenues(ctx, repository.VenueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	court := all[0]
	assert.Equal(t, "Court A", court.Name)
	assert.Equal(t, 90, court.SlotDuration)
	assert.False(t, all[1].Enabled)
	assert.True(t, all[1].NeedApproval)

	cfg.Venues[0].Price = 60
	require.NoError(t, f.venues.SyncCatalog(ctx, cfg))

	again, err := f.store.ListVenues(ctx, repository.VenueFilter{})
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, court.ID, again[0].ID)
	assert.Equal(t, 60.0, again[0].Price)

	bad := &config.VenuesConfig{Venues: []config.VenueConfig{{Name: "", Type: "x", Schedule: sched}}}
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(f.venues.SyncCatalog(ctx, bad)))
}

func TestVenueService_SyncCatalogKeepsAdminEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sched := &config.VenueScheduleConfig{OpenTime: "09:00", CloseTime: "18:00", SlotDurationMinutes: 60}
	cfg := &config.VenuesConfig{Venues: []config.VenueConfig{
		{Name: "Court A", Type: "badminton", Price: 40, Schedule: sched},
		{Name: "Field 1", Type: "football", Price: 300, Schedule: sched},
	}}
	require.NoError(t, f.venues.SyncCatalog(ctx, cfg))

	byName := func() map[string]models.Venue {
		all, err := f.store.ListVenues(ctx, repository.VenueFilter{})
		require.NoError(t, err)
		out := make(map[string]models.Venue, len(all))
		for _, v := range all {
			out[v.Name] = v
		}
		return out
	}
	seeded := byName()

	_, err := f.venues.Disable(ctx, sess(adminID), seeded["Court A"].ID)
	require.NoError(t, err)
	renamed := "Main Field"
	_, err = f.venues.Update(ctx, sess(adminID), seeded["Field 1"].ID, models.VenuePatch{Name: &renamed})
	require.NoError(t, err)
	pool, err := f.venues.Add(ctx, sess(adminID), models.Venue{Name: "Pool", Type: "swimming", Price: 15})
	require.NoError(t, err)

	cfg.Venues = append(cfg.Venues, config.VenueConfig{Name: "Pool", Type: "swimming", Price: 99, Schedule: sched})
	require.NoError(t, f.venues.SyncCatalog(ctx, cfg))

	got := byName()
	require.Len(t, got, 3)
	assert.False(t, got["Court A"].Enabled)
	assert.Equal(t, seeded["Field 1"].ID, got["Main Field"].ID)
	assert.NotContains(t, got, "Field 1")
	assert.Equal(t, pool.ID, got["Pool"].ID)
	assert.Equal(t, 15.0, got["Pool"].Price)
}
