package models

import "time"

// Venue is a bookable facility in the catalog.
type Venue struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	OpenTime       string    `json:"openTime"`     // HH:MM
	CloseTime      string    `json:"closeTime"`    // HH:MM
	SlotDuration   int       `json:"slotDuration"` // minutes
	Price          float64   `json:"price"`
	PriceUnit      string    `json:"priceUnit"`
	NeedApproval   bool      `json:"needApproval"`
	MinCancelHours *int      `json:"minCancelHours"` // nil means DefaultMinCancelHours
	Enabled        bool      `json:"enabled"`
	CreateTime     time.Time `json:"createTime"`
	UpdateTime     time.Time `json:"updateTime"`

	// SeedName is the venues.yaml entry a venue was created from, empty for
	// venues added through the API. It survives renames.
	SeedName string `json:"-"`
	// AdminModified is set by every admin mutation. Catalog sync never
	// overwrites such a venue.
	AdminModified bool `json:"adminModified"`
}

// DefaultMinCancelHours applies when a venue does not set its own lead time.
const DefaultMinCancelHours = 2

// CancelLeadTime returns the minimum time between cancellation and start.
// An explicit zero means cancellation is allowed up to the start.
func (v *Venue) CancelLeadTime() time.Duration {
	hours := DefaultMinCancelHours
	if v.MinCancelHours != nil {
		hours = *v.MinCancelHours
	}
	return time.Duration(hours) * time.Hour
}

// VenuePatch carries the mutable venue fields; nil leaves a field as is.
type VenuePatch struct {
	Name           *string  `json:"name,omitempty"`
	Type           *string  `json:"type,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Location       *string  `json:"location,omitempty"`
	OpenTime       *string  `json:"openTime,omitempty"`
	CloseTime      *string  `json:"closeTime,omitempty"`
	SlotDuration   *int     `json:"slotDuration,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	PriceUnit      *string  `json:"priceUnit,omitempty"`
	NeedApproval   *bool    `json:"needApproval,omitempty"`
	MinCancelHours *int     `json:"minCancelHours,omitempty"`
}

// Apply copies the set fields onto v.
func (p VenuePatch) Apply(v *Venue) {
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Type != nil {
		v.Type = *p.Type
	}
	if p.Description != nil {
		v.Description = *p.Description
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.OpenTime != nil {
		v.OpenTime = *p.OpenTime
	}
	if p.CloseTime != nil {
		v.CloseTime = *p.CloseTime
	}
	if p.SlotDuration != nil {
		v.SlotDuration = *p.SlotDuration
	}
	if p.Price != nil {
		v.Price = *p.Price
	}
	if p.PriceUnit != nil {
		v.PriceUnit = *p.PriceUnit
	}
	if p.NeedApproval != nil {
		v.NeedApproval = *p.NeedApproval
	}
	if p.MinCancelHours != nil {
		hours := *p.MinCancelHours
		v.MinCancelHours = &hours
	}
}
