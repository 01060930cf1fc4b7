package models

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// BookingStatus is the lifecycle state of a venue booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// ActiveBookingStatuses occupy a slot.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed}

// ParseBookingStatus validates a raw status value.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// CanTransitionTo reports whether the lattice allows s -> to.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a booking in this status holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Booking is one reservation of one venue for one slot on one date.
type Booking struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"userId"`
	VenueID      string        `json:"venueId"`
	VenueName    string        `json:"venueName"`
	VenueType    string        `json:"venueType"`
	Date         string        `json:"date"`      // YYYY-MM-DD
	StartTime    string        `json:"startTime"` // HH:MM
	EndTime      string        `json:"endTime"`   // HH:MM
	Status       BookingStatus `json:"status"`
	UserName     string        `json:"userName"`
	UserPhone    string        `json:"userPhone"`
	Remark       string        `json:"remark"`
	CancelReason string        `json:"cancelReason"`
	CreateTime   time.Time     `json:"createTime"`
	UpdateTime   time.Time     `json:"updateTime"`
}

// StartAt returns the booking start instant in loc.
func (b *Booking) StartAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, b.Date+" "+b.StartTime, loc)
}

// BookingFilter selects bookings for list projections.
type BookingFilter struct {
	OwnerID string
	VenueID string
	Date    string
	Status  BookingStatus
	// CreatedFrom is inclusive, CreatedTo exclusive. Zero means unbounded.
	CreatedFrom time.Time
	CreatedTo   time.Time
	Pagination
}
