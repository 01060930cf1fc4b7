package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ParkingStatus is the lifecycle state of a parking record.
type ParkingStatus string

const (
	ParkingPending   ParkingStatus = "pending"
	ParkingEntered   ParkingStatus = "entered"
	ParkingExited    ParkingStatus = "exited"
	ParkingCancelled ParkingStatus = "cancelled"
)

var parkingTransitions = map[ParkingStatus][]ParkingStatus{
	ParkingPending: {ParkingEntered, ParkingCancelled},
	ParkingEntered: {ParkingExited},
}

// ParseParkingStatus validates a raw status value.
func ParseParkingStatus(s string) (ParkingStatus, error) {
	switch st := ParkingStatus(s); st {
	case ParkingPending, ParkingEntered, ParkingExited, ParkingCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown parking status %q", s)
}

func (s ParkingStatus) CanTransitionTo(to ParkingStatus) bool {
	for _, next := range parkingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ParkingStatus) IsTerminal() bool {
	return len(parkingTransitions[s]) == 0
}

// ParkingType discriminates drop-in visitors from advance reservations.
type ParkingType string

const (
	ParkingVisitor ParkingType = "visitor"
	ParkingReserve ParkingType = "reserve"
)

// OccupyingParkingStatuses count against reservation capacity.
var OccupyingParkingStatuses = []ParkingStatus{ParkingPending, ParkingEntered}

// OpenEndTime stands in for a missing reservation end.
const OpenEndTime = "23:59"

// AdminRegisterOwner owns records created by administrators.
const AdminRegisterOwner = "admin_register"

// ParkingRecord is a visitor registration or a space reservation.
type ParkingRecord struct {
	ID               string        `json:"id"`
	OwnerID          string        `json:"userId"`
	PlateNumber      string        `json:"plateNumber"`
	Type             ParkingType   `json:"type"`
	Purpose          string        `json:"purpose"`
	ExpectedDuration int           `json:"expectedDuration,omitempty"` // minutes, visitors only
	ReserveDate      string        `json:"reserveDate,omitempty"`
	ReserveStartTime string        `json:"reserveStartTime,omitempty"`
	ReserveEndTime   string        `json:"reserveEndTime,omitempty"`
	Status           ParkingStatus `json:"status"`
	EntryTime        *time.Time    `json:"entryTime"`
	ExitTime         *time.Time    `json:"exitTime"`
	Duration         *int          `json:"duration"` // minutes
	QRCode           string        `json:"qrCode"`
	CreateTime       time.Time     `json:"createTime"`
	UpdateTime       time.Time     `json:"updateTime"`
}

// Window returns the reservation window with an open end closed at OpenEndTime.
func (r *ParkingRecord) Window() (start, end string) {
	end = r.ReserveEndTime
	if end == "" {
		end = OpenEndTime
	}
	return r.ReserveStartTime, end
}

// OverlapsWindow reports whether r is a reservation on date whose window intersects [start, end].
// Times are zero-padded HH:MM so lexical order equals chronological order.
func (r *ParkingRecord) OverlapsWindow(date, start, end string) bool {
	if r.Type != ParkingReserve || r.ReserveDate != date {
		return false
	}
	if end == "" {
		end = OpenEndTime
	}
	existingStart, existingEnd := r.Window()
	return existingStart <= end && existingEnd >= start
}

// OccupiesCapacity reports whether r counts against reservation capacity.
func (r *ParkingRecord) OccupiesCapacity() bool {
	return r.Type == ParkingReserve && (r.Status == ParkingPending || r.Status == ParkingEntered)
}

// StayMinutes rounds the stay between entry and exit to whole minutes.
func StayMinutes(entry, exit time.Time) int {
	return int(math.Round(exit.Sub(entry).Minutes()))
}

// AdmissionToken is the marker shown at the gate. It is not a credential.
type AdmissionToken struct {
	Type        string `json:"type"`
	RecordID    string `json:"recordId"`
	PlateNumber string `json:"plateNumber"`
	Timestamp   int64  `json:"timestamp"` // unix millis
}

// NewAdmissionToken encodes the token for a freshly created record.
func NewAdmissionToken(recordID, plate string, at time.Time) (string, error) {
	raw, err := json.Marshal(AdmissionToken{
		Type:        "parking_entry",
		RecordID:    recordID,
		PlateNumber: plate,
		Timestamp:   at.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParkingFilter selects parking records for list projections.
type ParkingFilter struct {
	OwnerID     string
	PlateNumber string // case-insensitive substring
	Status      ParkingStatus
	Type        ParkingType
	CreatedFrom time.Time // inclusive
	CreatedTo   time.Time // exclusive
	Pagination
}

// ParkingConfig is the singleton parking configuration.
type ParkingConfig struct {
	TotalSpaces int       `json:"totalSpaces" yaml:"total_spaces"`
	UpdateTime  time.Time `json:"updateTime"`
}

// ParkingStatusSummary is the lot occupancy snapshot.
type ParkingStatusSummary struct {
	TotalSpaces     int `json:"totalSpaces"`
	UsedSpaces      int `json:"usedSpaces"`
	AvailableSpaces int `json:"availableSpaces"`
	ReservedToday   int `json:"reservedToday"`
}
