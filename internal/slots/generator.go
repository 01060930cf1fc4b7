package slots

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status annotates a generated slot.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusExpired   Status = "expired"
)

const (
	DefaultOpenTime     = "08:00"
	DefaultCloseTime    = "22:00"
	DefaultSlotDuration = 60
)

// Slot represents a time slot.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Status    Status
}

// SlotInfo is the wire representation of a slot.
type SlotInfo struct {
	StartTime string `json:"startTime"` // "10:00"
	EndTime   string `json:"endTime"`   // "11:00"
	Status    Status `json:"status"`
}

// Schedule contains the venue hours for a day.
type Schedule struct {
	OpenTime     string // "08:00"
	CloseTime    string // "22:00"
	SlotDuration int    // minutes
}

// BookingChecker reports which slot start times are held by active bookings.
type BookingChecker interface {
	BookedStartTimes(ctx context.Context, venueID, date string) (map[string]bool, error)
}

// Generator generates annotated slots for a venue and date.
type Generator struct {
	checker BookingChecker
	now     func() time.Time
}

// NewGenerator creates a new slot generator. A nil clock means time.Now.
func NewGenerator(checker BookingChecker, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{checker: checker, now: now}
}

// GenerateSlots generates all slots for date and annotates each one.
func (g *Generator) GenerateSlots(ctx context.Context, venueID string, date time.Time, schedule Schedule) ([]Slot, error) {
	windows, err := Windows(date, schedule)
	if err != nil {
		return nil, err
	}

	booked := map[string]bool{}
	if g.checker != nil && len(windows) > 0 {
		booked, err = g.checker.BookedStartTimes(ctx, venueID, date.Format("2006-01-02"))
		if err != nil {
			return nil, fmt.Errorf("check slots: %w", err)
		}
	}

	now := g.now().In(date.Location())
	today := sameDay(date, now)

	for i := range windows {
		switch {
		case booked[windows[i].StartTime.Format("15:04")]:
			windows[i].Status = StatusBooked
		case today && !windows[i].StartTime.After(now):
			windows[i].Status = StatusExpired
		default:
			windows[i].Status = StatusAvailable
		}
	}

	return windows, nil
}

// Windows lays out back-to-back windows from open to close. A window that
// would run past closing time is dropped.
func Windows(date time.Time, schedule Schedule) ([]Slot, error) {
	schedule = schedule.withDefaults()

	openAt, err := parseTimeOnDate(date, schedule.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closeAt, err := parseTimeOnDate(date, schedule.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}

	slotDuration := time.Duration(schedule.SlotDuration) * time.Minute
	var slots []Slot

	for cursor := openAt; !cursor.Add(slotDuration).After(closeAt); cursor = cursor.Add(slotDuration) {
		slots = append(slots, Slot{
			StartTime: cursor,
			EndTime:   cursor.Add(slotDuration),
			Status:    StatusAvailable,
		})
	}

	return slots, nil
}

// FindWindow returns the window starting at start ("HH:MM"), if the schedule has one.
func FindWindow(date time.Time, schedule Schedule, start string) (Slot, bool) {
	windows, err := Windows(date, schedule)
	if err != nil {
		return Slot{}, false
	}
	for _, w := range windows {
		if w.StartTime.Format("15:04") == start {
			return w, true
		}
	}
	return Slot{}, false
}

// ToSlotInfo converts slots for the wire.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			StartTime: s.StartTime.Format("15:04"),
			EndTime:   s.EndTime.Format("15:04"),
			Status:    s.Status,
		}
	}
	return result
}

// CountAvailable returns how many slots can still be booked.
func CountAvailable(slots []Slot) int {
	n := 0
	for _, s := range slots {
		if s.Status == StatusAvailable {
			n++
		}
	}
	return n
}

// ValidateClock checks a zero-padded "HH:MM" value.
func ValidateClock(value string) error {
	if len(value) != 5 || value[2] != ':' {
		return fmt.Errorf("invalid time format %q; expected HH:MM", value)
	}
	_, err := parseTimeOnDate(time.Time{}, value)
	return err
}

func (s Schedule) withDefaults() Schedule {
	if s.OpenTime == "" {
		s.OpenTime = DefaultOpenTime
	}
	if s.CloseTime == "" {
		s.CloseTime = DefaultCloseTime
	}
	if s.SlotDuration <= 0 {
		s.SlotDuration = DefaultSlotDuration
	}
	return s
}

func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", timeStr)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", timeStr)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
