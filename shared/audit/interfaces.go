package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"venuepark/internal/models"
)

// Source pages through the records a report covers.
type Source interface {
	ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, int, error)
	ListParkingRecords(ctx context.Context, f models.ParkingFilter) ([]models.ParkingRecord, int, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// SaveToFile writes the Excel file to disk.
	SaveToFile(path string) error
}

// Notifier sends a finished report to admins.
type Notifier interface {
	SendDocument(ctx context.Context, path, caption string) error
}

// Uploader ships a finished report to off-host storage.
type Uploader interface {
	UploadFile(ctx context.Context, localPath, key string) error
}

// GenerateFilename creates a filename like "venuepark_2026-10-01_2026-11-01.xlsx".
func GenerateFilename(from, to time.Time) string {
	return fmt.Sprintf("venuepark_%s_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// PreviousMonth returns the [first, first of next) range of the month before now.
func PreviousMonth(now time.Time) (from, to time.Time) {
	to = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return to.AddDate(0, -1, 0), to
}
