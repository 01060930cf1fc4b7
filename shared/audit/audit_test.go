package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendDocument(ctx context.Context, path, caption string) error {
	args := m.Called(ctx, path, caption)
	return args.Error(0)
}

type recordingUploader struct {
	keys []string
}

func (u *recordingUploader) UploadFile(ctx context.Context, localPath, key string) error {
	u.keys = append(u.keys, key)
	return nil
}

type sheetRecorder struct {
	sheets map[string][][]interface{}
	order  []string
	saved  string
}

func newSheetRecorder() *sheetRecorder {
	return &sheetRecorder{sheets: make(map[string][][]interface{})}
}

func (r *sheetRecorder) current() string { return r.order[len(r.order)-1] }

func (r *sheetRecorder) AddSheet(name string) error {
	r.order = append(r.order, name)
	return nil
}

func (r *sheetRecorder) WriteHeader(columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return r.WriteRow(row)
}

func (r *sheetRecorder) WriteRow(row []interface{}) error {
	r.sheets[r.current()] = append(r.sheets[r.current()], row)
	return nil
}

func (r *sheetRecorder) Save(w io.Writer) error { return nil }

func (r *sheetRecorder) SaveToFile(path string) error {
	r.saved = path
	return nil
}

var october = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, bookings, records int) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	for i := 0; i < bookings; i++ {
		created := october.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.CreateBookingIfFree(ctx, &models.Booking{
			ID: fmt.Sprintf("b%03d", i), OwnerID: "alice", VenueID: "v1", VenueName: "Court A",
			Date: "2026-10-20", StartTime: fmt.Sprintf("%02d:%02d", i/60, i%60), Status: models.BookingConfirmed,
			CreateTime: created, UpdateTime: created,
		}))
	}
	for i := 0; i < records; i++ {
		duration := 30
		require.NoError(t, store.CreateParkingRecord(ctx, &models.ParkingRecord{
			ID: fmt.Sprintf("p%03d", i), OwnerID: "bob", PlateNumber: "A1", Type: models.ParkingVisitor,
			Status: models.ParkingExited, Duration: &duration, CreateTime: october, UpdateTime: october,
		}))
	}
	// Outside the range.
	require.NoError(t, store.CreateParkingRecord(ctx, &models.ParkingRecord{
		ID: "old", OwnerID: "bob", PlateNumber: "Z9", Type: models.ParkingVisitor, Status: models.ParkingPending,
		CreateTime: october.AddDate(0, -1, 0), UpdateTime: october,
	}))
	return store
}

func TestExport_PagesThroughAllRecords(t *testing.T) {
	store := seed(t, 230, 3)
	recorder := newSheetRecorder()
	uploader := &recordingUploader{}
	notifier := &mockNotifier{}
	dir := t.TempDir()
	wantPath := filepath.Join(dir, "venuepark_2026-10-01_2026-11-01.xlsx")
	notifier.On("SendDocument", mock.Anything, wantPath, "Report 2026-10-01 to 2026-11-01: 230 bookings, 3 parking records").Return(nil)

	svc := NewService(Config{Dir: dir, Location: time.UTC}, store,
		func() ExcelWriter { return recorder }, notifier, uploader, zerolog.Nop())

	path, err := svc.Export(context.Background(), october, october.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, wantPath, path)
	assert.Equal(t, wantPath, recorder.saved)
	assert.Equal(t, []string{"bookings", "parking"}, recorder.order)
	assert.Len(t, recorder.sheets["bookings"], 231)
	assert.Len(t, recorder.sheets["parking"], 4)
	assert.Equal(t, "duration_minutes", recorder.sheets["parking"][0][11])
	assert.Equal(t, 30, recorder.sheets["parking"][1][11])
	assert.Equal(t, []string{"exports/venuepark_2026-10-01_2026-11-01.xlsx"}, uploader.keys)
	notifier.AssertExpectations(t)
}

func TestExport_Errors(t *testing.T) {
	svc := NewService(Config{Dir: t.TempDir(), Location: time.UTC}, nil, nil, nil, nil, zerolog.Nop())
	_, err := svc.Export(context.Background(), october, october.AddDate(0, 1, 0))
	assert.Error(t, err)

	svc = NewService(Config{Dir: t.TempDir(), Location: time.UTC}, seed(t, 1, 0), nil, nil, nil, zerolog.Nop())
	_, err = svc.Export(context.Background(), october, october)
	assert.Error(t, err)

	notifier := &mockNotifier{}
	notifier.On("SendDocument", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("chat not found"))
	svc = NewService(Config{Dir: t.TempDir(), Location: time.UTC}, seed(t, 1, 0),
		func() ExcelWriter { return newSheetRecorder() }, notifier, nil, zerolog.Nop())
	path, err := svc.Export(context.Background(), october, october.AddDate(0, 1, 0))
	assert.Error(t, err)
	assert.NotEmpty(t, path)
}

func TestExcelizeWriter_RoundTrip(t *testing.T) {
	store := seed(t, 2, 1)
	dir := t.TempDir()
	svc := NewService(Config{Dir: dir, Location: time.UTC}, store, NewExcelizeWriter, nil, nil, zerolog.Nop())

	path, err := svc.Export(context.Background(), october, october.AddDate(0, 1, 0))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"bookings", "parking"}, f.GetSheetList())
	rows, err := f.GetRows("bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "b001", rows[1][0])

	rows, err = f.GetRows("parking")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A1", rows[1][2])
}

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		now      time.Time
		from, to string
	}{
		{time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC), "2026-10-01", "2026-11-01"},
		{time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), "2025-12-01", "2026-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			from, to := PreviousMonth(tt.now)
			assert.Equal(t, tt.from, from.Format(models.DateLayout))
			assert.Equal(t, tt.to, to.Format(models.DateLayout))
		})
	}
}
