package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"venuepark/internal/models"

	"github.com/rs/zerolog"
)

const exportPageSize = models.MaxPageSize

var (
	bookingColumns = []string{
		"id", "user_id", "venue", "venue_type", "date", "start_time", "end_time",
		"status", "user_name", "user_phone", "remark", "cancel_reason", "created_at",
	}
	parkingColumns = []string{
		"id", "user_id", "plate_number", "type", "purpose", "reserve_date", "reserve_start", "reserve_end",
		"status", "entry_time", "exit_time", "duration_minutes", "created_at",
	}
)

// Config holds configuration for the audit service.
type Config struct {
	// Dir receives the generated workbooks.
	Dir string

	// ExportOnStart if true, exports the previous month immediately on start.
	ExportOnStart bool

	// Location decides where a month starts.
	Location *time.Location
}

// Service writes monthly booking and parking reports.
type Service struct {
	config   Config
	source   Source
	writer   func() ExcelWriter // factory for creating new Excel writers
	notifier Notifier
	uploader Uploader
	logger   zerolog.Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates a new audit service. notifier and uploader may be nil.
func NewService(
	config Config,
	source Source,
	writerFactory func() ExcelWriter,
	notifier Notifier,
	uploader Uploader,
	logger zerolog.Logger,
) *Service {
	if config.Dir == "" {
		config.Dir = "data/exports"
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}

	return &Service{
		config:   config,
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		uploader: uploader,
		logger:   logger.With().Str("component", "audit").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runMonthly()
		}()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Str("dir", s.config.Dir).Msg("Audit service started")
}

// Stop gracefully stops the audit service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("Audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("time", nextRun).Msg("Next audit scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.runMonthly()

			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("time", nextRun).Msg("Next audit scheduled")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := s.now().In(s.config.Location)
	// First day of next month at 00:01
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

func (s *Service) runMonthly() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	from, to := PreviousMonth(s.now().In(s.config.Location))
	if _, err := s.Export(ctx, from, to); err != nil {
		s.logger.Error().Err(err).Time("from", from).Msg("Failed to export audit report")
	}
}

// Export writes bookings and parking records created in [from, to) to a
// workbook, ships it and returns its local path.
func (s *Service) Export(ctx context.Context, from, to time.Time) (string, error) {
	if s.source == nil {
		return "", fmt.Errorf("audit source not configured")
	}
	if !to.After(from) {
		return "", fmt.Errorf("empty export range %s..%s", from.Format(models.DateLayout), to.Format(models.DateLayout))
	}

	excel := s.writer()
	if excel == nil {
		return "", fmt.Errorf("failed to create excel writer")
	}
	if c, ok := excel.(io.Closer); ok {
		defer c.Close()
	}

	bookings, err := s.writeBookings(ctx, excel, from, to)
	if err != nil {
		return "", err
	}
	records, err := s.writeParking(ctx, excel, from, to)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	filename := GenerateFilename(from, to)
	path := filepath.Join(s.config.Dir, filename)
	if err := excel.SaveToFile(path); err != nil {
		return "", fmt.Errorf("save excel: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Int("bookings", bookings).
		Int("parking_records", records).
		Msg("Audit report written")

	if s.uploader != nil {
		if err := s.uploader.UploadFile(ctx, path, "exports/"+filename); err != nil {
			s.logger.Error().Err(err).Str("file", filename).Msg("Audit report upload failed")
		}
	}
	if s.notifier != nil {
		caption := fmt.Sprintf("Report %s to %s: %d bookings, %d parking records",
			from.Format(models.DateLayout), to.Format(models.DateLayout), bookings, records)
		if err := s.notifier.SendDocument(ctx, path, caption); err != nil {
			return path, fmt.Errorf("send document: %w", err)
		}
	}

	return path, nil
}

func (s *Service) writeBookings(ctx context.Context, excel ExcelWriter, from, to time.Time) (int, error) {
	if err := excel.AddSheet("bookings"); err != nil {
		return 0, err
	}
	if err := excel.WriteHeader(bookingColumns); err != nil {
		return 0, err
	}

	written := 0
	for page := 1; ; page++ {
		list, total, err := s.source.ListBookings(ctx, models.BookingFilter{
			CreatedFrom: from,
			CreatedTo:   to,
			Pagination:  models.Pagination{Page: page, PageSize: exportPageSize},
		})
		if err != nil {
			return written, fmt.Errorf("list bookings: %w", err)
		}
		for _, b := range list {
			row := []interface{}{
				b.ID, b.OwnerID, b.VenueName, b.VenueType, b.Date, b.StartTime, b.EndTime,
				string(b.Status), b.UserName, b.UserPhone, b.Remark, b.CancelReason, s.stamp(b.CreateTime),
			}
			if err := excel.WriteRow(row); err != nil {
				s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("Failed to write row")
				continue
			}
			written++
		}
		if len(list) == 0 || page*exportPageSize >= total {
			return written, nil
		}
	}
}

func (s *Service) writeParking(ctx context.Context, excel ExcelWriter, from, to time.Time) (int, error) {
	if err := excel.AddSheet("parking"); err != nil {
		return 0, err
	}
	if err := excel.WriteHeader(parkingColumns); err != nil {
		return 0, err
	}

	written := 0
	for page := 1; ; page++ {
		list, total, err := s.source.ListParkingRecords(ctx, models.ParkingFilter{
			CreatedFrom: from,
			CreatedTo:   to,
			Pagination:  models.Pagination{Page: page, PageSize: exportPageSize},
		})
		if err != nil {
			return written, fmt.Errorf("list parking records: %w", err)
		}
		for _, r := range list {
			var duration interface{}
			if r.Duration != nil {
				duration = *r.Duration
			}
			row := []interface{}{
				r.ID, r.OwnerID, r.PlateNumber, string(r.Type), r.Purpose, r.ReserveDate, r.ReserveStartTime,
				r.ReserveEndTime, string(r.Status), s.stampPtr(r.EntryTime), s.stampPtr(r.ExitTime), duration,
				s.stamp(r.CreateTime),
			}
			if err := excel.WriteRow(row); err != nil {
				s.logger.Error().Err(err).Str("record_id", r.ID).Msg("Failed to write row")
				continue
			}
			written++
		}
		if len(list) == 0 || page*exportPageSize >= total {
			return written, nil
		}
	}
}

func (s *Service) stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.config.Location).Format("2006-01-02 15:04:05")
}

func (s *Service) stampPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return s.stamp(*t)
}
