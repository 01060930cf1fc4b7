package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"venuepark/internal/models"
	"venuepark/internal/repository"
)

const bookingColumns = `id, owner_id, venue_id, venue_name, venue_type, date, start_time, end_time,
	status, user_name, user_phone, remark, cancel_reason, create_time, update_time`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                      models.Booking
		status                 string
		createTime, updateTime int64
	)
	err := row.Scan(&b.ID, &b.OwnerID, &b.VenueID, &b.VenueName, &b.VenueType, &b.Date, &b.StartTime, &b.EndTime,
		&status, &b.UserName, &b.UserPhone, &b.Remark, &b.CancelReason, &createTime, &updateTime)
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	b.CreateTime = fromMillis(createTime)
	b.UpdateTime = fromMillis(updateTime)
	return &b, nil
}

// CreateBookingIfFree checks the slot and inserts in one immediate
// transaction. The partial unique index rejects anything that slips past.
func (db *DB) CreateBookingIfFree(ctx context.Context, b *models.Booking) error {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM bookings
			WHERE venue_id = ? AND date = ? AND start_time = ? AND status IN ('pending', 'confirmed')`,
			b.VenueID, b.Date, b.StartTime,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if active > 0 {
			return repository.ErrSlotTaken
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.OwnerID, b.VenueID, b.VenueName, b.VenueType, b.Date, b.StartTime, b.EndTime,
			string(b.Status), b.UserName, b.UserPhone, b.Remark, b.CancelReason,
			toMillis(b.CreateTime), toMillis(b.UpdateTime),
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return repository.ErrSlotTaken
	}
	return err
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// UpdateBooking re-reads the booking inside the transaction, applies fn and
// writes the mutable columns back.
func (db *DB) UpdateBooking(ctx context.Context, id string, fn repository.BookingMutation) (*models.Booking, error) {
	var updated *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}

		if err := fn(b); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = ?, cancel_reason = ?, remark = ?, update_time = ?
			WHERE id = ?`,
			string(b.Status), b.CancelReason, b.Remark, toMillis(b.UpdateTime), id,
		)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		updated = b
		return nil
	})
	if isUniqueViolation(err) {
		return nil, repository.ErrSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func bookingWhere(f models.BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.VenueID != "" {
		conds = append(conds, "venue_id = ?")
		args = append(args, f.VenueID)
	}
	if f.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.CreatedFrom.IsZero() {
		conds = append(conds, "create_time >= ?")
		args = append(args, toMillis(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		conds = append(conds, "create_time < ?")
		args = append(args, toMillis(f.CreatedTo))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, int, error) {
	where, args := bookingWhere(f)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	page := f.Pagination.Normalize()
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings`+where+` ORDER BY create_time DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	result := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}
	return result, total, rows.Err()
}

func (db *DB) BookedStartTimes(ctx context.Context, venueID, date string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT start_time FROM bookings
		WHERE venue_id = ? AND date = ? AND status IN ('pending', 'confirmed')`,
		venueID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("query booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]bool)
	for rows.Next() {
		var start string
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		booked[start] = true
	}
	return booked, rows.Err()
}
