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

const parkingColumns = `id, owner_id, plate_number, type, purpose, expected_duration, reserve_date,
	reserve_start_time, reserve_end_time, status, entry_time, exit_time, duration, qr_code,
	create_time, update_time`

func scanParkingRecord(row rowScanner) (*models.ParkingRecord, error) {
	var (
		r                        models.ParkingRecord
		recordType, status       string
		entryTime, exitTime, dur sql.NullInt64
		createTime, updateTime   int64
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.PlateNumber, &recordType, &r.Purpose, &r.ExpectedDuration, &r.ReserveDate,
		&r.ReserveStartTime, &r.ReserveEndTime, &status, &entryTime, &exitTime, &dur, &r.QRCode,
		&createTime, &updateTime)
	if err != nil {
		return nil, err
	}
	r.Type = models.ParkingType(recordType)
	r.Status = models.ParkingStatus(status)
	r.EntryTime = timePtr(entryTime)
	r.ExitTime = timePtr(exitTime)
	r.Duration = intPtr(dur)
	r.CreateTime = fromMillis(createTime)
	r.UpdateTime = fromMillis(updateTime)
	return &r, nil
}

func insertParkingRecord(ctx context.Context, exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, r *models.ParkingRecord) error {
	_, err := exec.ExecContext(ctx, `INSERT INTO parking_records (`+parkingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.PlateNumber, string(r.Type), r.Purpose, r.ExpectedDuration, r.ReserveDate,
		r.ReserveStartTime, r.ReserveEndTime, string(r.Status), nullMillis(r.EntryTime), nullMillis(r.ExitTime),
		nullInt(r.Duration), r.QRCode, toMillis(r.CreateTime), toMillis(r.UpdateTime),
	)
	if err != nil {
		return fmt.Errorf("insert parking record: %w", err)
	}
	return nil
}

func (db *DB) CreateParkingRecord(ctx context.Context, r *models.ParkingRecord) error {
	return insertParkingRecord(ctx, db, r)
}

// CreateReservationWithinCapacity counts overlapping occupying reservations
// and inserts r in the same immediate transaction.
func (db *DB) CreateReservationWithinCapacity(ctx context.Context, r *models.ParkingRecord, totalSpaces int) error {
	start, end := r.Window()
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var occupied int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM parking_records
			WHERE type = 'reserve'
			  AND status IN ('pending', 'entered')
			  AND reserve_date = ?
			  AND reserve_start_time <= ?
			  AND COALESCE(NULLIF(reserve_end_time, ''), ?) >= ?`,
			r.ReserveDate, end, models.OpenEndTime, start,
		).Scan(&occupied)
		if err != nil {
			return fmt.Errorf("count reservations: %w", err)
		}
		if occupied >= totalSpaces {
			return repository.ErrCapacityExceeded
		}
		return insertParkingRecord(ctx, tx, r)
	})
}

func (db *DB) GetParkingRecord(ctx context.Context, id string) (*models.ParkingRecord, error) {
	r, err := scanParkingRecord(db.QueryRowContext(ctx, `SELECT `+parkingColumns+` FROM parking_records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parking record: %w", err)
	}
	return r, nil
}

func (db *DB) UpdateParkingRecord(ctx context.Context, id string, fn repository.ParkingMutation) (*models.ParkingRecord, error) {
	var updated *models.ParkingRecord
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		r, err := scanParkingRecord(tx.QueryRowContext(ctx, `SELECT `+parkingColumns+` FROM parking_records WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get parking record: %w", err)
		}

		if err := fn(r); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE parking_records
			SET status = ?, entry_time = ?, exit_time = ?, duration = ?, qr_code = ?, purpose = ?, update_time = ?
			WHERE id = ?`,
			string(r.Status), nullMillis(r.EntryTime), nullMillis(r.ExitTime), nullInt(r.Duration),
			r.QRCode, r.Purpose, toMillis(r.UpdateTime), id,
		)
		if err != nil {
			return fmt.Errorf("update parking record: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func parkingWhere(f models.ParkingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.PlateNumber != "" {
		// Plates are stored upper-cased.
		conds = append(conds, "instr(plate_number, ?) > 0")
		args = append(args, strings.ToUpper(f.PlateNumber))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
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

func (db *DB) ListParkingRecords(ctx context.Context, f models.ParkingFilter) ([]models.ParkingRecord, int, error) {
	where, args := parkingWhere(f)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count parking records: %w", err)
	}

	page := f.Pagination.Normalize()
	rows, err := db.QueryContext(ctx,
		`SELECT `+parkingColumns+` FROM parking_records`+where+` ORDER BY create_time DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list parking records: %w", err)
	}
	defer rows.Close()

	result := make([]models.ParkingRecord, 0)
	for rows.Next() {
		r, err := scanParkingRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan parking record: %w", err)
		}
		result = append(result, *r)
	}
	return result, total, rows.Err()
}

func (db *DB) CountParkingRecords(ctx context.Context, c repository.ParkingCount) (int, error) {
	var (
		conds []string
		args  []any
	)
	if c.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(c.Status))
	}
	if c.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(c.Type))
	}
	if c.ReserveDate != "" {
		conds = append(conds, "reserve_date = ?")
		args = append(args, c.ReserveDate)
	}
	query := `SELECT COUNT(*) FROM parking_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count parking records: %w", err)
	}
	return n, nil
}
