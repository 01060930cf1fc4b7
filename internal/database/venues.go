package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"venuepark/internal/models"
	"venuepark/internal/repository"
)

const venueColumns = `id, name, type, description, location, open_time, close_time, slot_duration,
	price, price_unit, need_approval, min_cancel_hours, enabled, create_time, update_time,
	seed_name, admin_modified`

func scanVenue(row rowScanner) (*models.Venue, error) {
	var (
		v                      models.Venue
		minCancel              sql.NullInt64
		seedName               sql.NullString
		createTime, updateTime int64
	)
	err := row.Scan(&v.ID, &v.Name, &v.Type, &v.Description, &v.Location, &v.OpenTime, &v.CloseTime, &v.SlotDuration,
		&v.Price, &v.PriceUnit, &v.NeedApproval, &minCancel, &v.Enabled, &createTime, &updateTime,
		&seedName, &v.AdminModified)
	if err != nil {
		return nil, err
	}
	v.MinCancelHours = intPtr(minCancel)
	v.SeedName = seedName.String
	v.CreateTime = fromMillis(createTime)
	v.UpdateTime = fromMillis(updateTime)
	return &v, nil
}

func venueArgs(v *models.Venue) []any {
	// Empty seed names are stored as NULL so the unique index only binds seeded rows.
	seedName := sql.NullString{String: v.SeedName, Valid: v.SeedName != ""}
	return []any{
		v.ID, v.Name, v.Type, v.Description, v.Location, v.OpenTime, v.CloseTime, v.SlotDuration,
		v.Price, v.PriceUnit, v.NeedApproval, nullInt(v.MinCancelHours), v.Enabled, toMillis(v.CreateTime), toMillis(v.UpdateTime),
		seedName, v.AdminModified,
	}
}

func insertVenue(ctx context.Context, exec interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, v *models.Venue) error {
	_, err := exec.ExecContext(ctx, `INSERT INTO venues (`+venueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, venueArgs(v)...)
	if err != nil {
		return fmt.Errorf("insert venue %s: %w", v.Name, err)
	}
	return nil
}

func (db *DB) CreateVenue(ctx context.Context, v *models.Venue) error {
	return insertVenue(ctx, db, v)
}

func (db *DB) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	v, err := scanVenue(db.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return v, nil
}

func (db *DB) UpdateVenue(ctx context.Context, id string, fn func(v *models.Venue) error) (*models.Venue, error) {
	var updated *models.Venue
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		v, err := scanVenue(tx.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get venue: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE venues SET
				name = ?, type = ?, description = ?, location = ?, open_time = ?, close_time = ?,
				slot_duration = ?, price = ?, price_unit = ?, need_approval = ?, min_cancel_hours = ?,
				enabled = ?, admin_modified = ?, update_time = ?
			WHERE id = ?`,
			v.Name, v.Type, v.Description, v.Location, v.OpenTime, v.CloseTime,
			v.SlotDuration, v.Price, v.PriceUnit, v.NeedApproval, nullInt(v.MinCancelHours),
			v.Enabled, v.AdminModified, toMillis(v.UpdateTime), id,
		)
		if err != nil {
			return fmt.Errorf("update venue: %w", err)
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (db *DB) ListVenues(ctx context.Context, f repository.VenueFilter) ([]models.Venue, error) {
	query := `SELECT ` + venueColumns + ` FROM venues WHERE 1 = 1`
	var args []any
	if f.EnabledOnly {
		query += ` AND enabled = 1`
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()

	var venues []models.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, *v)
	}
	return venues, rows.Err()
}

func (db *DB) SyncSeedVenue(ctx context.Context, v *models.Venue) (repository.SeedOutcome, error) {
	outcome := repository.SeedSkipped
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		seeded, err := scanVenue(tx.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE seed_name = ?`, v.SeedName))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup seed %s: %w", v.SeedName, err)
		}

		var namedID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM venues WHERE name = ?`, v.Name).Scan(&namedID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup venue %s: %w", v.Name, err)
		}

		if seeded == nil {
			if namedID != "" {
				return nil
			}
			if err := insertVenue(ctx, tx, v); err != nil {
				return err
			}
			outcome = repository.SeedInserted
			return nil
		}

		v.ID = seeded.ID
		v.CreateTime = seeded.CreateTime
		if seeded.AdminModified || (namedID != "" && namedID != seeded.ID) {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE venues SET
				name = ?, type = ?, description = ?, location = ?, open_time = ?, close_time = ?, slot_duration = ?,
				price = ?, price_unit = ?, need_approval = ?, min_cancel_hours = ?, enabled = ?, update_time = ?
			WHERE id = ?`,
			v.Name, v.Type, v.Description, v.Location, v.OpenTime, v.CloseTime, v.SlotDuration,
			v.Price, v.PriceUnit, v.NeedApproval, nullInt(v.MinCancelHours), v.Enabled, toMillis(v.UpdateTime), seeded.ID,
		)
		if err != nil {
			return fmt.Errorf("sync venue %s: %w", v.Name, err)
		}
		outcome = repository.SeedUpdated
		return nil
	})
	if err != nil {
		return repository.SeedSkipped, err
	}
	return outcome, nil
}
