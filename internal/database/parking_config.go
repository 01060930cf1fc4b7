package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"venuepark/internal/models"
	"venuepark/internal/repository"
)

func (db *DB) GetParkingConfig(ctx context.Context) (*models.ParkingConfig, error) {
	var (
		cfg        models.ParkingConfig
		updateTime int64
	)
	err := db.QueryRowContext(ctx, `SELECT total_spaces, update_time FROM parking_config WHERE id = 1`).
		Scan(&cfg.TotalSpaces, &updateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parking config: %w", err)
	}
	cfg.UpdateTime = fromMillis(updateTime)
	return &cfg, nil
}

func (db *DB) SaveParkingConfig(ctx context.Context, cfg *models.ParkingConfig) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO parking_config (id, total_spaces, update_time) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET total_spaces = excluded.total_spaces, update_time = excluded.update_time`,
		cfg.TotalSpaces, toMillis(cfg.UpdateTime),
	)
	if err != nil {
		return fmt.Errorf("save parking config: %w", err)
	}
	return nil
}
