package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"venuepark/internal/models"
	"venuepark/internal/repository"
)

const userColumns = `id, nick_name, avatar_url, phone, is_admin, create_time, update_time, last_login_time`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                             models.User
		createTime, updateTime, login int64
	)
	if err := row.Scan(&u.ID, &u.NickName, &u.AvatarURL, &u.Phone, &u.IsAdmin, &createTime, &updateTime, &login); err != nil {
		return nil, err
	}
	u.CreateTime = fromMillis(createTime)
	u.UpdateTime = fromMillis(updateTime)
	u.LastLoginTime = fromMillis(login)
	return &u, nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertUser keeps is_admin, create_time and a known phone of an existing row.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nick_name = excluded.nick_name,
			avatar_url = excluded.avatar_url,
			phone = CASE WHEN excluded.phone = '' THEN users.phone ELSE excluded.phone END,
			update_time = excluded.update_time,
			last_login_time = excluded.last_login_time`,
		u.ID, u.NickName, u.AvatarURL, u.Phone,
		toMillis(u.CreateTime), toMillis(u.UpdateTime), toMillis(u.LastLoginTime),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (db *DB) UpdateUserProfile(ctx context.Context, id string, p models.UserProfile, at time.Time) (*models.User, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE users SET
			nick_name = CASE WHEN ? = '' THEN nick_name ELSE ? END,
			avatar_url = CASE WHEN ? = '' THEN avatar_url ELSE ? END,
			phone = CASE WHEN ? = '' THEN phone ELSE ? END,
			update_time = ?
		WHERE id = ?`,
		p.NickName, p.NickName, p.AvatarURL, p.AvatarURL, p.Phone, p.Phone, toMillis(at), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return db.GetUser(ctx, id)
}

func (db *DB) SetAdmins(ctx context.Context, ids []string) error {
	now := toMillis(time.Now())
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if len(ids) == 0 {
			_, err := tx.ExecContext(ctx, `UPDATE users SET is_admin = 0 WHERE is_admin = 1`)
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET is_admin = 0 WHERE is_admin = 1 AND id NOT IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("revoke admins: %w", err)
		}
		for _, id := range ids {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO users (id, is_admin, create_time, update_time) VALUES (?, 1, ?, ?)
				ON CONFLICT(id) DO UPDATE SET is_admin = 1`, id, now, now)
			if err != nil {
				return fmt.Errorf("grant admin %s: %w", id, err)
			}
		}
		return nil
	})
}

func (db *DB) IsAdmin(ctx context.Context, id string) (bool, error) {
	var isAdmin bool
	err := db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = ?`, id).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return isAdmin, nil
}
