package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// SetSetting upserts one settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the stored value for key, or defaultVal when absent.
func (s *Store) Setting(ctx context.Context, key, defaultVal string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultVal, nil
	}
	if err != nil {
		return "", fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, nil
}

// SettingInt returns the setting parsed as an int, falling back on
// defaultVal when absent or unparseable.
func (s *Store) SettingInt(ctx context.Context, key string, defaultVal int) (int, error) {
	raw, err := s.Setting(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal, nil
	}
	return parsed, nil
}

// SettingFloat returns the setting parsed as a float64, falling back on
// defaultVal when absent or unparseable.
func (s *Store) SettingFloat(ctx context.Context, key string, defaultVal float64) (float64, error) {
	raw, err := s.Setting(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultVal, nil
	}
	return parsed, nil
}
