package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/search"
)

var _ search.SettingsRepository = (*DB)(nil)

type storedSettings struct {
	Columns  []search.Column `json:"columns"`
	PageSize int             `json:"page_size"`
}

// LoadSettings returns a user's stored settings for a query
func (d *DB) LoadSettings(ctx context.Context, userID, queryName string) (*search.Settings, error) {
	const op = "sqlstore.LoadSettings"
	var raw string
	err := d.queryRow(ctx, `SELECT settings FROM search_settings WHERE user_id = ? AND query_name = ?`,
		userID, queryName).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(op, "settings of %q for %q", userID, queryName)
	}
	if err != nil {
		return nil, classify(op, err)
	}

	var stored storedSettings
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	return &search.Settings{
		UserID:   userID,
		Query:    queryName,
		Columns:  stored.Columns,
		PageSize: stored.PageSize,
	}, nil
}

// SaveSettings upserts a user's settings for a query
func (d *DB) SaveSettings(ctx context.Context, settings *search.Settings) error {
	const op = "sqlstore.SaveSettings"
	data, err := json.Marshal(storedSettings{Columns: settings.Columns, PageSize: settings.PageSize})
	if err != nil {
		return apperrors.Persistence(op, err)
	}
	_, err = d.exec(ctx, `
		INSERT INTO search_settings (user_id, query_name, settings, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, query_name) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at`,
		settings.UserID, settings.Query, string(data), time.Now().UTC())
	return classify(op, err)
}
