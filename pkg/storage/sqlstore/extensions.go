package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

var _ extension.Repository = (*DB)(nil)

const extensionColumns = `id, target_type, owner_type, owner_id, name, attributes, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExtension(s scanner) (*extension.Extension, error) {
	var (
		ext   extension.Extension
		name  sql.NullString
		attrs string
	)
	if err := s.Scan(&ext.ID, &ext.TargetType, &ext.OwnerType, &ext.OwnerID, &name, &attrs, &ext.CreatedAt, &ext.UpdatedAt); err != nil {
		return nil, err
	}
	ext.Name = name.String
	if attrs != "" && attrs != "{}" {
		if err := json.Unmarshal([]byte(attrs), &ext.Attributes); err != nil {
			return nil, err
		}
	}
	return &ext, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	return string(data), err
}

// CreateExtension inserts an extension. A scope or name that already exists
// is reported as a constraint violation without aborting the transaction.
func (d *DB) CreateExtension(ctx context.Context, ext *extension.Extension) error {
	const op = "sqlstore.CreateExtension"
	attrs, err := encodeAttributes(ext.Attributes)
	if err != nil {
		return apperrors.InvalidArgument(op, "attributes: %v", err)
	}
	err = d.queryRow(ctx, `
		INSERT INTO ext_extensions (target_type, owner_type, owner_id, name, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		ext.TargetType, ext.OwnerType, ext.OwnerID, nullable(ext.Name), attrs, ext.CreatedAt, ext.UpdatedAt,
	).Scan(&ext.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ConstraintViolation(op, nil, "extension for %s/%s/%s exists", ext.TargetType, ext.OwnerType, ext.OwnerID)
	}
	return classify(op, err)
}

func (d *DB) getExtension(ctx context.Context, op, where string, args ...interface{}) (*extension.Extension, error) {
	ext, err := scanExtension(d.queryRow(ctx, `SELECT `+extensionColumns+` FROM ext_extensions WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(op, "extension %v", args)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return ext, nil
}

// FindExtension returns the extension of a scope
func (d *DB) FindExtension(ctx context.Context, targetType string, owner extension.Owner) (*extension.Extension, error) {
	return d.getExtension(ctx, "sqlstore.FindExtension",
		`target_type = ? AND owner_type = ? AND owner_id = ?`, targetType, owner.Type, owner.ID)
}

// GetExtension returns an extension by id
func (d *DB) GetExtension(ctx context.Context, id int64) (*extension.Extension, error) {
	return d.getExtension(ctx, "sqlstore.GetExtension", `id = ?`, id)
}

// GetExtensionByName returns an extension by name
func (d *DB) GetExtensionByName(ctx context.Context, name string) (*extension.Extension, error) {
	return d.getExtension(ctx, "sqlstore.GetExtensionByName", `name = ?`, name)
}

// UpdateExtension writes the name, attributes and update time of an extension
func (d *DB) UpdateExtension(ctx context.Context, ext *extension.Extension) error {
	const op = "sqlstore.UpdateExtension"
	attrs, err := encodeAttributes(ext.Attributes)
	if err != nil {
		return apperrors.InvalidArgument(op, "attributes: %v", err)
	}
	res, err := d.exec(ctx, `UPDATE ext_extensions SET name = ?, attributes = ?, updated_at = ? WHERE id = ?`,
		nullable(ext.Name), attrs, ext.UpdatedAt, ext.ID)
	if err != nil {
		return classify(op, err)
	}
	return expectRow(op, res, "extension %d", ext.ID)
}

func expectRow(op string, res sql.Result, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return apperrors.NotFound(op, format, args...)
	}
	return nil
}

// DeleteExtension removes an extension with its fields and values
func (d *DB) DeleteExtension(ctx context.Context, id int64) error {
	const op = "sqlstore.DeleteExtension"
	return d.InTx(ctx, func(ctx context.Context) error {
		if _, err := d.exec(ctx, `DELETE FROM ext_values WHERE field_id IN (SELECT id FROM ext_fields WHERE extension_id = ?)`, id); err != nil {
			return classify(op, err)
		}
		if _, err := d.exec(ctx, `DELETE FROM ext_fields WHERE extension_id = ?`, id); err != nil {
			return classify(op, err)
		}
		res, err := d.exec(ctx, `DELETE FROM ext_extensions WHERE id = ?`, id)
		if err != nil {
			return classify(op, err)
		}
		return expectRow(op, res, "extension %d", id)
	})
}

// ListExtensions returns the extensions of a target type ordered by id
func (d *DB) ListExtensions(ctx context.Context, targetType string) ([]*extension.Extension, error) {
	const op = "sqlstore.ListExtensions"
	rows, err := d.query(ctx, `SELECT `+extensionColumns+` FROM ext_extensions WHERE target_type = ? ORDER BY id`, targetType)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*extension.Extension
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, ext)
	}
	return out, classify(op, rows.Err())
}
