package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

const fieldColumns = `id, extension_id, name, description, field_type, required, max_length, options, version, created_at, created_by, updated_at, updated_by`

func scanField(s scanner) (*extension.Field, error) {
	var (
		f       extension.Field
		ftype   string
		options string
	)
	if err := s.Scan(&f.ID, &f.ExtensionID, &f.Name, &f.Description, &ftype, &f.Required, &f.MaxLength,
		&options, &f.Version, &f.CreatedAt, &f.CreatedBy, &f.UpdatedAt, &f.UpdatedBy); err != nil {
		return nil, err
	}
	f.Type = extension.FieldType(ftype)
	opts, err := extension.DecodeOptions(options)
	if err != nil {
		return nil, err
	}
	f.Options = opts
	return &f, nil
}

// CreateField inserts a field definition. A duplicate name within the
// extension is reported as a constraint violation.
func (d *DB) CreateField(ctx context.Context, field *extension.Field) error {
	const op = "sqlstore.CreateField"
	options, err := extension.EncodeOptions(field.Options)
	if err != nil {
		return err
	}
	err = d.queryRow(ctx, `
		INSERT INTO ext_fields (extension_id, name, description, field_type, required, max_length, options,
			version, created_at, created_by, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		field.ExtensionID, field.Name, field.Description, string(field.Type), field.Required, field.MaxLength, options,
		field.Version, field.CreatedAt, field.CreatedBy, field.UpdatedAt, field.UpdatedBy,
	).Scan(&field.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ConstraintViolation(op, nil, "field %q exists in extension %d", field.Name, field.ExtensionID)
	}
	return classify(op, err)
}

// UpdateField writes a field definition when its Version is current and
// increments the version
func (d *DB) UpdateField(ctx context.Context, field *extension.Field) error {
	const op = "sqlstore.UpdateField"
	options, err := extension.EncodeOptions(field.Options)
	if err != nil {
		return err
	}
	res, err := d.exec(ctx, `
		UPDATE ext_fields SET name = ?, description = ?, field_type = ?, required = ?, max_length = ?,
			options = ?, updated_at = ?, updated_by = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		field.Name, field.Description, string(field.Type), field.Required, field.MaxLength,
		options, field.UpdatedAt, field.UpdatedBy, field.ID, field.Version)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		if _, err := d.GetField(ctx, field.ID); err != nil {
			return err
		}
		return apperrors.VersionConflict(op, "field %d was modified concurrently", field.ID)
	}
	field.Version++
	return nil
}

// DeleteField removes a field and its values
func (d *DB) DeleteField(ctx context.Context, id int64) error {
	const op = "sqlstore.DeleteField"
	return d.InTx(ctx, func(ctx context.Context) error {
		if _, err := d.exec(ctx, `DELETE FROM ext_values WHERE field_id = ?`, id); err != nil {
			return classify(op, err)
		}
		res, err := d.exec(ctx, `DELETE FROM ext_fields WHERE id = ?`, id)
		if err != nil {
			return classify(op, err)
		}
		return expectRow(op, res, "field %d", id)
	})
}

// GetField returns a field by id
func (d *DB) GetField(ctx context.Context, id int64) (*extension.Field, error) {
	const op = "sqlstore.GetField"
	f, err := scanField(d.queryRow(ctx, `SELECT `+fieldColumns+` FROM ext_fields WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(op, "field %d", id)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return f, nil
}

// ListFields returns the fields of an extension ordered by id
func (d *DB) ListFields(ctx context.Context, extensionID int64) ([]*extension.Field, error) {
	const op = "sqlstore.ListFields"
	rows, err := d.query(ctx, `SELECT `+fieldColumns+` FROM ext_fields WHERE extension_id = ? ORDER BY id`, extensionID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*extension.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, f)
	}
	return out, classify(op, rows.Err())
}
