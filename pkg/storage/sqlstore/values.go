package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/extension"
)

var _ extension.ValueRepository = (*DB)(nil)

// FindValue returns the value of a field for an entity
func (d *DB) FindValue(ctx context.Context, fieldID, entityID int64) (*extension.FieldValue, error) {
	const op = "sqlstore.FindValue"
	v := &extension.FieldValue{}
	err := d.queryRow(ctx, `SELECT id, field_id, entity_id, value FROM ext_values WHERE field_id = ? AND entity_id = ?`,
		fieldID, entityID).Scan(&v.ID, &v.FieldID, &v.EntityID, &v.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(op, "value of field %d for entity %d", fieldID, entityID)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return v, nil
}

// InsertValue inserts a value. An existing (field, entity) row is reported
// as a constraint violation without aborting the transaction.
func (d *DB) InsertValue(ctx context.Context, value *extension.FieldValue) error {
	const op = "sqlstore.InsertValue"
	err := d.queryRow(ctx, `
		INSERT INTO ext_values (field_id, entity_id, value) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`, value.FieldID, value.EntityID, value.Value).Scan(&value.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ConstraintViolation(op, nil, "value of field %d for entity %d exists", value.FieldID, value.EntityID)
	}
	return classify(op, err)
}

// UpdateValue replaces a stored value
func (d *DB) UpdateValue(ctx context.Context, value *extension.FieldValue) error {
	const op = "sqlstore.UpdateValue"
	res, err := d.exec(ctx, `UPDATE ext_values SET value = ? WHERE id = ?`, value.Value, value.ID)
	if err != nil {
		return classify(op, err)
	}
	return expectRow(op, res, "value %d", value.ID)
}

// ListValues returns an entity's values for the fields of one extension
func (d *DB) ListValues(ctx context.Context, extensionID, entityID int64) ([]*extension.FieldValue, error) {
	const op = "sqlstore.ListValues"
	rows, err := d.query(ctx, `
		SELECT v.id, v.field_id, v.entity_id, v.value
		FROM ext_values v JOIN ext_fields f ON f.id = v.field_id
		WHERE f.extension_id = ? AND v.entity_id = ?
		ORDER BY v.id`, extensionID, entityID)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []*extension.FieldValue
	for rows.Next() {
		v := &extension.FieldValue{}
		if err := rows.Scan(&v.ID, &v.FieldID, &v.EntityID, &v.Value); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, v)
	}
	return out, classify(op, rows.Err())
}

// DeleteEntityValues removes every value of an entity of targetType
func (d *DB) DeleteEntityValues(ctx context.Context, targetType string, entityID int64) error {
	_, err := d.exec(ctx, `
		DELETE FROM ext_values
		WHERE entity_id = ? AND field_id IN (
			SELECT f.id FROM ext_fields f JOIN ext_extensions e ON e.id = f.extension_id
			WHERE e.target_type = ?)`, entityID, targetType)
	return classify("sqlstore.DeleteEntityValues", err)
}

// extendedValue is one value row joined with its field
type extendedValue struct {
	extensionID int64
	name        string
	entityID    int64
	value       string
}

// loadExtended fetches the values of named fields of several extensions
// for a batch of entities
func (d *DB) loadExtended(ctx context.Context, extensionIDs, entityIDs []int64) ([]extendedValue, error) {
	const op = "sqlstore.loadExtended"
	if len(extensionIDs) == 0 || len(entityIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(extensionIDs)+len(entityIDs))
	for _, id := range extensionIDs {
		args = append(args, id)
	}
	for _, id := range entityIDs {
		args = append(args, id)
	}
	rows, err := d.query(ctx, `
		SELECT f.extension_id, f.name, v.entity_id, v.value
		FROM ext_values v JOIN ext_fields f ON f.id = v.field_id
		WHERE f.extension_id IN (`+placeholders(len(extensionIDs))+`)
		  AND v.entity_id IN (`+placeholders(len(entityIDs))+`)`, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []extendedValue
	for rows.Next() {
		var v extendedValue
		if err := rows.Scan(&v.extensionID, &v.name, &v.entityID, &v.value); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, v)
	}
	return out, classify(op, rows.Err())
}
