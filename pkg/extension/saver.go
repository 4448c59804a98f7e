package extension

import (
	"context"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
	"github.com/platinummonkey/adminkit/pkg/storage"
)

// Saver persists extendable entities together with their extended fields,
// inside one transaction. The entity name of the record store is the
// extension point's target type.
type Saver struct {
	tx      storage.TxRunner
	records storage.RecordStore
	meta    *MetadataService
	values  *ValueStore
}

// NewSaver creates a saver
func NewSaver(tx storage.TxRunner, records storage.RecordStore, meta *MetadataService, values *ValueStore) *Saver {
	if tx == nil {
		tx = storage.NoTx
	}
	return &Saver{tx: tx, records: records, meta: meta, values: values}
}

// Create inserts the record and its extended fields and returns the new id.
// Required extended fields must be present.
func (s *Saver) Create(ctx context.Context, pointName string, record ExtendableRecord) (int64, error) {
	point, err := s.meta.Points().Lookup(pointName)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ext, fields, err := s.meta.FieldsForPoint(ctx, pointName)
		if err != nil {
			return err
		}
		values := record.GetExtendedFields()
		if err := ValidateValues(fields, values, true); err != nil {
			return err
		}

		id, err = s.records.Insert(ctx, point.TargetType, record)
		if err != nil {
			return apperrors.Persistence("extension.Saver.Create", err)
		}
		if ext == nil {
			return nil
		}
		return s.values.SaveExtended(ctx, ext, id, values)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update writes the record and the extended fields it carries. Extended
// fields absent from the record keep their stored values.
func (s *Saver) Update(ctx context.Context, pointName string, id int64, record ExtendableRecord) error {
	point, err := s.meta.Points().Lookup(pointName)
	if err != nil {
		return err
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		ext, fields, err := s.meta.FieldsForPoint(ctx, pointName)
		if err != nil {
			return err
		}
		values := record.GetExtendedFields()
		if err := ValidateValues(fields, values, false); err != nil {
			return err
		}

		if err := s.records.Update(ctx, point.TargetType, id, record); err != nil {
			return apperrors.Persistence("extension.Saver.Update", err)
		}
		if ext == nil {
			return nil
		}
		return s.values.SaveExtended(ctx, ext, id, values)
	})
}

// Delete removes the record and all its extended values
func (s *Saver) Delete(ctx context.Context, pointName string, id int64) error {
	point, err := s.meta.Points().Lookup(pointName)
	if err != nil {
		return err
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.values.DeleteValues(ctx, point.TargetType, id); err != nil {
			return err
		}
		if err := s.records.Delete(ctx, point.TargetType, id); err != nil {
			return apperrors.Persistence("extension.Saver.Delete", err)
		}
		return nil
	})
}

// Get loads the record into dst and fills its extended fields from the
// caller's extension
func (s *Saver) Get(ctx context.Context, pointName string, id int64, dst ExtendableRecord) error {
	point, err := s.meta.Points().Lookup(pointName)
	if err != nil {
		return err
	}
	if err := s.records.Get(ctx, point.TargetType, id, dst); err != nil {
		return err
	}

	ext, err := s.meta.ResolveExtension(ctx, pointName, false)
	if apperrors.IsNotFound(err) {
		dst.SetExtendedFields(map[string]string{})
		return nil
	}
	if err != nil {
		return err
	}
	values, err := s.values.LoadExtended(ctx, ext, id)
	if err != nil {
		return err
	}
	dst.SetExtendedFields(values)
	return nil
}
