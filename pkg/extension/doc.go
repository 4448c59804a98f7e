// Package extension implements ad hoc custom fields for administrative
// entities (an entity-attribute-value store).
//
// # Overview
//
// An ExtensionPoint declares at boot that an entity type accepts extra
// fields. At runtime, each scope (an owner type and id, or the global
// scope) gets at most one Extension per entity type, created lazily. An
// Extension holds typed Field definitions; the values of those fields for
// one entity instance are stored as strings, one FieldValue row per field.
//
//   - PointRegistry: boot-time catalog, frozen before serving
//   - MetadataService: extensions and fields, with a per-extension field cache
//   - ValueStore: value rows, upserted per field
//   - Saver: entity row + extended values in one transaction
//
// # Field Types
//
// INTEGER, DECIMAL, BOOLEAN, DATE, STRING, MULTI_LINE_STRING and
// LIST_OF_VALUES. Values are opaque to the ValueStore; Coerce, Format and
// ValidateValue convert and check them in one place. LIST_OF_VALUES fields
// carry their options inline; the serialized option list is limited to
// MaxOptionsLength characters.
//
// # Usage Example
//
//	points := extension.NewPointRegistry()
//	_ = points.Register("Employee", "Employee")
//	points.Freeze()
//
//	meta := extension.NewMetadataService(repo, points, nil, nil, log)
//	ext, _ := meta.GetOrCreateExtension(ctx, "Employee", extension.Owner{Type: "customer", ID: "c1"})
//	field, _ := meta.AddField(ctx, ext.ID, extension.FieldSpec{Name: "badge", Type: extension.FieldTypeInteger})
//
//	values := extension.NewValueStore(valueRepo, meta, tx, log)
//	_ = values.SaveValues(ctx, ext.ID, employeeID, map[int64]string{field.ID: "42"})
package extension
