// Package storage holds the backend-neutral persistence contracts shared by
// the SQL and in-memory backends.
//
// # Overview
//
// The extension and search packages declare the repositories they consume
// (extension.Repository, extension.ValueRepository, search.SettingsRepository,
// search.Executor). This package adds the cross-cutting pieces:
//
//   - TxRunner: begin-or-join transactions spanning several repositories
//   - RecordStore: generic insert/update/delete/get of entity rows
//   - Config: backend selection, pools, Redis and S3 settings
//
// Implementations live in sub-packages:
//
//   - storage/sqlstore: PostgreSQL (lib/pq) and SQLite (mattn/go-sqlite3)
//   - storage/memory: in-process maps, used for tests and no-database mode
//
// # Transactions
//
// InTx stores the open transaction in the context. Repository calls made
// with that context run inside it, so a record and its extended field
// values commit or roll back together:
//
//	err := tx.InTx(ctx, func(ctx context.Context) error {
//		id, err := records.Insert(ctx, "Employee", emp)
//		if err != nil {
//			return err
//		}
//		return values.SaveValues(ctx, extID, id, fields)
//	})
package storage
