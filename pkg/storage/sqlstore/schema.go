package sqlstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// schema is the portable DDL of the metadata tables. {{serial}},
// {{timestamp}} and {{bool}} are expanded per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ext_extensions (
		id {{serial}},
		target_type VARCHAR(255) NOT NULL,
		owner_type VARCHAR(64) NOT NULL,
		owner_id VARCHAR(255) NOT NULL DEFAULT '',
		name VARCHAR(255),
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		UNIQUE (target_type, owner_type, owner_id),
		UNIQUE (name)
	)`,
	`CREATE TABLE IF NOT EXISTS ext_fields (
		id {{serial}},
		extension_id BIGINT NOT NULL REFERENCES ext_extensions(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		field_type VARCHAR(32) NOT NULL,
		required {{bool}} NOT NULL DEFAULT FALSE,
		max_length INTEGER NOT NULL DEFAULT 0,
		options VARCHAR(2000) NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at {{timestamp}} NOT NULL,
		created_by VARCHAR(255) NOT NULL DEFAULT '',
		updated_at {{timestamp}} NOT NULL,
		updated_by VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE (extension_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS ext_values (
		id {{serial}},
		field_id BIGINT NOT NULL REFERENCES ext_fields(id) ON DELETE CASCADE,
		entity_id BIGINT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		UNIQUE (field_id, entity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ext_values_entity_idx ON ext_values (entity_id)`,
	`CREATE TABLE IF NOT EXISTS search_settings (
		user_id VARCHAR(255) NOT NULL,
		query_name VARCHAR(255) NOT NULL,
		settings TEXT NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		PRIMARY KEY (user_id, query_name)
	)`,
}

// Expand replaces the {{serial}}, {{timestamp}} and {{bool}} markers of a
// DDL statement with the dialect's types
func (d Dialect) Expand(ddl string) string {
	var r *strings.Replacer
	switch d {
	case Postgres:
		r = strings.NewReplacer(
			"{{serial}}", "BIGSERIAL PRIMARY KEY",
			"{{timestamp}}", "TIMESTAMPTZ",
			"{{bool}}", "BOOLEAN",
		)
	default:
		r = strings.NewReplacer(
			"{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{timestamp}}", "TIMESTAMP",
			"{{bool}}", "BOOLEAN",
		)
	}
	return r.Replace(ddl)
}

// Migrate creates the metadata tables and then runs extra, typically the
// DDL of the entity tables. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context, extra ...string) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		for _, stmt := range append(append([]string(nil), schema...), extra...) {
			if _, err := d.exec(ctx, d.dialect.Expand(stmt)); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		d.log.WithField("dialect", d.dialect).Debug("schema migrated")
		return nil
	})
}
