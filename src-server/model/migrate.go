package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

type SchemaMigration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version int64 `bun:"version,pk,notnull"`
}

type migration struct {
	version int64
	name    string
	up      func(ctx context.Context, tx bun.Tx) error
}

// Applied in order, one transaction per step, version recorded alongside.
// Steps must stay individually idempotent so a database created before
// version tracking existed adopts cleanly. Additive only: nothing here may
// ever drop or rename a column.
var migrations = []migration{
	{
		version: 1,
		name:    "create base tables",
		up: func(ctx context.Context, tx bun.Tx) error {
			for _, m := range []interface{}{
				(*Bus)(nil),
				(*Run)(nil),
				(*Session)(nil),
			} {
				if _, err := tx.NewCreateTable().
					Model(m).
					IfNotExists().
					Exec(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		version: 2,
		name:    "add runs.sub_driver",
		up:      addColumn("runs", "sub_driver", "TEXT DEFAULT ''"),
	},
	{
		version: 3,
		name:    "add runs.return_time",
		up:      addColumn("runs", "return_time", "TEXT DEFAULT ''"),
	},
}

func addColumn(table, column, decl string) func(ctx context.Context, tx bun.Tx) error {
	return func(ctx context.Context, tx bun.Tx) error {
		exists, err := hasColumn(ctx, tx, table, column)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if _, err := tx.NewRaw(
			"ALTER TABLE ? ADD COLUMN ? ?",
			bun.Ident(table), bun.Ident(column), bun.Safe(decl),
		).Exec(ctx); err != nil {
			return err
		}
		return nil
	}
}

func hasColumn(ctx context.Context, db bun.IDB, table, column string) (bool, error) {
	var count int
	if err := db.NewRaw(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(ctx, &count); err != nil {
		return false, fmt.Errorf("hasColumn: %w", err)
	}
	return count > 0, nil
}

func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*SchemaMigration)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("Migrate: can't create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.NewSelect().
			Model((*SchemaMigration)(nil)).
			Where("version = ?", m.version).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("Migrate: can't check version %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if err := m.up(ctx, tx); err != nil {
				return err
			}
			if _, err := tx.NewInsert().
				Model(&SchemaMigration{Version: m.version}).
				Exec(ctx); err != nil {
				return err
			}
			return nil
		}); err != nil {
			return fmt.Errorf("Migrate: %s: %w", m.name, err)
		}
	}

	return nil
}
