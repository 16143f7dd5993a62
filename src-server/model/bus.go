package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// Returned when a single-field update names a column outside the allow-list.
var ErrFieldNotAllowed = errors.New("field not allowed")

type Bus struct {
	bun.BaseModel `bun:"table:buses"`

	ID        int64  `bun:"id,pk,autoincrement"`
	BusNumber string `bun:"bus_number,notnull"` // required
	Driver    string `bun:"driver,notnull"`     // required
	Status    string `bun:"status,notnull"`     // required
	Notes     string `bun:"notes,default:''"`
}

// Columns an inline edit may touch. Field names are only ever taken from
// this set before being placed into a statement as an identifier.
var busUpdatableFields = map[string]struct{}{
	"driver": {},
	"status": {},
	"notes":  {},
}

// No uniqueness or format validation on purpose; the row goes in as given.
func (b *Bus) Insert(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewInsert().
		Model(b).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Bus).Insert: %w", err)
	}

	return nil
}

// bus_number is stored as text but the roster sorts it as a number, so
// "9" comes before "10". Ties fall back to insertion order.
func ListBuses(ctx context.Context, db bun.IDB) ([]Bus, error) {
	buses := make([]Bus, 0)
	if err := db.NewSelect().
		Model(&buses).
		OrderExpr("CAST(bus_number AS INTEGER) ASC").
		OrderExpr("id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListBuses: %w", err)
	}
	return buses, nil
}

// No-op when the id doesn't exist. Runs referencing this bus's number are
// left alone on purpose; bus_number on a run is a plain text reference.
func DeleteBus(ctx context.Context, db bun.IDB, id int64) error {
	if _, err := db.NewDelete().
		Model((*Bus)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("DeleteBus: %w", err)
	}
	return nil
}

// Full-row edit from the admin form; id and bus_number never change here.
func UpdateBus(ctx context.Context, db bun.IDB, id int64, driver, status, notes string) error {
	if _, err := db.NewUpdate().
		Model((*Bus)(nil)).
		Set("driver = ?", driver).
		Set("status = ?", status).
		Set("notes = ?", notes).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("UpdateBus: %w", err)
	}
	return nil
}

func UpdateBusField(ctx context.Context, db bun.IDB, id int64, field, value string) error {
	if _, ok := busUpdatableFields[field]; !ok {
		return fmt.Errorf("UpdateBusField %q: %w", field, ErrFieldNotAllowed)
	}

	if _, err := db.NewUpdate().
		Model((*Bus)(nil)).
		Set("? = ?", bun.Ident(field), value).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("UpdateBusField: %w", err)
	}

	return nil
}
