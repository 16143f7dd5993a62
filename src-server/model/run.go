package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrBadDateFormat = errors.New("bad date format, want YYYY-MM-DD")
	ErrBadTimeFormat = errors.New("bad time format, want HH:MM")
)

type Run struct {
	bun.BaseModel `bun:"table:runs"`

	ID          int64  `bun:"id,pk,autoincrement"`
	RunDate     string `bun:"run_date,notnull"` // required, YYYY-MM-DD
	RunTime     string `bun:"run_time,notnull"` // required, HH:MM
	ReturnTime  string `bun:"return_time,default:''"`
	GroupName   string `bun:"group_name,notnull"`  // required
	Destination string `bun:"destination,notnull"` // required
	Driver      string `bun:"driver,notnull"`      // required
	SubDriver   string `bun:"sub_driver,default:''"`
	BusNumber   string `bun:"bus_number,notnull"` // required; text reference, not a foreign key

	// derived at read time, never stored
	DisplayDate   string `bun:"-"`
	Weekday       string `bun:"-"`
	DisplayTime   string `bun:"-"`
	DisplayReturn string `bun:"-"`
}

var runUpdatableFields = map[string]struct{}{
	"run_date":    {},
	"run_time":    {},
	"return_time": {},
	"group_name":  {},
	"destination": {},
	"driver":      {},
	"sub_driver":  {},
	"bus_number":  {},
}

// No format validation on purpose; shape checks only exist on the
// single-field update path.
func (r *Run) Insert(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewInsert().
		Model(r).
		Exec(ctx); err != nil {
		return fmt.Errorf("(*Run).Insert: %w", err)
	}

	return nil
}

// Sorted chronologically; run_time goes through sqlite's time() so "9:00"
// doesn't land after "10:00" the way a plain string compare would put it.
// time() itself returns NULL for single-digit hours, so those get a zero
// padded before the cast.
func ListRuns(ctx context.Context, db bun.IDB) ([]Run, error) {
	runs := make([]Run, 0)
	if err := db.NewSelect().
		Model(&runs).
		OrderExpr("run_date ASC").
		OrderExpr("COALESCE(time(run_time), time('0' || run_time)) ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	for i := range runs {
		runs[i].fillDisplay()
	}
	return runs, nil
}

func GetRun(ctx context.Context, db bun.IDB, id int64) (*Run, error) {
	runModel := new(Run)
	if err := db.NewSelect().
		Model(runModel).
		Where("id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	runModel.fillDisplay()
	return runModel, nil
}

// No-op when the id doesn't exist.
func DeleteRun(ctx context.Context, db bun.IDB, id int64) error {
	if _, err := db.NewDelete().
		Model((*Run)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("DeleteRun: %w", err)
	}
	return nil
}

func UpdateRunField(ctx context.Context, db bun.IDB, id int64, field, value string) error {
	if _, ok := runUpdatableFields[field]; !ok {
		return fmt.Errorf("UpdateRunField %q: %w", field, ErrFieldNotAllowed)
	}

	// coarse shape checks only, not a real parse
	switch field {
	case "run_date":
		if len(strings.Split(value, "-")) != 3 {
			return fmt.Errorf("UpdateRunField %q: %w", value, ErrBadDateFormat)
		}
	case "run_time", "return_time":
		if len(strings.Split(value, ":")) < 2 {
			return fmt.Errorf("UpdateRunField %q: %w", value, ErrBadTimeFormat)
		}
	}

	if _, err := db.NewUpdate().
		Model((*Run)(nil)).
		Set("? = ?", bun.Ident(field), value).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("UpdateRunField: %w", err)
	}

	return nil
}

func (r *Run) fillDisplay() {
	if t, err := time.Parse("2006-01-02", r.RunDate); err == nil {
		r.DisplayDate = t.Format("01/02/2006")
		r.Weekday = t.Weekday().String()
	} else {
		// malformed stored dates render as-is rather than erroring the page
		r.DisplayDate = r.RunDate
	}
	r.DisplayTime = displayTime(r.RunTime)
	if r.ReturnTime != "" {
		r.DisplayReturn = displayTime(r.ReturnTime)
	}
}

// "14:00" -> "2:00 PM", no leading zero on the hour
func displayTime(hm string) string {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return hm
	}
	return t.Format("3:04 PM")
}
