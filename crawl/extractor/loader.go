package extractor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Table names the tile index table and its columns.
type Table struct {
	Name     string
	TileItem string
	GeomItem string
	// TimeItem is left out of inserts when empty.
	TimeItem string
}

func (t Table) withDefaults() Table {
	if t.TileItem == "" {
		t.TileItem = "location"
	}
	if t.GeomItem == "" {
		t.GeomItem = "geom"
	}
	return t
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// InsertSQL is the statement loading one record into t. Rows already
// present for a location are replaced.
func (t Table) InsertSQL() string {
	t = t.withDefaults()
	cols := []string{pq.QuoteIdentifier(t.TileItem), pq.QuoteIdentifier(t.GeomItem)}
	vals := []string{"$1", "st_makeenvelope($2, $3, $4, $5, $6)"}
	if t.TimeItem != "" {
		cols = append(cols, pq.QuoteIdentifier(t.TimeItem))
		vals = append(vals, "$7")
	}
	return fmt.Sprintf("insert into %s (%s) values (%s)",
		quoteTable(t.Name), strings.Join(cols, ", "), strings.Join(vals, ", "))
}

// DeleteSQL removes the rows of one location from t.
func (t Table) DeleteSQL() string {
	t = t.withDefaults()
	return fmt.Sprintf("delete from %s where %s = $1", quoteTable(t.Name), pq.QuoteIdentifier(t.TileItem))
}

func (t Table) args(rec *Record) []interface{} {
	args := []interface{}{rec.Location, rec.MinX, rec.MinY, rec.MaxX, rec.MaxY, rec.SRID}
	if t.TimeItem != "" {
		if rec.Time != nil {
			args = append(args, *rec.Time)
		} else {
			args = append(args, nil)
		}
	}
	return args
}

// Load writes records into t in one transaction.
func Load(ctx context.Context, db *sql.DB, t Table, recs []*Record) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, t.DeleteSQL())
	if err != nil {
		return err
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, t.InsertSQL())
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, rec := range recs {
		if _, err := del.ExecContext(ctx, rec.Location); err != nil {
			return fmt.Errorf("%s: %w", rec.Location, err)
		}
		if _, err := ins.ExecContext(ctx, t.args(rec)...); err != nil {
			return fmt.Errorf("%s: %w", rec.Location, err)
		}
	}
	return tx.Commit()
}
