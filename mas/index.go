// Package mas reads tile indexes kept in Postgres/PostGIS: one row per
// raster file with its footprint and, optionally, its acquisition time.
package mas

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

const (
	defaultTileItem     = "location"
	defaultGeometryItem = "geom"
)

// Entry is one row of a tile index.
type Entry struct {
	Location string `json:"location"`
	Time     string `json:"time,omitempty"`
}

// Options bound the connection pool of an Index.
type Options struct {
	MaxIdleConns int
	MaxOpenConns int
	QueryTimeout time.Duration
}

// Index answers file lookups for tile indexed layers.
type Index struct {
	db      *sql.DB
	timeout time.Duration
	log     zerolog.Logger
}

// Open connects to the tile index database described by dsn, a lib/pq
// connection string or URL. The connection itself is lazy.
func Open(dsn string, opts Options, log zerolog.Logger) (*Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("tile index: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return &Index{db: db, timeout: opts.QueryTimeout, log: log}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

// Ping checks the database is reachable.
func (ix *Index) Ping(ctx context.Context) error { return ix.db.PingContext(ctx) }

// quoteTable quotes a possibly schema qualified table name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func layerItem(layer *utils.Layer, key, def string) string {
	if v, ok := layer.Lookup(key); ok && v != "" {
		return v
	}
	return def
}

func layerTimeItem(layer *utils.Layer) string {
	if layer.TimeItem != "" {
		return layer.TimeItem
	}
	return layer.Meta("timeitem")
}

// Query is a tile index lookup ready to run.
type Query struct {
	SQL  string
	Args []interface{}
}

// BuildQuery prepares the lookup of the files of layer intersecting bbox,
// given in crs, and matching timeValue when it is not empty.
func BuildQuery(layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) (*Query, error) {
	if layer.TileIndexTable == "" {
		return nil, fmt.Errorf("layer %s has no tile index", layer.Name)
	}
	srid, ok := raster.ParseEPSG(crs)
	if !ok {
		return nil, fmt.Errorf("tile index: unsupported CRS %q", crs)
	}

	tileItem := pq.QuoteIdentifier(layerItem(layer, "tileitem", defaultTileItem))
	geomItem := pq.QuoteIdentifier(layerItem(layer, "tilegeom", defaultGeometryItem))
	timeItem := layerTimeItem(layer)

	timeCol := "''"
	if timeItem != "" {
		timeCol = pq.QuoteIdentifier(timeItem) + "::text"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "select %s, %s from %s where st_intersects(%s, st_transform(st_makeenvelope($1, $2, $3, $4, $5), st_srid(%s)))",
		tileItem, timeCol, quoteTable(layer.TileIndexTable), geomItem, geomItem)
	args := []interface{}{bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY, srid}

	if timeValue != "" {
		if timeItem == "" {
			return nil, fmt.Errorf("layer %s has no time item", layer.Name)
		}
		fmt.Fprintf(&b, " and %s = $6", pq.QuoteIdentifier(timeItem))
		args = append(args, timeValue)
	}
	fmt.Fprintf(&b, " order by %s", tileItem)
	return &Query{SQL: b.String(), Args: args}, nil
}

// Entries returns the tile index rows of layer intersecting bbox.
func (ix *Index) Entries(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]Entry, error) {
	q, err := BuildQuery(layer, bbox, crs, timeValue)
	if err != nil {
		return nil, err
	}
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}

	t0 := time.Now()
	rows, err := ix.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("tile index query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Location, &e.Time); err != nil {
			return nil, fmt.Errorf("tile index scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tile index query: %w", err)
	}

	ix.log.Debug().Str("layer", layer.Name).Int("files", len(entries)).
		Dur("duration", time.Since(t0)).Msg("tile index lookup")
	return entries, nil
}

// Files implements the file lookup of tile indexed coverages.
func (ix *Index) Files(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]string, error) {
	entries, err := ix.Entries(ctx, layer, bbox, crs, timeValue)
	if err != nil {
		return nil, err
	}
	return Locations(entries), nil
}

// Locations lists the distinct file locations of entries in order.
func Locations(entries []Entry) []string {
	seen := make(map[string]bool, len(entries))
	var files []string
	for _, e := range entries {
		if seen[e.Location] {
			continue
		}
		seen[e.Location] = true
		files = append(files, e.Location)
	}
	return files
}
