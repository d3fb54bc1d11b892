// crawl reads raster files and produces the rows of a tile index: one
// JSON line per file on stdout, or rows loaded straight into a Postgres
// tile index table with -db.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"regexp"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	extr "github.com/nci/gskywcs/crawl/extractor"
	"github.com/nci/gskywcs/raster/gdal"
	"github.com/nci/gskywcs/utils"
)

var (
	srid      = flag.Int("srid", 4326, "EPSG code of the crawled files.")
	pattern   = flag.String("pattern", "", "Regular expression with named groups (year, month, day, julian_day, hour, minute, second) matched against file names.")
	dsn       = flag.String("db", "", "Tile index database connection string. Records are printed when empty.")
	table     = flag.String("table", "", "Tile index table.")
	tileItem  = flag.String("tileitem", "location", "Column holding the file location.")
	geomItem  = flag.String("geomitem", "geom", "Column holding the file footprint.")
	timeItem  = flag.String("timeitem", "", "Column holding the file time.")
	batchSize = flag.Int("batch", 500, "Records per database transaction.")
	logLevel  = flag.String("log_level", "info", "Log level.")
)

// paths yields the file arguments, or stdin lines for "-".
func paths(args []string, fn func(string)) {
	for _, a := range args {
		if a != "-" {
			fn(a)
			continue
		}
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				fn(line)
			}
		}
	}
}

func main() {
	flag.Parse()
	log := utils.NewLogger(utils.LogConfig{Level: *logLevel, Component: "crawl"}, os.Stderr)

	if flag.NArg() == 0 {
		log.Fatal().Msg("Please provide paths to files or '-' for reading from stdin")
	}

	var re *regexp.Regexp
	if *pattern != "" {
		var err error
		re, err = regexp.Compile(*pattern)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -pattern")
		}
	}

	var db *sql.DB
	t := extr.Table{Name: *table, TileItem: *tileItem, GeomItem: *geomItem, TimeItem: *timeItem}
	if *dsn != "" {
		if *table == "" {
			log.Fatal().Msg("-table is required with -db")
		}
		var err error
		db, err = sql.Open("postgres", *dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("database open failed")
		}
		defer db.Close()
	}

	gdal.InitGdal()
	src := gdal.NewSource(log)
	enc := json.NewEncoder(os.Stdout)
	ctx := context.Background()

	var batch []*extr.Record
	flush := func() {
		if db == nil || len(batch) == 0 {
			return
		}
		if err := extr.Load(ctx, db, t, batch); err != nil {
			log.Error().Err(err).Int("records", len(batch)).Msg("load failed")
		} else {
			log.Info().Int("records", len(batch)).Str("table", *table).Msg("loaded")
		}
		batch = batch[:0]
	}

	failed := 0
	paths(flag.Args(), func(path string) {
		rec, err := extr.Extract(src, path, *srid, re)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("file", path).Msg("skipped")
			return
		}
		if db == nil {
			if err := enc.Encode(rec); err != nil {
				log.Fatal().Err(err).Msg("write failed")
			}
			return
		}
		batch = append(batch, rec)
		if len(batch) >= *batchSize {
			flush()
		}
	})
	flush()

	logDone(log, failed)
}

func logDone(log zerolog.Logger, failed int) {
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("crawl finished with errors")
		os.Exit(1)
	}
}
