package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/nci/gskywcs/raster"
)

type testDataset struct {
	gt     raster.GeoTransform
	x, y   int
	closed bool
}

func (d *testDataset) GeoTransform() (raster.GeoTransform, error) { return d.gt, nil }
func (d *testDataset) Size() (int, int)                          { return d.x, d.y }
func (d *testDataset) BandCount() int                            { return 3 }
func (d *testDataset) BandType(int) raster.DataType              { return raster.Int16 }
func (d *testDataset) BandColorInterp(int) string                { return "Gray" }
func (d *testDataset) BandUnit(int) string                       { return "" }
func (d *testDataset) Close() error                              { d.closed = true; return nil }

type testSource struct {
	ds *testDataset
}

func (s *testSource) Open(path string) (raster.Dataset, error) {
	if s.ds == nil {
		return nil, fmt.Errorf("no dataset at %s", path)
	}
	return s.ds, nil
}

func (s *testSource) Draw(ctx context.Context, req *raster.DrawRequest) (*raster.Image, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *testSource) DriverMimeType(string) string { return "" }

func TestExtract(t *testing.T) {
	ds := &testDataset{gt: raster.GeoTransform{100, 0.5, 0, -20, 0, -0.25}, x: 40, y: 80}
	src := &testSource{ds: ds}
	re := regexp.MustCompile(`^LS8_(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})`)

	rec, err := Extract(src, "/data/LS8_20200315_tile.tif", 3577, re)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.MinX != 100 || rec.MaxX != 120 || rec.MinY != -40 || rec.MaxY != -20 {
		t.Errorf("footprint expecting 100,-40,120,-20, actual %v,%v,%v,%v", rec.MinX, rec.MinY, rec.MaxX, rec.MaxY)
	}
	if rec.XSize != 40 || rec.YSize != 80 || rec.Bands != 3 || rec.SRID != 3577 {
		t.Errorf("record unexpected: %+v", rec)
	}
	if rec.Time == nil || !rec.Time.Equal(time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("time expecting 2020-03-15, actual %v", rec.Time)
	}
	if !ds.closed {
		t.Errorf("dataset expecting to be closed")
	}
	if !strings.HasPrefix(rec.Polygon(), "POLYGON ((100.000000 -20.000000,") {
		t.Errorf("polygon unexpected: %s", rec.Polygon())
	}

	rec, err = Extract(src, "/data/other.tif", 4326, re)
	if err != nil || rec.Time != nil {
		t.Errorf("unmatched name expecting no time, actual %v %v", rec, err)
	}

	if _, err := Extract(&testSource{}, "/data/missing.tif", 4326, nil); err == nil {
		t.Errorf("missing file expecting an error, actual nil")
	}
	if _, err := Extract(&testSource{ds: &testDataset{}}, "/data/empty.tif", 4326, nil); err == nil {
		t.Errorf("empty raster expecting an error, actual nil")
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		fields   map[string]string
		expected time.Time
	}{
		{map[string]string{"year": "2011", "julian_day": "185"}, time.Date(2011, 7, 4, 0, 0, 0, 0, time.UTC)},
		{map[string]string{"year": "2019", "month": "12", "day": "31", "hour": "13", "minute": "5"}, time.Date(2019, 12, 31, 13, 5, 0, 0, time.UTC)},
		{map[string]string{"year": "2000", "second": "30"}, time.Date(2000, 1, 1, 0, 0, 30, 0, time.UTC)},
	}
	for _, c := range cases {
		actual, ok := ParseTime(c.fields)
		if !ok || !actual.Equal(c.expected) {
			t.Errorf("%v: expecting %v, actual %v", c.fields, c.expected, actual)
		}
	}
	if _, ok := ParseTime(map[string]string{"month": "1"}); ok {
		t.Errorf("fields without year expecting failure, actual ok")
	}
}

func TestTableSQL(t *testing.T) {
	tbl := Table{Name: "public.tiles", TimeItem: "stamp"}
	expected := `insert into "public"."tiles" ("location", "geom", "stamp") values ($1, st_makeenvelope($2, $3, $4, $5, $6), $7)`
	if s := tbl.InsertSQL(); s != expected {
		t.Errorf("expecting %s, actual %s", expected, s)
	}
	if s := tbl.DeleteSQL(); s != `delete from "public"."tiles" where "location" = $1` {
		t.Errorf("delete unexpected: %s", s)
	}

	rec := &Record{Location: "/a.tif", MaxX: 1, MaxY: 1, SRID: 4326}
	args := tbl.args(rec)
	if len(args) != 7 || args[6] != nil {
		t.Errorf("args expecting a nil time, actual %v", args)
	}

	tbl = Table{Name: "tiles", TileItem: "path"}
	if s := tbl.InsertSQL(); s != `insert into "tiles" ("path", "geom") values ($1, st_makeenvelope($2, $3, $4, $5, $6))` {
		t.Errorf("insert without time unexpected: %s", s)
	}
	if len(tbl.args(rec)) != 6 {
		t.Errorf("args expecting 6 values without time")
	}
}
