package mas

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

func TestBuildQuery(t *testing.T) {
	layer := &utils.Layer{Name: "tiled", TileIndexTable: "public.tiles"}
	bbox := raster.Rect{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}

	q, err := BuildQuery(layer, bbox, "EPSG:3577", "")
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	expected := `select "location", '' from "public"."tiles" where st_intersects("geom", st_transform(st_makeenvelope($1, $2, $3, $4, $5), st_srid("geom"))) order by "location"`
	if q.SQL != expected {
		t.Errorf("expecting %s, actual %s", expected, q.SQL)
	}
	if diff := cmp.Diff([]interface{}{1.0, 2.0, 3.0, 4.0, 3577}, q.Args); diff != "" {
		t.Errorf("args unexpected: %v", q.Args)
	}

	layer = &utils.Layer{Name: "tiled", TileIndexTable: "tiles", TimeItem: "stamp",
		Metadata: map[string]string{"wcs_tileitem": "path", "tilegeom": "footprint"}}
	q, err = BuildQuery(layer, bbox, "urn:ogc:def:crs:EPSG::4326", "2020-01-01")
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	for _, s := range []string{`select "path", "stamp"::text from "tiles"`, `st_intersects("footprint"`, `and "stamp" = $6`} {
		if !strings.Contains(q.SQL, s) {
			t.Errorf("query expecting %q, actual %s", s, q.SQL)
		}
	}
	if len(q.Args) != 6 || q.Args[4] != 4326 || q.Args[5] != "2020-01-01" {
		t.Errorf("args unexpected: %v", q.Args)
	}
}

func TestBuildQueryErrors(t *testing.T) {
	bbox := raster.Rect{MaxX: 1, MaxY: 1}
	if _, err := BuildQuery(&utils.Layer{Name: "a"}, bbox, "EPSG:4326", ""); err == nil {
		t.Errorf("layer without tile index expecting an error, actual nil")
	}
	if _, err := BuildQuery(&utils.Layer{Name: "a", TileIndexTable: "t"}, bbox, "imageCRS", ""); err == nil {
		t.Errorf("imageCRS expecting an error, actual nil")
	}
	if _, err := BuildQuery(&utils.Layer{Name: "a", TileIndexTable: "t"}, bbox, "EPSG:4326", "2020-01-01"); err == nil {
		t.Errorf("time without time item expecting an error, actual nil")
	}
}

func TestQuoteTable(t *testing.T) {
	if s := quoteTable(`odd"name`); s != `"odd""name"` {
		t.Errorf("expecting escaped quote, actual %s", s)
	}
}

func TestLocations(t *testing.T) {
	files := Locations([]Entry{{Location: "/a.tif"}, {Location: "/b.tif"}, {Location: "/a.tif"}})
	if diff := cmp.Diff([]string{"/a.tif", "/b.tif"}, files); diff != "" {
		t.Errorf("locations mismatch (-expected +actual):\n%s", diff)
	}
	if Locations(nil) != nil {
		t.Errorf("expecting nil")
	}
}

type fakeLister struct {
	entries []Entry
	err     error
	bbox    raster.Rect
	crs     string
	time    string
}

func (f *fakeLister) Entries(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]Entry, error) {
	f.bbox, f.crs, f.time = bbox, crs, timeValue
	return f.entries, f.err
}

func newTestAPI(lister Lister) http.Handler {
	config := &utils.Config{Layers: []utils.Layer{
		{Name: "tiled", TileIndexTable: "tiles"},
		{Name: "plain", DataSource: "/data/a.tif"},
	}}
	api := &API{
		Index: lister,
		Configs: func(ns string) (*utils.Config, bool) {
			if ns == "" {
				return config, true
			}
			return nil, false
		},
		Log: zerolog.New(io.Discard),
	}
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/mas/{layer}", api)
	return r
}

func TestAPI(t *testing.T) {
	lister := &fakeLister{entries: []Entry{{Location: "/data/t1.tif", Time: "2020-01-01"}}}
	h := newTestAPI(lister)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mas/tiled?bbox=0,0,10,10&time=2020-01-01", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status expecting 200, actual %d: %s", rr.Code, rr.Body.String())
	}
	var l listing
	if err := json.Unmarshal(rr.Body.Bytes(), &l); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if l.Layer != "tiled" || l.Count != 1 || l.Files[0].Location != "/data/t1.tif" {
		t.Errorf("listing unexpected: %+v", l)
	}
	if lister.crs != "EPSG:4326" || lister.time != "2020-01-01" || lister.bbox.MaxX != 10 {
		t.Errorf("lookup arguments unexpected: %+v", lister)
	}

	cases := []struct {
		url    string
		status int
	}{
		{"/mas/nope?bbox=0,0,1,1", http.StatusNotFound},
		{"/mas/tiled?bbox=0,0,1,1&namespace=other", http.StatusNotFound},
		{"/mas/plain?bbox=0,0,1,1", http.StatusBadRequest},
		{"/mas/tiled?bbox=0,0,1", http.StatusBadRequest},
		{"/mas/tiled?bbox=5,0,1,1", http.StatusBadRequest},
		{"/mas/tiled", http.StatusBadRequest},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, c.url, nil))
		if rr.Code != c.status {
			t.Errorf("%s: status expecting %d, actual %d", c.url, c.status, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: content type expecting application/json, actual %s", c.url, ct)
		}
	}

	lister.err = errors.New("connection refused")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mas/tiled?bbox=0,0,1,1", nil))
	if rr.Code != http.StatusInternalServerError || !strings.Contains(rr.Body.String(), "connection refused") {
		t.Errorf("backend failure expecting 500, actual %d %s", rr.Code, rr.Body.String())
	}
}
