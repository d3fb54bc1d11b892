package wcs

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

// mockProjector knows EPSG:4326 and EPSG:3857. Web mercator is faked as
// degrees scaled by 100000.
type mockProjector struct{}

func (mockProjector) code(def string) (int, error) {
	code, ok := raster.ParseEPSG(def)
	if !ok || (code != 4326 && code != 3857) {
		return 0, fmt.Errorf("unknown crs %s", def)
	}
	return code, nil
}

func (p mockProjector) Validate(def string) error {
	_, err := p.code(def)
	return err
}

func (p mockProjector) IsGeographic(def string) (bool, error) {
	code, err := p.code(def)
	return code == 4326, err
}

func (p mockProjector) Same(a, b string) (bool, error) {
	ca, err := p.code(a)
	if err != nil {
		return false, err
	}
	cb, err := p.code(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}

func (p mockProjector) ProjectRect(src, dst string, r raster.Rect) (raster.Rect, error) {
	cs, err := p.code(src)
	if err != nil {
		return r, err
	}
	cd, err := p.code(dst)
	if err != nil {
		return r, err
	}
	f := 1.0
	switch {
	case cs == 4326 && cd == 3857:
		f = 100000
	case cs == 3857 && cd == 4326:
		f = 1.0 / 100000
	}
	return raster.Rect{MinX: r.MinX * f, MinY: r.MinY * f, MaxX: r.MaxX * f, MaxY: r.MaxY * f}, nil
}

type mockSource struct {
	last *raster.DrawRequest
	err  error
}

func (s *mockSource) Open(path string) (raster.Dataset, error) {
	return nil, fmt.Errorf("no dataset at %s", path)
}

func (s *mockSource) Draw(ctx context.Context, req *raster.DrawRequest) (*raster.Image, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &raster.Image{Data: []byte("RASTER"), MimeType: req.MimeType, FileName: req.FileName}, nil
}

func (s *mockSource) DriverMimeType(driver string) string { return "" }

type mockIndex struct {
	files     []string
	timeValue string
	bbox      raster.Rect
}

func (m *mockIndex) Files(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]string, error) {
	m.timeValue = timeValue
	m.bbox = bbox
	return m.files, nil
}

func testConfig() *utils.Config {
	return &utils.Config{
		ServiceConfig: utils.ServiceConfig{
			OWSHostname:     "localhost",
			Title:           "Test coverages",
			MaxSize:         100,
			SRS:             "EPSG:4326",
			EnableRequest:   []string{"*"},
			SchemasLocation: utils.DefaultSchemasLocation,
		},
		OutputFormats: []utils.OutputFormat{
			{Name: "GTiff", MimeType: "image/tiff", Driver: "GTiff", Extension: "tif"},
			{Name: "NetCDF", MimeType: "application/x-netcdf", Driver: "netCDF", Extension: "nc"},
		},
		Layers: []utils.Layer{
			{
				Name:       "dem",
				Title:      "Elevation",
				DataSource: "/data/dem.tif",
				SRS:        "EPSG:4326",
				Metadata: map[string]string{
					"extent":     "0 0 10 10",
					"resolution": "1 1",
					"bandcount":  "5",
				},
			},
			{
				Name:           "tiled",
				SRS:            "EPSG:4326",
				TileIndexTable: "tiles",
				TimePosition:   []string{"2020-01-01", "2020-02-01"},
				TimeItem:       "stamp",
				Metadata: map[string]string{
					"extent":     "0 0 10 10",
					"resolution": "1 1",
				},
			},
			{
				Name:          "hidden",
				DataSource:    "/data/hidden.tif",
				SRS:           "EPSG:4326",
				EnableRequest: []string{"!*"},
				Metadata: map[string]string{
					"extent": "0 0 10 10",
					"size":   "10 10",
				},
			},
		},
	}
}

func newTestHandler(t *testing.T, config *utils.Config) (*Handler, *mockSource, *mockIndex) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	src := &mockSource{}
	idx := &mockIndex{files: []string{"/tiles/a.tif", "/tiles/b.tif"}}
	h := &Handler{
		Config:    config,
		Source:    src,
		Projector: mockProjector{},
		TileIndex: idx,
		Renderer:  r,
		Log:       zerolog.Nop(),
	}
	return h, src, idx
}

func serve(t *testing.T, h *Handler, query string) *Response {
	q, err := utils.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery(%s): %v", query, err)
	}
	resp, err := h.Serve(context.Background(), &Request{Query: q})
	if err != nil {
		t.Fatalf("Serve(%s): %v", query, err)
	}
	return resp
}

// expectException checks that resp failed with code at locator.
func expectException(t *testing.T, resp *Response, code, locator string) {
	t.Helper()
	if resp.Exchange == nil || resp.Exchange.Exception == nil {
		t.Fatalf("expecting %s exception, actual success with %s", code, resp.Header.Get("Content-Type"))
	}
	e := resp.Exchange.Exception
	if e.Code != code {
		t.Errorf("exception code expecting %s, actual %s (%s)", code, e.Code, e.Message)
	}
	if e.Locator != locator {
		t.Errorf("exception locator expecting %q, actual %q", locator, e.Locator)
	}
	if resp.Exchange.State != StateFailed {
		t.Errorf("exchange state expecting %v, actual %v", StateFailed, resp.Exchange.State)
	}
}

func expectSuccess(t *testing.T, resp *Response) {
	t.Helper()
	if resp.Exchange != nil && resp.Exchange.Exception != nil {
		e := resp.Exchange.Exception
		t.Fatalf("expecting success, actual %s/%s: %s", e.Code, e.Locator, e.Message)
	}
	if resp.Exchange == nil || resp.Exchange.State != StateDone {
		t.Fatalf("expecting done exchange, actual %+v", resp.Exchange)
	}
}
