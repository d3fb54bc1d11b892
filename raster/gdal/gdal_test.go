package gdal

import (
	"context"
	"math"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
)

func createTestTiff(t *testing.T, name string) {
	ds, err := godal.Create(godal.GTiff, name, 2, godal.Byte, 10, 10)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	if err := ds.SetGeoTransform([6]float64{100, 10, 0, 200, 0, -10}); err != nil {
		t.Fatalf("failed to set geotransform: %v", err)
	}
	sr, err := godal.NewSpatialRefFromEPSG(3577)
	if err != nil {
		t.Fatalf("failed to load EPSG:3577: %v", err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		t.Fatalf("failed to set spatial ref: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", name, err)
	}
}

func TestSourceOpen(t *testing.T) {
	InitGdal()
	name := "/vsimem/gskywcs_test_open.tif"
	createTestTiff(t, name)
	defer godal.VSIUnlink(name)

	src := NewSource(zerolog.Nop())
	ds, err := src.Open(name)
	if err != nil {
		t.Fatalf("expecting nil error, actual %v", err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		t.Errorf("expecting nil error, actual %v", err)
	}
	expected := raster.GeoTransform{100, 10, 0, 200, 0, -10}
	if gt != expected {
		t.Errorf("expecting %v, actual %v", expected, gt)
	}
	w, h := ds.Size()
	if w != 10 || h != 10 {
		t.Errorf("expecting 10x10, actual %dx%d", w, h)
	}
	if ds.BandCount() != 2 {
		t.Errorf("expecting 2 bands, actual %d", ds.BandCount())
	}
	if ds.BandType(1) != raster.Byte {
		t.Errorf("expecting Byte, actual %v", ds.BandType(1))
	}
	if ds.BandType(3) != raster.Unknown {
		t.Errorf("expecting Unknown for a missing band, actual %v", ds.BandType(3))
	}

	if _, err := src.Open("/vsimem/does_not_exist.tif"); err == nil {
		t.Errorf("expecting error opening a missing file")
	}
}

func TestSourceDraw(t *testing.T) {
	InitGdal()
	name := "/vsimem/gskywcs_test_draw.tif"
	createTestTiff(t, name)
	defer godal.VSIUnlink(name)

	src := NewSource(zerolog.Nop())
	img, err := src.Draw(context.Background(), &raster.DrawRequest{
		Paths: []string{name},
		Window: raster.Window{
			Extent: raster.Rect{MinX: 100, MinY: 150, MaxX: 150, MaxY: 200},
			Width:  5,
			Height: 5,
			CRS:    "EPSG:3577",
		},
		Bands:     []int{2},
		Driver:    "GTiff",
		MimeType:  "image/tiff",
		Extension: "tif",
	})
	if err != nil {
		t.Fatalf("expecting nil error, actual %v", err)
	}
	if len(img.Data) == 0 {
		t.Errorf("expecting encoded bytes")
	}
	if img.FileName != "out.tif" {
		t.Errorf("expecting out.tif, actual %s", img.FileName)
	}

	_, err = src.Draw(context.Background(), &raster.DrawRequest{Paths: []string{name}, Resample: "cubic"})
	if err == nil {
		t.Errorf("expecting error for unsupported resampling")
	}
}

func TestProjector(t *testing.T) {
	InitGdal()
	p := Projector{}

	geo, err := p.IsGeographic("EPSG:4326")
	if err != nil || !geo {
		t.Errorf("EPSG:4326 expecting geographic, actual %v (%v)", geo, err)
	}
	geo, err = p.IsGeographic("EPSG:3857")
	if err != nil || geo {
		t.Errorf("EPSG:3857 expecting projected, actual %v (%v)", geo, err)
	}

	same, err := p.Same("EPSG:4326", "urn:ogc:def:crs:EPSG::4326")
	if err != nil || !same {
		t.Errorf("expecting same, actual %v (%v)", same, err)
	}

	if err := p.Validate("EPSG:999999"); err == nil {
		t.Errorf("expecting error loading an unknown code")
	}

	r, err := p.ProjectRect("EPSG:4326", "EPSG:3857", raster.Rect{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1})
	if err != nil {
		t.Fatalf("expecting nil error, actual %v", err)
	}
	if math.Abs(r.MaxX-111319.49) > 1 || math.Abs(r.MinX+111319.49) > 1 {
		t.Errorf("expecting +-111319.49 in x, actual %v", r)
	}
}
