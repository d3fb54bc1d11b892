package wcs

import (
	"reflect"
	"testing"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

func mustQuery(t *testing.T, s string) utils.QueryParams {
	q, err := utils.ParseQuery(s)
	if err != nil {
		t.Fatalf("ParseQuery(%s): %v", s, err)
	}
	return q
}

func TestParseKVP1x(t *testing.T) {
	p, err := ParseKVP1x(mustQuery(t, "service=WCS&version=1.0.0&request=GetCoverage&coverage=a&coverage=b&crs=EPSG:4326&bbox=1,2,3,4&width=30&height=40&format=GTiff&crs=EPSG:3857"))
	if err != nil {
		t.Fatalf("ParseKVP1x: %v", err)
	}
	if !reflect.DeepEqual(p.Coverages, []string{"a", "b"}) {
		t.Errorf("coverages expecting [a b], actual %v", p.Coverages)
	}
	if p.CRS != "EPSG:4326" {
		t.Errorf("first CRS wins, expecting EPSG:4326, actual %s", p.CRS)
	}
	expected := raster.Rect{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	if p.BBox != expected {
		t.Errorf("bbox expecting %v, actual %v", expected, p.BBox)
	}
	if p.Width != 30 || p.Height != 40 || p.Format != "GTiff" {
		t.Errorf("expecting 30x40 GTiff, actual %dx%d %s", p.Width, p.Height, p.Format)
	}

	p, err = ParseKVP1x(mustQuery(t, "BOUNDINGBOX=0,0,5,5,urn:ogc:def:crs:OGC::imageCRS&GRIDOFFSETS=-2,3&GRIDORIGIN=1,2"))
	if err != nil {
		t.Fatalf("ParseKVP1x: %v", err)
	}
	if p.CRS != "imageCRS" || p.ResX != 2 || p.ResY != 3 || p.OriginX != 1 || p.OriginY != 2 {
		t.Errorf("1.1 grid parameters unexpected: %+v", p)
	}

	if _, err := ParseKVP1x(mustQuery(t, "BBOX=1,2,3")); err == nil {
		t.Errorf("short BBOX expecting an error, actual nil")
	}
}

func TestParseKVP1xNumbers(t *testing.T) {
	cases := []struct {
		query   string
		locator string
	}{
		{"BBOX=0,0,10,1O", "bbox"},
		{"BBOX=0,0,10,NaN", "bbox"},
		{"BBOX=10,0,0,10", "bbox"},
		{"BOUNDINGBOX=0,0,x,10,EPSG:4326", "boundingbox"},
		{"BOUNDINGBOX=0,10,10,0,EPSG:4326", "boundingbox"},
		{"RESX=abc&RESY=1", "resx"},
		{"RESX=1&RESY=-1", "resy"},
		{"RESX=0&RESY=1", "resx"},
		{"WIDTH=ten&HEIGHT=10", "width"},
		{"WIDTH=10&HEIGHT=-5", "height"},
		{"WIDTH=0&HEIGHT=10", "width"},
		{"WIDTH=1.5&HEIGHT=10", "width"},
		{"GRIDOFFSETS=1,two", "GridOffsets"},
		{"GRIDORIGIN=1e,2", "GridOrigin"},
	}
	for _, c := range cases {
		_, err := ParseKVP1x(mustQuery(t, c.query))
		e, ok := err.(*Exception)
		if !ok {
			t.Errorf("%s: expecting an exception, actual %v", c.query, err)
			continue
		}
		if e.Code != InvalidParameterValue || e.Locator != c.locator {
			t.Errorf("%s: expecting %s/%s, actual %s/%s", c.query, InvalidParameterValue, c.locator, e.Code, e.Locator)
		}
	}

	p, err := ParseKVP1x(mustQuery(t, "BBOX=0,-1.5e1,10,10&RESX=0.5&RESY=2"))
	if err != nil {
		t.Fatalf("ParseKVP1x: %v", err)
	}
	expected := raster.Rect{MinX: 0, MinY: -15, MaxX: 10, MaxY: 10}
	if p.BBox != expected || p.ResX != 0.5 || p.ResY != 2 {
		t.Errorf("expecting %v at 0.5x2, actual %v at %vx%v", expected, p.BBox, p.ResX, p.ResY)
	}
}

func TestParseKVP20(t *testing.T) {
	q := mustQuery(t, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCoverage&COVERAGEID=a,b&SUBSET=Long,EPSG:4326(1,2)&SUBSET=Lat(*,5)&SCALEFACTOR=2&RANGESUBSET=b1,b3:b4&MEDIATYPE=multipart/related&geotiff:tiling=true")
	p, err := ParseKVP20(q)
	if err != nil {
		t.Fatalf("ParseKVP20: %v", err)
	}
	if !reflect.DeepEqual(p.Coverages, []string{"a", "b"}) {
		t.Errorf("coverages expecting [a b], actual %v", p.Coverages)
	}
	long := p.Axis("long")
	if long == nil || long.Subset == nil || long.Subset.CRS != "EPSG:4326" || !long.Subset.Trim ||
		long.Subset.Min.Scalar != 1 || long.Subset.Max.Scalar != 2 {
		t.Errorf("long subset unexpected: %+v", long)
	}
	lat := p.Axis("Lat")
	if lat == nil || lat.Subset.Min.Kind != SubsetUnbounded || lat.Subset.Max.Scalar != 5 {
		t.Errorf("lat subset unexpected: %+v", lat)
	}
	if p.Scale != 2 || !p.Multipart {
		t.Errorf("expecting scale 2 and multipart, actual %v %v", p.Scale, p.Multipart)
	}
	if !reflect.DeepEqual(p.RangeSubset, []string{"b1", "b3:b4"}) {
		t.Errorf("range subset expecting [b1 b3:b4], actual %v", p.RangeSubset)
	}
	if !reflect.DeepEqual(p.FormatOptions, []string{"geotiff:tiling=true"}) {
		t.Errorf("format options expecting geotiff:tiling=true, actual %v", p.FormatOptions)
	}

	bad := []string{
		"COVERAGEID=a&COVERAGEID=b",
		"SCALEFACTOR=0",
		"SCALEFACTOR=abc",
		"MEDIATYPE=text/plain",
		"SUBSET=Long(5,1)",
		"SUBSET=Long(1,2)&SUBSET=Long(3,4)",
		"SCALESIZE=x(abc)",
		"SCALESIZE=x(0)",
		"SCALEEXTENT=x(5:5)",
		"SCALEEXTENT=x(6:5)",
		"SIZE=x(-3)",
		"RESOLUTION=x(0)",
		"RESOLUTION=x(-1)",
	}
	for _, s := range bad {
		if _, err := ParseKVP20(mustQuery(t, s)); err == nil {
			t.Errorf("%s: expecting an error, actual nil", s)
		}
	}
}

func TestParseKVP20ScaleExtent(t *testing.T) {
	p, err := ParseKVP20(mustQuery(t, "SCALEEXTENT=x(2:7),y(0:1)"))
	if err != nil {
		t.Fatalf("ParseKVP20: %v", err)
	}
	if x, y := p.Axis("x"), p.Axis("y"); x == nil || y == nil || x.Size != 5 || y.Size != 1 {
		t.Errorf("sizes expecting 5 and 1, actual %+v %+v", x, y)
	}
}

func TestParseXML20GetCoverage(t *testing.T) {
	body := `<wcs:GetCoverage xmlns:wcs="http://www.opengis.net/wcs/2.0" service="WCS" version="2.0.1">
  <wcs:CoverageId>dem</wcs:CoverageId>
  <wcs:format>image/tiff</wcs:format>
  <wcs:DimensionTrim>
    <wcs:Dimension>Long</wcs:Dimension>
    <wcs:TrimLow>1</wcs:TrimLow>
    <wcs:TrimHigh>4</wcs:TrimHigh>
  </wcs:DimensionTrim>
</wcs:GetCoverage>`
	root, err := ParseXML([]byte(body))
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	p, err := ParseXML20(root)
	if err != nil {
		t.Fatalf("ParseXML20: %v", err)
	}
	if !reflect.DeepEqual(p.Coverages, []string{"dem"}) || p.Format != "image/tiff" {
		t.Errorf("expecting dem as image/tiff, actual %v %s", p.Coverages, p.Format)
	}
	a := p.Axis("Long")
	if a == nil || a.Subset == nil || a.Subset.Min.Scalar != 1 || a.Subset.Max.Scalar != 4 {
		t.Errorf("trim unexpected: %+v", a)
	}

	if _, err := ParseXML([]byte("SERVICE=WCS")); err == nil {
		t.Errorf("non XML body expecting an error, actual nil")
	}
}

func TestParseSubsetKVP(t *testing.T) {
	s, err := parseSubsetKVP("ansi(2020-01-01,2020-02-01)")
	if err != nil {
		t.Fatalf("parseSubsetKVP: %v", err)
	}
	if s.Kind() != SubsetTime || !s.Trim {
		t.Errorf("expecting a time trim, actual %v %v", s.Kind(), s.Trim)
	}

	s, err = parseSubsetKVP("x(3)")
	if err != nil {
		t.Fatalf("parseSubsetKVP: %v", err)
	}
	if s.Trim || s.Kind() != SubsetScalar || s.Min.Scalar != 3 {
		t.Errorf("expecting a scalar slice at 3, actual %+v", s)
	}

	for _, v := range []string{"x", "x(*)", "x(*,*)", "x(1,2020-01-01)", "(1,2)"} {
		if _, err := parseSubsetKVP(v); err == nil {
			t.Errorf("%s: expecting an error, actual nil", v)
		}
	}
}
