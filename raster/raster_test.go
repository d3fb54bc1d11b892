package raster

import (
	"testing"
	"time"
)

func TestRectOverlaps(t *testing.T) {
	a := Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	if !a.Overlaps(Rect{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}) {
		t.Errorf("partial overlap expecting true, actual false")
	}
	if !a.Overlaps(Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}) {
		t.Errorf("touching corner expecting true, actual false")
	}
	if a.Overlaps(Rect{MinX: 11, MinY: 0, MaxX: 20, MaxY: 10}) {
		t.Errorf("disjoint x expecting false, actual true")
	}
	if a.Overlaps(Rect{MinX: 0, MinY: -20, MaxX: 10, MaxY: -1}) {
		t.Errorf("disjoint y expecting false, actual true")
	}

	in := a.Intersect(Rect{MinX: 5, MinY: -5, MaxX: 15, MaxY: 5})
	expected := Rect{MinX: 5, MinY: 0, MaxX: 10, MaxY: 5}
	if in != expected {
		t.Errorf("expecting %v, actual %v", expected, in)
	}
}

func TestGeoTransformApply(t *testing.T) {
	gt := GeoTransform{100, 10, 0, 200, 0, -10}
	x, y := gt.Apply(10, 10)
	if x != 200 || y != 100 {
		t.Errorf("expecting (200,100), actual (%v,%v)", x, y)
	}
}

func TestParseEPSG(t *testing.T) {
	cases := map[string]int{
		"EPSG:4326": 4326,
		"epsg:3857": 3857,
		"urn:ogc:def:crs:EPSG::4326":                  4326,
		"urn:ogc:def:crs:EPSG:6.6:32755":              32755,
		"http://www.opengis.net/def/crs/EPSG/0/28355": 28355,
		"init=epsg:3577":                              3577,
		"CRS:84":                                      4326,
	}
	for def, expected := range cases {
		code, ok := ParseEPSG(def)
		if !ok || code != expected {
			t.Errorf("%s expecting %d, actual %d (%v)", def, expected, code, ok)
		}
	}

	if _, ok := ParseEPSG("+proj=longlat +datum=WGS84"); ok {
		t.Errorf("proj string expecting no code")
	}
	if _, ok := ParseEPSG("EPSG:abc"); ok {
		t.Errorf("EPSG:abc expecting no code")
	}
}

func TestNeedsAxisSwap(t *testing.T) {
	if NeedsAxisSwap("EPSG:4326") {
		t.Errorf("EPSG:4326 expecting false, actual true")
	}
	if !NeedsAxisSwap("urn:ogc:def:crs:EPSG::4326") {
		t.Errorf("urn 4326 expecting true, actual false")
	}
	if !NeedsAxisSwap("http://www.opengis.net/def/crs/EPSG/0/4326") {
		t.Errorf("uri 4326 expecting true, actual false")
	}
	if NeedsAxisSwap("http://www.opengis.net/def/crs/EPSG/0/3857") {
		t.Errorf("uri 3857 expecting false, actual true")
	}
	if NeedsAxisSwap("urn:ogc:def:crs:OGC:1.3:CRS84") {
		t.Errorf("CRS84 expecting false, actual true")
	}
	if !AxisInverted(3035) {
		t.Errorf("3035 expecting inverted")
	}
	if AxisInverted(4978) {
		t.Errorf("4978 expecting not inverted")
	}
}

func TestIsImageCRS(t *testing.T) {
	for _, def := range []string{"imageCRS", "IMAGECRS", "urn:ogc:def:crs:OGC::imageCRS", "urn:ogc:def:crs:OGC:0.0:imageCRS"} {
		if !IsImageCRS(def) {
			t.Errorf("%s expecting imageCRS", def)
		}
	}
	if IsImageCRS("EPSG:4326") {
		t.Errorf("EPSG:4326 expecting not imageCRS")
	}
}

func TestDriverLock(t *testing.T) {
	l := &Lock{}
	var waits int
	l.Observe(func(time.Duration) { waits++ })

	release := l.Acquire()
	release()
	release()

	err := l.Do(func() error { return nil })
	if err != nil {
		t.Errorf("expecting nil error, actual %v", err)
	}
	if waits != 2 {
		t.Errorf("expecting 2 observed acquisitions, actual %d", waits)
	}
}
