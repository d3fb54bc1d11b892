package wcs

import (
	"testing"
)

func TestDescribeCoverage10(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=DescribeCoverage&COVERAGE=dem")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<name>dem</name>", "<label>Elevation</label>"}, []string{"<name>tiled</name>"})

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=DescribeCoverage")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<name>dem</name>", "<name>tiled</name>", "<gml:timePosition>2020-02-01</gml:timePosition>"},
		[]string{"<name>hidden</name>"})

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=DescribeCoverage&COVERAGE=dem,nope")
	expectException(t, resp, CoverageNotDefined, "coverage")

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=DescribeCoverage&COVERAGE=hidden")
	expectException(t, resp, CoverageNotDefined, "coverage")
}

func TestDescribeCoverage11(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&VERSION=1.1.1&REQUEST=DescribeCoverage&IDENTIFIERS=dem")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{
		"<Identifier>dem</Identifier>",
		"<GridBaseCRS>urn:ogc:def:crs:EPSG::4326</GridBaseCRS>",
		"<GridOrigin>9.5 0.5</GridOrigin>",
		"<GridOffsets>-1 0 0 1</GridOffsets>",
		`<ows:BoundingBox crs="urn:ogc:def:crs:OGC::imageCRS" dimensions="2">`,
	}, nil)

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.1.1&REQUEST=DescribeCoverage&IDENTIFIERS=nope")
	expectException(t, resp, CoverageNotDefined, "coverage")
}

func TestDescribeCoverage20(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=DescribeCoverage&COVERAGEID=dem")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{
		`axisLabels="lat long"`,
		"<gml:axisLabels>long lat</gml:axisLabels>",
		"<gml:high>9 9</gml:high>",
		"<gml:pos>9.500000 0.500000</gml:pos>",
		"<gml:upperCorner>10 10</gml:upperCorner>",
		`srsName="http://www.opengis.net/def/crs/EPSG/0/4326"`,
	}, nil)

	cases := []struct {
		query string
		code  string
	}{
		{"SERVICE=WCS&VERSION=2.0.1&REQUEST=DescribeCoverage", MissingParameterValue},
		{"SERVICE=WCS&VERSION=2.0.1&REQUEST=DescribeCoverage&COVERAGEID=nope", NoSuchCoverage},
		{"SERVICE=WCS&VERSION=2.0.1&REQUEST=DescribeCoverage&COVERAGEID=dem,hidden", NoSuchCoverage},
	}
	for _, c := range cases {
		resp := serve(t, h, c.query)
		expectException(t, resp, c.code, "coverage")
	}
}

func TestCoverage20BandFilter(t *testing.T) {
	config := testConfig()
	config.Layers[0].Metadata["band_names"] = "red green blue nir swir"
	h, _, _ := newTestHandler(t, config)

	layer := &config.Layers[0]
	cm, err := NewMetadataResolver(config, h.Source, h.Projector).Resolve(layer)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	g, err := h.nativeGrid(cm)
	if err != nil {
		t.Fatalf("nativeGrid: %v", err)
	}

	all := coverage20(layer, cm, g, nil)
	if len(all.Range) != 5 {
		t.Errorf("range expecting 5 fields, actual %d", len(all.Range))
	}
	some := coverage20(layer, cm, g, []int{2, 4})
	if len(some.Range) != 2 || some.Range[0].Name != "green" || some.Range[1].Name != "nir" {
		t.Errorf("range expecting green and nir, actual %+v", some.Range)
	}
	if some.Range[0].UOM != defaultUOM {
		t.Errorf("uom expecting %s, actual %s", defaultUOM, some.Range[0].UOM)
	}
}
