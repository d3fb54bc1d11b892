package wcs

import (
	"strings"
	"testing"

	"github.com/nci/gskywcs/utils"
)

func expectBody(t *testing.T, resp *Response, present []string, absent []string) {
	t.Helper()
	body := string(resp.Body)
	for _, s := range present {
		if !strings.Contains(body, s) {
			t.Errorf("body expecting %q, actual %s", s, body)
		}
	}
	for _, s := range absent {
		if strings.Contains(body, s) {
			t.Errorf("body not expecting %q, actual %s", s, body)
		}
	}
}

func TestGetCapabilities20(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&REQUEST=GetCapabilities")
	expectSuccess(t, resp)
	if ct := resp.Header.Get("Content-Type"); ct != contentTypeXML {
		t.Errorf("content type expecting %s, actual %s", contentTypeXML, ct)
	}
	expectBody(t, resp, []string{
		"<wcs:CoverageId>dem</wcs:CoverageId>",
		"<wcs:CoverageId>tiled</wcs:CoverageId>",
		"<ows:Profile>" + profileGeoTIFF + "</ows:Profile>",
		"<int:InterpolationSupported>BILINEAR</int:InterpolationSupported>",
		"<crs:crsSupported>http://www.opengis.net/def/crs/EPSG/0/4326</crs:crsSupported>",
		"<wcs:formatSupported>image/tiff</wcs:formatSupported>",
	}, []string{
		"<wcs:CoverageId>hidden</wcs:CoverageId>",
	})

	resp = serve(t, h, "SERVICE=WCS&REQUEST=GetCapabilities&SECTIONS=Contents")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<wcs:CoverageId>dem</wcs:CoverageId>"},
		[]string{"<wcs:ServiceMetadata>", "<ows:ServiceIdentification>"})
}

func TestGetCapabilitiesProfiles(t *testing.T) {
	config := testConfig()
	config.OutputFormats = config.OutputFormats[1:]
	h, _, _ := newTestHandler(t, config)

	resp := serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities&SECTIONS=ServiceIdentification")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"http://www.opengis.net/spec/WCS/2.0/conf/core"}, []string{profileGeoTIFF})
}

func TestGetCapabilitiesUpdateSequence(t *testing.T) {
	config := testConfig()
	config.ServiceConfig.UpdateSequence = "5"
	h, _, _ := newTestHandler(t, config)

	resp := serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities&UPDATESEQUENCE=5")
	expectException(t, resp, CurrentUpdateSequence, "updatesequence")

	resp = serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities&UPDATESEQUENCE=6")
	expectException(t, resp, InvalidUpdateSequence, "updatesequence")

	resp = serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities&UPDATESEQUENCE=4")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{`updateSequence="5"`}, nil)

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=GetCapabilities&UPDATESEQUENCE=5")
	expectException(t, resp, CurrentUpdateSequence, "updatesequence")
}

func TestGetCapabilities10Sections(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=GetCapabilities")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<name>dem</name>", "<CoverageOfferingBrief>"}, []string{"<name>hidden</name>"})

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=GetCapabilities&SECTION=/WCS_Capabilities/Service")
	expectSuccess(t, resp)
	expectBody(t, resp, nil, []string{"<CoverageOfferingBrief>"})

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.0.0&REQUEST=GetCapabilities&SECTION=/WCS_Capabilities/Bogus")
	expectException(t, resp, InvalidParameterValue, "section")
}

func TestGetCapabilities11(t *testing.T) {
	h, _, _ := newTestHandler(t, testConfig())

	resp := serve(t, h, "SERVICE=WCS&VERSION=1.1.1&REQUEST=GetCapabilities")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<Identifier>dem</Identifier>", "<ows:Title>Elevation</ows:Title>"}, nil)

	resp = serve(t, h, "SERVICE=WCS&VERSION=1.1.1&REQUEST=GetCapabilities&SECTIONS=ServiceIdentification")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"<ows:ServiceIdentification>"}, []string{"<CoverageSummary>"})
}

func TestGetCapabilitiesBrokenLayer(t *testing.T) {
	config := testConfig()
	config.Layers = append(config.Layers, utils.Layer{Name: "broken", SRS: "EPSG:4326"})
	h, _, _ := newTestHandler(t, config)

	resp := serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities&SECTIONS=Contents")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{
		"<wcs:CoverageId>dem</wcs:CoverageId>",
		"There was a problem with one of layers",
	}, []string{"<wcs:CoverageId>broken</wcs:CoverageId>"})
}

func TestGetCapabilitiesNoLayers(t *testing.T) {
	config := testConfig()
	for i := range config.Layers {
		config.Layers[i].EnableRequest = []string{"!*"}
	}
	h, _, _ := newTestHandler(t, config)

	resp := serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=GetCapabilities")
	expectSuccess(t, resp)
	expectBody(t, resp, []string{"No WCS layers are enabled"}, []string{"<wcs:CoverageSummary>"})

	resp = serve(t, h, "SERVICE=WCS&VERSION=2.0.1&REQUEST=DescribeCoverage&COVERAGEID=dem")
	expectException(t, resp, InvalidParameterValue, "request")
}
