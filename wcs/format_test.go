package wcs

import (
	"reflect"
	"testing"

	"github.com/nci/gskywcs/utils"
)

func TestFindFormat(t *testing.T) {
	formats := testConfig().OutputFormats
	if of := FindFormat(formats, "gtiff"); of == nil || of.Name != "GTiff" {
		t.Errorf("by name expecting GTiff, actual %+v", of)
	}
	if of := FindFormat(formats, "application/x-netcdf"); of == nil || of.Name != "NetCDF" {
		t.Errorf("by mime type expecting NetCDF, actual %+v", of)
	}
	if of := FindFormat(formats, "image/png"); of != nil {
		t.Errorf("expecting nil, actual %+v", of)
	}
}

func TestLayerFormats(t *testing.T) {
	config := testConfig()
	layer := &config.Layers[0]

	if f := LayerFormats(config, layer); !reflect.DeepEqual(f, []string{"image/tiff", "application/x-netcdf"}) {
		t.Errorf("expecting every format, actual %v", f)
	}
	config.ServiceConfig.Formats = []string{"NetCDF"}
	if f := LayerFormats(config, layer); !reflect.DeepEqual(f, []string{"application/x-netcdf"}) {
		t.Errorf("expecting service formats, actual %v", f)
	}
	layer.Formats = []string{"image/tiff", "GTiff", "unknown"}
	if f := layerFormatNames(config, layer); !reflect.DeepEqual(f, []string{"GTiff"}) {
		t.Errorf("expecting layer formats, actual %v", f)
	}
}

func TestResample(t *testing.T) {
	cases := map[string]string{
		"":                  "nearest",
		"nearest neighbour": "nearest",
		"NEAREST_NEIGHBOUR": "nearest",
		"bilinear":          "bilinear",
		"Average":           "average",
	}
	for in, expected := range cases {
		actual, ok := Resample(in)
		if !ok || actual != expected {
			t.Errorf("%q: expecting %s, actual %s (%v)", in, expected, actual, ok)
		}
	}
	if _, ok := Resample("cubic"); ok {
		t.Errorf("cubic expecting unsupported, actual supported")
	}
}

func TestGeoTIFFCreationOptions(t *testing.T) {
	opts, err := GeoTIFFCreationOptions("image/tiff", []string{
		"geotiff:compression=LZW",
		"geotiff:predictor=horizontal",
		"geotiff:interleave=Pixel",
		"geotiff:tiling=true",
		"geotiff:tileheight=256",
		"geotiff:tilewidth=512",
		"geotiff:jpeg_quality=80",
	})
	if err != nil {
		t.Fatalf("GeoTIFFCreationOptions: %v", err)
	}
	expected := []string{"COMPRESS=LZW", "PREDICTOR=2", "INTERLEAVE=PIXEL", "TILED=YES", "BLOCKYSIZE=256", "BLOCKXSIZE=512", "JPEG_QUALITY=80"}
	if !reflect.DeepEqual(opts, expected) {
		t.Errorf("expecting %v, actual %v", expected, opts)
	}

	opts, err = GeoTIFFCreationOptions("application/x-netcdf", []string{"geotiff:compression=LZW"})
	if err != nil || opts != nil {
		t.Errorf("non tiff expecting no options, actual %v %v", opts, err)
	}

	for _, bad := range []string{
		"geotiff:compression=zip",
		"geotiff:jpeg_quality=101",
		"geotiff:predictor=4",
		"geotiff:tiling=maybe",
		"geotiff:tileheight=100",
		"geotiff:colour=red",
		"geotiff:compression",
	} {
		_, err := GeoTIFFCreationOptions("image/tiff", []string{bad})
		e, ok := err.(*Exception)
		if !ok || e.Code != InvalidParameterValue || e.Locator != "format" {
			t.Errorf("%s: expecting InvalidParameterValue at format, actual %v", bad, err)
		}
	}
}

func TestLayerCreationOptions(t *testing.T) {
	layer := &utils.Layer{Metadata: map[string]string{
		"wcs_outputformat_GTiff_creationoption_COMPRESS":     "DEFLATE",
		"outputformat_GTiff_creationoption_COMPRESS":         "LZW",
		"wcs_outputformat_GTiff_creationoption_BAND_3_NAME":  "nir",
		"wcs_outputformat_GTiff_creationoption_BAND_1_NAME":  "red",
		"wcs_outputformat_NetCDF_creationoption_FORMAT":      "NC4",
		"ows_outputformat_GTiff_creationoption_BAND_x_BROKE": "1",
	}}
	opts := LayerCreationOptions(layer, "GTiff", []int{3, 2})
	expected := []string{"COMPRESS=LZW", "BAND_1_NAME=nir"}
	if !reflect.DeepEqual(opts, expected) {
		t.Errorf("expecting %v, actual %v", expected, opts)
	}
}
