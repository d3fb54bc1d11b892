package wcs

import (
	"reflect"
	"testing"

	"github.com/nci/gskywcs/utils"
)

func bandsMetadata(n int) *CoverageMetadata {
	cm := &CoverageMetadata{}
	for i := 0; i < n; i++ {
		cm.Bands = append(cm.Bands, BandMetadata{})
	}
	return cm
}

func TestGetBands20(t *testing.T) {
	layer := &utils.Layer{Metadata: map[string]string{"band_names": "red green blue nir swir tir"}}
	cm := bandsMetadata(6)

	cases := []struct {
		subset   []string
		expected []int
	}{
		{nil, []int{1, 2, 3, 4, 5, 6}},
		{[]string{"2:4"}, []int{2, 3, 4}},
		{[]string{"6"}, []int{6}},
		{[]string{"nir", "RED"}, []int{4, 1}},
		{[]string{"green:blue", "6"}, []int{2, 3, 6}},
	}
	for _, c := range cases {
		bands, err := GetBands20(layer, &Params20{RangeSubset: c.subset}, cm)
		if err != nil {
			t.Errorf("%v: %v", c.subset, err)
			continue
		}
		if !reflect.DeepEqual(bands, c.expected) {
			t.Errorf("%v: expecting %v, actual %v", c.subset, c.expected, bands)
		}
	}

	for _, bad := range [][]string{{"7"}, {"0"}, {"4:2"}, {"2:9"}, {"uv"}, {"red:uv"}} {
		if _, err := GetBands20(layer, &Params20{RangeSubset: bad}, cm); err == nil {
			t.Errorf("%v: expecting an error, actual nil", bad)
		}
	}
}

func TestBands11(t *testing.T) {
	layer := &utils.Layer{Metadata: map[string]string{}}

	cases := []struct {
		subset        string
		bands         []int
		interpolation string
	}{
		{"", nil, ""},
		{"raster", nil, ""},
		{"raster:nearest", nil, "nearest"},
		{"raster[bands[2]]", []int{2}, ""},
		{"raster:average[bands[1,3]]", []int{1, 3}, "average"},
	}
	for _, c := range cases {
		bands, interp, err := Bands11(layer, &LegacyParams{RangeSubset: c.subset}, 3)
		if err != nil {
			t.Errorf("%q: %v", c.subset, err)
			continue
		}
		if !reflect.DeepEqual(bands, c.bands) || interp != c.interpolation {
			t.Errorf("%q: expecting %v %q, actual %v %q", c.subset, c.bands, c.interpolation, bands, interp)
		}
	}

	for _, bad := range []string{"other[bands[1]]", "raster[axis[1]]", "raster[bands[4]]"} {
		if _, _, err := Bands11(layer, &LegacyParams{RangeSubset: bad}, 3); err == nil {
			t.Errorf("%q: expecting an error, actual nil", bad)
		}
	}
}

func TestBands10(t *testing.T) {
	layer := withDefaultBandsRangeSet(&utils.Layer{Metadata: map[string]string{"rangeset_axes": "bands"}}, 4)
	if layer.Meta("bands_values") != "1,2,3,4" {
		t.Errorf("default bands_values expecting 1,2,3,4, actual %s", layer.Meta("bands_values"))
	}

	p := &LegacyParams{Query: mustQuery(t, "BANDS=3,1")}
	bands, err := Bands10(layer, p, 4)
	if err != nil {
		t.Fatalf("Bands10: %v", err)
	}
	if !reflect.DeepEqual(bands, []int{3, 1}) {
		t.Errorf("expecting [3 1], actual %v", bands)
	}

	p = &LegacyParams{Query: mustQuery(t, "BANDS=5")}
	if _, err := Bands10(layer, p, 4); err == nil {
		t.Errorf("band 5 expecting an error, actual nil")
	}

	bands, err = Bands10(&utils.Layer{}, &LegacyParams{Query: mustQuery(t, "BANDS=1")}, 4)
	if err != nil || bands != nil {
		t.Errorf("layer without rangeset expecting all bands, actual %v %v", bands, err)
	}
}

func TestWithDefaultBandsRangeSetKeepsLayer(t *testing.T) {
	orig := &utils.Layer{Metadata: map[string]string{"rangeset_axes": "bands"}}
	_ = withDefaultBandsRangeSet(orig, 3)
	if _, ok := orig.Lookup("bands_values"); ok {
		t.Errorf("original layer expecting no bands_values, actual %v", orig.Metadata)
	}

	custom := &utils.Layer{Metadata: map[string]string{"rangeset_axes": "bands", "bands_label": "Channels"}}
	if l := withDefaultBandsRangeSet(custom, 3); l != custom {
		t.Errorf("layer with bands metadata expecting itself, actual a copy")
	}
}

func TestConvertRangeSet(t *testing.T) {
	v, ok := convertRangeSet("1/4/1")
	if !ok || v != "1,2,3,4" {
		t.Errorf("expecting 1,2,3,4, actual %s %v", v, ok)
	}
	if _, ok := convertRangeSet("1/4"); ok {
		t.Errorf("two component range expecting failure, actual ok")
	}
	if v, ok := convertRangeSet("2,3"); !ok || v != "2,3" {
		t.Errorf("list expecting itself, actual %s %v", v, ok)
	}
}
