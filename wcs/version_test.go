package wcs

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := map[string]Version{
		"2.0.1": Version201,
		"1.1":   Version110,
		" 1.0.0": Version100,
	}
	for in, expected := range cases {
		v, err := ParseVersion(in)
		if err != nil || v != expected {
			t.Errorf("%q: expecting %v, actual %v (%v)", in, expected, v, err)
		}
	}
	for _, bad := range []string{"", "2", "1.a", "1.2.3.4", "1.256"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Errorf("%q: expecting an error, actual nil", bad)
		}
	}
	if s := Version112.String(); s != "1.1.2" {
		t.Errorf("expecting 1.1.2, actual %s", s)
	}
	if !Version201.Is20() || !Version112.Is11() || !Version100.Is10() || Version110.Is10() {
		t.Errorf("version family checks failed")
	}
}

func TestNegotiateVersion(t *testing.T) {
	cases := []struct {
		requested Version
		expected  Version
	}{
		{Version201, Version201},
		{Version111, Version111},
		{Version(0x010005), Version100},
		{Version(0x010103), Version112},
		{Version(0x030000), Version201},
		{Version(0x000900), Version201},
	}
	for _, c := range cases {
		if v := NegotiateVersion(c.requested, SupportedVersions); v != c.expected {
			t.Errorf("%v: expecting %v, actual %v", c.requested, c.expected, v)
		}
	}
}

func TestCompareUpdateSequence(t *testing.T) {
	cases := []struct {
		a, b     string
		expected int
	}{
		{"5", "10", -1},
		{"10", "5", 1},
		{"7", "7", 0},
		{"2020-01-02", "2020-01-01T12:00:00", 1},
		{"2020-01-01T00:00:00Z", "2020-01-01", 0},
		{"abc", "abd", -1},
	}
	for _, c := range cases {
		if r := compareUpdateSequence(c.a, c.b); r != c.expected {
			t.Errorf("%s vs %s: expecting %d, actual %d", c.a, c.b, c.expected, r)
		}
	}

	if err := CheckUpdateSequence("", "5"); err != nil {
		t.Errorf("empty request expecting nil, actual %v", err)
	}
	if err := CheckUpdateSequence("3", ""); err != nil {
		t.Errorf("empty server value expecting nil, actual %v", err)
	}
}
