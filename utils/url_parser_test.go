package utils

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(ISOFormat, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestParseQuery(t *testing.T) {
	params, err := ParseQuery(`SERVICE=WCS&request=GetCoverage&subset=Long(1%2)&SUBSET=Lat(10,20)&label=a\&b&&flag`)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	expected := []QueryParam{
		{"SERVICE", "WCS"},
		{"request", "GetCoverage"},
		{"subset", "Long(1%2)"},
		{"SUBSET", "Lat(10,20)"},
		{"label", "a&b"},
		{"flag", ""},
	}
	if diff := cmp.Diff(QueryParams(expected), params); diff != "" {
		t.Errorf("params mismatch (-expected +actual):\n%s", diff)
	}

	if v, ok := params.Get("service"); !ok || v != "WCS" {
		t.Errorf("case insensitive Get expecting WCS, actual %q", v)
	}
	if params.Value("subset") != "Long(1%2)" {
		t.Errorf("Get expecting the first subset, actual %s", params.Value("subset"))
	}
	if params.Value("coverage") != "" {
		t.Errorf("missing key expecting empty value")
	}

	params, err = ParseQuery("coverage=a%zz&version=2.0.1")
	if err == nil {
		t.Errorf("bad escape expecting an error, actual nil")
	}
	if params.Value("version") != "2.0.1" {
		t.Errorf("parsing expecting to continue after a bad value, actual %v", params)
	}

	params, _ = ParseQuery("rangesubset=b1%3Ab3+b5")
	if params.Value("RANGESUBSET") != "b1:b3 b5" {
		t.Errorf("rangesubset expecting decoded value, actual %s", params.Value("RANGESUBSET"))
	}
}

func TestEnableRequest(t *testing.T) {
	cases := []struct {
		entries []string
		request string
		enabled bool
		decided bool
	}{
		{[]string{"*"}, "GetCoverage", true, true},
		{[]string{"* !GetCoverage"}, "getcoverage", false, true},
		{[]string{"!*", "DescribeCoverage"}, "DescribeCoverage", true, true},
		{[]string{"GetCapabilities"}, "GetCoverage", false, false},
		{nil, "GetCoverage", false, false},
	}
	for _, c := range cases {
		enabled, decided := ParseEnableRequest(c.entries, c.request)
		if enabled != c.enabled || decided != c.decided {
			t.Errorf("%v %s: expecting %v/%v, actual %v/%v", c.entries, c.request, c.enabled, c.decided, enabled, decided)
		}
	}

	svc := &ServiceConfig{EnableRequest: []string{"*"}}
	layer := &Layer{Name: "dem", EnableRequest: []string{"!GetCoverage"}}
	if ok, _ := RequestEnabled(svc, layer, "GetCoverage", "2.0.1"); ok {
		t.Errorf("layer list expecting to override the service list")
	}
	if ok, _ := RequestEnabled(svc, layer, "DescribeCoverage", "2.0.1"); !ok {
		t.Errorf("undecided layer list expecting the service list to apply")
	}

	layer = &Layer{Name: "dem", EnableExpression: "version != '1.0.0'"}
	if ok, err := RequestEnabled(svc, layer, "GetCoverage", "1.0.0"); ok || err != nil {
		t.Errorf("expression expecting to disable 1.0.0, actual %v %v", ok, err)
	}
	if ok, err := RequestEnabled(svc, layer, "GetCoverage", "2.0.1"); !ok || err != nil {
		t.Errorf("expression expecting to enable 2.0.1, actual %v %v", ok, err)
	}
	if !ServiceRequestEnabled(svc, "GetCapabilities") {
		t.Errorf("service wildcard expecting to enable GetCapabilities")
	}
}

func TestCompileEnableExpression(t *testing.T) {
	if expr, err := CompileEnableExpression("  "); expr != nil || err != nil {
		t.Errorf("blank expression expecting nil, actual %v %v", expr, err)
	}
	if _, err := CompileEnableExpression("band == 1"); err == nil {
		t.Errorf("unknown variable expecting an error, actual nil")
	}
	expr, err := CompileEnableExpression("layer")
	if err != nil {
		t.Fatalf("CompileEnableExpression: %v", err)
	}
	if _, err := EvalEnableExpression(expr, "WCS", "GetCoverage", "2.0.1", "dem"); err == nil {
		t.Errorf("non boolean result expecting an error, actual nil")
	}
}
