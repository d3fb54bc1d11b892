package wcs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

// Operation names as they appear in REQUEST.
const (
	GetCapabilities  = "GetCapabilities"
	DescribeCoverage = "DescribeCoverage"
	GetCoverage      = "GetCoverage"
)

// CommonParams holds what every protocol version parses.
type CommonParams struct {
	Service        string
	Version        string
	Request        string
	UpdateSequence string
	Format         string
	Interpolation  string
	Coverages      []string
}

// Params is the parsed form of one request, whatever its version.
type Params interface {
	Common() *CommonParams
}

// Common implements Params.
func (c *CommonParams) Common() *CommonParams { return c }

// LegacyParams carries a WCS 1.0 or 1.1 request. Both versions share the
// BBOX/RESX/RESY vocabulary; 1.1 adds the grid CRS elements.
type LegacyParams struct {
	CommonParams
	Section     string
	CRS         string
	ResponseCRS string
	BBox        raster.Rect
	Time        string
	Width       int
	Height      int
	ResX        float64
	ResY        float64
	OriginX     float64
	OriginY     float64
	RangeSubset string
	// Query keeps the raw KVP pairs for rangeset axis lookups.
	Query utils.QueryParams
}

// HasBBox reports whether any bounding box coordinate was given.
func (p *LegacyParams) HasBBox() bool {
	return p.BBox.MinX != 0 || p.BBox.MinY != 0 || p.BBox.MaxX != 0 || p.BBox.MaxY != 0
}

// SubsetKind tags the value held by a SubsetValue.
type SubsetKind int

const (
	SubsetUnbounded SubsetKind = iota
	SubsetScalar
	SubsetTime
)

func (k SubsetKind) String() string {
	switch k {
	case SubsetScalar:
		return "scalar"
	case SubsetTime:
		return "time"
	}
	return "unbounded"
}

// SubsetValue is one subset bound.
type SubsetValue struct {
	Kind   SubsetKind
	Scalar float64
	Time   time.Time
}

// AxisSubset is a trim (two bounds) or a slice (one point) along a named
// axis, optionally expressed in its own CRS.
type AxisSubset struct {
	Axis string
	CRS  string
	Trim bool
	Min  SubsetValue
	Max  SubsetValue
}

// Axis20 collects every WCS 2.0 setting that names the same axis.
type Axis20 struct {
	Name          string
	Size          int
	Resolution    float64
	HasResolution bool
	Scale         float64
	ResolutionUOM string
	Subset        *AxisSubset
}

// Params20 carries a WCS 2.0 request.
type Params20 struct {
	CommonParams
	AcceptVersions  []string
	Sections        []string
	AcceptLanguages []string
	Multipart       bool
	OutputCRS       string
	SubsetCRS       string
	Scale           float64
	Axes            []*Axis20
	RangeSubset     []string
	FormatOptions   []string
}

// Axis finds an axis by name, ignoring case.
func (p *Params20) Axis(name string) *Axis20 {
	for _, a := range p.Axes {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// axis returns the named axis, creating it when absent.
func (p *Params20) axis(name string) *Axis20 {
	if a := p.Axis(name); a != nil {
		return a
	}
	a := &Axis20{Name: name}
	p.Axes = append(p.Axes, a)
	return a
}

// parseInteger accepts an integer spanning the whole trimmed string.
func parseInteger(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as an integer", s)
	}
	return v, nil
}

// parseDouble accepts a float spanning the whole trimmed string.
func parseDouble(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("cannot parse %q as a number", s)
	}
	return v, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseTime reads the ISO 8601 forms accepted in subsets and TIME.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeOrScalar reads one subset bound: "*" is unbounded, a number
// is a scalar and an ISO date is a time.
func parseTimeOrScalar(s string) (SubsetValue, error) {
	v := strings.TrimLeft(s, " ")
	if v == "" {
		return SubsetValue{}, fmt.Errorf("cannot parse an empty subset value")
	}
	if v == "*" {
		return SubsetValue{Kind: SubsetUnbounded}, nil
	}
	if f, err := parseDouble(v); err == nil {
		return SubsetValue{Kind: SubsetScalar, Scalar: f}, nil
	}
	if t, ok := parseTime(strings.TrimSpace(v)); ok {
		return SubsetValue{Kind: SubsetTime, Time: t}, nil
	}
	return SubsetValue{}, fmt.Errorf("cannot parse subset value %q as a number or a time", s)
}

// newAxisSubset builds a subset from its textual parts. A non-empty max
// makes a trim, otherwise the subset is a slice on min.
func newAxisSubset(axis, crs, min, max string) (*AxisSubset, error) {
	if axis == "" {
		return nil, fmt.Errorf("Subset axis is not given.")
	}
	s := &AxisSubset{Axis: axis, CRS: crs}

	lo, err := parseTimeOrScalar(min)
	if err != nil {
		return nil, err
	}
	s.Min = lo

	if max == "" {
		if lo.Kind == SubsetUnbounded {
			return nil, fmt.Errorf("Invalid point value given")
		}
		return s, nil
	}

	s.Trim = true
	hi, err := parseTimeOrScalar(max)
	if err != nil {
		return nil, err
	}
	s.Max = hi

	switch {
	case lo.Kind == SubsetUnbounded && hi.Kind == SubsetUnbounded:
		return nil, fmt.Errorf("Invalid values: no bounds could be parsed")
	case lo.Kind != SubsetUnbounded && hi.Kind != SubsetUnbounded && lo.Kind != hi.Kind:
		return nil, fmt.Errorf("Interval error: minimum is a %s value, maximum is a %s value", lo.Kind, hi.Kind)
	}

	if s.Min.Kind == SubsetTime && s.Max.Kind == SubsetTime && s.Min.Time.After(s.Max.Time) {
		return nil, fmt.Errorf("Minimum value of subset axis %s is larger than maximum value", axis)
	}
	if s.Min.Kind == SubsetScalar && s.Max.Kind == SubsetScalar && s.Min.Scalar > s.Max.Scalar {
		return nil, fmt.Errorf("Minimum value (%f) of subset axis '%s' is larger than maximum value (%f).",
			s.Min.Scalar, axis, s.Max.Scalar)
	}
	return s, nil
}

// Kind is the bound kind of the subset once unbounded sides are ignored.
func (s *AxisSubset) Kind() SubsetKind {
	if s.Min.Kind != SubsetUnbounded {
		return s.Min.Kind
	}
	return s.Max.Kind
}

// parseSubsetKVP reads "axis[,crs](low[,high])".
func parseSubsetKVP(value string) (*AxisSubset, error) {
	open := strings.Index(value, "(")
	if open < 0 {
		return nil, fmt.Errorf("Invalid axis subset string: '%s'", value)
	}
	head, body := value[:open], value[open+1:]
	body = strings.TrimSuffix(body, ")")

	axis, crs := head, ""
	if i := strings.Index(head, ","); i >= 0 {
		axis, crs = head[:i], head[i+1:]
	}

	min, max := body, ""
	if i := strings.Index(body, ","); i >= 0 {
		min, max = body[:i], body[i+1:]
	}
	return newAxisSubset(strings.TrimSpace(axis), strings.TrimSpace(crs), min, strings.TrimSpace(max))
}

// parseAxisValue reads "axis(value)" returning both parts.
func parseAxisValue(s string) (string, string, error) {
	open := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if open <= 0 || end < open {
		return "", "", fmt.Errorf("invalid axis expression %q, expecting axis(value)", s)
	}
	return strings.TrimSpace(s[:open]), s[open+1 : end], nil
}

// parseAxisList splits a comma separated list of axis(value) entries.
func parseAxisList(s string) ([][2]string, error) {
	var out [][2]string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		axis, value, err := parseAxisValue(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]string{axis, value})
	}
	return out, nil
}

// normalizeImageCRS maps the URN spellings of imageCRS to the bare token.
func normalizeImageCRS(crs string) string {
	if raster.IsImageCRS(crs) {
		return "imageCRS"
	}
	return crs
}

// splitList splits a comma list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if t := strings.TrimSpace(tok); t != "" {
			out = append(out, t)
		}
	}
	return out
}
