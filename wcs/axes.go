package wcs

import "strings"

// AxisRole is the canonical spatial role of a named axis.
type AxisRole int

const (
	AxisUnknown AxisRole = iota
	AxisX
	AxisY
)

func (r AxisRole) String() string {
	switch r {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	}
	return "unknown"
}

var xAxisNames = []string{"x", "xaxis", "x-axis", "x_axis", "long", "long_axis", "long-axis", "lon", "lon_axis", "lon-axis"}

var yAxisNames = []string{"y", "yaxis", "y-axis", "y_axis", "lat", "lat_axis", "lat-axis"}

// LookupAxis maps an axis label to its role, ignoring case.
func LookupAxis(name string) AxisRole {
	for _, n := range xAxisNames {
		if strings.EqualFold(n, name) {
			return AxisX
		}
	}
	for _, n := range yAxisNames {
		if strings.EqualFold(n, name) {
			return AxisY
		}
	}
	return AxisUnknown
}
