package wcs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nci/gskywcs/utils"
)

// allBands is the natural band order 1..n.
func allBands(n int) []int {
	bands := make([]int, n)
	for i := range bands {
		bands[i] = i + 1
	}
	return bands
}

// BandList formats band indices the way creation options and logs expect.
func BandList(bands []int) string {
	s := make([]string, len(bands))
	for i, b := range bands {
		s[i] = strconv.Itoa(b)
	}
	return strings.Join(s, ",")
}

// bandVocabulary is the name list range subsets resolve against.
func bandVocabulary(layer *utils.Layer, cm *CoverageMetadata) []string {
	n := cm.BandCount()
	if v, ok := layer.Lookup("band_names"); ok {
		return strings.Fields(v)
	}
	if v, ok := layer.Lookup("rangeset_axes"); ok {
		if strings.EqualFold(v, "bands") {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("Band%d", i+1)
			}
			return names
		}
		return strings.Fields(v)
	}
	names := make([]string, n)
	for i, b := range cm.Bands {
		names[i] = b.Name
	}
	return names
}

func findName(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// bandIndex resolves a numeric index or a band name to a 1-based index.
// Numbers are not range checked here.
func bandIndex(names []string, token string) (int, error) {
	if i, err := parseInteger(token); err == nil {
		return i, nil
	}
	if i := findName(names, token); i >= 0 {
		return i + 1, nil
	}
	return 0, fmt.Errorf("'%s' is not a valid band identifier.", token)
}

// GetBands20 resolves the RANGESUBSET tokens of a 2.0 request: indices,
// names and inclusive start:stop intervals. No range subset selects every
// band.
func GetBands20(layer *utils.Layer, p *Params20, cm *CoverageMetadata) ([]int, error) {
	n := cm.BandCount()
	if len(p.RangeSubset) == 0 {
		return allBands(n), nil
	}
	names := bandVocabulary(layer, cm)

	var bands []int
	for _, token := range p.RangeSubset {
		if i := strings.Index(token, ":"); i >= 0 {
			start, err := bandIndex(names, token[:i])
			if err != nil {
				return nil, err
			}
			stop, err := bandIndex(names, token[i+1:])
			if err != nil {
				return nil, err
			}
			if stop <= start {
				return nil, fmt.Errorf("Invalid range interval given.")
			}
			if start < 1 || stop > n {
				return nil, fmt.Errorf("Band interval is out of the valid range: 1-%d", n)
			}
			for b := start; b <= stop; b++ {
				bands = append(bands, b)
			}
			continue
		}

		if idx, err := parseInteger(token); err == nil {
			if idx < 1 || idx > n {
				return nil, fmt.Errorf("Band index is out of the valid range: 1-%d", n)
			}
			bands = append(bands, idx)
			continue
		}
		i := findName(names, token)
		if i < 0 {
			return nil, fmt.Errorf("'%s' is not a valid band identifier.", token)
		}
		bands = append(bands, i+1)
	}
	return bands, nil
}

// withDefaultBandsRangeSet returns layer with the default "bands" rangeset
// description filled in when rangeset_axes names it and no bands_*
// metadata exists. The layer passed in is never modified.
func withDefaultBandsRangeSet(layer *utils.Layer, bandCount int) *utils.Layer {
	axes, ok := layer.Lookup("rangeset_axes")
	if !ok {
		return layer
	}
	i := strings.Index(axes, "bands")
	if i < 0 || (i+5 < len(axes) && axes[i+5] != ' ') {
		return layer
	}
	for _, k := range []string{"description", "name", "label", "values", "values_semantic",
		"values_type", "rangeitem", "semantic", "refsys", "refsyslabel", "interval"} {
		if _, ok := layer.Lookup("bands_" + k); ok {
			return layer
		}
	}

	overlay := *layer
	overlay.Metadata = make(map[string]string, len(layer.Metadata)+4)
	for k, v := range layer.Metadata {
		overlay.Metadata[k] = v
	}
	overlay.Metadata["wcs_bands_name"] = "bands"
	overlay.Metadata["wcs_bands_label"] = "Bands/Channels/Samples"
	overlay.Metadata["wcs_bands_rangeitem"] = "_bands"
	overlay.Metadata["wcs_bands_values"] = BandList(allBands(bandCount))
	return &overlay
}

// validateRangeSetParam checks every requested value against the
// "<axis>_values" list of the layer.
func validateRangeSetParam(layer *utils.Layer, axis, value string) bool {
	list, ok := layer.Lookup(axis + "_values")
	if !ok {
		return false
	}
	allowed := strings.Split(list, ",")
	for _, v := range strings.Split(value, ",") {
		found := false
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(a)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// convertRangeSet expands "min/max/res" into the equally spaced values
// it denotes. Plain lists are returned as they are.
func convertRangeSet(value string) (string, bool) {
	if !strings.Contains(value, "/") {
		return value, true
	}
	tok := strings.Split(value, "/")
	if len(tok) != 3 {
		return "", false
	}
	min, err1 := parseDouble(tok[0])
	max, err2 := parseDouble(tok[1])
	res, err3 := parseDouble(tok[2])
	if err1 != nil || err2 != nil || err3 != nil || res <= 0 {
		return "", false
	}
	var out []string
	for v := min; v <= max; v += res {
		out = append(out, strconv.FormatFloat(v, 'g', 6, 64))
	}
	return strings.Join(out, ","), true
}

// parseBandList reads a comma separated index list and checks the range.
func parseBandList(list string, n int, locator string) ([]int, error) {
	var bands []int
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		b, err := parseInteger(tok)
		if err != nil || b < 1 || b > n {
			return nil, NewException(InvalidParameterValue, locator, "Band index %s is out of the valid range: 1-%d", tok, n)
		}
		bands = append(bands, b)
	}
	if len(bands) == 0 {
		return nil, NewException(InvalidParameterValue, locator, "Error specifying \"%s\" parameter value(s).", locator)
	}
	return bands, nil
}

// Bands10 applies the rangeset axis parameters of a 1.0 request. A nil
// result with no error means every band.
func Bands10(layer *utils.Layer, p *LegacyParams, bandCount int) ([]int, error) {
	axes, ok := layer.Lookup("rangeset_axes")
	if !ok {
		return nil, nil
	}
	var bands []int
	for _, axis := range strings.Split(axes, ",") {
		axis = strings.TrimSpace(axis)
		value, ok := p.Query.Get(axis)
		if !ok {
			continue
		}
		if !validateRangeSetParam(layer, axis, value) {
			return nil, NewException(InvalidParameterValue, axis, "Error specifying \"%s\" parameter value(s).", axis)
		}
		tag := axis + "_rangeitem"
		item, ok := layer.Lookup(tag)
		if !ok {
			return nil, NewException(NoApplicableCode, "",
				"Missing required metadata element \"%s\", unable to process %s=%s.", tag, axis, value)
		}
		switch strings.ToLower(item) {
		case "_bands":
			list, ok := convertRangeSet(value)
			if !ok {
				return nil, NewException(NoApplicableCode, "", "Error specifying \"%s\" parameter value(s).", axis)
			}
			b, err := parseBandList(list, bandCount, axis)
			if err != nil {
				return nil, err
			}
			bands = b
		case "_pixels":
			return nil, NewException(NoApplicableCode, "", "Arbitrary range sets based on pixel values are not yet supported.")
		default:
			return nil, NewException(NoApplicableCode, "", "Arbitrary range sets based on tile (i.e. image) attributes are not yet supported.")
		}
	}
	return bands, nil
}

// Bands11 parses a 1.1 RangeSubset of the form
// field[:interpolation][axis[bands]]. It returns the selected bands (nil
// for all) and the interpolation named in the subset, if any.
func Bands11(layer *utils.Layer, p *LegacyParams, bandCount int) ([]int, string, error) {
	rs := p.RangeSubset
	if rs == "" {
		return nil, "", nil
	}
	fieldID, ok := layer.Lookup("rangeset_name")
	if !ok {
		fieldID = "raster"
	}
	axisID, ok := layer.Lookup("bands_name")
	if !ok {
		axisID = "bands"
	}

	if strings.EqualFold(rs, fieldID) {
		return nil, "", nil
	}
	if len(rs) <= len(fieldID)+1 || !strings.EqualFold(rs[:len(fieldID)], fieldID) ||
		(rs[len(fieldID)] != '[' && rs[len(fieldID)] != ':') {
		return nil, "", NewException(NoApplicableCode, "mapserv",
			"RangeSubset field name malformed, expected '%s', got RangeSubset=%s", fieldID, rs)
	}
	value := rs[len(fieldID):]

	var interpolation string
	if value[0] == ':' {
		interpolation = value[1:]
		if i := strings.Index(interpolation, "["); i >= 0 {
			interpolation = interpolation[:i]
		}
		value = value[len(interpolation)+1:]
	}

	if value == "" || value[0] != '[' {
		return nil, interpolation, nil
	}
	value = value[1:]
	if len(value) <= len(axisID)+1 || !strings.EqualFold(value[:len(axisID)], axisID) || value[len(axisID)] != '[' {
		return nil, "", NewException(NoApplicableCode, "mapserv",
			"RangeSubset axis name malformed, expected '%s', got RangeSubset=%s", axisID, rs)
	}
	list := value[len(axisID)+1:]
	if i := strings.Index(list, "]"); i >= 0 {
		list = list[:i]
	}
	bands, err := parseBandList(list, bandCount, "RangeSubset")
	if err != nil {
		return nil, "", err
	}
	return bands, interpolation, nil
}
