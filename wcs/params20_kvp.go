package wcs

import (
	"fmt"
	"strings"

	"github.com/nci/gskywcs/utils"
)

// ParseKVP20 reads a WCS 2.0 key/value request. Subset failures come back
// as exceptions; every other error is a plain error the dispatcher
// reports against the request parameter.
func ParseKVP20(q utils.QueryParams) (*Params20, error) {
	p := &Params20{}
	coverageIDSet := false
	for _, kv := range q {
		key, value := kv.Name, kv.Value
		upper := strings.ToUpper(key)
		switch {
		case upper == "VERSION":
			p.Version = value
		case upper == "REQUEST":
			p.Request = value
		case upper == "SERVICE":
			p.Service = value
		case upper == "ACCEPTVERSIONS":
			p.AcceptVersions = append(p.AcceptVersions, strings.Split(value, ",")...)
		case upper == "SECTIONS":
			p.Sections = append(p.Sections, strings.Split(value, ",")...)
		case upper == "UPDATESEQUENCE":
			p.UpdateSequence = value
		case upper == "ACCEPTFORMATS":
		case upper == "ACCEPTLANGUAGES":
			p.AcceptLanguages = splitList(value)
		case upper == "COVERAGEID":
			if coverageIDSet {
				return nil, fmt.Errorf("Parameter 'CoverageID' is already set. For multiple IDs use a comma separated list.")
			}
			coverageIDSet = true
			p.Coverages = splitList(value)
		case upper == "FORMAT":
			p.Format = value
		case upper == "MEDIATYPE":
			if err := p.setMediaType(value); err != nil {
				return nil, err
			}
		case upper == "INTERPOLATION":
			p.Interpolation = value
		case upper == "OUTPUTCRS":
			p.OutputCRS = value
		case upper == "SUBSETTINGCRS":
			p.SubsetCRS = value
		case upper == "SCALEFACTOR":
			if p.Scale != 0 {
				return nil, fmt.Errorf("Parameter 'SCALEFACTOR' already set.")
			}
			scale, err := parseDouble(value)
			if err != nil {
				return nil, fmt.Errorf("Could not parse parameter 'SCALEFACTOR'.")
			}
			if scale <= 0 {
				return nil, fmt.Errorf("Invalid value for 'SCALEFACTOR'.")
			}
			p.Scale = scale
		case upper == "SCALEAXES":
			entries, err := parseAxisList(value)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				scale, err := parseDouble(e[1])
				if err != nil || scale <= 0 {
					return nil, fmt.Errorf("Invalid scale parameter value : %s.", e[1])
				}
				if err := p.setAxisScale(e[0], scale); err != nil {
					return nil, err
				}
			}
		case upper == "SCALESIZE":
			entries, err := parseAxisList(value)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				size, err := parseInteger(e[1])
				if err != nil {
					return nil, fmt.Errorf("Parameter value '%s' is not a valid integer.", e[1])
				}
				if err := p.setAxisSize(e[0], size); err != nil {
					return nil, err
				}
			}
		case upper == "SCALEEXTENT":
			entries, err := parseAxisList(value)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				size, err := parseScaleExtent(e[1])
				if err != nil {
					return nil, err
				}
				if err := p.setAxisSize(e[0], size); err != nil {
					return nil, err
				}
			}
		case strings.HasPrefix(upper, "SIZE"):
			axis, v, err := parseAxisValue(value)
			if err != nil {
				return nil, fmt.Errorf("Invalid size parameter value.")
			}
			size, err := parseInteger(v)
			if err != nil {
				return nil, fmt.Errorf("Parameter value '%s' is not a valid integer.", v)
			}
			if err := p.setAxisSize(axis, size); err != nil {
				return nil, err
			}
		case strings.HasPrefix(upper, "RESOLUTION"):
			axis, v, err := parseAxisValue(value)
			if err != nil {
				return nil, fmt.Errorf("Invalid resolution parameter value : %s.", value)
			}
			res, err := parseDouble(v)
			if err != nil {
				return nil, fmt.Errorf("Invalid resolution parameter value : %s.", v)
			}
			if err := p.setAxisResolution(axis, res, ""); err != nil {
				return nil, err
			}
		case strings.HasPrefix(upper, "SUBSET"):
			subset, err := parseSubsetKVP(value)
			if err != nil {
				return nil, NewException(InvalidSubsetting, "subset", "%v", err)
			}
			if err := p.setAxisSubset(subset); err != nil {
				return nil, err
			}
		case upper == "RANGESUBSET":
			p.RangeSubset = append(p.RangeSubset, strings.Split(value, ",")...)
		case strings.HasPrefix(upper, "GEOTIFF:"):
			p.FormatOptions = append(p.FormatOptions, key+"="+value)
		}
	}
	return p, nil
}

func (p *Params20) setMediaType(value string) error {
	if strings.EqualFold(value, "multipart/mixed") || strings.EqualFold(value, "multipart/related") {
		p.Multipart = true
		return nil
	}
	return fmt.Errorf("Invalid value '%s' for parameter 'Mediatype'.", value)
}

func (p *Params20) setAxisScale(name string, scale float64) error {
	a := p.axis(name)
	if a.Scale != 0 {
		return fmt.Errorf("The scale of the axis is already set.")
	}
	a.Scale = scale
	return nil
}

func (p *Params20) setAxisSize(name string, size int) error {
	a := p.axis(name)
	if a.Size != 0 {
		return fmt.Errorf("The size of the axis is already set.")
	}
	if size < 1 {
		return fmt.Errorf("Invalid size %d for axis '%s'.", size, name)
	}
	a.Size = size
	return nil
}

func (p *Params20) setAxisResolution(name string, res float64, uom string) error {
	a := p.axis(name)
	if a.HasResolution {
		return fmt.Errorf("The resolution of the axis is already set.")
	}
	if res <= 0 {
		return fmt.Errorf("Invalid resolution %g for axis '%s'.", res, name)
	}
	a.Resolution = res
	a.HasResolution = true
	a.ResolutionUOM = uom
	return nil
}

func (p *Params20) setAxisSubset(s *AxisSubset) error {
	a := p.axis(s.Axis)
	if a.Subset != nil {
		return NewException(InvalidAxisLabel, "subset", "The axis '%s' is already subsetted.", a.Name)
	}
	a.Subset = s
	return nil
}

// parseScaleExtent reads "min:max" and returns the pixel count max-min.
func parseScaleExtent(v string) (int, error) {
	i := strings.Index(v, ":")
	if i < 0 {
		return 0, fmt.Errorf("Invalid extent parameter value : %s.", v)
	}
	min, err := parseInteger(v[:i])
	if err != nil {
		return 0, fmt.Errorf("Invalid min parameter value : %s.", v[:i])
	}
	max, err := parseInteger(v[i+1:])
	if err != nil {
		return 0, fmt.Errorf("Invalid max parameter value : %s.", v[i+1:])
	}
	if max <= min {
		return 0, fmt.Errorf("Minimum value of extent (%d) is not lower than maximum value (%d).", min, max)
	}
	return max - min, nil
}
