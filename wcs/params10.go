package wcs

import (
	"math"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

// parseCoords reads the numbers of a 1.x coordinate parameter. A token
// that is not a number fails the request with locator.
func parseCoords(tok []string, locator, name string) ([]float64, error) {
	out := make([]float64, len(tok))
	for i, t := range tok {
		v, err := parseDouble(t)
		if err != nil {
			return nil, NewException(InvalidParameterValue, locator, "Invalid value '%s' for %s.", strings.TrimSpace(t), name)
		}
		out[i] = v
	}
	return out, nil
}

// ParseKVP1x reads a WCS 1.0 or 1.1 key/value request. The first
// occurrence of a singular key wins; COVERAGE and IDENTIFIER(S) build a
// list.
func ParseKVP1x(q utils.QueryParams) (*LegacyParams, error) {
	p := &LegacyParams{Query: q}
	seen := make(map[string]bool)
	first := func(key string) bool {
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	for _, kv := range q {
		key := strings.ToUpper(kv.Name)
		value := kv.Value
		switch key {
		case "COVERAGE", "IDENTIFIER", "IDENTIFIERS":
			p.Coverages = append(p.Coverages, value)
			continue
		case "SECTIONS":
			key = "SECTION"
		}
		if !first(key) {
			continue
		}

		switch key {
		case "VERSION":
			p.Version = value
		case "UPDATESEQUENCE":
			p.UpdateSequence = value
		case "REQUEST":
			p.Request = value
		case "INTERPOLATION":
			p.Interpolation = value
		case "SERVICE":
			p.Service = value
		case "SECTION":
			p.Section = value
		case "BBOX":
			tok := strings.Split(value, ",")
			if len(tok) != 4 {
				return p, NewException(InvalidParameterValue, "bbox", "Wrong number of arguments for BBOX.")
			}
			v, err := parseCoords(tok, "bbox", "BBOX")
			if err != nil {
				return p, err
			}
			if v[0] > v[2] || v[1] > v[3] {
				return p, NewException(InvalidParameterValue, "bbox", "BBOX minimum exceeds its maximum.")
			}
			p.BBox = raster.Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
		case "RESX", "RESY":
			v, err := parseCoords([]string{value}, strings.ToLower(key), key)
			if err != nil {
				return p, err
			}
			if v[0] <= 0 {
				return p, NewException(InvalidParameterValue, strings.ToLower(key), "%s must be greater than zero, got '%s'.", key, value)
			}
			if key == "RESX" {
				p.ResX = v[0]
			} else {
				p.ResY = v[0]
			}
		case "WIDTH", "HEIGHT":
			n, err := parseInteger(value)
			if err != nil || n < 1 {
				return p, NewException(InvalidParameterValue, strings.ToLower(key), "Invalid value '%s' for %s.", value, key)
			}
			if key == "WIDTH" {
				p.Width = n
			} else {
				p.Height = n
			}
		case "TIME":
			p.Time = value
		case "FORMAT":
			p.Format = value
		case "CRS":
			p.CRS = value
		case "RESPONSE_CRS":
			p.ResponseCRS = value
		case "RANGESUBSET":
			p.RangeSubset = value
		case "BOUNDINGBOX":
			tok := strings.Split(value, ",")
			if len(tok) < 5 {
				return p, NewException(InvalidParameterValue, "boundingbox", "Wrong number of arguments for BOUNDINGBOX.")
			}
			v, err := parseCoords(tok[:4], "boundingbox", "BOUNDINGBOX")
			if err != nil {
				return p, err
			}
			if v[0] > v[2] || v[1] > v[3] {
				return p, NewException(InvalidParameterValue, "boundingbox", "BOUNDINGBOX minimum exceeds its maximum.")
			}
			p.BBox = raster.Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
			p.CRS = normalizeImageCRS(tok[4])
		case "GRIDOFFSETS":
			tok := strings.Split(value, ",")
			if len(tok) < 2 {
				return p, NewException(InvalidParameterValue, "GridOffsets", "Wrong number of arguments for GridOffsets")
			}
			v, err := parseCoords(tok[:2], "GridOffsets", "GridOffsets")
			if err != nil {
				return p, err
			}
			p.ResX, p.ResY = math.Abs(v[0]), math.Abs(v[1])
		case "GRIDORIGIN":
			tok := strings.Split(value, ",")
			if len(tok) < 2 {
				return p, NewException(InvalidParameterValue, "GridOffsets", "Wrong number of arguments for GridOrigin")
			}
			v, err := parseCoords(tok[:2], "GridOrigin", "GridOrigin")
			if err != nil {
				return p, err
			}
			p.OriginX, p.OriginY = v[0], v[1]
		}
	}
	return p, nil
}

// ParseXML1x reads a WCS 1.1 POST request.
func ParseXML1x(root *Node) (*LegacyParams, error) {
	p := &LegacyParams{}
	p.Request = root.Name()
	p.Service, _ = root.Attr("service")
	p.Version, _ = root.Attr("version")

	for _, child := range root.Children {
		switch {
		case child.Is("UpdateSequence"):
			p.UpdateSequence = child.Text()
		case child.Is("Sections"):
			var sections []string
			for _, s := range child.ChildrenNamed("Section") {
				sections = append(sections, s.Text())
			}
			p.Section = strings.Join(sections, ",")
		case child.Is("Identifier"):
			p.Coverages = append(p.Coverages, child.Text())
		case child.Is("DomainSubset"):
			if err := p.parseXMLDomainSubset(child); err != nil {
				return p, err
			}
		case child.Is("Output"):
			if err := p.parseXMLOutput(child); err != nil {
				return p, err
			}
		}
	}
	return p, nil
}

func (p *LegacyParams) parseXMLDomainSubset(n *Node) error {
	for _, bb := range n.ChildrenNamed("BoundingBox") {
		crs, _ := bb.Attr("crs")
		p.CRS = normalizeImageCRS(crs)
		for _, corner := range bb.Children {
			switch {
			case corner.Is("LowerCorner"):
				tok := strings.Fields(corner.Text())
				if len(tok) < 2 {
					return NewException(InvalidParameterValue, "LowerCorner", "Wrong number of arguments for LowerCorner")
				}
				v, err := parseCoords(tok[:2], "LowerCorner", "LowerCorner")
				if err != nil {
					return err
				}
				p.BBox.MinX, p.BBox.MinY = v[0], v[1]
			case corner.Is("UpperCorner"):
				tok := strings.Fields(corner.Text())
				if len(tok) < 2 {
					return NewException(InvalidParameterValue, "UpperCorner", "Wrong number of arguments for UpperCorner")
				}
				v, err := parseCoords(tok[:2], "UpperCorner", "UpperCorner")
				if err != nil {
					return err
				}
				p.BBox.MaxX, p.BBox.MaxY = v[0], v[1]
			}
		}
	}
	return nil
}

func (p *LegacyParams) parseXMLOutput(n *Node) error {
	p.Format, _ = n.Attr("format")
	for _, grid := range n.ChildrenNamed("GridCRS") {
		for _, c := range grid.Children {
			switch {
			case c.Is("GridBaseCRS"):
				p.ResponseCRS = c.Text()
			case c.Is("GridOrigin"):
				tok := strings.Fields(c.Text())
				if len(tok) < 2 {
					return NewException(InvalidParameterValue, "GridOffsets", "Wrong number of arguments for GridOrigin")
				}
				v, err := parseCoords(tok[:2], "GridOrigin", "GridOrigin")
				if err != nil {
					return err
				}
				p.OriginX, p.OriginY = v[0], v[1]
			case c.Is("GridOffsets"):
				tok := strings.Fields(c.Text())
				if len(tok) < 2 {
					return NewException(InvalidParameterValue, "GridOffsets", "Wrong number of arguments for GridOffsets")
				}
				v, err := parseCoords(tok[:2], "GridOffsets", "GridOffsets")
				if err != nil {
					return err
				}
				p.ResX, p.ResY = math.Abs(v[0]), math.Abs(v[1])
			}
		}
	}
	return nil
}
