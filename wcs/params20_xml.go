package wcs

import (
	"fmt"
	"strings"
)

const geotiffNamespace = "http://www.opengis.net/gmlcov/geotiff/1.0"

func unknownNode(n *Node) error {
	return fmt.Errorf("Unknown XML element '%s'.", n.Name())
}

func assertNodeName(n *Node, name string) error {
	if !n.Is(name) {
		return fmt.Errorf("XML element '%s' is not the expected '%s'.", n.Name(), name)
	}
	return nil
}

// ParseXML20 reads a WCS 2.0 POST request. The operation is the name of
// the root element; service and version come from its attributes.
func ParseXML20(root *Node) (*Params20, error) {
	p := &Params20{}
	p.Request = root.Name()
	p.Service, _ = root.Attr("service")
	p.Version, _ = root.Attr("version")

	switch {
	case strings.EqualFold(p.Request, GetCapabilities):
		return p, p.parseXMLGetCapabilities(root)
	case !strings.HasPrefix(p.Version, "2.0"):
		return p, nil
	case strings.EqualFold(p.Request, DescribeCoverage):
		return p, p.parseXMLDescribeCoverage(root)
	case strings.EqualFold(p.Request, GetCoverage):
		return p, p.parseXMLGetCoverage(root)
	}
	return p, nil
}

func (p *Params20) parseXMLGetCapabilities(root *Node) error {
	for _, child := range root.Children {
		switch {
		case child.Is("AcceptVersions"):
			for _, v := range child.Children {
				if err := assertNodeName(v, "Version"); err != nil {
					return err
				}
				p.AcceptVersions = append(p.AcceptVersions, v.Text())
			}
		case child.Is("Sections"):
			for _, s := range child.Children {
				if err := assertNodeName(s, "Section"); err != nil {
					return err
				}
				p.Sections = append(p.Sections, s.Text())
			}
		case child.Is("UpdateSequence"):
			p.UpdateSequence = child.Text()
		case child.Is("AcceptFormats"):
		case child.Is("AcceptLanguages"):
			for _, l := range child.Children {
				if err := assertNodeName(l, "Language"); err != nil {
					return err
				}
				p.AcceptLanguages = append(p.AcceptLanguages, l.Text())
			}
		default:
			return unknownNode(child)
		}
	}
	return nil
}

func (p *Params20) parseXMLDescribeCoverage(root *Node) error {
	for _, child := range root.Children {
		if err := assertNodeName(child, "CoverageID"); err != nil {
			return err
		}
		id := child.Text()
		if id == "" {
			return fmt.Errorf("CoverageID could not be parsed.")
		}
		p.Coverages = append(p.Coverages, id)
	}
	return nil
}

func (p *Params20) parseXMLGetCoverage(root *Node) error {
	for _, child := range root.Children {
		var err error
		switch {
		case child.Is("CoverageID"):
			id := child.Text()
			if id == "" {
				return fmt.Errorf("CoverageID could not be parsed.")
			}
			p.Coverages = append(p.Coverages, id)
		case child.Is("Format"):
			p.Format = child.Text()
		case child.Is("Mediatype"):
			err = p.setMediaType(child.Text())
		case child.Is("DimensionTrim"):
			err = p.parseXMLDimensionTrim(child)
		case child.Is("DimensionSlice"):
			err = fmt.Errorf("Operation '%s' is not supported.", child.Name())
		case child.Is("Size"):
			err = p.parseXMLSize(child)
		case child.Is("Resolution"):
			err = p.parseXMLResolution(child)
		case child.Is("Interpolation"):
			p.Interpolation = child.Text()
		case child.Is("OutputCRS"):
			p.OutputCRS = child.Text()
		case child.Is("rangeSubset"):
			for _, band := range child.Children {
				if err := assertNodeName(band, "band"); err != nil {
					return err
				}
				p.RangeSubset = append(p.RangeSubset, band.Text())
			}
		case child.Is("Extension"):
			err = p.parseXMLExtension(child)
		default:
			err = unknownNode(child)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Params20) parseXMLDimensionTrim(n *Node) error {
	var axis, crs, min, max string
	axisSet := false
	for _, c := range n.Children {
		switch {
		case c.Is("Dimension"):
			if axisSet {
				return fmt.Errorf("Parameter 'Dimension' is already set.")
			}
			axisSet = true
			axis = c.Text()
			crs, _ = c.Attr("crs")
		case c.Is("trimLow"):
			min = c.Text()
		case c.Is("trimHigh"):
			max = c.Text()
		default:
			return unknownNode(c)
		}
	}
	if min == "" {
		min = "*"
	}
	if max == "" {
		max = "*"
	}
	subset, err := newAxisSubset(axis, crs, min, max)
	if err != nil {
		return NewException(InvalidSubsetting, "subset", "%v", err)
	}
	a := p.axis(subset.Axis)
	a.Subset = subset
	return nil
}

func (p *Params20) parseXMLSize(n *Node) error {
	name, ok := n.Attr("dimension")
	if !ok {
		return fmt.Errorf("Attribute 'dimension' is missing in element 'Size'.")
	}
	a := p.axis(name)
	size, err := parseInteger(n.Text())
	if err != nil || size < 1 {
		return fmt.Errorf("Value of element 'Size' could not be parsed to a valid integer.")
	}
	a.Size = size
	return nil
}

func (p *Params20) parseXMLResolution(n *Node) error {
	name, ok := n.Attr("dimension")
	if !ok {
		return fmt.Errorf("Attribute 'dimension' is missing in element 'Resolution'.")
	}
	a := p.axis(name)
	a.ResolutionUOM, _ = n.Attr("uom")
	res, err := parseDouble(n.Text())
	if err != nil || res <= 0 {
		return fmt.Errorf("Value of element 'Resolution' could not be parsed to a valid value.")
	}
	a.Resolution = res
	a.HasResolution = true
	return nil
}

func (p *Params20) parseXMLExtension(ext *Node) error {
	for _, n := range ext.Children {
		var err error
		switch {
		case n.Is("Scaling"):
			err = p.parseXMLScaling(n)
		case n.Is("RangeSubset"):
			err = p.parseXMLRangeSubset(n)
		case n.Is("subsettingCrs"):
			p.SubsetCRS = n.Text()
		case n.Is("outputCrs"):
			p.OutputCRS = n.Text()
		case n.Is("Interpolation"):
			g := n.Child("globalInterpolation")
			if g == nil {
				return fmt.Errorf("Missing 'globalInterpolation' node.")
			}
			p.Interpolation = g.Text()
		case n.Is("parameters") && n.Space() == geotiffNamespace:
			for _, param := range n.Children {
				p.FormatOptions = append(p.FormatOptions, "geotiff:"+param.Name()+"="+param.Text())
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// scalingAxis resolves the axis element of a scaling entry.
func (p *Params20) scalingAxis(entry *Node) (*Axis20, error) {
	axisNode := entry.Child("axis")
	if axisNode == nil {
		return nil, fmt.Errorf("Missing axis node")
	}
	return p.axis(axisNode.Text()), nil
}

func (p *Params20) parseXMLScaling(n *Node) error {
	if len(n.Children) == 0 {
		return fmt.Errorf("Missing scaling method.")
	}
	method := n.Children[0]
	switch {
	case method.Is("ScaleByFactor"):
		if len(method.Children) == 0 || !method.Children[0].Is("scaleFactor") {
			return fmt.Errorf("Missing 'scaleFactor' node.")
		}
		content := method.Children[0].Text()
		scale, err := parseDouble(content)
		if err != nil || scale < 0 {
			return fmt.Errorf("Invalid scaleFactor '%s'.", content)
		}
		p.Scale = scale

	case method.Is("ScaleAxesByFactor"):
		for _, entry := range method.Children {
			if !entry.Is("ScaleAxis") {
				return fmt.Errorf("Invalid ScaleAxesByFactor.")
			}
			a, err := p.scalingAxis(entry)
			if err != nil {
				return err
			}
			if a.Scale != 0 {
				return fmt.Errorf("scaleFactor was already set for axis '%s'.", a.Name)
			}
			f := entry.Child("scaleFactor")
			if f == nil {
				return fmt.Errorf("Missing scaleFactor node")
			}
			scale, err := parseDouble(f.Text())
			if err != nil || scale < 0 {
				return fmt.Errorf("Invalid scaleFactor '%s'.", f.Text())
			}
			a.Scale = scale
		}

	case method.Is("ScaleToSize"):
		for _, entry := range method.Children {
			if !entry.Is("TargetAxisSize") {
				return fmt.Errorf("Invalid ScaleToSize.")
			}
			a, err := p.scalingAxis(entry)
			if err != nil {
				return err
			}
			if a.Size != 0 {
				return fmt.Errorf("targetSize was already set for axis '%s'.", a.Name)
			}
			t := entry.Child("targetSize")
			if t == nil {
				return fmt.Errorf("Missing targetSize node")
			}
			size, err := parseInteger(t.Text())
			if err != nil || size <= 0 {
				return fmt.Errorf("Invalid targetSize '%s'.", t.Text())
			}
			a.Size = size
		}

	case method.Is("ScaleToExtent"):
		for _, entry := range method.Children {
			if !entry.Is("TargetAxisExtent") {
				return fmt.Errorf("Invalid ScaleToExtent.")
			}
			a, err := p.scalingAxis(entry)
			if err != nil {
				return err
			}
			if a.Size != 0 {
				return fmt.Errorf("targetSize was already set for axis '%s'.", a.Name)
			}
			lowNode, highNode := entry.Child("low"), entry.Child("high")
			if lowNode == nil {
				return fmt.Errorf("Missing low node")
			}
			if highNode == nil {
				return fmt.Errorf("Missing high node")
			}
			low, err := parseInteger(lowNode.Text())
			if err != nil {
				return fmt.Errorf("Invalid low value '%s'.", lowNode.Text())
			}
			high, err := parseInteger(highNode.Text())
			if err != nil {
				return fmt.Errorf("Invalid high value '%s'.", highNode.Text())
			}
			if high <= low {
				return fmt.Errorf("Invalid extent, high is lower than low.")
			}
			a.Size = high - low
		}
	}
	return nil
}

func (p *Params20) parseXMLRangeSubset(n *Node) error {
	for _, item := range n.Children {
		if err := assertNodeName(item, "RangeItem"); err != nil {
			return err
		}
		if len(item.Children) == 0 {
			return fmt.Errorf("Missing RangeComponent or RangeInterval.")
		}
		c := item.Children[0]
		switch {
		case c.Is("RangeComponent"):
			p.RangeSubset = append(p.RangeSubset, c.Text())
		case c.Is("RangeInterval"):
			start, end := c.Child("startComponent"), c.Child("endComponent")
			if start == nil || end == nil {
				return fmt.Errorf("Wrong RangeInterval.")
			}
			p.RangeSubset = append(p.RangeSubset, start.Text()+":"+end.Text())
		}
	}
	return nil
}
