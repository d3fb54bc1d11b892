package wcs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

const (
	imageCRSURN = "urn:ogc:def:crs:OGC::imageCRS"
	defaultUOM  = "W.m-2.Sr-1"
)

func (h *Handler) describeCoverage(ctx context.Context, x *Exchange) (*Response, error) {
	switch {
	case x.Version.Is20():
		return h.describeCoverage20(x, x.Params.(*Params20))
	case x.Version.Is11():
		return h.describeCoverage11(x, x.Params.(*LegacyParams))
	}
	return h.describeCoverage10(x, x.Params.(*LegacyParams))
}

// requestedLayers resolves the coverage names of a 1.x request. Entries
// may hold comma lists. No name selects every enabled layer.
func (x *Exchange) requestedLayers(names []string) ([]*utils.Layer, error) {
	if len(names) == 0 {
		return x.Layers, nil
	}
	var layers []*utils.Layer
	for _, entry := range names {
		for _, name := range splitList(entry) {
			layer := x.findEnabled(name)
			if layer == nil {
				return nil, NewException(CoverageNotDefined, "coverage",
					"COVERAGE %s cannot be opened / does not exist. A layer might be disabled for this request. Check wcs/ows_enable_request settings.", name)
			}
			layers = append(layers, layer)
		}
	}
	return layers, nil
}

func (h *Handler) describeCoverage10(x *Exchange, p *LegacyParams) (*Response, error) {
	layers, err := x.requestedLayers(p.Coverages)
	if err != nil {
		return nil, err
	}
	doc := &render.Describe10{Header: h.header(x.Version, h.Config.ServiceConfig.UpdateSequence, "")}
	doc.Header.Schema = "describeCoverage.xsd"

	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	for _, layer := range layers {
		cm, err := res.Resolve(layer)
		if err != nil {
			return nil, err
		}
		doc.Coverages = append(doc.Coverages, h.coverageOffering10(withDefaultBandsRangeSet(layer, cm.BandCount()), cm))
	}
	return h.renderDocument(render.TplDescribe10, doc)
}

// axisDescription10 reads the <axis>_* rangeset metadata of one axis.
func axisDescription10(layer *utils.Layer, axis string) render.AxisDescription {
	meta := func(item string) string { return layer.Meta(axis + "_" + item) }
	a := render.AxisDescription{
		Name:           axis,
		Label:          meta("label"),
		Description:    meta("description"),
		Semantic:       meta("semantic"),
		RefSys:         meta("refsys"),
		RefSysLabel:    meta("refsyslabel"),
		ValuesSemantic: meta("values_semantic"),
		ValuesType:     meta("values_type"),
	}
	if a.Label == "" {
		a.Label = axis
	}
	if v := meta("values"); v != "" {
		for _, tok := range strings.Split(v, ",") {
			a.Values = append(a.Values, strings.TrimSpace(tok))
		}
	}
	if v := meta("interval"); v != "" {
		tok := strings.Split(v, "/")
		if len(tok) >= 2 {
			a.HasInterval = true
			a.IntervalMin, a.IntervalMax = tok[0], tok[1]
			if len(tok) > 2 {
				a.IntervalRes = tok[2]
			}
		}
	}
	return a
}

func (h *Handler) coverageOffering10(layer *utils.Layer, cm *CoverageMetadata) render.CoverageOffering10 {
	gt := cm.GeoTransform
	c := render.CoverageOffering10{
		Name:          layer.Name,
		Title:         layerTitle(layer),
		Abstract:      layer.Abstract,
		Keywords:      layer.Keywords,
		MetadataLinks: layerMetadataLinks(layer),
		LonLatLower:   formatPair(cm.LLExtent.MinX, cm.LLExtent.MinY),
		LonLatUpper:   formatPair(cm.LLExtent.MaxX, cm.LLExtent.MaxY),
		TimePositions: layer.TimePosition,
		NativeSRS:     cm.SRS,
		EnvelopeLower: formatPair(cm.Extent.MinX, cm.Extent.MinY),
		EnvelopeUpper: formatPair(cm.Extent.MaxX, cm.Extent.MaxY),
		GridHigh:      fmt.Sprintf("%d %d", cm.XSize-1, cm.YSize-1),
		Origin:        formatPair(gt[0], gt[3]),
		OffsetX:       formatPair(gt[1], gt[2]),
		OffsetY:       formatPair(gt[4], gt[5]),
		RangeSetName:  layer.Meta("rangeset_name"),
		RangeSetLabel: layer.Meta("rangeset_label"),
		NativeCRSs:    []string{cm.SRS},
		NativeFormat:  cm.NativeFormat,
		Formats:       layerFormatNames(h.Config, layer),
	}
	c.RangeSetDescription = layer.Meta("rangeset_description")
	if c.RangeSetName == "" {
		c.RangeSetName = layer.Name
	}
	if c.RangeSetLabel == "" {
		c.RangeSetLabel = c.RangeSetName
	}
	for _, axis := range strings.Split(layer.Meta("rangeset_axes"), ",") {
		if axis = strings.TrimSpace(axis); axis != "" {
			c.Axes = append(c.Axes, axisDescription10(layer, axis))
		}
	}
	c.NullValues = strings.Fields(layer.Meta("rangeset_nullvalue"))
	c.RequestResponseCRSs = cm.SRSList
	return c
}

func (h *Handler) describeCoverage11(x *Exchange, p *LegacyParams) (*Response, error) {
	layers, err := x.requestedLayers(p.Coverages)
	if err != nil {
		return nil, err
	}
	doc := &render.Describe11{Header: h.header(x.Version, "", "")}

	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	for _, layer := range layers {
		cm, err := res.Resolve(layer)
		if err != nil {
			return nil, err
		}
		doc.Coverages = append(doc.Coverages, h.coverageDescription11(withDefaultBandsRangeSet(layer, cm.BandCount()), cm))
	}
	return h.renderDocument(render.TplDescribe11, doc)
}

// pixelCenterExtent insets an edge extent by half a cell on each side.
func pixelCenterExtent(cm *CoverageMetadata) raster.Rect {
	gt := cm.GeoTransform
	r := cm.Extent
	r.MinX += gt[1]/2 + gt[2]/2
	r.MaxX -= gt[1]/2 + gt[2]/2
	r.MaxY += gt[4]/2 + gt[5]/2
	r.MinY -= gt[4]/2 + gt[5]/2
	return r
}

func (h *Handler) coverageDescription11(layer *utils.Layer, cm *CoverageMetadata) render.CoverageDescription11 {
	gt := cm.GeoTransform
	swap := raster.NeedsAxisSwap(cm.SRSURN)

	inner := pixelCenterExtent(cm)
	lower := formatPair(inner.MinX, inner.MinY)
	upper := formatPair(inner.MaxX, inner.MaxY)
	originX, originY := gt[0]+gt[1]/2+gt[2]/2, gt[3]+gt[4]/2+gt[5]/2
	origin := formatPair(originX, originY)
	offsets := fmt.Sprintf("%.15g %.15g %.15g %.15g", gt[1], gt[2], gt[4], gt[5])
	if swap {
		lower = formatPair(inner.MinY, inner.MinX)
		upper = formatPair(inner.MaxY, inner.MaxX)
		origin = formatPair(originY, originX)
		offsets = fmt.Sprintf("%.15g %.15g %.15g %.15g", gt[5], gt[4], gt[2], gt[1])
	}

	c := render.CoverageDescription11{
		Name:          layer.Name,
		Title:         layerTitle(layer),
		Abstract:      layer.Abstract,
		Keywords:      layer.Keywords,
		MetadataLinks: layerMetadataLinks(layer),
		BoundingBoxes: []render.BoundingBox{
			{CRS: imageCRSURN, Lower: "0 0", Upper: fmt.Sprintf("%d %d", cm.XSize-1, cm.YSize-1)},
			{CRS: cm.SRSURN, Lower: lower, Upper: upper},
		},
		LonLatLower:      formatPair(cm.LLExtent.MinX, cm.LLExtent.MinY),
		LonLatUpper:      formatPair(cm.LLExtent.MaxX, cm.LLExtent.MaxY),
		GridBaseCRS:      cm.SRSURN,
		GridOrigin:       origin,
		GridOffsets:      offsets,
		TimePositions:    layer.TimePosition,
		FieldTitle:       layer.Meta("rangeset_label"),
		FieldDescription: layer.Meta("rangeset_description"),
		FieldIdentifier:  layer.Meta("rangeset_name"),
		NullValues:       strings.Fields(layer.Meta("rangeset_nullvalue")),
		AxisIdentifier:   layer.Meta("bands_name"),
		SupportedCRS:     append(srsURNs(cm), imageCRSURN),
		Formats:          LayerFormats(h.Config, layer),
	}
	if c.FieldIdentifier == "" {
		c.FieldIdentifier = "raster"
	}
	if c.FieldTitle == "" {
		c.FieldTitle = c.FieldIdentifier
	}
	if c.AxisIdentifier == "" {
		c.AxisIdentifier = "bands"
	}
	for i := 1; i <= cm.BandCount(); i++ {
		c.AxisKeys = append(c.AxisKeys, strconv.Itoa(i))
	}
	return c
}

func (h *Handler) describeCoverage20(x *Exchange, p *Params20) (*Response, error) {
	if len(p.Coverages) == 0 {
		return nil, NewException(MissingParameterValue, "coverage", "Missing COVERAGEID parameter.")
	}
	var layers []*utils.Layer
	for _, id := range p.Coverages {
		layer := x.findEnabled(id)
		if layer == nil {
			return nil, NewException(NoSuchCoverage, "coverage", "COVERAGE '%s' does not exist or is not enabled for DescribeCoverage.", id)
		}
		layers = append(layers, layer)
	}

	doc := &render.Describe20{Header: h.header(x.Version, "", "")}
	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	for _, layer := range layers {
		cm, err := res.Resolve(layer)
		if err != nil {
			return nil, err
		}
		g, err := h.nativeGrid(cm)
		if err != nil {
			return nil, err
		}
		doc.Coverages = append(doc.Coverages, coverage20(layer, cm, g, nil))
	}
	return h.renderDocument(render.TplDescribe20, doc)
}

// gridDescription is the geometry a 2.0 GML coverage is described with.
type gridDescription struct {
	gt         raster.GeoTransform
	xsize      int
	ysize      int
	extent     raster.Rect
	srsURI     string
	geographic bool
	swap       bool
}

func (h *Handler) nativeGrid(cm *CoverageMetadata) (*gridDescription, error) {
	geo, err := h.Projector.IsGeographic(cm.SRS)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", cm.SRS, err)
	}
	return &gridDescription{
		gt:         cm.GeoTransform,
		xsize:      cm.XSize,
		ysize:      cm.YSize,
		extent:     cm.Extent,
		srsURI:     cm.SRSURI,
		geographic: geo,
		swap:       raster.NeedsAxisSwap(cm.SRSURI),
	}, nil
}

func (g *gridDescription) pair(x, y float64, format string) string {
	if g.swap {
		x, y = y, x
	}
	return fmt.Sprintf(format+" "+format, x, y)
}

// coverage20 builds the GML model of a coverage. bands filters the range
// type; nil keeps every band.
func coverage20(layer *utils.Layer, cm *CoverageMetadata, g *gridDescription, bands []int) render.Coverage20 {
	axisLabels, uomLabels := "x y", "m m"
	if g.geographic {
		axisLabels, uomLabels = "long lat", "deg deg"
	}
	envelopeLabels := axisLabels
	if g.swap {
		f := strings.Fields(axisLabels)
		envelopeLabels = f[1] + " " + f[0]
	}

	gt := g.gt
	c := render.Coverage20{
		ID: layer.Name,
		BoundedBy: render.Envelope{
			SRSName:    g.srsURI,
			AxisLabels: envelopeLabels,
			UOMLabels:  uomLabels,
			Lower:      g.pair(g.extent.MinX, g.extent.MinY, "%.15g"),
			Upper:      g.pair(g.extent.MaxX, g.extent.MaxY, "%.15g"),
		},
		Domain: render.Grid{
			ID:         layer.Name + "_grid",
			High:       fmt.Sprintf("%d %d", g.xsize-1, g.ysize-1),
			AxisLabels: axisLabels,
			SRSName:    g.srsURI,
			OriginID:   layer.Name + "_origin",
			Origin:     g.pair(gt[0]+gt[1]/2+gt[2]/2, gt[3]+gt[4]/2+gt[5]/2, "%f"),
			OffsetX:    g.pair(gt[1], 0, "%f"),
			OffsetY:    g.pair(0, gt[5], "%f"),
		},
		NativeFormat: cm.NativeFormat,
	}

	var nils []render.NilValue
	for i, v := range cm.NilValues {
		nv := render.NilValue{Value: v}
		if i < len(cm.NilReasons) {
			nv.Reason = cm.NilReasons[i]
		}
		nils = append(nils, nv)
	}

	if bands == nil {
		bands = allBands(cm.BandCount())
	}
	for _, b := range bands {
		if b < 1 || b > cm.BandCount() {
			continue
		}
		band := cm.Bands[b-1]
		f := render.Field{
			Name:               band.Name,
			Definition:         band.Definition,
			Description:        band.Description,
			UOM:                band.UOM,
			Interval:           fmt.Sprintf("%.5g %.5g", band.IntervalMin, band.IntervalMax),
			SignificantFigures: strconv.Itoa(band.SignificantFigures),
			NilValues:          nils,
		}
		if f.Name == "" {
			f.Name = "band"
		}
		if f.UOM == "" {
			f.UOM = defaultUOM
		}
		c.Range = append(c.Range, f)
	}
	return c
}
