package wcs

import (
	"context"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

func (h *Handler) getCoverage(ctx context.Context, x *Exchange) (*Response, error) {
	if x.Version.Is20() {
		return h.getCoverage20(ctx, x, x.Params.(*Params20))
	}
	return h.getCoverage1x(ctx, x, x.Params.(*LegacyParams))
}

// maxSize is the size ceiling for layer: its maxsize metadata, else the
// service setting.
func (h *Handler) maxSize(layer *utils.Layer) int {
	if v, ok := layer.Lookup("maxsize"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	if h.Config.ServiceConfig.MaxSize > 0 {
		return h.Config.ServiceConfig.MaxSize
	}
	return utils.DefaultMaxSize
}

func timePositions(layer *utils.Layer) []string {
	if len(layer.TimePosition) > 0 {
		return layer.TimePosition
	}
	v, ok := layer.Lookup("timeposition")
	if !ok {
		return nil
	}
	return splitList(v)
}

func timeItem(layer *utils.Layer) string {
	if layer.TimeItem != "" {
		return layer.TimeItem
	}
	return layer.Meta("timeitem")
}

// validateTime checks a 1.x TIME value against the time positions of the
// layer. Only single instants of tile-indexed layers can be served.
func validateTime(layer *utils.Layer, value string) error {
	if strings.Contains(value, ",") {
		return NewException(InvalidParameterValue, "time", "Temporal lists are not supported, only individual values.")
	}
	if strings.Contains(value, "/") {
		return NewException(InvalidParameterValue, "time", "Temporal ranges are not supported, only individual values.")
	}
	positions := timePositions(layer)
	if len(positions) == 0 {
		return NewException(InvalidParameterValue, "time", "The coverage does not support temporal subsetting.")
	}
	found := false
	for _, t := range positions {
		if strings.EqualFold(strings.TrimSpace(t), value) {
			found = true
			break
		}
	}
	if !found {
		return NewException(InvalidParameterValue, "time", "The coverage does not have a time position of %s.", value)
	}
	if layer.TileIndexTable == "" {
		return NewException(NoApplicableCode, "", "Underlying layer is not tiled, unable to do temporal subsetting.")
	}
	if timeItem(layer) == "" {
		return NewException(NoApplicableCode, "", "Not enough information available to filter.")
	}
	return nil
}

// sourcePaths lists the files to draw from: the tile index for indexed
// layers, else the files backing the coverage.
func (h *Handler) sourcePaths(ctx context.Context, layer *utils.Layer, cm *CoverageMetadata, w *ResolvedWindow, timeValue string) ([]string, error) {
	if layer.TileIndexTable == "" {
		if len(cm.Paths) == 0 {
			return nil, NewException(NoApplicableCode, "", "Layer %s has no data source.", layer.Name)
		}
		return cm.Paths, nil
	}
	if h.TileIndex == nil {
		return nil, NewException(NoApplicableCode, "", "No tile index is configured for layer %s.", layer.Name)
	}
	files, err := h.TileIndex.Files(ctx, layer, w.EdgeExtent(), w.CRS, timeValue)
	if err != nil {
		return nil, fmt.Errorf("tile index lookup for %s: %w", layer.Name, err)
	}
	if len(files) == 0 {
		return nil, NewException(NoApplicableCode, "", "No files of layer %s intersect the requested extent.", layer.Name)
	}
	return files, nil
}

func outputFileName(of *utils.OutputFormat) string {
	if of.FileName != "" {
		return of.FileName
	}
	ext := of.Extension
	if ext == "" {
		ext = "dat"
	}
	return "out." + ext
}

func (h *Handler) draw(ctx context.Context, req *raster.DrawRequest) (*raster.Image, error) {
	img, err := h.Source.Draw(ctx, req)
	if err != nil {
		return nil, NewException(NoApplicableCode, "", "Failed to extract the coverage: %v", err)
	}
	if img.MimeType == "" {
		img.MimeType = req.MimeType
	}
	if img.FileName == "" {
		img.FileName = req.FileName
	}
	return img, nil
}

func (h *Handler) getCoverage1x(ctx context.Context, x *Exchange, p *LegacyParams) (*Response, error) {
	if p.CRS == "" {
		return nil, NewException(MissingParameterValue, "crs", "Required parameter CRS was not supplied.")
	}
	if !p.HasBBox() && p.Time == "" {
		return nil, NewException(MissingParameterValue, "bbox/time", "One of BBOX or TIME is required")
	}
	if len(p.Coverages) == 0 {
		return nil, NewException(MissingParameterValue, "coverage", "Required parameter COVERAGE was not supplied.")
	}
	layer := x.findEnabled(p.Coverages[0])
	if layer == nil {
		return nil, NewException(InvalidParameterValue, "coverage",
			"COVERAGE=%s not found, not in supported layer list. A layer might be disabled for this request. Check wcs/ows_enable_request settings.",
			p.Coverages[0])
	}

	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	cm, err := res.Resolve(layer)
	if err != nil {
		return nil, err
	}
	layer = withDefaultBandsRangeSet(layer, cm.BandCount())

	g, err := newLegacyGrid(x.Version, p, cm)
	if err != nil {
		return nil, err
	}

	if p.Time != "" {
		if err := validateTime(layer, p.Time); err != nil {
			return nil, err
		}
	}

	var bands []int
	interpolation := p.Interpolation
	if x.Version.Is11() {
		b, interp, err := Bands11(layer, p, cm.BandCount())
		if err != nil {
			return nil, err
		}
		bands = b
		if interp != "" {
			interpolation = interp
		}
	} else {
		bands, err = Bands10(layer, p, cm.BandCount())
		if err != nil {
			return nil, err
		}
	}
	resample, ok := Resample(interpolation)
	if !ok {
		return nil, NewException(InvalidParameterValue, "interpolation",
			"INTERPOLATION=%s specifies an unsupported interpolation method.", interpolation)
	}

	w, err := g.resolve(cm, h.Projector, h.maxSize(layer))
	if err != nil {
		return nil, err
	}

	if p.Format == "" {
		return nil, NewException(MissingParameterValue, "format", "Missing required FORMAT parameter.")
	}
	of := FindFormat(h.Config.OutputFormats, p.Format)
	if of == nil {
		return nil, NewException(InvalidParameterValue, "format", "Unrecognized value for the FORMAT parameter.")
	}

	if bands == nil {
		bands = allBands(cm.BandCount())
	}
	x.log.Debug().Str("layer", layer.Name).Int("band_count", len(bands)).Str("bands", BandList(bands)).Msg("wcs bands selected")

	paths, err := h.sourcePaths(ctx, layer, cm, w, p.Time)
	if err != nil {
		return nil, err
	}
	x.SourceFiles = len(paths)

	fileName := outputFileName(of)
	img, err := h.draw(ctx, &raster.DrawRequest{
		Paths:           paths,
		SourceCRS:       cm.SRS,
		Window:          w.Window(),
		Bands:           bands,
		Resample:        resample,
		Driver:          of.Driver,
		MimeType:        of.MimeType,
		Extension:       of.Extension,
		FileName:        fileName,
		CreationOptions: append(append([]string{}, of.CreationOptions...), LayerCreationOptions(layer, of.Name, bands)...),
		NoData:          layer.Meta("rangeset_nullvalue"),
	})
	if err != nil {
		return nil, err
	}

	if x.Version.Is10() {
		resp := newResponse(img.MimeType, img.Data)
		if of.FileName != "" {
			resp.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", of.FileName))
		}
		return resp, nil
	}

	manifest, err := h.Renderer.Render(render.TplCoverages11, &render.Coverages11{
		Header:     h.header(x.Version, "", ""),
		Title:      layerTitle(layer),
		Identifier: layer.Name,
		FileRef:    "cid:coverage/" + img.FileName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render the coverage manifest: %w", err)
	}
	xmlHeader := make(textproto.MIMEHeader)
	xmlHeader.Set("Content-Type", contentTypeXML)
	xmlHeader["Content-ID"] = []string{"wcs.xml"}

	body, contentType, err := writeMultipart("mixed", []part{
		{header: xmlHeader, body: manifest},
		{header: coverageHeader(img.MimeType, img.FileName, false), body: img.Data},
	})
	if err != nil {
		return nil, err
	}
	return newResponse(contentType, body), nil
}

// outputGrid describes the extracted window for the GML part of a 2.0
// multipart response.
func (h *Handler) outputGrid(w *ResolvedWindow) (*gridDescription, error) {
	edge := w.EdgeExtent()
	srsURI := w.CRS
	if code, ok := raster.ParseEPSG(w.CRS); ok {
		srsURI = raster.EPSGURI(code)
	}
	geo, err := h.Projector.IsGeographic(w.CRS)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", w.CRS, err)
	}
	return &gridDescription{
		gt: raster.GeoTransform{
			edge.MinX, edge.Width() / float64(w.Width), 0,
			edge.MaxY, 0, -edge.Height() / float64(w.Height),
		},
		xsize:      w.Width,
		ysize:      w.Height,
		extent:     edge,
		srsURI:     srsURI,
		geographic: geo,
		swap:       raster.NeedsAxisSwap(srsURI),
	}, nil
}

func (h *Handler) getCoverage20(ctx context.Context, x *Exchange, p *Params20) (*Response, error) {
	switch len(p.Coverages) {
	case 0:
		return nil, NewException(MissingParameterValue, "coverage", "Missing COVERAGEID parameter.")
	case 1:
	default:
		return nil, NewException(TooManyParameterValues, "coverage", "Too many COVERAGEID parameters provided.")
	}
	layer := x.findEnabled(p.Coverages[0])
	if layer == nil {
		return nil, NewException(NoSuchCoverage, "coverage",
			"COVERAGE '%s' does not exist or is not enabled for GetCoverage.", p.Coverages[0])
	}

	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	cm, err := res.Resolve(layer)
	if err != nil {
		return nil, err
	}

	w, err := ResolveWindow20(p, cm, h.Projector, h.maxSize(layer))
	if err != nil {
		return nil, err
	}

	format := p.Format
	if format == "" {
		format = cm.NativeFormat
	}
	if format == "" {
		return nil, NewException(MissingParameterValue, "format",
			"Output format could not be determined. Use the FORMAT parameter.")
	}
	of := FindFormat(h.Config.OutputFormats, format)
	if of == nil {
		return nil, NewException(InvalidParameterValue, "format", "Unrecognized value '%s' for the FORMAT parameter.", format)
	}

	geotiff, err := GeoTIFFCreationOptions(of.MimeType, p.FormatOptions)
	if err != nil {
		return nil, err
	}

	bands, err := GetBands20(layer, p, cm)
	if err != nil {
		if e, ok := err.(*Exception); ok {
			return nil, e
		}
		return nil, NewException(InvalidParameterValue, "rangesubset", "%v", err)
	}
	if bands == nil {
		bands = allBands(cm.BandCount())
	}

	resample, ok := Resample(p.Interpolation)
	if !ok {
		return nil, NewException(InvalidParameterValue, "interpolation",
			"Interpolation method '%s' not supported.", p.Interpolation)
	}

	paths, err := h.sourcePaths(ctx, layer, cm, w, "")
	if err != nil {
		return nil, err
	}
	x.SourceFiles = len(paths)

	var nodata string
	if len(cm.NilValues) > 0 {
		nodata = cm.NilValues[0]
	}
	options := append(append([]string{}, of.CreationOptions...), geotiff...)
	options = append(options, LayerCreationOptions(layer, of.Name, bands)...)

	img, err := h.draw(ctx, &raster.DrawRequest{
		Paths:           paths,
		SourceCRS:       cm.SRS,
		Window:          w.Window(),
		Bands:           bands,
		Resample:        resample,
		Driver:          of.Driver,
		MimeType:        of.MimeType,
		Extension:       of.Extension,
		FileName:        outputFileName(of),
		CreationOptions: options,
		NoData:          nodata,
	})
	if err != nil {
		return nil, err
	}

	if !p.Multipart {
		resp := newResponse(img.MimeType, img.Data)
		for k, v := range coverageHeader(img.MimeType, img.FileName, true) {
			resp.Header[k] = v
		}
		return resp, nil
	}

	g, err := h.outputGrid(w)
	if err != nil {
		return nil, err
	}
	role := img.MimeType
	if strings.EqualFold(img.MimeType, "image/tiff") {
		role = profileGeoTIFF
	}
	gml, err := h.Renderer.Render(render.TplGMLCoverage20, &render.GMLCoverage20{
		Header:   h.header(x.Version, "", ""),
		Coverage: coverage20(layer, cm, g, bands),
		FileRef:  "cid:coverage/" + img.FileName,
		Role:     role,
		MimeType: img.MimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render the GML coverage: %w", err)
	}
	gmlHeader := make(textproto.MIMEHeader)
	gmlHeader.Set("Content-Type", "application/gml+xml; charset=UTF-8")

	body, contentType, err := writeMultipart("related", []part{
		{header: gmlHeader, body: gml},
		{header: coverageHeader(img.MimeType, img.FileName, true), body: img.Data},
	})
	if err != nil {
		return nil, err
	}
	return newResponse(contentType, body), nil
}
