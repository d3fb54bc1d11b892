package wcs

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/gskywcs/raster"
)

// legacyGrid is the mutable working copy of a 1.0/1.1 GetCoverage
// geometry. The parsed request itself is never modified.
type legacyGrid struct {
	version Version
	bbox    raster.Rect
	resX    float64
	resY    float64
	width   int
	height  int
	originX float64
	originY float64

	// bboxCRS is the system the bbox is expressed in, outCRS the one the
	// coverage is returned in.
	bboxCRS   string
	outCRS    string
	reproject bool
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func swapRect(r raster.Rect) raster.Rect {
	return raster.Rect{MinX: r.MinY, MinY: r.MinX, MaxX: r.MaxY, MaxY: r.MaxX}
}

// newLegacyGrid normalizes axis order and the coordinate systems of a
// 1.x request. imageCRS boxes and resolutions are converted to the
// native system of the coverage.
func newLegacyGrid(v Version, p *LegacyParams, cm *CoverageMetadata) (*legacyGrid, error) {
	g := &legacyGrid{
		version: v,
		bbox:    p.BBox,
		resX:    p.ResX,
		resY:    p.ResY,
		width:   p.Width,
		height:  p.Height,
		originX: p.OriginX,
		originY: p.OriginY,
		bboxCRS: p.CRS,
	}

	if v.Is11() && hasPrefixFold(p.CRS, "urn:") && raster.NeedsAxisSwap(p.CRS) {
		g.bbox = swapRect(g.bbox)
		g.resX, g.resY = g.resY, g.resX
		g.originX, g.originY = g.originY, g.originX
	}

	crs := p.ResponseCRS
	if crs == "" {
		crs = p.CRS
	}

	gt := cm.GeoTransform
	switch {
	case strings.EqualFold(crs, "imageCRS"):
		g.outCRS = cm.SRS
		if g.bbox.MaxX != g.bbox.MinX {
			o := g.bbox
			g.bbox.MinX, g.bbox.MaxY = gt.Apply(o.MinX, o.MinY)
			g.bbox.MaxX, g.bbox.MinY = gt.Apply(o.MaxX+1, o.MaxY+1)
			if v.Is11() {
				g.bbox.MinX += gt[1]/2 + gt[2]/2
				g.bbox.MaxX -= gt[1]/2 + gt[2]/2
				g.bbox.MaxY += gt[4]/2 + gt[5]/2
				g.bbox.MinY -= gt[4]/2 + gt[5]/2
			}
		}
		if g.resX != 0 {
			g.resX = gt[1] * g.resX
			g.resY = math.Abs(gt[5] * g.resY)
		}
	case hasPrefixFold(crs, "EPSG:"), hasPrefixFold(crs, "urn:ogc:def:crs:"):
		g.outCRS = crs
	default:
		return nil, NewException(InvalidParameterValue, "srs", "Unsupported SRS namespace (only EPSG currently supported).")
	}

	if strings.EqualFold(g.bboxCRS, "imageCRS") {
		g.bboxCRS = cm.SRS
	}
	g.reproject = p.ResponseCRS != "" && p.CRS != ""
	return g, nil
}

// resolve computes the output window: default box, grid origin,
// reprojection to the response system, resolution and size, the size
// ceiling and the overlap with the coverage.
func (g *legacyGrid) resolve(cm *CoverageMetadata, proj raster.Projector, maxSize int) (*ResolvedWindow, error) {
	gt := cm.GeoTransform

	if g.bbox.Width() < 1e-12 || g.bbox.Height() < 1e-12 {
		g.bbox = cm.Extent
		if g.version.Is11() {
			g.bbox.MinX += gt[1]/2 + gt[2]/2
			g.bbox.MaxX -= gt[1]/2 + gt[2]/2
			g.bbox.MaxY += gt[4]/2 + gt[5]/2
			g.bbox.MinY -= gt[4]/2 + gt[5]/2
		}
	}

	if g.originX != 0 || g.originY != 0 {
		g.bbox.MinX = g.originX
		g.bbox.MaxY = g.originY
	}

	if g.reproject {
		if err := proj.Validate(g.bboxCRS); err != nil {
			return nil, NewException(InvalidParameterValue, "crs", "Error loading CRS %s.", g.bboxCRS)
		}
		same, err := proj.Same(g.bboxCRS, g.outCRS)
		if err != nil {
			return nil, NewException(InvalidParameterValue, "response_crs", "Error loading CRS %s.", g.outCRS)
		}
		if !same {
			r, err := proj.ProjectRect(g.bboxCRS, g.outCRS, g.bbox)
			if err != nil {
				return nil, fmt.Errorf("failed to project the bbox to %s: %w", g.outCRS, err)
			}
			g.bbox = r
		}
	}

	if g.version.Is11() && g.resX == 0 && g.resY == 0 {
		g.resX = gt[1]
		g.resY = math.Abs(gt[5])
	}

	if (g.resX == 0 || g.resY == 0) && g.width != 0 && g.height != 0 {
		g.resX = g.bbox.Width() / float64(g.width)
		g.resY = g.bbox.Height() / float64(g.height)
	}

	if (g.width == 0 || g.height == 0) && g.resX != 0 && g.resY != 0 {
		if g.version.Is10() {
			g.width = int(g.bbox.Width()/g.resX + 0.5)
			g.height = int(g.bbox.Height()/g.resY + 0.5)
		} else {
			g.width = int(g.bbox.Width()/g.resX + 1.000001)
			g.height = int(g.bbox.Height()/g.resY + 1.000001)
			g.bbox.MaxX = g.bbox.MinX + float64(g.width-1)*g.resX
			g.bbox.MinY = g.bbox.MaxY - float64(g.height-1)*g.resY
		}
	}

	if (g.width == 0 || g.height == 0) && (g.resX == 0 || g.resY == 0) {
		return nil, NewException(MissingParameterValue, "width/height/resx/resy",
			"A non-zero RESX/RESY or WIDTH/HEIGHT is required but neither was provided.")
	}
	return g.finish(cm, proj, maxSize)
}

func (g *legacyGrid) finish(cm *CoverageMetadata, proj raster.Projector, maxSize int) (*ResolvedWindow, error) {
	if g.width < 1 || g.height < 1 || g.resX <= 0 || g.resY <= 0 {
		return nil, NewException(InvalidParameterValue, "width/height",
			"Raster size out of range, width and height of resulting coverage must be at least 1, got %dx%d.", g.width, g.height)
	}
	if g.width > maxSize || g.height > maxSize {
		return nil, NewException(InvalidParameterValue, "width/height",
			"Raster size out of range, width and height of resulting coverage must be no more than MAXSIZE=%d.", maxSize)
	}

	if g.version.Is10() {
		g.bbox.MinX += g.resX * 0.5
		g.bbox.MinY += g.resY * 0.5
		g.bbox.MaxX -= g.resX * 0.5
		g.bbox.MaxY -= g.resY * 0.5
	}

	req := g.bbox
	same, err := proj.Same(g.outCRS, cm.SRS)
	if err != nil {
		return nil, NewException(InvalidParameterValue, "crs", "Error loading CRS %s.", g.outCRS)
	}
	if !same {
		r, err := proj.ProjectRect(g.outCRS, cm.SRS, req)
		if err != nil {
			return nil, fmt.Errorf("failed to project the request extent to %s: %w", cm.SRS, err)
		}
		req = r
	}
	cov := cm.Extent
	if !req.Overlaps(cov) {
		return nil, NewException(NoApplicableCode, "bbox",
			"Requested BBOX (%.15g,%.15g,%.15g,%.15g) is outside requested coverage BBOX (%.15g,%.15g,%.15g,%.15g)",
			req.MinX, req.MinY, req.MaxX, req.MaxY, cov.MinX, cov.MinY, cov.MaxX, cov.MaxY)
	}

	return &ResolvedWindow{
		Extent:   g.bbox,
		Width:    g.width,
		Height:   g.height,
		ResX:     g.resX,
		ResY:     g.resY,
		CellSize: g.resX,
		CRS:      g.outCRS,
	}, nil
}
