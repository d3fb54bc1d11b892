package wcs

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/gskywcs/raster"
)

// ResolvedWindow is the final raster window of a GetCoverage request.
// Extent holds the centres of the corner pixels.
type ResolvedWindow struct {
	Extent   raster.Rect
	Width    int
	Height   int
	ResX     float64
	ResY     float64
	CellSize float64
	CRS      string
}

// EdgeExtent is the window extent measured at the outer pixel edges.
func (w *ResolvedWindow) EdgeExtent() raster.Rect {
	cx, cy := w.ResX, w.ResY
	if w.Width > 1 {
		cx = w.Extent.Width() / float64(w.Width-1)
	}
	if w.Height > 1 {
		cy = w.Extent.Height() / float64(w.Height-1)
	}
	return raster.Rect{
		MinX: w.Extent.MinX - cx/2,
		MinY: w.Extent.MinY - cy/2,
		MaxX: w.Extent.MaxX + cx/2,
		MaxY: w.Extent.MaxY + cy/2,
	}
}

// Window converts the resolved window into the form the raster layer
// draws.
func (w *ResolvedWindow) Window() raster.Window {
	return raster.Window{Extent: w.EdgeExtent(), Width: w.Width, Height: w.Height, CRS: w.CRS}
}

// nint rounds half away from zero.
func nint(x float64) int {
	if x >= 0 {
		return int(math.Floor(x + 0.5))
	}
	return int(math.Ceil(x - 0.5))
}

// ValidateAndFindAxes20 maps every named axis of the request to its
// spatial role. Unknown names and two names for one role are errors.
func ValidateAndFindAxes20(p *Params20) ([2]*Axis20, error) {
	var axes [2]*Axis20
	for _, a := range p.Axes {
		var idx int
		switch LookupAxis(a.Name) {
		case AxisX:
			idx = 0
		case AxisY:
			idx = 1
		default:
			return axes, fmt.Errorf("Invalid subset axis '%s'.", a.Name)
		}
		if axes[idx] != nil {
			return axes, fmt.Errorf("The axis with the name '%s' corresponds to the same axis as the subset with the name '%s'.",
				a.Name, axes[idx].Name)
		}
		axes[idx] = a
	}
	return axes, nil
}

// grid20 is the request grid after the per axis settings are merged.
// Unbounded bbox sides are infinite.
type grid20 struct {
	BBox            raster.Rect
	Width           int
	Height          int
	ResX            float64
	ResY            float64
	HasResX         bool
	HasResY         bool
	ScaleX          float64
	ScaleY          float64
	ResolutionUnits string
	SubsetCRS       string
}

func unboundedRect() raster.Rect {
	return raster.Rect{MinX: math.Inf(-1), MinY: math.Inf(-1), MaxX: math.Inf(1), MaxY: math.Inf(1)}
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// Finalize20 merges the subsets and scaling settings of the X and Y axes
// into one grid description. The request itself is left untouched.
func Finalize20(p *Params20, axes [2]*Axis20) (*grid20, error) {
	g := &grid20{BBox: unboundedRect()}
	globalScale := p.Scale != 0
	var crs string

	if x := axes[0]; x != nil {
		if s := x.Subset; s != nil {
			if s.Min.Kind != SubsetUnbounded {
				g.BBox.MinX = s.Min.Scalar
			}
			if s.Max.Kind != SubsetUnbounded {
				g.BBox.MaxX = s.Max.Scalar
			}
			crs = s.CRS
		}
		g.Width = x.Size
		g.ResX, g.HasResX = x.Resolution, x.HasResolution
		g.ScaleX = x.Scale
		g.ResolutionUnits = x.ResolutionUOM
		if countSet(globalScale, x.Scale != 0, x.Size != 0, x.HasResolution) > 1 {
			return nil, NewException(TooManyParameterValues, "extent",
				"Axis '%s' defines scale, size and/or resolution multiple times.", x.Name)
		}
	}

	if y := axes[1]; y != nil {
		if s := y.Subset; s != nil {
			if s.Min.Kind != SubsetUnbounded {
				g.BBox.MinY = s.Min.Scalar
			}
			if s.Max.Kind != SubsetUnbounded {
				g.BBox.MaxY = s.Max.Scalar
			}
			if axes[0] != nil && axes[0].Subset != nil {
				if !strings.EqualFold(crs, s.CRS) {
					return nil, NewException(InvalidParameterValue, "extent",
						"CRS for axis %s and axis %s are not the same.", axes[0].Name, y.Name)
				}
			} else {
				crs = s.CRS
			}
		}
		g.Height = y.Size
		g.ResY, g.HasResY = y.Resolution, y.HasResolution
		g.ScaleY = y.Scale
		switch {
		case g.ResolutionUnits == "" && y.ResolutionUOM != "":
			g.ResolutionUnits = y.ResolutionUOM
		case g.ResolutionUnits != "" && y.ResolutionUOM != "" && !strings.EqualFold(g.ResolutionUnits, y.ResolutionUOM):
			xName := ""
			if axes[0] != nil {
				xName = axes[0].Name
			}
			return nil, NewException(InvalidParameterValue, "extent",
				"The units of measure of the resolution for axis %s and axis %s are not the same.", xName, y.Name)
		}
		if countSet(globalScale, y.Scale != 0, y.Size != 0, y.HasResolution) > 1 {
			return nil, NewException(TooManyParameterValues, "extent",
				"Axis '%s' defines scale, size and/or resolution multiple times.", y.Name)
		}
	}

	if globalScale {
		g.ScaleX, g.ScaleY = p.Scale, p.Scale
	}

	g.SubsetCRS = p.SubsetCRS
	if crs != "" {
		if p.SubsetCRS != "" && !strings.EqualFold(crs, p.SubsetCRS) {
			return nil, NewException(InvalidParameterValue, "extent",
				"SubsetCRS does not match the CRS of the axes: '%s' != '%s'", p.SubsetCRS, crs)
		}
		g.SubsetCRS = crs
	}
	return g, nil
}

func isWorldExtent(r raster.Rect) bool {
	return math.Abs(r.MinX+180) < 1e-5 && math.Abs(r.MinY+90) < 1e-5 &&
		math.Abs(r.MaxX-180) < 1e-5 && math.Abs(r.MaxY-90) < 1e-5
}

// imageToGeo converts a pixel/line box into georeferenced coordinates,
// the far corner covering the whole last pixel. Unbounded sides take the
// coverage limits.
func imageToGeo(b raster.Rect, cm *CoverageMetadata) raster.Rect {
	if math.IsInf(b.MinX, 0) {
		b.MinX = 0
	}
	if math.IsInf(b.MaxX, 0) {
		b.MaxX = float64(cm.XSize - 1)
	}
	if math.IsInf(b.MinY, 0) {
		b.MinY = 0
	}
	if math.IsInf(b.MaxY, 0) {
		b.MaxY = float64(cm.YSize - 1)
	}
	gt := cm.GeoTransform
	x1, y2 := gt.Apply(b.MinX, b.MinY)
	x2, y1 := gt.Apply(b.MaxX+1, b.MaxY+1)
	return raster.Rect{
		MinX: math.Min(x1, x2),
		MaxX: math.Max(x1, x2),
		MinY: math.Min(y1, y2),
		MaxY: math.Max(y1, y2),
	}
}

// ResolveWindow20 turns the subsets and scaling of a 2.0 GetCoverage into
// the final window.
func ResolveWindow20(p *Params20, cm *CoverageMetadata, proj raster.Projector, maxSize int) (*ResolvedWindow, error) {
	for _, a := range p.Axes {
		if a.Subset == nil {
			continue
		}
		if a.Subset.Kind() == SubsetTime {
			return nil, NewException(InvalidSubsetting, "subset", "Time values for subsets are not supported. ")
		}
		if !a.Subset.Trim {
			return nil, NewException(InvalidSubsetting, "subset", "Subset operation 'slice' is not supported.")
		}
	}

	axes, err := ValidateAndFindAxes20(p)
	if err != nil {
		return nil, NewException(InvalidAxisLabel, "subset", "%v", err)
	}
	g, err := Finalize20(p, axes)
	if err != nil {
		return nil, err
	}

	subsets := g.BBox
	subsetCRS := g.SubsetCRS
	if subsetCRS == "" {
		subsetCRS = cm.SRS
	}

	mapCRS := cm.SRS
	extent := cm.Extent
	mapWidth, mapHeight := cm.XSize, cm.YSize
	var widthInImageCRS, heightInImageCRS int

	if strings.EqualFold(subsetCRS, "imageCRS") {
		subsets = imageToGeo(subsets, cm)
	} else {
		if err := proj.Validate(subsetCRS); err != nil {
			return nil, NewException(InvalidParameterValue, "projection", "Error loading CRS %s.", subsetCRS)
		}
		same, err := proj.Same(cm.SRS, subsetCRS)
		if err != nil {
			return nil, NewException(InvalidParameterValue, "projection", "Error loading CRS %s.", subsetCRS)
		}
		if !same {
			if (g.Width == 0 && !g.HasResX) || (g.Height == 0 && !g.HasResY) {
				w, h, ok := worldGeographicSize(proj, cm, subsetCRS, subsets)
				if ok {
					widthInImageCRS, heightInImageCRS = w, h
				}
			}
			projected, err := proj.ProjectRect(cm.SRS, subsetCRS, cm.Extent)
			if err != nil {
				return nil, fmt.Errorf("failed to project the coverage extent to %s: %w", subsetCRS, err)
			}
			extent = projected
			mapCRS = subsetCRS
		}
	}

	if !subsets.Overlaps(extent) {
		return nil, NewException(ExtentError, "extent", "Image extent does not intersect with desired region.")
	}
	bbox := subsets.Intersect(extent)

	if (g.Width != 0 && g.HasResX) || (g.Height != 0 && g.HasResY) {
		return nil, NewException(TooManyParameterValues, "coverage",
			"GetCoverage operation supports only one of SIZE or RESOLUTION per axis.")
	}

	width, resX := axisSize(g.Width, g.ResX, g.HasResX, g.ScaleX, bbox.MinX, bbox.MaxX,
		extent.MinX, extent.MaxX, mapWidth, widthInImageCRS)
	height, resY := axisSize(g.Height, g.ResY, g.HasResY, g.ScaleY, bbox.MinY, bbox.MaxY,
		extent.MinY, extent.MaxY, mapHeight, heightInImageCRS)
	if width <= 0 || height <= 0 {
		return nil, NewException(InvalidParameterValue, "extent",
			"The requested subset is smaller than a single pixel of the coverage.")
	}

	bbox.MinX += resX * 0.5
	bbox.MaxX -= resX * 0.5
	bbox.MinY += resY * 0.5
	bbox.MaxY -= resY * 0.5

	if p.OutputCRS != "" {
		if err := proj.Validate(p.OutputCRS); err != nil {
			return nil, NewException(InvalidParameterValue, "coverage", "Error loading CRS %s.", p.OutputCRS)
		}
		same, err := proj.Same(mapCRS, p.OutputCRS)
		if err != nil {
			return nil, NewException(InvalidParameterValue, "coverage", "Error loading CRS %s.", p.OutputCRS)
		}
		if !same {
			projected, err := proj.ProjectRect(mapCRS, p.OutputCRS, bbox)
			if err != nil {
				return nil, fmt.Errorf("failed to project the subset to %s: %w", p.OutputCRS, err)
			}
			bbox = projected
			mapCRS = p.OutputCRS
			resX = bbox.Width() / float64(width)
			resY = bbox.Height() / float64(height)
		}
	}

	if width > maxSize || height > maxSize {
		return nil, NewException(InvalidParameterValue, "size",
			"Raster size out of range, width and height of resulting coverage must be no more than MAXSIZE=%d.", maxSize)
	}

	w := &ResolvedWindow{Extent: bbox, Width: width, Height: height, ResX: resX, ResY: resY, CRS: mapCRS}
	w.CellSize = math.Min(resX, resY)
	return w, nil
}

// worldGeographicSize handles a coverage spanning the whole geographic
// world subset in a projected system: the output size follows the part of
// the native grid the subset covers.
func worldGeographicSize(proj raster.Projector, cm *CoverageMetadata, subsetCRS string, subsets raster.Rect) (int, int, bool) {
	imageGeo, err := proj.IsGeographic(cm.SRS)
	if err != nil || !imageGeo || !isWorldExtent(cm.Extent) {
		return 0, 0, false
	}
	subsetGeo, err := proj.IsGeographic(subsetCRS)
	if err != nil || subsetGeo {
		return 0, 0, false
	}
	inImage, err := proj.ProjectRect(subsetCRS, cm.SRS, subsets)
	if err != nil {
		return 0, 0, false
	}
	inImage = inImage.Intersect(cm.Extent)
	w := nint(math.Abs(inImage.Width()) * float64(cm.XSize) / math.Abs(cm.Extent.Width()))
	h := nint(math.Abs(inImage.Height()) * float64(cm.YSize) / math.Abs(cm.Extent.Height()))
	return w, h, true
}

// axisSize derives the pixel count and resolution of one axis from its
// size, resolution or scale setting.
func axisSize(size int, res float64, hasRes bool, scale float64, min, max, extMin, extMax float64, native, fromImage int) (int, float64) {
	span := max - min
	switch {
	case size != 0:
		return size, span / float64(size)
	case hasRes:
		return nint(span / res), res
	}
	switch {
	case fromImage != 0:
		size = fromImage
	case math.Abs(span) != math.Abs(extMax-extMin):
		size = nint(math.Abs(span) * float64(native) / math.Abs(extMax-extMin))
	default:
		size = native
	}
	if size == 0 {
		return 0, 0
	}
	res = span / float64(size)
	if scale != 0 {
		res /= scale
		size = int(float64(size) * scale)
	}
	return size, res
}
