package gdal

import (
	"fmt"
	"math"
	"strings"

	"github.com/airbusgeo/godal"

	"github.com/nci/gskywcs/raster"
)

// edge densification used when projecting rectangles
const rectSamples = 20

// Projector answers coordinate system questions with OGR spatial
// references. Nothing is cached between calls.
type Projector struct{}

func loadSpatialRef(def string) (*godal.SpatialRef, error) {
	d := strings.TrimSpace(def)
	if d == "" {
		return nil, fmt.Errorf("empty coordinate system definition")
	}
	if code, ok := raster.ParseEPSG(d); ok {
		sr, err := godal.NewSpatialRefFromEPSG(code)
		if err != nil {
			return nil, fmt.Errorf("failed to load EPSG:%d: %w", code, err)
		}
		return sr, nil
	}
	if strings.HasPrefix(d, "+") || strings.Contains(d, "+proj=") {
		sr, err := godal.NewSpatialRefFromProj4(d)
		if err != nil {
			return nil, fmt.Errorf("failed to load proj definition %q: %w", d, err)
		}
		return sr, nil
	}
	sr, err := godal.NewSpatialRefFromWKT(d)
	if err != nil {
		return nil, fmt.Errorf("failed to load coordinate system %q: %w", d, err)
	}
	return sr, nil
}

// Validate checks that def can be loaded.
func (Projector) Validate(def string) error {
	sr, err := loadSpatialRef(def)
	if err != nil {
		return err
	}
	sr.Close()
	return nil
}

// IsGeographic reports whether def is a geographic coordinate system.
func (Projector) IsGeographic(def string) (bool, error) {
	sr, err := loadSpatialRef(def)
	if err != nil {
		return false, err
	}
	defer sr.Close()
	return sr.Geographic(), nil
}

// Same reports whether a and b describe the same coordinate system.
func (Projector) Same(a, b string) (bool, error) {
	if strings.EqualFold(raster.NormalizeEPSG(a), raster.NormalizeEPSG(b)) {
		return true, nil
	}
	sra, err := loadSpatialRef(a)
	if err != nil {
		return false, err
	}
	defer sra.Close()
	srb, err := loadSpatialRef(b)
	if err != nil {
		return false, err
	}
	defer srb.Close()
	return sra.IsSame(srb), nil
}

// ProjectRect reprojects r from src to dst by transforming points sampled
// along its edges and returning their bounds.
func (Projector) ProjectRect(src, dst string, r raster.Rect) (raster.Rect, error) {
	srcSR, err := loadSpatialRef(src)
	if err != nil {
		return r, err
	}
	defer srcSR.Close()
	dstSR, err := loadSpatialRef(dst)
	if err != nil {
		return r, err
	}
	defer dstSR.Close()

	if srcSR.IsSame(dstSR) {
		return r, nil
	}

	trn, err := godal.NewTransform(srcSR, dstSR)
	if err != nil {
		return r, fmt.Errorf("create coordinate transform: %w", err)
	}
	defer trn.Close()

	xs, ys := sampleRect(r, rectSamples)
	ok := make([]bool, len(xs))
	if err := trn.TransformEx(xs, ys, nil, ok); err != nil {
		// partial failures are reported through ok
		anyOK := false
		for _, v := range ok {
			anyOK = anyOK || v
		}
		if !anyOK {
			return r, fmt.Errorf("reproject bounds: %w", err)
		}
	}

	out := raster.Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	n := 0
	for i := range xs {
		if !ok[i] || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) || math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		out.MinX = math.Min(out.MinX, xs[i])
		out.MinY = math.Min(out.MinY, ys[i])
		out.MaxX = math.Max(out.MaxX, xs[i])
		out.MaxY = math.Max(out.MaxY, ys[i])
		n++
	}
	if n == 0 {
		return r, fmt.Errorf("reproject bounds: no point of the rectangle could be transformed")
	}
	return out, nil
}

func sampleRect(r raster.Rect, n int) ([]float64, []float64) {
	var xs, ys []float64
	dx := r.Width() / float64(n)
	dy := r.Height() / float64(n)
	for i := 0; i <= n; i++ {
		x := r.MinX + float64(i)*dx
		xs = append(xs, x, x)
		ys = append(ys, r.MinY, r.MaxY)
	}
	for i := 1; i < n; i++ {
		y := r.MinY + float64(i)*dy
		xs = append(xs, r.MinX, r.MaxX)
		ys = append(ys, y, y)
	}
	return xs, ys
}
