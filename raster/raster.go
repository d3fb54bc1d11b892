// Package raster defines the narrow raster access surface used by the
// coverage pipeline: opening a data source, reading its grid description,
// drawing an output window and answering coordinate system questions.
// The GDAL backed implementation lives in raster/gdal.
package raster

import (
	"context"
	"math"
)

// Rect is an axis aligned extent in some coordinate system.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the extent span along x.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the extent span along y.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Overlaps reports whether two extents share at least one point.
func (r Rect) Overlaps(o Rect) bool {
	if r.MinX > o.MaxX || r.MaxX < o.MinX {
		return false
	}
	if r.MinY > o.MaxY || r.MaxY < o.MinY {
		return false
	}
	return true
}

// Intersect returns the common part of r and o. The result is only
// meaningful when the two rectangles overlap.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinY: math.Max(r.MinY, o.MinY),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxY: math.Min(r.MaxY, o.MaxY),
	}
}

// GeoTransform is the GDAL affine transform
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// Apply converts a pixel/line position to georeferenced coordinates.
func (gt GeoTransform) Apply(col, row float64) (float64, float64) {
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// DataType is the pixel type of a band.
type DataType int

const (
	Unknown DataType = iota
	Byte
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	Int16:   "Int16",
	UInt16:  "UInt16",
	Int32:   "Int32",
	UInt32:  "UInt32",
	Float32: "Float32",
	Float64: "Float64",
}

func (dt DataType) String() string {
	return dataTypeNames[dt]
}

// Dataset is an opened raster data source. Band indices are 1-based.
type Dataset interface {
	GeoTransform() (GeoTransform, error)
	Size() (int, int)
	BandCount() int
	BandType(band int) DataType
	BandColorInterp(band int) string
	BandUnit(band int) string
	Close() error
}

// Window is the final raster window to extract.
type Window struct {
	Extent Rect
	Width  int
	Height int
	// CRS is the definition of the output coordinate system as accepted
	// by Projector.
	CRS string
}

// DrawRequest describes one extraction: the sources, the output window
// and everything the encoder needs.
type DrawRequest struct {
	Paths           []string
	SourceCRS       string
	Window          Window
	Bands           []int
	Resample        string
	Driver          string
	MimeType        string
	Extension       string
	FileName        string
	CreationOptions []string
	NoData          string
}

// Image is an encoded raster.
type Image struct {
	Data     []byte
	MimeType string
	FileName string
}

// Source opens data sources and draws windows from them.
type Source interface {
	Open(path string) (Dataset, error)
	Draw(ctx context.Context, req *DrawRequest) (*Image, error)
	DriverMimeType(driver string) string
}

// Projector answers coordinate system questions for definitions such as
// EPSG:4326, urn:ogc:def:crs:EPSG::4326 or
// http://www.opengis.net/def/crs/EPSG/0/4326.
type Projector interface {
	Validate(def string) error
	IsGeographic(def string) (bool, error)
	Same(a, b string) (bool, error)
	ProjectRect(src, dst string, r Rect) (Rect, error)
}
