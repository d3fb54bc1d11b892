// Package extractor reads the tile index record of a raster file: its
// footprint, size and the acquisition time encoded in its name.
package extractor

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/nci/gskywcs/raster"
)

type Record struct {
	Location string     `json:"location"`
	MinX     float64    `json:"min_x"`
	MinY     float64    `json:"min_y"`
	MaxX     float64    `json:"max_x"`
	MaxY     float64    `json:"max_y"`
	SRID     int        `json:"srid"`
	XSize    int        `json:"x_size"`
	YSize    int        `json:"y_size"`
	Bands    int        `json:"raster_count"`
	Time     *time.Time `json:"time,omitempty"`
}

// Polygon is the footprint as WKT.
func (r *Record) Polygon() string {
	return fmt.Sprintf("POLYGON ((%f %f,%f %f,%f %f,%f %f,%f %f))",
		r.MinX, r.MaxY, r.MinX, r.MinY, r.MaxX, r.MinY, r.MaxX, r.MaxY, r.MinX, r.MaxY)
}

// footprint is the extent covered by a size x by size y grid.
func footprint(gt raster.GeoTransform, xSize, ySize int) raster.Rect {
	r := raster.Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range [][2]float64{{0, 0}, {float64(xSize), 0}, {0, float64(ySize)}, {float64(xSize), float64(ySize)}} {
		x, y := gt.Apply(c[0], c[1])
		r.MinX = math.Min(r.MinX, x)
		r.MinY = math.Min(r.MinY, y)
		r.MaxX = math.Max(r.MaxX, x)
		r.MaxY = math.Max(r.MaxY, y)
	}
	return r
}

// Extract opens path through src and builds its record. srid is the
// coordinate system of the file. pattern, when set, is matched against
// the file name to find its time; see ParseName.
func Extract(src raster.Source, path string, srid int, pattern *regexp.Regexp) (*Record, error) {
	ds, err := src.Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	xSize, ySize := ds.Size()
	if xSize <= 0 || ySize <= 0 {
		return nil, fmt.Errorf("%s: empty raster", path)
	}
	fp := footprint(gt, xSize, ySize)

	rec := &Record{
		Location: path,
		MinX:     fp.MinX,
		MinY:     fp.MinY,
		MaxX:     fp.MaxX,
		MaxY:     fp.MaxY,
		SRID:     srid,
		XSize:    xSize,
		YSize:    ySize,
		Bands:    ds.BandCount(),
	}
	if pattern != nil {
		if _, t, ok := ParseName(pattern, path); ok {
			rec.Time = &t
		}
	}
	return rec, nil
}

// ParseName matches the base name of path against pattern and returns
// its named groups and the time they spell. Recognised groups are year,
// julian_day, month, day, hour, minute and second.
func ParseName(pattern *regexp.Regexp, path string) (map[string]string, time.Time, bool) {
	_, basename := filepath.Split(path)
	match := pattern.FindStringSubmatch(basename)
	if match == nil {
		return nil, time.Time{}, false
	}

	result := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if i != 0 && name != "" {
			result[name] = match[i]
		}
	}
	t, ok := ParseTime(result)
	return result, t, ok
}

// ParseTime assembles a UTC time from name fields. A year is required.
func ParseTime(nameFields map[string]string) (time.Time, bool) {
	yearStr, ok := nameFields["year"]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)

	if v, ok := nameFields["julian_day"]; ok {
		julianDay, _ := strconv.Atoi(v)
		t = t.AddDate(0, 0, julianDay-1)
	}

	if m, ok := nameFields["month"]; ok {
		if d, ok := nameFields["day"]; ok {
			month, _ := strconv.Atoi(m)
			day, _ := strconv.Atoi(d)
			t = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}

	if v, ok := nameFields["hour"]; ok {
		hour, _ := strconv.Atoi(v)
		t = t.Add(time.Hour * time.Duration(hour))
	}
	if v, ok := nameFields["minute"]; ok {
		minute, _ := strconv.Atoi(v)
		t = t.Add(time.Minute * time.Duration(minute))
	}
	if v, ok := nameFields["second"]; ok {
		second, _ := strconv.Atoi(v)
		t = t.Add(time.Second * time.Duration(second))
	}
	return t, true
}
