package gdal

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
)

// Source opens data sources with GDAL. All opens and closes go through
// raster.DriverLock.
type Source struct {
	Log zerolog.Logger
}

// NewSource returns a GDAL backed raster source. InitGdal must have been
// called.
func NewSource(log zerolog.Logger) *Source {
	return &Source{Log: log.With().Str("component", "gdal").Logger()}
}

type dataset struct {
	ds   *godal.Dataset
	path string
}

// Open opens path read only.
func (s *Source) Open(path string) (raster.Dataset, error) {
	ds, err := openDataset(path)
	if err != nil {
		return nil, err
	}
	return &dataset{ds: ds, path: path}, nil
}

func openDataset(path string) (*godal.Dataset, error) {
	release := raster.DriverLock.Acquire()
	defer release()

	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return ds, nil
}

func closeDataset(ds *godal.Dataset) error {
	release := raster.DriverLock.Acquire()
	defer release()
	return ds.Close()
}

func (d *dataset) GeoTransform() (raster.GeoTransform, error) {
	gt, err := d.ds.GeoTransform()
	if err != nil {
		// ungeoreferenced: GDAL's default transform
		return raster.GeoTransform{0, 1, 0, 0, 0, 1}, nil
	}
	return raster.GeoTransform(gt), nil
}

func (d *dataset) Size() (int, int) {
	st := d.ds.Structure()
	return st.SizeX, st.SizeY
}

func (d *dataset) BandCount() int {
	return d.ds.Structure().NBands
}

func (d *dataset) band(i int) (godal.Band, bool) {
	bands := d.ds.Bands()
	if i < 1 || i > len(bands) {
		return godal.Band{}, false
	}
	return bands[i-1], true
}

func (d *dataset) BandType(i int) raster.DataType {
	b, ok := d.band(i)
	if !ok {
		return raster.Unknown
	}
	switch b.Structure().DataType {
	case godal.Byte:
		return raster.Byte
	case godal.Int16:
		return raster.Int16
	case godal.UInt16:
		return raster.UInt16
	case godal.Int32:
		return raster.Int32
	case godal.UInt32:
		return raster.UInt32
	case godal.Float32:
		return raster.Float32
	case godal.Float64:
		return raster.Float64
	}
	return raster.Unknown
}

func (d *dataset) BandColorInterp(i int) string {
	b, ok := d.band(i)
	if !ok {
		return "Undefined"
	}
	return b.ColorInterp().Name()
}

// BandUnit reads the units metadata item, which is where the netCDF and
// HDF drivers surface the band unit.
func (d *dataset) BandUnit(i int) string {
	b, ok := d.band(i)
	if !ok {
		return ""
	}
	return b.Metadata("units")
}

func (d *dataset) Close() error {
	if d.ds == nil {
		return nil
	}
	err := closeDataset(d.ds)
	d.ds = nil
	return err
}

// DriverMimeType returns the mime type GDAL declares for driver.
func (s *Source) DriverMimeType(driver string) string {
	drv, ok := godal.RasterDriver(godal.DriverName(driver))
	if !ok {
		return ""
	}
	return drv.Metadata("DMD_MIMETYPE")
}
