package gdal

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/airbusgeo/godal"
	"github.com/cespare/xxhash/v2"

	"github.com/nci/gskywcs/raster"
)

var drawSeq uint64

var resampleAlgs = map[string]string{
	"":         "near",
	"nearest":  "near",
	"bilinear": "bilinear",
	"average":  "average",
}

func vsimemName(req *raster.DrawRequest, suffix string) string {
	seq := atomic.AddUint64(&drawSeq, 1)
	key := fmt.Sprintf("%v|%v|%d|%d|%s|%d", req.Paths, req.Window.Extent, req.Window.Width, req.Window.Height, req.Window.CRS, seq)
	return fmt.Sprintf("/vsimem/wcs_%016x%s", xxhash.Sum64String(key), suffix)
}

func warpSwitches(req *raster.DrawRequest) ([]string, error) {
	alg, ok := resampleAlgs[strings.ToLower(req.Resample)]
	if !ok {
		return nil, fmt.Errorf("unsupported resampling method: %s", req.Resample)
	}

	ext := req.Window.Extent
	switches := []string{
		"-te",
		strconv.FormatFloat(ext.MinX, 'g', -1, 64),
		strconv.FormatFloat(ext.MinY, 'g', -1, 64),
		strconv.FormatFloat(ext.MaxX, 'g', -1, 64),
		strconv.FormatFloat(ext.MaxY, 'g', -1, 64),
		"-ts", strconv.Itoa(req.Window.Width), strconv.Itoa(req.Window.Height),
		"-r", alg,
	}
	if req.Window.CRS != "" {
		switches = append(switches, "-t_srs", raster.NormalizeEPSG(req.Window.CRS))
	}
	if req.SourceCRS != "" {
		switches = append(switches, "-s_srs", raster.NormalizeEPSG(req.SourceCRS))
	}
	if req.NoData != "" {
		switches = append(switches, "-dstnodata", req.NoData)
	}
	return switches, nil
}

// Draw warps the requested window out of every source path into an
// in-memory file encoded by req.Driver and returns its bytes.
func (s *Source) Draw(ctx context.Context, req *raster.DrawRequest) (*raster.Image, error) {
	if len(req.Paths) == 0 {
		return nil, fmt.Errorf("no data source to draw from")
	}
	switches, err := warpSwitches(req)
	if err != nil {
		return nil, err
	}

	var opened []*godal.Dataset
	var scratch []string
	defer func() {
		for i := len(opened) - 1; i >= 0; i-- {
			closeDataset(opened[i])
		}
		for _, name := range scratch {
			godal.VSIUnlink(name)
		}
	}()

	var inputs []*godal.Dataset
	for _, path := range req.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := openDataset(path)
		if err != nil {
			return nil, err
		}
		opened = append(opened, ds)
		inputs = append(inputs, ds)
	}

	// band selection happens on a VRT view of each source
	if len(req.Bands) > 0 {
		var bandSwitches []string
		for _, b := range req.Bands {
			bandSwitches = append(bandSwitches, "-b", strconv.Itoa(b))
		}
		for i, ds := range inputs {
			name := vsimemName(req, fmt.Sprintf("_%d.vrt", i))
			vrt, err := ds.Translate(name, bandSwitches, godal.DriverName("VRT"))
			if err != nil {
				return nil, fmt.Errorf("failed to select bands from %s: %w", req.Paths[i], err)
			}
			scratch = append(scratch, name)
			opened = append(opened, vrt)
			inputs[i] = vrt
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := req.Extension
	if ext == "" {
		ext = "img.tmp"
	}
	outName := vsimemName(req, "."+ext)
	scratch = append(scratch, outName)

	s.Log.Debug().Strs("paths", req.Paths).Strs("switches", switches).Str("driver", req.Driver).Msg("warp")

	opts := []godal.DatasetWarpOption{godal.DriverName(req.Driver)}
	if len(req.CreationOptions) > 0 {
		opts = append(opts, godal.CreationOption(req.CreationOptions...))
	}
	out, err := godal.Warp(outName, inputs, switches, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to draw window: %w", err)
	}
	if err := closeDataset(out); err != nil {
		return nil, fmt.Errorf("failed to encode window: %w", err)
	}

	data, err := readVSIMem(outName)
	if err != nil {
		return nil, err
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "out." + ext
	}
	return &raster.Image{Data: data, MimeType: req.MimeType, FileName: fileName}, nil
}

func readVSIMem(name string) ([]byte, error) {
	f, err := godal.VSIOpen(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
