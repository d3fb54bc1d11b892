package wcs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

// TileIndex lists the files of a tile-indexed coverage that intersect an
// extent. An empty timeValue matches every time stamp.
type TileIndex interface {
	Files(ctx context.Context, layer *utils.Layer, bbox raster.Rect, crs string, timeValue string) ([]string, error)
}

// FindFormat looks an output format up by name or mime type.
func FindFormat(formats []utils.OutputFormat, name string) *utils.OutputFormat {
	for i := range formats {
		if strings.EqualFold(formats[i].Name, name) {
			return &formats[i]
		}
	}
	for i := range formats {
		if strings.EqualFold(formats[i].MimeType, name) {
			return &formats[i]
		}
	}
	return nil
}

// layerOutputFormats lists the formats a layer is offered in: its own
// formats, else the service formats, else every configured format.
func layerOutputFormats(config *utils.Config, layer *utils.Layer) []*utils.OutputFormat {
	names := layer.Formats
	if len(names) == 0 {
		names = config.ServiceConfig.Formats
	}
	var out []*utils.OutputFormat
	seen := map[string]bool{}
	add := func(of *utils.OutputFormat) {
		if of == nil || seen[of.Name] {
			return
		}
		seen[of.Name] = true
		out = append(out, of)
	}
	if len(names) == 0 {
		for i := range config.OutputFormats {
			add(&config.OutputFormats[i])
		}
		return out
	}
	for _, n := range names {
		add(FindFormat(config.OutputFormats, n))
	}
	return out
}

// LayerFormats lists the mime types a layer is offered in.
func LayerFormats(config *utils.Config, layer *utils.Layer) []string {
	var out []string
	seen := map[string]bool{}
	for _, of := range layerOutputFormats(config, layer) {
		if of.MimeType != "" && !seen[of.MimeType] {
			seen[of.MimeType] = true
			out = append(out, of.MimeType)
		}
	}
	return out
}

// layerFormatNames lists the format names a layer is offered in, as 1.0
// documents advertise them.
func layerFormatNames(config *utils.Config, layer *utils.Layer) []string {
	var out []string
	for _, of := range layerOutputFormats(config, layer) {
		out = append(out, of.Name)
	}
	return out
}

// ServiceFormats is the union of the formats of every layer.
func ServiceFormats(config *utils.Config, layers []*utils.Layer) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range layers {
		for _, f := range LayerFormats(config, l) {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		for _, of := range config.OutputFormats {
			if of.MimeType != "" && !seen[of.MimeType] {
				seen[of.MimeType] = true
				out = append(out, of.MimeType)
			}
		}
	}
	return out
}

// Resample maps an interpolation name to the warp resampling method.
// An empty name is nearest neighbour.
func Resample(interpolation string) (string, bool) {
	i := strings.ToUpper(strings.TrimSpace(interpolation))
	switch {
	case i == "", strings.HasPrefix(i, "NEAREST"):
		return "nearest", true
	case i == "BILINEAR":
		return "bilinear", true
	case i == "AVERAGE":
		return "average", true
	}
	return "", false
}

var geotiffCompression = map[string]string{
	"none":     "NONE",
	"packbits": "PACKBITS",
	"deflate":  "DEFLATE",
	"huffman":  "CCITTRLE",
	"lzw":      "LZW",
	"jpeg":     "JPEG",
}

var geotiffPredictor = map[string]string{
	"none":          "1",
	"1":             "1",
	"horizontal":    "2",
	"2":             "2",
	"floatingpoint": "3",
	"3":             "3",
}

func tileBlockSize(value, name string) (int, error) {
	n, err := parseInteger(value)
	if err != nil {
		return 0, fmt.Errorf("Could not parse %s value.", name)
	}
	if n <= 0 || n%16 != 0 {
		return 0, fmt.Errorf("Invalid %s value '%d'. Must be greater than 0 and dividable by 16.", name, n)
	}
	return n, nil
}

// GeoTIFFCreationOptions translates geotiff:* format options into
// encoder creation options. Options are only meaningful for image/tiff.
func GeoTIFFCreationOptions(mime string, options []string) ([]string, error) {
	if !strings.EqualFold(mime, "image/tiff") || len(options) == 0 {
		return nil, nil
	}
	var out []string
	for _, opt := range options {
		eq := strings.Index(opt, "=")
		if eq < 0 {
			return nil, NewException(InvalidParameterValue, "format", "Missing value for parameter '%s'.", opt)
		}
		key, value := opt[:eq], opt[eq+1:]
		name := strings.ToLower(strings.TrimPrefix(strings.ToLower(key), "geotiff:"))

		switch name {
		case "compression":
			c, ok := geotiffCompression[strings.ToLower(value)]
			if !ok {
				return nil, NewException(InvalidParameterValue, "format", "Compression method '%s' not supported.", value)
			}
			out = append(out, "COMPRESS="+c)
		case "jpeg_quality":
			q, err := parseInteger(value)
			if err != nil {
				return nil, NewException(InvalidParameterValue, "format", "Could not parse jpeg_quality value.")
			}
			if q < 1 || q > 100 {
				return nil, NewException(InvalidParameterValue, "format", "Invalid jpeg_quality value '%d'.", q)
			}
			out = append(out, "JPEG_QUALITY="+strconv.Itoa(q))
		case "predictor":
			pr, ok := geotiffPredictor[strings.ToLower(value)]
			if !ok {
				return nil, NewException(InvalidParameterValue, "format", "Invalid predictor value '%s'.", value)
			}
			out = append(out, "PREDICTOR="+pr)
		case "interleave":
			switch strings.ToLower(value) {
			case "band":
				out = append(out, "INTERLEAVE=BAND")
			case "pixel":
				out = append(out, "INTERLEAVE=PIXEL")
			default:
				return nil, NewException(InvalidParameterValue, "format", "Interleave method '%s' not supported.", value)
			}
		case "tiling":
			switch strings.ToLower(value) {
			case "true":
				out = append(out, "TILED=YES")
			case "false":
				out = append(out, "TILED=NO")
			default:
				return nil, NewException(InvalidParameterValue, "format", "Invalid boolean value '%s'.", value)
			}
		case "tileheight":
			n, err := tileBlockSize(value, "tileheight")
			if err != nil {
				return nil, NewException(InvalidParameterValue, "format", "%v", err)
			}
			out = append(out, "BLOCKYSIZE="+strconv.Itoa(n))
		case "tilewidth":
			n, err := tileBlockSize(value, "tilewidth")
			if err != nil {
				return nil, NewException(InvalidParameterValue, "format", "%v", err)
			}
			out = append(out, "BLOCKXSIZE="+strconv.Itoa(n))
		default:
			return nil, NewException(InvalidParameterValue, "format", "Unrecognized GeoTIFF parameter '%s'.", key)
		}
	}
	return out, nil
}

// LayerCreationOptions collects the
// outputformat_<FORMAT>_creationoption_<KEY> metadata of a layer.
// BAND_<n>_* keys are renumbered to the position of band n in the
// selected band list, and dropped when band n is not selected.
func LayerCreationOptions(layer *utils.Layer, format string, bands []int) []string {
	var keys []string
	for k := range layer.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	seen := map[string]bool{}
	for _, k := range keys {
		name := k
		for _, p := range []string{"wcs_", "ows_"} {
			if strings.HasPrefix(strings.ToLower(name), p) {
				name = name[len(p):]
				break
			}
		}
		prefix := "outputformat_" + format + "_creationoption_"
		if len(name) <= len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			continue
		}
		opt := name[len(prefix):]
		if seen[strings.ToUpper(opt)] {
			continue
		}
		seen[strings.ToUpper(opt)] = true

		if strings.HasPrefix(strings.ToUpper(opt), "BAND_") {
			renamed, ok := renumberBandOption(opt, bands)
			if !ok {
				continue
			}
			opt = renamed
		}
		out = append(out, opt+"="+layer.Metadata[k])
	}
	return out
}

func renumberBandOption(opt string, bands []int) (string, bool) {
	rest := opt[len("BAND_"):]
	us := strings.Index(rest, "_")
	if us <= 0 {
		return "", false
	}
	n, err := strconv.Atoi(rest[:us])
	if err != nil {
		return "", false
	}
	for pos, b := range bands {
		if b == n {
			return fmt.Sprintf("BAND_%d%s", pos+1, rest[us:]), true
		}
	}
	return "", false
}
