package wcs

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/utils"
)

// ImageMode is the pixel class a coverage advertises.
type ImageMode int

const (
	ImageFloat32 ImageMode = iota
	ImageByte
	ImageInt16
)

func (m ImageMode) String() string {
	switch m {
	case ImageByte:
		return "BYTE"
	case ImageInt16:
		return "INT16"
	}
	return "FLOAT32"
}

// BandMetadata describes one band of a coverage.
type BandMetadata struct {
	Name               string
	Interpretation     string
	UOM                string
	Definition         string
	Description        string
	IntervalMin        float64
	IntervalMax        float64
	SignificantFigures int
}

// CoverageMetadata is the geometric and radiometric description of one
// coverage, derived from the layer config or the data source itself.
type CoverageMetadata struct {
	Name string
	// SRS is the native coordinate system as EPSG:n.
	SRS    string
	SRSURN string
	SRSURI string
	// SRSList holds every advertised coordinate system, native first.
	SRSList      []string
	Extent       raster.Rect
	LLExtent     raster.Rect
	GeoTransform raster.GeoTransform
	XSize        int
	YSize        int
	XRes         float64
	YRes         float64
	ImageMode    ImageMode
	Bands        []BandMetadata
	NilValues    []string
	NilReasons   []string
	NativeFormat string
	// Paths lists the files backing a non tile-indexed coverage.
	Paths []string
}

// BandCount is the number of bands of the coverage.
func (cm *CoverageMetadata) BandCount() int { return len(cm.Bands) }

// MetadataResolver derives CoverageMetadata for layers of one config.
type MetadataResolver struct {
	Service   *utils.ServiceConfig
	Formats   []utils.OutputFormat
	Source    raster.Source
	Projector raster.Projector
	DataDir   string
}

// NewMetadataResolver binds a resolver to a namespace config.
func NewMetadataResolver(config *utils.Config, src raster.Source, proj raster.Projector) *MetadataResolver {
	return &MetadataResolver{
		Service:   &config.ServiceConfig,
		Formats:   config.OutputFormats,
		Source:    src,
		Projector: proj,
		DataDir:   utils.DataDir,
	}
}

// first token of a space separated list
func firstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func (r *MetadataResolver) layerSRSList(layer *utils.Layer) []string {
	var list []string
	add := func(s string) {
		for _, tok := range strings.Fields(s) {
			if code, ok := raster.ParseEPSG(tok); ok {
				list = append(list, fmt.Sprintf("EPSG:%d", code))
			}
		}
	}
	add(layer.SRS)
	add(layer.Meta("srs"))
	if len(list) == 0 {
		add(r.Service.SRS)
		if v, ok := r.Service.Lookup("srs"); ok {
			add(v)
		}
	}
	seen := map[string]bool{}
	out := list[:0]
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Resolve builds the metadata of layer. Virtual metadata (extent plus
// resolution or size) wins over probing the data source.
func (r *MetadataResolver) Resolve(layer *utils.Layer) (*CoverageMetadata, error) {
	cm := &CoverageMetadata{Name: layer.Name}

	cm.SRSList = r.layerSRSList(layer)
	if len(cm.SRSList) == 0 {
		return nil, fmt.Errorf("Unable to determine the SRS for this layer, no projection defined and no metadata available.")
	}
	cm.SRS = cm.SRSList[0]
	code, _ := raster.ParseEPSG(cm.SRS)

	switch {
	case layer.SRSURN != "":
		cm.SRSURN = firstToken(layer.SRSURN)
	case r.Service.SRSURN != "" && layer.SRS == "" && layer.Meta("srs") == "":
		cm.SRSURN = firstToken(r.Service.SRSURN)
	default:
		cm.SRSURN = raster.EPSGURN(code)
	}
	cm.SRSURI = raster.EPSGURI(code)

	_, hasExtent := layer.Lookup("extent")
	_, hasRes := layer.Lookup("resolution")
	_, hasSize := layer.Lookup("size")

	var err error
	switch {
	case hasExtent && (hasRes || hasSize):
		err = r.resolveVirtual(layer, cm)
	case layer.DataSource == "":
		err = fmt.Errorf("Layer %s has no data source and no virtual dataset metadata. Tile-indexed coverages need extent and resolution or size metadata.", layer.Name)
	default:
		err = r.resolveFromDataset(layer, cm)
	}
	if err != nil {
		return nil, err
	}

	cm.LLExtent = r.llExtent(cm)
	return cm, nil
}

// llExtent reprojects the native extent to EPSG:4326. A failed
// projection keeps the native extent.
func (r *MetadataResolver) llExtent(cm *CoverageMetadata) raster.Rect {
	if cm.SRS == "EPSG:4326" || r.Projector == nil {
		return cm.Extent
	}
	ll, err := r.Projector.ProjectRect(cm.SRS, "EPSG:4326", cm.Extent)
	if err != nil {
		return cm.Extent
	}
	return ll
}

func parsePair(value, key string) (float64, float64, error) {
	tok := strings.Fields(value)
	if len(tok) != 2 {
		return 0, 0, fmt.Errorf("Wrong number of arguments for wcs|ows_%s metadata.", key)
	}
	a, err := strconv.ParseFloat(tok[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("Invalid value '%s' in wcs|ows_%s metadata.", tok[0], key)
	}
	b, err := strconv.ParseFloat(tok[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("Invalid value '%s' in wcs|ows_%s metadata.", tok[1], key)
	}
	return a, b, nil
}

func parseExtent(value string) (raster.Rect, error) {
	tok := strings.Fields(strings.Replace(value, ",", " ", -1))
	if len(tok) != 4 {
		return raster.Rect{}, fmt.Errorf("Wrong number of arguments for wcs|ows_extent metadata.")
	}
	var v [4]float64
	for i, t := range tok {
		f, err := parseDouble(t)
		if err != nil {
			return raster.Rect{}, fmt.Errorf("Invalid value %q in wcs|ows_extent metadata.", t)
		}
		v[i] = f
	}
	return raster.Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

func (r *MetadataResolver) resolveVirtual(layer *utils.Layer, cm *CoverageMetadata) error {
	ext, err := parseExtent(layer.Meta("extent"))
	if err != nil {
		return err
	}
	cm.Extent = ext

	if v, ok := layer.Lookup("resolution"); ok {
		if cm.XRes, cm.YRes, err = parsePair(v, "resolution"); err != nil {
			return err
		}
	}
	if v, ok := layer.Lookup("size"); ok {
		x, y, err := parsePair(v, "size")
		if err != nil {
			return err
		}
		cm.XSize, cm.YSize = int(x), int(y)
	}

	if cm.XSize == 0 && cm.YSize == 0 && cm.XRes != 0 && cm.YRes != 0 &&
		ext.MinX != ext.MaxX && ext.MinY != ext.MaxY {
		cm.XSize = int(ext.Width()/cm.XRes + 0.5)
		cm.YSize = int(math.Abs(ext.Height()/cm.YRes + 0.5))
	}
	if (cm.XRes == 0 || cm.YRes == 0) && cm.XSize != 0 && cm.YSize != 0 {
		cm.XRes = ext.Width() / float64(cm.XSize)
		cm.YRes = ext.Height() / float64(cm.YSize)
	}
	if cm.XRes == 0 || cm.YRes == 0 || cm.XSize == 0 || cm.YSize == 0 {
		return fmt.Errorf("Failed to collect extent and resolution for WCS coverage from metadata for layer '%s'.  Need value wcs|ows_resolution or wcs|ows_size values.", layer.Name)
	}

	cm.GeoTransform = raster.GeoTransform{ext.MinX, cm.XRes, 0, ext.MaxY, 0, -math.Abs(cm.YRes)}

	bandCount := 1
	if v, ok := layer.Lookup("bandcount"); ok {
		n, err := parseInteger(v)
		if err != nil || n < 0 {
			return fmt.Errorf("Invalid wcs|ows_bandcount metadata value '%s'.", v)
		}
		bandCount = n
	}

	cm.ImageMode = ImageFloat32
	if v, ok := layer.Lookup("imagemode"); ok {
		switch strings.ToUpper(v) {
		case "INT16":
			cm.ImageMode = ImageInt16
		case "FLOAT32":
			cm.ImageMode = ImageFloat32
		case "BYTE":
			cm.ImageMode = ImageByte
		default:
			return fmt.Errorf("Content of wcs|ows_imagemode (%s) not recognised.  Should be one of BYTE, INT16 or FLOAT32.", v)
		}
	}
	cm.NativeFormat = layer.Meta("native_format")

	nils, ok := layer.Lookup("nilvalues")
	if !ok {
		nils = layer.Meta("rangeset_nullvalue")
	}
	cm.NilValues = strings.Fields(nils)
	reasons := strings.Fields(layer.Meta("nilvalues_reasons"))
	for i := range cm.NilValues {
		if i < len(reasons) {
			cm.NilReasons = append(cm.NilReasons, reasons[i])
		} else {
			cm.NilReasons = append(cm.NilReasons, "")
		}
	}

	bands, err := virtualBands(layer, bandCount, cm.ImageMode)
	if err != nil {
		return err
	}
	cm.Bands = bands
	if layer.TileIndexTable == "" && layer.DataSource != "" {
		cm.Paths = []string{r.dataPath(layer.DataSource)}
	}
	return nil
}

type bandKeys struct {
	interpretation, uom, definition, description string
}

var (
	bandKeys20 = bandKeys{"band_interpretation", "band_uom", "band_definition", "band_description"}
	bandKeys11 = bandKeys{"semantic", "values_type", "values_semantic", "description"}
)

func defaultInterval(mode ImageMode) (float64, float64, int) {
	switch mode {
	case ImageByte:
		return 0, 255, 3
	case ImageInt16:
		return 0, math.MaxUint16, 5
	}
	return -math.MaxFloat32, math.MaxFloat32, 12
}

// bandNames returns the declared band name vocabulary of a layer and the
// metadata keys that describe its bands.
func bandNames(layer *utils.Layer, bandCount int) ([]string, *bandKeys) {
	if v, ok := layer.Lookup("band_names"); ok {
		return strings.Fields(v), &bandKeys20
	}
	if v, ok := layer.Lookup("rangeset_axes"); ok {
		if strings.EqualFold(v, "bands") {
			names := make([]string, bandCount)
			for i := range names {
				names[i] = fmt.Sprintf("Band%d", i+1)
			}
			return names, &bandKeys11
		}
		return strings.Fields(v), &bandKeys11
	}
	return nil, nil
}

// rangesetAxisMeta looks up "<axis>_<item>" metadata.
func rangesetAxisMeta(layer *utils.Layer, axis, item string) (string, bool) {
	return layer.Lookup(axis + "_" + item)
}

func virtualBands(layer *utils.Layer, bandCount int, mode ImageMode) ([]BandMetadata, error) {
	names, keys := bandNames(layer, bandCount)
	if len(names) != 0 && len(names) != bandCount {
		return nil, fmt.Errorf("Wrong number of band names given in layer '%s'. Expected %d, got %d.", layer.Name, bandCount, len(names))
	}

	var def BandMetadata
	def.IntervalMin, def.IntervalMax, def.SignificantFigures = defaultInterval(mode)
	if keys != nil {
		def.Interpretation = layer.Meta(keys.interpretation)
		def.UOM = layer.Meta(keys.uom)
		def.Definition = layer.Meta(keys.definition)
		def.Description = layer.Meta(keys.description)
	}
	if v, ok := layer.Lookup("interval"); ok {
		min, max, err := parseInterval(v)
		if err != nil {
			return nil, fmt.Errorf("Wrong interval format for default axis.")
		}
		def.IntervalMin, def.IntervalMax = min, max
	}
	if v, ok := layer.Lookup("significant_figures"); ok {
		n, err := parseInteger(v)
		if err != nil {
			return nil, fmt.Errorf("Wrong significant figures format for default axis.")
		}
		def.SignificantFigures = n
	}

	bands := make([]BandMetadata, bandCount)
	for i := range bands {
		b := def
		if len(names) == 0 {
			bands[i] = b
			continue
		}
		b.Name = names[i]
		lookup := func(item, fallback string) string {
			if v, ok := rangesetAxisMeta(layer, b.Name, item); ok {
				return v
			}
			return fallback
		}
		b.Interpretation = lookup(keys.interpretation, def.Interpretation)
		b.UOM = lookup(keys.uom, def.UOM)
		b.Definition = lookup(keys.definition, def.Definition)
		b.Description = lookup(keys.description, def.Description)
		if v, ok := rangesetAxisMeta(layer, b.Name, "interval"); ok {
			min, max, err := parseInterval(v)
			if err != nil {
				return nil, fmt.Errorf("Wrong interval format for axis %s.", b.Name)
			}
			b.IntervalMin, b.IntervalMax = min, max
		}
		if v, ok := rangesetAxisMeta(layer, b.Name, "significant_figures"); ok {
			n, err := parseInteger(v)
			if err != nil {
				return nil, fmt.Errorf("Wrong significant figures format for axis %s.", b.Name)
			}
			b.SignificantFigures = n
		}
		bands[i] = b
	}
	return bands, nil
}

func parseInterval(v string) (float64, float64, error) {
	tok := strings.Fields(v)
	if len(tok) != 2 {
		return 0, 0, fmt.Errorf("interval needs two values")
	}
	min, err := parseDouble(tok[0])
	if err != nil {
		return 0, 0, err
	}
	max, err := parseDouble(tok[1])
	if err != nil {
		return 0, 0, err
	}
	return min, max, nil
}

func (r *MetadataResolver) dataPath(p string) string {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/vsi") || strings.Contains(p, ":") || r.DataDir == "" {
		return p
	}
	return filepath.Join(r.DataDir, p)
}

func (r *MetadataResolver) resolveFromDataset(layer *utils.Layer, cm *CoverageMetadata) error {
	if r.Source == nil {
		return fmt.Errorf("no raster source configured")
	}
	path := r.dataPath(layer.DataSource)
	ds, err := r.Source.Open(path)
	if err != nil {
		return err
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return fmt.Errorf("failed to read geotransform of %s: %w", layer.DataSource, err)
	}
	cm.GeoTransform = gt
	cm.XSize, cm.YSize = ds.Size()
	cm.Extent = raster.Rect{
		MinX: gt[0],
		MaxX: gt[0] + gt[1]*float64(cm.XSize) + gt[2]*float64(cm.YSize),
		MinY: gt[3] + gt[4]*float64(cm.XSize) + gt[5]*float64(cm.YSize),
		MaxY: gt[3],
	}
	cm.XRes = gt[1]
	cm.YRes = gt[5]

	n := ds.BandCount()
	if n == 0 {
		return fmt.Errorf("Raster file %s has no raster bands.  This cannot be used in a layer.", layer.DataSource)
	}
	switch ds.BandType(1) {
	case raster.Byte:
		cm.ImageMode = ImageByte
	case raster.Int16:
		cm.ImageMode = ImageInt16
	default:
		cm.ImageMode = ImageFloat32
	}
	min, max, sig := defaultInterval(cm.ImageMode)
	cm.Bands = make([]BandMetadata, n)
	for i := range cm.Bands {
		cm.Bands[i] = BandMetadata{
			Name:               "band" + strconv.Itoa(i+1),
			Interpretation:     ds.BandColorInterp(i + 1),
			UOM:                ds.BandUnit(i + 1),
			IntervalMin:        min,
			IntervalMax:        max,
			SignificantFigures: sig,
		}
	}
	cm.NativeFormat = nativeFormat(path, r.Formats)
	cm.Paths = []string{path}
	return nil
}

// nativeFormat picks the mime type of the output format whose extension
// matches the data source.
func nativeFormat(path string, formats []utils.OutputFormat) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return ""
	}
	for _, of := range formats {
		e := strings.ToLower(of.Extension)
		if e == ext || (ext == "tiff" && e == "tif") || (ext == "tif" && e == "tiff") {
			return of.MimeType
		}
	}
	return ""
}
