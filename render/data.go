package render

// Header carries the attributes shared by every document root.
type Header struct {
	Version         string
	UpdateSequence  string
	SchemasLocation string
	Language        string
	// Schema is the file name of the 1.0 root schema.
	Schema string
}

type MetadataLink struct {
	Type   string
	Format string
	Href   string
}

// Contact is the responsible party of the service. Present, HasPhone
// and HasAddress are precomputed so templates only test flags.
type Contact struct {
	Present      bool
	Person       string
	Organization string
	Position     string
	HasPhone     bool
	Voice        string
	Facsimile    string
	HasAddress   bool
	Address      string
	City         string
	Region       string
	PostCode     string
	Country      string
	Email        string
	URL          string
}

type Service struct {
	Name              string
	Title             string
	Abstract          string
	Keywords          []string
	Fees              string
	AccessConstraints string
	OnlineResource    string
	MetadataLink      string
	Contact           Contact
}

type Parameter struct {
	Name   string
	Values []string
}

type Operation struct {
	Name       string
	Parameters []Parameter
}

// CoverageSummary is one coverage in a capabilities document. A Failed
// summary is rendered as a warning comment.
type CoverageSummary struct {
	Name          string
	Title         string
	Abstract      string
	Keywords      []string
	MetadataLinks []MetadataLink
	LonLatLower   string
	LonLatUpper   string
	TimePositions []string
	SupportedCRS  []string
	Formats       []string
	Failed        bool
}

// Capabilities is the model of every capabilities version. Section is
// only used by 1.0, where a single requested section becomes the root.
type Capabilities struct {
	Header  Header
	Section string

	ShowServiceIdentification bool
	ShowServiceProvider       bool
	ShowOperationsMetadata    bool
	ShowServiceMetadata       bool
	ShowContents              bool

	Service             Service
	ServiceTypeVersions []string
	Profiles            []string
	Operations          []Operation
	PostEncoding        bool
	Formats             []string
	Interpolations      []string
	CRSs                []string
	Coverages           []CoverageSummary
	NoLayers            bool
}

type AxisDescription struct {
	Name           string
	Label          string
	Description    string
	Semantic       string
	RefSys         string
	RefSysLabel    string
	ValuesSemantic string
	ValuesType     string
	Values         []string
	HasInterval    bool
	IntervalMin    string
	IntervalMax    string
	IntervalRes    string
}

type CoverageOffering10 struct {
	Name                string
	Title               string
	Abstract            string
	Keywords            []string
	MetadataLinks       []MetadataLink
	LonLatLower         string
	LonLatUpper         string
	TimePositions       []string
	NativeSRS           string
	EnvelopeLower       string
	EnvelopeUpper       string
	GridHigh            string
	Origin              string
	OffsetX             string
	OffsetY             string
	RangeSetName        string
	RangeSetLabel       string
	RangeSetDescription string
	Axes                []AxisDescription
	NullValues          []string
	RequestResponseCRSs []string
	NativeCRSs          []string
	NativeFormat        string
	Formats             []string
}

type Describe10 struct {
	Header    Header
	Coverages []CoverageOffering10
}

type BoundingBox struct {
	CRS   string
	Lower string
	Upper string
}

type CoverageDescription11 struct {
	Name             string
	Title            string
	Abstract         string
	Keywords         []string
	MetadataLinks    []MetadataLink
	BoundingBoxes    []BoundingBox
	LonLatLower      string
	LonLatUpper      string
	GridBaseCRS      string
	GridOrigin       string
	GridOffsets      string
	TimePositions    []string
	FieldTitle       string
	FieldDescription string
	FieldIdentifier  string
	NullValues       []string
	AxisIdentifier   string
	AxisKeys         []string
	SupportedCRS     []string
	Formats          []string
}

type Describe11 struct {
	Header    Header
	Coverages []CoverageDescription11
}

// Coverages11 is the manifest part of a 1.1 multipart GetCoverage
// response.
type Coverages11 struct {
	Header     Header
	Title      string
	Identifier string
	FileRef    string
}

// Envelope is a GML 3.2 envelope with preformatted corners.
type Envelope struct {
	SRSName    string
	AxisLabels string
	UOMLabels  string
	Lower      string
	Upper      string
}

// Grid is a GML rectified grid.
type Grid struct {
	ID         string
	High       string
	AxisLabels string
	SRSName    string
	OriginID   string
	Origin     string
	OffsetX    string
	OffsetY    string
}

type NilValue struct {
	Reason string
	Value  string
}

// Field is one swe:field of a range type.
type Field struct {
	Name               string
	Definition         string
	Description        string
	UOM                string
	Interval           string
	SignificantFigures string
	NilValues          []NilValue
}

type Coverage20 struct {
	ID           string
	BoundedBy    Envelope
	Domain       Grid
	Range        []Field
	NativeFormat string
}

type Describe20 struct {
	Header    Header
	Coverages []Coverage20
}

// GMLCoverage20 is the GML part of a 2.0 multipart GetCoverage response.
type GMLCoverage20 struct {
	Header   Header
	Coverage Coverage20
	FileRef  string
	Role     string
	MimeType string
}

type Exception struct {
	Header  Header
	Code    string
	Locator string
	Message string
}
