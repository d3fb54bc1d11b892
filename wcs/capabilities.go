package wcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

// Service type versions advertised by every OWS capabilities document.
var serviceTypeVersions = []string{"2.0.1", "1.1.1", "1.0.0"}

const profileGeoTIFF = "http://www.opengis.net/spec/GMLCOV_geotiff-coverages/1.0/conf/geotiff-coverage"

// profiles20 pairs each 2.0 conformance class with the output mime type
// it depends on.
var profiles20 = []struct {
	url  string
	mime string
}{
	{"http://www.opengis.net/spec/WCS/2.0/conf/core", ""},
	{"http://www.opengis.net/spec/WCS_protocol-binding_get-kvp/1.0/conf/get-kvp", ""},
	{"http://www.opengis.net/spec/WCS_protocol-binding_post-xml/1.0/conf/post-xml", ""},
	{"http://www.opengis.net/spec/GMLCOV/1.0/conf/gml-coverage", ""},
	{"http://www.opengis.net/spec/GMLCOV/1.0/conf/multipart", ""},
	{"http://www.opengis.net/spec/GMLCOV/1.0/conf/special-format", ""},
	{profileGeoTIFF, "image/tiff"},
	{"http://www.opengis.net/spec/WCS_service-extension_crs/1.0/conf/crs", ""},
	{"http://www.opengis.net/spec/WCS_service-extension_scaling/1.0/conf/scaling", ""},
	{"http://www.opengis.net/spec/WCS_service-extension_range-subsetting/1.0/conf/record-subsetting", ""},
	{"http://www.opengis.net/spec/WCS_service-extension_interpolation/1.0/conf/interpolation", ""},
}

var interpolations20 = []string{"NEAREST", "AVERAGE", "BILINEAR"}

func formatPair(x, y float64) string {
	return fmt.Sprintf("%.15g %.15g", x, y)
}

func (h *Handler) header(v Version, updateSequence, language string) render.Header {
	loc := h.Config.ServiceConfig.SchemasLocation
	if loc == "" {
		loc = utils.DefaultSchemasLocation
	}
	return render.Header{
		Version:         v.String(),
		UpdateSequence:  updateSequence,
		SchemasLocation: loc,
		Language:        language,
	}
}

func (h *Handler) serviceModel() render.Service {
	svc := &h.Config.ServiceConfig
	s := render.Service{
		Name:              "WCS",
		Title:             svc.Title,
		Abstract:          svc.Abstract,
		Keywords:          svc.Keywords,
		Fees:              svc.Fees,
		AccessConstraints: svc.AccessConstraints,
		OnlineResource:    h.Config.OnlineResource(h.Namespace),
	}
	if v, ok := svc.Lookup("name"); ok {
		s.Name = v
	}
	if s.Title == "" {
		s.Title = svc.Metadata["title"]
	}
	if s.Fees == "" {
		s.Fees = "NONE"
	}
	if s.AccessConstraints == "" {
		s.AccessConstraints = "NONE"
	}
	s.MetadataLink, _ = svc.Lookup("metadatalink_href")

	c := svc.Contact
	s.Contact = render.Contact{
		Person:       c.Person,
		Organization: c.Organization,
		Position:     c.Position,
		HasPhone:     c.HasPhone(),
		Voice:        c.Voice,
		Facsimile:    c.Facsimile,
		HasAddress:   c.HasAddress(),
		Address:      c.Address,
		City:         c.City,
		Region:       c.Region,
		PostCode:     c.PostCode,
		Country:      c.Country,
		Email:        c.Email,
		URL:          c.URL,
	}
	s.Contact.Present = c.Person != "" || c.Organization != "" || c.Position != "" ||
		s.Contact.HasPhone || s.Contact.HasAddress || c.URL != ""
	return s
}

func layerTitle(layer *utils.Layer) string {
	if layer.Title != "" {
		return layer.Title
	}
	if v, ok := layer.Lookup("description"); ok {
		return v
	}
	return layer.Name
}

func layerMetadataLinks(layer *utils.Layer) []render.MetadataLink {
	href, ok := layer.Lookup("metadatalink_href")
	if !ok {
		return nil
	}
	link := render.MetadataLink{Href: href, Type: layer.Meta("metadatalink_type"), Format: layer.Meta("metadatalink_format")}
	if link.Type == "" {
		link.Type = "other"
	}
	return []render.MetadataLink{link}
}

// srsURNs lists the URN form of every advertised coordinate system.
func srsURNs(cm *CoverageMetadata) []string {
	var out []string
	for _, s := range cm.SRSList {
		if code, ok := raster.ParseEPSG(s); ok {
			out = append(out, raster.EPSGURN(code))
		}
	}
	return out
}

// coverageSummary builds the capabilities entry of a layer. A layer whose
// metadata cannot be resolved is reported as failed and logged.
func (h *Handler) coverageSummary(res *MetadataResolver, layer *utils.Layer) render.CoverageSummary {
	cm, err := res.Resolve(layer)
	if err != nil {
		h.Log.Warn().Err(err).Str("layer", layer.Name).Msg("failed to resolve coverage metadata")
		return render.CoverageSummary{Name: layer.Name, Failed: true}
	}
	return render.CoverageSummary{
		Name:          layer.Name,
		Title:         layerTitle(layer),
		Abstract:      layer.Abstract,
		Keywords:      layer.Keywords,
		MetadataLinks: layerMetadataLinks(layer),
		LonLatLower:   formatPair(cm.LLExtent.MinX, cm.LLExtent.MinY),
		LonLatUpper:   formatPair(cm.LLExtent.MaxX, cm.LLExtent.MaxY),
		TimePositions: layer.TimePosition,
		SupportedCRS:  srsURNs(cm),
		Formats:       LayerFormats(h.Config, layer),
	}
}

func (h *Handler) coverageSummaries(x *Exchange) []render.CoverageSummary {
	res := NewMetadataResolver(h.Config, h.Source, h.Projector)
	var out []render.CoverageSummary
	for _, layer := range x.Layers {
		out = append(out, h.coverageSummary(res, layer))
	}
	return out
}

// operationEnabled reports whether op is served by the service or by at
// least one layer.
func (h *Handler) operationEnabled(op string, v Version) (bool, error) {
	if utils.ServiceRequestEnabled(&h.Config.ServiceConfig, op) {
		return true, nil
	}
	layers, err := h.enabledLayers(op, v.String())
	if err != nil {
		return false, err
	}
	return len(layers) > 0, nil
}

func (h *Handler) getCapabilities(ctx context.Context, x *Exchange) (*Response, error) {
	switch {
	case x.Version.Is20():
		return h.getCapabilities20(x, x.Params.(*Params20))
	case x.Version.Is11():
		return h.getCapabilities11(x, x.Params.(*LegacyParams))
	}
	return h.getCapabilities10(x, x.Params.(*LegacyParams))
}

func (h *Handler) getCapabilities10(x *Exchange, p *LegacyParams) (*Response, error) {
	current := h.Config.ServiceConfig.UpdateSequence
	if current == "" {
		current = "0"
	}
	if err := CheckUpdateSequence(p.UpdateSequence, current); err != nil {
		return nil, err
	}

	doc := &render.Capabilities{
		Header:   h.header(x.Version, current, ""),
		Service:  h.serviceModel(),
		NoLayers: len(x.Layers) == 0,
	}
	doc.Header.Schema = "wcsCapabilities.xsd"

	switch {
	case p.Section == "", p.Section == "/":
		doc.ShowServiceIdentification = true
		doc.ShowOperationsMetadata = true
		doc.ShowContents = true
	case strings.EqualFold(p.Section, "/WCS_Capabilities/Service"):
		doc.Section = "Service"
		doc.ShowServiceIdentification = true
	case strings.EqualFold(p.Section, "/WCS_Capabilities/Capability"):
		doc.Section = "Capability"
		doc.ShowOperationsMetadata = true
	case strings.EqualFold(p.Section, "/WCS_Capabilities/ContentMetadata"):
		doc.Section = "ContentMetadata"
		doc.ShowContents = true
	default:
		return nil, NewException(InvalidParameterValue, "section", "Invalid SECTION parameter \"%s\"", p.Section)
	}

	if doc.ShowOperationsMetadata {
		doc.Operations = []render.Operation{{Name: GetCapabilities}}
		for _, op := range []string{DescribeCoverage, GetCoverage} {
			ok, err := h.operationEnabled(op, x.Version)
			if err != nil {
				return nil, err
			}
			if ok {
				doc.Operations = append(doc.Operations, render.Operation{Name: op})
			}
		}
	}
	if doc.ShowContents {
		doc.Coverages = h.coverageSummaries(x)
	}
	return h.renderDocument(render.TplCapabilities10, doc)
}

// hasSection11 reports whether a 1.1 SECTIONS value asks for name. An empty
// value asks for everything.
func hasSection11(sections, name string) bool {
	return sections == "" || strings.Contains(sections, "All") || strings.Contains(sections, name)
}

func (h *Handler) getCapabilities11(x *Exchange, p *LegacyParams) (*Response, error) {
	current := h.Config.ServiceConfig.UpdateSequence
	if err := CheckUpdateSequence(p.UpdateSequence, current); err != nil {
		return nil, err
	}

	doc := &render.Capabilities{
		Header:                    h.header(x.Version, current, ""),
		Service:                   h.serviceModel(),
		ServiceTypeVersions:       serviceTypeVersions,
		NoLayers:                  len(x.Layers) == 0,
		ShowServiceIdentification: hasSection11(p.Section, "ServiceIdentification"),
		ShowServiceProvider:       hasSection11(p.Section, "ServiceProvider"),
		ShowOperationsMetadata:    hasSection11(p.Section, "OperationsMetadata"),
		ShowContents:              hasSection11(p.Section, "Contents"),
	}

	if doc.ShowOperationsMetadata {
		var identifiers []string
		for i := range h.Config.Layers {
			identifiers = append(identifiers, h.Config.Layers[i].Name)
		}
		common := []render.Parameter{
			{Name: "service", Values: []string{"WCS"}},
			{Name: "version", Values: []string{x.Version.String()}},
		}
		doc.Operations = []render.Operation{{Name: GetCapabilities, Parameters: common}}

		ok, err := h.operationEnabled(DescribeCoverage, x.Version)
		if err != nil {
			return nil, err
		}
		if ok {
			params := append(append([]render.Parameter{}, common...),
				render.Parameter{Name: "identifiers", Values: identifiers})
			doc.Operations = append(doc.Operations, render.Operation{Name: DescribeCoverage, Parameters: params})
		}

		ok, err = h.operationEnabled(GetCoverage, x.Version)
		if err != nil {
			return nil, err
		}
		if ok {
			params := append(append([]render.Parameter{}, common...),
				render.Parameter{Name: "Identifier", Values: identifiers},
				render.Parameter{Name: "InterpolationType", Values: []string{"NEAREST_NEIGHBOUR", "BILINEAR"}},
				render.Parameter{Name: "format", Values: ServiceFormats(h.Config, x.Layers)},
				render.Parameter{Name: "store", Values: []string{"false"}},
				render.Parameter{Name: "GridBaseCRS", Values: []string{"urn:ogc:def:crs:epsg::4326"}},
			)
			doc.Operations = append(doc.Operations, render.Operation{Name: GetCoverage, Parameters: params})
		}
	}
	if doc.ShowContents {
		doc.Coverages = h.coverageSummaries(x)
	}
	return h.renderDocument(render.TplCapabilities11, doc)
}

// hasSection20 reports whether the SECTIONS list asks for name. No list
// asks for everything.
func hasSection20(sections []string, name string) bool {
	if len(sections) == 0 {
		return true
	}
	for _, s := range sections {
		if strings.EqualFold(s, "All") || strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// serviceCRSURIs lists the coordinate systems of the service as URIs,
// falling back to those of the layers.
func (h *Handler) serviceCRSURIs() []string {
	var out []string
	seen := map[int]bool{}
	add := func(list string) {
		for _, tok := range strings.Fields(list) {
			if code, ok := raster.ParseEPSG(tok); ok && !seen[code] {
				seen[code] = true
				out = append(out, raster.EPSGURI(code))
			}
		}
	}
	svc := &h.Config.ServiceConfig
	add(svc.SRS)
	add(svc.Metadata["srs"])
	if len(out) == 0 {
		for i := range h.Config.Layers {
			add(h.Config.Layers[i].SRS)
		}
	}
	return out
}

func (h *Handler) profiles() []string {
	var out []string
	for _, p := range profiles20 {
		if p.mime != "" && !hasMimeType(h.Config.OutputFormats, p.mime) {
			continue
		}
		out = append(out, p.url)
	}
	return out
}

func hasMimeType(formats []utils.OutputFormat, mime string) bool {
	for _, of := range formats {
		if strings.EqualFold(of.MimeType, mime) {
			return true
		}
	}
	return false
}

func (h *Handler) getCapabilities20(x *Exchange, p *Params20) (*Response, error) {
	current := h.Config.ServiceConfig.UpdateSequence
	if err := CheckUpdateSequence(p.UpdateSequence, current); err != nil {
		return nil, err
	}

	doc := &render.Capabilities{
		Header:                    h.header(x.Version, current, h.language(p.AcceptLanguages)),
		Service:                   h.serviceModel(),
		ServiceTypeVersions:       serviceTypeVersions,
		PostEncoding:              true,
		NoLayers:                  len(x.Layers) == 0,
		ShowServiceIdentification: hasSection20(p.Sections, "ServiceIdentification"),
		ShowServiceProvider:       hasSection20(p.Sections, "ServiceProvider"),
		ShowOperationsMetadata:    hasSection20(p.Sections, "OperationsMetadata"),
		ShowServiceMetadata:       hasSection20(p.Sections, "ServiceMetadata"),
		ShowContents:              hasSection20(p.Sections, "Contents"),
	}
	if doc.ShowServiceIdentification {
		doc.Profiles = h.profiles()
	}
	if doc.ShowOperationsMetadata {
		doc.Operations = []render.Operation{{Name: GetCapabilities}}
		for _, op := range []string{DescribeCoverage, GetCoverage} {
			ok, err := h.operationEnabled(op, x.Version)
			if err != nil {
				return nil, err
			}
			if ok {
				doc.Operations = append(doc.Operations, render.Operation{Name: op})
			}
		}
	}
	if doc.ShowServiceMetadata {
		doc.Formats = ServiceFormats(h.Config, x.Layers)
		doc.Interpolations = interpolations20
		doc.CRSs = h.serviceCRSURIs()
	}
	if doc.ShowContents {
		doc.Coverages = h.coverageSummaries(x)
	}
	return h.renderDocument(render.TplCapabilities20, doc)
}

// renderDocument renders an XML document response.
func (h *Handler) renderDocument(name string, data interface{}) (*Response, error) {
	body, err := h.Renderer.Render(name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return newResponse(contentTypeXML, body), nil
}
