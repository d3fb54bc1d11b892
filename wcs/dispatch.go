package wcs

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nci/gskywcs/raster"
	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

// State is the processing stage of one exchange.
type State int

const (
	StateUnrouted State = iota
	StateVersionResolved
	StateOperationSelected
	StateCapabilities
	StateDescribe
	StateGetCoverage
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateUnrouted:          "unrouted",
	StateVersionResolved:   "version_resolved",
	StateOperationSelected: "operation_selected",
	StateCapabilities:      "capabilities",
	StateDescribe:          "describe",
	StateGetCoverage:       "get_coverage",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string { return stateNames[s] }

// Exchange follows one request through the dispatcher.
type Exchange struct {
	State     State
	Operation string
	Version   Version
	Params    Params
	// Layers are the layers enabled for the operation.
	Layers []*utils.Layer
	// Exception is set when the exchange failed.
	Exception *Exception
	// SourceFiles counts the files a GetCoverage read from.
	SourceFiles int

	log zerolog.Logger
}

func (x *Exchange) transition(s State) {
	x.State = s
	ev := x.log.Debug().Str("state", s.String()).Str("request", x.Operation)
	if x.Version != 0 {
		ev = ev.Str("version", x.Version.String())
	}
	ev.Msg("wcs exchange")
}

// Request is one incoming request: the ordered KVP pairs of a GET, or
// the body of an XML POST.
type Request struct {
	Query utils.QueryParams
	Body  []byte
}

// Response is a complete answer, ready to be written to the client.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Exchange *Exchange
}

func newResponse(contentType string, body []byte) *Response {
	h := make(http.Header)
	h.Set("Content-Type", contentType)
	return &Response{Status: http.StatusOK, Header: h, Body: body}
}

// EnabledFunc reports whether request may be served for layer.
type EnabledFunc func(layer *utils.Layer, request string) (bool, error)

// Handler serves the WCS requests of one config namespace.
type Handler struct {
	Config    *utils.Config
	Namespace string
	Source    raster.Source
	Projector raster.Projector
	TileIndex TileIndex
	Renderer  *render.Renderer
	// Enabled filters layers per request. Nil applies the enable_request
	// lists and enable_expression of the config.
	Enabled EnabledFunc
	Log     zerolog.Logger
}

var ncName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)

func canonicalOperation(request string) (string, bool) {
	for _, op := range []string{GetCapabilities, DescribeCoverage, GetCoverage} {
		if strings.EqualFold(op, request) {
			return op, true
		}
	}
	return "", false
}

// routing is what the dispatcher needs before the full parse.
type routing struct {
	service string
	version string
	request string
	xml     *Node
}

func route(req *Request) (*routing, error) {
	if len(req.Body) > 0 {
		root, err := ParseXML(req.Body)
		if err != nil {
			return nil, NewException(NoApplicableCode, "request", "%v", err)
		}
		r := &routing{request: root.Name(), xml: root}
		r.service, _ = root.Attr("service")
		r.version, _ = root.Attr("version")
		return r, nil
	}
	return &routing{
		service: req.Query.Value("SERVICE"),
		version: req.Query.Value("VERSION"),
		request: req.Query.Value("REQUEST"),
	}, nil
}

func parseParams20(r *routing, q utils.QueryParams) (*Params20, error) {
	if r.xml != nil {
		return ParseXML20(r.xml)
	}
	return ParseKVP20(q)
}

func parseParams1x(r *routing, q utils.QueryParams) (*LegacyParams, error) {
	if r.xml != nil {
		return ParseXML1x(r.xml)
	}
	return ParseKVP1x(q)
}

// asRequestException keeps exceptions raised by a parser and reports
// plain parse errors against the request.
func asRequestException(err error) *Exception {
	if e, ok := err.(*Exception); ok {
		return e
	}
	return NewException(InvalidParameterValue, "request", "%v", err)
}

// Serve dispatches one request. Requests addressed to another service
// return ErrNotHandled; every WCS failure is answered with an exception
// document.
func (h *Handler) Serve(ctx context.Context, req *Request) (*Response, error) {
	x := &Exchange{State: StateUnrouted, log: h.Log}

	r, err := route(req)
	if err != nil {
		return h.fail(x, err, "1.0.0"), nil
	}
	if !strings.EqualFold(r.service, "WCS") {
		return nil, ErrNotHandled
	}
	if r.request == "" {
		return h.fail(x, NewException(MissingParameterValue, "request", "Missing REQUEST parameter"), r.version), nil
	}
	op, ok := canonicalOperation(r.request)
	if !ok {
		return h.fail(x, NewException(InvalidParameterValue, "request", "Invalid REQUEST parameter \"%s\"", r.request), r.version), nil
	}
	x.Operation = op

	layers, err := h.enabledLayers(op, r.version)
	if err != nil {
		return h.fail(x, err, r.version), nil
	}
	if len(layers) == 0 && !(op == GetCapabilities && utils.ServiceRequestEnabled(&h.Config.ServiceConfig, GetCapabilities)) {
		return h.fail(x, NewException(InvalidParameterValue, "request",
			"WCS request not enabled. Check wcs/ows_enable_request settings."), r.version), nil
	}
	x.Layers = layers

	var p20 *Params20
	if r.version == "" {
		if op != GetCapabilities {
			return h.fail(x, NewException(InvalidParameterValue, "version", "VERSION parameter not set."), ""), nil
		}
		p20, err = parseParams20(r, req.Query)
		if err != nil {
			return h.fail(x, asRequestException(err), "2.0.1"), nil
		}
		x.Version = Version201
		if len(p20.AcceptVersions) > 0 {
			var highest Version
			for _, s := range p20.AcceptVersions {
				v, err := ParseVersion(s)
				if err != nil {
					x.Version = 0
					return h.fail(x, NewException(InvalidParameterValue, "version", "Invalid version format: %s", s), ""), nil
				}
				if v > highest {
					highest = v
				}
			}
			x.Version = highest
		}
	} else {
		v, err := ParseVersion(r.version)
		if err != nil {
			return h.fail(x, NewException(InvalidParameterValue, "version", "Invalid version format: %s", r.version), ""), nil
		}
		if op == GetCapabilities {
			v = NegotiateVersion(v, SupportedVersions)
		}
		x.Version = v
	}
	if !isSupportedVersion(x.Version) {
		v := x.Version
		x.Version = 0
		return h.fail(x, NewException(InvalidParameterValue, "version", "WCS Server does not support VERSION %s.", v), v.String()), nil
	}
	x.transition(StateVersionResolved)

	if x.Version.Is20() {
		if p20 == nil {
			p20, err = parseParams20(r, req.Query)
			if err != nil {
				return h.fail(x, asRequestException(err), x.Version.String()), nil
			}
		}
		p20.Version = x.Version.String()
		p20.Request = op
		x.Params = p20
		for i := range h.Config.Layers {
			if name := h.Config.Layers[i].Name; !ncName.MatchString(name) {
				return h.fail(x, NewException(NoApplicableCode, "", "Layer name '%s' is not a valid NCName.", name), x.Version.String()), nil
			}
		}
	} else {
		p, err := parseParams1x(r, req.Query)
		if err != nil {
			return h.fail(x, asRequestException(err), x.Version.String()), nil
		}
		p.Version = x.Version.String()
		p.Request = op
		x.Params = p
	}
	x.transition(StateOperationSelected)

	var resp *Response
	switch op {
	case GetCapabilities:
		x.transition(StateCapabilities)
		resp, err = h.getCapabilities(ctx, x)
	case DescribeCoverage:
		x.transition(StateDescribe)
		resp, err = h.describeCoverage(ctx, x)
	case GetCoverage:
		x.transition(StateGetCoverage)
		resp, err = h.getCoverage(ctx, x)
	}
	if err != nil {
		return h.fail(x, err, x.Version.String()), nil
	}
	resp.Exchange = x
	x.transition(StateDone)
	return resp, nil
}

// enabledLayers lists the layers that may serve op.
func (h *Handler) enabledLayers(op, version string) ([]*utils.Layer, error) {
	enabled := h.Enabled
	if enabled == nil {
		svc := &h.Config.ServiceConfig
		enabled = func(layer *utils.Layer, request string) (bool, error) {
			return utils.RequestEnabled(svc, layer, request, version)
		}
	}
	var layers []*utils.Layer
	for i := range h.Config.Layers {
		layer := &h.Config.Layers[i]
		ok, err := enabled(layer, op)
		if err != nil {
			return nil, err
		}
		if ok {
			layers = append(layers, layer)
		}
	}
	return layers, nil
}

// findEnabled looks a coverage up among the layers enabled for the
// exchange.
func (x *Exchange) findEnabled(name string) *utils.Layer {
	for _, l := range x.Layers {
		if strings.EqualFold(l.Name, name) {
			return l
		}
	}
	return nil
}

func (h *Handler) language(accepted []string) string {
	langs := h.Config.ServiceConfig.Languages
	for _, a := range accepted {
		for _, l := range langs {
			if strings.EqualFold(a, l) {
				return l
			}
		}
	}
	if len(langs) > 0 {
		return langs[0]
	}
	return ""
}
