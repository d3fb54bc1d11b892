package wcs

import (
	"net/http"

	"github.com/nci/gskywcs/render"
	"github.com/nci/gskywcs/utils"
)

const (
	contentTypeSEXML = "application/vnd.ogc.se_xml; charset=UTF-8"
	contentTypeXML   = "text/xml; charset=UTF-8"
)

// exceptionVersion picks the report format for a version string. An
// unparsable or empty version gets the 1.0 report.
func exceptionVersion(version string) Version {
	v, err := ParseVersion(version)
	if err != nil {
		return Version100
	}
	return v
}

// fail records the failure on the exchange and renders the exception
// report. Nothing else is written for the request.
func (h *Handler) fail(x *Exchange, err error, version string) *Response {
	if x.Version != 0 {
		version = x.Version.String()
	}
	v := exceptionVersion(version)
	e := AsException(err, v.String())
	x.Exception = e
	x.transition(StateFailed)
	h.Log.Warn().Str("code", e.Code).Str("locator", e.Locator).Str("request", x.Operation).
		Str("version", e.Version).Msg(e.Message)

	resp := h.ExceptionReport(e, v, "")
	resp.Exchange = x
	return resp
}

// ExceptionReport renders e in the format of version v.
func (h *Handler) ExceptionReport(e *Exception, v Version, language string) *Response {
	data := &render.Exception{
		Header: render.Header{
			Version:         v.String(),
			SchemasLocation: h.Config.ServiceConfig.SchemasLocation,
			Language:        language,
		},
		Code:    e.Code,
		Locator: e.Locator,
		Message: e.Message,
	}
	if data.Header.SchemasLocation == "" {
		data.Header.SchemasLocation = utils.DefaultSchemasLocation
	}

	name, contentType := render.TplException10, contentTypeSEXML
	switch {
	case v.Is20():
		name, contentType = render.TplException20, contentTypeXML
	case v.Is11():
		name, contentType = render.TplException11, contentTypeXML
	}

	body, err := h.Renderer.Render(name, data)
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to render exception report")
		resp := newResponse("text/plain; charset=UTF-8", []byte(e.Error()))
		resp.Status = http.StatusInternalServerError
		return resp
	}
	resp := newResponse(contentType, body)
	resp.Status = e.HTTPStatus()
	return resp
}
