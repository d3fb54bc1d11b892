package wcs

import (
	"errors"
	"fmt"
	"net/http"
)

// OGC exception codes reported by the service.
const (
	MissingParameterValue  = "MissingParameterValue"
	InvalidParameterValue  = "InvalidParameterValue"
	InvalidAxisLabel       = "InvalidAxisLabel"
	InvalidSubsetting      = "InvalidSubsetting"
	TooManyParameterValues = "TooManyParameterValues"
	CoverageNotDefined     = "CoverageNotDefined"
	NoSuchCoverage         = "NoSuchCoverage"
	EmptyCoverageIDList    = "emptyCoverageIdList"
	ExtentError            = "ExtentError"
	CurrentUpdateSequence  = "CurrentUpdateSequence"
	InvalidUpdateSequence  = "InvalidUpdateSequence"
	VersionNegotiation     = "VersionNegotiationFailed"
	OperationNotSupported  = "OperationNotSupported"
	OptionNotSupported     = "OptionNotSupported"
	NoApplicableCode       = "NoApplicableCode"
)

// ErrNotHandled is returned by the dispatcher for requests addressed to
// another service, or to no service at all.
var ErrNotHandled = errors.New("wcs: request not handled")

// Exception is an OGC exception raised while processing a request.
type Exception struct {
	Code    string
	Locator string
	Version string
	Message string
}

// NewException builds an Exception with a formatted message.
func NewException(code, locator, format string, args ...interface{}) *Exception {
	return &Exception{Code: code, Locator: locator, Message: fmt.Sprintf(format, args...)}
}

func (e *Exception) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Locator, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus is the transport status for the exception. Only WCS 2.0
// defines a mapping; earlier versions always answer 200.
func (e *Exception) HTTPStatus() int {
	if !isVersion20(e.Version) {
		return http.StatusOK
	}
	switch e.Code {
	case NoSuchCoverage, EmptyCoverageIDList, InvalidAxisLabel, InvalidSubsetting:
		return http.StatusNotFound
	case OperationNotSupported, OptionNotSupported:
		return http.StatusNotImplemented
	}
	return http.StatusBadRequest
}

// AsException converts any error into an Exception. Errors that are not
// already exceptions surface as NoApplicableCode with their message.
func AsException(err error, version string) *Exception {
	var e *Exception
	if errors.As(err, &e) {
		out := *e
		if out.Version == "" {
			out.Version = version
		}
		return &out
	}
	return &Exception{Code: NoApplicableCode, Version: version, Message: err.Error()}
}

func isVersion20(v string) bool {
	return len(v) >= 3 && v[:3] == "2.0"
}
