package utils

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// ParseEnableRequest evaluates an enable_request list for request.
// Entries are request names, "*" for every request, and the same
// prefixed with "!" to disable. Later entries override earlier ones.
// decided is false when no entry concerns request.
func ParseEnableRequest(entries []string, request string) (enabled bool, decided bool) {
	for _, entry := range entries {
		for _, token := range strings.Fields(entry) {
			disable := strings.HasPrefix(token, "!")
			name := strings.TrimPrefix(token, "!")
			if name == "*" || strings.EqualFold(name, request) {
				enabled = !disable
				decided = true
			}
		}
	}
	return enabled, decided
}

var enableVariables = map[string]struct{}{"service": {}, "request": {}, "version": {}, "layer": {}}

// CompileEnableExpression parses a layer enable_expression. An empty
// expression compiles to nil.
func CompileEnableExpression(expression string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(expression)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(expression)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := enableVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are service, request, version, layer", varName)
			}
		}
	}
	return expr, nil
}

// EvalEnableExpression evaluates a layer enable_expression. A nil
// expression always enables.
func EvalEnableExpression(expr *goeval.EvaluableExpression, service, request, version, layer string) (bool, error) {
	if expr == nil {
		return true, nil
	}
	parameters := map[string]interface{}{"service": service, "request": request, "version": version, "layer": layer}
	result, err := expr.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("enable expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("enable expression: result '%v' is not boolean", result)
	}
	return val, nil
}

// RequestEnabled reports whether request may be served for layer: the
// layer list decides first, then the service list. A layer
// enable_expression must also hold.
func RequestEnabled(svc *ServiceConfig, layer *Layer, request, version string) (bool, error) {
	enabled, decided := ParseEnableRequest(layer.EnableRequest, request)
	if !decided {
		enabled, _ = ParseEnableRequest(svc.EnableRequest, request)
	}
	if !enabled {
		return false, nil
	}
	expr, err := CompileEnableExpression(layer.EnableExpression)
	if err != nil {
		return false, fmt.Errorf("layer %s: %v", layer.Name, err)
	}
	return EvalEnableExpression(expr, "WCS", request, version, layer.Name)
}

// ServiceRequestEnabled reports whether the service level list enables
// request on its own.
func ServiceRequestEnabled(svc *ServiceConfig, request string) bool {
	enabled, _ := ParseEnableRequest(svc.EnableRequest, request)
	return enabled
}
