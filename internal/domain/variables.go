package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// LookupVariable resolves path against vars. A dotted path is first tried as a
// literal key and then as a JSONPath into nested values.
func LookupVariable(vars map[string]interface{}, path string) (interface{}, bool) {
	if vars == nil || path == "" {
		return nil, false
	}
	path = strings.TrimPrefix(path, "$.")
	if value, ok := vars[path]; ok {
		return value, true
	}
	if !strings.ContainsAny(path, ".[") {
		return nil, false
	}
	value, err := jsonpath.JsonPathLookup(vars, "$."+path)
	if err != nil {
		return nil, false
	}
	return value, true
}

var templatePattern = regexp.MustCompile(`\{\$\.([^{}]+)\}`)

// ResolveTemplate substitutes every {$.path} placeholder in s with the value
// found in vars. Unresolvable placeholders become empty.
func ResolveTemplate(s string, vars map[string]interface{}) string {
	if !strings.Contains(s, "{$.") {
		return s
	}
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		path := templatePattern.FindStringSubmatch(match)[1]
		value, ok := LookupVariable(vars, path)
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}
