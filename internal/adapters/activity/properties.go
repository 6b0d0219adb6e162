package activity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eleven-am/flowcore/internal/ports"
	json "github.com/eleven-am/flowcore/internal/xjson"
)

func properties(actx *ports.ActivityContext) map[string]interface{} {
	if actx.Properties != nil {
		return actx.Properties
	}
	if actx.Activity != nil && actx.Activity.Properties != nil {
		return actx.Activity.Properties
	}
	return map[string]interface{}{}
}

func stringProp(props map[string]interface{}, key string) string {
	value, ok := props[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(value)
}

// intProp reads an integer property. ok is false when the key is absent.
func intProp(props map[string]interface{}, key string) (n int, ok bool, err error) {
	value, present := props[key]
	if !present || value == nil {
		return 0, false, nil
	}

	switch v := value.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, true, fmt.Errorf("property %s: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("property %s: unsupported type %T", key, value)
	}
}

// decodeProp re-shapes an untyped property into dst.
func decodeProp(props map[string]interface{}, key string, dst interface{}) (bool, error) {
	value, ok := props[key]
	if !ok || value == nil {
		return false, nil
	}
	if err := json.Convert(value, dst); err != nil {
		return true, fmt.Errorf("property %s: %w", key, err)
	}
	return true, nil
}

func errorText(err error) string {
	if err == nil {
		return "rejected"
	}
	return err.Error()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
