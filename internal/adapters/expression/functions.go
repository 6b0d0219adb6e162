package expression

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dop251/goja"
)

// installBuiltins binds the whitelisted helpers onto vm. The emitted program
// only ever calls names prefixed with "__".
func installBuiltins(vm *goja.Runtime, state *runtimeState) error {
	natives := map[string]func(goja.FunctionCall) goja.Value{
		"__v": func(call goja.FunctionCall) goja.Value {
			value, ok := state.lookup(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return vm.ToValue(value)
		},
		"__eq": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(looseEqual(export(call.Argument(0)), export(call.Argument(1))))
		},
		"__fn_contains": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(containsValue(export(call.Argument(0)), export(call.Argument(1))))
		},
		"__fn_len": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(lengthOf(export(call.Argument(0))))
		},
		"__fn_lower": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(strings.ToLower(stringOf(export(call.Argument(0)))))
		},
		"__fn_upper": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(strings.ToUpper(stringOf(export(call.Argument(0)))))
		},
		"__fn_abs": func(call goja.FunctionCall) goja.Value {
			n, ok := toFloat(export(call.Argument(0)))
			if !ok {
				return vm.ToValue(math.NaN())
			}
			return vm.ToValue(math.Abs(n))
		},
		"__fn_min": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(fold(call.Arguments, math.Min))
		},
		"__fn_max": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(fold(call.Arguments, math.Max))
		},
		"__fn_startsWith": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(strings.HasPrefix(stringOf(export(call.Argument(0))), stringOf(export(call.Argument(1)))))
		},
		"__fn_endsWith": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(strings.HasSuffix(stringOf(export(call.Argument(0))), stringOf(export(call.Argument(1)))))
		},
		"__fn_now": func(goja.FunctionCall) goja.Value {
			return vm.ToValue(time.Now().UnixMilli())
		},
		"__fn_random": func(goja.FunctionCall) goja.Value {
			return vm.ToValue(rand.Float64())
		},
	}

	for name, fn := range natives {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(h, stringOf(needle))
	case []interface{}:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		_, ok := h[stringOf(needle)]
		return ok
	}

	rv := reflect.ValueOf(haystack)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(rv.Index(i).Interface(), needle) {
				return true
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return rv.MapIndex(reflect.ValueOf(stringOf(needle)).Convert(rv.Type().Key())).IsValid()
		}
	}
	return false
}

func lengthOf(v interface{}) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(val)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return 0
}

func stringOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func fold(args []goja.Value, pick func(a, b float64) float64) float64 {
	result := math.NaN()
	for i, arg := range args {
		n, ok := toFloat(export(arg))
		if !ok {
			return math.NaN()
		}
		if i == 0 {
			result = n
			continue
		}
		result = pick(result, n)
	}
	return result
}
