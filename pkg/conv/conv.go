// Package conv 提供类型转换工具，主要用于解析 YAML/JSON 配置与数据库中的松散类型字段。
package conv

import (
	"fmt"
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持各类整数/浮点数与可解析的数字字符串；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case int16:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToInt64 将 any 转为 int64，浮点数截断。
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// ToStringSlice 将 []any / []string / []int* 转为 []string。
// 数字元素格式化为十进制整数。
func ToStringSlice(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []int64:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, strconv.FormatInt(e, 10))
		}
		return out, true
	case []int32:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, strconv.FormatInt(int64(e), 10))
		}
		return out, true
	case []int:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, strconv.Itoa(e))
		}
		return out, true
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
				continue
			}
			f, ok := ToFloat64(e)
			if !ok {
				return nil, false
			}
			out = append(out, fmt.Sprintf("%.0f", f))
		}
		return out, true
	default:
		return nil, false
	}
}

// ConfigGet 从 map[string]any（如 YAML/JSON 解析结果）按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 从 config 取 int。YAML/JSON 常得到 int 或 float64，此处兼容。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if m == nil {
		return defaultVal
	}
	if i, ok := ToInt64(m[key]); ok {
		return int(i)
	}
	return defaultVal
}

// ConfigGetFloat64 从 config 取 float64，整数值同样接受。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	if m == nil {
		return defaultVal
	}
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	if _, isBool := v.(bool); isBool {
		return defaultVal
	}
	if f, ok := ToFloat64(v); ok {
		return f
	}
	return defaultVal
}

// ToInt64Slice 把 []any / []int64 / []int 转为 []int64，任一元素无法转换时返回 false。
func ToInt64Slice(v any) ([]int64, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []int64:
		return append([]int64(nil), s...), true
	case []int:
		out := make([]int64, 0, len(s))
		for _, e := range s {
			out = append(out, int64(e))
		}
		return out, true
	case []any:
		out := make([]int64, 0, len(s))
		for _, e := range s {
			i, ok := ToInt64(e)
			if !ok {
				return nil, false
			}
			out = append(out, i)
		}
		return out, true
	default:
		return nil, false
	}
}
