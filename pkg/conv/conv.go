// Package conv 提供类型转换、slice 转换等泛型工具，用于简化各模块中的重复逻辑。
package conv

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32、数字字符串；bool 视为 1.0/0.0。
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
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToString 将 any 转为 string。
// string 直接返回；整数与整值浮点数格式化为十进制，其余返回 ("", false)。
func ToString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// ToStringSlice 将 []string 或 []any 转为 []string，数字元素格式化为十进制。
func ToStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		return ConvertSlice(val, ToString)
	default:
		return nil
	}
}

// FlexString 是可以从 JSON 字符串或数字解码的 ID。
// 评分语料里 user_id 有时是字符串，有时是数字。
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	// 数字原样保留文本，避免大整数经 float64 丢失精度
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("conv: cannot decode %s as id", string(data))
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string { return string(f) }

// ConfigGet 从 Node 配置中读取类型为 T 的值，缺失或类型不符时返回 def。
func ConfigGet[T any](cfg map[string]any, key string, def T) T {
	if cfg == nil {
		return def
	}
	if v, ok := cfg[key].(T); ok {
		return v
	}
	return def
}

// ConfigGetInt 读取整数配置；YAML 解出 int，JSON 解出 float64，两者都接受。
func ConfigGetInt(cfg map[string]any, key string, def int) int {
	if cfg == nil {
		return def
	}
	if f, ok := ToFloat64(cfg[key]); ok {
		return int(f)
	}
	return def
}
