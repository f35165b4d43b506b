package binding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${attendee.name} 之类占位符替换为 data 中的值。
// 若 data 为空或路径不存在，则保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if val, ok := Lookup(data, groups[1]); ok {
			return val
		}
		return match
	})
}

// Lookup 按点号路径（支持 items[0] 下标）读取值并格式化为字符串。
// 缺失或为 null 的值返回 ok=false。
func Lookup(data any, path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" || data == nil {
		return "", false
	}
	val, ok := resolvePath(data, path)
	if !ok || val == nil {
		return "", false
	}
	switch v := val.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}

// Field 读取徽章字段：source 为 attendee/event/ticket/custom，field 为字段名。
// custom 字段存放在 attendee.custom 下。
func Field(data any, source, field string) (string, bool) {
	switch source {
	case "custom":
		return Lookup(data, "attendee.custom."+field)
	case "":
		return Lookup(data, "attendee."+field)
	default:
		return Lookup(data, source+"."+field)
	}
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 && rest[0] == '[' {
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	c, ok := current.([]any)
	if !ok || idx < 0 || idx >= len(c) {
		return nil, false
	}
	return c[idx], true
}

// Blank 返回空白徽章（现场登记用）的数据：姓名留空，字段只保留标签。
func Blank(eventName string) map[string]any {
	return map[string]any{
		"blank":    true,
		"attendee": map[string]any{"name": ""},
		"event":    map[string]any{"name": eventName},
	}
}

// IsBlank 判断数据是否为空白徽章。
func IsBlank(data any) bool {
	v, ok := Lookup(data, "blank")
	return ok && v == "true"
}
