package layout

import "strings"

// PageSizes 是常用的徽章尺寸预设。
var PageSizes = []PageSize{
	{ID: "a7", Name: "A7", Width: 74, Height: 105, CSSWidth: "74mm", CSSHeight: "105mm"},
	{ID: "a6", Name: "A6", Width: 105, Height: 148, CSSWidth: "105mm", CSSHeight: "148mm"},
	{ID: "a5", Name: "A5", Width: 148, Height: 210, CSSWidth: "148mm", CSSHeight: "210mm"},
	{ID: "custom_badge", Name: `Badge (3.5" x 4.25")`, Width: 89, Height: 108, CSSWidth: "89mm", CSSHeight: "108mm"},
}

// DefaultPageSize 为 A7。
var DefaultPageSize = PageSizes[0]

// LookupPageSize 按 ID 或名称（不区分大小写）查找预设。
func LookupPageSize(key string) (PageSize, bool) {
	for _, ps := range PageSizes {
		if strings.EqualFold(ps.ID, key) || strings.EqualFold(ps.Name, key) {
			return ps, true
		}
	}
	return PageSize{}, false
}
