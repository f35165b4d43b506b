package layout

// 该文件定义徽章模板与版面几何，供模板解析、渲染面、流水线与调试 JSON 共用。

// Template 描述一类徽章的外观；同一份文档内的所有目标共享一个模板。
type Template struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	PageSize   PageSize       `json:"pageSize"`
	Bleed      float64        `json:"bleed"` // mm，>= 0
	Background Background     `json:"background"`
	NameStyle  NameStyle      `json:"nameStyle"`
	Fields     []DisplayField `json:"fields"`
	QR         *QRSettings    `json:"qr,omitempty"`
	Meta       DocumentMeta   `json:"meta"`
}

// PageSize 记录徽章净尺寸（不含出血），同时保留 CSS 等价写法。
type PageSize struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Width     float64 `json:"width"`  // mm
	Height    float64 `json:"height"` // mm
	CSSWidth  string  `json:"cssWidth"`
	CSSHeight string  `json:"cssHeight"`
}

// Background 描述底色与背景图；二者可以同时存在，背景图覆盖底色。
type Background struct {
	Color *Color `json:"color,omitempty"`
	Image string `json:"image,omitempty"` // 本地路径或 http(s) URL
}

// NameStyle 控制姓名主标题。
type NameStyle struct {
	Color         Color   `json:"color"`
	FontSize      float64 `json:"fontSize"` // px
	Font          string  `json:"font"`
	ShowEventName bool    `json:"showEventName"`
}

// DisplayField 是徽章上的一行附加信息，例如公司或票种。
type DisplayField struct {
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	Source  string    `json:"source"` // attendee | event | ticket | custom
	Field   string    `json:"field"`
	Visible bool      `json:"visible"`
	Style   FontStyle `json:"style"`
}

// FontStyle 描述附加字段的字体。
type FontStyle struct {
	Family string  `json:"family"`
	Size   float64 `json:"size"` // px
	Color  Color   `json:"color"`
	Align  string  `json:"align,omitempty"` // left/center/right，默认 center
}

// QRSettings 控制二维码叠加层；X/Y 为中心点占徽章宽高的百分比。
type QRSettings struct {
	ShowOnFront bool    `json:"showOnFront"`
	ShowOnBack  bool    `json:"showOnBack"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Size        float64 `json:"size"` // mm
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
