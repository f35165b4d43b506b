package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/badgepress/dsl"
)

// 模板默认值。
var (
	DefaultNameColor     = Color{R: 0x11, G: 0x18, B: 0x27}
	DefaultFieldColor    = Color{R: 0x37, G: 0x41, B: 0x51}
	DefaultNameFontSize  = 24.0 // px
	DefaultFieldFontSize = 14.0 // px
	DefaultNameFont      = "go-bold"
	DefaultFieldFont     = "go-regular"
)

// Build 根据模板 DSL 的 AST 生成 Template，并校验尺寸约束。
func Build(doc *dsl.Document) (*Template, error) {
	if doc == nil {
		return nil, fmt.Errorf("模板文档为空")
	}
	t := &Template{
		ID:       strings.ToLower(doc.Name) + "-" + doc.Version,
		Name:     doc.Name,
		PageSize: DefaultPageSize,
		NameStyle: NameStyle{
			Color:         DefaultNameColor,
			FontSize:      DefaultNameFontSize,
			Font:          DefaultNameFont,
			ShowEventName: true,
		},
		Meta: DocumentMeta{Title: doc.Name, Creator: "badgepress"},
	}

	for _, section := range doc.Sections {
		var err error
		switch section.Kind {
		case "page":
			err = applyPage(t, section.Block)
		case "background":
			err = applyBackground(t, section.Block)
		case "name":
			err = applyName(t, section.Block)
		case "field":
			var f DisplayField
			f, err = parseField(section)
			if err == nil {
				t.Fields = append(t.Fields, f)
			}
		case "qr":
			t.QR, err = parseQR(section.Block)
		case "meta":
			applyMeta(&t.Meta, section.Block)
		default:
			err = fmt.Errorf("未知的模板段落 %q", section.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("%s 段落（第 %d 行）: %w", section.Kind, section.Pos.Line, err)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func applyPage(t *Template, block *dsl.Block) error {
	if v := block.Get("size"); v != nil {
		ps, ok := LookupPageSize(v.Raw())
		if !ok {
			return fmt.Errorf("暂不支持的徽章尺寸：%s", v.Raw())
		}
		t.PageSize = ps
	}
	custom := false
	if v := block.Get("width"); v != nil {
		t.PageSize.Width = ParseRawLengthStr(v.Raw()).ToMM()
		custom = true
	}
	if v := block.Get("height"); v != nil {
		t.PageSize.Height = ParseRawLengthStr(v.Raw()).ToMM()
		custom = true
	}
	if v := block.Get("orientation"); v != nil && strings.EqualFold(v.Raw(), string(Landscape)) {
		if t.PageSize.Width < t.PageSize.Height {
			t.PageSize.Width, t.PageSize.Height = t.PageSize.Height, t.PageSize.Width
			custom = true
		}
	}
	if custom {
		t.PageSize.ID = "custom"
		t.PageSize.Name = "Custom"
		t.PageSize.CSSWidth = FormatMM(t.PageSize.Width)
		t.PageSize.CSSHeight = FormatMM(t.PageSize.Height)
	}
	if v := block.Get("bleed"); v != nil {
		t.Bleed = ParseRawLengthStr(v.Raw()).ToMM()
	}
	return nil
}

func applyBackground(t *Template, block *dsl.Block) error {
	if v := block.Get("color"); v != nil {
		c, err := parseColor(v.Raw())
		if err != nil {
			return err
		}
		t.Background.Color = &c
	}
	if v := block.Get("image"); v != nil {
		t.Background.Image = v.Raw()
	}
	return nil
}

func applyName(t *Template, block *dsl.Block) error {
	if v := block.Get("color"); v != nil {
		c, err := parseColor(v.Raw())
		if err != nil {
			return err
		}
		t.NameStyle.Color = c
	}
	if v := block.Get("size"); v != nil {
		t.NameStyle.FontSize = parsePx(v.Raw())
	}
	if v := block.Get("font"); v != nil {
		t.NameStyle.Font = v.Raw()
	}
	if v := block.Get("event"); v != nil {
		show, err := v.Bool()
		if err != nil {
			return err
		}
		t.NameStyle.ShowEventName = show
	}
	return nil
}

func parseField(section *dsl.Section) (DisplayField, error) {
	f := DisplayField{
		ID:      section.ID,
		Source:  "attendee",
		Field:   section.ID,
		Visible: true,
		Style: FontStyle{
			Family: DefaultFieldFont,
			Size:   DefaultFieldFontSize,
			Color:  DefaultFieldColor,
			Align:  "center",
		},
	}
	if f.ID == "" {
		return f, fmt.Errorf("field 段落缺少名称")
	}
	block := section.Block
	if v := block.Get("label"); v != nil {
		f.Label = v.Raw()
	}
	if v := block.Get("source"); v != nil {
		switch src := strings.ToLower(v.Raw()); src {
		case "attendee", "event", "ticket", "custom":
			f.Source = src
		default:
			return f, fmt.Errorf("字段来源 %q 无效", v.Raw())
		}
	}
	if v := block.Get("field"); v != nil {
		f.Field = v.Raw()
	}
	if v := block.Get("visible"); v != nil {
		visible, err := v.Bool()
		if err != nil {
			return f, err
		}
		f.Visible = visible
	}
	if v := block.Get("font"); v != nil {
		f.Style.Family = v.Raw()
	}
	if v := block.Get("size"); v != nil {
		f.Style.Size = parsePx(v.Raw())
	}
	if v := block.Get("color"); v != nil {
		c, err := parseColor(v.Raw())
		if err != nil {
			return f, err
		}
		f.Style.Color = c
	}
	if v := block.Get("align"); v != nil {
		f.Style.Align = strings.ToLower(v.Raw())
	}
	return f, nil
}

func parseQR(block *dsl.Block) (*QRSettings, error) {
	qr := &QRSettings{ShowOnFront: true, X: 50, Y: 80, Size: 18}
	for _, key := range []string{"front", "back"} {
		v := block.Get(key)
		if v == nil {
			continue
		}
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		if key == "front" {
			qr.ShowOnFront = b
		} else {
			qr.ShowOnBack = b
		}
	}
	if v := block.Get("x"); v != nil {
		qr.X = ParseRawLengthStr(v.Raw()).Value
	}
	if v := block.Get("y"); v != nil {
		qr.Y = ParseRawLengthStr(v.Raw()).Value
	}
	if v := block.Get("size"); v != nil {
		qr.Size = ParseRawLengthStr(v.Raw()).ToMM()
	}
	if qr.X < 0 || qr.X > 100 || qr.Y < 0 || qr.Y > 100 {
		return nil, fmt.Errorf("二维码位置必须在 0-100%% 之间 (x=%g y=%g)", qr.X, qr.Y)
	}
	return qr, nil
}

func applyMeta(meta *DocumentMeta, block *dsl.Block) {
	for _, e := range block.Entries {
		switch strings.ToLower(e.Key) {
		case "title":
			meta.Title = e.Value.Raw()
		case "author":
			meta.Author = e.Value.Raw()
		case "subject":
			meta.Subject = e.Value.Raw()
		case "creator":
			meta.Creator = e.Value.Raw()
		case "keywords":
			meta.Keywords = nil
			for _, kw := range strings.Split(e.Value.Raw(), ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					meta.Keywords = append(meta.Keywords, kw)
				}
			}
		}
	}
}

// parsePx 把字号统一为 CSS px；无单位数值视为 px。
func parsePx(value string) float64 {
	l := ParseRawLengthStr(value)
	if l.Unit == UnitNone {
		return l.Value
	}
	return l.ToPX()
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa (alpha ignored).
func ParseColor(value string) (Color, error) { return parseColor(value) }

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(value) {
	case 3:
		r := strings.Repeat(string(value[0]), 2)
		g := strings.Repeat(string(value[1]), 2)
		b := strings.Repeat(string(value[2]), 2)
		return Color{R: mustHex(r), G: mustHex(g), B: mustHex(b)}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}
