package canvassurface

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/tdewolff/canvas"

	"github.com/ByLCY/badgepress/binding"
	"github.com/ByLCY/badgepress/fonts"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
	"github.com/ByLCY/badgepress/vcard"
)

const (
	pxToPt      = 0.75
	eventFontPx = 10.0
	bandFontPx  = 12.0
	bandHeight  = 12.0 // mm
	minNamePx   = 8.0
	blankRule   = "________________"
)

var (
	eventColor = color.RGBA{R: 0x4b, G: 0x55, B: 0x63, A: 0xff}
	bandColor  = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
)

type fieldLine struct {
	text  string
	field layout.DisplayField
}

// faceContent 是徽章一面上要绘制的文本。
type faceContent struct {
	blank       bool
	name        string
	event       string
	ticket      string
	ticketColor color.Color
	fields      []fieldLine
}

func (e *Element) content() faceContent {
	data := e.data
	c := faceContent{blank: binding.IsBlank(data)}
	c.name, _ = binding.Lookup(data, "attendee.name")
	c.name = strings.TrimSpace(c.name)
	c.event = binding.Interpolate(e.surf.opts.EventName, data)
	if c.event == "" {
		c.event, _ = binding.Lookup(data, "event.name")
	}
	c.ticket, _ = binding.Lookup(data, "ticket.type")
	for _, key := range []string{"ticket.colour", "ticket.color"} {
		if v, ok := binding.Lookup(data, key); ok {
			if col, err := layout.ParseColor(v); err == nil {
				c.ticketColor = rgb(col)
				break
			}
		}
	}

	for _, f := range e.surf.tpl.Fields {
		if !f.Visible {
			continue
		}
		// 标签可以引用数据，例如 "${event.name} 角色"
		label := binding.Interpolate(f.Label, data)
		if c.blank {
			if label != "" {
				c.fields = append(c.fields, fieldLine{text: label + ": " + blankRule, field: f})
			}
			continue
		}
		val, ok := binding.Field(data, f.Source, f.Field)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		text := val
		if label != "" {
			text = label + ": " + val
		}
		c.fields = append(c.fields, fieldLine{text: text, field: f})
	}
	return c
}

func (e *Element) showQR() bool {
	qr := e.surf.tpl.QR
	if qr == nil {
		return false
	}
	if e.side == surface.Back {
		return qr.ShowOnBack
	}
	return qr.ShowOnFront
}

// qrContent 生成二维码携带的 vCard；空白徽章或缺少联系人信息时为空。
func (e *Element) qrContent() string {
	if binding.IsBlank(e.data) {
		return ""
	}
	card := vcard.Card{}
	card.Name, _ = binding.Lookup(e.data, "attendee.name")
	card.Email, _ = binding.Lookup(e.data, "attendee.email")
	card.JobTitle, _ = binding.Lookup(e.data, "attendee.job_title")
	card.Company, _ = binding.Lookup(e.data, "attendee.company")
	if strings.TrimSpace(card.Name) == "" && card.Email == "" {
		return ""
	}
	return vcard.Generate(card)
}

func (e *Element) paint(ctx context.Context, p *painter, opts surface.CaptureOptions, sameOrigin bool) (bool, error) {
	tpl := e.surf.tpl
	c := e.content()
	tainted := false

	bg := opts.Background
	if tpl.Background.Color != nil {
		bg = rgb(*tpl.Background.Color)
	}
	if bg == nil {
		bg = color.White
	}
	p.fill(0, 0, p.width, p.height, bg)

	if src := tpl.Background.Image; src != "" {
		img, t, err := e.backgroundImage(ctx, src, opts, sameOrigin)
		if err != nil {
			return false, err
		}
		if img != nil {
			p.cover(img)
			tainted = t
		}
	}

	bleed := tpl.Bleed
	cx := p.width / 2
	inner := p.width - 2*bleed

	if tpl.NameStyle.ShowEventName && c.event != "" {
		face, err := e.face(ctx, layout.DefaultFieldFont, eventFontPx, eventColor, opts)
		if err != nil {
			return false, err
		}
		p.text(face, c.event, canvas.Center, cx, bleed+6)
	}

	nameBaseline := p.height * 0.42
	namePx := tpl.NameStyle.FontSize
	if namePx <= 0 {
		namePx = layout.DefaultNameFontSize
	}
	switch {
	case c.name != "":
		face, err := e.fitFace(ctx, tpl.NameStyle.Font, namePx, rgb(tpl.NameStyle.Color), c.name, inner*0.9, opts)
		if err != nil {
			return false, err
		}
		p.text(face, c.name, canvas.Center, cx, nameBaseline)
	case c.blank:
		// 手写姓名的横线
		p.fill(bleed+inner*0.15, nameBaseline, inner*0.7, 0.3, rgb(tpl.NameStyle.Color))
	}

	y := nameBaseline + namePx*layout.PxToMm*0.6 + 2
	for _, line := range c.fields {
		px := line.field.Style.Size
		if px <= 0 {
			px = layout.DefaultFieldFontSize
		}
		y += px * layout.PxToMm * 1.5
		face, err := e.face(ctx, line.field.Style.Family, px, rgb(line.field.Style.Color), opts)
		if err != nil {
			return false, err
		}
		align, x := alignAt(line.field.Style.Align, bleed+2, p.width-bleed-2)
		p.text(face, line.text, align, x, y)
	}

	if c.ticket != "" {
		col := c.ticketColor
		if col == nil {
			col = bandColor
		}
		h := bandHeight + bleed
		p.fill(0, p.height-h, p.width, h, col)
		face, err := e.face(ctx, layout.DefaultNameFont, bandFontPx, color.White, opts)
		if err != nil {
			return false, err
		}
		p.text(face, c.ticket, canvas.Center, cx, p.height-bleed-bandHeight/2+bandFontPx*layout.PxToMm*0.35)
	}

	if e.showQR() {
		if content := e.qrContent(); content != "" {
			qr := tpl.QR
			x := clamp(p.width*qr.X/100-qr.Size/2, 0, p.width-qr.Size)
			top := clamp(p.height*qr.Y/100-qr.Size/2, 0, p.height-qr.Size)
			if err := p.qr(content, x, top, qr.Size, opts.ForeignObject); err != nil {
				return false, err
			}
		}
	}
	return tainted, nil
}

func (e *Element) backgroundImage(ctx context.Context, src string, opts surface.CaptureOptions, sameOrigin bool) (image.Image, bool, error) {
	loader := e.surf.opts.Images
	if sameOrigin {
		img, err := loader.LoadSameOrigin(ctx, src)
		return img, false, err
	}
	img, tainted, err := loader.Load(ctx, src, opts.CrossOrigin)
	if err != nil {
		// 与浏览器一致：背景图加载失败时只绘制底色
		logging.Logger().Warn("background image unavailable", "element", e.marker, "src", src, "err", err)
		return nil, false, nil
	}
	return img, tainted, nil
}

// face 按样式表中的 font-display 取字体；剥离外部字体链接时改用内置字体。
func (e *Element) face(ctx context.Context, src string, px float64, col color.Color, opts surface.CaptureOptions) (*canvas.FontFace, error) {
	if src == "" {
		src = fonts.FallbackName
	}
	if opts.StripFontLinks && fonts.IsRemote(src) {
		src = fonts.FallbackName
	}
	display := style.DisplaySwap
	if v, ok := e.surf.opts.Sheet.Value(e.marker, style.PropFontDisplay); ok {
		display = v
	}
	face, err := e.surf.opts.Fonts.Face(ctx, src, px*pxToPt, col, display)
	if err != nil {
		return nil, fmt.Errorf("获取字体 %s 失败: %w", src, err)
	}
	return face, nil
}

// fitFace 缩小字号直到文本宽度不超过 maxWidth（mm）。
func (e *Element) fitFace(ctx context.Context, src string, px float64, col color.Color, text string, maxWidth float64, opts surface.CaptureOptions) (*canvas.FontFace, error) {
	for {
		face, err := e.face(ctx, src, px, col, opts)
		if err != nil {
			return nil, err
		}
		if px <= minNamePx || face.TextWidth(text) <= maxWidth {
			return face, nil
		}
		px = math.Max(minNamePx, px*0.9)
	}
}

func alignAt(align string, left, right float64) (canvas.TextAlign, float64) {
	switch strings.ToLower(align) {
	case "left", "start":
		return canvas.Left, left
	case "right", "end":
		return canvas.Right, right
	default:
		return canvas.Center, (left + right) / 2
	}
}

func rgb(c layout.Color) color.RGBA {
	return color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 0xff}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// painter 以左上角为原点、毫米为单位绘制；canvas 默认坐标系原点在左下角。
type painter struct {
	ctx    *canvas.Context
	width  float64
	height float64
	dpmm   float64
	harden bool
}

// snap 在加固模式下把坐标对齐到设备像素网格。
func (p *painter) snap(v float64) float64 {
	if !p.harden || p.dpmm <= 0 {
		return v
	}
	return math.Round(v*p.dpmm) / p.dpmm
}

func (p *painter) fill(x, y, w, h float64, col color.Color) {
	x0, y0 := p.snap(x), p.snap(y)
	x1, y1 := p.snap(x+w), p.snap(y+h)
	if x1 <= x0 || y1 <= y0 {
		return
	}
	p.ctx.SetFillColor(col)
	p.ctx.SetStrokeColor(canvas.Transparent)
	p.ctx.DrawPath(x0, p.height-y1, canvas.Rectangle(x1-x0, y1-y0))
}

// cover 居中铺满整个徽章，超出部分被裁掉。
func (p *painter) cover(img image.Image) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	dpmm := math.Min(float64(b.Dx())/p.width, float64(b.Dy())/p.height)
	w, h := float64(b.Dx())/dpmm, float64(b.Dy())/dpmm
	p.ctx.DrawImage((p.width-w)/2, (p.height-h)/2, img, canvas.DPMM(dpmm))
}

func (p *painter) image(x, y, w float64, img image.Image) {
	b := img.Bounds()
	if b.Dx() == 0 || w <= 0 {
		return
	}
	dpmm := float64(b.Dx()) / w
	h := float64(b.Dy()) / dpmm
	p.ctx.DrawImage(p.snap(x), p.height-p.snap(y)-h, img, canvas.DPMM(dpmm))
}

func (p *painter) text(face *canvas.FontFace, s string, align canvas.TextAlign, x, baseline float64) {
	line := canvas.NewTextLine(face, s, align)
	p.ctx.DrawText(p.snap(x), p.height-p.snap(baseline), line)
}

// qr 绘制二维码：vector 为真时逐模块绘制矢量方块，否则嵌入位图。
func (p *painter) qr(content string, x, y, size float64, vector bool) error {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("生成二维码失败: %w", err)
	}
	if !vector {
		px := int(math.Round(size * p.dpmm))
		p.image(x, y, size, code.Image(px))
		return nil
	}
	bitmap := code.Bitmap()
	if len(bitmap) == 0 {
		return nil
	}
	module := size / float64(len(bitmap))
	p.fill(x, y, size, size, color.White)
	for r, row := range bitmap {
		for c, on := range row {
			if on {
				p.fill(x+float64(c)*module, y+float64(r)*module, module, module, color.Black)
			}
		}
	}
	return nil
}
