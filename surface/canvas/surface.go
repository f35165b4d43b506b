// Package canvassurface renders badge faces with github.com/tdewolff/canvas and
// exposes them as surface.Element values for the capture pipeline.
package canvassurface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/badgepress/fonts"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
)

// DefaultMaxPixels 是单次截图允许的最大像素数。
const DefaultMaxPixels = 64 << 20

// ErrForeignContent 表示当前环境不支持矢量/外部内容渲染。
var ErrForeignContent = errors.New("canvassurface: foreign content rendering unavailable")

// Options configures a Surface.
type Options struct {
	Sheet  *style.Sheet
	Fonts  *fonts.Catalog
	Images *ImageLoader
	// EventName overrides event.name from the badge data in the header.
	EventName string
	// DisableForeignContent makes every capture with ForeignObject fail.
	DisableForeignContent bool
	// MaxPixels bounds box×scale²; 0 selects DefaultMaxPixels.
	MaxPixels int
}

// Surface mounts badge faces for one template.
type Surface struct {
	tpl  *layout.Template
	opts Options
}

// New creates a surface for tpl. Missing collaborators get defaults.
func New(tpl *layout.Template, opts Options) *Surface {
	if opts.Sheet == nil {
		opts.Sheet = style.NewSheet()
	}
	if opts.Fonts == nil {
		opts.Fonts = fonts.NewCatalog(nil)
	}
	if opts.Images == nil {
		opts.Images = NewImageLoader(LoaderOptions{})
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Surface{tpl: tpl, opts: opts}
}

// Sheet returns the style sheet the surface consults.
func (s *Surface) Sheet() *style.Sheet { return s.opts.Sheet }

// Fonts returns the font catalog.
func (s *Surface) Fonts() *fonts.Catalog { return s.opts.Fonts }

// Mount creates the element for one face of badge index. Fonts used by the
// template start loading immediately. Back faces are mounted mirrored, as on a
// flippable card, until the style sheet neutralises the transform.
func (s *Surface) Mount(index int, data any, side surface.Side) *Element {
	for _, src := range s.fontSources() {
		s.opts.Fonts.Request(src)
	}
	return &Element{
		surf:     s,
		marker:   fmt.Sprintf("badge-%d-%s", index, side),
		data:     data,
		side:     side,
		mirrored: side == surface.Back,
	}
}

func (s *Surface) fontSources() []string {
	srcs := []string{s.tpl.NameStyle.Font}
	for _, f := range s.tpl.Fields {
		srcs = append(srcs, f.Style.Family)
	}
	out := srcs[:0]
	seen := map[string]bool{}
	for _, src := range srcs {
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}

// Element is one mounted badge face.
type Element struct {
	surf     *Surface
	marker   string
	data     any
	side     surface.Side
	hidden   bool
	mirrored bool
}

var (
	_ surface.Element       = (*Element)(nil)
	_ surface.Prober        = (*Element)(nil)
	_ surface.Untransformer = (*Element)(nil)
)

func (e *Element) Marker() string { return e.marker }

// SetHidden toggles visibility, as display:none would.
func (e *Element) SetHidden(hidden bool) { e.hidden = hidden }

func (e *Element) Hidden() bool { return e.hidden }

// Box 返回 CSS 像素尺寸；隐藏元素没有布局尺寸。
func (e *Element) Box() surface.Box {
	if e.hidden || e.surf.tpl == nil {
		return surface.Box{}
	}
	w, h := e.surf.tpl.BadgeSize()
	return surface.Box{Width: w * layout.MmToPx, Height: h * layout.MmToPx}
}

// HasContent reports whether the face would show any text or image.
func (e *Element) HasContent() bool {
	tpl := e.surf.tpl
	if tpl == nil {
		return false
	}
	if tpl.Background.Image != "" || (e.showQR() && e.qrContent() != "") {
		return true
	}
	c := e.content()
	if c.blank || c.name != "" || c.ticket != "" {
		return true
	}
	if tpl.NameStyle.ShowEventName && c.event != "" {
		return true
	}
	return len(c.fields) > 0
}

// Probe checks a capture strategy without rendering.
func (e *Element) Probe(opts surface.CaptureOptions) error {
	if opts.ForeignObject && e.surf.opts.DisableForeignContent {
		return ErrForeignContent
	}
	box := e.Box()
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	w, h := math.Round(box.Width*scale), math.Round(box.Height*scale)
	if w*h > float64(e.surf.opts.MaxPixels) {
		return fmt.Errorf("画布 %.0fx%.0f 超出像素上限 %d", w, h, e.surf.opts.MaxPixels)
	}
	return nil
}

// Capture renders the face at opts.Scale.
func (e *Element) Capture(ctx context.Context, opts surface.CaptureOptions) (surface.Buffer, error) {
	if e.Box().Empty() {
		return nil, fmt.Errorf("元素 %s 没有布局尺寸", e.marker)
	}
	if opts.ForeignObject && e.surf.opts.DisableForeignContent {
		return nil, ErrForeignContent
	}
	img, tainted, err := e.render(ctx, opts, false)
	if err != nil {
		return nil, err
	}
	return &buffer{el: e, opts: opts, img: img, tainted: tainted}, nil
}

// Untransformed returns the same face shown without the flip transform.
func (e *Element) Untransformed() surface.Element {
	c := *e
	c.mirrored = false
	return &c
}

// flipped 背面默认镜像显示；样式表覆盖 transform: none 后恢复正向。
func (e *Element) flipped() bool {
	if !e.mirrored {
		return false
	}
	v, ok := e.surf.opts.Sheet.Value(e.marker, style.PropTransform)
	return !ok || v != style.TransformNone
}

func (e *Element) render(ctx context.Context, opts surface.CaptureOptions, sameOrigin bool) (*image.RGBA, bool, error) {
	w, h := e.surf.tpl.BadgeSize()
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	dpmm := layout.MmToPx * scale

	c := canvas.New(w, h)
	p := &painter{
		ctx:    canvas.NewContext(c),
		width:  w,
		height: h,
		dpmm:   dpmm,
		harden: opts.Harden,
	}
	tainted, err := e.paint(ctx, p, opts, sameOrigin)
	if err != nil {
		return nil, false, err
	}

	img := rasterizer.Draw(c, canvas.DPMM(dpmm), canvas.DefaultColorSpace)
	if e.flipped() {
		img = mirror(img)
	}
	logging.Logger().Debug("face rendered", "element", e.marker, "size", img.Bounds().Size(), "tainted", tainted)
	return img, tainted, nil
}

// mirror 水平翻转图像。
func mirror(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(b.Min.X+x, b.Min.Y+y)
			di := dst.PixOffset(b.Dx()-1-x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
