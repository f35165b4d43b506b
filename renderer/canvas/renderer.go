package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/badgepress/compose"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/renderer"
)

const foldGuideWidth = 0.2

// Renderer draws assembled badge pages into a PDF via github.com/tdewolff/canvas.
type Renderer struct {
	verify    bool
	foldGuide bool
	guide     color.Color
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	// Verify re-reads the produced PDF with pdfcpu and checks page count and size.
	Verify bool
	// FoldGuide draws a hairline between the halves of butterfly pages.
	FoldGuide bool
	// GuideColor defaults to light gray.
	GuideColor color.Color
}

// NewRenderer creates a renderer with default options.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer.
func NewRendererWithOptions(opts Options) *Renderer {
	guide := opts.GuideColor
	if guide == nil {
		guide = canvas.Hex("#d1d5db")
	}
	return &Renderer{verify: opts.Verify, foldGuide: opts.FoldGuide, guide: guide}
}

// Render renders the document into a PDF byte slice. Every page of the
// document has the same physical size, taken from the document itself.
func (r *Renderer) Render(doc *compose.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染文档为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, fmt.Errorf("文档尺寸无效: %gx%gmm", doc.Width, doc.Height)
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, doc.Width, doc.Height, nil)
	r.applyMeta(writer, doc.Meta)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(doc.Width, doc.Height)
		}
		if err := r.drawPage(writer, doc, page); err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", i+1, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	data := buf.Bytes()

	if r.verify {
		if err := Verify(data, len(doc.Pages), doc.Width, doc.Height); err != nil {
			return nil, err
		}
	}
	logging.Logger().Debug("pdf rendered", "pages", len(doc.Pages), "bytes", len(data))
	return data, nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// drawPage 以页面左上角为原点放置栅格；canvas 默认坐标系原点在左下角，
// 因此 y 需换算为 pageHeight - top - height。
// 每个栅格单独绘制，以便 JPEG 导出的栅格按 DCT 嵌入，PNG 导出的保持无损。
func (r *Renderer) drawPage(writer *pdf.PDF, doc *compose.Document, page compose.Page) error {
	for _, p := range page.Placements {
		if p.Raster == nil || p.Raster.Image == nil {
			continue
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("放置尺寸无效: %gx%gmm", p.Width, p.Height)
		}
		px := p.Raster.Image.Bounds().Dx()
		if px <= 0 {
			return fmt.Errorf("栅格 %s 为空", p.Raster.Label)
		}
		enc := canvas.Lossless
		if p.Raster.Lossy() {
			enc = canvas.Lossy
		}
		writer.SetImageEncoding(enc)

		c := canvas.New(doc.Width, doc.Height)
		ctx := canvas.NewContext(c)
		ctx.DrawImage(p.X, doc.Height-p.Y-p.Height, p.Raster.Image, canvas.DPMM(float64(px)/p.Width))
		c.RenderTo(writer)
	}
	if r.foldGuide && doc.Mode == layout.Butterfly {
		c := canvas.New(doc.Width, doc.Height)
		r.drawFoldGuide(canvas.NewContext(c), doc.Width, doc.Height/2)
		c.RenderTo(writer)
	}
	return nil
}

func (r *Renderer) drawFoldGuide(ctx *canvas.Context, width, y float64) {
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(r.guide)
	ctx.SetStrokeWidth(foldGuideWidth)
	ctx.SetDashes(0, 1.5, 1.5)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(width, 0)
	ctx.DrawPath(0, y, p)
	ctx.SetDashes(0)
}

// PageInfo 是 pdfcpu 读回的页面尺寸（pt）。
type PageInfo struct {
	Width  float64
	Height float64
}

// Inspect reads the PDF back with pdfcpu and reports the page sizes in points.
func Inspect(data []byte) ([]PageInfo, error) {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 页数失败: %w", err)
	}
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 页面尺寸失败: %w", err)
	}
	if len(dims) != n {
		return nil, fmt.Errorf("PDF 页数 %d 与尺寸条目 %d 不一致", n, len(dims))
	}
	pages := make([]PageInfo, 0, n)
	for _, d := range dims {
		pages = append(pages, PageInfo{Width: d.Width, Height: d.Height})
	}
	return pages, nil
}

// Verify checks that data holds pages pages of widthMM × heightMM (±0.5pt).
func Verify(data []byte, pages int, widthMM, heightMM float64) error {
	info, err := Inspect(data)
	if err != nil {
		return err
	}
	if len(info) != pages {
		return fmt.Errorf("PDF 校验失败: 期望 %d 页, 实际 %d 页", pages, len(info))
	}
	wantW, wantH := widthMM*layout.MmToPt, heightMM*layout.MmToPt
	for i, p := range info {
		if abs(p.Width-wantW) > 0.5 || abs(p.Height-wantH) > 0.5 {
			return fmt.Errorf("PDF 校验失败: 第 %d 页为 %.1fx%.1fpt, 期望 %.1fx%.1fpt", i+1, p.Width, p.Height, wantW, wantH)
		}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
