package compose

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/surface"
)

// ErrPageSizeMismatch 表示新页面与文档首页尺寸不一致。
var ErrPageSizeMismatch = errors.New("compose: 页面尺寸与文档不一致")

// 尺寸比较容差（mm）。
const sizeEpsilon = 0.01

// Raster 是一张已导出的徽章面，Width/Height 为放置尺寸（mm）。
type Raster struct {
	Image   image.Image
	Width   float64
	Height  float64
	Side    surface.Side
	Rotated bool
	Label   string
	// Format 为导出编码（"jpeg" | "png"），决定嵌入 PDF 时是否有损。
	Format string
}

// Lossy reports whether the raster was exported with a lossy codec.
func (r *Raster) Lossy() bool { return r.Format == "jpeg" }

// Placement 以页面左上角为原点（mm）。
type Placement struct {
	Raster *Raster
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Page 是一张物理页面。
type Page struct {
	Width      float64
	Height     float64
	Placements []Placement
}

// Document 是最终输出的页面集合，所有页面尺寸相同。
type Document struct {
	Mode        layout.PagingMode
	Width       float64
	Height      float64
	Orientation layout.Orientation
	Meta        layout.DocumentMeta
	Pages       []Page
}

// Assembler 按输入顺序把栅格放入页面。
type Assembler struct {
	doc Document
}

// NewAssembler creates an empty assembler carrying meta into the document.
func NewAssembler(meta layout.DocumentMeta) *Assembler {
	return &Assembler{doc: Document{Meta: meta}}
}

// AddPage appends one page holding r at full size (sequential mode). The first
// page fixes the document size and orientation.
func (a *Assembler) AddPage(geom layout.Geometry, r *Raster) error {
	if r == nil || r.Image == nil {
		return fmt.Errorf("compose: 缺少可放置的栅格")
	}
	page := Page{
		Width:  geom.PageWidth,
		Height: geom.PageHeight,
		Placements: []Placement{
			{Raster: r, Width: geom.BadgeWidth, Height: geom.BadgeHeight},
		},
	}
	return a.append(geom, page)
}

// AddPair appends one butterfly page: front on the top half, back rotated by
// 180 degrees on the bottom half. A missing back leaves the bottom half empty;
// a pair without any face adds nothing and reports false.
func (a *Assembler) AddPair(geom layout.Geometry, front, back *Raster) (bool, error) {
	if front != nil && front.Image == nil {
		front = nil
	}
	if back != nil && back.Image == nil {
		back = nil
	}
	if front == nil && back == nil {
		return false, nil
	}

	page := Page{Width: geom.PageWidth, Height: geom.PageHeight}
	if front != nil {
		page.Placements = append(page.Placements, Placement{
			Raster: front,
			Width:  geom.BadgeWidth,
			Height: geom.BadgeHeight,
		})
	}
	if back != nil {
		if !back.Rotated {
			rotated := *back
			rotated.Image = Rotate180(back.Image)
			rotated.Rotated = true
			back = &rotated
		}
		page.Placements = append(page.Placements, Placement{
			Raster: back,
			Y:      geom.BadgeHeight,
			Width:  geom.BadgeWidth,
			Height: geom.BadgeHeight,
		})
	}
	if err := a.append(geom, page); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Assembler) append(geom layout.Geometry, page Page) error {
	if len(a.doc.Pages) == 0 {
		a.doc.Mode = geom.Mode
		a.doc.Width = geom.PageWidth
		a.doc.Height = geom.PageHeight
		a.doc.Orientation = geom.PageOrientation
	} else if math.Abs(a.doc.Width-page.Width) > sizeEpsilon || math.Abs(a.doc.Height-page.Height) > sizeEpsilon {
		return fmt.Errorf("%w: %gx%gmm, 文档为 %gx%gmm", ErrPageSizeMismatch, page.Width, page.Height, a.doc.Width, a.doc.Height)
	}
	a.doc.Pages = append(a.doc.Pages, page)
	logging.Logger().Debug("page assembled", "page", len(a.doc.Pages), "placements", len(page.Placements))
	return nil
}

// Len returns the number of pages assembled so far.
func (a *Assembler) Len() int { return len(a.doc.Pages) }

// Document returns the assembled document.
func (a *Assembler) Document() *Document {
	doc := a.doc
	return &doc
}
