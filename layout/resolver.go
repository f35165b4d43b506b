package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidTemplate 表示模板的尺寸或出血不满足约束。
var ErrInvalidTemplate = errors.New("layout: 模板无效")

// Geometry 是某个模板在某种分页模式下的物理尺寸（单位：mm）。
type Geometry struct {
	Mode PagingMode `json:"mode"`
	// 含出血的单张徽章尺寸
	BadgeWidth  float64     `json:"badgeWidth"`
	BadgeHeight float64     `json:"badgeHeight"`
	Orientation Orientation `json:"orientation"`
	// 物理页面尺寸；Butterfly 模式下高度为徽章的两倍
	PageWidth       float64     `json:"pageWidth"`
	PageHeight      float64     `json:"pageHeight"`
	PageOrientation Orientation `json:"pageOrientation"`
}

// Validate 检查模板尺寸：宽高必须为正，出血不能为负。
func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: 模板为空", ErrInvalidTemplate)
	}
	if t.PageSize.Width <= 0 || t.PageSize.Height <= 0 {
		return fmt.Errorf("%w: 尺寸必须为正数 (%gmm × %gmm)", ErrInvalidTemplate, t.PageSize.Width, t.PageSize.Height)
	}
	if t.Bleed < 0 {
		return fmt.Errorf("%w: 出血不能为负数 (%gmm)", ErrInvalidTemplate, t.Bleed)
	}
	return nil
}

// BadgeSize 返回含出血的徽章尺寸：(width+2·bleed, height+2·bleed)。
func (t *Template) BadgeSize() (width, height float64) {
	return t.PageSize.Width + 2*t.Bleed, t.PageSize.Height + 2*t.Bleed
}

// Resolve 根据模板与分页模式计算物理尺寸。
// 徽章方向只由模板净尺寸决定：宽大于高时为横向。
func Resolve(t *Template, mode PagingMode) (Geometry, error) {
	if err := t.Validate(); err != nil {
		return Geometry{}, err
	}
	bw, bh := t.BadgeSize()
	g := Geometry{
		Mode:        mode,
		BadgeWidth:  bw,
		BadgeHeight: bh,
		Orientation: orientationOf(t.PageSize.Width, t.PageSize.Height),
		PageWidth:   bw,
		PageHeight:  bh,
	}
	if mode == Butterfly {
		g.PageHeight = 2 * bh
	}
	g.PageOrientation = orientationOf(g.PageWidth, g.PageHeight)
	return g, nil
}
