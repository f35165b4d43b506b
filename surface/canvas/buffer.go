package canvassurface

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/ByLCY/badgepress/surface"
)

// buffer 是一次截图的结果；含未授权跨域图片时不可直接读回像素。
type buffer struct {
	el      *Element
	opts    surface.CaptureOptions
	img     *image.RGBA
	tainted bool
}

func (b *buffer) Bounds() image.Rectangle { return b.img.Bounds() }

func (b *buffer) Pixels() (image.Image, error) {
	if b.tainted {
		return nil, surface.ErrTainted
	}
	return b.img, nil
}

// Blob 导出 PNG。被污染的缓冲区会用同源图片副本重新绘制。
func (b *buffer) Blob(ctx context.Context) ([]byte, error) {
	img := b.img
	if b.tainted {
		clean, tainted, err := b.el.render(ctx, b.opts, true)
		if err != nil {
			return nil, fmt.Errorf("导出 %s 失败: %w", b.el.marker, err)
		}
		if tainted {
			return nil, surface.ErrTainted
		}
		img = clean
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("PNG 编码失败: %w", err)
	}
	return out.Bytes(), nil
}
