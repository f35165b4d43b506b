// Package compose turns captured badge faces into a print-ready page model:
// it neutralises the flip applied to back faces before capture, rotates back
// faces for butterfly folding, and assembles rasters into uniform pages.
package compose

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
)

// Neutralize removes the mirror transform from a back face for the duration of
// a capture. The override is scoped to the element's marker; callers must call
// release once the capture finished, successfully or not. Front faces get a
// no-op release.
func Neutralize(sheet *style.Sheet, el surface.Element, side surface.Side) (release func()) {
	if sheet == nil || el == nil || side != surface.Back {
		return func() {}
	}
	return sheet.Override(el.Marker(), style.Declaration{
		Property: style.PropTransform,
		Value:    style.TransformNone,
	})
}

// Prepare returns the element to capture for side and the release function
// that undoes any preparation. Back faces are captured right-reading: through
// the element's untransformed node when it offers one, otherwise through
// Neutralize.
func Prepare(sheet *style.Sheet, el surface.Element, side surface.Side) (surface.Element, func()) {
	if side == surface.Back {
		if u, ok := el.(surface.Untransformer); ok {
			return u.Untransformed(), func() {}
		}
	}
	return el, Neutralize(sheet, el, side)
}

// Rotate180 returns img rotated by 180 degrees. The rotation is pixel exact,
// so rotating twice yields the original pixels.
func Rotate180(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	src, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		src = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(src, src.Bounds(), img, b.Min, xdraw.Src)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(w-1-x, h-1-y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
