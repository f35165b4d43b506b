package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/badgepress/logging"
	"github.com/ByLCY/badgepress/surface"
)

// DefaultQuality is the JPEG quality used for exported captures.
const DefaultQuality = 92

// Options configures a Rasterizer.
type Options struct {
	// Scale is the nominal oversampling factor; clamped to [MinScale, MaxScale].
	Scale float64
	// Background is used when the element does not paint its own.
	Background color.Color
	// Quality is the JPEG quality (1-100).
	Quality int
	// Lossless exports PNG instead of JPEG.
	Lossless bool
	// Ladder overrides DefaultLadder.
	Ladder []Tier
}

// Capture is the exported raster of one element.
type Capture struct {
	Image    image.Image
	Encoded  []byte
	Format   string // "jpeg" | "png"
	Tier     string
	Scale    float64
	Fallback bool // exported through Buffer.Blob
}

// Rasterizer walks the tier ladder for each element.
type Rasterizer struct {
	ladder   []Tier
	quality  int
	lossless bool
}

// New creates a Rasterizer.
func New(opts Options) *Rasterizer {
	ladder := opts.Ladder
	if len(ladder) == 0 {
		ladder = DefaultLadder(opts.Scale, opts.Background)
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Rasterizer{ladder: ladder, quality: quality, lossless: opts.Lossless}
}

// Capture rasterizes el. A tier whose probe fails is skipped without
// capturing; a tier whose capture fails falls through to the next one.
// Export failures are not retried on a lower tier.
func (r *Rasterizer) Capture(ctx context.Context, el surface.Element) (*Capture, error) {
	log := logging.Logger().With("element", el.Marker())
	var attempts []error
	for _, tier := range r.ladder {
		if p, ok := el.(surface.Prober); ok {
			if err := p.Probe(tier.Options); err != nil {
				log.Warn("capability probe failed, downgrading", "tier", tier.Name, "err", err)
				attempts = append(attempts, fmt.Errorf("%s probe: %w", tier.Name, err))
				continue
			}
		}
		buf, err := el.Capture(ctx, tier.Options)
		if err != nil {
			log.Warn("capture failed", "tier", tier.Name, "err", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		c, err := r.export(ctx, buf, expectedSize(el.Box(), tier.Options.Scale))
		if err != nil {
			return nil, &ExportError{Marker: el.Marker(), Tier: tier.Name, Err: err}
		}
		c.Tier = tier.Name
		c.Scale = tier.Options.Scale
		log.Debug("captured", "tier", tier.Name, "size", c.Image.Bounds().Size(), "fallback", c.Fallback, "bytes", len(c.Encoded))
		return c, nil
	}
	return nil, &CaptureError{Marker: el.Marker(), Attempts: attempts}
}

func (r *Rasterizer) export(ctx context.Context, buf surface.Buffer, want image.Point) (*Capture, error) {
	img, err := buf.Pixels()
	if err == nil {
		return r.encode(fit(img, want))
	}
	if !errors.Is(err, surface.ErrTainted) {
		return nil, err
	}

	blob, berr := buf.Blob(ctx)
	if berr != nil {
		return nil, errors.Join(err, berr)
	}
	decoded, format, derr := image.Decode(bytes.NewReader(blob))
	if derr != nil {
		return nil, fmt.Errorf("解码导出数据失败: %w", derr)
	}
	if decoded.Bounds().Size() != want && want != (image.Point{}) {
		// 尺寸不符时只能重新编码
		return r.encodeFallback(fit(decoded, want))
	}
	return &Capture{Image: decoded, Encoded: blob, Format: format, Fallback: true}, nil
}

func (r *Rasterizer) encodeFallback(img image.Image) (*Capture, error) {
	c, err := r.encode(img)
	if err != nil {
		return nil, err
	}
	c.Fallback = true
	return c, nil
}

// encode 按配置编码，并返回解码后的图像，使嵌入内容与导出数据一致。
func (r *Rasterizer) encode(img image.Image) (*Capture, error) {
	var buf bytes.Buffer
	if r.lossless {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("PNG 编码失败: %w", err)
		}
		return &Capture{Image: img, Encoded: buf.Bytes(), Format: "png"}, nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("JPEG 编码失败: %w", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("JPEG 解码失败: %w", err)
	}
	return &Capture{Image: decoded, Encoded: buf.Bytes(), Format: "jpeg"}, nil
}

func expectedSize(box surface.Box, scale float64) image.Point {
	return image.Pt(int(math.Round(box.Width*scale)), int(math.Round(box.Height*scale)))
}

// fit 将缓冲区重采样到 box×scale；相差不超过 1px 时视为一致。
func fit(img image.Image, want image.Point) image.Image {
	got := img.Bounds().Size()
	if want.X <= 0 || want.Y <= 0 {
		return img
	}
	if abs(got.X-want.X) <= 1 && abs(got.Y-want.Y) <= 1 {
		return img
	}
	dst := image.NewRGBA(image.Rectangle{Max: want})
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
