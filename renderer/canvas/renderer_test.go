package canvasrenderer

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ByLCY/badgepress/compose"
	"github.com/ByLCY/badgepress/layout"
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func assemble(t *testing.T, mode layout.PagingMode, n int) *compose.Document {
	t.Helper()
	tpl := &layout.Template{PageSize: layout.PageSize{Width: 74, Height: 105}, Bleed: 3}
	geom, err := layout.Resolve(tpl, mode)
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	a := compose.NewAssembler(layout.DocumentMeta{Title: "Badges", Creator: "badgepress"})
	for i := 0; i < n; i++ {
		front := &compose.Raster{Image: filled(240, 333, color.RGBA{R: 20, G: 80, B: 160, A: 255})}
		if mode == layout.Butterfly {
			back := &compose.Raster{Image: filled(240, 333, color.RGBA{R: 200, G: 200, B: 40, A: 255})}
			if _, err := a.AddPair(geom, front, back); err != nil {
				t.Fatalf("AddPair 失败: %v", err)
			}
			continue
		}
		if err := a.AddPage(geom, front); err != nil {
			t.Fatalf("AddPage 失败: %v", err)
		}
	}
	return a.Document()
}

func TestRenderButterflyPageSize(t *testing.T) {
	doc := assemble(t, layout.Butterfly, 3)
	data, err := NewRendererWithOptions(Options{FoldGuide: true}).Render(doc)
	if err != nil {
		t.Fatalf("Render 失败: %v", err)
	}
	pages, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect 失败: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("期望 3 页, got %d", len(pages))
	}
	// 80 × 222 mm
	wantW, wantH := 80*layout.MmToPt, 222*layout.MmToPt
	for i, p := range pages {
		if math.Abs(p.Width-wantW) > 0.5 || math.Abs(p.Height-wantH) > 0.5 {
			t.Fatalf("第 %d 页尺寸 %.2fx%.2fpt, want %.2fx%.2fpt", i+1, p.Width, p.Height, wantW, wantH)
		}
	}
}

func TestRenderSequentialVerify(t *testing.T) {
	doc := assemble(t, layout.Sequential, 2)
	data, err := NewRendererWithOptions(Options{Verify: true}).Render(doc)
	if err != nil {
		t.Fatalf("Render 失败: %v", err)
	}
	if err := Verify(data, 2, 80, 111); err != nil {
		t.Fatalf("Verify 失败: %v", err)
	}
	if err := Verify(data, 3, 80, 111); err == nil {
		t.Fatalf("页数不符时应报错")
	}
}

func TestRenderRejectsEmptyDocument(t *testing.T) {
	r := NewRenderer()
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("nil 文档应报错")
	}
	if _, err := r.Render(&compose.Document{Width: 80, Height: 111}); err == nil {
		t.Fatalf("没有页面时应报错")
	}
}

// noisy 生成难以无损压缩的图像。
func noisy(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for i := 0; i < len(img.Pix); i += 4 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(seed), uint8(seed>>8), uint8(seed>>16), 0xff
	}
	return img
}

func singlePage(t *testing.T, format string) *compose.Document {
	t.Helper()
	tpl := &layout.Template{PageSize: layout.PageSize{Width: 74, Height: 105}, Bleed: 3}
	geom, err := layout.Resolve(tpl, layout.Butterfly)
	if err != nil {
		t.Fatalf("Resolve 失败: %v", err)
	}
	a := compose.NewAssembler(layout.DocumentMeta{})
	front := &compose.Raster{Image: noisy(240, 333), Format: format}
	back := &compose.Raster{Image: noisy(240, 333), Format: "png"}
	if _, err := a.AddPair(geom, front, back); err != nil {
		t.Fatalf("AddPair 失败: %v", err)
	}
	return a.Document()
}

func TestRenderEmbedsJPEGCapturesAsDCT(t *testing.T) {
	data, err := NewRenderer().Render(singlePage(t, "jpeg"))
	if err != nil {
		t.Fatalf("Render 失败: %v", err)
	}
	if n := bytes.Count(data, []byte("/DCTDecode")); n != 1 {
		t.Fatalf("JPEG 栅格应以 DCTDecode 嵌入，PNG 栅格保持无损: got %d 个 DCT 图像", n)
	}

	lossless, err := NewRenderer().Render(singlePage(t, "png"))
	if err != nil {
		t.Fatalf("Render 失败: %v", err)
	}
	if bytes.Contains(lossless, []byte("/DCTDecode")) {
		t.Fatalf("PNG 栅格不应有损嵌入")
	}
	if len(data) >= len(lossless) {
		t.Fatalf("有损嵌入应更小: jpeg=%d png=%d", len(data), len(lossless))
	}
}
