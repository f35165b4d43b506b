package canvassurface

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ByLCY/badgepress/binding"
	"github.com/ByLCY/badgepress/layout"
	"github.com/ByLCY/badgepress/style"
	"github.com/ByLCY/badgepress/surface"
)

func testTemplate() *layout.Template {
	return &layout.Template{
		PageSize: layout.PageSize{Width: 74, Height: 105},
		Bleed:    3,
		NameStyle: layout.NameStyle{
			Color:         layout.DefaultNameColor,
			FontSize:      24,
			Font:          "go-bold",
			ShowEventName: true,
		},
		Fields: []layout.DisplayField{
			{ID: "company", Label: "Company", Source: "attendee", Field: "company", Visible: true,
				Style: layout.FontStyle{Family: "go-regular", Size: 14, Color: layout.DefaultFieldColor}},
		},
	}
}

func attendee() map[string]any {
	return map[string]any{
		"attendee": map[string]any{"name": "Ada Lovelace", "company": "Analytical Engines", "email": "ada@example.com"},
		"event":    map[string]any{"name": "Go Summit"},
		"ticket":   map[string]any{"type": "Speaker", "colour": "#7c3aed"},
	}
}

func pngServer(t *testing.T, cors bool) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 250, G: 200, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cors {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func within(got, want int) bool { return math.Abs(float64(got-want)) <= 1 }

func TestCaptureSize(t *testing.T) {
	s := New(testTemplate(), Options{})
	el := s.Mount(0, attendee(), surface.Front)
	if !el.HasContent() || el.Hidden() {
		t.Fatalf("元素应可见且有内容")
	}
	box := el.Box()
	buf, err := el.Capture(t.Context(), surface.CaptureOptions{Scale: 2, Background: color.White, Harden: true})
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	img, err := buf.Pixels()
	if err != nil {
		t.Fatalf("Pixels 失败: %v", err)
	}
	size := img.Bounds().Size()
	if !within(size.X, int(math.Round(box.Width*2))) || !within(size.Y, int(math.Round(box.Height*2))) {
		t.Fatalf("尺寸 %v 与 box×scale (%.1f×%.1f) 不符", size, box.Width*2, box.Height*2)
	}
	if el.Marker() != "badge-0-front" {
		t.Fatalf("marker = %s", el.Marker())
	}
}

func TestHiddenAndEmpty(t *testing.T) {
	tpl := testTemplate()
	tpl.NameStyle.ShowEventName = false
	s := New(tpl, Options{})

	empty := s.Mount(1, nil, surface.Front)
	if empty.HasContent() {
		t.Fatalf("没有数据的元素不应有内容")
	}
	hidden := s.Mount(2, attendee(), surface.Front)
	hidden.SetHidden(true)
	if !hidden.Box().Empty() {
		t.Fatalf("隐藏元素的尺寸应为 0")
	}
	if _, err := hidden.Capture(t.Context(), surface.CaptureOptions{Scale: 1}); err == nil {
		t.Fatalf("隐藏元素截图应失败")
	}
}

// darkSides 统计二维码所在横带左右三分之一的深色像素数。
func darkSides(img image.Image) (left, right int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := int(float64(h) * 0.75); y < int(float64(h)*0.85); y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if (r+g+bl)/3 > 0x4000 {
				continue
			}
			switch {
			case x < w/3:
				left++
			case x >= w-w/3:
				right++
			}
		}
	}
	return left, right
}

func TestBackFaceMirroredUntilNeutralized(t *testing.T) {
	tpl := testTemplate()
	tpl.QR = &layout.QRSettings{ShowOnFront: true, ShowOnBack: true, X: 15, Y: 80, Size: 18}
	sheet := style.NewSheet()
	s := New(tpl, Options{Sheet: sheet})
	opts := surface.CaptureOptions{Scale: 1, Background: color.White}

	capture := func(el *Element) image.Image {
		t.Helper()
		buf, err := el.Capture(t.Context(), opts)
		if err != nil {
			t.Fatalf("Capture 失败: %v", err)
		}
		img, err := buf.Pixels()
		if err != nil {
			t.Fatalf("Pixels 失败: %v", err)
		}
		return img
	}

	left, right := darkSides(capture(s.Mount(0, attendee(), surface.Front)))
	if left == 0 || right != 0 {
		t.Fatalf("正面二维码应在左侧: left=%d right=%d", left, right)
	}

	back := s.Mount(0, attendee(), surface.Back)
	left, right = darkSides(capture(back))
	if left != 0 || right == 0 {
		t.Fatalf("未中和的背面应镜像: left=%d right=%d", left, right)
	}

	release := sheet.Override(back.Marker(), style.Declaration{Property: style.PropTransform, Value: style.TransformNone})
	left, right = darkSides(capture(back))
	release()
	if left == 0 || right != 0 {
		t.Fatalf("中和后背面应与正面同向: left=%d right=%d", left, right)
	}
}

func TestCrossOriginBackground(t *testing.T) {
	srv := pngServer(t, false)
	tpl := testTemplate()
	tpl.Background.Image = srv.URL + "/bg.png"
	opts := surface.CaptureOptions{Scale: 1, CrossOrigin: true}

	s := New(tpl, Options{Images: NewImageLoader(LoaderOptions{Origin: "https://badges.example.com"})})
	buf, err := s.Mount(0, attendee(), surface.Front).Capture(t.Context(), opts)
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	if _, err := buf.Pixels(); !errors.Is(err, surface.ErrTainted) {
		t.Fatalf("未授权的跨域图片应污染缓冲区, got %v", err)
	}
	if _, err := buf.Blob(t.Context()); !errors.Is(err, ErrNotProxied) {
		t.Fatalf("未配置代理时 Blob 应失败, got %v", err)
	}

	proxied := New(tpl, Options{Images: NewImageLoader(LoaderOptions{
		Origin:     "https://badges.example.com",
		ProxyHosts: []string{"127.0.0.1"},
	})})
	buf, err = proxied.Mount(0, attendee(), surface.Front).Capture(t.Context(), opts)
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	blob, err := buf.Blob(t.Context())
	if err != nil {
		t.Fatalf("代理后 Blob 应成功: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(blob)); err != nil {
		t.Fatalf("Blob 不是 PNG: %v", err)
	}

	// 不允许跨域时跳过图片，缓冲区保持干净
	buf, err = s.Mount(1, attendee(), surface.Front).Capture(t.Context(), surface.CaptureOptions{Scale: 1})
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	if _, err := buf.Pixels(); err != nil {
		t.Fatalf("跳过跨域图片后应可读回: %v", err)
	}
}

func TestCORSBackgroundNotTainted(t *testing.T) {
	srv := pngServer(t, true)
	tpl := testTemplate()
	tpl.Background.Image = srv.URL + "/bg.png"
	s := New(tpl, Options{Images: NewImageLoader(LoaderOptions{Origin: "https://badges.example.com"})})
	buf, err := s.Mount(0, attendee(), surface.Front).Capture(t.Context(), surface.CaptureOptions{Scale: 1, CrossOrigin: true})
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	img, err := buf.Pixels()
	if err != nil {
		t.Fatalf("带 CORS 头的图片不应污染缓冲区: %v", err)
	}
	r, g, b, _ := img.At(2, img.Bounds().Dy()/2).RGBA()
	if r>>8 < 200 || g>>8 < 150 || b>>8 > 60 {
		t.Fatalf("背景图未绘制: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestProbe(t *testing.T) {
	s := New(testTemplate(), Options{DisableForeignContent: true, MaxPixels: 400 * 500})
	el := s.Mount(0, attendee(), surface.Front)
	if err := el.Probe(surface.CaptureOptions{Scale: 1, ForeignObject: true}); !errors.Is(err, ErrForeignContent) {
		t.Fatalf("期望 ErrForeignContent, got %v", err)
	}
	if err := el.Probe(surface.CaptureOptions{Scale: 3}); err == nil {
		t.Fatalf("超出像素上限时探测应失败")
	}
	if err := el.Probe(surface.CaptureOptions{Scale: 1}); err != nil {
		t.Fatalf("scale 1 应通过探测: %v", err)
	}
}

func TestUntransformedBackFace(t *testing.T) {
	tpl := testTemplate()
	tpl.QR = &layout.QRSettings{ShowOnBack: true, X: 15, Y: 80, Size: 18}
	s := New(tpl, Options{})
	back := s.Mount(3, attendee(), surface.Back)

	plain := back.Untransformed()
	if plain.Marker() != back.Marker() {
		t.Fatalf("marker 应保持不变")
	}
	buf, err := plain.Capture(t.Context(), surface.CaptureOptions{Scale: 1})
	if err != nil {
		t.Fatalf("Capture 失败: %v", err)
	}
	img, _ := buf.Pixels()
	if left, right := darkSides(img); left == 0 || right != 0 {
		t.Fatalf("未变换的背面应正向: left=%d right=%d", left, right)
	}
	if !back.mirrored {
		t.Fatalf("原元素的翻转状态不应被修改")
	}
}

func TestLabelsInterpolateBadgeData(t *testing.T) {
	tpl := testTemplate()
	tpl.Fields = append(tpl.Fields, layout.DisplayField{
		ID: "ticket", Label: "${event.name} pass", Source: "ticket", Field: "type", Visible: true,
		Style: layout.FontStyle{Family: "go-regular", Size: 12, Color: layout.DefaultFieldColor},
	})
	s := New(tpl, Options{EventName: "${event.name} · Berlin"})

	c := s.Mount(0, attendee(), surface.Front).content()
	if c.event != "Go Summit · Berlin" {
		t.Fatalf("活动标题应替换占位符, got %q", c.event)
	}
	if len(c.fields) != 2 || c.fields[1].text != "Go Summit pass: Speaker" {
		t.Fatalf("字段标签应替换占位符, got %+v", c.fields)
	}

	blank := s.Mount(1, binding.Blank("Go Summit"), surface.Front).content()
	if len(blank.fields) != 2 || blank.fields[1].text != "Go Summit pass: "+blankRule {
		t.Fatalf("空白徽章的标签同样应替换占位符, got %+v", blank.fields)
	}

	// 找不到的路径保留原样
	plain := New(tpl, Options{EventName: "${event.city}"}).Mount(2, attendee(), surface.Front).content()
	if plain.event != "${event.city}" {
		t.Fatalf("缺失路径应保留占位符, got %q", plain.event)
	}

	buf, err := s.Mount(0, attendee(), surface.Front).Capture(t.Context(), surface.CaptureOptions{Scale: 1, Background: color.White})
	if err != nil || buf.Bounds().Empty() {
		t.Fatalf("含占位符标签的徽章应能正常绘制: %v", err)
	}
}
