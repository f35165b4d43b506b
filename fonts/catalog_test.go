package fonts

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ByLCY/badgepress/style"
)

// gatedLoader 在 release 关闭前阻塞，模拟慢速字体下载。
func gatedLoader(release <-chan struct{}, calls *atomic.Int32) Loader {
	return func(src string) ([]byte, error) {
		calls.Add(1)
		<-release
		return Load(src)
	}
}

func TestReadyWaitsForRequestedFamilies(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewCatalog(gatedLoader(release, &calls))
	c.Request("go-bold")
	c.Request("go-bold")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Ready(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("字体未加载完成时 Ready 应超时, got %v", err)
	}

	close(release)
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready 失败: %v", err)
	}
	if !c.Loaded("go-bold") {
		t.Fatalf("go-bold 应已加载")
	}
	if calls.Load() != 1 {
		t.Fatalf("重复 Request 不应重复加载, calls=%d", calls.Load())
	}
}

func TestFaceSwapDoesNotWait(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	c := NewCatalog(gatedLoader(release, &calls))

	face, err := c.Face(context.Background(), "go-italic", 12, color.Black, style.DisplaySwap)
	if err != nil || face == nil {
		t.Fatalf("swap 模式应立即返回后备字体, got %v", err)
	}
	if c.Loaded("go-italic") {
		t.Fatalf("字体不应已加载")
	}
}

func TestFaceBlockWaits(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewCatalog(gatedLoader(release, &calls))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Face(ctx, "go-mono", 12, color.Black, style.DisplayBlock); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("block 模式应等待字体, got %v", err)
	}

	close(release)
	face, err := c.Face(context.Background(), "go-mono", 12, color.Black, style.DisplayBlock)
	if err != nil || face == nil {
		t.Fatalf("加载完成后应返回字体, got %v", err)
	}
	if !c.Loaded("go-mono") {
		t.Fatalf("go-mono 应已加载")
	}
}

func TestFailedFamilyFallsBack(t *testing.T) {
	c := NewCatalog(func(string) ([]byte, error) { return nil, errors.New("404") })
	face, err := c.Face(context.Background(), "https://fonts.example/Inter.ttf", 10, color.Black, style.DisplayBlock)
	if err != nil || face == nil {
		t.Fatalf("加载失败应回退到内置字体, got %v", err)
	}
	if c.Loaded("https://fonts.example/Inter.ttf") {
		t.Fatalf("失败的字体不应标记为已加载")
	}
}

func TestLoadBuiltins(t *testing.T) {
	for _, name := range []string{"go-regular", "embed:go-bold", "GO-MONO"} {
		if data, err := Load(name); err != nil || len(data) == 0 {
			t.Fatalf("Load(%q) 失败: %v", name, err)
		}
	}
	if _, err := Load("embed:comic-sans"); err == nil {
		t.Fatalf("未知内置字体应返回错误")
	}
}
