// Package fonts loads badge font families asynchronously and exposes a
// readiness signal that the capture pipeline awaits before the first capture.
package fonts

import (
	"context"
	"fmt"
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/badgepress/style"
)

// Loader returns the raw font data for a source.
type Loader func(src string) ([]byte, error)

type entry struct {
	done   chan struct{}
	family *canvas.FontFamily
	err    error
}

// Catalog tracks every requested family. Loads run in the background; Face
// decides per call whether to wait for a pending family or draw a fallback.
type Catalog struct {
	load Loader

	mu       sync.Mutex
	families map[string]*entry
	fallback *canvas.FontFamily
}

// NewCatalog creates a catalog; a nil loader uses Load.
func NewCatalog(load Loader) *Catalog {
	if load == nil {
		load = Load
	}
	return &Catalog{load: load, families: map[string]*entry{}}
}

// Request starts loading src if it has not been requested yet.
func (c *Catalog) Request(src string) {
	c.request(src)
}

func (c *Catalog) request(src string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.families[src]; ok {
		return e
	}
	e := &entry{done: make(chan struct{})}
	c.families[src] = e
	go func() {
		defer close(e.done)
		data, err := c.load(src)
		if err != nil {
			e.err = err
			return
		}
		family := canvas.NewFontFamily(src)
		if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
			e.err = fmt.Errorf("解析字体 %s 失败: %w", src, err)
			return
		}
		e.family = family
	}()
	return e
}

// Loaded reports whether src finished loading successfully.
func (c *Catalog) Loaded(src string) bool {
	c.mu.Lock()
	e, ok := c.families[src]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-e.done:
		return e.err == nil
	default:
		return false
	}
}

// Ready blocks until every family requested so far has finished loading,
// successfully or not, or ctx is done.
func (c *Catalog) Ready(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]*entry, 0, len(c.families))
	for _, e := range c.families {
		pending = append(pending, e)
	}
	c.mu.Unlock()

	for _, e := range pending {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Face returns a face for src. With display "block" it waits for the family;
// otherwise a family that is still loading is replaced by the fallback.
// Failed families always fall back.
func (c *Catalog) Face(ctx context.Context, src string, sizePt float64, col color.Color, display string) (*canvas.FontFace, error) {
	e := c.request(src)
	if display == style.DisplayBlock {
		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var family *canvas.FontFamily
	select {
	case <-e.done:
		family = e.family
	default:
	}
	if family == nil {
		var err error
		if family, err = c.Fallback(); err != nil {
			return nil, err
		}
	}
	return family.Face(sizePt, col, canvas.FontRegular, canvas.FontNormal), nil
}

// Fallback returns the built-in fallback family.
func (c *Catalog) Fallback() (*canvas.FontFamily, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback != nil {
		return c.fallback, nil
	}
	data, err := Load(FallbackName)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("badgepress-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	c.fallback = family
	return family, nil
}
