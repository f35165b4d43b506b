// Package style models the live style sheet shared by the rendering surface and
// the capture pipeline. Every override is scoped to a marker and released by the
// party that acquired it.
package style

import (
	"sync"
)

// Global 是作用于所有元素的 marker，例如作业期间的 font-display 覆盖。
const Global = ""

// 覆盖会用到的属性与取值。
const (
	PropTransform   = "transform"
	PropFontDisplay = "font-display"

	TransformNone = "none"
	DisplayBlock  = "block"
	DisplaySwap   = "swap"
)

// Declaration is a single `property: value !important` pair.
type Declaration struct {
	Property string
	Value    string
}

type override struct {
	id     uint64
	marker string
	decls  []Declaration
}

// Sheet holds the overrides currently in effect. Later overrides win over
// earlier ones; a marker-specific override wins over a global one.
type Sheet struct {
	mu        sync.Mutex
	seq       uint64
	overrides []override
}

// NewSheet returns an empty sheet.
func NewSheet() *Sheet { return &Sheet{} }

// Override injects decls under marker and returns the function that removes them.
// The returned release is idempotent.
func (s *Sheet) Override(marker string, decls ...Declaration) (release func()) {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.overrides = append(s.overrides, override{id: id, marker: marker, decls: append([]Declaration(nil), decls...)})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

// Scoped applies decls for the duration of fn and always removes them afterwards.
func (s *Sheet) Scoped(marker string, decls []Declaration, fn func() error) error {
	release := s.Override(marker, decls...)
	defer release()
	return fn()
}

func (s *Sheet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.overrides {
		if o.id == id {
			s.overrides = append(s.overrides[:i], s.overrides[i+1:]...)
			return
		}
	}
}

// Value resolves property for the element identified by marker.
func (s *Sheet) Value(marker, property string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		global, scoped       string
		hasGlobal, hasScoped bool
	)
	for _, o := range s.overrides {
		if o.marker != Global && o.marker != marker {
			continue
		}
		for _, d := range o.decls {
			if d.Property != property {
				continue
			}
			if o.marker == Global {
				global, hasGlobal = d.Value, true
			} else {
				scoped, hasScoped = d.Value, true
			}
		}
	}
	if hasScoped {
		return scoped, true
	}
	return global, hasGlobal
}

// Len reports how many overrides are active.
func (s *Sheet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overrides)
}
