// Package surface defines what the capture pipeline expects from the rendering
// surface: mounted badge faces that can report their rendered state and be
// captured into pixel buffers.
package surface

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// ErrTainted is returned by Buffer.Pixels when the buffer holds cross-origin
// content without permissive access and cannot be read back directly.
var ErrTainted = errors.New("surface: buffer is tainted by cross-origin content")

// Side identifies the face of a badge.
type Side int

const (
	Front Side = iota
	Back
)

func (s Side) String() string {
	if s == Back {
		return "back"
	}
	return "front"
}

// ParseSide parses "front" or "back".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "":
		return Front, nil
	case "back":
		return Back, nil
	default:
		return Front, fmt.Errorf("surface: unknown side %q", s)
	}
}

// Box is the rendered size of an element in CSS pixels.
type Box struct {
	Width  float64
	Height float64
}

// Empty reports whether the box has no finite positive area. NaN and infinite
// dimensions count as empty.
func (b Box) Empty() bool {
	if !(b.Width > 0 && b.Height > 0) {
		return true
	}
	return math.IsInf(b.Width, 0) || math.IsInf(b.Height, 0)
}

// CaptureOptions selects how an element is rasterized.
type CaptureOptions struct {
	// Scale is the oversampling factor applied to the rendered box.
	Scale float64
	// Background is painted before any content when the element has no color of its own.
	Background color.Color
	// CrossOrigin allows cross-origin images to be drawn.
	CrossOrigin bool
	// ForeignObject enables vector/foreign content rendering.
	ForeignObject bool
	// StripFontLinks drops external font stylesheet references so nothing is re-fetched.
	StripFontLinks bool
	// Harden pins presentational styles and snaps geometry to the device pixel grid.
	Harden bool
}

// Element is one mounted, fully styled visual badge face.
type Element interface {
	// Marker scopes style-sheet overrides to this element.
	Marker() string
	Box() Box
	Hidden() bool
	// HasContent reports whether the element has text or visible children.
	HasContent() bool
	Capture(ctx context.Context, opts CaptureOptions) (Buffer, error)
}

// Prober is implemented by elements that can tell in advance whether a capture
// strategy will work, without paying for the capture itself.
type Prober interface {
	Probe(opts CaptureOptions) error
}

// Buffer is the pixel buffer produced by a capture.
type Buffer interface {
	Bounds() image.Rectangle
	// Pixels reads the buffer back synchronously; ErrTainted if blocked.
	Pixels() (image.Image, error)
	// Blob exports the buffer asynchronously as an encoded image.
	Blob(ctx context.Context) ([]byte, error)
}

// Untransformer is implemented by elements that can hand out their face in the
// shown, untransformed state, so a back face is captured right-reading without
// touching the live style sheet.
type Untransformer interface {
	Untransformed() Element
}
