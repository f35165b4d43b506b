// Package validate rejects render targets whose visual state would produce a
// blank page, before any expensive capture is attempted.
package validate

import (
	"errors"
	"fmt"

	"github.com/ByLCY/badgepress/surface"
)

// ErrInvalidElement is wrapped by every *Error.
var ErrInvalidElement = errors.New("validate: element not capturable")

// Reason classifies a validation failure.
type Reason string

const (
	ReasonMissing  Reason = "missing"
	ReasonZeroSize Reason = "zero-size"
	ReasonHidden   Reason = "hidden"
	ReasonEmpty    Reason = "empty"
)

// Error describes why an element was rejected.
type Error struct {
	Marker string
	Reason Reason
	Box    surface.Box
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonZeroSize:
		return fmt.Sprintf("元素 %s 尺寸为零 (%g×%gpx)", e.Marker, e.Box.Width, e.Box.Height)
	case ReasonHidden:
		return fmt.Sprintf("元素 %s 处于隐藏状态", e.Marker)
	case ReasonEmpty:
		return fmt.Sprintf("元素 %s 没有可见内容", e.Marker)
	default:
		return "元素不存在"
	}
}

func (e *Error) Unwrap() error { return ErrInvalidElement }

// Check confirms el has a positive rendered size, is not hidden and has content.
func Check(el surface.Element) error {
	if el == nil {
		return &Error{Reason: ReasonMissing}
	}
	box := el.Box()
	if box.Empty() {
		return &Error{Marker: el.Marker(), Reason: ReasonZeroSize, Box: box}
	}
	if el.Hidden() {
		return &Error{Marker: el.Marker(), Reason: ReasonHidden, Box: box}
	}
	if !el.HasContent() {
		return &Error{Marker: el.Marker(), Reason: ReasonEmpty, Box: box}
	}
	return nil
}
