// Package raster converts a mounted badge face into a fixed-resolution pixel
// image. Capture strategies form an explicit ladder of tiers; each tier can be
// probed before it is attempted and the ladder only ever moves downwards.
package raster

import (
	"image/color"
	"math"

	"github.com/ByLCY/badgepress/surface"
)

// Tier names.
const (
	TierHighFidelity  = "high-fidelity"
	TierCompatibility = "compatibility"
)

// 超采样倍率范围。
const (
	DefaultScale = 3.0
	MinScale     = 2.0
	MaxScale     = 4.0
)

// Tier is one capture strategy on the ladder.
type Tier struct {
	Name    string
	Options surface.CaptureOptions
}

// DefaultLadder returns the two-tier ladder:
//   - high-fidelity: cross-origin images, foreign content, hardening, nominal scale
//   - compatibility: half scale (at least 1), no foreign content, no cross-origin
//     images, external font links stripped
func DefaultLadder(scale float64, background color.Color) []Tier {
	scale = ClampScale(scale)
	if background == nil {
		background = color.White
	}
	return []Tier{
		{
			Name: TierHighFidelity,
			Options: surface.CaptureOptions{
				Scale:         scale,
				Background:    background,
				CrossOrigin:   true,
				ForeignObject: true,
				Harden:        true,
			},
		},
		{
			Name: TierCompatibility,
			Options: surface.CaptureOptions{
				Scale:          math.Max(1, scale/2),
				Background:     background,
				StripFontLinks: true,
			},
		},
	}
}

// ClampScale keeps the oversampling factor within [MinScale, MaxScale];
// zero selects DefaultScale.
func ClampScale(scale float64) float64 {
	switch {
	case scale == 0:
		return DefaultScale
	case scale < MinScale:
		return MinScale
	case scale > MaxScale:
		return MaxScale
	default:
		return scale
	}
}
