// Package blend maps a transition kind and progress to compositing
// parameters. Everything here is pure and deterministic; the playback layer
// feeds the result straight into the per-tick frame.
package blend

import (
	"github.com/keagan/cutdeck/internal/timeline"
)

// Transform positions a layer. TranslateX is in percent of frame width;
// Scale is a multiplier with 1 meaning unscaled.
type Transform struct {
	TranslateX float64 `json:"translate_x"`
	Scale      float64 `json:"scale"`
}

// Identity returns the no-op transform.
func Identity() Transform {
	return Transform{TranslateX: 0, Scale: 1}
}

// Layer holds the compositing parameters for one side of the boundary.
type Layer struct {
	Opacity float64 `json:"opacity"`
	Transform
	// BlurRadius is in pixels; 0 means no blur filter.
	BlurRadius float64 `json:"blur_radius,omitempty"`
}

// Params is the blended output for the outgoing ("from") and incoming ("to")
// layers.
type Params struct {
	From Layer `json:"from"`
	To   Layer `json:"to"`
}

// Blender evaluates transitions with configured zoom/blur intensity.
type Blender struct {
	// ZoomScale is the extra scale on the incoming layer of a zoom
	// transition at full progress.
	ZoomScale float64
	// MaxBlurRadius is the peak blur in pixels for blur transitions.
	MaxBlurRadius float64
}

// Default returns a blender with the stock intensities.
func Default() Blender {
	return Blender{ZoomScale: 0.25, MaxBlurRadius: 12}
}

// Blend evaluates a transition at the given progress. Progress is clamped to
// [0,1]; the result is continuous and endpoint-exact at 0 and 1. Unknown
// kinds degrade to a hard cut: the incoming layer stays fully transparent.
func (b Blender) Blend(kind timeline.TransitionKind, progress float64) Params {
	p := progress
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	switch kind {
	case timeline.TransitionFade, timeline.TransitionCrossfade:
		return Params{
			From: Layer{Opacity: 1 - p, Transform: Identity()},
			To:   Layer{Opacity: p, Transform: Identity()},
		}

	case timeline.TransitionZoom:
		return Params{
			From: Layer{Opacity: 1 - p, Transform: Identity()},
			To:   Layer{Opacity: p, Transform: Transform{Scale: 1 + p*b.ZoomScale}},
		}

	case timeline.TransitionSlideLeft:
		// Spatial-only: both layers stay opaque while they slide.
		return Params{
			From: Layer{Opacity: 1, Transform: Transform{TranslateX: -100 * p, Scale: 1}},
			To:   Layer{Opacity: 1, Transform: Transform{TranslateX: 100 * (1 - p), Scale: 1}},
		}

	case timeline.TransitionSlideRight:
		return Params{
			From: Layer{Opacity: 1, Transform: Transform{TranslateX: 100 * p, Scale: 1}},
			To:   Layer{Opacity: 1, Transform: Transform{TranslateX: -100 * (1 - p), Scale: 1}},
		}

	case timeline.TransitionBlur:
		return Params{
			From: Layer{Opacity: 1 - p, Transform: Identity(), BlurRadius: b.MaxBlurRadius * p},
			To:   Layer{Opacity: p, Transform: Identity(), BlurRadius: b.MaxBlurRadius * (1 - p)},
		}
	}

	// none / unrecognized: hard cut.
	return Params{
		From: Layer{Opacity: 1, Transform: Identity()},
		To:   Layer{Opacity: 0, Transform: Identity()},
	}
}
