package playback

import (
	"github.com/keagan/cutdeck/internal/blend"
	"github.com/keagan/cutdeck/internal/timeline"
)

// Layer is one paint instruction within a frame.
type Layer struct {
	ClipID    string                `json:"clip_id"`
	Kind      timeline.ClipKind     `json:"kind"`
	SourceRef string                `json:"source_ref,omitempty"`
	LocalTime float64               `json:"local_time"`
	Opacity   float64               `json:"opacity"`
	Transform blend.Transform       `json:"transform"`
	Blur      float64               `json:"blur,omitempty"`
	Text      *timeline.TextOverlay `json:"text,omitempty"`
}

// Frame is the composite instruction set for one tick: everything the host
// needs to paint, bottom layer first. The engine never paints; it only
// describes.
type Frame struct {
	MasterTime float64 `json:"master_time"`
	Layers     []Layer `json:"layers"`
}

// compose builds the frame for the current master time from the per-track
// resolutions. Resources that are not ready are skipped rather than drawn —
// a degraded frame, never a stall.
func (c *Controller) compose(at float64, video, audio timeline.Resolution) Frame {
	f := Frame{MasterTime: at}

	if vt := c.tl.Track(timeline.KindVideo); vt != nil && vt.Visible && video.Active != nil {
		if video.InTransition && video.Next != nil && video.Transition != nil {
			params := c.blender.Blend(video.Transition.Kind, video.Progress)
			windowStart := video.Active.TimelineEnd - video.Transition.Duration

			if c.drawable(video.Active.ID) {
				f.Layers = append(f.Layers, Layer{
					ClipID:    video.Active.ID,
					Kind:      timeline.KindVideo,
					SourceRef: video.Active.SourceRef(),
					LocalTime: video.LocalTime,
					Opacity:   params.From.Opacity,
					Transform: params.From.Transform,
					Blur:      params.From.BlurRadius,
				})
			}
			if c.drawable(video.Next.ID) {
				f.Layers = append(f.Layers, Layer{
					ClipID:    video.Next.ID,
					Kind:      timeline.KindVideo,
					SourceRef: video.Next.SourceRef(),
					LocalTime: incomingLocalTime(*video.Next, at, windowStart),
					Opacity:   params.To.Opacity,
					Transform: params.To.Transform,
					Blur:      params.To.BlurRadius,
				})
			}
		} else if c.drawable(video.Active.ID) {
			f.Layers = append(f.Layers, Layer{
				ClipID:    video.Active.ID,
				Kind:      timeline.KindVideo,
				SourceRef: video.Active.SourceRef(),
				LocalTime: video.LocalTime,
				Opacity:   1,
				Transform: blend.Identity(),
			})
		}
	}

	if audioTrack := c.tl.Track(timeline.KindAudio); audioTrack != nil && !audioTrack.Muted && audio.Active != nil && at <= audio.Active.TimelineEnd {
		if p, ok := audio.Active.Payload.(timeline.AudioSource); !ok || !p.Muted {
			if c.drawable(audio.Active.ID) {
				f.Layers = append(f.Layers, Layer{
					ClipID:    audio.Active.ID,
					Kind:      timeline.KindAudio,
					SourceRef: audio.Active.SourceRef(),
					LocalTime: audio.LocalTime,
					Opacity:   1,
					Transform: blend.Identity(),
				})
			}
		}
	}

	if tt := c.tl.Track(timeline.KindText); tt != nil && tt.Visible {
		for _, nc := range c.textCache {
			if at < nc.TimelineStart || at > nc.TimelineEnd {
				continue
			}
			if p, ok := nc.Payload.(timeline.TextOverlay); ok {
				overlay := p
				f.Layers = append(f.Layers, Layer{
					ClipID:    nc.ID,
					Kind:      timeline.KindText,
					LocalTime: at - nc.TimelineStart,
					Opacity:   1,
					Transform: blend.Identity(),
					Text:      &overlay,
				})
			}
		}
	}

	return f
}

// incomingLocalTime is the media-local time of the "to" clip inside a
// transition window. The incoming resource rolls from its trim-in at the
// window start; the drift sync snaps it to the exact mapping at handoff.
func incomingLocalTime(next timeline.NormalizedClip, at, windowStart float64) float64 {
	offset := at - windowStart
	if offset < 0 {
		offset = 0
	}
	return next.TrimStart + offset
}

// drawable reports whether a clip's resource can be painted: text clips have
// no resource and are always drawable; media clips need an acquired, ready
// resource.
func (c *Controller) drawable(clipID string) bool {
	r, ok := c.resources[clipID]
	if !ok {
		return false
	}
	return r.Ready()
}
