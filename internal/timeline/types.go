// Package timeline holds the editor's value-oriented data model: tracks of
// trimmed clips, transitions between adjacent clips, and the pure operations
// that lay clips onto the master clock, resolve playback state at a point in
// time, and edit the timeline without ever exposing a partial mutation.
package timeline

import (
	"errors"
	"fmt"
)

// Sentinel errors — callers use errors.Is() instead of string matching.
var (
	ErrClipNotFound  = errors.New("clip not found")
	ErrTrackNotFound = errors.New("track not found")
	ErrInvalidClip   = errors.New("invalid clip bounds")
	ErrInvalidSplit  = errors.New("split point outside clip bounds")
	ErrNotAdjacent   = errors.New("clips are not adjacent on a track")
)

// ClipKind discriminates clip payloads. At most one track exists per kind.
type ClipKind string

const (
	KindVideo ClipKind = "video"
	KindAudio ClipKind = "audio"
	KindText  ClipKind = "text"
)

// Payload carries the per-kind fields of a clip.
type Payload interface {
	clipPayload()
}

// VideoSource is the payload of a video clip.
type VideoSource struct {
	SourceRef string `json:"source_ref"`
}

// AudioSource is the payload of an audio clip. Muted silences this clip only;
// mixing beyond that is out of scope.
type AudioSource struct {
	SourceRef string `json:"source_ref"`
	Muted     bool   `json:"muted,omitempty"`
}

// TextOverlay is the payload of a text clip.
type TextOverlay struct {
	Content  string `json:"content"`
	Font     string `json:"font,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
	Color    string `json:"color,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

func (VideoSource) clipPayload() {}
func (AudioSource) clipPayload() {}
func (TextOverlay) clipPayload() {}

// Clip is a trimmed placement of source media on a track. StoredStart and
// StoredEnd are author-time bounds; TrimStart and TrimEnd are offsets into the
// source. The trim window duration always equals the placed duration —
// trimming shifts offsets, never playback rate.
type Clip struct {
	ID          string
	Kind        ClipKind
	StoredStart float64
	StoredEnd   float64
	TrimStart   float64
	TrimEnd     float64
	Payload     Payload
}

// Duration returns the placed duration in seconds.
func (c Clip) Duration() float64 {
	return c.StoredEnd - c.StoredStart
}

// SourceRef returns the media reference for video/audio clips, "" for text.
func (c Clip) SourceRef() string {
	switch p := c.Payload.(type) {
	case VideoSource:
		return p.SourceRef
	case AudioSource:
		return p.SourceRef
	}
	return ""
}

// Validate checks the clip's bound invariants.
func (c Clip) Validate() error {
	if c.StoredEnd <= c.StoredStart {
		return fmt.Errorf("%w: stored_end %.3f <= stored_start %.3f", ErrInvalidClip, c.StoredEnd, c.StoredStart)
	}
	if c.TrimStart < 0 {
		return fmt.Errorf("%w: trim_start %.3f < 0", ErrInvalidClip, c.TrimStart)
	}
	const eps = 1e-9
	if diff := (c.TrimEnd - c.TrimStart) - c.Duration(); diff > eps || diff < -eps {
		return fmt.Errorf("%w: trim window %.3f != placed duration %.3f", ErrInvalidClip, c.TrimEnd-c.TrimStart, c.Duration())
	}
	return nil
}

// Track is an ordered lane of clips of one kind.
type Track struct {
	ID      string
	Kind    ClipKind
	Clips   []Clip
	Muted   bool
	Visible bool
}

// TransitionKind selects the blend applied across a clip boundary.
type TransitionKind string

const (
	TransitionNone       TransitionKind = "none"
	TransitionFade       TransitionKind = "fade"
	TransitionCrossfade  TransitionKind = "crossfade"
	TransitionSlideLeft  TransitionKind = "slide-left"
	TransitionSlideRight TransitionKind = "slide-right"
	TransitionZoom       TransitionKind = "zoom"
	TransitionBlur       TransitionKind = "blur"
)

// TransitionKey identifies a transition by its ordered adjacent-clip pair.
type TransitionKey struct {
	FromID string
	ToID   string
}

// Transition blends the tail of one clip into the head of the next. At most
// one exists per ordered pair.
type Transition struct {
	FromID   string         `json:"from_id"`
	ToID     string         `json:"to_id"`
	Kind     TransitionKind `json:"kind"`
	Duration float64        `json:"duration"`
}

// Key returns the map key for this transition.
func (t Transition) Key() TransitionKey {
	return TransitionKey{FromID: t.FromID, ToID: t.ToID}
}

// Timeline is the aggregate editing state. It is a value: editing operations
// return a new Timeline and never mutate their receiver on failure.
type Timeline struct {
	TotalDuration    float64
	ZoomLevel        float64
	PlayheadPosition float64
	SelectedClipID   string
	Tracks           []Track
	Transitions      map[TransitionKey]Transition
}

// NormalizedClip is the derived, non-persisted master-clock view of a clip.
type NormalizedClip struct {
	Clip
	TimelineStart float64
	TimelineEnd   float64
}

// New returns an empty timeline with the given canvas duration.
func New(totalDuration float64) Timeline {
	return Timeline{
		TotalDuration: totalDuration,
		ZoomLevel:     1,
		Transitions:   map[TransitionKey]Transition{},
	}
}

// Track returns the track of the given kind, or nil.
func (tl Timeline) Track(kind ClipKind) *Track {
	for i := range tl.Tracks {
		if tl.Tracks[i].Kind == kind {
			return &tl.Tracks[i]
		}
	}
	return nil
}

// FindClip locates a clip by id, returning its track and position.
func (tl Timeline) FindClip(id string) (clip Clip, trackIdx, clipIdx int, err error) {
	for ti := range tl.Tracks {
		for ci := range tl.Tracks[ti].Clips {
			if tl.Tracks[ti].Clips[ci].ID == id {
				return tl.Tracks[ti].Clips[ci], ti, ci, nil
			}
		}
	}
	return Clip{}, -1, -1, fmt.Errorf("%w: %s", ErrClipNotFound, id)
}

// MaxClipEnd returns the latest master-clock end across all tracks, using the
// normalized layout. Zero when the timeline is empty.
func (tl Timeline) MaxClipEnd() float64 {
	end := 0.0
	for _, tr := range tl.Tracks {
		for _, nc := range Normalize(tr) {
			if nc.TimelineEnd > end {
				end = nc.TimelineEnd
			}
		}
	}
	return end
}

// Empty reports whether no track holds any clip.
func (tl Timeline) Empty() bool {
	for _, tr := range tl.Tracks {
		if len(tr.Clips) > 0 {
			return false
		}
	}
	return true
}

// Clone deep-copies the timeline. Payloads are value types, so copying the
// clip slice copies them too.
func (tl Timeline) Clone() Timeline {
	out := tl
	out.Tracks = make([]Track, len(tl.Tracks))
	for i, tr := range tl.Tracks {
		cp := tr
		cp.Clips = append([]Clip(nil), tr.Clips...)
		out.Tracks[i] = cp
	}
	out.Transitions = make(map[TransitionKey]Transition, len(tl.Transitions))
	for k, v := range tl.Transitions {
		out.Transitions[k] = v
	}
	return out
}
