package timeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// EditRules are the clamps applied by editing operations.
type EditRules struct {
	// SnapGrid is the move snap interval in seconds. Zero disables snapping.
	SnapGrid float64
	// MinClipDuration is the shortest clip a trim may produce.
	MinClipDuration float64
}

// DefaultEditRules matches the editor defaults: half-second grid, half-second
// minimum clip.
func DefaultEditRules() EditRules {
	return EditRules{SnapGrid: 0.5, MinClipDuration: 0.5}
}

// Every operation below is a pure, total function over the Timeline value:
// invalid input returns the receiver unchanged plus an error, never a partial
// mutation.

// AddClip appends a clip to the track of its kind, creating the track when
// absent. The clip's bound invariants are validated first.
func (tl Timeline) AddClip(c Clip) (Timeline, error) {
	if c.Kind != KindVideo && c.Kind != KindAudio && c.Kind != KindText {
		return tl, fmt.Errorf("%w: unknown kind %q", ErrInvalidClip, c.Kind)
	}
	if err := c.Validate(); err != nil {
		return tl, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	out := tl.Clone()
	tr := out.Track(c.Kind)
	if tr == nil {
		out.Tracks = append(out.Tracks, Track{
			ID:      uuid.NewString(),
			Kind:    c.Kind,
			Visible: true,
		})
		tr = &out.Tracks[len(out.Tracks)-1]
	}
	tr.Clips = append(tr.Clips, c)
	sortTrack(tr)
	out.pruneTransitions()
	return out, nil
}

// AppendMedia places a new clip of the given kind at the end of its track,
// playing the source from offset 0.
func (tl Timeline) AppendMedia(kind ClipKind, payload Payload, duration float64) (Timeline, error) {
	start := 0.0
	if tr := tl.Track(kind); tr != nil {
		for _, c := range tr.Clips {
			if c.StoredEnd > start {
				start = c.StoredEnd
			}
		}
	}
	return tl.AddClip(Clip{
		ID:          uuid.NewString(),
		Kind:        kind,
		StoredStart: start,
		StoredEnd:   start + duration,
		TrimStart:   0,
		TrimEnd:     duration,
		Payload:     payload,
	})
}

// Move repositions a clip, preserving its duration. The new start snaps to
// the grid and clamps to [0, totalDuration-duration].
func (tl Timeline) Move(rules EditRules, clipID string, newStart float64) (Timeline, error) {
	c, ti, ci, err := tl.FindClip(clipID)
	if err != nil {
		return tl, err
	}

	d := c.Duration()
	if rules.SnapGrid > 0 {
		newStart = math.Round(newStart/rules.SnapGrid) * rules.SnapGrid
	}
	newStart = clampRange(newStart, 0, tl.TotalDuration-d)

	out := tl.Clone()
	clip := &out.Tracks[ti].Clips[ci]
	clip.StoredStart = newStart
	clip.StoredEnd = newStart + d
	sortTrack(&out.Tracks[ti])
	out.pruneTransitions()
	return out, nil
}

// TrimLeft moves a clip's start edge, shifting the trim-in point by the same
// delta so the visible frames stay anchored. Clamped so the clip keeps at
// least the minimum duration and the trim-in never precedes the source start.
func (tl Timeline) TrimLeft(rules EditRules, clipID string, newStart float64) (Timeline, error) {
	c, ti, ci, err := tl.FindClip(clipID)
	if err != nil {
		return tl, err
	}

	lo := c.StoredStart - c.TrimStart // trim_start reaches 0 here
	if lo < 0 {
		lo = 0
	}
	hi := c.StoredEnd - rules.MinClipDuration
	if hi < lo {
		hi = lo
	}
	newStart = clampRange(newStart, lo, hi)
	delta := newStart - c.StoredStart

	out := tl.Clone()
	clip := &out.Tracks[ti].Clips[ci]
	clip.StoredStart += delta
	clip.TrimStart += delta
	sortTrack(&out.Tracks[ti])
	out.pruneTransitions()
	return out, nil
}

// TrimRight moves a clip's end edge, shifting the trim-out point by the same
// delta. Clamped to the timeline's total duration and the minimum duration.
func (tl Timeline) TrimRight(rules EditRules, clipID string, newEnd float64) (Timeline, error) {
	c, ti, ci, err := tl.FindClip(clipID)
	if err != nil {
		return tl, err
	}

	lo := c.StoredStart + rules.MinClipDuration
	hi := tl.TotalDuration
	if hi < lo {
		hi = lo
	}
	newEnd = clampRange(newEnd, lo, hi)
	delta := newEnd - c.StoredEnd

	out := tl.Clone()
	clip := &out.Tracks[ti].Clips[ci]
	clip.StoredEnd += delta
	clip.TrimEnd += delta
	sortTrack(&out.Tracks[ti])
	out.pruneTransitions()
	return out, nil
}

// Split cuts a clip at an author-time point strictly inside its bounds. The
// left half keeps the original id and plays [start, at); the right half gets
// a fresh id and plays [at, end). Their trim windows are contiguous, so the
// combined playback equals the original.
func (tl Timeline) Split(clipID string, at float64) (Timeline, error) {
	c, ti, ci, err := tl.FindClip(clipID)
	if err != nil {
		return tl, err
	}
	if at <= c.StoredStart || at >= c.StoredEnd {
		return tl, fmt.Errorf("%w: %.3f not inside (%.3f, %.3f)", ErrInvalidSplit, at, c.StoredStart, c.StoredEnd)
	}

	cut := c.TrimStart + (at - c.StoredStart)

	left := c
	left.StoredEnd = at
	left.TrimEnd = cut

	right := c
	right.ID = uuid.NewString()
	right.StoredStart = at
	right.TrimStart = cut

	out := tl.Clone()
	tr := &out.Tracks[ti]
	tr.Clips[ci] = left
	tr.Clips = append(tr.Clips, Clip{})
	copy(tr.Clips[ci+2:], tr.Clips[ci+1:])
	tr.Clips[ci+1] = right
	sortTrack(tr)
	out.pruneTransitions()
	return out, nil
}

// DeleteClip removes a clip and any transition that referenced it.
func (tl Timeline) DeleteClip(clipID string) (Timeline, error) {
	_, ti, ci, err := tl.FindClip(clipID)
	if err != nil {
		return tl, err
	}

	out := tl.Clone()
	tr := &out.Tracks[ti]
	tr.Clips = append(tr.Clips[:ci], tr.Clips[ci+1:]...)
	if out.SelectedClipID == clipID {
		out.SelectedClipID = ""
	}
	out.pruneTransitions()
	return out, nil
}

// SetTransition upserts the transition for an ordered adjacent pair. Setting
// kind "none" removes it. Idempotent.
func (tl Timeline) SetTransition(fromID, toID string, kind TransitionKind, duration float64) (Timeline, error) {
	if kind == TransitionNone {
		return tl.RemoveTransition(fromID, toID)
	}
	if !tl.adjacent(fromID, toID) {
		return tl, fmt.Errorf("%w: %s -> %s", ErrNotAdjacent, fromID, toID)
	}
	if duration <= 0 {
		return tl, fmt.Errorf("%w: transition duration %.3f", ErrInvalidClip, duration)
	}

	out := tl.Clone()
	t := Transition{FromID: fromID, ToID: toID, Kind: kind, Duration: duration}
	out.Transitions[t.Key()] = t
	return out, nil
}

// RemoveTransition deletes the transition for a pair. Idempotent: removing a
// transition that does not exist is a no-op.
func (tl Timeline) RemoveTransition(fromID, toID string) (Timeline, error) {
	out := tl.Clone()
	delete(out.Transitions, TransitionKey{FromID: fromID, ToID: toID})
	return out, nil
}

// adjacent reports whether toID immediately follows fromID on some track.
func (tl Timeline) adjacent(fromID, toID string) bool {
	for _, tr := range tl.Tracks {
		for i := 0; i+1 < len(tr.Clips); i++ {
			if tr.Clips[i].ID == fromID && tr.Clips[i+1].ID == toID {
				return true
			}
		}
	}
	return false
}

// pruneTransitions drops transitions whose pair is no longer adjacent —
// reordering or deleting either clip kills the transition.
func (tl *Timeline) pruneTransitions() {
	for key := range tl.Transitions {
		if !tl.adjacent(key.FromID, key.ToID) {
			delete(tl.Transitions, key)
		}
	}
}

func sortTrack(tr *Track) {
	sort.SliceStable(tr.Clips, func(i, j int) bool {
		return tr.Clips[i].StoredStart < tr.Clips[j].StoredStart
	})
}

func clampRange(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
