package timeline

// Resolution is the playback state of one track at a master-clock instant.
type Resolution struct {
	// Active is the clip under the playhead, nil only when the track is
	// empty or the playhead sits before the first clip.
	Active *NormalizedClip
	// Next is the clip following Active in sequence, nil at the tail.
	Next *NormalizedClip
	// LocalTime is the media-local time of Active (trim offset applied),
	// floored at 0. Meaningless when Active is nil.
	LocalTime float64

	Transition   *Transition
	InTransition bool
	// Progress is the transition progress in [0,1].
	Progress float64
}

// ResolveAt finds the active clip, the following clip and transition state at
// the given master-clock time.
//
// Past the last clip's end the last clip stays active with zero local offset:
// once any clip exists the engine never reports "nothing playing", which
// prevents black-frame flashes from floating-point boundary drift. Before the
// first clip's start nothing is active and Next points at the first clip.
func ResolveAt(clips []NormalizedClip, at float64, transitions map[TransitionKey]Transition) Resolution {
	if len(clips) == 0 {
		return Resolution{}
	}

	if at < clips[0].TimelineStart {
		next := clips[0]
		return Resolution{Next: &next}
	}

	idx := -1
	for i := range clips {
		if at >= clips[i].TimelineStart && at <= clips[i].TimelineEnd {
			idx = i
			break
		}
	}

	var res Resolution
	if idx == -1 {
		// Past the end (or inside a gap after the last clip on an
		// unpacked track): latch onto the last clip at offset zero.
		last := clips[len(clips)-1]
		if at > last.TimelineEnd {
			res.Active = &last
			res.LocalTime = last.TrimStart
			return res
		}
		// Gap between unpacked clips: nothing active, find the next.
		for i := range clips {
			if clips[i].TimelineStart > at {
				next := clips[i]
				res.Next = &next
				break
			}
		}
		return res
	}

	active := clips[idx]
	res.Active = &active
	res.LocalTime = active.TrimStart + (at - active.TimelineStart)
	if res.LocalTime < 0 {
		res.LocalTime = 0
	}

	if idx+1 < len(clips) {
		next := clips[idx+1]
		res.Next = &next

		key := TransitionKey{FromID: active.ID, ToID: next.ID}
		if t, ok := transitions[key]; ok && t.Duration > 0 {
			res.Transition = &t
			windowStart := active.TimelineEnd - t.Duration
			if at >= windowStart && at <= active.TimelineEnd {
				res.InTransition = true
				res.Progress = clamp01((at - windowStart) / t.Duration)
			}
		}
	}

	return res
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
