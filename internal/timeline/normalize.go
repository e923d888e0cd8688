package timeline

import "sort"

// Normalize lays a track's clips onto the master clock.
//
// Video tracks pack: author-time gaps are removed and clips are placed
// back-to-back in stored order, so the backing track always plays gapless.
// Audio and text tracks are NOT packed — their master-clock bounds equal
// their stored bounds verbatim, keeping overlays exactly where the author
// placed them. The asymmetry is deliberate and must not be unified.
//
// Packing an already-packed video track is a fixed point.
func Normalize(track Track) []NormalizedClip {
	clips := append([]Clip(nil), track.Clips...)
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].StoredStart < clips[j].StoredStart
	})

	out := make([]NormalizedClip, 0, len(clips))

	if track.Kind != KindVideo {
		for _, c := range clips {
			out = append(out, NormalizedClip{
				Clip:          c,
				TimelineStart: c.StoredStart,
				TimelineEnd:   c.StoredEnd,
			})
		}
		return out
	}

	cursor := 0.0
	for _, c := range clips {
		d := c.Duration()
		out = append(out, NormalizedClip{
			Clip:          c,
			TimelineStart: cursor,
			TimelineEnd:   cursor + d,
		})
		cursor += d
	}
	return out
}
