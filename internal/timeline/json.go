package timeline

import (
	"encoding/json"
	"fmt"
)

// The persisted form is an opaque JSON document: tracks with per-kind clip
// payloads and a flat transition list. The TransitionKey map and the payload
// union are rebuilt on load.

type clipJSON struct {
	ID          string       `json:"id"`
	Kind        ClipKind     `json:"kind"`
	StoredStart float64      `json:"stored_start"`
	StoredEnd   float64      `json:"stored_end"`
	TrimStart   float64      `json:"trim_start"`
	TrimEnd     float64      `json:"trim_end"`
	Video       *VideoSource `json:"video,omitempty"`
	Audio       *AudioSource `json:"audio,omitempty"`
	Text        *TextOverlay `json:"text,omitempty"`
}

type trackJSON struct {
	ID      string     `json:"id"`
	Kind    ClipKind   `json:"kind"`
	Clips   []clipJSON `json:"clips"`
	Muted   bool       `json:"muted"`
	Visible bool       `json:"visible"`
}

type timelineJSON struct {
	TotalDuration    float64      `json:"total_duration"`
	ZoomLevel        float64      `json:"zoom_level"`
	PlayheadPosition float64      `json:"playhead_position"`
	SelectedClipID   string       `json:"selected_clip_id,omitempty"`
	Tracks           []trackJSON  `json:"tracks"`
	Transitions      []Transition `json:"transitions"`
}

// MarshalJSON implements json.Marshaler.
func (tl Timeline) MarshalJSON() ([]byte, error) {
	doc := timelineJSON{
		TotalDuration:    tl.TotalDuration,
		ZoomLevel:        tl.ZoomLevel,
		PlayheadPosition: tl.PlayheadPosition,
		SelectedClipID:   tl.SelectedClipID,
		Tracks:           make([]trackJSON, 0, len(tl.Tracks)),
		Transitions:      make([]Transition, 0, len(tl.Transitions)),
	}

	for _, tr := range tl.Tracks {
		tj := trackJSON{
			ID:      tr.ID,
			Kind:    tr.Kind,
			Clips:   make([]clipJSON, 0, len(tr.Clips)),
			Muted:   tr.Muted,
			Visible: tr.Visible,
		}
		for _, c := range tr.Clips {
			cj := clipJSON{
				ID:          c.ID,
				Kind:        c.Kind,
				StoredStart: c.StoredStart,
				StoredEnd:   c.StoredEnd,
				TrimStart:   c.TrimStart,
				TrimEnd:     c.TrimEnd,
			}
			switch p := c.Payload.(type) {
			case VideoSource:
				cj.Video = &p
			case AudioSource:
				cj.Audio = &p
			case TextOverlay:
				cj.Text = &p
			}
			tj.Clips = append(tj.Clips, cj)
		}
		doc.Tracks = append(doc.Tracks, tj)
	}

	// Deterministic order for the opaque document: track order, then clip
	// order within the track.
	for _, tr := range tl.Tracks {
		for i := 0; i+1 < len(tr.Clips); i++ {
			key := TransitionKey{FromID: tr.Clips[i].ID, ToID: tr.Clips[i+1].ID}
			if t, ok := tl.Transitions[key]; ok {
				doc.Transitions = append(doc.Transitions, t)
			}
		}
	}

	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (tl *Timeline) UnmarshalJSON(data []byte) error {
	var doc timelineJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	out := Timeline{
		TotalDuration:    doc.TotalDuration,
		ZoomLevel:        doc.ZoomLevel,
		PlayheadPosition: doc.PlayheadPosition,
		SelectedClipID:   doc.SelectedClipID,
		Tracks:           make([]Track, 0, len(doc.Tracks)),
		Transitions:      make(map[TransitionKey]Transition, len(doc.Transitions)),
	}

	for _, tj := range doc.Tracks {
		tr := Track{
			ID:      tj.ID,
			Kind:    tj.Kind,
			Clips:   make([]Clip, 0, len(tj.Clips)),
			Muted:   tj.Muted,
			Visible: tj.Visible,
		}
		for _, cj := range tj.Clips {
			c := Clip{
				ID:          cj.ID,
				Kind:        cj.Kind,
				StoredStart: cj.StoredStart,
				StoredEnd:   cj.StoredEnd,
				TrimStart:   cj.TrimStart,
				TrimEnd:     cj.TrimEnd,
			}
			switch {
			case cj.Video != nil:
				c.Payload = *cj.Video
			case cj.Audio != nil:
				c.Payload = *cj.Audio
			case cj.Text != nil:
				c.Payload = *cj.Text
			default:
				return fmt.Errorf("clip %s: missing %q payload", cj.ID, cj.Kind)
			}
			tr.Clips = append(tr.Clips, c)
		}
		out.Tracks = append(out.Tracks, tr)
	}

	for _, t := range doc.Transitions {
		out.Transitions[t.Key()] = t
	}

	*tl = out
	return nil
}
