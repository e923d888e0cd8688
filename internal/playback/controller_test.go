package playback

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/cutdeck/internal/media"
	"github.com/keagan/cutdeck/internal/timeline"
)

func clip(kind timeline.ClipKind, id string, start, end float64, payload timeline.Payload) timeline.Clip {
	return timeline.Clip{
		ID:          id,
		Kind:        kind,
		StoredStart: start,
		StoredEnd:   end,
		TrimStart:   0,
		TrimEnd:     end - start,
		Payload:     payload,
	}
}

// twoClipTimeline: video clips a=[0,5) b=[5,9) with a 1s crossfade.
func twoClipTimeline(t *testing.T) timeline.Timeline {
	t.Helper()
	tl := timeline.New(120)

	var err error
	tl, err = tl.AddClip(clip(timeline.KindVideo, "a", 0, 5, timeline.VideoSource{SourceRef: "src-a"}))
	require.NoError(t, err)
	tl, err = tl.AddClip(clip(timeline.KindVideo, "b", 5, 9, timeline.VideoSource{SourceRef: "src-b"}))
	require.NoError(t, err)
	tl, err = tl.SetTransition("a", "b", timeline.TransitionCrossfade, 1)
	require.NoError(t, err)
	return tl
}

func newTestController(t *testing.T, tl timeline.Timeline) (*Controller, *media.SimProvider) {
	t.Helper()
	provider := media.NewSimProvider(map[string]float64{
		"src-a": 10,
		"src-b": 10,
		"src-m": 30,
	})
	return NewController(zerolog.Nop(), tl, provider, DefaultOptions()), provider
}

func TestPlayTickEmitsFrame(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	var frames []Frame
	ctrl.OnFrame(func(f Frame) { frames = append(frames, f) })

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)

	assert.Equal(t, StatePlaying, ctrl.State())
	assert.InDelta(t, 0.1, ctrl.MasterTime(), 1e-9)

	require.Len(t, frames, 1)
	require.Len(t, frames[0].Layers, 1)
	layer := frames[0].Layers[0]
	assert.Equal(t, "a", layer.ClipID)
	assert.Equal(t, 1.0, layer.Opacity)
	assert.InDelta(t, 0.1, layer.LocalTime, 1e-9)

	require.Len(t, provider.Created(), 1)
	assert.True(t, provider.Created()[0].Playing())
}

func TestFreeRunWithinDriftThreshold(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)
	ctrl.Tick(0.05)

	// masterTime 0.15, resource never advanced: drift 0.15 stays under the
	// 0.2 threshold, so no corrective seek is issued.
	assert.Equal(t, 0.0, provider.Created()[0].LocalTime())
}

func TestHardSeekPastDriftThreshold(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)
	ctrl.Tick(0.1)
	ctrl.Tick(0.1)

	// drift 0.3 > 0.2: the engine snaps the resource to the master clock.
	assert.InDelta(t, 0.3, provider.Created()[0].LocalTime(), 1e-9)
}

func TestTransitionActivatesPair(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	var last Frame
	ctrl.OnFrame(func(f Frame) { last = f })

	require.NoError(t, ctrl.Play(4.4))
	ctrl.Tick(0.2) // 4.6, inside the [4,5] window

	require.Len(t, last.Layers, 2)
	assert.Equal(t, "a", last.Layers[0].ClipID)
	assert.Equal(t, "b", last.Layers[1].ClipID)
	assert.InDelta(t, 0.4, last.Layers[0].Opacity, 1e-9)
	assert.InDelta(t, 0.6, last.Layers[1].Opacity, 1e-9)
	// incoming clip rolls from its trim-in relative to the window start
	assert.InDelta(t, 0.6, last.Layers[1].LocalTime, 1e-9)

	require.Len(t, provider.Created(), 2)
	assert.True(t, provider.Created()[0].Playing())
	assert.True(t, provider.Created()[1].Playing())
}

func TestHandoffPausesOutgoingClip(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(4.4))
	ctrl.Tick(0.2) // 4.6: both playing
	ctrl.Tick(0.6) // 5.2: b active, a must pause

	require.Len(t, provider.Created(), 2)
	assert.False(t, provider.Created()[0].Playing())
	assert.True(t, provider.Created()[1].Playing())
}

func TestStopAtEndResetsEverything(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(8.5))
	ctrl.Tick(0.3) // 8.8, clip b active
	require.Len(t, provider.Created(), 1)
	r := provider.Created()[0]
	require.NoError(t, r.Seek(3.8))
	r.Play()

	ctrl.Tick(0.3) // 9.1 >= last end 9: single authoritative stop path

	assert.Equal(t, StateStopped, ctrl.State())
	assert.Equal(t, 0.0, ctrl.MasterTime())
	assert.False(t, r.Playing())
	assert.Equal(t, 0.0, r.LocalTime())
}

func TestStopConditionUsesCanvasDuration(t *testing.T) {
	tl := timeline.New(2) // canvas shorter than the clips
	var err error
	tl, err = tl.AddClip(clip(timeline.KindVideo, "a", 0, 5, timeline.VideoSource{SourceRef: "src-a"}))
	require.NoError(t, err)

	ctrl, _ := newTestController(t, tl)
	require.NoError(t, ctrl.Play(1.9))
	ctrl.Tick(0.2) // 2.1 >= totalDuration 2

	assert.Equal(t, StateStopped, ctrl.State())
	assert.Equal(t, 0.0, ctrl.MasterTime())
}

func TestPausePreservesPosition(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(1))
	ctrl.Tick(0.5)
	r := provider.Created()[0]
	require.NoError(t, r.Seek(1.5))

	require.NoError(t, ctrl.Pause())
	assert.Equal(t, StateStopped, ctrl.State())
	assert.InDelta(t, 1.5, ctrl.MasterTime(), 1e-9)
	assert.False(t, r.Playing())
	assert.InDelta(t, 1.5, r.LocalTime(), 1e-9) // local time kept, not reset

	// ticks are inert while stopped
	ctrl.Tick(0.5)
	assert.InDelta(t, 1.5, ctrl.MasterTime(), 1e-9)
}

func TestTransportStateErrors(t *testing.T) {
	ctrl, _ := newTestController(t, twoClipTimeline(t))

	require.ErrorIs(t, ctrl.Pause(), ErrInvalidState)
	require.NoError(t, ctrl.Play(0))
	require.ErrorIs(t, ctrl.Play(2), ErrInvalidState)
}

func TestScrubWhileStopped(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	ctrl.SeekTo(2.5)

	assert.Equal(t, StateStopped, ctrl.State())
	assert.InDelta(t, 2.5, ctrl.MasterTime(), 1e-9)

	require.Len(t, provider.Created(), 1)
	r := provider.Created()[0]
	assert.InDelta(t, 2.5, r.LocalTime(), 1e-9)
	assert.False(t, r.Playing()) // scrubbing never enters PLAYING
}

func TestEmptyTimelineIssuesNoCommands(t *testing.T) {
	ctrl, provider := newTestController(t, timeline.New(120))

	res := ctrl.Resolve(3)
	assert.Nil(t, res.Active)

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)

	assert.Equal(t, StateStopped, ctrl.State())
	assert.Empty(t, provider.Created())
}

// pendingProvider hands out resources whose metadata has not loaded yet.
type pendingProvider struct {
	resources []*media.SimResource
}

func (p *pendingProvider) Acquire(sourceRef string) (media.Resource, error) {
	r := media.NewPendingResource(10)
	p.resources = append(p.resources, r)
	return r, nil
}

func TestNotReadyResourceIsSkippedNotDrawn(t *testing.T) {
	tl := timeline.New(120)
	var err error
	tl, err = tl.AddClip(clip(timeline.KindVideo, "a", 0, 5, timeline.VideoSource{SourceRef: "src-a"}))
	require.NoError(t, err)

	provider := &pendingProvider{}
	ctrl := NewController(zerolog.Nop(), tl, provider, DefaultOptions())

	var last Frame
	ctrl.OnFrame(func(f Frame) { last = f })

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)

	// Degraded frame: the clip is skipped, playback continues.
	assert.Equal(t, StatePlaying, ctrl.State())
	assert.Empty(t, last.Layers)
	require.Len(t, provider.resources, 1)
	assert.False(t, provider.resources[0].Playing())

	provider.resources[0].MarkReady()
	ctrl.Tick(0.1)

	require.Len(t, last.Layers, 1)
	assert.True(t, provider.resources[0].Playing())
}

func TestLateReadinessSignalIgnored(t *testing.T) {
	tl := timeline.New(120)
	var err error
	tl, err = tl.AddClip(clip(timeline.KindVideo, "a", 0, 5, timeline.VideoSource{SourceRef: "src-a"}))
	require.NoError(t, err)

	provider := &pendingProvider{}
	ctrl := NewController(zerolog.Nop(), tl, provider, DefaultOptions())

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)
	require.Len(t, provider.resources, 1)

	// The clip is edited away before its media loads; the readiness
	// callback must hit the clip-id guard and fall through.
	require.NoError(t, ctrl.Pause())
	require.NoError(t, ctrl.DeleteClip("a"))
	provider.resources[0].MarkReady()

	ctrl.HandleResourceReady("ghost-clip")
}

func TestReentrantTickDropped(t *testing.T) {
	ctrl, _ := newTestController(t, twoClipTimeline(t))

	ctrl.OnFrame(func(Frame) {
		ctrl.Tick(1) // host callback overlap: must be dropped by the guard
	})

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)

	assert.InDelta(t, 0.1, ctrl.MasterTime(), 1e-9)
}

func TestDeleteClipReleasesResource(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	require.NoError(t, ctrl.Play(0))
	ctrl.Tick(0.1)
	r := provider.Created()[0]
	require.True(t, r.Playing())

	require.NoError(t, ctrl.DeleteClip("a"))
	assert.False(t, r.Playing())
}

func TestEditFailureLeavesTimelineUntouched(t *testing.T) {
	ctrl, _ := newTestController(t, twoClipTimeline(t))

	before := ctrl.Timeline()
	err := ctrl.Split("a", 99)
	require.ErrorIs(t, err, timeline.ErrInvalidSplit)
	assert.Equal(t, before.Track(timeline.KindVideo).Clips, ctrl.Timeline().Track(timeline.KindVideo).Clips)
}

func TestMutedAudioClipNotPlayed(t *testing.T) {
	tl := twoClipTimeline(t)
	var err error
	tl, err = tl.AddClip(clip(timeline.KindAudio, "m", 0, 9, timeline.AudioSource{SourceRef: "src-m", Muted: true}))
	require.NoError(t, err)

	ctrl, provider := newTestController(t, tl)

	var last Frame
	ctrl.OnFrame(func(f Frame) { last = f })

	require.NoError(t, ctrl.Play(1))
	ctrl.Tick(0.1)

	for _, l := range last.Layers {
		assert.NotEqual(t, timeline.KindAudio, l.Kind)
	}
	require.Len(t, provider.Created(), 1) // only the video resource
}

func TestAudioTrackPlaysWhenAudible(t *testing.T) {
	tl := twoClipTimeline(t)
	var err error
	tl, err = tl.AddClip(clip(timeline.KindAudio, "m", 0, 9, timeline.AudioSource{SourceRef: "src-m"}))
	require.NoError(t, err)

	ctrl, provider := newTestController(t, tl)

	var last Frame
	ctrl.OnFrame(func(f Frame) { last = f })

	require.NoError(t, ctrl.Play(1))
	ctrl.Tick(0.1)

	kinds := make(map[timeline.ClipKind]int)
	for _, l := range last.Layers {
		kinds[l.Kind]++
	}
	assert.Equal(t, 1, kinds[timeline.KindVideo])
	assert.Equal(t, 1, kinds[timeline.KindAudio])
	assert.Len(t, provider.Created(), 2)
}

func TestTextOverlayComposited(t *testing.T) {
	tl := twoClipTimeline(t)
	var err error
	tl, err = tl.AddClip(clip(timeline.KindText, "title", 1, 3, timeline.TextOverlay{Content: "hello"}))
	require.NoError(t, err)

	ctrl, _ := newTestController(t, tl)

	var last Frame
	ctrl.OnFrame(func(f Frame) { last = f })

	require.NoError(t, ctrl.Play(1.5))
	ctrl.Tick(0.1)

	var text *Layer
	for i := range last.Layers {
		if last.Layers[i].Kind == timeline.KindText {
			text = &last.Layers[i]
		}
	}
	require.NotNil(t, text)
	require.NotNil(t, text.Text)
	assert.Equal(t, "hello", text.Text.Content)

	// outside the overlay window the layer disappears
	ctrl.Tick(1.6) // 3.2
	for _, l := range last.Layers {
		assert.NotEqual(t, timeline.KindText, l.Kind)
	}
}

func TestSnapshotIssuesNoCommands(t *testing.T) {
	ctrl, provider := newTestController(t, twoClipTimeline(t))

	f := ctrl.Snapshot()
	assert.Equal(t, 0.0, f.MasterTime)
	assert.Empty(t, provider.Created()) // composing alone acquires nothing
}
