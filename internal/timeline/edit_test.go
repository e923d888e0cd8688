package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimeline(t *testing.T) Timeline {
	t.Helper()
	tl := New(120)

	var err error
	tl, err = tl.AddClip(videoClip("a", 0, 5))
	require.NoError(t, err)
	tl, err = tl.AddClip(videoClip("b", 5, 9))
	require.NoError(t, err)
	return tl
}

func clipByID(t *testing.T, tl Timeline, id string) Clip {
	t.Helper()
	c, _, _, err := tl.FindClip(id)
	require.NoError(t, err)
	return c
}

func TestMoveClampsToZero(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.Move(DefaultEditRules(), "a", -10)
	require.NoError(t, err)

	c := clipByID(t, out, "a")
	assert.Equal(t, 0.0, c.StoredStart)
	assert.Equal(t, 5.0, c.StoredEnd)
}

func TestMoveClampsToCanvasEnd(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.Move(DefaultEditRules(), "a", 500)
	require.NoError(t, err)

	c := clipByID(t, out, "a")
	assert.Equal(t, 115.0, c.StoredStart)
	assert.Equal(t, 120.0, c.StoredEnd)
}

func TestMoveSnapsToGrid(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.Move(DefaultEditRules(), "b", 10.34)
	require.NoError(t, err)

	c := clipByID(t, out, "b")
	assert.InDelta(t, 10.5, c.StoredStart, 1e-9)
	assert.InDelta(t, 4.0, c.Duration(), 1e-9)
}

func TestMoveUnknownClipLeavesTimelineUntouched(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.Move(DefaultEditRules(), "nope", 3)
	require.ErrorIs(t, err, ErrClipNotFound)
	assert.Equal(t, tl.Track(KindVideo).Clips, out.Track(KindVideo).Clips)
}

func TestMoveReorderKillsTransition(t *testing.T) {
	tl := testTimeline(t)
	tl, err := tl.SetTransition("a", "b", TransitionCrossfade, 1)
	require.NoError(t, err)

	// Push "a" past "b": the pair is no longer adjacent in that order.
	out, err := tl.Move(EditRules{SnapGrid: 0, MinClipDuration: 0.5}, "a", 20)
	require.NoError(t, err)
	assert.Empty(t, out.Transitions)
}

func TestTrimLeftShiftsTrimWindow(t *testing.T) {
	tl := testTimeline(t)

	c0 := clipByID(t, tl, "a")
	c0.TrimStart = 2
	c0.TrimEnd = 7
	tl.Track(KindVideo).Clips[0] = c0

	out, err := tl.TrimLeft(DefaultEditRules(), "a", 1.5)
	require.NoError(t, err)

	c := clipByID(t, out, "a")
	assert.InDelta(t, 1.5, c.StoredStart, 1e-9)
	assert.InDelta(t, 3.5, c.TrimStart, 1e-9)
	require.NoError(t, c.Validate())
}

func TestTrimLeftRespectsMinDuration(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.TrimLeft(DefaultEditRules(), "a", 4.9)
	require.NoError(t, err)

	c := clipByID(t, out, "a")
	assert.InDelta(t, 0.5, c.Duration(), 1e-9)
}

func TestTrimLeftCannotPrecedeSourceStart(t *testing.T) {
	tl := testTimeline(t)

	// trim-in is already 0, so the edge cannot move left at all
	out, err := tl.TrimLeft(DefaultEditRules(), "b", -3)
	require.NoError(t, err)

	c := clipByID(t, out, "b")
	assert.InDelta(t, 5.0, c.StoredStart, 1e-9)
	assert.InDelta(t, 0.0, c.TrimStart, 1e-9)
}

func TestTrimRightClampsToCanvas(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.TrimRight(DefaultEditRules(), "b", 1000)
	require.NoError(t, err)

	c := clipByID(t, out, "b")
	assert.Equal(t, 120.0, c.StoredEnd)
	assert.InDelta(t, c.Duration(), c.TrimEnd-c.TrimStart, 1e-9)
}

func TestTrimRightRespectsMinDuration(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.TrimRight(DefaultEditRules(), "a", 0.1)
	require.NoError(t, err)

	c := clipByID(t, out, "a")
	assert.InDelta(t, 0.5, c.Duration(), 1e-9)
}

func TestSplitProducesContiguousHalves(t *testing.T) {
	tl := testTimeline(t)
	original := clipByID(t, tl, "a")

	out, err := tl.Split("a", 2)
	require.NoError(t, err)

	clips := out.Track(KindVideo).Clips
	require.Len(t, clips, 3)

	left, right := clips[0], clips[1]
	assert.Equal(t, "a", left.ID)
	assert.NotEqual(t, "a", right.ID)

	assert.InDelta(t, original.Duration(), left.Duration()+right.Duration(), 1e-9)
	assert.Equal(t, left.TrimEnd, right.TrimStart)
	assert.Equal(t, original.TrimStart, left.TrimStart)
	assert.Equal(t, original.TrimEnd, right.TrimEnd)
	assert.Equal(t, left.SourceRef(), right.SourceRef())
	require.NoError(t, left.Validate())
	require.NoError(t, right.Validate())
}

func TestSplitOutsideBoundsFails(t *testing.T) {
	tl := testTimeline(t)

	for _, at := range []float64{0, 5, -1, 9} {
		out, err := tl.Split("a", at)
		require.ErrorIs(t, err, ErrInvalidSplit, "at %.1f", at)
		assert.Len(t, out.Track(KindVideo).Clips, 2)
	}
}

func TestDeleteClipPrunesTransitions(t *testing.T) {
	tl := testTimeline(t)
	tl, err := tl.SetTransition("a", "b", TransitionFade, 1)
	require.NoError(t, err)

	out, err := tl.DeleteClip("b")
	require.NoError(t, err)

	assert.Len(t, out.Track(KindVideo).Clips, 1)
	assert.Empty(t, out.Transitions)
}

func TestDeleteClipClearsSelection(t *testing.T) {
	tl := testTimeline(t)
	tl.SelectedClipID = "a"

	out, err := tl.DeleteClip("a")
	require.NoError(t, err)
	assert.Empty(t, out.SelectedClipID)
}

func TestSetTransitionUpsert(t *testing.T) {
	tl := testTimeline(t)

	tl, err := tl.SetTransition("a", "b", TransitionFade, 1)
	require.NoError(t, err)
	tl, err = tl.SetTransition("a", "b", TransitionZoom, 0.5)
	require.NoError(t, err)

	require.Len(t, tl.Transitions, 1)
	tr := tl.Transitions[TransitionKey{FromID: "a", ToID: "b"}]
	assert.Equal(t, TransitionZoom, tr.Kind)
	assert.Equal(t, 0.5, tr.Duration)
}

func TestSetTransitionNoneRemoves(t *testing.T) {
	tl := testTimeline(t)

	tl, err := tl.SetTransition("a", "b", TransitionFade, 1)
	require.NoError(t, err)
	tl, err = tl.SetTransition("a", "b", TransitionNone, 1)
	require.NoError(t, err)
	assert.Empty(t, tl.Transitions)
}

func TestSetTransitionRejectsNonAdjacent(t *testing.T) {
	tl := testTimeline(t)

	_, err := tl.SetTransition("b", "a", TransitionFade, 1)
	assert.ErrorIs(t, err, ErrNotAdjacent)
}

func TestRemoveTransitionIdempotent(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.RemoveTransition("a", "b")
	require.NoError(t, err)
	out, err = out.RemoveTransition("a", "b")
	require.NoError(t, err)
	assert.Empty(t, out.Transitions)
}

func TestAddClipRejectsBadBounds(t *testing.T) {
	tl := New(120)

	bad := videoClip("x", 5, 5)
	_, err := tl.AddClip(bad)
	assert.ErrorIs(t, err, ErrInvalidClip)

	bad = videoClip("y", 0, 5)
	bad.TrimEnd = 99
	_, err = tl.AddClip(bad)
	assert.ErrorIs(t, err, ErrInvalidClip)
}

func TestAddClipCreatesTrackPerKind(t *testing.T) {
	tl := New(120)

	tl, err := tl.AddClip(videoClip("v", 0, 5))
	require.NoError(t, err)
	tl, err = tl.AddClip(audioClip("au", 0, 5))
	require.NoError(t, err)
	tl, err = tl.AddClip(textClip("tx", 1, 2))
	require.NoError(t, err)

	require.Len(t, tl.Tracks, 3)
	for _, tr := range tl.Tracks {
		assert.True(t, tr.Visible)
		assert.Len(t, tr.Clips, 1)
	}
}

func TestAppendMediaPlacesAtTrackEnd(t *testing.T) {
	tl := testTimeline(t)

	out, err := tl.AppendMedia(KindVideo, VideoSource{SourceRef: "extra"}, 3)
	require.NoError(t, err)

	clips := out.Track(KindVideo).Clips
	require.Len(t, clips, 3)
	last := clips[2]
	assert.Equal(t, 9.0, last.StoredStart)
	assert.Equal(t, 12.0, last.StoredEnd)
	assert.Equal(t, 0.0, last.TrimStart)
	assert.Equal(t, 3.0, last.TrimEnd)
}

func TestMaxClipEndUsesNormalizedLayout(t *testing.T) {
	tl := New(120)

	// Authored with gaps: packed video ends at 9, audio keeps placement.
	tl, err := tl.AddClip(videoClip("a", 2, 7))
	require.NoError(t, err)
	tl, err = tl.AddClip(videoClip("b", 10, 14))
	require.NoError(t, err)
	assert.InDelta(t, 9.0, tl.MaxClipEnd(), 1e-9)

	tl, err = tl.AddClip(audioClip("m", 0, 30))
	require.NoError(t, err)
	assert.InDelta(t, 30.0, tl.MaxClipEnd(), 1e-9)
}
