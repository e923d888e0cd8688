// Package playback owns the preview clock: a STOPPED/PLAYING state machine
// advanced by host ticks, which keeps per-clip media resources in sync with
// the master clock and emits a composite frame per tick.
//
// Scheduling is single-threaded and cooperative. The controller is the one
// writer of the timeline value and of every resource it acquired; ticks are
// serialized by a re-entrancy guard in case the host overlaps callbacks.
package playback

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/keagan/cutdeck/internal/blend"
	"github.com/keagan/cutdeck/internal/media"
	"github.com/keagan/cutdeck/internal/timeline"
)

// ErrInvalidState rejects operations that do not fit the current machine
// state (StateError): the timeline is left untouched.
var ErrInvalidState = errors.New("operation invalid for current playback state")

// State is the playback machine state.
type State int

const (
	StateStopped State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "stopped"
}

// Options tunes the controller.
type Options struct {
	// DriftThreshold is the media/master divergence in seconds beyond
	// which a hard seek is issued. Below it the resource free-runs, which
	// avoids per-frame seek stutter.
	DriftThreshold float64
	EditRules      timeline.EditRules
	Blender        blend.Blender
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		DriftThreshold: 0.2,
		EditRules:      timeline.DefaultEditRules(),
		Blender:        blend.Default(),
	}
}

// Controller drives preview playback over one timeline value.
type Controller struct {
	logger   zerolog.Logger
	provider media.Provider
	blender  blend.Blender
	rules    timeline.EditRules
	drift    float64

	tl         timeline.Timeline
	state      State
	masterTime float64
	ticking    bool

	// resources are keyed by clip id: each clip owns its own handle even
	// when two clips share a source (split halves must seek independently).
	resources map[string]media.Resource
	playing   map[string]bool
	failed    map[string]bool
	pending   map[string]bool

	// normalized layouts, rebuilt whenever the timeline changes
	videoCache []timeline.NormalizedClip
	audioCache []timeline.NormalizedClip
	textCache  []timeline.NormalizedClip
	maxEnd     float64

	onFrame func(Frame)
}

// readyNotifier is implemented by resources that deliver an asynchronous
// metadata-loaded signal.
type readyNotifier interface {
	OnReady(fn func())
}

// NewController creates a controller owning the given timeline value.
func NewController(logger zerolog.Logger, tl timeline.Timeline, provider media.Provider, opts Options) *Controller {
	if opts.DriftThreshold <= 0 {
		opts.DriftThreshold = DefaultOptions().DriftThreshold
	}
	c := &Controller{
		logger:    logger.With().Str("component", "playback").Logger(),
		provider:  provider,
		blender:   opts.Blender,
		rules:     opts.EditRules,
		drift:     opts.DriftThreshold,
		tl:        tl.Clone(),
		resources: make(map[string]media.Resource),
		playing:   make(map[string]bool),
		failed:    make(map[string]bool),
		pending:   make(map[string]bool),
	}
	c.invalidate()
	return c
}

// OnFrame registers the per-tick render callback.
func (c *Controller) OnFrame(fn func(Frame)) { c.onFrame = fn }

// Timeline returns a copy of the current timeline value.
func (c *Controller) Timeline() timeline.Timeline { return c.tl.Clone() }

// MasterTime returns the current master-clock position.
func (c *Controller) MasterTime() float64 { return c.masterTime }

// State returns the machine state.
func (c *Controller) State() State { return c.state }

// Resolve reports the video-track playback state at an arbitrary time.
func (c *Controller) Resolve(at float64) timeline.Resolution {
	return timeline.ResolveAt(c.videoCache, at, c.tl.Transitions)
}

// Snapshot composes a frame at the current master time without issuing any
// media commands. Used for repaints while scrubbing.
func (c *Controller) Snapshot() Frame {
	video := timeline.ResolveAt(c.videoCache, c.masterTime, c.tl.Transitions)
	audio := timeline.ResolveAt(c.audioCache, c.masterTime, c.tl.Transitions)
	return c.compose(c.masterTime, video, audio)
}

// ---------------------------------------------------------------------------
// Editing — each mutator threads the pure timeline operation through the
// controller so caches and resources stay consistent. A failed operation
// leaves everything untouched.
// ---------------------------------------------------------------------------

func (c *Controller) apply(op func(timeline.Timeline) (timeline.Timeline, error)) error {
	next, err := op(c.tl)
	if err != nil {
		return err
	}
	c.tl = next
	c.invalidate()
	return nil
}

// AddClip adds a validated clip to the track of its kind.
func (c *Controller) AddClip(clip timeline.Clip) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.AddClip(clip)
	})
}

// AppendMedia places new source media at the end of its track.
func (c *Controller) AppendMedia(kind timeline.ClipKind, payload timeline.Payload, duration float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.AppendMedia(kind, payload, duration)
	})
}

// Move repositions a clip with snap and clamping.
func (c *Controller) Move(clipID string, newStart float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.Move(c.rules, clipID, newStart)
	})
}

// TrimLeft adjusts a clip's start edge.
func (c *Controller) TrimLeft(clipID string, newStart float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.TrimLeft(c.rules, clipID, newStart)
	})
}

// TrimRight adjusts a clip's end edge.
func (c *Controller) TrimRight(clipID string, newEnd float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.TrimRight(c.rules, clipID, newEnd)
	})
}

// Split cuts a clip at an author-time point.
func (c *Controller) Split(clipID string, at float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.Split(clipID, at)
	})
}

// DeleteClip removes a clip and its transitions.
func (c *Controller) DeleteClip(clipID string) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.DeleteClip(clipID)
	})
}

// SetTransition upserts the transition for an adjacent pair.
func (c *Controller) SetTransition(fromID, toID string, kind timeline.TransitionKind, duration float64) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.SetTransition(fromID, toID, kind, duration)
	})
}

// RemoveTransition deletes the transition for a pair.
func (c *Controller) RemoveTransition(fromID, toID string) error {
	return c.apply(func(tl timeline.Timeline) (timeline.Timeline, error) {
		return tl.RemoveTransition(fromID, toID)
	})
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// Play enters PLAYING from the given master time.
func (c *Controller) Play(from float64) error {
	if c.state == StatePlaying {
		return fmt.Errorf("%w: already playing", ErrInvalidState)
	}
	c.masterTime = clampRange(from, 0, c.tl.TotalDuration)
	c.tl.PlayheadPosition = c.masterTime
	c.state = StatePlaying
	c.logger.Debug().Float64("from", c.masterTime).Msg("playback started")
	return nil
}

// Pause returns to STOPPED preserving the master time. Resources that were
// playing are paused in place; already-paused resources are left untouched.
func (c *Controller) Pause() error {
	if c.state != StatePlaying {
		return fmt.Errorf("%w: not playing", ErrInvalidState)
	}
	c.state = StateStopped
	for id, on := range c.playing {
		if on {
			c.resources[id].Pause()
			c.playing[id] = false
		}
	}
	c.logger.Debug().Float64("at", c.masterTime).Msg("playback paused")
	return nil
}

// SeekTo moves the master clock. While STOPPED this scrubs: the active
// resource's local time is updated without entering playback. While PLAYING
// the next tick's drift check snaps resources to the new position.
func (c *Controller) SeekTo(at float64) {
	c.masterTime = clampRange(at, 0, c.tl.TotalDuration)
	c.tl.PlayheadPosition = c.masterTime

	if c.state == StatePlaying {
		return
	}

	video := timeline.ResolveAt(c.videoCache, c.masterTime, c.tl.Transitions)
	if video.Active != nil {
		if r := c.resource(*video.Active); r != nil && r.Ready() {
			c.seekResource(video.Active.ID, r, video.LocalTime)
		}
	}
	audio := timeline.ResolveAt(c.audioCache, c.masterTime, c.tl.Transitions)
	if audio.Active != nil && c.masterTime <= audio.Active.TimelineEnd {
		if r := c.resource(*audio.Active); r != nil && r.Ready() {
			c.seekResource(audio.Active.ID, r, audio.LocalTime)
		}
	}
}

// Tick advances the master clock by delta seconds. The host calls this from
// its timed loop; overlapping calls are dropped by the re-entrancy guard.
func (c *Controller) Tick(delta float64) {
	if c.ticking {
		return
	}
	c.ticking = true
	defer func() { c.ticking = false }()

	if c.state != StatePlaying {
		return
	}

	c.masterTime += delta
	c.tl.PlayheadPosition = c.masterTime

	// Single authoritative stop path: past the last clip or past the
	// canvas, whichever comes first.
	if c.masterTime >= c.maxEnd || c.masterTime >= c.tl.TotalDuration {
		c.stop()
		return
	}

	video := timeline.ResolveAt(c.videoCache, c.masterTime, c.tl.Transitions)
	audio := timeline.ResolveAt(c.audioCache, c.masterTime, c.tl.Transitions)

	desired := make(map[string]bool, 3)

	if video.Active != nil && c.masterTime <= video.Active.TimelineEnd {
		desired[video.Active.ID] = true
		c.syncResource(*video.Active, video.LocalTime)

		if video.InTransition && video.Next != nil {
			// The incoming half of the transition pair plays too.
			windowStart := video.Active.TimelineEnd - video.Transition.Duration
			desired[video.Next.ID] = true
			c.syncResource(*video.Next, incomingLocalTime(*video.Next, c.masterTime, windowStart))
		}
	}

	if audio.Active != nil && c.masterTime <= audio.Active.TimelineEnd {
		tr := c.tl.Track(timeline.KindAudio)
		muted := tr != nil && tr.Muted
		if p, ok := audio.Active.Payload.(timeline.AudioSource); ok && p.Muted {
			muted = true
		}
		if !muted {
			desired[audio.Active.ID] = true
			c.syncResource(*audio.Active, audio.LocalTime)
		}
	}

	// Everything not active and not part of the active transition pair is
	// paused where it stands.
	for id, on := range c.playing {
		if on && !desired[id] {
			c.resources[id].Pause()
			c.playing[id] = false
		}
	}

	if c.onFrame != nil {
		c.onFrame(c.compose(c.masterTime, video, audio))
	}
}

// HandleResourceReady is the readiness callback, guarded by clip id: signals
// for clips that were edited away after the request are ignored.
func (c *Controller) HandleResourceReady(clipID string) {
	if !c.pending[clipID] {
		c.logger.Debug().Str("clip", clipID).Msg("late readiness signal ignored")
		return
	}
	delete(c.pending, clipID)
	c.logger.Debug().Str("clip", clipID).Msg("resource ready")
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

// stop is the single authoritative stop path: master clock back to zero,
// every acquired resource paused and rewound.
func (c *Controller) stop() {
	c.state = StateStopped
	c.masterTime = 0
	c.tl.PlayheadPosition = 0
	for id, r := range c.resources {
		if c.playing[id] {
			r.Pause()
			c.playing[id] = false
		}
		if r.Ready() {
			if err := r.Seek(0); err != nil {
				c.logger.Warn().Err(err).Str("clip", id).Msg("reset seek failed")
			}
		}
	}
	c.logger.Debug().Msg("playback stopped at end")
}

// resource returns the clip's media handle, acquiring it on first use. Text
// clips have none. Acquisition failure is a ResourceError: logged, the clip
// is skipped until a later edit replaces it, playback continues.
func (c *Controller) resource(nc timeline.NormalizedClip) media.Resource {
	ref := nc.SourceRef()
	if ref == "" {
		return nil
	}
	if r, ok := c.resources[nc.ID]; ok {
		return r
	}
	if c.failed[nc.ID] {
		return nil
	}

	r, err := c.provider.Acquire(ref)
	if err != nil {
		c.logger.Error().Err(err).Str("clip", nc.ID).Str("source", ref).Msg("resource load failed")
		c.failed[nc.ID] = true
		return nil
	}
	c.resources[nc.ID] = r

	if !r.Ready() {
		c.pending[nc.ID] = true
		if rn, ok := r.(readyNotifier); ok {
			id := nc.ID
			rn.OnReady(func() { c.HandleResourceReady(id) })
		}
	}
	return r
}

// syncResource keeps one active resource aligned with the master clock:
// hard-seek only past the drift threshold, otherwise let it free-run.
func (c *Controller) syncResource(nc timeline.NormalizedClip, expectedLocal float64) {
	r := c.resource(nc)
	if r == nil || !r.Ready() {
		return
	}

	drift := r.LocalTime() - expectedLocal
	if drift < 0 {
		drift = -drift
	}
	if drift > c.drift {
		c.seekResource(nc.ID, r, expectedLocal)
	}

	if !c.playing[nc.ID] {
		r.Play()
		c.playing[nc.ID] = true
	}
}

func (c *Controller) seekResource(clipID string, r media.Resource, to float64) {
	if err := r.Seek(to); err != nil {
		c.logger.Warn().Err(err).Str("clip", clipID).Float64("to", to).Msg("seek failed")
	}
}

// invalidate rebuilds the normalized caches and releases resources whose
// clips no longer exist.
func (c *Controller) invalidate() {
	c.videoCache = nil
	c.audioCache = nil
	c.textCache = nil

	live := make(map[string]bool)
	for _, tr := range c.tl.Tracks {
		norm := timeline.Normalize(tr)
		switch tr.Kind {
		case timeline.KindVideo:
			c.videoCache = norm
		case timeline.KindAudio:
			c.audioCache = norm
		case timeline.KindText:
			c.textCache = norm
		}
		for _, nc := range norm {
			live[nc.ID] = true
		}
	}
	c.maxEnd = c.tl.MaxClipEnd()

	for id, r := range c.resources {
		if live[id] {
			continue
		}
		if c.playing[id] {
			r.Pause()
		}
		delete(c.resources, id)
		delete(c.playing, id)
		delete(c.pending, id)
		delete(c.failed, id)
	}
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
