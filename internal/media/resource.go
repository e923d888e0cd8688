// Package media abstracts playable source media behind a small command
// surface: get/set local time, play, pause, readiness. The playback clock is
// the only writer of a resource while its clip is active.
package media

import (
	"errors"
	"fmt"
)

var ErrUnknownSource = errors.New("unknown source ref")

// Resource is one playable piece of source media.
type Resource interface {
	// Duration is the full source length in seconds.
	Duration() float64
	// LocalTime is the current media-local position in seconds.
	LocalTime() float64
	// Seek sets the media-local position.
	Seek(t float64) error
	Play()
	Pause()
	// Ready reports whether metadata is loaded and the resource can be
	// drawn. The engine skips not-ready resources instead of blocking.
	Ready() bool
}

// Provider hands out resources by source reference.
type Provider interface {
	Acquire(sourceRef string) (Resource, error)
}

// SimResource is a clock-driven stand-in for a decoder-backed resource.
// Decoding and painting are outside this system, so the preview loop and the
// tests drive simulated media that free-runs when told to play.
type SimResource struct {
	duration float64
	local    float64
	playing  bool
	ready    bool

	onReady func()
}

// NewSimResource returns a ready simulated resource of the given duration.
func NewSimResource(duration float64) *SimResource {
	return &SimResource{duration: duration, ready: true}
}

// NewPendingResource returns a resource whose metadata has not loaded yet.
// MarkReady flips it and fires the registered readiness callback.
func NewPendingResource(duration float64) *SimResource {
	return &SimResource{duration: duration}
}

func (r *SimResource) Duration() float64  { return r.duration }
func (r *SimResource) LocalTime() float64 { return r.local }
func (r *SimResource) Ready() bool        { return r.ready }
func (r *SimResource) Playing() bool      { return r.playing }

func (r *SimResource) Seek(t float64) error {
	if !r.ready {
		return fmt.Errorf("seek before ready (at %.3f)", t)
	}
	if t < 0 {
		t = 0
	}
	if t > r.duration {
		t = r.duration
	}
	r.local = t
	return nil
}

func (r *SimResource) Play()  { r.playing = true }
func (r *SimResource) Pause() { r.playing = false }

// OnReady registers the readiness signal callback.
func (r *SimResource) OnReady(fn func()) { r.onReady = fn }

// MarkReady simulates metadata-loaded. Idempotent.
func (r *SimResource) MarkReady() {
	if r.ready {
		return
	}
	r.ready = true
	if r.onReady != nil {
		r.onReady()
	}
}

// Advance free-runs the media clock by delta seconds while playing. The host
// loop calls this once per tick, before the engine tick, to mimic a decoder
// progressing on its own.
func (r *SimResource) Advance(delta float64) {
	if !r.playing || !r.ready {
		return
	}
	r.local += delta
	if r.local > r.duration {
		r.local = r.duration
	}
}

// SimProvider maps source refs to simulated resources with known durations.
type SimProvider struct {
	durations map[string]float64
	created   []*SimResource
}

// NewSimProvider creates a provider for the given source durations. A nil map
// makes an empty provider; sources can be registered later.
func NewSimProvider(durations map[string]float64) *SimProvider {
	if durations == nil {
		durations = make(map[string]float64)
	}
	return &SimProvider{durations: durations}
}

// Register adds or replaces a source.
func (p *SimProvider) Register(sourceRef string, duration float64) {
	p.durations[sourceRef] = duration
}

// Acquire hands out a fresh resource per call. Two clips sharing a source
// (split halves) get independent handles, so seeking one never disturbs the
// other.
func (p *SimProvider) Acquire(sourceRef string) (Resource, error) {
	d, ok := p.durations[sourceRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceRef)
	}
	r := NewSimResource(d)
	p.created = append(p.created, r)
	return r, nil
}

// Created returns every resource handed out so far.
func (p *SimProvider) Created() []*SimResource {
	return p.created
}

// AdvanceAll free-runs every playing resource by delta seconds.
func (p *SimProvider) AdvanceAll(delta float64) {
	for _, r := range p.created {
		r.Advance(delta)
	}
}
