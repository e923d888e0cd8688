package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/cutdeck/internal/blend"
	"github.com/keagan/cutdeck/internal/config"
	"github.com/keagan/cutdeck/internal/media"
	"github.com/keagan/cutdeck/internal/playback"
	"github.com/keagan/cutdeck/internal/timeline"
	"github.com/keagan/cutdeck/pkg/util"
)

var playFromArg string

var playCmd = &cobra.Command{
	Use:   "play [session id]",
	Short: "Run the preview loop over a session's timeline",
	Long:  "Drives the playback clock with a timed tick loop against simulated media resources and prints the composite instruction set per frame.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		_, tl, err := loadTimeline(cmd, store, args[0])
		if err != nil {
			return err
		}

		from := 0.0
		if playFromArg != "" {
			if from, err = util.ParseSeconds(playFromArg); err != nil {
				return err
			}
		}

		cfg := config.FromContext(cmd.Context())
		provider := simProviderFor(tl)

		ctrl := playback.NewController(log.Logger, tl, provider, playback.Options{
			DriftThreshold: cfg.Playback.DriftThreshold,
			EditRules: timeline.EditRules{
				SnapGrid:        cfg.Editing.SnapGrid,
				MinClipDuration: cfg.Editing.MinClipDuration,
			},
			Blender: blend.Blender{
				ZoomScale:     cfg.Transition.ZoomScale,
				MaxBlurRadius: cfg.Transition.MaxBlurRadius,
			},
		})

		ctrl.OnFrame(func(f playback.Frame) {
			for _, l := range f.Layers {
				log.Debug().
					Str("clip", l.ClipID).
					Str("kind", string(l.Kind)).
					Float64("local", l.LocalTime).
					Float64("opacity", l.Opacity).
					Msg("layer")
			}
			fmt.Printf("%s  layers=%d\n", util.FormatSeconds(f.MasterTime), len(f.Layers))
		})

		if err := ctrl.Play(from); err != nil {
			return err
		}
		log.Info().Float64("from", from).Msg("preview started")

		tickRate := cfg.Playback.TickRate
		if tickRate <= 0 {
			tickRate = 30
		}
		ticker := time.NewTicker(time.Second / time.Duration(tickRate))
		defer ticker.Stop()

		last := time.Now()
		for ctrl.State() == playback.StatePlaying {
			select {
			case <-cmd.Context().Done():
				if err := ctrl.Pause(); err == nil {
					log.Info().Float64("at", ctrl.MasterTime()).Msg("preview paused")
				}
				return nil
			case now := <-ticker.C:
				delta := now.Sub(last).Seconds()
				last = now
				// Simulated decoders free-run first, then the engine
				// reconciles them against the master clock.
				provider.AdvanceAll(delta)
				ctrl.Tick(delta)
			}
		}

		log.Info().Msg("preview finished")
		return nil
	},
}

// simProviderFor builds a simulated media provider covering every source the
// timeline references. A source's length is at least the furthest trim-out
// any clip takes from it.
func simProviderFor(tl timeline.Timeline) *media.SimProvider {
	durations := make(map[string]float64)
	for _, tr := range tl.Tracks {
		for _, c := range tr.Clips {
			ref := c.SourceRef()
			if ref == "" {
				continue
			}
			if c.TrimEnd > durations[ref] {
				durations[ref] = c.TrimEnd
			}
		}
	}
	return media.NewSimProvider(durations)
}

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "Probe a media file's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prober, err := media.NewProber(log.Logger)
		if err != nil {
			return err
		}
		info, err := prober.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("duration: %s\n", util.FormatSeconds(info.Duration))
		if info.HasVideo {
			fmt.Printf("video: %dx%d %s\n", info.Width, info.Height, info.Codec)
		}
		fmt.Printf("audio: %v\n", info.HasAudio)
		return nil
	},
}

func init() {
	playCmd.Flags().StringVar(&playFromArg, "from", "", "start position (e.g. 4.5 or 00:04.500)")
}
