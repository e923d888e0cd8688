package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/cutdeck/internal/config"
	"github.com/keagan/cutdeck/internal/media"
	"github.com/keagan/cutdeck/internal/timeline"
	"github.com/keagan/cutdeck/pkg/util"
)

var (
	clipKindArg     string
	clipSourceArg   string
	clipDurationArg float64
	clipTextArg     string
	trimStartArg    string
	trimEndArg      string
	transDurArg     float64
)

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Clip editing commands",
}

// editTimeline loads a session's timeline, applies one pure operation, and
// saves the result. A failed operation saves nothing.
func editTimeline(cmd *cobra.Command, sessionArg string, op func(timeline.Timeline, timeline.EditRules) (timeline.Timeline, error)) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, tl, err := loadTimeline(cmd, store, sessionArg)
	if err != nil {
		return err
	}

	cfg := config.FromContext(cmd.Context())
	rules := timeline.EditRules{
		SnapGrid:        cfg.Editing.SnapGrid,
		MinClipDuration: cfg.Editing.MinClipDuration,
	}

	next, err := op(tl, rules)
	if err != nil {
		return err
	}
	return saveTimeline(cmd, store, sess, next)
}

var clipAddCmd = &cobra.Command{
	Use:   "add [session id]",
	Short: "Append media to the end of its track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := timeline.ClipKind(clipKindArg)
		duration := clipDurationArg

		var payload timeline.Payload
		switch kind {
		case timeline.KindVideo:
			payload = timeline.VideoSource{SourceRef: clipSourceArg}
		case timeline.KindAudio:
			payload = timeline.AudioSource{SourceRef: clipSourceArg}
		case timeline.KindText:
			payload = timeline.TextOverlay{Content: clipTextArg}
		default:
			return fmt.Errorf("unknown clip kind %q", clipKindArg)
		}

		// Probe the source when no duration was given and it is a local file.
		if duration <= 0 && kind != timeline.KindText && util.FileExists(clipSourceArg) {
			prober, err := media.NewProber(log.Logger)
			if err != nil {
				return err
			}
			info, err := prober.Probe(cmd.Context(), clipSourceArg)
			if err != nil {
				return err
			}
			duration = info.Duration
			log.Info().Str("source", clipSourceArg).Float64("duration", duration).Msg("source probed")
		}
		if duration <= 0 {
			return fmt.Errorf("clip duration required (use --duration or a probeable source)")
		}

		return editTimeline(cmd, args[0], func(tl timeline.Timeline, _ timeline.EditRules) (timeline.Timeline, error) {
			next, err := tl.AppendMedia(kind, payload, duration)
			if err == nil {
				log.Info().Str("kind", string(kind)).Float64("duration", duration).Msg("clip added")
			}
			return next, err
		})
	},
}

var clipMoveCmd = &cobra.Command{
	Use:   "move [session id] [clip id] [new start]",
	Short: "Move a clip, snapping to the grid",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := util.ParseSeconds(args[2])
		if err != nil {
			return err
		}
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, rules timeline.EditRules) (timeline.Timeline, error) {
			return tl.Move(rules, args[1], start)
		})
	},
}

var clipTrimCmd = &cobra.Command{
	Use:   "trim [session id] [clip id]",
	Short: "Trim a clip's start or end edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (trimStartArg == "") == (trimEndArg == "") {
			return fmt.Errorf("exactly one of --start or --end is required")
		}
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, rules timeline.EditRules) (timeline.Timeline, error) {
			if trimStartArg != "" {
				at, err := util.ParseSeconds(trimStartArg)
				if err != nil {
					return tl, err
				}
				return tl.TrimLeft(rules, args[1], at)
			}
			at, err := util.ParseSeconds(trimEndArg)
			if err != nil {
				return tl, err
			}
			return tl.TrimRight(rules, args[1], at)
		})
	},
}

var clipSplitCmd = &cobra.Command{
	Use:   "split [session id] [clip id] [at]",
	Short: "Split a clip at an author-time point",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := util.ParseSeconds(args[2])
		if err != nil {
			return err
		}
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, _ timeline.EditRules) (timeline.Timeline, error) {
			return tl.Split(args[1], at)
		})
	},
}

var clipDeleteCmd = &cobra.Command{
	Use:   "delete [session id] [clip id]",
	Short: "Delete a clip",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, _ timeline.EditRules) (timeline.Timeline, error) {
			return tl.DeleteClip(args[1])
		})
	},
}

var transitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Transition commands",
}

var transitionSetCmd = &cobra.Command{
	Use:   "set [session id] [from clip] [to clip] [kind]",
	Short: "Set the transition between two adjacent clips",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		dur := transDurArg
		if dur <= 0 {
			dur = config.FromContext(cmd.Context()).Transition.DefaultDuration
		}
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, _ timeline.EditRules) (timeline.Timeline, error) {
			return tl.SetTransition(args[1], args[2], timeline.TransitionKind(args[3]), dur)
		})
	},
}

var transitionRemoveCmd = &cobra.Command{
	Use:   "remove [session id] [from clip] [to clip]",
	Short: "Remove the transition between two clips",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editTimeline(cmd, args[0], func(tl timeline.Timeline, _ timeline.EditRules) (timeline.Timeline, error) {
			return tl.RemoveTransition(args[1], args[2])
		})
	},
}

func init() {
	clipAddCmd.Flags().StringVar(&clipKindArg, "kind", "video", "clip kind: video|audio|text")
	clipAddCmd.Flags().StringVar(&clipSourceArg, "source", "", "source media reference")
	clipAddCmd.Flags().Float64Var(&clipDurationArg, "duration", 0, "clip duration in seconds (probed when omitted)")
	clipAddCmd.Flags().StringVar(&clipTextArg, "text", "", "overlay content for text clips")

	clipTrimCmd.Flags().StringVar(&trimStartArg, "start", "", "new start edge")
	clipTrimCmd.Flags().StringVar(&trimEndArg, "end", "", "new end edge")

	transitionSetCmd.Flags().Float64Var(&transDurArg, "duration", 0, "transition duration in seconds")

	clipCmd.AddCommand(clipAddCmd)
	clipCmd.AddCommand(clipMoveCmd)
	clipCmd.AddCommand(clipTrimCmd)
	clipCmd.AddCommand(clipSplitCmd)
	clipCmd.AddCommand(clipDeleteCmd)

	transitionCmd.AddCommand(transitionSetCmd)
	transitionCmd.AddCommand(transitionRemoveCmd)
}
