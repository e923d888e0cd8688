package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/cutdeck/internal/config"
	"github.com/keagan/cutdeck/internal/logging"
	"github.com/keagan/cutdeck/internal/session"
	"github.com/keagan/cutdeck/internal/timeline"
)

var (
	cfgFile string
	verbose bool
	userArg string
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cutdeck",
	Short: "cutdeck - multi-track timeline preview engine",
	Long:  "A client-side multi-track video/audio/text timeline editor core: gapless preview composition, frame-accurate seeking, blended transitions, and session persistence.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&userArg, "user", uuid.Nil.String(), "acting user id")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(clipCmd)
	rootCmd.AddCommand(transitionCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(probeCmd)
}

// openStore opens the session store configured for this invocation.
func openStore(cmd *cobra.Command) (*session.Store, error) {
	cfg := config.FromContext(cmd.Context())
	return session.Open(log.Logger, cfg.DatabasePath())
}

func actingUser() (uuid.UUID, error) {
	return uuid.Parse(userArg)
}

// loadTimeline fetches a session and decodes its timeline document.
func loadTimeline(cmd *cobra.Command, store *session.Store, sessionArg string) (*session.Session, timeline.Timeline, error) {
	var tl timeline.Timeline

	user, err := actingUser()
	if err != nil {
		return nil, tl, fmt.Errorf("invalid user id: %w", err)
	}
	id, err := uuid.Parse(sessionArg)
	if err != nil {
		return nil, tl, fmt.Errorf("invalid session id: %w", err)
	}

	sess, err := store.Get(cmd.Context(), id, user)
	if err != nil {
		return nil, tl, err
	}

	if len(sess.Timeline) > 0 && string(sess.Timeline) != "{}" {
		if err := json.Unmarshal(sess.Timeline, &tl); err != nil {
			return nil, tl, fmt.Errorf("corrupt timeline document: %w", err)
		}
	} else {
		tl = timeline.New(120)
	}
	return sess, tl, nil
}

// saveTimeline writes the timeline document back, bumping the version.
func saveTimeline(cmd *cobra.Command, store *session.Store, sess *session.Session, tl timeline.Timeline) error {
	doc, err := json.Marshal(tl)
	if err != nil {
		return err
	}
	return store.Save(cmd.Context(), sess.ID, doc)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session management commands",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create (or reopen) the session for a content id",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := actingUser()
		if err != nil {
			return err
		}
		content := uuid.New()
		if contentArg != "" {
			if content, err = uuid.Parse(contentArg); err != nil {
				return fmt.Errorf("invalid content id: %w", err)
			}
		}

		sess, err := store.FindOrCreate(cmd.Context(), user, content)
		if err != nil {
			return err
		}

		if string(sess.Timeline) == "{}" {
			tl := timeline.New(canvasArg)
			if err := saveTimeline(cmd, store, sess, tl); err != nil {
				return err
			}
		}

		log.Info().
			Str("session", sess.ID.String()).
			Str("content", content.String()).
			Int("version", sess.Version).
			Msg("session ready")
		fmt.Println(sess.ID.String())
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for the acting user",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := actingUser()
		if err != nil {
			return err
		}
		sessions, err := store.List(cmd.Context(), user)
		if err != nil {
			return err
		}

		for _, s := range sessions {
			fmt.Printf("%s  content=%s  v%d  updated=%s\n",
				s.ID, s.ContentID, s.Version, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session id]",
	Short: "Print a session's timeline document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		sess, tl, err := loadTimeline(cmd, store, args[0])
		if err != nil {
			return err
		}

		doc, err := json.MarshalIndent(tl, "", "  ")
		if err != nil {
			return err
		}
		log.Info().Str("session", sess.ID.String()).Int("version", sess.Version).Msg("session loaded")
		fmt.Println(string(doc))
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session id]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		if err := store.Delete(cmd.Context(), id); err != nil {
			return err
		}
		log.Info().Str("session", id.String()).Msg("session deleted")
		return nil
	},
}

var (
	contentArg string
	canvasArg  float64
)

func init() {
	sessionNewCmd.Flags().StringVar(&contentArg, "content", "", "content id (default: random)")
	sessionNewCmd.Flags().Float64Var(&canvasArg, "canvas", 120, "timeline canvas duration in seconds")

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}
