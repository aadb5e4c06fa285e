package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/internal/songstore"
	"github.com/RyanBlaney/sonido-stage/session"
)

func newSongCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Manage song records",
		Long: `Song records hold a song's original key, its stage key and the playback
pitch. While a song is linked its pitch is the upward distance from the
original key to the stage key.`,
	}
	cmd.AddCommand(
		newSongAddCmd(a),
		newSongListCmd(a),
		newSongShowCmd(a),
		newSongSetCmd(a),
		newSongLinkCmd(a, true),
		newSongLinkCmd(a, false),
		newSongDeleteCmd(a),
	)
	return cmd
}

// withStore opens the song store around fn
func (a *app) withStore(fn func(*songstore.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSongAddCmd(a *app) *cobra.Command {
	var title, original, target, url string
	var unlinked bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orig, err := parseKeyArg(original)
			if err != nil {
				return err
			}
			tgt := orig
			if target != "" {
				if tgt, err = parseKeyArg(target); err != nil {
					return err
				}
			}
			link := session.NewPitchLink(session.Song{
				Title:         title,
				OriginalKey:   orig,
				TargetKey:     tgt,
				IsPitchLinked: !unlinked,
				AudioURL:      url,
			}, session.LinkOptions{})

			return a.withStore(func(store *songstore.Store) error {
				song, err := store.Create(cmd.Context(), link.Song())
				if err != nil {
					return err
				}
				printSong(cmd.OutOrStdout(), song)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "song title")
	f.StringVar(&original, "key", harmony.UnknownLabel, "original key of the recording")
	f.StringVar(&target, "target", "", "stage key (default: the original key)")
	f.StringVar(&url, "url", "", "backing track URL or path")
	f.BoolVar(&unlinked, "unlinked", false, "do not derive pitch from the keys")
	return cmd
}

func newSongListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List songs, most recently changed first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *songstore.Store) error {
				songs, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range songs {
					fmt.Fprintf(out, "%s  %-4s -> %-4s %+3d  %s\n",
						s.ID, s.OriginalKey, s.TargetKey, s.PitchSemitones, s.Title)
				}
				return nil
			})
		},
	}
}

func newSongShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *songstore.Store) error {
				song, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSong(cmd.OutOrStdout(), song)
				return nil
			})
		},
	}
}

func newSongSetCmd(a *app) *cobra.Command {
	var original, target, title, url string
	var pitch int
	var resetTarget, unconfirm bool
	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Change a song's keys, pitch or details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return a.withStore(func(store *songstore.Store) error {
				song, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if flags.Changed("title") {
					song.Title = title
				}
				if flags.Changed("url") {
					song.AudioURL = url
				}

				link := session.NewPitchLink(song, session.LinkOptions{
					LockConfirmedStageKey: a.cfg.Playback.LockConfirmedStageKey,
					Limits:                a.cfg.Playback.Limits,
				})
				if unconfirm {
					link.SetKeyConfirmed(false)
				}
				if flags.Changed("key") {
					key, err := parseKeyArg(original)
					if err != nil {
						return err
					}
					link.SetOriginalKey(key)
				}
				if resetTarget {
					if err := link.ResetTargetKey(); err != nil {
						return err
					}
				}
				if flags.Changed("target") {
					key, err := parseKeyArg(target)
					if err != nil {
						return err
					}
					if err := link.SetTargetKey(key); err != nil {
						return err
					}
				}
				if flags.Changed("pitch") {
					if err := link.SetPitch(pitch); err != nil {
						return err
					}
				}

				if err := store.Save(cmd.Context(), link.Song()); err != nil {
					return err
				}
				printSong(cmd.OutOrStdout(), link.Song())
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "song title")
	f.StringVar(&url, "url", "", "backing track URL or path")
	f.StringVar(&original, "key", "", "original key")
	f.StringVar(&target, "target", "", "stage key, marks it confirmed")
	f.IntVar(&pitch, "pitch", 0, "pitch in semitones; moves the stage key while linked")
	f.BoolVar(&resetTarget, "reset-target", false, "set the stage key back to the original")
	f.BoolVar(&unconfirm, "unconfirm", false, "clear the confirmed flag of the stage key")
	return cmd
}

func newSongLinkCmd(a *app, linked bool) *cobra.Command {
	use, short := "link ID", "Derive the song's pitch from its keys"
	if !linked {
		use, short = "unlink ID", "Keep the song's pitch when its keys change"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *songstore.Store) error {
				song, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				link := session.NewPitchLink(song, session.LinkOptions{})
				link.SetLinked(linked)
				if err := store.Save(cmd.Context(), link.Song()); err != nil {
					return err
				}
				printSong(cmd.OutOrStdout(), link.Song())
				return nil
			})
		},
	}
}

func newSongDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store *songstore.Store) error {
				return store.Delete(cmd.Context(), args[0])
			})
		},
	}
}

func printSong(w io.Writer, s session.Song) {
	linked := "linked"
	if !s.IsPitchLinked {
		linked = "unlinked"
	}
	confirmed := ""
	if s.IsKeyConfirmed {
		confirmed = ", confirmed"
	}
	fmt.Fprintf(w, "id:       %s\n", s.ID)
	if s.Title != "" {
		fmt.Fprintf(w, "title:    %s\n", s.Title)
	}
	fmt.Fprintf(w, "original: %s\n", s.OriginalKey)
	fmt.Fprintf(w, "stage:    %s%s\n", s.TargetKey, confirmed)
	fmt.Fprintf(w, "pitch:    %+d (%s)\n", s.PitchSemitones, linked)
	if s.AudioURL != "" {
		fmt.Fprintf(w, "audio:    %s\n", s.AudioURL)
	}
}
