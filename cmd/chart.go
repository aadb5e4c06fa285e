package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stage/chart"
	"github.com/RyanBlaney/sonido-stage/harmony"
)

func newTransposeCmd(a *app) *cobra.Command {
	var (
		semitones int
		notation  string
		to        string
	)
	cmd := &cobra.Command{
		Use:   "transpose FILE",
		Short: "Transpose the chord lines of a chart",
		Long: `Transpose every chord line of a chord chart and print the result. Lyrics,
section labels and spacing are kept. Use - to read from stdin.

With --to the shift is the upward distance from the key inferred from the
chart to the given key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			n := a.cfg.Chart.NotationValue()
			if cmd.Flags().Changed("notation") {
				if n, err = harmony.ParseNotation(notation); err != nil {
					return err
				}
			}

			doc := chart.ParseWith(a.cfg.Chart.Classifier(), text)
			if to != "" {
				target, err := harmony.ParseKey(to)
				if err != nil {
					return err
				}
				from, ok := chart.ExtractKeyFromDocument(doc)
				if !ok {
					return fmt.Errorf("cannot infer the chart's key: %w", chart.ErrNoChords)
				}
				semitones = harmony.SemitoneDistance(from, target)
				if !cmd.Flags().Changed("notation") {
					n = target.Notation
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), doc.Transpose(semitones, n).String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&semitones, "semitones", "s", 0, "semitones to move, negative for down")
	cmd.Flags().StringVar(&notation, "notation", "", "sharp, flat or neutral (default from config)")
	cmd.Flags().StringVar(&to, "to", "", "transpose into this key instead of by --semitones")
	return cmd
}

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key FILE",
		Short: "Infer the key of a chord chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			doc := chart.ParseWith(a.cfg.Chart.Classifier(), text)
			key, ok := chart.ExtractKeyFromDocument(doc)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), harmony.UnknownLabel)
				return nil
			}

			ambiguous := 0
			for _, l := range doc.Lines {
				if l.Ambiguous {
					ambiguous++
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.String())
			if ambiguous > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d ambiguous line(s) treated by best guess\n", ambiguous)
			}
			return nil
		},
	}
}

func newDistanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "distance FROM TO",
		Short: "Semitones from one key to another",
		Long: `Print the upward distance in semitones (0-11) from FROM to TO, which is
the pitch a linked song plays at, followed by the shortest signed offset.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseKeyArg(args[0])
			if err != nil {
				return err
			}
			to, err := parseKeyArg(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d (shortest %+d)\n",
				harmony.SemitoneDistance(from, to), harmony.ShortestOffset(from, to))
			return nil
		},
	}
}

// parseKeyArg accepts "TBC" as the unknown key
func parseKeyArg(s string) (harmony.Key, error) {
	if strings.EqualFold(strings.TrimSpace(s), harmony.UnknownLabel) {
		return harmony.Unknown, nil
	}
	return harmony.ParseKey(s)
}
