package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stage/algorithms/temporal"
	"github.com/RyanBlaney/sonido-stage/algorithms/tonal"
	"github.com/RyanBlaney/sonido-stage/playback"
	"github.com/RyanBlaney/sonido-stage/session"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

func newDetectCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "detect SOURCE",
		Short: "Detect the key and BPM of an audio file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc := a.cfg.Playback
			if !cmd.Flags().Changed("top") {
				top = a.cfg.Detection.Top
			}

			ctx := cmd.Context()
			data, err := playback.NewFetcher(nil, pc.MaxFetchBytes)(ctx, args[0])
			if err != nil {
				return err
			}
			audio, err := transcode.NewDecoder(pc.DecoderConfig()).Decode(ctx, data)
			if err != nil {
				return err
			}

			params, err := a.cfg.Detection.KeyDetectorParams()
			if err != nil {
				return err
			}
			detector := session.NewDetector(
				tonal.NewKeyDetector(params),
				temporal.NewTempoEstimation(a.cfg.Detection.TempoParams()),
			)
			res := detector.Analyze(ctx, args[0], audio)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s, %s of audio, %d Hz\n",
				humanize.IBytes(uint64(len(data))), formatClock(audio.Seconds()), audio.SampleRate)
			for i, c := range res.Top(top) {
				fmt.Fprintf(out, "%d. %-4s %5.1f%%\n", i+1, c.Key.String(), c.Confidence)
			}
			if res.TempoErr == nil {
				fmt.Fprintf(out, "BPM: %.1f (confidence %.2f)\n", res.Tempo.BPM, res.Tempo.Confidence)
			}
			if msg := res.Message(); msg != "" {
				fmt.Fprintln(out, msg)
			}
			fmt.Fprintf(out, "analysed in %s\n", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 3, "key candidates to show")
	return cmd
}

// formatClock renders seconds as m:ss
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
