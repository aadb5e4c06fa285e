package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/playback"
	"github.com/RyanBlaney/sonido-stage/session"
)

func newPerformCmd(a *app) *cobra.Command {
	var songID string
	var pitch int
	var mute bool
	cmd := &cobra.Command{
		Use:   "perform [SOURCE]",
		Short: "Play a backing track in an interactive shell",
		Long: `Load a backing track and control it from a shell: transport, pitch, fine
tune, tempo, volume and the song's keys. With --song the track comes from
the song record unless SOURCE is given, and key and pitch changes are saved
back to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc := a.cfg.Playback
			song := session.Song{
				OriginalKey:    harmony.Unknown,
				TargetKey:      harmony.Unknown,
				PitchSemitones: pitch,
			}

			var notify func(session.Song)
			if songID != "" {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				if song, err = store.Get(cmd.Context(), songID); err != nil {
					return err
				}
				notifier := session.NewDebouncedNotifier(pc.NotifyDebounce(), store.Persist)
				defer notifier.Flush()
				notify = notifier.Notify
			}

			source := song.AudioURL
			if len(args) == 1 {
				source = args[0]
			}
			if source == "" {
				return errors.New("no audio source: pass SOURCE or a --song with an audio url")
			}

			var newSink playback.SinkFactory
			if !mute {
				newSink = playback.FFplaySinkFactory(pc.FFplayPath)
			}
			out := cmd.OutOrStdout()
			opts := pc.EngineOptions(newSink)
			opts.OnEnded = func() { fmt.Fprintln(out, "\n[end of track]") }
			engine := playback.NewEngine(opts)
			defer engine.ResetEngine()

			link := session.NewPitchLink(song, session.LinkOptions{
				Sink:                  engine,
				Notify:                notify,
				LockConfirmedStageKey: pc.LockConfirmedStageKey,
				Limits:                pc.Limits,
			})

			fmt.Fprintf(out, "Loading %s...\n", source)
			if err := engine.LoadFromURL(cmd.Context(), source, link.Song().PitchSemitones); err != nil {
				fmt.Fprintln(out, playback.UserMessage(err))
				return err
			}
			link.Attach(engine)

			p := &performer{engine: engine, link: link, out: out}
			return p.run()
		},
	}
	f := cmd.Flags()
	f.StringVar(&songID, "song", "", "song record to perform")
	f.IntVar(&pitch, "pitch", 0, "initial pitch without a song record")
	f.BoolVar(&mute, "mute", false, "render without audio output")
	return cmd
}

// performer is the command interpreter behind the perform shell
type performer struct {
	engine *playback.Engine
	link   *session.PitchLink
	out    io.Writer
}

func (p *performer) run() error {
	fmt.Fprintln(p.out, "=== Perform Shell ===")
	p.help()
	p.status()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "stage> ",
		HistoryFile:  filepath.Join(homeDir, ".sonido_stage_history"),
		AutoComplete: completer(),
		Stdout:       p.out,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !p.handle(input) {
			return nil
		}
	}
}

func completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("play"),
		readline.PcItem("pause"),
		readline.PcItem("stop"),
		readline.PcItem("pitch"),
		readline.PcItem("shift"),
		readline.PcItem("fine"),
		readline.PcItem("tempo"),
		readline.PcItem("vol"),
		readline.PcItem("comp"),
		readline.PcItem("seek"),
		readline.PcItem("key"),
		readline.PcItem("target"),
		readline.PcItem("reset-target"),
		readline.PcItem("link"),
		readline.PcItem("unlink"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func (p *performer) help() {
	fmt.Fprint(p.out, `Commands:
  play | pause | stop      transport
  pitch <n>                set pitch in semitones
  shift <+/-n>             move pitch by n semitones
  fine <cents>             fine tune, -100..100
  tempo <ratio>            playback speed, 0.25..4
  vol <db>                 output volume
  comp <threshold> <ratio> compressor
  seek <s> | seek <n>%     jump to seconds or percent
  key <key>                original key of the track
  target <key>             stage key
  reset-target             stage key back to the original
  link | unlink            derive pitch from the keys or not
  status                   show current settings
  quit                     leave the shell
`)
}

func (p *performer) status() {
	s := p.engine.Snapshot()
	song := p.link.Song()
	linked := "unlinked"
	if song.IsPitchLinked {
		linked = "linked"
	}
	fmt.Fprintf(p.out, "%s %s / %s | pitch %+d (%s) | fine %+.0fc | tempo %.2fx | vol %.1f dB | key %s -> %s\n",
		s.Status, formatClock(s.Position), formatClock(s.Duration),
		s.PitchSemitones, linked, s.FineTuneCents, s.TempoRatio, s.VolumeDB,
		song.OriginalKey, song.TargetKey)
}

// handle runs one shell line and reports whether the shell should go on
func (p *performer) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, rest := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		p.help()
		return true
	case "status":
	case "play":
		if !p.engine.Snapshot().IsPlaying {
			err = p.engine.TogglePlayback()
		}
	case "pause":
		if p.engine.Snapshot().IsPlaying {
			err = p.engine.TogglePlayback()
		}
	case "stop":
		err = p.engine.Stop()
	case "pitch":
		err = withInt(rest, p.link.SetPitch)
	case "shift":
		err = withInt(rest, p.link.ShiftPitch)
	case "fine":
		err = withFloat(rest, p.engine.SetFineTune)
	case "tempo":
		err = withFloat(rest, p.engine.SetTempo)
	case "vol", "volume":
		err = withFloat(rest, p.engine.SetVolume)
	case "comp":
		err = p.compressor(rest)
	case "seek":
		err = p.seek(rest)
	case "key":
		err = withKey(rest, func(k harmony.Key) error {
			p.link.SetOriginalKey(k)
			return nil
		})
	case "target":
		err = withKey(rest, p.link.SetTargetKey)
	case "reset-target":
		err = p.link.ResetTargetKey()
	case "link":
		p.link.SetLinked(true)
	case "unlink":
		p.link.SetLinked(false)
	default:
		fmt.Fprintf(p.out, "Unknown command %q, try help\n", cmd)
		return true
	}

	if err != nil {
		p.report(err)
		return true
	}
	p.status()
	return true
}

func (p *performer) report(err error) {
	var le *playback.LoadError
	if errors.As(err, &le) || errors.Is(err, playback.ErrNotLoaded) {
		fmt.Fprintln(p.out, playback.UserMessage(err))
		return
	}
	logging.Debug("Shell command failed", logging.Fields{"error": err.Error()})
	fmt.Fprintf(p.out, "Error: %v\n", err)
}

func (p *performer) seek(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if pct, ok := strings.CutSuffix(args[0], "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return errUsage
		}
		return p.engine.SetProgress(v / 100)
	}
	return withFloat(args, p.engine.Seek)
}

func (p *performer) compressor(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	threshold, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errUsage
	}
	ratio, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errUsage
	}
	return p.engine.SetCompressor(threshold, ratio)
}

var errUsage = errors.New("missing or invalid argument")

func withInt(args []string, fn func(int) error) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}
	return fn(n)
}

func withFloat(args []string, fn func(float64) error) error {
	if len(args) != 1 {
		return errUsage
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return errUsage
	}
	return fn(v)
}

func withKey(args []string, fn func(harmony.Key) error) error {
	if len(args) == 0 {
		return errUsage
	}
	key, err := parseKeyArg(strings.Join(args, " "))
	if err != nil {
		return err
	}
	return fn(key)
}
