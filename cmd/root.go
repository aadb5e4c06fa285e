// Package cmd is the sonido-stage command line.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-stage/config"
	"github.com/RyanBlaney/sonido-stage/internal/songstore"
	"github.com/RyanBlaney/sonido-stage/logging"
)

// app carries the flags and configuration shared by every command
type app struct {
	cfgPath  string
	logLevel string
	noColor  bool
	dbPath   string

	cfg *config.Config
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.cfgPath != "" {
		loaded, err := config.Load(a.cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("no-color") {
		cfg.Log.NoColor = a.noColor
	}
	if flags.Changed("db") {
		cfg.Store.Path = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)
	a.cfg = cfg
	return nil
}

func (a *app) openStore() (*songstore.Store, error) {
	return songstore.Open(a.cfg.Store.Path)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sonido-stage",
		Short: "Keys, charts and pitch-linked playback for live performers",
		Long: `sonido-stage transposes chord charts, infers keys from charts and audio,
keeps song records whose playback pitch follows the stage key, and plays
backing tracks with independent pitch and tempo.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "JSON config file")
	pf.StringVar(&a.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured log output")
	pf.StringVar(&a.dbPath, "db", config.DefaultStoreConfig().Path, "song database")

	root.AddCommand(
		newTransposeCmd(a),
		newKeyCmd(a),
		newDistanceCmd(a),
		newDetectCmd(a),
		newSongCmd(a),
		newPerformCmd(a),
	)
	return root
}

func Execute() {
	cobra.CheckErr(NewRootCmd().Execute())
}

// readSource reads a file, or stdin for "-"
func readSource(cmd *cobra.Command, path string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
