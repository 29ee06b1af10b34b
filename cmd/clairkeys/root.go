package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go"
	"github.com/clairkeys/clairkeys-go/score"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "clairkeys",
	Short: "Falling-notes piano playback engine",
	Long: `clairkeys plays piano scores with a synthesized piano, keeps the
note timeline locked to the audio clock, and supports follow and
practice modes for learning a piece hands-on.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")
}

func engineConfig() (clairkeys.Config, error) {
	if configPath == "" {
		return clairkeys.DefaultConfig(), nil
	}
	return clairkeys.LoadConfig(configPath)
}

// resolveScore loads the score to play: --demo wins, then a positional
// JSON path, then the built-in twinkle demo.
func resolveScore(args []string, demo string) (*score.Score, error) {
	if demo != "" {
		s, ok := score.Builtin(demo)
		if !ok {
			return nil, fmt.Errorf("unknown demo %q (have %v)", demo, score.BuiltinNames())
		}
		return s, nil
	}
	if len(args) > 0 {
		return readScoreFile(args[0])
	}
	s, _ := score.Builtin("twinkle")
	return s, nil
}

func readScoreFile(path string) (*score.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := score.UnmarshalScore(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
