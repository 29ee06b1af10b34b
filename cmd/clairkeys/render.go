package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go"
)

var (
	renderOut       string
	renderRate      int
	renderMetronome bool
)

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output path (default: score name with .wav)")
	renderCmd.Flags().IntVar(&renderRate, "rate", 44100, "sample rate")
	renderCmd.Flags().BoolVar(&renderMetronome, "metronome", false, "mix in the click track")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render score.json",
	Short: "Render a score to a WAV file offline",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	s, err := readScoreFile(args[0])
	if err != nil {
		return err
	}

	samples, err := clairkeys.RenderScore(s, renderRate, renderMetronome)
	if err != nil {
		return err
	}

	out := renderOut
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wav"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := clairkeys.WriteWAV(f, samples, renderRate, 2); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", goodStyle.Render("wrote"),
		fmt.Sprintf("%s (%s at %d Hz, %d frames)", out, fmtClock(s.Duration), renderRate, len(samples)/2))
	return nil
}
