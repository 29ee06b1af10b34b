package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go/score"
)

var importOut string

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "output path (default: input name with .json)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import file.mid",
	Short: "Convert a standard MIDI file to animation JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	s, err := score.FromSMFFile(args[0])
	if err != nil {
		return err
	}

	data, err := score.MarshalScore(s)
	if err != nil {
		return err
	}

	out := importOut
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".json"
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", goodStyle.Render("imported"),
		fmt.Sprintf("%q: %d notes, %s into %s", s.Title, len(s.Notes), fmtClock(s.Duration), out))
	return nil
}
