package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go/score"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate score.json",
	Short: "Check a score file and report problems",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := readScoreFile(args[0])
	if err != nil {
		return err
	}

	warnings, err := score.Validate(s)
	var verr *score.ValidationError
	if errors.As(err, &verr) {
		fmt.Println(badStyle.Render(fmt.Sprintf("%s: %d fatal problems", args[0], len(verr.Issues))))
		for _, issue := range verr.Issues {
			fmt.Printf("  %s %s\n", badStyle.Render("✗"), issue.String())
		}
		printWarnings(warnings)
		return fmt.Errorf("score is not playable")
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", goodStyle.Render("valid:"),
		fmt.Sprintf("%q, %d notes, %s", s.Title, len(s.Notes), fmtClock(s.Duration)))
	printWarnings(warnings)
	return nil
}

func printWarnings(warnings []score.Issue) {
	for _, w := range warnings {
		fmt.Printf("  %s %s\n", warnStyle.Render("⚠"), w.String())
	}
}
