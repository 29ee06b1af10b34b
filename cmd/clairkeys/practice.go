package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go"
	"github.com/clairkeys/clairkeys-go/score"
)

var (
	practiceDemo        string
	practiceStartTempo  float64
	practiceTargetTempo float64
)

func init() {
	practiceCmd.Flags().StringVar(&practiceDemo, "demo", "", "practice a built-in demo score")
	practiceCmd.Flags().Float64Var(&practiceStartTempo, "start-tempo", 0.5, "starting tempo multiplier")
	practiceCmd.Flags().Float64Var(&practiceTargetTempo, "target-tempo", 1.0, "tempo multiplier to work up to")
	rootCmd.AddCommand(practiceCmd)
}

var practiceCmd = &cobra.Command{
	Use:   "practice [score.json]",
	Short: "Practice mode: step through the score hand position by hand position",
	Long: `Practice mode splits the score into steps of notes played together.
Each Enter advances one step. Completing a pass below the target tempo
raises the tempo and starts the score over.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPractice,
}

func runPractice(cmd *cobra.Command, args []string) error {
	cfg, err := engineConfig()
	if err != nil {
		return err
	}
	s, err := resolveScore(args, practiceDemo)
	if err != nil {
		return err
	}

	pl, err := clairkeys.NewPlayer(clairkeys.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer pl.Dispose()

	if err := pl.LoadScore(s); err != nil {
		return err
	}

	printStep := func() {
		st := pl.PracticeState()
		if st.Current == nil {
			return
		}
		fmt.Printf("%s  %s\n",
			titleStyle.Render(fmt.Sprintf("step %d/%d", st.StepIndex+1, st.TotalSteps)),
			fmtStepNotes(st.Current.Notes))
	}
	pl.Subscribe(clairkeys.EventPracticeStep, func(ev clairkeys.Event) {
		printStep()
	})
	pl.Subscribe(clairkeys.EventPracticeComplete, func(ev clairkeys.Event) {
		fmt.Println(goodStyle.Render(fmt.Sprintf("pass complete at %.2fx", ev.Tempo)))
	})
	pl.Subscribe(clairkeys.EventTempoIncrease, func(ev clairkeys.Event) {
		fmt.Println(warnStyle.Render(fmt.Sprintf("tempo raised to %.2fx", ev.Tempo)))
		printStep()
	})

	fmt.Println(scoreBanner(s))
	if err := pl.StartPracticeMode(practiceStartTempo, practiceTargetTempo); err != nil {
		return err
	}
	fmt.Println(dimStyle.Render("press Enter to advance a step, Ctrl-D to quit"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-sig:
			fmt.Println("\ninterrupted")
			return nil
		case _, ok := <-lines:
			if !ok {
				return nil
			}
			pl.NextPracticeStep()
			if st := pl.PracticeState(); !st.Active {
				fmt.Println(goodStyle.Render(fmt.Sprintf("practice finished at %.2fx", st.CurrentTempo)))
				return nil
			}
		}
	}
}

// fmtStepNotes renders a step's pitches with fingering where the score
// has it, e.g. "C4(1) E4(3) G4(5)".
func fmtStepNotes(notes []score.Note) string {
	parts := make([]string, len(notes))
	for i, n := range notes {
		p := noteStyle.Render(n.Pitch)
		if n.Finger != 0 {
			p += dimStyle.Render(fmt.Sprintf("(%d)", n.Finger))
		}
		parts[i] = p
	}
	return strings.Join(parts, " ")
}
