package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/clairkeys/clairkeys-go"
	"github.com/clairkeys/clairkeys-go/score"
)

var (
	followDemo   string
	followMIDIIn string
)

func init() {
	followCmd.Flags().StringVar(&followDemo, "demo", "", "follow a built-in demo score")
	followCmd.Flags().StringVar(&followMIDIIn, "midi-in", "", "MIDI input port (substring match; empty lists ports)")
	rootCmd.AddCommand(followCmd)
}

var followCmd = &cobra.Command{
	Use:   "follow [score.json]",
	Short: "Follow mode: the score waits for you to play each note",
	Long: `Follow mode holds the transport still until you play the next note.
Input comes from a MIDI keyboard (--midi-in) or typed note names on
stdin. Matched notes sound and advance the score; misses leave it
where it is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFollow,
}

func runFollow(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("midi-in") && followMIDIIn == "" {
		return listMIDIInputs()
	}

	cfg, err := engineConfig()
	if err != nil {
		return err
	}
	s, err := resolveScore(args, followDemo)
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
	pl.SetMode(clairkeys.ModeFollow)

	fmt.Println(scoreBanner(s))

	lastStart := 0.0
	for _, n := range s.Notes {
		if n.Start > lastStart {
			lastStart = n.Start
		}
	}
	hint := func() string {
		return "expected: " + strings.Join(expectedPitches(s, pl.CurrentTime(), cfg.FollowToleranceSec), " ")
	}
	reachedEnd := false
	feedback := func(name string) {
		if pl.ProcessUserInput(name) {
			fmt.Printf("%s %s  %s\n", goodStyle.Render("✓"), name,
				dimStyle.Render("at "+fmtClock(pl.CurrentTime())))
			if !reachedEnd && pl.CurrentTime() >= lastStart {
				reachedEnd = true
				fmt.Println(goodStyle.Render("reached the end of the score"))
			}
			return
		}
		fmt.Printf("%s %s  %s\n", badStyle.Render("✗"), name, dimStyle.Render(hint()))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	if followMIDIIn != "" {
		return followMIDI(followMIDIIn, feedback, sig)
	}
	return followStdin(feedback, hint, sig)
}

func followStdin(feedback func(string), hint func() string, sig <-chan os.Signal) error {
	fmt.Println(dimStyle.Render("type note names (C4, F#3, Bb5), blank line for a hint, Ctrl-D to quit"))

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
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			name := strings.TrimSpace(line)
			if name == "" {
				fmt.Println(dimStyle.Render(hint()))
				continue
			}
			feedback(name)
		}
	}
}

func followMIDI(portName string, feedback func(string), sig <-chan os.Signal) error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return err
	}
	var in drivers.In
	for _, candidate := range ins {
		if strings.Contains(strings.ToLower(candidate.String()), strings.ToLower(portName)) {
			in = candidate
			break
		}
	}
	if in == nil {
		return fmt.Errorf("no MIDI input matching %q (run with --midi-in= to list ports)", portName)
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("open %q: %w", in.String(), err)
	}
	defer in.Close()

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if msg.GetNoteStart(&ch, &key, &vel) {
			feedback(score.MIDIName(int(key)))
		}
	}, midi.HandleError(func(listenErr error) {
		slog.Warn("midi listener error", "port", in.String(), "err", listenErr)
	}))
	if err != nil {
		return fmt.Errorf("listen %q: %w", in.String(), err)
	}
	defer stop()

	fmt.Println(dimStyle.Render("listening on " + in.String() + "; Ctrl-C to quit"))
	<-sig
	fmt.Println("\ninterrupted")
	return nil
}

func listMIDIInputs() error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		fmt.Println("no MIDI inputs found")
		return nil
	}
	fmt.Println("MIDI inputs:")
	for _, in := range ins {
		fmt.Println("  " + in.String())
	}
	return nil
}

// expectedPitches lists the pitches whose starts sit within tol of t, in
// score order, deduplicated.
func expectedPitches(s *score.Score, t, tol float64) []string {
	type cand struct {
		start float64
		pitch string
	}
	var cands []cand
	seen := map[string]struct{}{}
	for _, n := range s.Notes {
		if n.Start < t-tol || n.Start > t+tol {
			continue
		}
		if _, dup := seen[n.Pitch]; dup {
			continue
		}
		seen[n.Pitch] = struct{}{}
		cands = append(cands, cand{n.Start, n.Pitch})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].start < cands[j].start })
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.pitch
	}
	return out
}
