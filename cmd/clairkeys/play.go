package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clairkeys/clairkeys-go"
)

var (
	playDemo      string
	playSpeed     float64
	playLoop      string
	playMetronome bool
	playMute      bool
)

func init() {
	playCmd.Flags().StringVar(&playDemo, "demo", "", "play a built-in demo score")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 1.0, "playback speed (0.25..4)")
	playCmd.Flags().StringVar(&playLoop, "loop", "", "loop a section, start:end in seconds")
	playCmd.Flags().BoolVar(&playMetronome, "metronome", false, "click track on the beat")
	playCmd.Flags().BoolVar(&playMute, "mute", false, "run the transport with audio muted")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play [score.json]",
	Short: "Play a score in listen mode",
	Long: `Play a score in listen mode: the transport follows the audio clock
and a live status line shows the sounding notes. With no score argument
the built-in twinkle demo plays.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := engineConfig()
	if err != nil {
		return err
	}
	if playMetronome {
		cfg.Metronome = true
	}
	s, err := resolveScore(args, playDemo)
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
	pl.SetSpeed(playSpeed)
	if playLoop != "" {
		start, end, err := parseLoop(playLoop)
		if err != nil {
			return err
		}
		if err := pl.SetLoopSection(start, end); err != nil {
			return err
		}
	}
	pl.SetMuted(playMute)

	fmt.Println(scoreBanner(s))
	if !pl.AudioReady() {
		fmt.Println(dimStyle.Render("audio device unavailable; playing silently"))
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ch := pl.Watch()
	pl.Play()

	lastTenth := -1
	for {
		select {
		case <-sig:
			fmt.Println("\ninterrupted")
			return nil
		case ev := <-ch:
			switch ev.Type {
			case clairkeys.EventTimeUpdate:
				// 10 Hz is plenty for a terminal status line.
				if tenth := int(ev.Time * 10); tenth != lastTenth {
					lastTenth = tenth
					printTransport(pl, s.Duration)
				}
			case clairkeys.EventPlayStateChange:
				if !ev.Playing {
					printTransport(pl, s.Duration)
					fmt.Println("\n" + goodStyle.Render("playback complete"))
					return nil
				}
			}
		}
	}
}

func printTransport(pl *clairkeys.Player, duration float64) {
	st := pl.State()
	line := fmt.Sprintf("%s %s / %s  %s  %s",
		noteStyle.Render("▶"),
		fmtClock(st.Time), fmtClock(duration),
		dimStyle.Render(fmt.Sprintf("%.2fx", st.Speed)),
		noteStyle.Render(strings.Join(st.ActivePitches, " ")))
	if lp, ok := pl.LoopSection(); ok {
		line += "  " + dimStyle.Render(fmt.Sprintf("loop %s..%s", fmtClock(lp.Start), fmtClock(lp.End)))
	}
	fmt.Printf("\r%s\x1b[K", line)
}

func parseLoop(s string) (start, end float64, err error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --loop %q (want start:end in seconds)", s)
	}
	if start, err = strconv.ParseFloat(strings.TrimSpace(a), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid --loop start %q", a)
	}
	if end, err = strconv.ParseFloat(strings.TrimSpace(b), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid --loop end %q", b)
	}
	return start, end, nil
}
