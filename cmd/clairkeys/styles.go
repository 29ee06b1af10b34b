package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/clairkeys/clairkeys-go/score"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00b7ff"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f"))
	goodStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f87"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// fmtClock renders seconds as m:ss.t for the transport line.
func fmtClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	m := int(sec) / 60
	return fmt.Sprintf("%d:%04.1f", m, sec-float64(m*60))
}

func scoreBanner(s *score.Score) string {
	return fmt.Sprintf("%s %s",
		titleStyle.Render(s.Title),
		dimStyle.Render(fmt.Sprintf("by %s, %.0f BPM, %s, %s",
			s.Composer, s.Tempo, s.TimeSignature.String(), fmtClock(s.Duration))))
}
