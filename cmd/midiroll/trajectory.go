package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cbegin/midiroll-go"
	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/trajectory"
)

var maxSteps int

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d77aff"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c6c8a"))
	whiteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5f0ff"))
	blackStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	pedalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd7ff"))
	restStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a3a4a"))
	summaryStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#8a8aa8"))
)

func init() {
	trajectoryCmd.Flags().IntVar(&maxSteps, "max-steps", 200, "stop printing after this many steps (0 = all)")
	rootCmd.AddCommand(trajectoryCmd)
}

var trajectoryCmd = &cobra.Command{
	Use:   "trajectory <score>",
	Short: "Print the key activation trajectory of a score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadScore(args[0])
		if err != nil {
			return err
		}
		tr, err := midiroll.BuildTrajectory(s, cfg.DT, cfg.InitialBufferTime)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderRoll(tr, maxSteps))
		return nil
	},
}

// renderRoll draws one line per step over the keys the trajectory touches.
func renderRoll(tr *trajectory.Trajectory, limit int) string {
	lo, hi := keys.MaxKey, keys.MinKey
	for _, step := range tr.Notes {
		for _, n := range step {
			lo, hi = min(lo, n.Key), max(hi, n.Key)
		}
	}
	var b strings.Builder
	if lo > hi {
		b.WriteString(summaryStyle.Render(fmt.Sprintf("%d silent steps", tr.Len())) + "\n")
		return b.String()
	}

	loName, _ := keys.KeyToName(lo)
	hiName, _ := keys.KeyToName(hi)
	b.WriteString(headerStyle.Render(fmt.Sprintf("%8s  P  %s … %s", "time", loName, hiName)) + "\n")

	for i, g := range tr.Goals() {
		if limit > 0 && i >= limit {
			b.WriteString(summaryStyle.Render(fmt.Sprintf("… %d more steps", tr.Len()-limit)) + "\n")
			break
		}
		b.WriteString(stepStyle.Render(fmt.Sprintf("%7.2fs", float64(i)*tr.DT)))
		b.WriteString("  ")
		if g.Sustain {
			b.WriteString(pedalStyle.Render("▼"))
		} else {
			b.WriteString(restStyle.Render("·"))
		}
		b.WriteString("  ")
		for k := lo; k <= hi; k++ {
			switch {
			case !g.Keys[k]:
				b.WriteString(restStyle.Render("·"))
			case keys.IsBlack(k):
				b.WriteString(blackStyle.Render("█"))
			default:
				b.WriteString(whiteStyle.Render("█"))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(summaryStyle.Render(fmt.Sprintf("%d steps of %.3fs (%.2fs)", tr.Len(), tr.DT, tr.Duration())) + "\n")
	return b.String()
}
