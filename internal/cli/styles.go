package cli

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dpshade/prompthive/internal/cloudsync"
)

// Adaptive colors: light terminal value first, dark second.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "125", Dark: "205"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "130", Dark: "214"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "22", Dark: "10"}
	colorWarning = lipgloss.AdaptiveColor{Light: "136", Dark: "11"}
	colorError   = lipgloss.AdaptiveColor{Light: "160", Dark: "9"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "24", Dark: "12"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "240", Dark: "244"}
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	keyStyle     = lipgloss.NewStyle().Foreground(colorInfo)
	codeStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

// stateStyle returns the symbol and style for a sync classification.
func stateStyle(c cloudsync.Classification) (string, lipgloss.Style) {
	switch c {
	case cloudsync.Synced:
		return "✓", successStyle
	case cloudsync.PendingPush:
		return "↑", keyStyle
	case cloudsync.PendingPull:
		return "↓", keyStyle
	case cloudsync.Conflict:
		return "!", warningStyle
	default:
		return "✗", errorStyle
	}
}

// markdownRenderer builds a glamour renderer; GLAMOUR_STYLE overrides the
// detected style.
func markdownRenderer(wordWrap int) (*glamour.TermRenderer, error) {
	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		return glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(wordWrap),
		)
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
}
