// Package console renders the high-visibility console blocks shown to users
// on the terminal. Even with only two styles, keeping them in one place makes
// the output consistent across every failure path.
package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// warningBorder reproduces the classic bang-border used by the original
// switcher banners.
var warningBorder = lipgloss.Border{
	Top:         "!",
	Bottom:      "!",
	Left:        "!!!",
	Right:       "!!!",
	TopLeft:     "!!!!",
	TopRight:    "!!!!",
	BottomLeft:  "!!!!",
	BottomRight: "!!!!",
}

var (
	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("3")). // yellow on red, maximum visibility
			Background(lipgloss.Color("1")).
			Border(warningBorder).
			Padding(1, 3).
			Align(lipgloss.Center)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("2"))
)

// Warning formats a bordered warning block. Color degrades automatically on
// dumb terminals and under NO_COLOR via lipgloss's profile detection.
func Warning(lines ...string) string {
	return warningStyle.Render(strings.Join(lines, "\n"))
}

// Success formats a success message.
func Success(lines ...string) string {
	return successStyle.Render(strings.Join(lines, "\n"))
}
