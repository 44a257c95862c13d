// Package output provides styled terminal rendering helpers for agentpulse.
package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for positive indicators and improvements.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for negative indicators and regressions.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for caution indicators.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// StyleSuccess is used for positive values.
	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// StyleError is used for negative values.
	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	// StyleWarning is used for cautionary values.
	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// StyleMuted is used for de-emphasized text.
	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// StyleBold is used for emphasized text.
	StyleBold = lipgloss.NewStyle().
			Bold(true)
)

// noColor tracks whether color output is disabled.
var noColor bool

// SetNoColor disables or enables color output globally.
// When disabled, all package-level styles are reassigned to unstyled renderers.
func SetNoColor(disabled bool) {
	noColor = disabled
	if disabled {
		plain := lipgloss.NewStyle()
		StyleHeader = plain
		StyleSuccess = plain
		StyleError = plain
		StyleWarning = plain
		StyleMuted = plain
		StyleBold = plain
	}
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

// Section renders a section header with a horizontal rule.
func Section(title string) string {
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", 66))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}

// Trend renders a trend label with a direction arrow, colored by whether the
// direction is good news for that label.
func Trend(label string) string {
	switch label {
	case "increasing", "improving", "accelerating", "growing":
		return StyleSuccess.Render("↑ " + label)
	case "decreasing", "degrading", "decelerating", "shrinking":
		return StyleError.Render("↓ " + label)
	default:
		return StyleMuted.Render("→ " + label)
	}
}

// Status renders an activity or session status with a matching color.
func Status(status string) string {
	switch status {
	case "completed":
		return StyleSuccess.Render(status)
	case "failed":
		return StyleError.Render(status)
	case "in_progress":
		return StyleWarning.Render(status)
	default:
		return StyleMuted.Render(status)
	}
}

// Score renders a 0-100 health score colored by band.
func Score(score int) string {
	s := strconv.Itoa(score)
	switch {
	case score >= 70:
		return StyleSuccess.Render(s)
	case score >= 40:
		return StyleWarning.Render(s)
	default:
		return StyleError.Render(s)
	}
}
