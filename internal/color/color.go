package color

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#404040"}
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle = lipgloss.NewStyle()

	OKStyle    = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	WarnStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorError).Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
)

// Level is the semantic weight of a rendered value.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelError
)

// StyleFor returns the style matching level.
func StyleFor(level Level) lipgloss.Style {
	switch level {
	case LevelOK:
		return OKStyle
	case LevelWarn:
		return WarnStyle
	default:
		return ErrorStyle
	}
}

// Initialize forces the dark or light variant of every adaptive color.
func Initialize(isDarkMode bool) {
	lipgloss.SetHasDarkBackground(isDarkMode)
}
