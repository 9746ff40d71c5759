// Package color holds the palette and lipgloss styles used by panelctl's
// terminal output.
//
// Colors are adaptive: lipgloss picks the light or dark variant depending on
// the detected terminal background. Initialize overrides detection, which is
// useful in tests and when output is piped.
//
// Usage:
//
//	color.Initialize(true)
//	fmt.Println(color.OKStyle.Render("running"))
//
// NO_COLOR and the terminal's color profile are honoured by lipgloss itself.
package color
