package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"panelctl/internal/color"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	case "":
		return OutputFormatTable, nil
	}
	return "", fmt.Errorf("unsupported output format: %s (use table, json or yaml)", s)
}

// CheckReport summarises what a start attempt would use.
type CheckReport struct {
	Interpreter         string   `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
	Version             string   `json:"version,omitempty" yaml:"version,omitempty"`
	Kind                string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Tried               []string `json:"tried,omitempty" yaml:"tried,omitempty"`
	Manifest            string   `json:"manifest" yaml:"manifest"`
	ManifestFound       bool     `json:"manifestFound" yaml:"manifestFound"`
	InstallDependencies bool     `json:"installDependencies" yaml:"installDependencies"`
	Autostart           bool     `json:"autostart" yaml:"autostart"`
	BindHost            string   `json:"bindHost" yaml:"bindHost"`
	ProbeURL            string   `json:"probeURL" yaml:"probeURL"`
	Error               string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether an interpreter was found.
func (r CheckReport) OK() bool {
	return r.Error == "" && r.Interpreter != ""
}

// RenderCheck writes report in the requested format.
func RenderCheck(w io.Writer, report CheckReport, format OutputFormat) error {
	if format != OutputFormatTable {
		return encode(w, report, format)
	}

	interp := color.ErrorStyle.Render("not found")
	if report.OK() {
		interp = color.OKStyle.Render(report.Interpreter) + " " +
			color.LabelStyle.Render(fmt.Sprintf("(Python %s, %s)", report.Version, report.Kind))
	}

	manifest := report.Manifest
	switch {
	case !report.InstallDependencies:
		manifest += " " + color.LabelStyle.Render("(install disabled)")
	case report.ManifestFound:
		manifest += " " + color.OKStyle.Render("found")
	default:
		manifest += " " + color.WarnStyle.Render("missing")
	}

	rows := [][]string{
		{"Interpreter", interp},
		{"Manifest", manifest},
		{"Autostart", fmt.Sprintf("%t", report.Autostart)},
		{"Bind host", report.BindHost},
		{"Probe URL", report.ProbeURL},
	}
	if !report.OK() {
		if len(report.Tried) > 0 {
			rows = append(rows, []string{"Tried", strings.Join(report.Tried, "\n")})
		}
		if report.Error != "" {
			rows = append(rows, []string{"Error", color.ErrorStyle.Render(report.Error)})
		}
	}

	_, err := fmt.Fprintln(w, keyValueTable("Backend check", rows))
	return err
}

// RenderStatus writes status in the requested format.
func RenderStatus(w io.Writer, status BackendStatus, format OutputFormat) error {
	if format != OutputFormatTable {
		return encode(w, status, format)
	}

	state := color.StyleFor(color.LevelError).Render("down")
	if status.Alive {
		state = color.StyleFor(color.LevelOK).Render("up")
	}

	rows := [][]string{
		{"Backend", state},
		{"URL", status.URL},
	}
	if status.StatusCode != 0 {
		rows = append(rows, []string{"HTTP status", fmt.Sprintf("%d", status.StatusCode)})
	}
	rows = append(rows, []string{"Latency", status.Latency.Round(time.Millisecond).String()})
	if status.Error != "" {
		rows = append(rows, []string{"Error", color.WarnStyle.Render(status.Error)})
	}

	_, err := fmt.Fprintln(w, keyValueTable("Backend status", rows))
	return err
}

func keyValueTable(title string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(color.ColorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return color.LabelStyle.PaddingRight(1)
			}
			return color.ValueStyle.PaddingLeft(1)
		}).
		Rows(rows...)

	return lipgloss.JoinVertical(lipgloss.Left, color.TitleStyle.Render(title), t.Render())
}

func encode(w io.Writer, v interface{}, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
