package launcher

import "strings"

// fatalStderrPatterns end a startup immediately when seen on stderr.
// Matching is case-insensitive.
var fatalStderrPatterns = []string{
	"address already in use",
	"permission denied",
	"error while attempting to bind",
}

type stderrClass int

const (
	stderrInfo stderrClass = iota
	stderrReady
	stderrFatal
)

func (c stderrClass) String() string {
	switch c {
	case stderrReady:
		return "ready"
	case stderrFatal:
		return "fatal"
	}
	return "info"
}

// classifyStderr sorts one stderr line. Fatal patterns take precedence over
// ready phrases.
func classifyStderr(line string, s Strategy) stderrClass {
	lower := strings.ToLower(line)
	for _, p := range fatalStderrPatterns {
		if strings.Contains(lower, p) {
			return stderrFatal
		}
	}
	if s.IsReadyLine(line) {
		return stderrReady
	}
	return stderrInfo
}

// stderrHint returns an explanation for well-known informational errors.
func stderrHint(line string) string {
	switch {
	case strings.Contains(line, "ModuleNotFoundError"):
		return "a Python module is missing; check the dependency manifest"
	case strings.Contains(strings.ToLower(line), "uvicorn"):
		return "the module runner reported a problem"
	case strings.Contains(strings.ToLower(line), "fastapi"):
		return "the web framework reported a problem"
	}
	return ""
}
