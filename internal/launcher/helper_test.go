package launcher

import (
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"panelctl/internal/config"

	"github.com/stretchr/testify/require"
)

// fakeExecCommand runs the test binary as the worker; the interpreter name
// selects the helper's behaviour.
func fakeExecCommand(command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	return exec.Command(os.Args[0], cs...)
}

func idle() {
	for {
		time.Sleep(time.Hour)
	}
}

// TestHelperProcess is not a real test. It's used by fakeExecCommand.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]

	switch args[0] {
	case "ready-stdout":
		time.Sleep(150 * time.Millisecond)
		fmt.Fprintln(os.Stdout, "INFO:     Uvicorn running on http://127.0.0.1:1105 (Press CTRL+C to quit)")
		idle()
	case "ready-stderr":
		fmt.Fprintln(os.Stderr, "INFO:     Waiting for application startup.")
		fmt.Fprintln(os.Stderr, "INFO:     Application startup complete.")
		idle()
	case "fallback-ready":
		fmt.Fprintln(os.Stdout, "Panel backend STARTED")
		idle()
	case "bind-error":
		fmt.Fprintln(os.Stderr, "ERROR:    [Errno 98] error while attempting to bind on address ('127.0.0.1', 1105): address already in use")
		os.Exit(1)
	case "module-missing":
		fmt.Fprintln(os.Stderr, "ModuleNotFoundError: No module named 'fastapi'")
		os.Exit(1)
	case "silent":
		idle()
	case "exit-0":
		os.Exit(0)
	case "exit-130":
		os.Exit(130)
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
		fmt.Fprintln(os.Stdout, "Uvicorn running on http://127.0.0.1:1105")
		idle()
	case "record":
		wd, _ := os.Getwd()
		var b strings.Builder
		fmt.Fprintf(&b, "args=%s\n", strings.Join(args[1:], " "))
		fmt.Fprintf(&b, "cwd=%s\n", wd)
		for _, k := range []string{"PYTHONPATH", "MC_SERVERS_PATH", "FRONTEND_DIST_PATH", "SECRET_KEY", "NETWORK_ACCESS", "LOCALHOST_ONLY", "NETWORK_MODE", "PORT"} {
			fmt.Fprintf(&b, "%s=%s\n", k, os.Getenv(k))
		}
		_ = os.WriteFile(os.Getenv("HELPER_RECORD_FILE"), []byte(b.String()), 0644)
		fmt.Fprintln(os.Stdout, "Uvicorn running on http://127.0.0.1:1105")
		idle()
	}
	os.Exit(2)
}

func useFakeWorker(t *testing.T) {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	original := execCommand
	execCommand = fakeExecCommand
	t.Cleanup(func() { execCommand = original })
}

// testConfig returns a config with short timings and a port nothing listens on.
func testConfig(t *testing.T) config.SupervisorConfig {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.WorkingDirectory = t.TempDir()
	cfg.DataDirectory = cfg.WorkingDirectory
	cfg.Port = freePort(t)
	cfg.Timeouts.Startup = 10 * time.Second
	cfg.Timeouts.FallbackStartup = 5 * time.Second
	cfg.Timeouts.ProbeInterval = 20 * time.Millisecond
	cfg.Timeouts.ProbeRequest = 200 * time.Millisecond
	cfg.Timeouts.ShutdownGrace = 2 * time.Second
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}
