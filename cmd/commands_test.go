package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"panelctl/internal/config"
	"panelctl/internal/reporting"
	"panelctl/internal/runner"
	"panelctl/internal/supervisor"
)

type versionRunner struct {
	outputs map[string]string
}

func (r versionRunner) Run(ctx context.Context, name string, args []string, opts ...runner.Option) (string, error) {
	if out, ok := r.outputs[name]; ok {
		return out, nil
	}
	return "", &runner.RunError{Command: name, ExitCode: -1, Err: errors.New("executable file not found")}
}

func writeConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "backend"), 0o755))
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("workingDirectory: backend\nport: %d\n", port)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildCheckReport_Found(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.WorkingDirectory = t.TempDir()
	autostart := true
	cfg.Autostart = &autostart
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WorkingDirectory, "requirements.txt"), []byte("fastapi\n"), 0o644))

	r := versionRunner{outputs: map[string]string{"python3": "Python 3.11.2\n"}}
	report, err := buildCheckReport(context.Background(), cfg, r)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "python3", report.Interpreter)
	assert.Equal(t, "3.11.2", report.Version)
	assert.Equal(t, "system", report.Kind)
	assert.True(t, report.ManifestFound)
	assert.True(t, report.Autostart)
	assert.Equal(t, "127.0.0.1", report.BindHost)
	assert.Equal(t, "http://127.0.0.1:1105/", report.ProbeURL)
}

func TestBuildCheckReport_NotFound(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.WorkingDirectory = t.TempDir()

	r := versionRunner{outputs: map[string]string{"python": "Python 2.7.18\n"}}
	report, err := buildCheckReport(context.Background(), cfg, r)

	require.Error(t, err)
	assert.False(t, report.OK())
	assert.False(t, report.ManifestFound)
	assert.Equal(t, []string{"python", "python3", "py"}, report.Tried)
	assert.NotEmpty(t, report.Error)
}

func TestConfigShow(t *testing.T) {
	path := writeConfig(t, 2105)

	out, err := executeRoot(t, "--config", path, "config", "show")
	require.NoError(t, err)

	var shown config.SupervisorConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 2105, shown.Port)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "backend"), shown.WorkingDirectory)
	assert.Equal(t, config.DefaultTimeouts().Startup, shown.Timeouts.Startup)
}

func TestConfigShow_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 99999\n"), 0o644))

	_, err := executeRoot(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestConfigPath_Layered(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userFile := filepath.Join(home, ".config", "panelctl", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userFile), 0o755))
	require.NoError(t, os.WriteFile(userFile, []byte("port: 2105\n"), 0o644))

	out, err := executeRoot(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, userFile+" (found)")
	assert.Contains(t, out, filepath.Join(".panelctl", "config.yaml"))
}

func TestConfigPath_Explicit(t *testing.T) {
	path := writeConfig(t, 2105)

	out, err := executeRoot(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+" (--config)\n", out)
}

func TestSubscribeExits_OnlyMatchingAttempt(t *testing.T) {
	bus := reporting.NewEventBus()
	sub := subscribeExits(bus, "attempt-2")
	defer bus.Unsubscribe(sub)

	stale := reporting.NewExitedEvent("supervisor", 100, 1)
	stale.WithCorrelation("attempt-1")
	bus.Publish(stale)

	ready := reporting.NewReadyEvent("supervisor", 200, "primary", "stdout", time.Second)
	ready.WithCorrelation("attempt-2")
	bus.Publish(ready)

	current := reporting.NewExitedEvent("supervisor", 200, 3)
	current.WithCorrelation("attempt-2")
	bus.Publish(current)

	select {
	case ev := <-sub.Channel:
		exited, ok := ev.(*reporting.ExitedEvent)
		require.True(t, ok)
		assert.Equal(t, 200, exited.PID)
		assert.Equal(t, 3, exited.ExitCode)
	case <-time.After(time.Second):
		t.Fatal("exit of the current attempt was not delivered")
	}

	select {
	case ev := <-sub.Channel:
		t.Fatalf("unexpected extra event: %v", ev)
	default:
	}
}

func TestStatusCommand_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	out, err := executeRoot(t, "--config", writeConfig(t, port), "status", "-o", "json", "--retries", "1", "--timeout", "1s")
	require.NoError(t, err)
	assert.Contains(t, out, `"alive": true`)
	assert.Contains(t, out, `"statusCode": 404`)
}

func TestStatusCommand_Down(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	out, err := executeRoot(t, "--config", writeConfig(t, port), "status", "-o", "table", "--retries", "0", "--timeout", "500ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
	assert.Contains(t, out, "down")
}

func TestStartMetricsServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	collector := supervisor.NewPrometheusMetricsCollector("")
	collector.StateTransition(supervisor.StateIdle, supervisor.StateLocating)
	srv := startMetricsServer(addr, collector)
	defer srv.Close()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/metrics")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
