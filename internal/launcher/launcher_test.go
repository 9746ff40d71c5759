package launcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launchOK(t *testing.T, l *Launcher, python string, s Strategy) *ProcessHandle {
	t.Helper()
	h, err := l.Launch(context.Background(), python, s)
	require.NoError(t, err)
	require.NotNil(t, h)
	t.Cleanup(func() { l.Shutdown(context.Background(), h) })
	return h
}

func TestLaunch_StdoutWinsAndPollerStops(t *testing.T) {
	useFakeWorker(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Port = serverPort(t, srv)
	l := New(cfg)

	h := launchOK(t, l, "ready-stdout", PrimaryStrategy(cfg))

	sig := h.ReadySignal()
	assert.Equal(t, SignalStdoutMatch, sig.Kind)
	assert.Contains(t, sig.Text, "Uvicorn running on")
	assert.True(t, h.StartupComplete())
	assert.True(t, h.Running())
	assert.Greater(t, hits.Load(), int32(0), "probe ran while waiting")

	time.Sleep(50 * time.Millisecond)
	settled := hits.Load()
	time.Sleep(10 * cfg.Timeouts.ProbeInterval)
	assert.Equal(t, settled, hits.Load(), "poller must stop once the race resolves")
}

func TestLaunch_StderrReadyPhrase(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	h := launchOK(t, l, "ready-stderr", PrimaryStrategy(cfg))
	assert.Equal(t, SignalStderrMatch, h.ReadySignal().Kind)
}

func TestLaunch_HTTPProbeWins(t *testing.T) {
	useFakeWorker(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Port = serverPort(t, srv)
	l := New(cfg)

	h := launchOK(t, l, "silent", PrimaryStrategy(cfg))
	assert.Equal(t, SignalHTTPProbe, h.ReadySignal().Kind)
	assert.Contains(t, h.ReadySignal().Text, "404")
}

func TestLaunch_FallbackLooseMatch(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	s := FallbackStrategy(cfg)
	h := launchOK(t, l, "fallback-ready", s)
	assert.Equal(t, SignalStdoutMatch, h.ReadySignal().Kind)
	assert.Equal(t, StrategyFallback, h.Strategy())
}

func TestLaunch_FatalStderrBeatsTimeout(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	start := time.Now()
	h, err := l.Launch(context.Background(), "bind-error", PrimaryStrategy(cfg))
	require.Error(t, err)
	assert.Nil(t, h)
	assert.Less(t, time.Since(start), cfg.Timeouts.Startup)

	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonBindError, se.Reason)
	assert.Equal(t, SignalFatalStderr, se.Signal.Kind)
	assert.Contains(t, se.Signal.Text, "address already in use")
	assert.Contains(t, err.Error(), "bind-error")
}

func TestLaunch_Timeout(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	s := PrimaryStrategy(cfg)
	s.Timeout = 300 * time.Millisecond

	_, err := l.Launch(context.Background(), "silent", s)
	require.Error(t, err)
	assert.Equal(t, ReasonStartupTimeout, ReasonOf(err))

	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Cleanup.AlreadyStopped, "the silent worker must be stopped")
	assert.True(t, se.Cleanup.ExitedGracefully || se.Cleanup.Forced)
	assert.GreaterOrEqual(t, se.Signal.Elapsed, s.Timeout)
}

func TestLaunch_UnexpectedExit(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	_, err := l.Launch(context.Background(), "module-missing", PrimaryStrategy(cfg))
	require.Error(t, err)

	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonUnexpectedExit, se.Reason)
	assert.Equal(t, 1, se.Signal.ExitCode)
	assert.True(t, se.Cleanup.AlreadyStopped)
	assert.Contains(t, err.Error(), "exited with code 1")
}

func TestLaunch_CleanExitIsTolerated(t *testing.T) {
	useFakeWorker(t)

	t.Run("probe decides", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		cfg := testConfig(t)
		cfg.Port = serverPort(t, srv)
		h, err := New(cfg).Launch(context.Background(), "exit-0", PrimaryStrategy(cfg))
		require.NoError(t, err)
		assert.Equal(t, SignalHTTPProbe, h.ReadySignal().Kind)
		<-h.Done()
		assert.Equal(t, 0, h.ExitCode())
	})

	for _, mode := range []string{"exit-0", "exit-130"} {
		t.Run(mode+" without probe", func(t *testing.T) {
			cfg := testConfig(t)
			s := FallbackStrategy(cfg)
			s.Timeout = 300 * time.Millisecond

			_, err := New(cfg).Launch(context.Background(), mode, s)
			require.Error(t, err)
			assert.Equal(t, ReasonStartupTimeout, ReasonOf(err), "a tolerated exit is never reported as unexpected-exit")
		})
	}
}

func TestLaunch_Cancelled(t *testing.T) {
	useFakeWorker(t)
	cfg := testConfig(t)
	l := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := l.Launch(ctx, "silent", PrimaryStrategy(cfg))
	require.Error(t, err)
	assert.Equal(t, ReasonCancelled, ReasonOf(err))
	assert.ErrorIs(t, err, context.Canceled)

	var se *StartupError
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Cleanup.AlreadyStopped)

	_, err = l.Launch(ctx, "silent", PrimaryStrategy(cfg))
	assert.Equal(t, ReasonCancelled, ReasonOf(err), "already-cancelled context never spawns")
}

func TestLaunch_SpawnFailed(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg).Launch(context.Background(), filepath.Join(t.TempDir(), "no-such-python"), PrimaryStrategy(cfg))
	require.Error(t, err)
	assert.Equal(t, ReasonSpawnFailed, ReasonOf(err))
}

func TestLaunch_EnvironmentAndArgs(t *testing.T) {
	useFakeWorker(t)
	record := filepath.Join(t.TempDir(), "record.txt")
	t.Setenv("HELPER_RECORD_FILE", record)
	t.Setenv("SECRET_KEY", "inherited-must-be-replaced")

	cfg := testConfig(t)
	cfg.NetworkExposure = "local-network"
	cfg.FrontendAssetPath = "/assets"
	l := New(cfg)

	launchOK(t, l, "record", PrimaryStrategy(cfg))

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "args=-m uvicorn main:app --host 0.0.0.0 --port ")
	assert.Contains(t, got, "PYTHONPATH="+cfg.WorkingDirectory+"\n")
	assert.Contains(t, got, "FRONTEND_DIST_PATH=/assets\n")
	assert.Contains(t, got, "NETWORK_ACCESS=true\n")
	assert.Contains(t, got, "LOCALHOST_ONLY=false\n")
	assert.Contains(t, got, "NETWORK_MODE=local-network\n")
	assert.NotContains(t, got, "inherited-must-be-replaced")

	for _, line := range strings.Split(got, "\n") {
		if v, ok := strings.CutPrefix(line, "SECRET_KEY="); ok {
			assert.Len(t, v, 36)
		}
		if v, ok := strings.CutPrefix(line, "cwd="); ok && runtime.GOOS != "darwin" {
			assert.Equal(t, cfg.WorkingDirectory, v)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	env := mergeEnv([]string{"PATH=/bin", "PORT=1", "EMPTY"}, map[string]string{"PORT": "1105", "B": "2", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "EMPTY", "A=1", "B=2", "PORT=1105"}, env)
}
