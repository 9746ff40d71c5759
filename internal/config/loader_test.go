package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file
func writeConfigFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// withConfigPaths points the layered loader at files inside tempDir.
func withConfigPaths(t *testing.T, userPath, projectPath string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()
	withConfigPaths(t,
		filepath.Join(tempDir, "non-existent-user-config.yaml"),
		filepath.Join(tempDir, "non-existent-project-config.yaml"))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), loaded)
	assert.Equal(t, ExposureLocalOnly, loaded.NetworkExposure)
	assert.Equal(t, DefaultPort, loaded.Port)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	userPath := filepath.Join(tempDir, "home", userConfigDir, configFileName)
	projectPath := filepath.Join(tempDir, "project", projectConfigDir, configFileName)
	withConfigPaths(t, userPath, projectPath)

	writeConfigFile(t, userPath, `
workingDirectory: /srv/backend
port: 2000
networkExposure: public
timeouts:
  startup: 30s
`)
	writeConfigFile(t, projectPath, `
port: 3000
autostart: true
timeouts:
  shutdownGrace: 2s
`)

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/backend", loaded.WorkingDirectory)
	assert.Equal(t, 3000, loaded.Port)
	assert.Equal(t, ExposurePublic, loaded.NetworkExposure)
	assert.True(t, loaded.ShouldAutostart())
	assert.Equal(t, 30*time.Second, loaded.Timeouts.Startup)
	assert.Equal(t, 2*time.Second, loaded.Timeouts.ShutdownGrace)
	assert.Equal(t, 15*time.Second, loaded.Timeouts.FallbackStartup, "unset timeouts keep defaults")
}

func TestLoadConfig_ProjectDisablesUserAutostart(t *testing.T) {
	tempDir := t.TempDir()
	userPath := filepath.Join(tempDir, "home", userConfigDir, configFileName)
	projectPath := filepath.Join(tempDir, "project", projectConfigDir, configFileName)
	withConfigPaths(t, userPath, projectPath)

	writeConfigFile(t, userPath, "workingDirectory: /srv/backend\nautostart: true\n")
	writeConfigFile(t, projectPath, "autostart: false\n")

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, loaded.ShouldAutostart())

	writeConfigFile(t, projectPath, "port: 3000\n")
	loaded, err = LoadConfig()
	require.NoError(t, err)
	assert.True(t, loaded.ShouldAutostart(), "unset switch keeps the user value")
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	tempDir := t.TempDir()
	userPath := filepath.Join(tempDir, "user.yaml")
	withConfigPaths(t, userPath, filepath.Join(tempDir, "missing.yaml"))

	writeConfigFile(t, userPath, "port: [not, a, number]")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading user config")
}

func TestLoadConfigFromPath_ResolvesRelativeDirectories(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "panel.yaml")
	writeConfigFile(t, path, `
workingDirectory: backend
dataDirectory: data
networkExposure: LOCAL-NETWORK
worker:
  installDependencies: false
`)

	loaded, err := LoadConfigFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "backend"), loaded.WorkingDirectory)
	assert.Equal(t, filepath.Join(tempDir, "data"), loaded.DataDirectory)
	assert.Equal(t, ExposureLocalNetwork, loaded.NetworkExposure)
	assert.False(t, loaded.Worker.ShouldInstallDependencies())
	assert.Equal(t, "uvicorn", loaded.Worker.ModuleRunner)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SupervisorConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *SupervisorConfig) {}},
		{name: "unknown exposure", mutate: func(c *SupervisorConfig) { c.NetworkExposure = "lan" }, wantErr: "networkExposure"},
		{name: "port out of range", mutate: func(c *SupervisorConfig) { c.Port = 70000 }, wantErr: "port 70000"},
		{name: "missing working directory", mutate: func(c *SupervisorConfig) { c.WorkingDirectory = "" }, wantErr: "workingDirectory"},
		{name: "zero timeout", mutate: func(c *SupervisorConfig) { c.Timeouts.ShutdownGrace = 0 }, wantErr: "timeouts.shutdownGrace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaultConfig()
			tt.mutate(&c)
			err := Validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBindHostAndEnv(t *testing.T) {
	c := GetDefaultConfig()
	c.WorkingDirectory = "/opt/panel/backend"
	c.DataDirectory = "/opt/panel/data"

	assert.Equal(t, "127.0.0.1", c.BindHost())
	env := c.WorkerEnv("s3cret")
	assert.Equal(t, "false", env["NETWORK_ACCESS"])
	assert.Equal(t, "true", env["LOCALHOST_ONLY"])
	assert.Equal(t, "/opt/panel/backend", env["PYTHONPATH"])
	assert.Equal(t, "/opt/panel/data", env["MC_SERVERS_PATH"])
	assert.Equal(t, "s3cret", env["SECRET_KEY"])
	assert.Equal(t, "1105", env["PORT"])
	assert.Equal(t, "local-only", env["NETWORK_MODE"])

	for _, exposure := range []NetworkExposure{ExposureLocalNetwork, ExposurePublic} {
		c.NetworkExposure = exposure
		assert.Equal(t, "0.0.0.0", c.BindHost())
		assert.Equal(t, "http://127.0.0.1:1105/", c.ProbeURL())
		env := c.WorkerEnv("x")
		assert.Equal(t, "true", env["NETWORK_ACCESS"])
		assert.Equal(t, "false", env["LOCALHOST_ONLY"])
		assert.Equal(t, string(exposure), env["NETWORK_MODE"])
	}
}

func TestLayeredConfigPaths(t *testing.T) {
	tempDir := t.TempDir()
	origHome, origWd := osUserHomeDir, osGetwd
	t.Cleanup(func() {
		osUserHomeDir, osGetwd = origHome, origWd
	})
	osUserHomeDir = func() (string, error) { return filepath.Join(tempDir, "home"), nil }
	osGetwd = func() (string, error) { return filepath.Join(tempDir, "work"), nil }

	dir, err := GetUserConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempDir, "home", ".config", "panelctl"), dir)

	paths, err := LayeredConfigPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(tempDir, "work", ".panelctl", "config.yaml"),
	}, paths)
}
