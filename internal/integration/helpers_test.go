package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/scalar-upgrader/internal/config"
	"github.com/oshokin/scalar-upgrader/internal/platform"
	"github.com/oshokin/scalar-upgrader/internal/service/packager"
)

// staticProcesses reports a fixed process list.
type staticProcesses []platform.Process

// Processes returns the configured list.
func (p staticProcesses) Processes(context.Context) ([]platform.Process, error) {
	return p, nil
}

// installCall is one recorded installer launch.
type installCall struct {
	path string
	args []string
}

// recordingExecutor records launches and answers with a fixed exit code.
type recordingExecutor struct {
	mu       sync.Mutex
	calls    []installCall
	exitCode int
}

// Run records the launch.
func (e *recordingExecutor) Run(_ context.Context, path string, args []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, installCall{path: path, args: args})

	return e.exitCode, nil
}

// Calls returns the recorded launches.
func (e *recordingExecutor) Calls() []installCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]installCall(nil), e.calls...)
}

// environment is a published update folder served over HTTP and an upgrader configuration.
type environment struct {
	// cfg is the saved upgrader configuration.
	cfg *config.Config
	// cfgPath is where cfg is saved.
	cfgPath string
	// folder is the published update folder.
	folder string
	// publicKey verifies the published installers.
	publicKey string
	// executor records installer launches.
	executor *recordingExecutor
	// processes is the running process list seen by the upgrader.
	processes staticProcesses
}

// newEnvironment publishes release 1.2.0 with Git and Scalar installers and configures the upgrader for it.
func newEnvironment(t *testing.T, mutate func(cfg *config.Config)) *environment {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()
	folder := filepath.Join(dir, "updates")
	keyPath := filepath.Join(dir, "signer.key")

	publicKey, err := packager.Keygen(ctx, keyPath)
	require.NoError(t, err)

	installers := filepath.Join(dir, "build")
	require.NoError(t, os.MkdirAll(installers, 0o750))

	files := []string{
		filepath.Join(installers, "Git-2.40.0-64-bit.exe"),
		filepath.Join(installers, "Scalar-1.2.0.exe"),
	}

	for _, path := range files {
		require.NoError(t, os.WriteFile(path, []byte("installer "+filepath.Base(path)), 0o600))
	}

	require.NoError(t, packager.Run(ctx, &packager.Options{
		Folder:  folder,
		Version: "1.2.0",
		Ring:    "slow",
		KeyPath: keyPath,
		Files:   files,
	}))

	server := httptest.NewServer(http.FileServer(http.Dir(folder)))
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Ring: "slow",
		Source: config.Source{
			Type: config.SourceManifest,
			URL:  server.URL,
		},
		Assets: []config.Asset{
			{Name: "Git", Pattern: `^Git-.*-64-bit\.exe$`, Signer: "scalar"},
			{Name: "Scalar", Pattern: `^Scalar-.*\.exe$`, Signer: "scalar"},
		},
		TrustedSigners:    map[string]string{"scalar": publicKey},
		DownloadDirectory: filepath.Join(dir, "downloads"),
		LogDirectory:      filepath.Join(dir, "logs"),
		StateFile:         filepath.Join(dir, "state", config.DefaultStateFilename),
		LockFile:          filepath.Join(dir, "state", config.DefaultLockFilename),
		InstalledVersion:  "1.0.0",
		Timeout:           5 * time.Second,
	}

	if mutate != nil {
		mutate(cfg)
	}

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, cfg))

	return &environment{
		cfg:       cfg,
		cfgPath:   cfgPath,
		folder:    folder,
		publicKey: publicKey,
		executor:  new(recordingExecutor),
	}
}

// capabilities returns the platform services of the environment with real file operations.
func (e *environment) capabilities() *platform.Capabilities {
	return &platform.Capabilities{
		Processes: e.processes,
		Executor:  e.executor,
		Files:     new(platform.LocalFileSystem),
	}
}

// downloadedFiles lists what is left in the download directory, including run directories.
func (e *environment) downloadedFiles(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(e.cfg.DownloadDirectory)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}
