package installer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

var errTestLaunch = errors.New("test launch error")

// recordingExecutor records launches and answers with a fixed result.
type recordingExecutor struct {
	// calls holds every launched invocation.
	calls []upgrade.InstallerInvocation
	// exitCode is returned by Run.
	exitCode int
	// err is returned by Run.
	err error
}

// Run records the launch.
func (e *recordingExecutor) Run(_ context.Context, path string, args []string) (int, error) {
	e.calls = append(e.calls, upgrade.InstallerInvocation{Path: path, Args: args})

	return e.exitCode, e.err
}

// fixedClock returns a constant time.
func fixedClock() time.Time {
	return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
}

// asset builds a downloaded asset for name.
func asset(name string) upgrade.DownloadedAsset {
	return upgrade.DownloadedAsset{
		Descriptor: upgrade.AssetDescriptor{Name: name},
		Path:       filepath.Join("downloads", name+".exe"),
	}
}

// TestRunner_Invocation verifies identical fixed flags across assets and a per-asset log path.
func TestRunner_Invocation(t *testing.T) {
	t.Parallel()

	runner := NewRunner(new(recordingExecutor), "logs", WithClock(fixedClock))

	git := runner.Invocation(asset("Git"))
	scalar := runner.Invocation(asset("Scalar"))

	require.Equal(t, filepath.Join("downloads", "Git.exe"), git.Path)
	require.Equal(t, []string{
		"/VERYSILENT", "/CLOSEAPPLICATIONS", "/SUPPRESSMSGBOXES", "/NORESTART",
		"/Log=" + filepath.Join("logs", "Git_20261015_093000.log"),
	}, git.Args)

	require.Equal(t, git.Args[:4], scalar.Args[:4])
	require.Equal(t, "/Log="+filepath.Join("logs", "Scalar_20261015_093000.log"), scalar.Args[4])
}

// TestRunner_Install covers success, non-zero exit, launch failure and dry run.
func TestRunner_Install(t *testing.T) {
	t.Parallel()

	executor := new(recordingExecutor)
	code, err := NewRunner(executor, "logs").Install(context.Background(), asset("Git"))
	require.NoError(t, err)
	require.Zero(t, code)
	require.Len(t, executor.calls, 1)

	executor = &recordingExecutor{exitCode: 2}
	code, err = NewRunner(executor, "logs").Install(context.Background(), asset("Git"))
	require.ErrorIs(t, err, errNonZeroExit)
	require.Equal(t, 2, code)

	var tagged *upgrade.Error

	require.ErrorAs(t, err, &tagged)
	require.Equal(t, upgrade.KindInstall, tagged.Kind)
	require.Equal(t, "Git installation failed", tagged.Message)

	executor = &recordingExecutor{exitCode: -1, err: errTestLaunch}
	_, err = NewRunner(executor, "logs").Install(context.Background(), asset("Scalar"))
	require.ErrorIs(t, err, errTestLaunch)
	require.ErrorAs(t, err, &tagged)
	require.Equal(t, "Scalar installation failed", tagged.Message)

	// Dry run never launches anything.
	executor = &recordingExecutor{err: errTestLaunch}
	runner := NewRunner(executor, "logs", WithDryRun(true))
	require.True(t, runner.DryRun())

	code, err = runner.Install(context.Background(), asset("Scalar"))
	require.NoError(t, err)
	require.Zero(t, code)
	require.Empty(t, executor.calls)
}
