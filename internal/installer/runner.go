package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/platform"
)

const (
	// logFlag precedes the installer log path.
	logFlag = "/Log="

	// logTimestampLayout formats the log file timestamp.
	logTimestampLayout = "20060102_150405"
)

// errNonZeroExit is returned when an installer exits unsuccessfully.
var errNonZeroExit = errors.New("installer exited with non-zero code")

// SilentFlags run an installer unattended: no UI, close conflicting
// applications, no message boxes, no restart.
//
//nolint:gochecknoglobals // Read-only argument template.
var SilentFlags = []string{"/VERYSILENT", "/CLOSEAPPLICATIONS", "/SUPPRESSMSGBOXES", "/NORESTART"}

// Runner launches installers.
type Runner struct {
	// executor starts installer processes.
	executor platform.ProcessExecutor
	// logDirectory receives the installer logs.
	logDirectory string
	// dryRun suppresses execution.
	dryRun bool
	// now stamps log file names.
	now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the clock used to name log files.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithDryRun enables or disables dry-run mode.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// NewRunner creates a runner writing installer logs to logDirectory.
func NewRunner(executor platform.ProcessExecutor, logDirectory string, opts ...Option) *Runner {
	r := &Runner{
		executor:     executor,
		logDirectory: logDirectory,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DryRun reports whether installers are only simulated.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Invocation builds the command line for asset.
func (r *Runner) Invocation(asset upgrade.DownloadedAsset) upgrade.InstallerInvocation {
	logName := fmt.Sprintf("%s_%s.log", asset.Name(), r.now().Format(logTimestampLayout))

	args := slices.Clone(SilentFlags)
	args = append(args, logFlag+filepath.Join(r.logDirectory, logName))

	return upgrade.InstallerInvocation{
		Path: asset.Path,
		Args: args,
	}
}

// Install runs the installer of asset and returns its exit code.
// Failures are returned as *upgrade.Error of kind KindInstall naming the asset.
func (r *Runner) Install(ctx context.Context, asset upgrade.DownloadedAsset) (int, error) {
	invocation := r.Invocation(asset)

	if r.dryRun {
		logger.InfoKV(ctx, "Dry run, skipping installer", "asset", asset.Name(),
			"path", invocation.Path, "args", invocation.Args)

		return 0, nil
	}

	logger.InfoKV(ctx, "Running installer", "asset", asset.Name(), "path", invocation.Path, "args", invocation.Args)

	exitCode, err := r.executor.Run(ctx, invocation.Path, invocation.Args)
	if err == nil && exitCode != 0 {
		err = fmt.Errorf("%w: %d", errNonZeroExit, exitCode)
	}

	if err != nil {
		return exitCode, upgrade.NewError(upgrade.KindInstall, asset.Name(), asset.Name()+" installation failed", err)
	}

	return exitCode, nil
}
