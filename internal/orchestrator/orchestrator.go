package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/oshokin/scalar-upgrader/internal/console"
	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
)

const (
	// DefaultRerunCommand is the command shown when the run has to be repeated.
	DefaultRerunCommand = "`scalar upgrade --confirm`"

	// blockingProcessesMessage is reported when conflicting processes are running.
	blockingProcessesMessage = "Blocking processes are running."

	// enumerationFailedMessage is reported when running processes cannot be listed.
	enumerationFailedMessage = "Unable to determine running processes."

	// completedMessage ends every successful installation.
	completedMessage = "Upgrade completed successfully."

	// directoryCleanupMessage is reported when the download directory cannot be removed.
	directoryCleanupMessage = "Error deleting download directory."

	// errorPrefix precedes fatal messages on the output channel.
	errorPrefix = "ERROR: "
)

// errInstallerExitCode is returned when an installer exits with a non-zero code.
var errInstallerExitCode = errors.New("installer exited with non-zero code")

// Orchestrator runs one upgrade. It is not reusable across runs.
type Orchestrator struct {
	components Components
	settings   Settings
	reporter   console.Reporter

	// mu protects the fields below, which are read by State and friends.
	mu            sync.Mutex
	state         upgrade.State
	transitions   []upgrade.State
	failure       *upgrade.Error
	cleanupErrors []*upgrade.Error
}

// New creates an orchestrator in the Idle state.
func New(components Components, settings Settings, reporter console.Reporter) *Orchestrator {
	if settings.RerunCommand == "" {
		settings.RerunCommand = DefaultRerunCommand
	}

	return &Orchestrator{
		components:  components,
		settings:    settings,
		reporter:    reporter,
		state:       upgrade.StateIdle,
		transitions: []upgrade.State{upgrade.StateIdle},
	}
}

// State returns the current state.
func (o *Orchestrator) State() upgrade.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Transitions returns every state the run went through, starting with Idle.
func (o *Orchestrator) Transitions() []upgrade.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Clone(o.transitions)
}

// Failure returns the fatal error that ended the run, nil otherwise.
func (o *Orchestrator) Failure() *upgrade.Error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.failure
}

// CleanupErrors returns the non-fatal cleanup failures of the run.
func (o *Orchestrator) CleanupErrors() []*upgrade.Error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Clone(o.cleanupErrors)
}

// Execute runs the whole pipeline and returns the process return code.
func (o *Orchestrator) Execute(ctx context.Context) upgrade.ReturnCode {
	ctx = logger.WithName(ctx, "orchestrator")

	if !o.start(ctx) {
		return upgrade.ReturnCodeGenericError
	}

	if !o.checkPrerequisites(ctx) {
		return upgrade.ReturnCodeGenericError
	}

	candidate, ok := o.checkRemote(ctx)
	if !ok {
		return upgrade.ReturnCodeGenericError
	}

	if candidate == nil {
		o.transition(ctx, upgrade.StateNoUpgradeAvailable)
		o.transition(ctx, upgrade.StateCompleted)

		return upgrade.ReturnCodeSuccess
	}

	directory, downloaded, failure := o.install(ctx, candidate)

	if failure != nil {
		o.fail(ctx, failure)
	}

	if directory != "" {
		o.transition(ctx, upgrade.StateCleaningUp)
		o.cleanup(ctx, directory, downloaded)
	}

	if failure != nil {
		o.transition(ctx, upgrade.StateFailed)

		return upgrade.ReturnCodeGenericError
	}

	o.reporter.Output(completedMessage)
	o.transition(ctx, upgrade.StateCompleted)

	return upgrade.ReturnCodeSuccess
}

// Check only looks for a newer release and reports it, nothing is downloaded.
func (o *Orchestrator) Check(ctx context.Context) upgrade.ReturnCode {
	ctx = logger.WithName(ctx, "orchestrator")

	if !o.start(ctx) {
		return upgrade.ReturnCodeGenericError
	}

	candidate, ok := o.checkRemote(ctx)
	if !ok {
		return upgrade.ReturnCodeGenericError
	}

	if candidate == nil {
		o.transition(ctx, upgrade.StateNoUpgradeAvailable)
	} else {
		o.reporter.Output(fmt.Sprintf("Run %s to install it.", o.settings.RerunCommand))
	}

	o.transition(ctx, upgrade.StateCompleted)

	return upgrade.ReturnCodeSuccess
}

// start leaves Idle, refusing to run twice.
func (o *Orchestrator) start(ctx context.Context) bool {
	if o.State() != upgrade.StateIdle {
		logger.Error(ctx, "Orchestrator has already run")

		return false
	}

	return true
}

// checkPrerequisites aborts the run when blocking processes are running.
func (o *Orchestrator) checkPrerequisites(ctx context.Context) bool {
	o.transition(ctx, upgrade.StateCheckingPrerequisites)

	blocking, err := o.components.Prerequisites.CheckBlockingProcesses(ctx)
	if err != nil {
		o.failAndStop(ctx, upgrade.AsError(err, upgrade.KindPrerequisiteBlocked, "", enumerationFailedMessage))

		return false
	}

	if len(blocking) == 0 {
		return true
	}

	o.failAndStop(ctx, upgrade.NewError(upgrade.KindPrerequisiteBlocked, "", blockingProcessesMessage, nil))

	remediation := fmt.Sprintf("Run %s again after quitting these processes - %s",
		o.settings.RerunCommand, strings.Join(blocking, ", "))

	o.reporter.Output(remediation)
	o.reporter.Warning(remediation)

	return false
}

// checkRemote looks up the candidate release, nil means up to date.
func (o *Orchestrator) checkRemote(ctx context.Context) (*upgrade.ReleaseCandidate, bool) {
	o.transition(ctx, upgrade.StateCheckingRemote)

	ring := o.settings.Ring
	if ring == upgrade.RingNone {
		o.reporter.Output("Upgrades are disabled in the None ring, no upgrade check was performed.")

		return nil, true
	}

	candidate, err := o.components.Fetcher.GetUpgradeCandidate(ctx, o.settings.InstalledVersion, ring)
	if err != nil {
		o.failAndStop(ctx, upgrade.AsError(err, upgrade.KindRemoteFetch, "", "Error fetching release information"))

		return nil, false
	}

	o.record(ctx, candidate)

	if candidate == nil {
		o.reporter.Output(fmt.Sprintf("Great news, you're all caught up on upgrades in the %s ring!", ring.DisplayName()))

		return nil, true
	}

	o.reporter.Output(fmt.Sprintf("New version %s is available in the %s ring.",
		candidate.Version.String(), candidate.Ring.DisplayName()))

	return candidate, true
}

// install downloads, verifies and installs every asset in order. It returns
// the download directory of the run, empty when it was not created, the assets
// that reached the disk and the first fatal failure.
func (o *Orchestrator) install(
	ctx context.Context,
	candidate *upgrade.ReleaseCandidate,
) (string, []upgrade.DownloadedAsset, *upgrade.Error) {
	o.transition(ctx, upgrade.StateDownloading)

	directory, err := o.components.Downloader.PrepareDownloadDirectory(ctx)
	if err != nil {
		return "", nil, upgrade.AsError(err, upgrade.KindDownloadDirectory, "", "Error creating download directory")
	}

	downloaded := make([]upgrade.DownloadedAsset, 0, len(candidate.Assets))

	for _, descriptor := range candidate.Assets {
		asset, err := o.components.Downloader.Download(ctx, descriptor, directory)
		if err != nil {
			return directory, downloaded, upgrade.AsError(err, upgrade.KindAssetDownload, descriptor.Name,
				"Error downloading "+descriptor.Name)
		}

		downloaded = append(downloaded, asset)
	}

	o.transition(ctx, upgrade.StateVerifying)

	for _, asset := range downloaded {
		if err = o.components.Verifier.Verify(ctx, asset); err != nil {
			return directory, downloaded, upgrade.AsError(err, upgrade.KindSignature, asset.Name(),
				asset.Name()+" signature verification failed")
		}
	}

	o.transition(ctx, upgrade.StateInstalling)

	for _, asset := range downloaded {
		o.reporter.Output("Installing " + asset.Name())

		code, err := o.components.Installer.Install(ctx, asset)
		if err == nil && code != 0 {
			err = fmt.Errorf("%w: %d", errInstallerExitCode, code)
		}

		if err != nil {
			return directory, downloaded, upgrade.AsError(err, upgrade.KindInstall, asset.Name(),
				asset.Name()+" installation failed")
		}
	}

	return directory, downloaded, nil
}

// cleanup deletes every downloaded asset and then the download directory,
// collecting failures as diagnostics.
func (o *Orchestrator) cleanup(ctx context.Context, directory string, downloaded []upgrade.DownloadedAsset) {
	for _, asset := range downloaded {
		if err := o.components.Cleanup.Delete(ctx, asset); err != nil {
			o.cleanupFailed(ctx, upgrade.AsError(err, upgrade.KindCleanup, asset.Name(),
				fmt.Sprintf("Error deleting downloaded %s installer.", asset.Name())))
		}
	}

	if err := o.components.Cleanup.DeleteDirectory(ctx, directory); err != nil {
		o.cleanupFailed(ctx, upgrade.AsError(err, upgrade.KindCleanup, "", directoryCleanupMessage))
	}
}

// cleanupFailed reports a non-fatal cleanup failure.
func (o *Orchestrator) cleanupFailed(ctx context.Context, failure *upgrade.Error) {
	logger.WarnKV(ctx, "Cleanup failed", "asset", failure.Asset, "error", failure.Err)
	o.reporter.Error(failure.Message)

	o.mu.Lock()
	o.cleanupErrors = append(o.cleanupErrors, failure)
	o.mu.Unlock()
}

// record stores the lookup result, failures only reach the log.
func (o *Orchestrator) record(ctx context.Context, candidate *upgrade.ReleaseCandidate) {
	if o.components.Recorder == nil {
		return
	}

	if err := o.components.Recorder.Record(ctx, candidate); err != nil {
		logger.WarnKV(ctx, "Unable to record available release", "error", err)
	}
}

// fail reports a fatal error on the output and error channels.
func (o *Orchestrator) fail(ctx context.Context, failure *upgrade.Error) {
	logger.ErrorKV(ctx, "Upgrade stage failed",
		"kind", failure.Kind.String(), "asset", failure.Asset, "error", failure)

	o.reporter.Output(errorPrefix + failure.Message)
	o.reporter.Error(failure.Message)

	o.mu.Lock()
	o.failure = failure
	o.mu.Unlock()
}

// failAndStop reports a fatal error and enters Failed.
func (o *Orchestrator) failAndStop(ctx context.Context, failure *upgrade.Error) {
	o.fail(ctx, failure)
	o.transition(ctx, upgrade.StateFailed)
}

// transition moves the run to next.
func (o *Orchestrator) transition(ctx context.Context, next upgrade.State) {
	o.mu.Lock()
	previous := o.state
	o.state = next
	o.transitions = append(o.transitions, next)
	o.mu.Unlock()

	logger.DebugKV(ctx, "State changed", "from", previous.String(), "to", next.String())
}
