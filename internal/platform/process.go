package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/scalar-upgrader/internal/logger"
)

// SystemProcesses enumerates processes through the OS process table.
type SystemProcesses struct{}

// Processes returns every running process.
func (*SystemProcesses) Processes(_ context.Context) ([]Process, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	result := make([]Process, 0, len(processList))
	for _, process := range processList {
		result = append(result, Process{
			PID:        process.Pid(),
			Executable: process.Executable(),
		})
	}

	return result, nil
}

// CommandExecutor launches executables with os/exec.
type CommandExecutor struct{}

// Run starts the executable, waits for it and returns its exit code.
// A non-zero exit code is not an error, only a failure to launch is.
func (*CommandExecutor) Run(ctx context.Context, path string, args []string) (int, error) {
	logger.DebugKV(ctx, "Starting process", "path", path, "args", args)

	cmd := exec.CommandContext(ctx, path, args...)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("run %s: %w", path, err)
}
