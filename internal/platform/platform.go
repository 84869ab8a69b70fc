package platform

import (
	"context"
)

// Process is a running process as seen by the process query.
type Process struct {
	// PID is the process identifier.
	PID int
	// Executable is the executable file name without directories.
	Executable string
}

// ProcessQuery lists processes currently running on the machine.
type ProcessQuery interface {
	Processes(ctx context.Context) ([]Process, error)
}

// ProcessExecutor runs an executable to completion and reports its exit status.
type ProcessExecutor interface {
	Run(ctx context.Context, path string, args []string) (int, error)
}

// FileSystem exposes the directory and file operations used by a run.
type FileSystem interface {
	CreateDirectory(path string) error
	CreateTempDirectory(parent, pattern string) (string, error)
	DeleteFile(path string) error
	DeleteDirectory(path string) error
}

// Capabilities is the set of platform services injected into the pipeline.
type Capabilities struct {
	// Processes enumerates running processes.
	Processes ProcessQuery
	// Executor launches installers.
	Executor ProcessExecutor
	// Files creates the per-run download directory and removes it with the installers.
	Files FileSystem
}

// OS returns capabilities backed by the current operating system.
func OS() Capabilities {
	return Capabilities{
		Processes: new(SystemProcesses),
		Executor:  new(CommandExecutor),
		Files:     new(LocalFileSystem),
	}
}
