package prerequisite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/platform"
)

// DefaultBlockingProcesses are the executables holding files an installer replaces.
//
//nolint:gochecknoglobals // Read-only default list.
var DefaultBlockingProcesses = []string{"git", "gitk", "scalar", "ssh-agent", "wish"}

// Checker reports running processes that match a block-list.
type Checker struct {
	// processes enumerates the process table.
	processes platform.ProcessQuery
	// blockList holds normalized executable names.
	blockList map[string]struct{}
	// selfPID is excluded so the upgrader never blocks itself.
	selfPID int
}

// NewChecker creates a checker over the given block-list.
// An empty list falls back to DefaultBlockingProcesses.
func NewChecker(processes platform.ProcessQuery, blocking []string) *Checker {
	if len(blocking) == 0 {
		blocking = DefaultBlockingProcesses
	}

	blockList := make(map[string]struct{}, len(blocking))
	for _, name := range blocking {
		blockList[normalizeName(name)] = struct{}{}
	}

	return &Checker{
		processes: processes,
		blockList: blockList,
		selfPID:   os.Getpid(),
	}
}

// CheckBlockingProcesses returns the sorted, de-duplicated names of running
// processes on the block-list. An empty result means installation may proceed.
func (c *Checker) CheckBlockingProcesses(ctx context.Context) ([]string, error) {
	processList, err := c.processes.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	var blocking []string

	for _, process := range processList {
		if process.PID == c.selfPID {
			continue
		}

		name := normalizeName(process.Executable)
		if _, found := c.blockList[name]; !found {
			continue
		}

		logger.DebugKV(ctx, "Found blocking process", "name", name, "pid", process.PID)

		blocking = append(blocking, name)
	}

	slices.Sort(blocking)

	return slices.Compact(blocking), nil
}

// normalizeName lowercases the executable name and strips directories and the Windows extension.
func normalizeName(name string) string {
	name = strings.ToLower(filepath.Base(strings.TrimSpace(name)))

	return strings.TrimSuffix(name, ".exe")
}
