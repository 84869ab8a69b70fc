package upgrader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/scalar-upgrader/internal/config"
	"github.com/oshokin/scalar-upgrader/internal/console"
	"github.com/oshokin/scalar-upgrader/internal/orchestrator"
	"github.com/oshokin/scalar-upgrader/internal/repository/upgradestate"
)

// Status prints the release recorded by the last availability check.
func Status(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	reporter := opts.Reporter
	if reporter == nil {
		reporter = console.NewStd()
	}

	record, err := upgradestate.NewFileRepository(cfg.StateFile).Load(ctx)
	if errors.Is(err, upgradestate.ErrNotFound) {
		reporter.Output("No upgrade is recorded as available.")

		return nil
	}

	if err != nil {
		return fmt.Errorf("read upgrade state: %w", err)
	}

	reporter.Output(fmt.Sprintf("Version %s is available in the %s ring (checked at %s).",
		record.Version, record.Ring.DisplayName(), record.CheckedAt.Local().Format(time.DateTime)))

	rerunCommand := cfg.RerunCommand
	if rerunCommand == "" {
		rerunCommand = orchestrator.DefaultRerunCommand
	}

	reporter.Output(fmt.Sprintf("Run %s to install it.", rerunCommand))

	return nil
}
