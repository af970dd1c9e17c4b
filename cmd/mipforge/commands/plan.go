package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mipforge/internal/report"
	"github.com/Sumatoshi-tech/mipforge/pkg/config"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
)

// PlanCommand prints the tile plan a build would use for one image size.
type PlanCommand struct {
	configPath string
	available  string
	width      int
	height     int

	memory resource.MemoryProbe
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	return newPlanCommandWithDeps(nil)
}

func newPlanCommandWithDeps(memory resource.MemoryProbe) *cobra.Command {
	pc := &PlanCommand{memory: memory}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the tile plan for an image size",
		Long: `Show the tiles a build would cut an image of the given size into.

The chunk size follows available memory; pass --available to plan for a
machine other than this one.`,
		Args: cobra.NoArgs,
		RunE: pc.run,
	}

	cmd.Flags().StringVarP(&pc.configPath, "config", "c", "", "Config file (default: mipforge.yaml search path)")
	cmd.Flags().IntVar(&pc.width, "width", 0, "Source width in pixels")
	cmd.Flags().IntVar(&pc.height, "height", 0, "Source height in pixels")
	cmd.Flags().StringVar(&pc.available, "available", "", "Available memory, e.g. 8GiB (default: measured)")

	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")

	return cmd
}

func (pc *PlanCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(pc.configPath)
	if err != nil {
		return err
	}

	available, err := pc.availableMemory(cmd, cfg)
	if err != nil {
		return err
	}

	plan, err := cfg.Scheduler().Plan(pc.width, pc.height, available)
	if err != nil {
		return err
	}

	report.WritePlan(cmd.OutOrStdout(), plan, available)

	return nil
}

func (pc *PlanCommand) availableMemory(cmd *cobra.Command, cfg *config.Config) (uint64, error) {
	if cmd.Flags().Changed("available") {
		n, err := humanize.ParseBytes(pc.available)
		if err != nil {
			return 0, fmt.Errorf("%w: --available %q", config.ErrInvalidSize, pc.available)
		}

		return n, nil
	}

	monitor := resource.NewMonitor(cfg.Limits(os.TempDir()), pc.memory, nil, nil)

	return monitor.AvailableMemory(), nil
}
