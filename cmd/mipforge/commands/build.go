package commands

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mipforge/internal/report"
	"github.com/Sumatoshi-tech/mipforge/pkg/config"
	"github.com/Sumatoshi-tech/mipforge/pkg/mipchain"
	"github.com/Sumatoshi-tech/mipforge/pkg/observability"
	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/toolchain"
	"github.com/Sumatoshi-tech/mipforge/pkg/version"
)

const toolsDirName = "tools"

// reportedError marks an error whose fatal report was already printed.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// Reported reports whether err already had its diagnostic block printed.
func Reported(err error) bool {
	var re reportedError

	return errors.As(err, &re)
}

// BuildCommand holds the flags and collaborators of the build command.
type BuildCommand struct {
	configPath  string
	input       string
	output      string
	toolsDir    string
	tempDir     string
	filter      string
	logLevel    string
	metricsAddr string
	manifest    bool
	logJSON     bool
	silent      bool

	runner toolchain.Runner
	memory resource.MemoryProbe
	disk   resource.DiskProbe
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	return newBuildCommandWithDeps(nil, nil, nil)
}

func newBuildCommandWithDeps(runner toolchain.Runner, memory resource.MemoryProbe, disk resource.DiskProbe) *cobra.Command {
	bc := &BuildCommand{runner: runner, memory: memory, disk: disk}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a mipmap chain and transcode it",
		Long: `Build a mipmap chain from p0.png, p1.png, ... in the input directory.

Every level after p0 is downscaled to half of the previous level in
memory-bounded tiles, then the chain is packed with texassemble and
transcoded with texconv into the output directory.`,
		Args: cobra.NoArgs,
		RunE: bc.run,
	}

	cmd.Flags().StringVarP(&bc.configPath, "config", "c", "", "Config file (default: mipforge.yaml search path)")
	cmd.Flags().StringVarP(&bc.input, "input", "i", config.DefaultInputDir, "Directory holding p<N>.png levels")
	cmd.Flags().StringVarP(&bc.output, "output", "o", config.DefaultOutputDir, "Directory receiving the transcoded container")
	cmd.Flags().StringVar(&bc.toolsDir, "tools-dir", "", "Directory holding texassemble and texconv (default: <executable dir>/tools)")
	cmd.Flags().StringVar(&bc.tempDir, "temp-dir", "", "Root for the per-run workspace (default: system temp)")
	cmd.Flags().StringVar(&bc.filter, "filter", config.DefaultFilter, "Resampling filter: lanczos, catmull-rom, box")
	cmd.Flags().BoolVar(&bc.manifest, "manifest", false, "Write manifest.yaml next to the output")
	cmd.Flags().StringVar(&bc.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&bc.logJSON, "log-json", false, "Emit logs as JSON")
	cmd.Flags().StringVar(&bc.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address")
	cmd.Flags().BoolVar(&bc.silent, "silent", false, "Disable progress output")

	return cmd
}

func (bc *BuildCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(bc.configPath)
	if err != nil {
		return err
	}

	err = bc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	obsCfg := cfg.Observability(version.Version)
	obsCfg.LogWriter = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	logger := providers.Logger

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	monitor := resource.NewMonitor(cfg.Limits(cmp.Or(cfg.Paths.Temp, os.TempDir())), bc.memory, bc.disk, logger)

	err = bc.build(cmd, cfg, providers, monitor, logger)
	if err != nil {
		report.WriteFatal(cmd.ErrOrStderr(), err, report.Collect(monitor, cfg.Paths.Input))

		return reportedError{err}
	}

	return nil
}

// applyFlags overrides config values with flags the user set explicitly.
func (bc *BuildCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("input") {
		cfg.Paths.Input = bc.input
	}

	if flags.Changed("output") {
		cfg.Paths.Output = bc.output
	}

	if flags.Changed("tools-dir") {
		cfg.Paths.Tools = bc.toolsDir
	}

	if flags.Changed("temp-dir") {
		cfg.Paths.Temp = bc.tempDir
	}

	if flags.Changed("filter") {
		cfg.Tiling.Filter = bc.filter
	}

	if flags.Changed("manifest") {
		cfg.Output.Manifest = bc.manifest
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level = bc.logLevel
	}

	if flags.Changed("log-json") && bc.logJSON {
		cfg.Logging.Format = "json"
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = bc.metricsAddr
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	return nil
}

func (bc *BuildCommand) build(
	cmd *cobra.Command,
	cfg *config.Config,
	providers observability.Providers,
	monitor *resource.Monitor,
	logger *slog.Logger,
) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tools, err := toolchain.New(cfg.ToolOptions(cmp.Or(cfg.Paths.Tools, defaultToolsDir())), bc.runner, logger)
	if err != nil {
		return fmt.Errorf("%w: %w", mipchain.ErrMissingInput, err)
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter, monitor.AvailableMemory)
	if err != nil {
		return err
	}

	if cfg.Telemetry.MetricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(
			ctx, cfg.Telemetry.MetricsAddr, providers.MetricsHandler, logger, monitor.CheckResources)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close(context.Background())
			if closeErr != nil {
				logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()
	}

	out := cmd.OutOrStdout()
	progress := report.NewProgress(out, bc.silent)

	pipeline := mipchain.NewPipeline(mipchain.PipelineConfig{
		Planner:       cfg.Scheduler(),
		Resampler:     resample.New(cfg.Filter()),
		Monitor:       monitor,
		RetainedTiles: cfg.Resources.RetainedTiles,
		Metrics:       metrics,
		Logger:        logger,
		OnTile:        progress.Tile,
	})

	driver := mipchain.NewDriver(mipchain.DriverConfig{
		Monitor:    monitor,
		Pipeline:   pipeline,
		Assembler:  tools,
		TempRoot:   cfg.Paths.Temp,
		OutputName: cfg.Tools.OutputName,
		Manifest:   cfg.Output.Manifest,
		Version:    version.Version,
		OnStart:    progress.Start,
		OnLevel:    progress.Level,
		Tracer:     providers.Tracer,
		Metrics:    metrics,
		Logger:     logger,
	})

	chain, err := driver.Run(ctx, cfg.Paths.Input, cfg.Paths.Output)
	if err != nil {
		return err
	}

	report.WriteLevels(out, chain.Levels)
	report.Done(out, cfg.Paths.Output)

	return nil
}

// defaultToolsDir is the tools directory shipped next to the binary.
func defaultToolsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return toolsDirName
	}

	return filepath.Join(filepath.Dir(exe), toolsDirName)
}
