// Package config provides configuration loading and validation for mipforge.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/mipforge/pkg/observability"
	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/tiling"
	"github.com/Sumatoshi-tech/mipforge/pkg/toolchain"
)

// Sentinel validation errors.
var (
	ErrInvalidSize      = errors.New("invalid byte size")
	ErrInvalidPressure  = errors.New("pressure percent must be in (0, 100]")
	ErrInvalidRetained  = errors.New("retained tiles must be positive")
	ErrInvalidChunk     = errors.New("invalid chunk constraints")
	ErrInvalidFilter    = errors.New("invalid resampling filter")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
	ErrMissingToolName  = errors.New("tool name must not be empty")
)

const (
	configName = "mipforge"
	envPrefix  = "MIPFORGE"

	logFormatText = "text"
	logFormatJSON = "json"
)

// Config holds all configuration for a mipforge run. It is treated as
// immutable once loaded.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Resources ResourcesConfig `mapstructure:"resources"`
	Tiling    TilingConfig    `mapstructure:"tiling"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PathsConfig holds directory locations. An empty Temp selects the system
// temp directory; an empty Tools selects the tools directory next to the binary.
type PathsConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	Temp   string `mapstructure:"temp"`
	Tools  string `mapstructure:"tools"`
}

// ResourcesConfig holds the resource floors and the pressure policy.
type ResourcesConfig struct {
	MinAvailableMemory string  `mapstructure:"min_available_memory"`
	MinFreeDisk        string  `mapstructure:"min_free_disk"`
	DiskPath           string  `mapstructure:"disk_path"`
	PressurePercent    float64 `mapstructure:"pressure_percent"`
	RetainedTiles      int     `mapstructure:"retained_tiles"`
}

// TilingConfig holds the chunk constraints and the resampling filter.
type TilingConfig struct {
	Filter    string `mapstructure:"filter"`
	MinChunk  int    `mapstructure:"min_chunk"`
	MaxChunk  int    `mapstructure:"max_chunk"`
	ChunkStep int    `mapstructure:"chunk_step"`
}

// ToolsConfig selects the external tools and their formats.
type ToolsConfig struct {
	Assemble        string `mapstructure:"assemble"`
	Transcode       string `mapstructure:"transcode"`
	AssembleFormat  string `mapstructure:"assemble_format"`
	TranscodeFormat string `mapstructure:"transcode_format"`
	OutputFormat    string `mapstructure:"output_format"`
	OutputName      string `mapstructure:"output_name"`
}

// OutputConfig holds output options.
type OutputConfig struct {
	Manifest bool `mapstructure:"manifest"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds exporter settings. Empty values disable the exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches for mipforge.yaml in the working directory,
// ./config and $HOME/.config/mipforge.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/mipforge")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("paths.input", DefaultInputDir)
	viperCfg.SetDefault("paths.output", DefaultOutputDir)
	viperCfg.SetDefault("paths.temp", DefaultTempDir)
	viperCfg.SetDefault("paths.tools", DefaultToolsDir)

	viperCfg.SetDefault("resources.min_available_memory", DefaultMinAvailableMemory)
	viperCfg.SetDefault("resources.min_free_disk", DefaultMinFreeDisk)
	viperCfg.SetDefault("resources.disk_path", "")
	viperCfg.SetDefault("resources.pressure_percent", DefaultPressurePercent)
	viperCfg.SetDefault("resources.retained_tiles", DefaultRetainedTiles)

	viperCfg.SetDefault("tiling.filter", DefaultFilter)
	viperCfg.SetDefault("tiling.min_chunk", DefaultMinChunk)
	viperCfg.SetDefault("tiling.max_chunk", DefaultMaxChunk)
	viperCfg.SetDefault("tiling.chunk_step", DefaultChunkStep)

	viperCfg.SetDefault("tools.assemble", DefaultAssembleTool)
	viperCfg.SetDefault("tools.transcode", DefaultTranscodeTool)
	viperCfg.SetDefault("tools.assemble_format", DefaultAssembleFormat)
	viperCfg.SetDefault("tools.transcode_format", DefaultTranscodeFormat)
	viperCfg.SetDefault("tools.output_format", DefaultOutputFormat)
	viperCfg.SetDefault("tools.output_name", DefaultOutputName)

	viperCfg.SetDefault("output.manifest", false)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	for _, size := range []string{c.Resources.MinAvailableMemory, c.Resources.MinFreeDisk} {
		_, err := humanize.ParseBytes(size)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSize, size)
		}
	}

	if c.Resources.PressurePercent <= 0 || c.Resources.PressurePercent > maxPressurePercent {
		return fmt.Errorf("%w: %g", ErrInvalidPressure, c.Resources.PressurePercent)
	}

	if c.Resources.RetainedTiles <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetained, c.Resources.RetainedTiles)
	}

	err := c.Scheduler().Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}

	_, err = resample.ParseFilter(c.Tiling.Filter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	if c.Tools.Assemble == "" || c.Tools.Transcode == "" || c.Tools.OutputName == "" {
		return ErrMissingToolName
	}

	switch strings.ToLower(c.Logging.Format) {
	case logFormatText, logFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// Limits returns the resource floors. DiskPath falls back to fallbackDisk.
// Sizes are expected to be validated.
func (c *Config) Limits(fallbackDisk string) resource.Limits {
	memFloor, err := humanize.ParseBytes(c.Resources.MinAvailableMemory)
	if err != nil {
		memFloor = resource.DefaultMinAvailableMemory
	}

	diskFloor, err := humanize.ParseBytes(c.Resources.MinFreeDisk)
	if err != nil {
		diskFloor = resource.DefaultMinFreeDisk
	}

	diskPath := c.Resources.DiskPath
	if diskPath == "" {
		diskPath = fallbackDisk
	}

	return resource.Limits{
		MinAvailableMemory: memFloor,
		MinFreeDisk:        diskFloor,
		PressurePercent:    c.Resources.PressurePercent,
		DiskPath:           diskPath,
	}
}

// Scheduler returns the tile scheduler constraints.
func (c *Config) Scheduler() tiling.Scheduler {
	return tiling.Scheduler{
		MinChunk: c.Tiling.MinChunk,
		MaxChunk: c.Tiling.MaxChunk,
		Step:     c.Tiling.ChunkStep,
	}
}

// Filter returns the resampling filter, DefaultFilter when invalid.
func (c *Config) Filter() resample.Filter {
	f, err := resample.ParseFilter(c.Tiling.Filter)
	if err != nil {
		return resample.DefaultFilter
	}

	return f
}

// ToolOptions returns the toolchain options rooted at toolsDir.
func (c *Config) ToolOptions(toolsDir string) toolchain.Options {
	return toolchain.Options{
		Dir:             toolsDir,
		AssembleTool:    c.Tools.Assemble,
		TranscodeTool:   c.Tools.Transcode,
		AssembleFormat:  c.Tools.AssembleFormat,
		TranscodeFormat: c.Tools.TranscodeFormat,
		OutputFileType:  c.Tools.OutputFormat,
	}
}

// Observability returns the telemetry and logging settings.
func (c *Config) Observability(version string) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.Prometheus = c.Telemetry.MetricsAddr != ""
	obs.LogLevel = observability.ParseLevel(c.Logging.Level)
	obs.LogJSON = strings.EqualFold(c.Logging.Format, logFormatJSON)

	return obs
}
