// Package toolchain drives the external texture container tools.
//
// texassemble packs the ordered mip levels into one uncompressed container and
// texconv transcodes that container into the final block-compressed output.
// Both binaries are resolved from a tools directory at startup.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// Default tool names and formats.
const (
	DefaultAssembleTool    = "texassemble"
	DefaultTranscodeTool   = "texconv"
	DefaultAssembleFormat  = "R8G8B8A8_UNORM"
	DefaultTranscodeFormat = "BC3_UNORM"
	DefaultOutputFileType  = "DDS"
)

// ErrToolMissing is returned when a required binary is not present.
var ErrToolMissing = errors.New("tool not found")

// BinaryName returns the platform-specific executable name for a tool.
func BinaryName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}

	return name
}

// Resolve returns the path of tool name inside dir.
func Resolve(dir, name string) (string, error) {
	path, err := filepath.Abs(filepath.Join(dir, BinaryName(name)))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}

	info, statErr := os.Stat(path)
	if statErr != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s (looked for %s)", ErrToolMissing, name, path)
	}

	return path, nil
}

// Options selects the tools and formats.
type Options struct {
	Dir             string
	AssembleTool    string
	TranscodeTool   string
	AssembleFormat  string
	TranscodeFormat string
	OutputFileType  string
}

// DefaultOptions returns the stock tool names and formats rooted at dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:             dir,
		AssembleTool:    DefaultAssembleTool,
		TranscodeTool:   DefaultTranscodeTool,
		AssembleFormat:  DefaultAssembleFormat,
		TranscodeFormat: DefaultTranscodeFormat,
		OutputFileType:  DefaultOutputFileType,
	}
}

// Toolchain runs the resolved tools through a Runner.
type Toolchain struct {
	assemble  string
	transcode string
	opts      Options
	runner    Runner
	logger    *slog.Logger
}

// New resolves both tools. Every missing tool is reported.
func New(opts Options, runner Runner, logger *slog.Logger) (*Toolchain, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if runner == nil {
		runner = &ExecRunner{Logger: logger}
	}

	assemble, assembleErr := Resolve(opts.Dir, opts.AssembleTool)
	transcode, transcodeErr := Resolve(opts.Dir, opts.TranscodeTool)

	err := errors.Join(assembleErr, transcodeErr)
	if err != nil {
		return nil, err
	}

	return &Toolchain{
		assemble:  assemble,
		transcode: transcode,
		opts:      opts,
		runner:    runner,
		logger:    logger,
	}, nil
}

// Assemble packs inputs, in mip order, into the container at out.
func (tc *Toolchain) Assemble(ctx context.Context, inputs []string, out string) error {
	args := make([]string, 0, len(inputs)+6)
	args = append(args, "from-mips", "-o", out, "-f", tc.opts.AssembleFormat, "-y")
	args = append(args, inputs...)

	tc.logger.InfoContext(ctx, "toolchain: assembling container", "levels", len(inputs), "format", tc.opts.AssembleFormat)

	err := tc.runner.Run(ctx, tc.assemble, args...)
	if err != nil {
		return fmt.Errorf("assemble %s: %w", out, err)
	}

	return nil
}

// Transcode converts container into outDir. The output keeps the container's base name.
func (tc *Toolchain) Transcode(ctx context.Context, container, outDir string) error {
	args := []string{"-f", tc.opts.TranscodeFormat, "-y", "-ft", tc.opts.OutputFileType, "-o", outDir, container}

	tc.logger.InfoContext(ctx, "toolchain: transcoding container", "format", tc.opts.TranscodeFormat, "out", outDir)

	err := tc.runner.Run(ctx, tc.transcode, args...)
	if err != nil {
		return fmt.Errorf("transcode %s: %w", container, err)
	}

	return nil
}
