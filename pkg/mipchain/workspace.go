package mipchain

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const (
	workspacePrefix  = "mipforge-"
	artifactPrefix   = "temp_p"
	artifactPattern  = "temp_*.png"
	containerPattern = "*.dds"
)

// Workspace is a private per-run directory holding temporary artifacts.
type Workspace struct {
	dir    string
	logger *slog.Logger
}

// NewWorkspace creates mipforge-<uuid> under root. An empty root selects the
// system temp directory. Workspaces left under root by interrupted runs are
// removed first; one build runs per temp root at a time.
func NewWorkspace(root string, logger *slog.Logger) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	err := SweepStale(root, logger)
	if err != nil {
		logger.Warn("mipchain: stale workspace cleanup incomplete", "root", root, "error", err)
	}

	dir := filepath.Join(root, workspacePrefix+uuid.NewString())

	err = os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Artifact returns the temporary path for the level at index.
func (w *Workspace) Artifact(index int) string {
	return filepath.Join(w.dir, artifactPrefix+strconv.Itoa(index)+".png")
}

// Container returns the path of the intermediate container.
func (w *Workspace) Container(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Sweep removes temporary artifacts and the workspace directory. It is safe
// to call more than once.
func (w *Workspace) Sweep() error {
	var errs []error

	removed := 0

	for _, pattern := range []string{artifactPattern, containerPattern} {
		matches, err := filepath.Glob(filepath.Join(w.dir, pattern))
		if err != nil {
			errs = append(errs, err)

			continue
		}

		for _, m := range matches {
			rmErr := os.Remove(m)
			if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				errs = append(errs, rmErr)

				continue
			}

			removed++
		}
	}

	err := os.RemoveAll(w.dir)
	if err != nil {
		errs = append(errs, err)
	}

	w.logger.Debug("mipchain: workspace swept", "dir", w.dir, "removed", removed)

	return errors.Join(errs...)
}

// SweepStale removes every mipforge-* workspace directory under root.
func SweepStale(root string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	matches, err := filepath.Glob(filepath.Join(root, workspacePrefix+"*"))
	if err != nil {
		return err
	}

	var errs []error

	for _, m := range matches {
		info, statErr := os.Lstat(m)
		if statErr != nil || !info.IsDir() {
			continue
		}

		rmErr := (&Workspace{dir: m, logger: logger}).Sweep()
		if rmErr != nil {
			errs = append(errs, rmErr)

			continue
		}

		logger.Info("mipchain: removed stale workspace", "dir", m)
	}

	return errors.Join(errs...)
}
