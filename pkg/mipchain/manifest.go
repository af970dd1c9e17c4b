package mipchain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestName is the file written next to the output when manifests are enabled.
const ManifestName = "manifest.yaml"

// Manifest describes a produced chain.
type Manifest struct {
	Generator string          `yaml:"generator"`
	Version   string          `yaml:"version,omitempty"`
	Created   time.Time       `yaml:"created"`
	Output    string          `yaml:"output"`
	Levels    []ManifestLevel `yaml:"levels"`
}

// ManifestLevel is one level entry of a Manifest.
type ManifestLevel struct {
	Index  int    `yaml:"index"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Method Method `yaml:"method"`
	Source string `yaml:"source"`
}

// NewManifest builds the manifest for chain.
func NewManifest(chain *Chain, version string, created time.Time) Manifest {
	m := Manifest{
		Generator: "mipforge",
		Version:   version,
		Created:   created.UTC(),
		Output:    filepath.Base(chain.Output),
		Levels:    make([]ManifestLevel, 0, len(chain.Levels)),
	}

	for _, l := range chain.Levels {
		m.Levels = append(m.Levels, ManifestLevel{
			Index:  l.Index,
			Width:  l.Size.Width,
			Height: l.Size.Height,
			Method: l.Method,
			Source: filepath.Base(l.Source),
		})
	}

	return m
}

// WriteManifest writes m as YAML into dir and returns the file path.
func WriteManifest(dir string, m Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName)

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest

	err = yaml.Unmarshal(data, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	return m, nil
}
