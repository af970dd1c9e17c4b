package mipchain

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
)

// minLevels is the shortest usable chain: p0 and p1.
const minLevels = 2

// ErrMissingInput is returned when the input directory, the source levels,
// or a required tool is absent.
var ErrMissingInput = errors.New("missing input")

// ErrDuplicateLevel is returned when two files map to the same level index (p1.png and p01.png).
var ErrDuplicateLevel = errors.New("duplicate source level")

var sourcePattern = regexp.MustCompile(`^p(\d+)\.png$`)

// Source is a discovered source level file.
type Source struct {
	Index int
	Path  string
}

// Discover lists the p<index>.png files in dir in numeric index order.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: input directory %s: %w", ErrMissingInput, dir, err)
	}

	sources := make([]Source, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		m := sourcePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		idx, convErr := strconv.Atoi(m[1])
		if convErr != nil {
			continue
		}

		sources = append(sources, Source{Index: idx, Path: filepath.Join(dir, entry.Name())})
	}

	slices.SortFunc(sources, func(a, b Source) int {
		return cmp.Or(cmp.Compare(a.Index, b.Index), cmp.Compare(a.Path, b.Path))
	})

	for i := 1; i < len(sources); i++ {
		if sources[i].Index == sources[i-1].Index {
			return nil, fmt.Errorf("%w: %d (%s, %s)",
				ErrDuplicateLevel, sources[i].Index, filepath.Base(sources[i-1].Path), filepath.Base(sources[i].Path))
		}
	}

	if len(sources) < minLevels {
		return nil, fmt.Errorf("%w: need at least p0.png and p1.png in %s, found %d", ErrMissingInput, dir, len(sources))
	}

	return sources, nil
}
