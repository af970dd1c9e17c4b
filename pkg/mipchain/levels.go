package mipchain

import (
	"fmt"
	"image"
)

// Size is a width x height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// SizeOf returns the size of r.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: r.Dx(), Height: r.Dy()}
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Halve returns the next mip size. Each axis is floored and never drops below one pixel.
func Halve(s Size) Size {
	return Size{Width: max(1, s.Width/2), Height: max(1, s.Height/2)}
}

// IsHalfOf reports whether s is exactly the floored half of src on both axes.
func (s Size) IsHalfOf(src Size) bool {
	return s.Width == src.Width/2 && s.Height == src.Height/2
}

// TargetSizes returns the target sizes of the n levels that follow base.
func TargetSizes(base Size, n int) []Size {
	sizes := make([]Size, 0, max(n, 0))

	current := base
	for range n {
		current = Halve(current)
		sizes = append(sizes, current)
	}

	return sizes
}

// Method records how a level's pixels were produced.
type Method string

// Level production methods.
const (
	// MethodBase marks level 0, which is never resampled.
	MethodBase Method = "base"

	// MethodReused marks a source already at its target size.
	MethodReused Method = "reused"

	// MethodTiled marks a level produced by the tiled pipeline.
	MethodTiled Method = "tiled"

	// MethodFallback marks a level produced by a single whole-image resize.
	MethodFallback Method = "fallback"
)

// Level is one entry of the mip chain.
type Level struct {
	Index  int
	Size   Size
	Source string
	Path   string
	Method Method
}

// Chain is the ordered list of levels handed to the assembler.
type Chain struct {
	Levels []Level
	Output string
}

// Paths returns the level artifact paths in mip order.
func (c *Chain) Paths() []string {
	paths := make([]string, 0, len(c.Levels))
	for _, l := range c.Levels {
		paths = append(paths, l.Path)
	}

	return paths
}
