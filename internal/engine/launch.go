package engine

import "fmt"

// Dim2 is a two-dimensional extent for launch configurations.
// X spans matrix rows, Y spans matrix columns.
type Dim2 struct {
	X, Y int
}

// Size returns the total number of cells in the extent.
func (d Dim2) Size() int { return d.X * d.Y }

// DefaultThreadsPerGroup is the fixed execution-group shape: 16x16 = 256
// threads, a multiple of typical hardware warp widths and well under the
// usual 1024 per-group ceiling.
var DefaultThreadsPerGroup = Dim2{X: 16, Y: 16}

// LaunchConfig describes a kernel dispatch: the fixed execution-group
// shape and the derived grid of groups covering the workload.
type LaunchConfig struct {
	ThreadsPerGroup Dim2
	GroupsPerGrid   Dim2
}

// Configure computes the minimal grid of tpg-shaped groups covering a
// rows×cols workload (ceiling division in each dimension). The grid may
// overshoot in the last row/column of groups; the kernel's bounds guard
// makes the overshoot harmless. Zero rows or cols yields an empty grid.
func Configure(rows, cols int, tpg Dim2) LaunchConfig {
	cfg := LaunchConfig{ThreadsPerGroup: tpg}
	if rows > 0 && cols > 0 {
		cfg.GroupsPerGrid = Dim2{
			X: (rows + tpg.X - 1) / tpg.X,
			Y: (cols + tpg.Y - 1) / tpg.Y,
		}
	}
	return cfg
}

// Empty reports whether the grid contains no groups, in which case
// nothing must be launched.
func (c LaunchConfig) Empty() bool {
	return c.GroupsPerGrid.X == 0 || c.GroupsPerGrid.Y == 0
}

func (c LaunchConfig) String() string {
	return fmt.Sprintf("groups=%dx%d threads=%dx%d",
		c.GroupsPerGrid.X, c.GroupsPerGrid.Y, c.ThreadsPerGroup.X, c.ThreadsPerGroup.Y)
}
