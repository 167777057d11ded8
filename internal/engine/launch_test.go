package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		want       Dim2
	}{
		{"exact multiple", 32, 64, Dim2{X: 2, Y: 4}},
		{"single element", 1, 1, Dim2{X: 1, Y: 1}},
		{"one under", 15, 15, Dim2{X: 1, Y: 1}},
		{"one over", 17, 33, Dim2{X: 2, Y: 3}},
		{"hundred squared", 100, 100, Dim2{X: 7, Y: 7}},
		{"row vector", 1, 1000, Dim2{X: 1, Y: 63}},
		{"zero rows", 0, 100, Dim2{}},
		{"zero cols", 100, 0, Dim2{}},
		{"empty", 0, 0, Dim2{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Configure(tt.rows, tt.cols, DefaultThreadsPerGroup)
			assert.Equal(t, tt.want, cfg.GroupsPerGrid)
			assert.Equal(t, tt.rows == 0 || tt.cols == 0, cfg.Empty())
		})
	}
}

// The grid must cover the matrix in both dimensions and be the smallest
// grid that does.
func TestConfigureCoverAndMinimality(t *testing.T) {
	tpg := Dim2{X: 16, Y: 16}
	for rows := 1; rows <= 200; rows += 7 {
		for cols := 1; cols <= 200; cols += 11 {
			cfg := Configure(rows, cols, tpg)
			grid := cfg.GroupsPerGrid

			assert.GreaterOrEqual(t, grid.X*tpg.X, rows, "%dx%d not covered in rows", rows, cols)
			assert.GreaterOrEqual(t, grid.Y*tpg.Y, cols, "%dx%d not covered in cols", rows, cols)
			assert.Less(t, (grid.X-1)*tpg.X, rows, "%dx%d grid not minimal in rows", rows, cols)
			assert.Less(t, (grid.Y-1)*tpg.Y, cols, "%dx%d grid not minimal in cols", rows, cols)
		}
	}
}

func TestConfigureNonSquareGroups(t *testing.T) {
	cfg := Configure(100, 100, Dim2{X: 32, Y: 8})
	assert.Equal(t, Dim2{X: 4, Y: 13}, cfg.GroupsPerGrid)
}

func TestLaunchConfigString(t *testing.T) {
	cfg := Configure(100, 100, DefaultThreadsPerGroup)
	assert.Equal(t, "groups=7x7 threads=16x16", cfg.String())
}
