// Package selection turns a smoothed gaze point into debounced,
// rate-limited selections on a fixed label grid.
package selection

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Grid validation errors.
var (
	ErrEmptyGrid  = errors.New("selection: label grid is empty")
	ErrEmptyRow   = errors.New("selection: label grid has an empty row")
	ErrRaggedGrid = errors.New("selection: label grid rows differ in length")
	ErrEmptyLabel = errors.New("selection: label grid has an empty label")
)

// DefaultLabels is the reference 2x2 board.
var DefaultLabels = [][]string{
	{"Food", "Medicine"},
	{"Washroom", "Other"},
}

// Selection is one cell of the grid. The zero value means none.
type Selection struct {
	Label string `json:"label"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// None reports whether s is the zero selection.
func (s Selection) None() bool {
	return s.Label == ""
}

func (s Selection) String() string {
	if s.None() {
		return "<none>"
	}
	return fmt.Sprintf("%s[%d,%d]", s.Label, s.Row, s.Col)
}

// Mapper maps normalized points onto a rows x cols grid of labels.
type Mapper struct {
	labels [][]string
	rows   int
	cols   int
}

// NewMapper copies labels and validates the grid shape.
func NewMapper(labels [][]string) (*Mapper, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyGrid
	}
	cols := len(labels[0])
	grid := make([][]string, len(labels))
	for r, row := range labels {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: row %d", ErrEmptyRow, r)
		}
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d labels, want %d", ErrRaggedGrid, r, len(row), cols)
		}
		for c, label := range row {
			if label == "" {
				return nil, fmt.Errorf("%w: cell %d,%d", ErrEmptyLabel, r, c)
			}
		}
		grid[r] = append([]string(nil), row...)
	}
	return &Mapper{labels: grid, rows: len(grid), cols: cols}, nil
}

// Map returns the cell under p. Coordinates outside [0,1], infinities
// included, are clamped to the nearest edge. NaN maps to the center.
func (m *Mapper) Map(p gaze.Point) Selection {
	r := index(p.Y, m.rows)
	c := index(p.X, m.cols)
	return Selection{Label: m.labels[r][c], Row: r, Col: c}
}

func index(v float64, n int) int {
	// Clamp before scaling; converting a huge float to int is undefined.
	switch {
	case math.IsNaN(v):
		v = 0.5
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	i := int(math.Floor(v * float64(n)))
	if i >= n {
		return n - 1
	}
	return i
}

// Rows returns the number of grid rows.
func (m *Mapper) Rows() int { return m.rows }

// Cols returns the number of grid columns.
func (m *Mapper) Cols() int { return m.cols }

// Labels returns a copy of the grid.
func (m *Mapper) Labels() [][]string {
	out := make([][]string, m.rows)
	for r, row := range m.labels {
		out[r] = append([]string(nil), row...)
	}
	return out
}
