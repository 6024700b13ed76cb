package ui

import (
	"math"
	"strings"

	"github.com/allpedroza/karaoke/internal/lane"
	"github.com/charmbracelet/lipgloss"
)

type cell struct {
	ch    rune
	color string
}

type canvas struct {
	cols, rows int
	cells      [][]cell
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows, cells: make([][]cell, rows)}
	for r := range c.cells {
		c.cells[r] = make([]cell, cols)
		for col := range c.cells[r] {
			c.cells[r][col] = cell{ch: ' '}
		}
	}
	return c
}

func (c *canvas) set(col, row int, ch rune, color string) {
	if col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return
	}
	c.cells[row][col] = cell{ch: ch, color: color}
}

func (c *canvas) text(col, row int, s, color string) {
	for i, ch := range s {
		c.set(col+i, row, ch, color)
	}
}

// String renders rows, merging runs of equally colored cells into one
// styled segment.
func (c *canvas) String() string {
	lines := make([]string, c.rows)
	for r, row := range c.cells {
		var b strings.Builder
		for i := 0; i < len(row); {
			j := i
			var run strings.Builder
			for j < len(row) && row[j].color == row[i].color {
				run.WriteRune(row[j].ch)
				j++
			}
			if row[i].color == "" {
				b.WriteString(run.String())
			} else {
				b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(row[i].color)).Render(run.String()))
			}
			i = j
		}
		lines[r] = b.String()
	}
	return strings.Join(lines, "\n")
}

func toCol(x float64) int { return int(math.Floor(x / pxPerCol)) }
func toRow(y float64) int { return int(math.Floor(y / pxPerRow)) }

// paintLane rasterizes a lane frame into a cols x rows block of text.
func paintLane(f lane.Frame, cols, rows int) string {
	if rows < 1 {
		rows = 1
	}
	c := newCanvas(cols, rows)

	for _, g := range f.Grid {
		row := clampRow(toRow(g.Y), rows)
		for col := 0; col < cols; col++ {
			c.set(col, row, '┄', "#333333")
		}
		c.text(0, row, g.Label, "#666666")
	}

	nowCol := toCol(f.NowX)
	for row := 0; row < rows; row++ {
		c.set(nowCol, row, '│', "#888888")
	}

	for _, n := range f.Notes {
		row := clampRow(toRow(n.Y), rows)
		start, end := toCol(n.X), toCol(n.X+n.Width)
		if end <= start {
			end = start + 1
		}
		ch := '▬'
		if n.Active {
			ch = '█'
		}
		for col := start; col < end; col++ {
			c.set(col, row, ch, n.Color)
		}
	}

	for _, p := range f.Trail {
		c.set(toCol(p.X), clampRow(toRow(p.Y), rows), '•', p.Color)
	}

	if f.User != nil {
		c.set(toCol(f.User.X), clampRow(toRow(f.User.Y), rows), '●', f.User.Color)
	}

	return c.String()
}

// clampRow keeps the bottom edge (y == height) on the last row.
func clampRow(row, rows int) int {
	if row >= rows {
		return rows - 1
	}
	if row < 0 {
		return 0
	}
	return row
}
