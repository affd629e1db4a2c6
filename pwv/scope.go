package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kintad/PWV3/pkg/trace"
)

// renderScope draws both channels of tr as characters: '1' and '2' for the
// nodes and '*' where they overlap.
func renderScope(w io.Writer, tr *trace.Trace, width, height int) {
	if tr == nil || width < 2 || height < 2 {
		return
	}

	grid := make([][]byte, height)
	for i := range grid {
		grid[i] = bytes.Repeat([]byte{' '}, width)
	}

	draw := func(ys []float32, mark byte) {
		for i, y := range ys {
			if i >= len(tr.T) {
				break
			}
			px, py := tr.Project(tr.T[i], y, float32(width-1), float32(height-1))
			col := min(max(int(px+0.5), 0), width-1)
			row := min(max(int(py+0.5), 0), height-1)
			if c := grid[row][col]; c != ' ' && c != mark {
				grid[row][col] = '*'
			} else {
				grid[row][col] = mark
			}
		}
	}
	draw(tr.Ch1, '1')
	draw(tr.Ch2, '2')

	border := "+" + string(bytes.Repeat([]byte{'-'}, width)) + "+\n"
	io.WriteString(w, border)
	for _, line := range grid {
		fmt.Fprintf(w, "|%s|\n", line)
	}
	io.WriteString(w, border)
	fmt.Fprintf(w, " t=%.1fs  span %.1fs  y %.0f..%.0f\n", tr.Start, tr.XMax, tr.YMin, tr.YMax)
}
