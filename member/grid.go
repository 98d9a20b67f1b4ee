package member

import "github.com/3run4/stampcard/models"

const (
	GridColumns = 5
	MinGridRows = 4
)

// GridRows is the number of card rows needed to show n stamps.
func GridRows(n int) int {
	if n < 0 {
		n = 0
	}
	rows := (n + GridColumns - 1) / GridColumns
	if rows < MinGridRows {
		return MinGridRows
	}
	return rows
}

// Cell is one square on the stamp card. Number counts from 1.
type Cell struct {
	Number  int    `json:"number"`
	Stamped bool   `json:"stamped"`
	Prize   string `json:"prize,omitempty"`
	Claimed bool   `json:"claimed,omitempty"`
}

// Grid is the rendered card, row by row.
type Grid struct {
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Cells   [][]Cell `json:"cells"`
}

// BuildGrid lays out n stamps. The grid grows to reach the largest prize threshold so
// every prize has a cell, and the cell at each threshold carries the prize label.
func BuildGrid(n int, table models.PrizeTable, claimed models.PrizeClaims) Grid {
	rows := GridRows(n)
	if r := GridRows(table.MaxThreshold()); r > rows {
		rows = r
	}

	prizeAt := make(map[int]string, len(table))
	for _, p := range table {
		if p.Stamps > 0 {
			prizeAt[p.Stamps] = p.Prize
		}
	}

	g := Grid{Rows: rows, Columns: GridColumns, Cells: make([][]Cell, rows)}
	for r := 0; r < rows; r++ {
		row := make([]Cell, GridColumns)
		for c := 0; c < GridColumns; c++ {
			num := r*GridColumns + c + 1
			cell := Cell{Number: num, Stamped: num <= n}
			if label, ok := prizeAt[num]; ok {
				cell.Prize = label
				cell.Claimed = claimed.ContainsThreshold(num) || claimed.Contains(label)
			}
			row[c] = cell
		}
		g.Cells[r] = row
	}
	return g
}
