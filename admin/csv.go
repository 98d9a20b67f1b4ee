package admin

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/3run4/stampcard/models"
)

// Layout picks the CSV columns.
type Layout string

const (
	LayoutBasic    Layout = "basic"
	LayoutDetailed Layout = "detailed"
)

var (
	basicHeader    = []string{"Email", "Name", "Stamps"}
	detailedHeader = []string{"Email", "Display Name", "Stamps", "Last Stamp Date"}
)

// ParseLayout accepts basic or detailed; empty means basic.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutBasic, nil
	case LayoutBasic, LayoutDetailed:
		return l, nil
	default:
		return "", models.Invalid("layout", "Layout must be basic or detailed.")
	}
}

// ExportCSV writes members in the given order with a header row.
func ExportCSV(w io.Writer, members []models.Member, layout Layout) error {
	cw := csv.NewWriter(w)
	header := basicHeader
	if layout == LayoutDetailed {
		header = detailedHeader
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, m := range members {
		row := []string{m.Email, m.DisplayName, strconv.Itoa(m.StampCount)}
		if layout == LayoutDetailed {
			row = append(row, m.LastStampDate())
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
