package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteTable prints each summary as a bordered text table.
func WriteTable(w io.Writer, summaries []Summary) {
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  [%s, %s, %d patients]\n", s.Source, s.Set, s.EMR, s.RowCount)

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Indicator", "Passed", "Total", "%", "Benchmark %"})
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
		table.SetAutoWrapText(false)
		for _, r := range s.Rows {
			table.Append([]string{
				r.Label,
				strconv.Itoa(r.Passed),
				strconv.Itoa(r.Total),
				formatPercent(r.Percent),
				formatPercent(r.Benchmark),
			})
		}
		table.Render()
	}
}

func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
