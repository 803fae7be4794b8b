package ascii

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mrlobot/discord-bot/pkg/database"
	"github.com/mrlobot/discord-bot/pkg/units"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UnitsPerTable keeps a units table below the chat message size limit.
const UnitsPerTable = 8

func newTable(buf *bytes.Buffer) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.Options(
		tablewriter.WithRowAutoWrap(0),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	return table
}

// BuildUnitsTables renders units with their aliases, perTable units per table.
func BuildUnitsTables(list []units.UnitRecord, perTable int) []string {
	if perTable <= 0 {
		perTable = UnitsPerTable
	}

	var tables []string
	for start := 0; start < len(list); start += perTable {
		end := min(start+perTable, len(list))

		buf := new(bytes.Buffer)
		table := newTable(buf)
		table.Header("Name", "Alias")

		for _, u := range list[start:end] {
			table.Append([]string{u.Name, strings.Join(u.Aliases, ", ")})
		}

		table.Render()
		tables = append(tables, buf.String())
	}
	return tables
}

func BuildSheetTable(unitNames []string) string {
	buf := new(bytes.Buffer)

	table := newTable(buf)
	table.Header("#", "Unit")

	for i, name := range unitNames {
		table.Append([]string{fmt.Sprintf("%d", i+1), name})
	}

	table.Footer([]string{"", fmt.Sprintf("%d units", len(unitNames))})

	table.Render()
	return buf.String()
}

func BuildHistoryTable(runs []database.ReportRun) string {
	buf := new(bytes.Buffer)

	table := newTable(buf)
	table.Header("Date", "Sheet", "Stats", "Units", "Players")

	for _, r := range runs {
		table.Append([]string{
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
			r.Sheet,
			strings.Join(r.Kinds(), ", "),
			fmt.Sprintf("%d", len(r.Units())),
			fmt.Sprintf("%d", r.Players),
		})
	}

	table.Render()
	return buf.String()
}
