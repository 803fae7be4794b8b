package report

import (
	"math"

	"github.com/mrlobot/discord-bot/pkg/units"
)

const PlayerColumn = "PLAYER"

type PlayerRoster struct {
	Data  PlayerData   `json:"data"`
	Units []RosterUnit `json:"units"`
}

type PlayerData struct {
	Name string `json:"name"`
}

type RosterUnit struct {
	Data UnitStats `json:"data"`
}

type UnitStats struct {
	BaseID    string  `json:"base_id"`
	Name      string  `json:"name"`
	Power     float64 `json:"power"`
	Level     int     `json:"level"`
	GearLevel int     `json:"gear_level"`
	Rarity    int     `json:"rarity"`
	RelicTier *int    `json:"relic_tier"`
}

type Row struct {
	Player string
	Values []int64
}

// Table is one report: a PLAYER column followed by one column per unit.
type Table struct {
	Kind    StatKind
	Columns []string
	Rows    []Row
}

func (t Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, t.Columns)
	for _, row := range t.Rows {
		record := make([]string, 0, len(row.Values)+1)
		record = append(record, row.Player)
		for _, v := range row.Values {
			record = append(record, formatInt(v))
		}
		records = append(records, record)
	}
	return records
}

type column struct {
	baseID string
	name   string
}

// columns merges the target units into one column per base id, in the order
// the ids were first requested. Ids missing from the catalog are skipped.
func columns(idx *units.Index, targetIDs []int) []column {
	seen := make(map[string]bool)
	var cols []column
	for _, id := range targetIDs {
		u, ok := idx.Unit(id)
		if !ok || seen[u.BaseID] {
			continue
		}
		seen[u.BaseID] = true
		cols = append(cols, column{baseID: u.BaseID, name: u.Name})
	}
	return cols
}

// Aggregate builds one table per stat kind. Rows follow the roster order and
// every table has the same shape. A unit the player does not own is reported
// as 0.
func Aggregate(idx *units.Index, players []PlayerRoster, targetIDs []int, kinds []StatKind) []Table {
	cols := columns(idx, targetIDs)
	position := make(map[string]int, len(cols))
	header := make([]string, 0, len(cols)+1)
	header = append(header, PlayerColumn)
	for i, c := range cols {
		position[c.baseID] = i
		header = append(header, c.name)
	}

	tables := make([]Table, 0, len(kinds))
	for _, kind := range kinds {
		table := Table{
			Kind:    kind,
			Columns: header,
			Rows:    make([]Row, 0, len(players)),
		}

		for _, p := range players {
			cells := make([]*float64, len(cols))
			for _, u := range p.Units {
				i, ok := position[u.Data.BaseID]
				if !ok {
					continue
				}
				v := kind.Extract(u.Data)
				cells[i] = &v
			}
			table.Rows = append(table.Rows, Row{Player: p.Data.Name, Values: fillInts(cells)})
		}

		tables = append(tables, table)
	}

	return tables
}

func fillInts(cells []*float64) []int64 {
	values := make([]int64, len(cells))
	for i, c := range cells {
		if c == nil || math.IsNaN(*c) {
			continue
		}
		values[i] = int64(math.Trunc(*c))
	}
	return values
}
