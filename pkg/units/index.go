package units

import (
	"fmt"
	"sort"
	"strings"
)

// MaxAliasWords is the longest n-gram considered as an alias.
const MaxAliasWords = 3

// RawUnit is a catalog entry as the stats provider returns it.
type RawUnit struct {
	ID     int
	Name   string
	BaseID string
}

// UnitRecord is an immutable catalog entry with the aliases that resolve to it.
type UnitRecord struct {
	ID      int
	Name    string
	BaseID  string
	Aliases []string
}

// Index maps aliases to units. It is built once and only read afterwards;
// a refresh builds a new Index and swaps it in through Catalog.
type Index struct {
	units    []UnitRecord
	byID     map[int]int
	byAlias  map[string]int
	warnings []string
}

func ngrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}

	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}

func unitGrams(tokens []string) []string {
	var grams []string
	for n := 1; n <= MaxAliasWords; n++ {
		grams = append(grams, ngrams(tokens, n)...)
	}
	return grams
}

// BuildIndex derives the aliases of every unit.
//
// Every 1..3 word n-gram of a unit's normalized name is a candidate; only
// candidates produced exactly once across the whole catalog are kept. A unit
// left without aliases falls back to its full normalized name. An alias that
// still ends up claimed by more than one unit (two fallbacks with the same
// name) is left out of the index and reported in Warnings.
func BuildIndex(raw []RawUnit) *Index {
	idx := &Index{
		byID:    make(map[int]int, len(raw)),
		byAlias: make(map[string]int),
	}

	for _, r := range raw {
		rec := UnitRecord{ID: r.ID, Name: r.Name, BaseID: r.BaseID}
		if pos, ok := idx.byID[r.ID]; ok {
			idx.warnings = append(idx.warnings, fmt.Sprintf("unit id %d listed more than once, keeping %q", r.ID, r.Name))
			idx.units[pos] = rec
			continue
		}
		idx.byID[r.ID] = len(idx.units)
		idx.units = append(idx.units, rec)
	}

	tokens := make([][]string, len(idx.units))
	counts := make(map[string]int)
	for i, u := range idx.units {
		tokens[i] = Tokens(u.Name)
		for _, gram := range unitGrams(tokens[i]) {
			counts[gram]++
		}
	}

	claims := make(map[string][]int)
	for i := range idx.units {
		seen := make(map[string]bool)
		var aliases []string
		for _, gram := range unitGrams(tokens[i]) {
			if counts[gram] == 1 && !seen[gram] {
				seen[gram] = true
				aliases = append(aliases, gram)
			}
		}

		if len(aliases) == 0 {
			full := strings.Join(tokens[i], " ")
			if full == "" {
				idx.warnings = append(idx.warnings, fmt.Sprintf("unit %d has an empty name and cannot be aliased", idx.units[i].ID))
				continue
			}
			aliases = []string{full}
		}

		for _, alias := range aliases {
			claims[alias] = append(claims[alias], i)
		}
	}

	for alias, owners := range claims {
		if len(owners) > 1 {
			ids := make([]int, len(owners))
			for k, pos := range owners {
				ids[k] = idx.units[pos].ID
			}
			sort.Ints(ids)
			idx.warnings = append(idx.warnings, fmt.Sprintf("alias %q is shared by units %v and was dropped", alias, ids))
			continue
		}

		pos := owners[0]
		idx.byAlias[alias] = pos
		idx.units[pos].Aliases = append(idx.units[pos].Aliases, alias)
	}

	for i := range idx.units {
		sort.Strings(idx.units[i].Aliases)
	}
	sort.Strings(idx.warnings)

	return idx
}

func (idx *Index) Lookup(alias string) (UnitRecord, bool) {
	pos, ok := idx.byAlias[alias]
	if !ok {
		return UnitRecord{}, false
	}
	return idx.units[pos], true
}

func (idx *Index) Unit(id int) (UnitRecord, bool) {
	pos, ok := idx.byID[id]
	if !ok {
		return UnitRecord{}, false
	}
	return idx.units[pos], true
}

// Units returns the flattened catalog in provider order.
func (idx *Index) Units() []UnitRecord {
	out := make([]UnitRecord, len(idx.units))
	copy(out, idx.units)
	return out
}

func (idx *Index) Len() int {
	return len(idx.units)
}

func (idx *Index) Aliases() int {
	return len(idx.byAlias)
}

func (idx *Index) Warnings() []string {
	return idx.warnings
}

// WithPrefix lists units whose normalized name starts with the normalized
// prefix, sorted by name. An empty prefix lists everything.
func (idx *Index) WithPrefix(prefix string) []UnitRecord {
	prefix = strings.TrimSpace(Normalize(prefix))

	var out []UnitRecord
	for _, u := range idx.units {
		if strings.HasPrefix(strings.Join(Tokens(u.Name), " "), prefix) {
			out = append(out, u)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Names maps ids to distinct display names, keeping the order of ids.
// Unknown ids are skipped.
func (idx *Index) Names(ids []int) []string {
	seen := make(map[string]bool, len(ids))
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		u, ok := idx.Unit(id)
		if !ok || seen[u.Name] {
			continue
		}
		seen[u.Name] = true
		names = append(names, u.Name)
	}
	return names
}
