package units

import (
	"strings"
	"sync/atomic"

	"github.com/mrlobot/discord-bot/pkg/errs"
)

// TokenSeparator splits the character list typed by users.
const TokenSeparator = ","

type UnitRef struct {
	ID   int
	Name string
}

// Resolution is the outcome of Resolve. IDs keeps the order in which units
// were first matched; Unmatched keeps the tokens exactly as given.
type Resolution struct {
	Matched   map[int]UnitRef
	IDs       []int
	Unmatched []string
}

func SplitTokens(text string) []string {
	var tokens []string
	for _, part := range strings.Split(text, TokenSeparator) {
		if strings.TrimSpace(part) != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// Resolve looks every trimmed token up verbatim in the alias index. There is
// no fuzzy matching: callers pass already normalized text.
func (idx *Index) Resolve(tokens []string) Resolution {
	res := Resolution{Matched: make(map[int]UnitRef)}
	missed := make(map[string]bool)

	for _, token := range tokens {
		unit, ok := idx.Lookup(strings.TrimSpace(token))
		if !ok {
			if !missed[token] {
				missed[token] = true
				res.Unmatched = append(res.Unmatched, token)
			}
			continue
		}

		if _, dup := res.Matched[unit.ID]; dup {
			continue
		}
		res.Matched[unit.ID] = UnitRef{ID: unit.ID, Name: unit.Name}
		res.IDs = append(res.IDs, unit.ID)
	}

	return res
}

// Catalog publishes the current Index. Readers never see a partially built
// index: a refresh builds a new one and swaps the pointer.
type Catalog struct {
	current atomic.Pointer[Index]
}

func (c *Catalog) Load() (*Index, error) {
	idx := c.current.Load()
	if idx == nil {
		return nil, errs.ErrCatalogNotReady
	}
	return idx, nil
}

func (c *Catalog) Store(idx *Index) {
	c.current.Store(idx)
}
