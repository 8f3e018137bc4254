package udns

import "slices"

// maxAliasHops bounds how many aliases are followed for one name.
const maxAliasHops = 8

// Alias maps a name to its canonical name, as learned from a CNAME record.
type Alias struct {
	Alias     string
	Canonical string
}

// aliasTable is a bounded list of aliases. When full, the oldest alias is
// dropped.
type aliasTable struct {
	entries []Alias
	max     int
}

func newAliasTable(max int) *aliasTable {
	return &aliasTable{max: max}
}

// Add records an alias. The first mapping for a name wins.
func (t *aliasTable) Add(alias, canonical string) bool {
	if alias == canonical || t.index(alias) >= 0 {
		return false
	}
	if len(t.entries) >= t.max {
		t.entries = slices.Delete(t.entries, 0, len(t.entries)-t.max+1)
	}
	t.entries = append(t.entries, Alias{Alias: alias, Canonical: canonical})
	return true
}

func (t *aliasTable) index(alias string) int {
	return slices.IndexFunc(t.entries, func(a Alias) bool {
		return a.Alias == alias
	})
}

// Canonical follows aliases starting at name and returns the final name.
func (t *aliasTable) Canonical(name string) string {
	for range maxAliasHops {
		i := t.index(name)
		if i < 0 {
			break
		}
		name = t.entries[i].Canonical
	}
	return name
}

// Entries returns a copy of all aliases, oldest first.
func (t *aliasTable) Entries() []Alias {
	return slices.Clone(t.entries)
}
