package dispatch

// DigraphTable resolves the two-character digraph names entered after
// Ctrl-K in a pending second-char read (spec.md §4.10 step 7). The default
// table carries the common Latin-1 and currency subset; callers add their
// own pairs with Define.
type DigraphTable struct {
	pairs map[[2]rune]rune
}

// NewDigraphTable returns a table preloaded with the default digraphs.
func NewDigraphTable() *DigraphTable {
	t := &DigraphTable{pairs: make(map[[2]rune]rune, len(defaultDigraphs))}
	for _, d := range defaultDigraphs {
		t.pairs[[2]rune{d.a, d.b}] = d.r
	}
	return t
}

// Define adds or replaces one digraph.
func (t *DigraphTable) Define(a, b, r rune) {
	t.pairs[[2]rune{a, b}] = r
}

// Lookup resolves a digraph pair; the reversed pair is accepted too, the
// way the original table is forgiving about argument order.
func (t *DigraphTable) Lookup(a, b rune) (rune, bool) {
	if r, ok := t.pairs[[2]rune{a, b}]; ok {
		return r, true
	}
	r, ok := t.pairs[[2]rune{b, a}]
	return r, ok
}

var defaultDigraphs = []struct{ a, b, r rune }{
	{'a', ':', 'ä'},
	{'o', ':', 'ö'},
	{'u', ':', 'ü'},
	{'A', ':', 'Ä'},
	{'O', ':', 'Ö'},
	{'U', ':', 'Ü'},
	{'a', '\'', 'á'},
	{'e', '\'', 'é'},
	{'i', '\'', 'í'},
	{'o', '\'', 'ó'},
	{'u', '\'', 'ú'},
	{'a', '`', 'à'},
	{'e', '`', 'è'},
	{'a', '^', 'â'},
	{'e', '^', 'ê'},
	{'n', '?', 'ñ'},
	{'s', 's', 'ß'},
	{'c', ',', 'ç'},
	{'E', 'u', '€'},
	{'P', 'd', '£'},
	{'Y', 'e', '¥'},
	{'C', 'o', '©'},
	{'R', 'g', '®'},
	{'D', 'G', '°'},
	{'+', '-', '±'},
	{'M', 'y', 'µ'},
}
