// Package mapping implements the mapping table (C5) and mapping engine
// (C6): longest-match / partial-match / timeout / recursion-capped
// expansion of typeahead against a user-defined map table (spec.md §4.5,
// §4.6).
package mapping

import "bytes"

// Mode is a bitmask of the modal-editor modes a mapping entry applies in.
type Mode uint16

const (
	Normal Mode = 1 << iota
	Insert
	Visual
	Select
	OperatorPending
	CmdLine
	Terminal
)

// Flags are the per-entry modifiers spec.md §3 lists on a mapping entry.
type Flags struct {
	Silent  bool
	NoRemap bool
	Expr    bool
	NoWait  bool
	Script  bool
	Cmd     bool // RHS is a <Cmd>...<CR> command-line fragment
}

// ExprFunc evaluates an <expr> mapping's RHS in the host scripting layer,
// returning the string to insert. A non-nil error aborts the expansion and
// is surfaced to the user rather than synthesizing an <Ignore> (spec.md §7).
type ExprFunc func() (string, error)

// Entry is one mapping: LHS → RHS (or an expression), scoped to a mode mask
// (spec.md §3's "Mapping entry").
type Entry struct {
	LHS   []byte
	RHS   []byte
	Expr  ExprFunc
	Modes Mode
	Flags Flags

	// Alt is an alternate-form LHS alias (e.g. <C-I> vs Tab) that Table
	// treats as identical to LHS for Add/Remove purposes.
	Alt []byte

	tombstoned bool
}

// bucket holds every entry whose LHS starts with a given first byte.
type bucket []*Entry

// Table is a per-first-byte-hashed mapping table with an optional
// buffer-local overlay consulted before the global table (spec.md §4.5).
// Removal during iteration (e.g. while an <expr> RHS is being evaluated)
// tombstones rather than compacts, per spec.md §5's "safe-remove
// discipline"; Compact reclaims tombstoned slots once it's safe to do so.
type Table struct {
	global [256]bucket
	local  [256]bucket
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{} }

func firstByte(lhs []byte) (byte, bool) {
	if len(lhs) == 0 {
		return 0, false
	}
	return lhs[0], true
}

func sameLHS(a, b []byte) bool { return bytes.Equal(a, b) }

// Add inserts an entry, replacing any existing entry with an identical LHS
// whose mode mask overlaps the new one (spec.md §4.5).
func (t *Table) Add(e *Entry, local bool) {
	fb, ok := firstByte(e.LHS)
	if !ok {
		return
	}
	buckets := &t.global
	if local {
		buckets = &t.local
	}
	bk := buckets[fb]
	for _, existing := range bk {
		if existing.tombstoned {
			continue
		}
		if sameLHS(existing.LHS, e.LHS) && existing.Modes&e.Modes != 0 {
			existing.tombstoned = true
		}
	}
	buckets[fb] = append(bk, e)
}

// Remove tombstones every entry matching lhs under the given mode mask.
func (t *Table) Remove(lhs []byte, modes Mode, local bool) {
	fb, ok := firstByte(lhs)
	if !ok {
		return
	}
	buckets := &t.global
	if local {
		buckets = &t.local
	}
	for _, e := range buckets[fb] {
		if !e.tombstoned && sameLHS(e.LHS, lhs) && e.Modes&modes != 0 {
			e.tombstoned = true
		}
	}
}

// Compact drops tombstoned entries from every bucket. Safe to call only
// when no iterator (i.e. no in-progress engine scan) holds a reference to
// the table's slices.
func (t *Table) Compact() {
	compactBuckets(&t.global)
	compactBuckets(&t.local)
}

func compactBuckets(buckets *[256]bucket) {
	for i, bk := range buckets {
		if bk == nil {
			continue
		}
		out := bk[:0]
		for _, e := range bk {
			if !e.tombstoned {
				out = append(out, e)
			}
		}
		buckets[i] = out
	}
}

// Candidates returns every live entry whose LHS starts with b and whose
// mode mask covers mode, buffer-local entries first (spec.md §4.5's
// "first_candidate": "buffer-local matches first, then global").
func (t *Table) Candidates(mode Mode, b byte) []*Entry {
	var out []*Entry
	for _, e := range t.local[b] {
		if !e.tombstoned && e.Modes&mode != 0 {
			out = append(out, e)
		}
	}
	for _, e := range t.global[b] {
		if !e.tombstoned && e.Modes&mode != 0 {
			out = append(out, e)
		}
	}
	return out
}
