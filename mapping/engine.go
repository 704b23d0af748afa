package mapping

import (
	"bytes"
	"errors"

	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/typeahead"
)

// Sentinel errors surfaced to callers (spec.md §6, §7).
var (
	ErrMapRecursionLimit = errors.New("mapping: recursive mapping too deep")      // E224
	ErrCmdMappingBadTail = errors.New("mapping: <Cmd> mapping must end in <CR>")  // E1255
	ErrCmdMappingNested  = errors.New("mapping: <Cmd> mapping must not nest")     // E1136
)

// OutcomeKind discriminates what an Engine.Step call produced. This
// replaces the original's negative-sentinel keylen channel (PART_KEY=-1,
// PART_MAP=-2) with an explicit tagged result, per spec.md §9 ("Sum types
// over sentinels").
type OutcomeKind int

const (
	// NeedInput means typeahead is empty and the caller must push at
	// least one more raw byte (from source.Multiplexer) before retrying.
	NeedInput OutcomeKind = iota
	// NeedTimeout means a partial match is pending; the caller should
	// wait up to TimeoutLen (or TTimeoutLen for an incomplete key-code)
	// for more bytes and retry with timedOut=true if none arrive.
	NeedTimeout
	// Emit means the front byte of typeahead should be handed to the
	// character-assembly layer as plain input; it has been consumed.
	Emit
	// Expanded means a mapping fired and typeahead was rewritten; the
	// caller should call Step again immediately.
	Expanded
	// Err means expansion failed; see Outcome.Err.
	Err
)

// TimeoutReason distinguishes the two NeedTimeout causes spec.md §4.6 and
// §5 call out, so the caller can pick TimeoutLen vs TTimeoutLen.
type TimeoutReason int

const (
	NoTimeout TimeoutReason = iota
	PartialMapping               // a mapping LHS could still extend: use TimeoutLen
	PartialKeyCode               // an incomplete K_SPECIAL triple: use TTimeoutLen
)

// Outcome is the tagged result of one Engine.Step call.
type Outcome struct {
	Kind   OutcomeKind
	Byte   byte
	Err    error
	Reason TimeoutReason

	// Typed is set on Emit when the byte was typed by the user rather
	// than produced by a mapping expansion; only typed bytes reach the
	// record/script sink (spec.md §4.7: "on each typed byte").
	Typed bool
}

// RecordFunc observes the bytes that triggered a mapping expansion, for
// the record/script sink (C7). Called with only the portion of the LHS
// beyond the already-mapped prefix (spec.md §4.6).
type RecordFunc func(triggerBytes []byte)

// SelectToVisualFunc is invoked when a mapping fires in Select mode but is
// only defined for Visual mode; it should switch the live mode to Visual
// and return the key sequence that will switch back to Select once the
// command completes (spec.md §4.6, SPEC_FULL.md's Visual/Select supplement).
type SelectToVisualFunc func() (switchBack []byte)

// Engine is the mapping engine (C6): it owns no typeahead state itself,
// operating directly on a shared *typeahead.Buffer so InputCore's other
// components (dispatcher, redo) see the same bytes.
type Engine struct {
	Table     *Table
	Typeahead *typeahead.Buffer

	Mode        Mode
	MaxMapDepth int

	// ExprEval evaluates an Entry with Flags.Expr set. Required only if
	// any <expr> mapping is defined.
	ExprEval func(*Entry) (string, error)

	// LangMap translates a typed plain byte under the active language map
	// before it is compared against a mapping LHS (spec.md §4.6: "and
	// language-map adjustments for non-special bytes"). Bytes that came
	// from a mapping expansion, and K_SPECIAL escape bytes, are never
	// translated.
	LangMap func(b byte) byte

	OnRecord       RecordFunc
	OnSelectToVisual SelectToVisualFunc

	depth int
}

// NewEngine returns an Engine with vim's traditional 1000 default depth.
func NewEngine(table *Table, ta *typeahead.Buffer) *Engine {
	return &Engine{Table: table, Typeahead: ta, Mode: Normal, MaxMapDepth: 1000}
}

type matchKind int

const (
	noMatch matchKind = iota
	partial
	full
)

// langMapByte applies the language map to the typed byte at logical index
// i, leaving mapped-prefix bytes and K_SPECIAL escapes alone.
func (e *Engine) langMapByte(i int, b byte) byte {
	if e.LangMap == nil || b >= keycode.KSpecial || i < e.Typeahead.MapLen() {
		return b
	}
	return e.LangMap(b)
}

func (e *Engine) classify(entry *Entry, taLen int) (matchKind, int) {
	n := len(entry.LHS)
	avail := n
	if taLen < avail {
		avail = taLen
	}
	i := 0
	for ; i < avail; i++ {
		b, _ := e.Typeahead.ByteAt(i)
		if e.langMapByte(i, b) != entry.LHS[i] {
			break
		}
	}
	switch {
	case i == n && n <= taLen:
		return full, i
	case i == taLen && taLen < n:
		return partial, i
	default:
		return noMatch, i
	}
}

// Step advances the engine by exactly one decision (spec.md §4.6). Callers
// loop: on Expanded, call Step again immediately; on NeedInput, push a byte
// onto Typeahead from the source multiplexer and retry; on NeedTimeout,
// wait for more input or a timeout and retry with timedOut=true; Emit and
// Err are terminal for this logical key.
func (e *Engine) Step(timedOut bool) Outcome {
	taLen := e.Typeahead.Len()
	if taLen == 0 {
		return Outcome{Kind: NeedInput}
	}

	// A partial K_SPECIAL triple at the front must not be mis-simplified;
	// ask for more bytes rather than guessing (spec.md §4.6 special case).
	// Once the key-code timeout fires the lead byte is emitted literally
	// by the fall-through below.
	if b, _ := e.Typeahead.ByteAt(0); b == keycode.KSpecial && taLen < 3 && !timedOut {
		return Outcome{Kind: NeedTimeout, Reason: PartialKeyCode}
	}

	scriptOnly, abbrOnly, noRemap := e.Typeahead.RemapMaskAt(0)
	b0, _ := e.Typeahead.ByteAt(0)

	plug := HasPlugPrefix(e.Typeahead.Bytes())
	allowMapping := !abbrOnly && (!noRemap || plug)

	var bestFull *Entry
	bestFullLen := -1
	foundPartial := false

	if allowMapping {
		for _, entry := range e.Table.Candidates(e.Mode, e.langMapByte(0, b0)) {
			if scriptOnly && !entry.Flags.Script && !plug {
				continue
			}
			kind, length := e.classify(entry, taLen)
			switch kind {
			case full:
				if length > bestFullLen {
					bestFull, bestFullLen = entry, length
				}
			case partial:
				if !entry.Flags.NoWait {
					foundPartial = true
				}
			}
		}
	}

	switch {
	case bestFull != nil && (!foundPartial || timedOut):
		// A longer partial match only holds a full match back while the
		// timeout could still let it complete; once it fires, the full
		// match wins over emitting the bytes literally.
		return e.expand(bestFull)

	case foundPartial && !timedOut:
		return Outcome{Kind: NeedTimeout, Reason: PartialMapping}

	default:
		// No usable match (or a partial match that has now timed out).
		// Try folding a leading modifier triple before giving up and
		// emitting the raw byte (spec.md §4.6 step 3).
		if _, ok := e.tryMergeModifiers(); ok {
			return e.Step(timedOut)
		}
		c, _ := e.Typeahead.ByteAt(0)
		typed := e.Typeahead.MapLen() == 0
		e.Typeahead.Delete(1, 0)
		return Outcome{Kind: Emit, Byte: c, Typed: typed}
	}
}

// tryMergeModifiers rewrites a leading KS_MODIFIER triple using
// keycode.MergeModifiers when that produces a strictly different encoding,
// so the engine can retry matching against the simplified form.
func (e *Engine) tryMergeModifiers() (merged keycode.Key, rewrote bool) {
	raw := e.Typeahead.Bytes()
	k, n := keycode.DecodeNext(raw)
	if k.IsNeedMore() || k.Mods == 0 {
		return keycode.Key{}, false
	}
	merged = keycode.MergeModifiers(k)
	var newBytes []byte
	if merged.Special == keycode.Mouse {
		newBytes = keycode.EncodeMouse(newBytes, merged.Mouse, merged.Mods)
	} else {
		newBytes = keycode.Encode(newBytes, merged.Rune, merged.Special, merged.Mods)
	}
	if bytes.Equal(newBytes, raw[:n]) {
		return keycode.Key{}, false
	}
	e.Typeahead.Delete(n, 0)
	e.Typeahead.Insert(newBytes, typeahead.RemapAll, 0, false, false)
	return merged, true
}

func (e *Engine) expand(entry *Entry) Outcome {
	mapLenBefore := e.Typeahead.MapLen()
	lhsLen := len(entry.LHS)
	if e.OnRecord != nil && lhsLen > mapLenBefore {
		trigger := append([]byte(nil), e.Typeahead.Bytes()[mapLenBefore:lhsLen]...)
		// Mappings are recorded before expansion, except language-map
		// translated bytes, which are recorded after translation.
		for i := range trigger {
			trigger[i] = e.langMapByte(mapLenBefore+i, trigger[i])
		}
		e.OnRecord(trigger)
	}

	e.Typeahead.Delete(lhsLen, 0)

	rhs := entry.RHS
	if entry.Flags.Expr {
		if e.ExprEval == nil {
			return Outcome{Kind: Err, Err: errors.New("mapping: <expr> entry without an ExprEval callback")}
		}
		s, err := e.ExprEval(entry)
		if err != nil {
			return Outcome{Kind: Err, Err: err}
		}
		if s == "" {
			rhs = keycode.Encode(nil, 0, keycode.Ignore, 0)
		} else {
			rhs = Keys(s)
		}
	}

	policy := typeahead.RemapAll
	switch {
	case entry.Flags.NoRemap:
		if bytes.HasPrefix(rhs, entry.LHS) {
			policy = typeahead.RemapSkip
		} else {
			policy = typeahead.RemapNone
		}
	case entry.Flags.Script:
		policy = typeahead.RemapScript
	}

	if err := e.Typeahead.Insert(rhs, policy, 0, true, entry.Flags.Silent); err != nil {
		return Outcome{Kind: Err, Err: err}
	}

	e.depth++
	if e.depth > e.MaxMapDepth {
		e.Typeahead.Flush(typeahead.FlushMinimal)
		e.depth = 0
		return Outcome{Kind: Err, Err: ErrMapRecursionLimit}
	}

	if e.Mode == Select && entry.Modes&Visual != 0 && e.OnSelectToVisual != nil {
		e.Mode = Visual
		if back := e.OnSelectToVisual(); len(back) > 0 {
			e.Typeahead.Insert(back, typeahead.RemapAll, e.Typeahead.Len(), true, false)
		}
	}

	return Outcome{Kind: Expanded}
}

// ResetDepth clears the recursion counter; called once a full logical key
// has been emitted to the dispatcher (spec.md §4.6's recursion cap is
// per-expansion-chain, not global).
func (e *Engine) ResetDepth() { e.depth = 0 }
