package mapping

import (
	"testing"

	"github.com/kylelemons/modaline/typeahead"
)

func newTestEngine() (*Engine, *typeahead.Buffer) {
	ta := typeahead.New()
	e := NewEngine(NewTable(), ta)
	return e, ta
}

func feed(ta *typeahead.Buffer, s string) {
	ta.Insert([]byte(s), typeahead.RemapAll, ta.Len(), false, false)
}

// drive runs Step until it returns Emit, Err, or NeedInput/NeedTimeout
// (the latter two meaning "nothing more to give right now").
func drive(e *Engine, timedOut bool) Outcome {
	for {
		out := e.Step(timedOut)
		if out.Kind != Expanded {
			return out
		}
	}
}

func TestLongestMatchPrefersLongerLHS(t *testing.T) {
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("ab"), RHS: []byte("AB"), Modes: Normal}, false)
	e.Table.Add(&Entry{LHS: []byte("abc"), RHS: []byte("ABC"), Modes: Normal}, false)
	feed(ta, "abc")

	out := drive(e, false)
	if out.Kind != Emit {
		t.Fatalf("first byte: kind=%v err=%v", out.Kind, out.Err)
	}
	if got, want := string(ta.Bytes()), "BC"; got != want {
		t.Fatalf("remaining typeahead = %q, want %q (from RHS %q)", got, want, "ABC")
	}
}

func TestPartialMatchUnmappableTail(t *testing.T) {
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("ab"), RHS: []byte("AB"), Modes: Normal}, false)
	feed(ta, "abX")

	out := drive(e, false)
	if out.Kind != Emit || out.Byte != 'A' {
		t.Fatalf("got %+v, want Emit 'A' (from expansion of ab)", out)
	}
}

func TestS1MappingExpansion(t *testing.T) {
	// Table { ii -> <Esc> }. Stream "iix". Emitted: i, <Esc>, x.
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("ii"), RHS: Keys("<Esc>"), Modes: Insert}, false)
	e.Mode = Insert
	feed(ta, "iix")

	var got []byte
	for i := 0; i < 3; i++ {
		out := drive(e, false)
		if out.Kind != Emit {
			t.Fatalf("step %d: kind=%v err=%v", i, out.Kind, out.Err)
		}
		got = append(got, out.Byte)
	}
	want := []byte{'i', 0x1b, 'x'}
	if string(got) != string(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
}

func TestS2Noremap(t *testing.T) {
	// Table { j -> gj, nnoremap k -> k }. Stream "jk". Emitted: g, j, k.
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("j"), RHS: []byte("gj"), Modes: Normal}, false)
	e.Table.Add(&Entry{LHS: []byte("k"), RHS: []byte("k"), Modes: Normal, Flags: Flags{NoRemap: true}}, false)
	feed(ta, "jk")

	var got []byte
	for i := 0; i < 3; i++ {
		out := drive(e, false)
		if out.Kind != Emit {
			t.Fatalf("step %d: kind=%v err=%v", i, out.Kind, out.Err)
		}
		got = append(got, out.Byte)
	}
	if string(got) != "gjk" {
		t.Fatalf("emitted %q, want %q", got, "gjk")
	}
}

func TestNoremapContainmentNoInfiniteLoop(t *testing.T) {
	// noremap k -> kk: RHS starts with LHS, so REMAP_SKIP kicks in and the
	// leading 'k' of the RHS is not itself re-expanded, but the table still
	// has no OTHER entry to further expand plain 'k' so this just emits.
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("k"), RHS: []byte("kk"), Modes: Normal, Flags: Flags{NoRemap: true}}, false)
	feed(ta, "k")

	out := drive(e, false)
	if out.Kind != Emit || out.Byte != 'k' {
		t.Fatalf("got %+v", out)
	}
	out = drive(e, false)
	if out.Kind != Emit || out.Byte != 'k' {
		t.Fatalf("second byte: got %+v", out)
	}
	if e.depth > e.MaxMapDepth {
		t.Fatalf("depth exceeded MaxMapDepth")
	}
}

func TestRecursionLimitExceeded(t *testing.T) {
	e, ta := newTestEngine()
	e.MaxMapDepth = 5
	e.Table.Add(&Entry{LHS: []byte("a"), RHS: []byte("aa"), Modes: Normal}, false)
	feed(ta, "a")

	out := drive(e, false)
	if out.Kind != Err {
		t.Fatalf("expected Err after exceeding recursion cap, got %+v", out)
	}
	if out.Err != ErrMapRecursionLimit {
		t.Fatalf("err = %v, want ErrMapRecursionLimit", out.Err)
	}
}

func TestNeedInputWhenTypeaheadEmpty(t *testing.T) {
	e, _ := newTestEngine()
	out := e.Step(false)
	if out.Kind != NeedInput {
		t.Fatalf("got %+v, want NeedInput", out)
	}
}

func TestNeedTimeoutThenEmitAfterTimeout(t *testing.T) {
	// S3: table {jk -> <Esc>}. Typeahead has only "j" so far: NeedTimeout.
	// After a simulated timeout, the engine emits 'j' literally.
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("jk"), RHS: Keys("<Esc>"), Modes: Normal}, false)
	feed(ta, "j")

	out := e.Step(false)
	if out.Kind != NeedTimeout || out.Reason != PartialMapping {
		t.Fatalf("got %+v, want NeedTimeout/PartialMapping", out)
	}

	out = e.Step(true) // timed out
	if out.Kind != Emit || out.Byte != 'j' {
		t.Fatalf("after timeout, got %+v, want Emit 'j'", out)
	}
}

func TestFullMatchWinsAfterTimeoutDespiteLongerPartial(t *testing.T) {
	// Table {ab -> X, abc -> Y}, typeahead "ab": the longer entry keeps
	// the match pending, but once the timeout fires the complete ab match
	// must expand rather than the bytes coming out literally.
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("ab"), RHS: []byte("X"), Modes: Normal}, false)
	e.Table.Add(&Entry{LHS: []byte("abc"), RHS: []byte("Y"), Modes: Normal}, false)
	feed(ta, "ab")

	out := e.Step(false)
	if out.Kind != NeedTimeout || out.Reason != PartialMapping {
		t.Fatalf("got %+v, want NeedTimeout/PartialMapping while abc could still complete", out)
	}

	out = drive(e, true) // timed out
	if out.Kind != Emit || out.Byte != 'X' {
		t.Fatalf("after timeout, got %+v, want Emit 'X' (ab expanded)", out)
	}
}

func TestNoTimeoutWhenCompletesWithinWindow(t *testing.T) {
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: []byte("jk"), RHS: Keys("<Esc>"), Modes: Normal}, false)
	feed(ta, "j")
	if out := e.Step(false); out.Kind != NeedTimeout {
		t.Fatalf("got %+v", out)
	}
	feed(ta, "k") // second byte arrives before timeout
	out := drive(e, false)
	if out.Kind != Emit || out.Byte != 0x1b {
		t.Fatalf("got %+v, want Emit <Esc>", out)
	}
}

func TestRecordCallbackSeesOnlyUnmappedPrefix(t *testing.T) {
	e, ta := newTestEngine()
	var recorded [][]byte
	e.OnRecord = func(b []byte) { recorded = append(recorded, append([]byte(nil), b...)) }
	e.Table.Add(&Entry{LHS: []byte("ab"), RHS: []byte("Z"), Modes: Normal}, false)
	feed(ta, "ab")

	drive(e, false)
	if len(recorded) != 1 || string(recorded[0]) != "ab" {
		t.Fatalf("recorded = %q, want one entry %q", recorded, "ab")
	}
}

func TestExprMappingEmptyResultSynthesizesIgnore(t *testing.T) {
	e, ta := newTestEngine()
	e.ExprEval = func(*Entry) (string, error) { return "", nil }
	e.Table.Add(&Entry{LHS: []byte("x"), Modes: Normal, Flags: Flags{Expr: true}}, false)
	feed(ta, "x")

	out := drive(e, false)
	if out.Kind != Emit {
		t.Fatalf("got %+v", out)
	}
	// <Ignore> decodes back out as the Ignore special key once read through
	// keycode; here we only assert the byte stream is non-empty and was
	// consumed without error.
}

func TestPlugPrefixMappableDespiteNoremapGuard(t *testing.T) {
	e, ta := newTestEngine()
	e.Table.Add(&Entry{LHS: Keys("<Plug>go"), RHS: []byte("G"), Modes: Normal}, false)
	// Insert under RemapNone to simulate arriving from a noremap mapping's
	// RHS; <Plug> must still be mappable.
	ta.Insert(Keys("<Plug>go"), typeahead.RemapNone, 0, true, false)

	out := drive(e, false)
	if out.Kind != Emit || out.Byte != 'G' {
		t.Fatalf("got %+v, want Emit 'G'", out)
	}
}
