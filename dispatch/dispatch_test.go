package dispatch

import (
	"io"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylelemons/modaline/block"
	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/redo"
)

// keyQueue is a canned KeySource.
type keyQueue struct{ keys []keycode.Key }

func (q *keyQueue) GetOneKey() (keycode.Key, error) {
	if len(q.keys) == 0 {
		return keycode.Key{}, io.EOF
	}
	k := q.keys[0]
	q.keys = q.keys[1:]
	return k, nil
}

func (q *keyQueue) push(s string) {
	for _, r := range s {
		q.keys = append(q.keys, keycode.Key{Rune: r})
	}
}

func (q *keyQueue) pushSpecial(s keycode.Special) {
	q.keys = append(q.keys, keycode.Key{Special: s})
}

// fakeEditor is a minimal Editor over a slice of lines, capturing every
// operator application for assertions.
type fakeEditor struct {
	lines []string
	cur   Position

	ops      []OperatorArg
	inserts  []byte
	replaces []rune
	puts     []byte
	beeps    int
}

func newFakeEditor(lines ...string) *fakeEditor {
	if len(lines) == 0 {
		lines = []string{""}
	}
	return &fakeEditor{lines: lines}
}

func (f *fakeEditor) Cursor() Position      { return f.cur }
func (f *fakeEditor) SetCursor(p Position)  { f.cur = p }
func (f *fakeEditor) LineCount() int        { return len(f.lines) }
func (f *fakeEditor) LineLen(line int) int  { return len(f.lines[line]) }

func (f *fakeEditor) FirstNonBlank(line int) int {
	for i, r := range f.lines[line] {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return 0
}

func (f *fakeEditor) WordForward(from Position, count int, bigword bool) Position {
	pos := from
	for n := 0; n < count; n++ {
		line := f.lines[pos.Line]
		i := pos.Col
		for i < len(line) && line[i] != ' ' {
			i++
		}
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) && pos.Line+1 < len(f.lines) {
			pos.Line++
			pos.Col = 0
			continue
		}
		pos.Col = i
	}
	return pos
}

func (f *fakeEditor) WordBackward(from Position, count int, bigword bool) Position {
	pos := from
	for n := 0; n < count; n++ {
		line := f.lines[pos.Line]
		i := pos.Col
		for i > 0 && (i > len(line)-1 || line[i-1] == ' ') {
			i--
		}
		for i > 0 && line[i-1] != ' ' {
			i--
		}
		pos.Col = i
	}
	return pos
}

func (f *fakeEditor) WordEnd(from Position, count int, bigword bool) Position {
	pos := from
	line := f.lines[pos.Line]
	for n := 0; n < count; n++ {
		i := pos.Col + 1
		for i < len(line) && line[i] == ' ' {
			i++
		}
		for i < len(line)-1 && line[i+1] != ' ' {
			i++
		}
		pos.Col = i
	}
	return pos
}

func (f *fakeEditor) FindChar(line, from int, target rune, forward, till bool, count int) (int, bool) {
	text := f.lines[line]
	col := from
	for n := 0; n < count; n++ {
		found := -1
		if forward {
			for i := col + 1; i < len(text); i++ {
				if rune(text[i]) == target {
					found = i
					break
				}
			}
		} else {
			for i := col - 1; i >= 0; i-- {
				if rune(text[i]) == target {
					found = i
					break
				}
			}
		}
		if found < 0 {
			return 0, false
		}
		col = found
	}
	if till {
		if forward {
			col--
		} else {
			col++
		}
	}
	return col, true
}

func (f *fakeEditor) TextObject(from Position, object rune, around bool, count int) (Position, Position, MotionType, bool) {
	if object != 'w' {
		return Position{}, Position{}, MotionUnknown, false
	}
	line := f.lines[from.Line]
	start, end := from.Col, from.Col
	for start > 0 && line[start-1] != ' ' {
		start--
	}
	for end < len(line)-1 && line[end+1] != ' ' {
		end++
	}
	if around {
		for end < len(line)-1 && line[end+1] == ' ' {
			end++
		}
	}
	return Position{Line: from.Line, Col: start}, Position{Line: from.Line, Col: end}, CharWise, true
}

func (f *fakeEditor) ApplyOperator(op *OperatorArg) error {
	f.ops = append(f.ops, *op)
	return nil
}

func (f *fakeEditor) Put(regname byte, count int, before bool) error {
	f.puts = append(f.puts, regname)
	return nil
}

func (f *fakeEditor) ReplaceChar(r rune, count int) error {
	f.replaces = append(f.replaces, r)
	return nil
}

func (f *fakeEditor) StartInsert(cmd byte, count int) error {
	f.inserts = append(f.inserts, cmd)
	return nil
}

func (f *fakeEditor) Beep() { f.beeps++ }

func newTestDispatcher(ed *fakeEditor, keys string) (*Dispatcher, *keyQueue) {
	q := &keyQueue{}
	q.push(keys)
	d := New(q, ed)
	d.Redo = redo.NewEngine()
	d.ReplayBuf = block.New()
	return d, q
}

// run executes dispatcher passes until the key queue is drained.
func run(t *testing.T, d *Dispatcher, q *keyQueue) {
	t.Helper()
	for len(q.keys) > 0 {
		require.NoError(t, d.ExecuteCommand())
	}
}

func TestS5RegisterCountOperatorMotion(t *testing.T) {
	// `"a3dw`: register=a, count=3, operator=delete, motion=word-forward,
	// executed once with motion-count 3.
	ed := newFakeEditor("one two three four five")
	d, q := newTestDispatcher(ed, `"a3dw`)
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.Equal(t, OpDelete, op.Op)
	assert.Equal(t, byte('a'), op.Regname)
	assert.Equal(t, 3, op.Count)
	assert.Equal(t, Position{0, 0}, op.Start)
	assert.Equal(t, Position{0, 14}, op.End, "three words forward")
	assert.Equal(t, CharWise, op.MotionType)
}

func TestCountsMultiply(t *testing.T) {
	ed := newFakeEditor("a b c d e f g h i j k l")
	d, q := newTestDispatcher(ed, "2d3w")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	assert.Equal(t, 6, ed.ops[0].Count, "2d3w multiplies to 6 words")
	assert.Equal(t, Position{0, 12}, ed.ops[0].End)
}

func TestDoubledOperatorIsLinewise(t *testing.T) {
	ed := newFakeEditor("one", "two", "three", "four")
	d, q := newTestDispatcher(ed, "3dd")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.Equal(t, OpDelete, op.Op)
	assert.Equal(t, LineWise, op.MotionType)
	assert.Equal(t, 0, op.Start.Line)
	assert.Equal(t, 2, op.End.Line)
}

func TestMotionWithoutOperatorJustMoves(t *testing.T) {
	ed := newFakeEditor("one two three")
	d, q := newTestDispatcher(ed, "2w")
	run(t, d, q)

	assert.Empty(t, ed.ops)
	assert.Equal(t, Position{0, 8}, ed.cur)
}

func TestBackwardMotionSwapsRange(t *testing.T) {
	ed := newFakeEditor("one two three")
	ed.cur = Position{0, 8}
	d, q := newTestDispatcher(ed, "db")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.True(t, op.Start.Before(op.End) || op.Start == op.End,
		"start must sort before end after the swap: %+v", op)
	assert.Equal(t, Position{0, 4}, op.Start)
	assert.Equal(t, Position{0, 8}, op.End)
}

func TestInclusiveMotionExtendsEnd(t *testing.T) {
	ed := newFakeEditor("one two")
	d, q := newTestDispatcher(ed, "de")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.True(t, op.EndAdjusted)
	assert.Equal(t, Position{0, 3}, op.End, "end of 'one' is col 2, inclusive adjust takes col 3")
}

func TestUnknownCommandBeepsAndClearsOperator(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, "d&w")
	run(t, d, q)

	assert.Empty(t, ed.ops, "the & aborted the pending delete")
	assert.NotZero(t, ed.beeps)
	assert.False(t, d.OperatorPending())
}

func TestInvalidRegisterAborts(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, `"!x`)
	require.NoError(t, d.ExecuteCommand())
	assert.NotZero(t, ed.beeps)
	// The 'x' is still queued and runs as its own command.
	run(t, d, q)
	require.Len(t, ed.ops, 1)
}

func TestTextLockedGuard(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, ".")
	d.TextLocked = true
	err := d.ExecuteCommand()
	assert.ErrorIs(t, err, ErrTextLocked)
	assert.NotZero(t, ed.beeps)
	_ = q
}

func TestRightToLeftInvertsHorizontal(t *testing.T) {
	ed := newFakeEditor("abcdef")
	ed.cur = Position{0, 3}
	d, q := newTestDispatcher(ed, "l")
	d.RightToLeft = true
	run(t, d, q)
	assert.Equal(t, Position{0, 2}, ed.cur, "'l' moves left under rightleft")
}

func TestDeleteCharImmediate(t *testing.T) {
	ed := newFakeEditor("abcdef")
	d, q := newTestDispatcher(ed, "2x")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.Equal(t, OpDelete, op.Op)
	assert.Equal(t, Position{0, 0}, op.Start)
	assert.Equal(t, Position{0, 2}, op.End)
}

func TestTextObjectInnerWord(t *testing.T) {
	ed := newFakeEditor("one two three")
	ed.cur = Position{0, 5}
	d, q := newTestDispatcher(ed, "diw")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.Equal(t, Position{0, 4}, op.Start)
	assert.Equal(t, Position{0, 7}, op.End, "inclusive end of 'two' plus the adjustment")
}

func TestVisualSelectionOperator(t *testing.T) {
	ed := newFakeEditor("one two three")
	d, q := newTestDispatcher(ed, "vwd")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	op := ed.ops[0]
	assert.True(t, op.WasVisual)
	assert.Equal(t, OpDelete, op.Op)
	assert.Equal(t, Position{0, 0}, op.Start)
	assert.False(t, d.Visual.Active, "selection ends with the operator")
}

func TestForceMotionOverride(t *testing.T) {
	ed := newFakeEditor("one two", "three four")
	d, q := newTestDispatcher(ed, "dVw")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	assert.Equal(t, LineWise, ed.ops[0].MotionType, "V between operator and motion forces linewise")
}

func TestFindCharMotion(t *testing.T) {
	ed := newFakeEditor("xaxaxa")
	d, q := newTestDispatcher(ed, "2fa")
	_ = q
	require.NoError(t, d.ExecuteCommand())
	assert.Equal(t, Position{0, 3}, ed.cur)
}

func TestDigraphInSecondChar(t *testing.T) {
	ed := newFakeEditor("abc")
	q := &keyQueue{}
	q.push("r")
	q.push("\x0b") // Ctrl-K
	q.push("a:")
	d := New(q, ed)
	d.Redo = redo.NewEngine()
	run(t, d, q)

	require.Len(t, ed.replaces, 1)
	assert.Equal(t, 'ä', ed.replaces[0])
}

func TestQuickfixBracketCommands(t *testing.T) {
	ed := newFakeEditor("abc")
	var nexts, prevs []int
	d, q := newTestDispatcher(ed, "")
	d.Quickfix = fakeQuickfix{&nexts, &prevs}
	q.push("3]q")
	q.push("[q")
	run(t, d, q)

	assert.Equal(t, []int{3}, nexts)
	assert.Equal(t, []int{1}, prevs)
}

type fakeQuickfix struct{ nexts, prevs *[]int }

func (f fakeQuickfix) Next(count int) error { *f.nexts = append(*f.nexts, count); return nil }
func (f fakeQuickfix) Prev(count int) error { *f.prevs = append(*f.prevs, count); return nil }

func TestDefaultQuickfixReportsNoList(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, "]q")
	err := d.ExecuteCommand()
	assert.ErrorIs(t, err, ErrNoQuickfixList)
	_ = q
}

type fakeStuffer struct {
	typed   []string
	literal [][]byte
}

func (f *fakeStuffer) StuffTyped(text string)   { f.typed = append(f.typed, text) }
func (f *fakeStuffer) StuffLiteral(p []byte)    { f.literal = append(f.literal, p) }

func TestShorthandTranslatesViaStuff(t *testing.T) {
	ed := newFakeEditor("one two")
	d, q := newTestDispatcher(ed, `"a2D`)
	st := &fakeStuffer{}
	d.Stuff = st
	run(t, d, q)

	assert.Equal(t, []string{`"a2d$`}, st.typed)
}

func TestRedoRecordsCanonicalSequence(t *testing.T) {
	ed := newFakeEditor("one two three")
	d, q := newTestDispatcher(ed, `"a3dw`)
	run(t, d, q)

	buf := block.New()
	require.True(t, d.Redo.StartRedo(0, false, buf))
	assert.Equal(t, `"a3dw`, string(buf.AsSingleString()))
}

func TestYankDoesNotTouchRedo(t *testing.T) {
	ed := newFakeEditor("one two three")
	d, q := newTestDispatcher(ed, "dw")
	run(t, d, q)
	q.push("yw")
	run(t, d, q)

	buf := block.New()
	require.True(t, d.Redo.StartRedo(0, false, buf))
	assert.Equal(t, "dw", string(buf.AsSingleString()), "yank must not overwrite the redo sequence")
}

func TestRepeatPreparesReplayBuffer(t *testing.T) {
	ed := newFakeEditor("one two three")
	d, q := newTestDispatcher(ed, "dw.")
	run(t, d, q)

	var got []byte
	for {
		c, ok := d.ReplayBuf.Read(true)
		if !ok {
			break
		}
		got = append(got, c)
	}
	assert.Equal(t, "dw", string(got))
}

func TestRepeatWithCountOverridesEmbedded(t *testing.T) {
	ed := newFakeEditor("a b c d e f")
	d, q := newTestDispatcher(ed, "2dw")
	run(t, d, q)
	q.push("5.")
	run(t, d, q)

	var got []byte
	for {
		c, ok := d.ReplayBuf.Read(true)
		if !ok {
			break
		}
		got = append(got, c)
	}
	assert.Equal(t, "5dw", string(got), "the new count replaces the recorded one")
}

func TestEscClearsPendingOperator(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, "d\x1bw")
	run(t, d, q)

	assert.Empty(t, ed.ops)
	assert.Equal(t, Position{0, 3}, ed.cur, "the w after Esc is a plain motion")
}

func TestInsertCommandsReachEditor(t *testing.T) {
	ed := newFakeEditor("abc")
	d, q := newTestDispatcher(ed, "i\x1b")
	_ = q
	require.NoError(t, d.ExecuteCommand())
	assert.Equal(t, []byte{'i'}, ed.inserts)
}

func TestGPrefixedOperator(t *testing.T) {
	ed := newFakeEditor("one two")
	d, q := newTestDispatcher(ed, "guw")
	run(t, d, q)

	require.Len(t, ed.ops, 1)
	assert.Equal(t, OpLower, ed.ops[0].Op)

	buf := block.New()
	require.True(t, d.Redo.StartRedo(0, false, buf))
	assert.Equal(t, "guw", string(buf.AsSingleString()))
}

func TestSpecialKeyMotion(t *testing.T) {
	ed := newFakeEditor("abcdef")
	ed.cur = Position{0, 2}
	d, q := newTestDispatcher(ed, "")
	q.pushSpecial(keycode.Right)
	q.pushSpecial(keycode.Home)
	run(t, d, q)
	assert.Equal(t, Position{0, 0}, ed.cur)
}
