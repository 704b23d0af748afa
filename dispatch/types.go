// Package dispatch implements the normal-mode command dispatcher (C10):
// the state machine assembling register, count, command char, second char,
// and pending-operator state from the logical key stream, and handing the
// finished command to its implementation (spec.md §4.10). What a command
// does to the document is a collaborator's concern, reached only through
// the Editor contract.
package dispatch

import "github.com/kylelemons/modaline/keycode"

// Position is a document location; Line and Col are zero-based.
type Position struct {
	Line int
	Col  int
}

// Before reports whether p sorts strictly before q in document order.
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

// MotionType classifies the range a motion produced.
type MotionType int

const (
	MotionUnknown MotionType = iota
	CharWise
	LineWise
	BlockWise
)

// Operator is the pending-operator kind.
type Operator int

const (
	OpNop Operator = iota
	OpDelete
	OpYank
	OpChange
	OpShiftRight
	OpShiftLeft
	OpJoin
	OpFormat
	OpReplace
	OpTilde
	OpUpper
	OpLower
	OpRot13
	OpIndent
	OpFilter
	OpFold
	OpFunction
)

// OperatorArg carries one operator application from the dispatcher to the
// Editor (spec.md §3's "Operator argument").
type OperatorArg struct {
	Op         Operator
	Regname    byte
	MotionType MotionType
	Inclusive  bool
	Start      Position
	End        Position
	Count      int

	// ForceMotion is the v/V/Ctrl-V override typed between operator and
	// motion, 0 if none.
	ForceMotion byte

	WasVisual     bool
	EndAdjusted   bool
	BlockStartCol int
	BlockEndCol   int

	opChar byte // the operator's command char, for redo recording
	opG    bool // the operator was g-prefixed (g~, gu, gU, g?)
}

// Clear resets the pending operator.
func (o *OperatorArg) Clear() {
	*o = OperatorArg{}
}

// CommandArg is the per-command scratch assembled by one dispatcher pass
// (spec.md §3's "Command argument").
type CommandArg struct {
	Oap       *OperatorArg
	Regname   byte
	GFlag     bool
	CmdChar   keycode.Key
	NChar     keycode.Key
	ExtraChar keycode.Key
	OpCount   int
	Count0    int
	Count1    int
	Arg       int16
	SearchBuf []byte
	Retval    uint8

	motionOK bool // a motion completed this pass and may finish an operator
}

// Retval bits.
const (
	CABusy         uint8 = 1 << iota // command took over and is still busy
	CANoAdjustOpEnd                  // skip the inclusive end adjustment
)

// Editor is the collaborator contract the dispatcher drives. The
// dispatcher assembles who/where/how-many; the Editor owns the document
// and performs the actual mutation.
type Editor interface {
	Cursor() Position
	SetCursor(Position)
	LineCount() int
	LineLen(line int) int
	FirstNonBlank(line int) int

	// WordForward and WordBackward resolve word motions; bigword selects
	// WORD (whitespace-delimited) semantics.
	WordForward(from Position, count int, bigword bool) Position
	WordBackward(from Position, count int, bigword bool) Position
	WordEnd(from Position, count int, bigword bool) Position

	// FindChar resolves f/F/t/T on the cursor line, returning the target
	// column and whether it was found.
	FindChar(line int, from int, target rune, forward, till bool, count int) (col int, ok bool)

	// TextObject resolves an i/a object (iw, a", ib, ...) around from.
	TextObject(from Position, object rune, around bool, count int) (start, end Position, mt MotionType, ok bool)

	// ApplyOperator performs the completed operator over its range.
	ApplyOperator(op *OperatorArg) error

	// Put inserts register contents after (or before) the cursor.
	Put(regname byte, count int, before bool) error

	// ReplaceChar overwrites count characters at the cursor with r.
	ReplaceChar(r rune, count int) error

	// StartInsert enters Insert mode via cmd (one of iaIAoOR).
	StartInsert(cmd byte, count int) error

	Beep()
}
