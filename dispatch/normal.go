package dispatch

import (
	"fmt"

	"github.com/kylelemons/modaline/keycode"
)

// Command implementations. Each either completes a motion (leaving the
// range on ca.Oap for doPendingOperator), completes an operator itself, or
// is a non-operator command (spec.md §4.10 step 9).

func nvNop(d *Dispatcher, ca *CommandArg) error { return nil }

func nvAbort(d *Dispatcher, ca *CommandArg) error {
	d.clearOp()
	d.Visual.Stop()
	return nil
}

// motionDone finishes a motion: the cursor moves, and a pending operator
// picks up the traversed range.
func (d *Dispatcher) motionDone(ca *CommandArg, end Position, mt MotionType, inclusive bool) {
	if d.opPending {
		ca.Oap.End = end
		ca.Oap.MotionType = mt
		ca.Oap.Inclusive = inclusive
		ca.Oap.Count = ca.Count1
		ca.motionOK = true
	}
	d.Editor.SetCursor(end)
}

func clampCol(d *Dispatcher, line, col int) int {
	if col < 0 {
		return 0
	}
	if max := d.Editor.LineLen(line); col > max {
		return max
	}
	return col
}

func clampLine(d *Dispatcher, line int) int {
	if line < 0 {
		return 0
	}
	if last := d.Editor.LineCount() - 1; line > last {
		return last
	}
	return line
}

func nvHoriz(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	delta := ca.Count1
	if ca.Arg == argLeft {
		delta = -delta
	}
	pos.Col = clampCol(d, pos.Line, pos.Col+delta)
	d.motionDone(ca, pos, CharWise, false)
	return nil
}

func nvVert(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	delta := ca.Count1
	if ca.Arg == argUp {
		delta = -delta
	}
	pos.Line = clampLine(d, pos.Line+delta)
	pos.Col = clampCol(d, pos.Line, pos.Col)
	d.motionDone(ca, pos, LineWise, false)
	return nil
}

func nvStartOfLine(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	pos.Col = 0
	d.motionDone(ca, pos, CharWise, false)
	return nil
}

func nvFirstNonBlank(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	pos.Col = d.Editor.FirstNonBlank(pos.Line)
	d.motionDone(ca, pos, CharWise, false)
	return nil
}

func nvEndOfLine(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	pos.Line = clampLine(d, pos.Line+ca.Count1-1)
	if n := d.Editor.LineLen(pos.Line); n > 0 {
		pos.Col = n - 1
	} else {
		pos.Col = 0
	}
	d.motionDone(ca, pos, CharWise, true)
	return nil
}

func nvGotoLine(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	if ca.Count0 > 0 {
		pos.Line = clampLine(d, ca.Count0-1)
	} else {
		pos.Line = d.Editor.LineCount() - 1
	}
	pos.Col = d.Editor.FirstNonBlank(pos.Line)
	d.motionDone(ca, pos, LineWise, false)
	return nil
}

func nvWordForward(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.WordForward(d.Editor.Cursor(), ca.Count1, ca.Arg == argBigWord)
	d.motionDone(ca, pos, CharWise, false)
	return nil
}

func nvWordBack(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.WordBackward(d.Editor.Cursor(), ca.Count1, ca.Arg == argBigWord)
	d.motionDone(ca, pos, CharWise, false)
	return nil
}

func nvWordEnd(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.WordEnd(d.Editor.Cursor(), ca.Count1, ca.Arg == argBigWord)
	d.motionDone(ca, pos, CharWise, true)
	return nil
}

func nvFindChar(d *Dispatcher, ca *CommandArg) error {
	return findChar(d, ca, false)
}

func nvTillChar(d *Dispatcher, ca *CommandArg) error {
	return findChar(d, ca, true)
}

func findChar(d *Dispatcher, ca *CommandArg, till bool) error {
	pos := d.Editor.Cursor()
	forward := ca.Arg == argRight
	col, ok := d.Editor.FindChar(pos.Line, pos.Col, ca.NChar.Rune, forward, till, ca.Count1)
	if !ok {
		d.Editor.Beep()
		d.clearOp()
		return nil
	}
	pos.Col = col
	d.motionDone(ca, pos, CharWise, forward)
	return nil
}

// nvOperator starts an operator, finishes a doubled one (dd, yy, cc, ...)
// over whole lines, or operates immediately on an active selection.
func nvOperator(d *Dispatcher, ca *CommandArg) error {
	op := Operator(ca.Arg)

	if d.Visual.Active {
		start, end := d.Visual.Anchor, d.Editor.Cursor()
		if end.Before(start) {
			start, end = end, start
		}
		ca.Oap.Op = op
		ca.Oap.opChar = opByte(ca)
		ca.Oap.Start = start
		ca.Oap.End = end
		ca.Oap.MotionType = d.Visual.MotionType()
		ca.Oap.Inclusive = ca.Oap.MotionType == CharWise
		ca.Oap.WasVisual = true
		ca.Oap.Count = ca.Count1
		d.Visual.Stop()
		d.opPending = true
		return d.doPendingOperator(ca)
	}

	if d.opPending && ca.Oap.Op == op {
		// Doubled operator char: operate linewise on count1 lines.
		pos := d.Editor.Cursor()
		ca.Oap.Start = Position{Line: pos.Line}
		ca.Oap.End = Position{Line: clampLine(d, pos.Line+ca.Count1-1)}
		ca.Oap.MotionType = LineWise
		ca.Oap.Count = ca.Count1
		return d.doPendingOperator(ca)
	}

	if d.opPending {
		// A different operator while one is pending clears both.
		d.clearOp()
		d.Editor.Beep()
		return nil
	}

	ca.Oap.Op = op
	ca.Oap.opChar = opByte(ca)
	ca.Oap.Start = d.Editor.Cursor()
	if ca.Regname != 0 {
		ca.Oap.Regname = ca.Regname
	}
	d.opPending = true
	d.opcount = ca.Count0
	return nil
}

func opByte(ca *CommandArg) byte {
	if ca.CmdChar.Special == keycode.None && ca.CmdChar.Rune < 0x80 {
		return byte(ca.CmdChar.Rune)
	}
	return 0
}

// nvG handles the g-prefixed commands: the prefix requires a second (in
// effect third) char, read by the dispatcher's second-char step.
func nvG(d *Dispatcher, ca *CommandArg) error {
	ca.GFlag = true
	switch ca.NChar.Rune {
	case 'g':
		pos := d.Editor.Cursor()
		if ca.Count0 > 0 {
			pos.Line = clampLine(d, ca.Count0-1)
		} else {
			pos.Line = 0
		}
		pos.Col = d.Editor.FirstNonBlank(pos.Line)
		d.motionDone(ca, pos, LineWise, false)
		return nil
	case 'j':
		ca.Arg = argDown
		return nvVert(d, ca)
	case 'k':
		ca.Arg = argUp
		return nvVert(d, ca)
	case 'u', 'U', '~', '?':
		switch ca.NChar.Rune {
		case 'u':
			ca.Arg = int16(OpLower)
		case 'U':
			ca.Arg = int16(OpUpper)
		case '~':
			ca.Arg = int16(OpTilde)
		case '?':
			ca.Arg = int16(OpRot13)
		}
		if err := nvOperator(d, ca); err != nil {
			return err
		}
		if d.opPending {
			ca.Oap.opChar = byte(ca.NChar.Rune)
			ca.Oap.opG = true
		}
		return nil
	default:
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
}

// nvInsertOrObject is i/a: Insert-mode entry normally, a text object when
// an operator is pending (spec.md §4.10 step 7's "text object after
// i/a").
func nvInsertOrObject(d *Dispatcher, ca *CommandArg) error {
	if !d.opPending && !d.Visual.Active {
		return nvInsert(d, ca)
	}
	around := ca.CmdChar.Rune == 'a'
	start, end, mt, ok := d.Editor.TextObject(d.Editor.Cursor(), ca.NChar.Rune, around, ca.Count1)
	if !ok {
		d.Editor.Beep()
		d.clearOp()
		return nil
	}
	ca.Oap.Start = start
	ca.Oap.End = end
	ca.Oap.MotionType = mt
	ca.Oap.Inclusive = mt == CharWise
	ca.Oap.Count = ca.Count1
	ca.motionOK = true
	d.Editor.SetCursor(end)
	return nil
}

func nvInsert(d *Dispatcher, ca *CommandArg) error {
	if d.opPending {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	cmd := byte(ca.CmdChar.Rune)
	d.recordSimpleRedo(ca)
	return d.Editor.StartInsert(cmd, ca.Count1)
}

func nvJoin(d *Dispatcher, ca *CommandArg) error {
	lines := ca.Count1
	if lines < 2 {
		lines = 2
	}
	pos := d.Editor.Cursor()
	return d.applyImmediate(ca, OpJoin, Position{Line: pos.Line},
		Position{Line: clampLine(d, pos.Line+lines-1)}, LineWise, false)
}

func nvDeleteChar(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	end := Position{Line: pos.Line, Col: clampCol(d, pos.Line, pos.Col+ca.Count1)}
	return d.applyImmediate(ca, OpDelete, pos, end, CharWise, false)
}

func nvTildeChar(d *Dispatcher, ca *CommandArg) error {
	pos := d.Editor.Cursor()
	end := Position{Line: pos.Line, Col: clampCol(d, pos.Line, pos.Col+ca.Count1)}
	return d.applyImmediate(ca, OpTilde, pos, end, CharWise, false)
}

func nvReplaceChar(d *Dispatcher, ca *CommandArg) error {
	if d.opPending {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	d.recordSimpleRedo(ca)
	return d.Editor.ReplaceChar(ca.NChar.Rune, ca.Count1)
}

func nvPut(d *Dispatcher, ca *CommandArg) error {
	if d.opPending {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	d.recordSimpleRedo(ca)
	return d.Editor.Put(ca.Regname, ca.Count1, ca.CmdChar.Rune == 'P')
}

// nvTranslate rewrites the shorthand commands into their canonical
// operator+motion spellings via the stuff buffer (spec.md §4.4: "for
// translated commands like D → d$").
func nvTranslate(d *Dispatcher, ca *CommandArg) error {
	if d.opPending {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	if d.Stuff == nil {
		d.Editor.Beep()
		return nil
	}
	var text string
	switch ca.CmdChar.Rune {
	case 'D':
		text = "d$"
	case 'C':
		text = "c$"
	case 'Y':
		text = "y$"
	default:
		d.Editor.Beep()
		return nil
	}
	var prefix string
	if ca.Regname != 0 {
		prefix = `"` + string(rune(ca.Regname))
	}
	if ca.Count0 > 0 {
		prefix += fmt.Sprintf("%d", ca.Count0)
	}
	d.Stuff.StuffTyped(prefix + text)
	return nil
}

// nvVisual starts/stops a selection, or records a force-motion override
// when typed between an operator and its motion.
func nvVisual(d *Dispatcher, ca *CommandArg) error {
	if d.opPending {
		switch VisualMode(ca.Arg) {
		case VisualChar:
			ca.Oap.ForceMotion = 'v'
		case VisualLine:
			ca.Oap.ForceMotion = 'V'
		case VisualBlock:
			ca.Oap.ForceMotion = 0x16
		}
		return nil
	}
	d.Visual.Start(VisualMode(ca.Arg), d.Editor.Cursor())
	return nil
}

func nvRepeat(d *Dispatcher, ca *CommandArg) error {
	if d.Redo == nil || d.ReplayBuf == nil {
		d.Editor.Beep()
		return nil
	}
	if !d.Redo.StartRedo(ca.Count0, false, d.ReplayBuf) {
		d.Editor.Beep()
	}
	return nil
}

func nvRecord(d *Dispatcher, ca *CommandArg) error {
	if d.Record == nil {
		d.Editor.Beep()
		return nil
	}
	if d.Record.Recording() {
		// The terminating q itself was already recorded; take it back out.
		d.Record.Ungetchars(1)
		data := d.Record.StopRecording()
		if d.Registers != nil {
			d.Registers.Set(d.recordReg, data)
		}
		d.recordReg = 0
		return nil
	}
	key, err := d.Keys.GetOneKey()
	if err != nil {
		return err
	}
	reg := key.Rune
	if key.Special != keycode.None || !isWordRegister(byte(reg)) {
		d.Editor.Beep()
		return nil
	}
	d.recordReg = byte(reg)
	d.Record.StartRecording(byte(reg))
	return nil
}

func nvPlayback(d *Dispatcher, ca *CommandArg) error {
	if d.Registers == nil || d.Stuff == nil {
		d.Editor.Beep()
		return nil
	}
	reg := byte(ca.NChar.Rune)
	if reg == '@' {
		if d.lastPlayback == 0 {
			d.Editor.Beep()
			return nil
		}
		reg = d.lastPlayback
	}
	if !isWordRegister(reg) {
		d.Editor.Beep()
		return nil
	}
	contents := d.Registers.Get(reg)
	if contents == nil {
		d.Editor.Beep()
		return nil
	}
	d.lastPlayback = reg
	for i := 0; i < ca.Count1; i++ {
		d.Stuff.StuffLiteral(contents)
	}
	return nil
}

func nvBracket(d *Dispatcher, ca *CommandArg) error {
	if ca.NChar.Rune != 'q' {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	nav := d.Quickfix
	if nav == nil {
		nav = NoQuickfix{}
	}
	if ca.Arg == argRight {
		return nav.Next(ca.Count1)
	}
	return nav.Prev(ca.Count1)
}

func isWordRegister(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
