package dispatch

import "github.com/kylelemons/modaline/keycode"

// doPendingOperator finishes a pending operator once its motion has
// produced a range (spec.md §4.10 step 9's post-dispatch phase).
func (d *Dispatcher) doPendingOperator(ca *CommandArg) error {
	oap := ca.Oap
	if oap.Op == OpNop {
		d.clearOp()
		return nil
	}

	// Ensure start <= end; a backward motion swaps them.
	if oap.End.Before(oap.Start) {
		oap.Start, oap.End = oap.End, oap.Start
	}

	// Inclusive motions take the end character too. Extending past the
	// trailing bytes of a multi-byte end character is the Editor's job:
	// it owns the line text, this layer only has column geometry.
	if oap.Inclusive && ca.Retval&CANoAdjustOpEnd == 0 {
		if oap.End.Col < d.Editor.LineLen(oap.End.Line) {
			oap.End.Col++
			oap.EndAdjusted = true
		}
	}

	if oap.ForceMotion != 0 {
		switch oap.ForceMotion {
		case 'v':
			oap.MotionType = CharWise
		case 'V':
			oap.MotionType = LineWise
		case 0x16:
			oap.MotionType = BlockWise
		}
	}

	if oap.MotionType == BlockWise {
		oap.BlockStartCol = oap.Start.Col
		oap.BlockEndCol = oap.End.Col
		if oap.BlockEndCol < oap.BlockStartCol {
			oap.BlockStartCol, oap.BlockEndCol = oap.BlockEndCol, oap.BlockStartCol
		}
	}

	// Yank is not redoable; everything else records its canonical
	// sequence before running, so "." replays exactly what was typed.
	if oap.Op != OpYank {
		d.recordOperatorRedo(ca)
	}

	err := d.Editor.ApplyOperator(oap)
	d.clearOp()
	return err
}

// recordOperatorRedo writes the canonical redo sequence for a completed
// operator: optional register, count, operator char(s), force-motion
// override, then the motion keys (spec.md §3's "Redo snapshot" invariant).
func (d *Dispatcher) recordOperatorRedo(ca *CommandArg) {
	if d.Redo == nil {
		return
	}
	oap := ca.Oap
	d.Redo.ResetRedo()
	if oap.Regname != 0 {
		d.Redo.AppendChar('"')
		d.Redo.AppendChar(oap.Regname)
	}
	if ca.Count0 > 0 {
		d.Redo.AppendNum(ca.Count0)
	}
	if oap.WasVisual {
		// A visual-mode operator replays over the same-size region; the
		// region geometry is re-established by the editor at apply time.
		d.appendRedoKey(ca.CmdChar)
		return
	}
	if oap.opG {
		d.Redo.AppendChar('g')
	}
	if oap.opChar != 0 {
		d.Redo.AppendChar(oap.opChar)
	}
	if oap.ForceMotion != 0 {
		d.Redo.AppendChar(oap.ForceMotion)
	}
	d.appendRedoKey(ca.CmdChar)
	if ca.NChar != (keycode.Key{}) {
		d.appendRedoKey(ca.NChar)
	}
}

// recordSimpleRedo writes count + command char (+ second char) for the
// non-operator change commands (x, r, p, i, ...).
func (d *Dispatcher) recordSimpleRedo(ca *CommandArg) {
	if d.Redo == nil {
		return
	}
	d.Redo.ResetRedo()
	if ca.Regname != 0 {
		d.Redo.AppendChar('"')
		d.Redo.AppendChar(ca.Regname)
	}
	if ca.Count0 > 0 {
		d.Redo.AppendNum(ca.Count0)
	}
	d.appendRedoKey(ca.CmdChar)
	if ca.NChar != (keycode.Key{}) {
		d.appendRedoKey(ca.NChar)
	}
}

func (d *Dispatcher) appendRedoKey(k keycode.Key) {
	if k.Special == keycode.None && k.Rune > 0 && k.Rune < 0x80 && k.Mods == 0 {
		d.Redo.AppendChar(byte(k.Rune))
		return
	}
	d.Redo.AppendRaw(keycode.Encode(nil, k.Rune, k.Special, k.Mods))
}

// applyImmediate runs a whole-command operator (x, J, ~): the range is
// known up front, so the redo record and the operator application happen
// in one step.
func (d *Dispatcher) applyImmediate(ca *CommandArg, op Operator, start, end Position, mt MotionType, inclusive bool) error {
	if d.opPending {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}
	d.recordSimpleRedo(ca)
	oap := OperatorArg{
		Op:         op,
		Regname:    ca.Regname,
		MotionType: mt,
		Inclusive:  inclusive,
		Start:      start,
		End:        end,
		Count:      ca.Count1,
		opChar:     opByte(ca),
	}
	return d.Editor.ApplyOperator(&oap)
}
