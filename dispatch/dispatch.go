package dispatch

import (
	"errors"
	"math"

	"github.com/kylelemons/modaline/block"
	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/record"
	"github.com/kylelemons/modaline/redo"
)

// Errors surfaced by one dispatcher pass.
var (
	ErrUnknownCommand = errors.New("dispatch: unknown command")
	ErrTextLocked     = errors.New("dispatch: not allowed here")
)

// KeySource delivers logical keys; input.Reader implements it.
type KeySource interface {
	GetOneKey() (keycode.Key, error)
}

// Stuffer injects synthesized commands ahead of typeahead;
// source.Multiplexer implements it.
type Stuffer interface {
	StuffTyped(text string)
	StuffLiteral(p []byte)
}

// RegisterFile stores named register contents in the wire protocol.
type RegisterFile interface {
	Get(name byte) []byte
	Set(name byte, contents []byte)
}

// MapRegisters is the bundled in-memory RegisterFile.
type MapRegisters map[byte][]byte

func (m MapRegisters) Get(name byte) []byte { return m[name] }

func (m MapRegisters) Set(name byte, contents []byte) { m[name] = contents }

// Dispatcher is the normal-mode state machine (C10). One ExecuteCommand
// call reads exactly one command: optional register, count, command char,
// optional second char, then dispatches and finishes any pending operator.
type Dispatcher struct {
	Keys      KeySource
	Editor    Editor
	Redo      *redo.Engine
	ReplayBuf *block.Buffer
	Stuff     Stuffer
	Registers RegisterFile
	Record    *record.Sink
	Quickfix  QuickfixNavigator
	Visual    VisualState
	Digraphs  *DigraphTable

	// OnCursorMoved fires after a command when the cursor location
	// changed, the hook CursorMoved-style observers attach to.
	OnCursorMoved func(Position)

	// LangMap, when set, translates a second char read under the
	// language map (spec.md §4.10 step 7).
	LangMap func(r rune) rune

	// RightToLeft inverts the horizontal commands flagged for it.
	RightToLeft bool

	// TextLocked forbids the commands flagged flagNotInCmdWin (spec.md
	// §4.10 step 6's "text is locked" guard).
	TextLocked bool

	opcount      int
	pending      OperatorArg
	opPending    bool
	finishOp     bool
	recordReg    byte
	lastPlayback byte
}

// New wires a Dispatcher with the bundled defaults: no quickfix list, an
// in-memory register file, and the default digraph table.
func New(keys KeySource, ed Editor) *Dispatcher {
	return &Dispatcher{
		Keys:      keys,
		Editor:    ed,
		Quickfix:  NoQuickfix{},
		Registers: MapRegisters{},
		Digraphs:  NewDigraphTable(),
	}
}

// OperatorPending reports whether an operator is waiting for its motion.
func (d *Dispatcher) OperatorPending() bool { return d.opPending }

func (d *Dispatcher) clearOp() {
	d.pending.Clear()
	d.opPending = false
	d.opcount = 0
}

const maxCount = math.MaxInt32

func satMul10Add(count, digit int) int {
	if count > (maxCount-digit)/10 {
		return maxCount
	}
	return count*10 + digit
}

func satMul(a, b int) int {
	if b != 0 && a > maxCount/b {
		return maxCount
	}
	return a * b
}

func validRegister(b byte) bool {
	if isWordRegister(b) {
		return true
	}
	switch b {
	case '"', '*', '+', '-', ':', '.', '%', '#', '=', '_', '/':
		return true
	}
	return false
}

// ExecuteCommand runs one dispatcher pass (spec.md §4.10's ten steps). It
// returns nil for a consumed-but-inert key (Ignore, a beeped unknown) and
// an error when the key source fails or a command reports one.
func (d *Dispatcher) ExecuteCommand() error {
	// Step 1: fresh scratch; carry the operator count over.
	ca := CommandArg{Oap: &d.pending}
	if d.opPending {
		ca.OpCount = d.opcount
	}
	d.finishOp = d.opPending

	key, err := d.Keys.GetOneKey()
	if err != nil {
		return err
	}
	if key.Special == keycode.Ignore {
		return nil
	}

	// Steps 2 and 3: register prefix and leading count, looping so a
	// count may follow the register ("a3dw) and counts multiply when
	// given more than once.
	regCount := 0
	for {
		if key.Special == keycode.None &&
			(key.Rune >= '1' && key.Rune <= '9' || (ca.Count0 > 0 && key.Rune == '0')) {
			ca.Count0 = satMul10Add(ca.Count0, int(key.Rune-'0'))
			if key, err = d.Keys.GetOneKey(); err != nil {
				return err
			}
			continue
		}
		if key.Special == keycode.None && key.Rune == '"' && ca.Regname == 0 {
			rk, err := d.Keys.GetOneKey()
			if err != nil {
				return err
			}
			if rk.Special != keycode.None || rk.Rune >= 0x80 || !validRegister(byte(rk.Rune)) {
				d.clearOp()
				d.Editor.Beep()
				return nil
			}
			ca.Regname = byte(rk.Rune)
			regCount, ca.Count0 = ca.Count0, 0
			if key, err = d.Keys.GetOneKey(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if regCount > 0 {
		if ca.Count0 > 0 {
			ca.Count0 = satMul(regCount, ca.Count0)
		} else {
			ca.Count0 = regCount
		}
	}

	// Step 4 and 5: the command char selects a descriptor.
	ca.CmdChar = key
	cmd := findCommand(cmdKey(key))
	if cmd == nil {
		d.clearOp()
		d.Editor.Beep()
		return nil
	}

	// Step 6: guards.
	if d.TextLocked && cmd.flags&flagNotInCmdWin != 0 {
		d.clearOp()
		d.Editor.Beep()
		return ErrTextLocked
	}
	if d.RightToLeft && cmd.flags&flagRL != 0 {
		ca.CmdChar = invertRL(key)
		if c := findCommand(cmdKey(ca.CmdChar)); c != nil {
			cmd = c
		}
	}
	ca.Arg = cmd.arg

	// Step 7: the second char, when the descriptor wants one.
	if cmd.flags&flagSecond != 0 || (cmd.flags&flagSecondIfOp != 0 && (d.opPending || d.Visual.Active)) {
		nch, abort, err := d.readSecondChar(cmd)
		if err != nil {
			return err
		}
		if abort {
			d.clearOp()
			return nil
		}
		ca.NChar = nch
	}

	// Step 8: effective count.
	switch {
	case ca.OpCount > 0 && ca.Count0 > 0:
		ca.Count0 = satMul(ca.OpCount, ca.Count0)
	case ca.OpCount > 0:
		ca.Count0 = ca.OpCount
	}
	ca.Count1 = ca.Count0
	if ca.Count1 < 1 {
		ca.Count1 = 1
	}
	if ca.Regname != 0 && d.opPending {
		ca.Oap.Regname = ca.Regname
	}

	// Step 9: dispatch, then finish any pending operator whose motion
	// this command completed.
	before := d.Editor.Cursor()
	cmdErr := cmd.fn(d, &ca)
	if d.opPending && ca.Oap.Op != OpNop && ca.motionOK {
		if opErr := d.doPendingOperator(&ca); cmdErr == nil {
			cmdErr = opErr
		}
	}

	// Step 10: post-dispatch bookkeeping.
	if !d.opPending {
		d.opcount = 0
	}
	if after := d.Editor.Cursor(); d.OnCursorMoved != nil && after != before {
		d.OnCursorMoved(after)
	}
	return cmdErr
}

// readSecondChar pulls the descriptor's second key, handling embedded
// digraph entry (Ctrl-K a b) and the <C-\><C-N> abort-to-Normal sequence.
func (d *Dispatcher) readSecondChar(cmd *command) (nch keycode.Key, abort bool, err error) {
	k, err := d.Keys.GetOneKey()
	if err != nil {
		return keycode.Key{}, false, err
	}
	if k.Special == keycode.None {
		switch k.Rune {
		case 0x0b: // Ctrl-K: collect a digraph
			a, err := d.Keys.GetOneKey()
			if err != nil {
				return keycode.Key{}, false, err
			}
			b, err := d.Keys.GetOneKey()
			if err != nil {
				return keycode.Key{}, false, err
			}
			if r, ok := d.Digraphs.Lookup(a.Rune, b.Rune); ok {
				return keycode.Key{Rune: r}, false, nil
			}
			d.Editor.Beep()
			return keycode.Key{}, true, nil
		case 0x1c: // Ctrl-\: only Ctrl-N may follow, aborting to Normal
			k2, err := d.Keys.GetOneKey()
			if err != nil {
				return keycode.Key{}, false, err
			}
			if k2.Special == keycode.None && k2.Rune == 0x0e {
				return keycode.Key{}, true, nil
			}
			d.Editor.Beep()
			return keycode.Key{}, true, nil
		case 0x1b: // Esc aborts the pending command
			return keycode.Key{}, true, nil
		}
	}
	if cmd.flags&flagSecondLang != 0 && d.LangMap != nil && k.Special == keycode.None {
		k.Rune = d.LangMap(k.Rune)
	}
	return k, false, nil
}
