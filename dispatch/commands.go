package dispatch

import (
	"fmt"
	"sort"

	"github.com/kylelemons/modaline/keycode"
)

// cmdFlags are the descriptor bits spec.md §3 lists on a command
// descriptor.
type cmdFlags uint16

const (
	flagSecond      cmdFlags = 1 << iota // needs a second char
	flagSecondIfOp                       // needs a second char only when an operator is pending
	flagSecondLang                       // second char goes through the language map
	flagMayStartSel                      // may start a selection
	flagMayStopSel                       // may stop a selection
	flagRL                               // 'right-to-left' inverts the command
	flagKeepReg                          // keeps the register for the next command
	flagNotInCmdWin                      // disallowed while text is locked
	flagMotion                           // completes a pending operator's motion
)

// command is one descriptor: a command code, its implementation, flags,
// and a small per-command argument.
type command struct {
	key   int
	fn    func(d *Dispatcher, ca *CommandArg) error
	flags cmdFlags
	arg   int16
}

// cmdKey collapses a logical key into one sortable command code: plain
// runes map to themselves, named specials to pseudo-codes past the Unicode
// range (spec.md §3: "command character (including special-key
// pseudo-codes beyond byte range)").
func cmdKey(k keycode.Key) int {
	if k.Special != keycode.None {
		return 0x110000 + int(k.Special)
	}
	return int(k.Rune)
}

// Per-command arg values for the shared direction-selecting
// implementations.
const (
	argLeft int16 = iota
	argRight
	argUp
	argDown
)

// argBigWord selects WORD (whitespace-delimited) semantics for the word
// motions, which interpret the per-command arg as a flag instead.
const argBigWord int16 = 1

// commands is the command table, sorted by key so findCommand can binary
// search it. The init check below keeps it that way.
var commands = []command{
	{key: 0x03, fn: nvAbort},                                         // Ctrl-C
	{key: 0x16, fn: nvVisual, arg: int16(VisualBlock)},               // Ctrl-V
	{key: 0x1b, fn: nvAbort, flags: flagMayStopSel},                  // Esc
	{key: '!', fn: nvOperator, arg: int16(OpFilter)},
	{key: '$', fn: nvEndOfLine, flags: flagMotion | flagRL},
	{key: '.', fn: nvRepeat, flags: flagNotInCmdWin},
	{key: '0', fn: nvStartOfLine, flags: flagMotion | flagRL},
	{key: '<', fn: nvOperator, flags: flagRL, arg: int16(OpShiftLeft)},
	{key: '=', fn: nvOperator, arg: int16(OpIndent)},
	{key: '>', fn: nvOperator, flags: flagRL, arg: int16(OpShiftRight)},
	{key: '@', fn: nvPlayback, flags: flagSecond | flagNotInCmdWin},
	{key: 'B', fn: nvWordBack, flags: flagMotion, arg: argBigWord},
	{key: 'C', fn: nvTranslate},
	{key: 'D', fn: nvTranslate},
	{key: 'E', fn: nvWordEnd, flags: flagMotion, arg: argBigWord},
	{key: 'F', fn: nvFindChar, flags: flagSecond | flagSecondLang | flagMotion, arg: argLeft},
	{key: 'G', fn: nvGotoLine, flags: flagMotion},
	{key: 'I', fn: nvInsert},
	{key: 'J', fn: nvJoin},
	{key: 'O', fn: nvInsert},
	{key: 'P', fn: nvPut},
	{key: 'R', fn: nvInsert},
	{key: 'T', fn: nvTillChar, flags: flagSecond | flagSecondLang | flagMotion, arg: argLeft},
	{key: 'V', fn: nvVisual, flags: flagMayStartSel, arg: int16(VisualLine)},
	{key: 'W', fn: nvWordForward, flags: flagMotion, arg: argBigWord},
	{key: 'Y', fn: nvTranslate},
	{key: '[', fn: nvBracket, flags: flagSecond, arg: argLeft},
	{key: ']', fn: nvBracket, flags: flagSecond, arg: argRight},
	{key: '^', fn: nvFirstNonBlank, flags: flagMotion | flagRL},
	{key: 'a', fn: nvInsertOrObject, flags: flagSecondIfOp | flagMotion},
	{key: 'b', fn: nvWordBack, flags: flagMotion},
	{key: 'c', fn: nvOperator, arg: int16(OpChange)},
	{key: 'd', fn: nvOperator, arg: int16(OpDelete)},
	{key: 'e', fn: nvWordEnd, flags: flagMotion},
	{key: 'f', fn: nvFindChar, flags: flagSecond | flagSecondLang | flagMotion, arg: argRight},
	{key: 'g', fn: nvG, flags: flagSecond | flagMotion},
	{key: 'h', fn: nvHoriz, flags: flagMotion | flagRL, arg: argLeft},
	{key: 'i', fn: nvInsertOrObject, flags: flagSecondIfOp | flagMotion},
	{key: 'j', fn: nvVert, flags: flagMotion, arg: argDown},
	{key: 'k', fn: nvVert, flags: flagMotion, arg: argUp},
	{key: 'l', fn: nvHoriz, flags: flagMotion | flagRL, arg: argRight},
	{key: 'o', fn: nvInsert},
	{key: 'p', fn: nvPut},
	{key: 'q', fn: nvRecord, flags: flagNotInCmdWin},
	{key: 'r', fn: nvReplaceChar, flags: flagSecond | flagSecondLang},
	{key: 't', fn: nvTillChar, flags: flagSecond | flagSecondLang | flagMotion, arg: argRight},
	{key: 'v', fn: nvVisual, flags: flagMayStartSel, arg: int16(VisualChar)},
	{key: 'w', fn: nvWordForward, flags: flagMotion},
	{key: 'x', fn: nvDeleteChar},
	{key: 'y', fn: nvOperator, arg: int16(OpYank)},
	{key: '~', fn: nvTildeChar},

	{key: 0x110000 + int(keycode.Up), fn: nvVert, flags: flagMotion, arg: argUp},
	{key: 0x110000 + int(keycode.Down), fn: nvVert, flags: flagMotion, arg: argDown},
	{key: 0x110000 + int(keycode.Left), fn: nvHoriz, flags: flagMotion | flagRL, arg: argLeft},
	{key: 0x110000 + int(keycode.Right), fn: nvHoriz, flags: flagMotion | flagRL, arg: argRight},
	{key: 0x110000 + int(keycode.Home), fn: nvStartOfLine, flags: flagMotion},
	{key: 0x110000 + int(keycode.End), fn: nvEndOfLine, flags: flagMotion},
	{key: 0x110000 + int(keycode.Delete), fn: nvDeleteChar},
	{key: 0x110000 + int(keycode.Ignore), fn: nvNop},
	{key: 0x110000 + int(keycode.Nop), fn: nvNop},
}

func init() {
	for i := 1; i < len(commands); i++ {
		if commands[i-1].key >= commands[i].key {
			panic(fmt.Sprintf("dispatch: command table out of order at %d (0x%x >= 0x%x)",
				i, commands[i-1].key, commands[i].key))
		}
	}
}

// findCommand binary-searches the table by command code.
func findCommand(key int) *command {
	i := sort.Search(len(commands), func(i int) bool { return commands[i].key >= key })
	if i < len(commands) && commands[i].key == key {
		return &commands[i]
	}
	return nil
}

// invertRL swaps the horizontal sense of a command for 'right-to-left'
// display (spec.md §4.10 step 6).
func invertRL(k keycode.Key) keycode.Key {
	switch {
	case k.Special == keycode.Left:
		k.Special = keycode.Right
	case k.Special == keycode.Right:
		k.Special = keycode.Left
	case k.Rune == 'h':
		k.Rune = 'l'
	case k.Rune == 'l':
		k.Rune = 'h'
	case k.Rune == '>':
		k.Rune = '<'
	case k.Rune == '<':
		k.Rune = '>'
	case k.Rune == '$':
		k.Rune = '0'
	case k.Rune == '0':
		k.Rune = '$'
	case k.Rune == '^':
		// first-nonblank has no mirror; leave it
	}
	return k
}
