package mapping

import (
	"strings"
	"unicode/utf8"

	"github.com/kylelemons/modaline/keycode"
)

// namedSpecials maps a bracket-notation name (case-insensitive, the part
// between < and >) to the Special it represents, for the subset of keys a
// mapping's LHS/RHS realistically names.
var namedSpecials = map[string]keycode.Special{
	"up":       keycode.Up,
	"down":     keycode.Down,
	"left":     keycode.Left,
	"right":    keycode.Right,
	"home":     keycode.Home,
	"end":      keycode.End,
	"pageup":   keycode.PageUp,
	"pagedown": keycode.PageDown,
	"insert":   keycode.Insert,
	"del":      keycode.Delete,
	"delete":   keycode.Delete,
	"bs":       keycode.Backspace,
	"help":     keycode.Help,
	"undo":     keycode.Undo,
	"ignore":   keycode.Ignore,
	"nop":      keycode.Nop,
}

// Keys expands Vim-style angle-bracket notation (<CR>, <Esc>, <C-x>,
// <S-Tab>, ...) into the wire-protocol byte string the rest of the
// pipeline operates on — the Go-idiomatic equivalent of replace_termcodes.
// Plain ASCII passes through unescaped; <Plug> and <Cmd> become the
// literal sentinel byte strings PlugPrefix/CmdPrefix so the engine can
// recognize them without parsing notation at match time.
func Keys(s string) []byte {
	var out []byte
	for i := 0; i < len(s); {
		if s[i] == '<' {
			if end := strings.IndexByte(s[i:], '>'); end > 0 {
				name := s[i+1 : i+end]
				if consumed, ok := expandNotation(name); ok {
					out = append(out, consumed...)
					i += end + 1
					continue
				}
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		out = keycode.Encode(out, r, keycode.None, 0)
		i += size
	}
	return out
}

// PlugPrefix and CmdPrefix are internal sentinel byte strings used to mark
// <Plug> and <Cmd> boundaries in an LHS/RHS. They are not valid wire-
// protocol triples (their second byte, 0xD0, is never assigned to a named
// key — see keycode.namedKeys's allocation), so they can never collide
// with real input.
var (
	PlugPrefix = []byte{keycode.KSpecial, 0xD0, 0x01}
	CmdPrefix  = []byte{keycode.KSpecial, 0xD0, 0x02}
)

func expandNotation(name string) ([]byte, bool) {
	lower := strings.ToLower(name)
	switch lower {
	case "cr", "enter", "return":
		return []byte{'\r'}, true
	case "esc":
		return []byte{0x1b}, true
	case "tab":
		return []byte{'\t'}, true
	case "space":
		return []byte{' '}, true
	case "lt":
		return []byte{'<'}, true
	case "plug":
		return append([]byte{}, PlugPrefix...), true
	case "cmd":
		return append([]byte{}, CmdPrefix...), true
	}
	if sp, ok := namedSpecials[lower]; ok {
		return keycode.Encode(nil, 0, sp, 0), true
	}
	if len(lower) >= 3 && lower[1] == '-' {
		var mods keycode.ModMask
		switch lower[0] {
		case 'c':
			mods = keycode.Ctrl
		case 's':
			mods = keycode.Shift
		case 'a', 'm':
			mods = keycode.Alt
		case 'd':
			mods = keycode.Command
		default:
			return nil, false
		}
		rest := name[2:]
		if sp, ok := namedSpecials[strings.ToLower(rest)]; ok {
			return keycode.Encode(nil, 0, sp, mods), true
		}
		if len(rest) == 1 {
			return keycode.Encode(nil, rune(rest[0]), keycode.None, mods), true
		}
	}
	return nil, false
}

// HasPlugPrefix reports whether p begins with the <Plug> sentinel, which
// is always mappable even past a noremap guard (spec.md §4.6).
func HasPlugPrefix(p []byte) bool {
	return len(p) >= len(PlugPrefix) && string(p[:len(PlugPrefix)]) == string(PlugPrefix)
}

// HasCmdPrefix reports whether p begins with the <Cmd> sentinel.
func HasCmdPrefix(p []byte) bool {
	return len(p) >= len(CmdPrefix) && string(p[:len(CmdPrefix)]) == string(CmdPrefix)
}
