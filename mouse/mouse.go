// Package mouse defines the decoded representation of a mouse term-code
// (C13). Screen geometry (row/column resolution against window layout) is
// explicitly out of scope for this repository — see spec.md's PURPOSE &
// SCOPE; mouse.Event carries only the button/action/modifier information
// the wire protocol actually encodes in a single sub-code byte.
package mouse

// Button identifies which mouse button produced an Event.
type Button int

const (
	Left Button = iota
	Middle
	Right
	Wheel
)

func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Middle:
		return "middle"
	case Right:
		return "right"
	case Wheel:
		return "wheel"
	default:
		return "unknown"
	}
}

// Action identifies what happened to Button.
type Action int

const (
	Press Action = iota
	Drag
	Release
	WheelUp
	WheelDown
)

func (a Action) String() string {
	switch a {
	case Press:
		return "press"
	case Drag:
		return "drag"
	case Release:
		return "release"
	case WheelUp:
		return "wheel-up"
	case WheelDown:
		return "wheel-down"
	default:
		return "unknown"
	}
}

// Event is a decoded mouse term-code: which button, what happened to it, and
// the modifier mask active when the wire protocol's KS_MOUSE sub-code byte
// was produced. Screen coordinates are a collaborator's concern (window
// layout), not this pipeline's, per spec.md's scope.
type Event struct {
	Button Button
	Action Action
	Mods   byte
}

// subcode is the single byte the wire protocol spends on one mouse event:
// the low 3 bits select Button, the next 3 bits select Action, and the
// high 2 bits are reserved (carried as zero) for symmetry with the
// modifier-mask triple used elsewhere in the codec.
func encodeSubcode(e Event) byte {
	return byte(e.Button&0x7) | byte(e.Action&0x7)<<3
}

func decodeSubcode(b byte) Event {
	return Event{
		Button: Button(b & 0x7),
		Action: Action((b >> 3) & 0x7),
	}
}

// Encode returns the single sub-code byte the keycode package's K_SPECIAL
// triple carries for e (modifiers travel in a separate KS_MODIFIER triple,
// exactly as for any other special key).
func Encode(e Event) byte { return encodeSubcode(e) }

// Decode reconstructs the button/action pair from a sub-code byte produced
// by Encode. Mods is filled in by the caller (keycode.DecodeNext), which
// already tracks any preceding KS_MODIFIER triple.
func Decode(sub byte, mods byte) Event {
	e := decodeSubcode(sub)
	e.Mods = mods
	return e
}
