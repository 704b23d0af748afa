// Package redo implements the redo engine (C8): the byte-block buffer that
// records the last change so "." can replay it, plus the nested
// save/restore and script-replay machinery spec.md §4.8 describes.
package redo

import (
	"strconv"

	"github.com/kylelemons/modaline/block"
)

// Engine owns the current and previous redo buffers and the block_redo
// guard that prevents "." replay from recursively overwriting redo while
// it runs.
type Engine struct {
	current *block.Buffer
	old     *block.Buffer

	blockRedo bool
}

// NewEngine returns an Engine with empty current/old buffers.
func NewEngine() *Engine {
	return &Engine{current: block.New(), old: block.New()}
}

// ResetRedo swaps current into old (the previous old is dropped) so the
// next command starts a fresh redo sequence while "<C-O> ." can still
// replay the one before (spec.md §4.8, testable property 9).
func (e *Engine) ResetRedo() {
	e.old = e.current
	e.current = block.New()
}

// CancelRedo discards the current redo buffer and restores old into it —
// the undo of ResetRedo, used when a command turns out not to be
// redo-worthy after all.
func (e *Engine) CancelRedo() {
	e.current = e.old
	e.old = block.New()
}

// AppendChar appends one literal byte, K_SPECIAL-escaping is the caller's
// responsibility (callers pass already-encoded key bytes).
func (e *Engine) AppendChar(b byte) {
	if e.blockRedo {
		return
	}
	e.current.Append([]byte{b})
}

// AppendNum appends the decimal ASCII representation of n (used for the
// count portion of the canonical redo sequence).
func (e *Engine) AppendNum(n int) {
	if e.blockRedo {
		return
	}
	e.current.Append([]byte(strconv.Itoa(n)))
}

// AppendRaw appends pre-escaped bytes verbatim.
func (e *Engine) AppendRaw(p []byte) {
	if e.blockRedo {
		return
	}
	e.current.Append(p)
}

// AppendLiteralEscaped appends text as a sequence of <C-V>+byte pairs (as
// if the user had typed each byte literally), with one quirk preserved
// from the original: if text ends in '0' or '^' a harmless trailing NUL is
// appended afterward so a later StartRedo's count-prefix scan can't
// misparse the tail as the start of a new count (spec.md §6's
// append_redo_lit note).
func (e *Engine) AppendLiteralEscaped(text []byte) {
	if e.blockRedo {
		return
	}
	const ctrlV = 0x16
	for _, b := range text {
		e.current.Append([]byte{ctrlV, b})
	}
	if n := len(text); n > 0 && (text[n-1] == '0' || text[n-1] == '^') {
		e.current.Append([]byte{0})
	}
}

// Frame is a deep-copied snapshot of both redo buffers, produced by
// SaveRedo and consumed by RestoreRedo, so a "." executed inside an
// autocommand or user function doesn't clobber the enclosing redo (spec.md
// §4.8, §4.11).
type Frame struct {
	current   []byte
	old       []byte
	blockRedo bool
}

// SaveRedo snapshots both buffers.
func (e *Engine) SaveRedo() Frame {
	return Frame{
		current:   e.current.AsSingleString(),
		old:       e.old.AsSingleString(),
		blockRedo: e.blockRedo,
	}
}

// RestoreRedo replaces both buffers with the contents of f.
func (e *Engine) RestoreRedo(f Frame) {
	e.current = block.New()
	e.current.Append(f.current)
	e.old = block.New()
	e.old.Append(f.old)
	e.blockRedo = f.blockRedo
}

// splitCanonical parses the canonical redo sequence's optional register
// prefix (`"` + one byte) and optional leading decimal count, returning
// the three pieces: (register-prefix-bytes, count-digits, rest).
func splitCanonical(data []byte) (prefix, digits, rest []byte) {
	i := 0
	if len(data) >= 2 && data[0] == '"' {
		prefix = data[0:2]
		i = 2
	}
	j := i
	for j < len(data) && data[j] >= '0' && data[j] <= '9' {
		j++
	}
	return prefix, data[i:j], data[j:]
}

// StartRedo copies the redo (or, if useOld, old-redo) buffer into dst,
// overriding its embedded count with count if count != 0 and preserving
// any register prefix, so that reads from dst reconstruct the original
// logical keys with the new count substituted in (spec.md §4.8). It
// reports whether there was anything to redo.
func (e *Engine) StartRedo(count int, useOld bool, dst *block.Buffer) bool {
	// A replay started while the previous one is still being read would
	// interleave two command streams; refuse instead.
	if !dst.Empty() {
		return false
	}
	src := e.current
	if useOld {
		src = e.old
	}
	data := src.AsSingleString()
	if len(data) == 0 {
		return false
	}

	prefix, digits, rest := splitCanonical(data)
	dst.Clear()
	dst.StartRead()
	dst.Append(prefix)
	if count != 0 {
		dst.Append([]byte(strconv.Itoa(count)))
	} else {
		dst.Append(digits)
	}
	dst.Append(rest)
	return true
}

// insertLetters is the set of Insert-mode entry commands start_redo_insert
// recognizes (spec.md §4.8).
var insertLetters = map[byte]bool{'A': true, 'a': true, 'I': true, 'i': true, 'R': true, 'r': true, 'O': true, 'o': true}

// StartRedoInsert prepares dst to replay the text typed during the last
// Insert-mode session for "." inside Insert mode: it skips the register,
// count, and command letter, appends a newline first for O/o (which open a
// new line before inserting), and sets BlockRedo so the replayed insert
// doesn't overwrite redo with itself (spec.md §4.8).
func (e *Engine) StartRedoInsert(dst *block.Buffer) bool {
	if !dst.Empty() {
		return false
	}
	data := e.current.AsSingleString()
	_, _, rest := splitCanonical(data)
	if len(rest) == 0 || !insertLetters[rest[0]] {
		return false
	}
	cmd := rest[0]
	body := rest[1:]

	dst.Clear()
	dst.StartRead()
	if cmd == 'O' || cmd == 'o' {
		dst.Append([]byte{'\n'})
	}
	dst.Append(body)
	e.blockRedo = true
	return true
}

// EndRedoInsert clears the BlockRedo guard set by StartRedoInsert, once
// the replayed insert session has finished.
func (e *Engine) EndRedoInsert() { e.blockRedo = false }

// BlockRedo reports whether redo appends are currently suppressed.
func (e *Engine) BlockRedo() bool { return e.blockRedo }
