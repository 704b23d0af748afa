// Package input implements the character-assembly boundary (C9) and the
// nested-invocation state save/restore layer (C11): GetOneKey drives the
// mapping engine and source multiplexer until one whole logical key is
// available, reassembling K_SPECIAL triples and multi-byte sequences on
// the way (spec.md §4.9, §4.11).
package input

import (
	"errors"
	"io"
	"time"

	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/mapping"
	"github.com/kylelemons/modaline/record"
	"github.com/kylelemons/modaline/redo"
	"github.com/kylelemons/modaline/source"
	"github.com/kylelemons/modaline/typeahead"
)

// TimedSource bounds a blocking read, for the partial-match grace periods.
// tty.Device and keycode.Escaper both implement it.
type TimedSource interface {
	ReadTimeout(timeout time.Duration) ([]byte, error)
}

// Reader owns one logical thread of key assembly over the shared pipeline
// pieces. It is single-threaded cooperative: reentrant calls (a command
// reading more keys) are guarded by a depth counter per spec.md §4.9's
// concurrency note.
type Reader struct {
	Mux    *source.Multiplexer
	Engine *mapping.Engine
	Sink   *record.Sink
	Redo   *redo.Engine

	// Timeout enables the mapping-completion grace period, TTimeout the
	// key-code-completion one; the durations mirror 'timeoutlen' and
	// 'ttimeoutlen' in milliseconds. A disabled timeout blocks forever.
	Timeout     bool
	TTimeout    bool
	TimeoutLen  time.Duration
	TTimeoutLen time.Duration

	// Timed, when set, is used for the bounded waits above. Without one
	// a partial match times out as soon as every buffered source is dry.
	Timed TimedSource

	// TerminalMode suppresses the Alt-as-ESC folding (spec.md §4.9 step d).
	TerminalMode bool

	// NormalBusy is set while a :normal-style synthetic execution is in
	// progress, which legitimizes reentrant reads.
	NormalBusy bool

	// OnCmd executes the command-line fragment of a <Cmd> mapping.
	OnCmd func(cmd string) error

	interrupted bool
	depth       int
	mods        keycode.ModMask
	saves       []*State
	scripts     []*scriptFrame
}

// New wires a Reader over the shared pipeline pieces.
func New(mux *source.Multiplexer, eng *mapping.Engine, sink *record.Sink, rd *redo.Engine) *Reader {
	return &Reader{
		Mux:         mux,
		Engine:      eng,
		Sink:        sink,
		Redo:        rd,
		Timeout:     true,
		TTimeout:    true,
		TimeoutLen:  time.Second,
		TTimeoutLen: 50 * time.Millisecond,
	}
}

// Interrupt flags the pipeline as interrupted; the flag is observed at the
// next safe point (the top of the key loop), per spec.md §5's cancellation
// model.
func (r *Reader) Interrupt() { r.interrupted = true }

// GetOneKey returns the next logical key: a Unicode scalar, a named
// special key, or Ignore, with the ambient modifier mask applied. A
// reentrant call while no :normal execution is in progress returns Ignore
// immediately instead of recursing into a blocked read.
func (r *Reader) GetOneKey() (keycode.Key, error) {
	if r.depth > 0 && !r.NormalBusy {
		return keycode.Key{Special: keycode.Ignore}, nil
	}
	r.depth++
	defer func() { r.depth-- }()

	if key, ok := r.Mux.TakePutBackKey(); ok {
		return key, nil
	}

	timedOut := false
	for {
		if r.interrupted {
			return r.handleInterrupt(), nil
		}
		out := r.Engine.Step(timedOut)
		switch out.Kind {
		case mapping.NeedInput:
			if err := r.fill(); err != nil {
				return keycode.Key{}, err
			}
			timedOut = false

		case mapping.NeedTimeout:
			got, err := r.waitMore(out.Reason)
			if err != nil {
				return keycode.Key{}, err
			}
			timedOut = !got

		case mapping.Expanded:
			if mapping.HasCmdPrefix(r.Engine.Typeahead.Bytes()) {
				if err := r.runCmdMapping(); err != nil {
					return keycode.Key{}, err
				}
			}

		case mapping.Emit:
			key, done, swallow, err := r.assemble(out.Byte, out.Typed)
			if err != nil {
				return keycode.Key{}, err
			}
			if !done {
				// A modifier triple: the modified key is still coming
				// and may itself be the start of a mapping.
				continue
			}
			r.Engine.ResetDepth()
			if swallow {
				return keycode.Key{Special: keycode.Ignore}, nil
			}
			return key, nil

		case mapping.Err:
			return keycode.Key{}, out.Err
		}
	}
}

// fill pulls one more byte from the non-typeahead sources into typeahead.
// Synthesized bytes (stuff, redo replay) join the mapped prefix so they
// are never re-recorded. Script EOF pops the frame and falls through to
// the next source.
func (r *Reader) fill() error {
	for {
		c, typed, ok, err := r.Mux.NextExternalByte(true)
		if ok {
			ta := r.Engine.Typeahead
			// The mapped-prefix counter can only describe a prefix, so a
			// synthesized byte landing behind typed bytes is carried as
			// typed; the original has the same limitation.
			nottyped := !typed && ta.Empty()
			return ta.Insert([]byte{c}, typeahead.RemapAll, ta.Len(), nottyped, false)
		}
		if errors.Is(err, io.EOF) && r.UsingScript() {
			r.popScript()
			if !r.Engine.Typeahead.Empty() {
				// The pop restored typeahead saved at push time; let the
				// engine look at it before pulling anything external.
				return nil
			}
			continue
		}
		if err == nil {
			err = io.EOF
		}
		return err
	}
}

// graceFor picks the grace period for a partial match: TimeoutLen for a
// mapping that could still extend, TTimeoutLen (falling back to
// TimeoutLen) for an incomplete key code.
func (r *Reader) graceFor(reason mapping.TimeoutReason) (enabled bool, d time.Duration) {
	if reason == mapping.PartialKeyCode {
		if r.TTimeout {
			return true, r.TTimeoutLen
		}
		return r.Timeout, r.TimeoutLen
	}
	return r.Timeout, r.TimeoutLen
}

// waitMore obtains at least one more byte for a pending partial match,
// waiting at most the applicable grace period. It reports false when the
// period elapsed with nothing new.
func (r *Reader) waitMore(reason mapping.TimeoutReason) (bool, error) {
	// Bytes already buffered internally, or sitting in a script frame,
	// arrive without any wait at all.
	if r.Mux.InternalPending() || r.UsingScript() {
		n := r.Engine.Typeahead.Len()
		err := r.fill()
		if err == nil && r.Engine.Typeahead.Len() > n {
			return true, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		return false, nil
	}

	enabled, d := r.graceFor(reason)
	if r.Timed == nil {
		if enabled {
			return false, nil
		}
		// Timeout disabled and no bounded reader: block for the byte.
		if err := r.fill(); err != nil {
			return false, err
		}
		return true, nil
	}
	if !enabled {
		d = -1
	}
	chunk, err := r.Timed.ReadTimeout(d)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if len(chunk) == 0 {
		// Timeout elapsed, or the source closed: either way the partial
		// match is as long as it is ever going to get.
		return false, nil
	}
	ta := r.Engine.Typeahead
	return true, ta.Insert(chunk, typeahead.RemapAll, ta.Len(), false, false)
}

func (r *Reader) feedSink(c byte) bool {
	if r.Sink == nil {
		return false
	}
	return r.Sink.Feed(c)
}

// takeRaw reads one byte past the mapping engine: straight off the front
// of typeahead, or from the external sources if typeahead is dry. Used for
// the trailing bytes of a K_SPECIAL triple and for UTF-8 continuation
// bytes, which never re-enter mapping (spec.md §4.9 step b).
func (r *Reader) takeRaw() (byte, bool, error) {
	ta := r.Engine.Typeahead
	if !ta.Empty() {
		typed := ta.MapLen() == 0
		c, _ := ta.ByteAt(0)
		ta.Delete(1, 0)
		if !typed {
			return c, false, nil
		}
		return c, r.feedSink(c), nil
	}
	c, typed, ok, err := r.Mux.NextExternalByte(true)
	if !ok {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, false, err
	}
	if !typed {
		return c, false, nil
	}
	return c, r.feedSink(c), nil
}

// assemble turns the emitted front byte into a complete logical key,
// reading further raw bytes as the encoding demands. done is false when
// the byte opened a modifier triple: the mask is stored and the modified
// key is still to come.
func (r *Reader) assemble(first byte, typed bool) (key keycode.Key, done, swallow bool, err error) {
	if typed {
		swallow = r.feedSink(first)
	}

	switch {
	case first == keycode.KSpecial:
		b2, sw2, err := r.takeRaw()
		if err != nil {
			return keycode.Key{}, false, false, err
		}
		b3, sw3, err := r.takeRaw()
		if err != nil {
			return keycode.Key{}, false, false, err
		}
		swallow = swallow || sw2 || sw3
		if keycode.IsModifierTriple(b2) {
			r.mods = keycode.ModMask(b3)
			return keycode.Key{}, false, swallow, nil
		}
		key, _ = keycode.DecodeNext([]byte{first, b2, b3})

	case first < 0x80:
		key = keycode.Key{Rune: rune(first)}

	default:
		// Multi-byte UTF-8 lead: accumulate continuation bytes (each
		// possibly escaped as a literal triple) until the decoder is
		// satisfied.
		acc := []byte{first}
		for {
			k, n := keycode.DecodeNext(acc)
			if !k.IsNeedMore() && n == len(acc) {
				key = k
				break
			}
			if !k.IsNeedMore() {
				// Invalid sequence: the decoder surfaced the lead byte.
				key = k
				break
			}
			c, sw, err := r.takeRaw()
			if err != nil {
				return keycode.Key{}, false, false, err
			}
			swallow = swallow || sw
			acc = append(acc, c)
		}
	}

	key.Mods |= r.mods
	r.mods = 0
	// Modifier merging runs during assembly as well as in the engine's
	// post-hoc simplification, so a modifier triple consumed here still
	// folds Ctrl-x down to its control byte (spec.md §4.2).
	key = keycode.MergeModifiers(key)
	if key.Special == keycode.Mouse {
		key.Mouse.Mods = byte(key.Mods)
	}

	// A non-mapped Alt-modified ASCII key outside Terminal mode becomes
	// ESC followed by the unmodified key, the common terminal Alt
	// representation; the unmodified key goes back into typeahead.
	if key.Mods&keycode.Alt != 0 && key.Special == keycode.None &&
		key.Rune < 0x80 && !r.TerminalMode && !keycode.MouseKey(key.Special) {
		rest := key
		rest.Mods &^= keycode.Alt
		if err := r.Engine.Typeahead.PutBackChar(rest); err != nil {
			return keycode.Key{}, false, false, err
		}
		return keycode.Key{Rune: 0x1b}, true, swallow, nil
	}

	if alias, ok := keycode.KeypadAlias(key.Special); ok {
		key = keycode.Key{Rune: alias, Mods: key.Mods}
	}

	return key, true, swallow, nil
}

// runCmdMapping collects the <Cmd>...<CR> fragment an expansion just put at
// the front of typeahead and hands it to the command-line executor. A
// malformed fragment aborts the expansion and discards the mapped bytes.
func (r *Reader) runCmdMapping() error {
	ta := r.Engine.Typeahead
	cmd, n, err := mapping.CollectCmd(ta.Bytes())
	if err != nil {
		ta.Flush(typeahead.FlushMinimal)
		return err
	}
	ta.Delete(n, 0)
	if r.OnCmd != nil {
		return r.OnCmd(string(cmd))
	}
	return nil
}

// handleInterrupt flushes all pending input and synthesizes the
// context-appropriate key: ESC inside Insert or Cmdline mode, Ctrl-C
// elsewhere (spec.md §5's cancellation model).
func (r *Reader) handleInterrupt() keycode.Key {
	r.interrupted = false
	r.CloseAllScripts()
	r.Engine.Typeahead.Flush(typeahead.FlushInput)
	r.Mux.Stuff.Clear()
	r.Mux.RedoReplay.Clear()
	if r.Engine.Mode == mapping.Insert || r.Engine.Mode == mapping.CmdLine {
		return keycode.Key{Rune: 0x1b}
	}
	return keycode.Key{Rune: 0x03}
}
