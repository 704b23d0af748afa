// Package record implements the recording and script sink (C7): a
// byte-assembly state machine that waits for one complete logical key
// before flushing it, atomically, to whichever of the script-output file,
// the on-key callback, and the record buffer are currently active
// (spec.md §4.7).
package record

import (
	"io"

	"github.com/google/uuid"

	"github.com/kylelemons/modaline/block"
	"github.com/kylelemons/modaline/keycode"
)

// OnKeyFunc observes a completed logical key and the raw bytes that
// produced it; returning true ("swallow") suppresses the key from the
// caller (spec.md §6: the dispatcher then sees K_IGNORE).
type OnKeyFunc func(key keycode.Key, raw []byte) (swallow bool)

// Session correlates one q<reg>…q recording span end-to-end through
// structured log lines (SPEC_FULL.md's Macro Session supplement), using a
// uuid the same way the reference corpus's other long-lived-span trackers
// do (Conceptual-Machines/magda-api, sentra, rxid09672-sliver-plus).
type Session struct {
	ID       uuid.UUID
	Register byte
}

// Sink accumulates bytes until keycode.DecodeNext reports a complete
// logical key, then flushes the whole accumulated region to every active
// observer in one atomic call — the invariant spec.md §4.7 says makes
// Ungetchars (undo the last recorded key) well-defined.
type Sink struct {
	pending []byte

	// IgnorePrefix counts bytes at the front of the next completed key
	// that should be withheld from OnKey (used when replaying something
	// that shouldn't re-trigger user callbacks).
	IgnorePrefix int

	ScriptOut io.Writer
	OnKey     OnKeyFunc

	recordBuf  *block.Buffer
	session    *Session
	flushLens  []int // length of each flush written to recordBuf, for Ungetchars
}

// NewSink returns an empty Sink with no script output, no callback, and no
// active recording.
func NewSink() *Sink { return &Sink{} }

// Recording reports whether a q<reg> macro capture is in progress.
func (s *Sink) Recording() bool { return s.recordBuf != nil }

// StartRecording begins capturing into a fresh record buffer tagged with a
// new Session for reg, returning that Session.
func (s *Sink) StartRecording(reg byte) *Session {
	s.recordBuf = block.New()
	s.flushLens = nil
	s.session = &Session{ID: uuid.New(), Register: reg}
	return s.session
}

// StopRecording ends the capture and returns everything recorded.
func (s *Sink) StopRecording() []byte {
	if s.recordBuf == nil {
		return nil
	}
	out := s.recordBuf.AsSingleString()
	s.recordBuf = nil
	s.flushLens = nil
	s.session = nil
	return out
}

// Session returns the in-progress recording's Session, or nil.
func (s *Sink) Session() *Session { return s.session }

// Ungetchars removes the most recently flushed n logical keys from the
// in-progress recording, undoing them as if they had never been typed
// (spec.md §6's ungetchars(n)).
func (s *Sink) Ungetchars(n int) {
	if s.recordBuf == nil {
		return
	}
	for i := 0; i < n && len(s.flushLens) > 0; i++ {
		last := s.flushLens[len(s.flushLens)-1]
		s.flushLens = s.flushLens[:len(s.flushLens)-1]
		s.recordBuf.DeleteTail(last)
	}
}

// Feed appends one raw byte (already past mapping — spec.md §4.7 observes
// "every typed byte, post-mapping") and flushes to observers exactly when
// a complete logical key has accumulated. It reports whether the on-key
// callback asked for the completed key to be swallowed.
func (s *Sink) Feed(b byte) (swallow bool) {
	s.pending = append(s.pending, b)
	key, n := keycode.DecodeNext(s.pending)
	if key.IsNeedMore() {
		return false
	}
	raw := s.pending[:n]
	rest := s.pending[n:]
	swallow = s.flush(key, raw)
	s.pending = append([]byte(nil), rest...)
	// A stray trailing byte that itself completes another key (shouldn't
	// happen when fed one byte at a time, but guard defensively) gets
	// flushed too.
	for len(s.pending) > 0 {
		key, n = keycode.DecodeNext(s.pending)
		if key.IsNeedMore() || n == 0 {
			return swallow
		}
		raw = s.pending[:n]
		if s.flush(key, raw) {
			swallow = true
		}
		s.pending = append([]byte(nil), s.pending[n:]...)
	}
	return swallow
}

func (s *Sink) flush(key keycode.Key, raw []byte) (swallow bool) {
	if s.ScriptOut != nil {
		s.ScriptOut.Write(raw)
	}
	ignore := s.IgnorePrefix
	if ignore < 0 {
		ignore = 0
	}
	if ignore > len(raw) {
		ignore = len(raw)
	}
	s.IgnorePrefix -= ignore
	if s.OnKey != nil && ignore < len(raw) {
		swallow = s.OnKey(key, raw[ignore:])
	}
	if s.recordBuf != nil {
		s.recordBuf.Append(raw)
		s.flushLens = append(s.flushLens, len(raw))
	}
	return swallow
}

// Frame is a deep-copied snapshot of the sink's key-assembly and recording
// state, part of a state save/restore frame (spec.md §4.11).
type Frame struct {
	pending      []byte
	ignorePrefix int
	recording    bool
	recorded     []byte
	flushLens    []int
	session      *Session
}

// Save snapshots the sink.
func (s *Sink) Save() Frame {
	f := Frame{
		pending:      append([]byte(nil), s.pending...),
		ignorePrefix: s.IgnorePrefix,
		session:      s.session,
	}
	if s.recordBuf != nil {
		f.recording = true
		f.recorded = s.recordBuf.AsSingleString()
		f.flushLens = append([]int(nil), s.flushLens...)
	}
	return f
}

// Restore reinstates a snapshot taken by Save.
func (s *Sink) Restore(f Frame) {
	s.pending = append([]byte(nil), f.pending...)
	s.IgnorePrefix = f.ignorePrefix
	s.session = f.session
	if f.recording {
		s.recordBuf = block.New()
		s.recordBuf.Append(f.recorded)
		s.flushLens = append([]int(nil), f.flushLens...)
	} else {
		s.recordBuf = nil
		s.flushLens = nil
	}
}
