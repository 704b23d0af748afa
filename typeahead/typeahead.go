// Package typeahead implements the multi-source typeahead buffer (C3): one
// linear byte array with a parallel remap-mask array, a head offset/length,
// and counters tracking how much of the front of the buffer came from a
// mapping expansion rather than the user (spec.md §3, §4.3).
package typeahead

import (
	"errors"

	"github.com/kylelemons/modaline/keycode"
)

// Margin is the reserved slack kept on either side of the valid region so a
// short prepend or append can be serviced in place instead of reallocating
// (spec.md §3: "a reserved margin MARGIN exists on either side").
const Margin = 32

// lookahead is the minimum slack kept after len so DecodeNext-style callers
// can always peek a few bytes past the logical end without a bounds check.
const lookahead = 4

// ErrOverflow is returned by Insert when growing the buffer would exceed
// the typeahead size limit (spec.md §7: "Typeahead overflow").
var ErrOverflow = errors.New("typeahead: input buffer full")

// RemapPolicy controls which newly inserted bytes are eligible for further
// mapping (spec.md §4.3).
type RemapPolicy int

const (
	// RemapAll marks every inserted byte as mappable.
	RemapAll RemapPolicy = iota
	// RemapNone marks every inserted byte as not mappable.
	RemapNone
	// RemapScript marks every inserted byte as mappable only by
	// script-local mappings.
	RemapScript
	// RemapSkip marks only the first inserted byte as not mappable;
	// abbreviations may still trigger on it.
	RemapSkip
)

// Per-byte remap-mask values (spec.md §3's four-way enum).
type mask byte

const (
	maskRemap mask = iota
	maskNoRemap
	maskScriptOnly
	maskAbbrOnly
)

// maxSize bounds growth so ErrOverflow can fire before int overflow, per
// spec.md §7 ("> INT_MAX - MARGIN").
const maxSize = 1 << 20

// Buffer is the typeahead buffer. The zero value is not usable; use New.
type Buffer struct {
	buf     []byte
	remap   []mask
	off     int
	len     int
	maplen  int
	silent  int
	noAbbr  int
	changes uint64
}

// New returns an empty Buffer.
func New() *Buffer {
	b := &Buffer{}
	b.realloc(2 * Margin)
	return b
}

// Len reports the number of valid, unconsumed bytes.
func (b *Buffer) Len() int { return b.len }

// Empty reports whether there are no valid bytes.
func (b *Buffer) Empty() bool { return b.len == 0 }

// ChangeCount returns the monotonically increasing tag bumped by every
// structural mutation (spec.md §3's change_cnt); callers that cache a
// pointer or index into the buffer across a suspension point must recheck
// this before trusting the cached value (spec.md §9's pointer hazard).
func (b *Buffer) ChangeCount() uint64 { return b.changes }

// MapLen, Silent, and NoAbbrCount expose the three prefix counters.
func (b *Buffer) MapLen() int     { return b.maplen }
func (b *Buffer) Silent() int     { return b.silent }
func (b *Buffer) NoAbbrCount() int { return b.noAbbr }

// ByteAt returns the valid byte at logical index i (0 == the next byte to
// be read) and whether further mapping is currently allowed on it.
func (b *Buffer) ByteAt(i int) (c byte, mappable bool) {
	if i < 0 || i >= b.len {
		return 0, false
	}
	c = b.buf[b.off+i]
	return c, b.remap[b.off+i] == maskRemap || b.remap[b.off+i] == maskScriptOnly
}

// RemapMaskAt returns the raw remap-mask classification at logical index i,
// used by the mapping engine to decide whether script-local-only or
// abbreviation-only bytes may extend a match.
func (b *Buffer) RemapMaskAt(i int) (scriptOnly, abbrOnly, noRemap bool) {
	if i < 0 || i >= b.len {
		return false, false, false
	}
	m := b.remap[b.off+i]
	return m == maskScriptOnly, m == maskAbbrOnly, m == maskNoRemap
}

// Bytes returns the valid region as a slice; callers must not retain it
// across any mutating call, since Insert/Delete may reallocate the
// backing array (spec.md §9's pointer-into-mutable-buffer hazard).
func (b *Buffer) Bytes() []byte { return b.buf[b.off : b.off+b.len] }

func maskFor(policy RemapPolicy, idx, n int) mask {
	switch policy {
	case RemapAll:
		return maskRemap
	case RemapNone:
		return maskNoRemap
	case RemapScript:
		return maskScriptOnly
	case RemapSkip:
		if idx == 0 {
			return maskAbbrOnly
		}
		return maskRemap
	}
	return maskRemap
}

// Insert places bytes at logical offset `at` bytes in. policy controls the
// per-byte remap mask; nottyped bumps MapLen by len(p); silent bumps
// Silent by len(p) (spec.md §4.3).
func (b *Buffer) Insert(p []byte, policy RemapPolicy, at int, nottyped, silent bool) error {
	if len(p) == 0 {
		return nil
	}
	if b.len+len(p) > maxSize {
		return ErrOverflow
	}

	switch {
	case at == 0 && b.off >= len(p):
		// Case (a): room before off, move off back in place.
		b.off -= len(p)
		copy(b.buf[b.off:], p)
		copy(b.remap[b.off:], masksFor(p, policy))
	case b.len == 0 && len(p)+2*Margin <= len(b.buf):
		// Case (b): empty buffer, bytes fit with margin — centre them.
		b.off = (len(b.buf) - len(p)) / 2
		copy(b.buf[b.off:], p)
		copy(b.remap[b.off:], masksFor(p, policy))
	case b.off+b.len+at+len(p)+lookahead <= len(b.buf) && at <= b.len:
		// Room to the right of off+at: shift the tail right and insert.
		dst := b.off + at
		copy(b.buf[dst+len(p):], b.buf[dst:b.off+b.len])
		copy(b.remap[dst+len(p):], b.remap[dst:b.off+b.len])
		copy(b.buf[dst:], p)
		copy(b.remap[dst:], masksFor(p, policy))
	default:
		// Case (c): reallocate, sized with margin on both sides, and lay
		// out [old prefix][p][old suffix] directly into the fresh buffer.
		need := b.len + len(p) + 4*Margin
		oldBuf, oldRemap, oldOff, oldLen := b.buf, b.remap, b.off, b.len
		newBuf := make([]byte, need+1)
		newRemap := make([]mask, need+1)
		newOff := Margin
		copy(newBuf[newOff:], oldBuf[oldOff:oldOff+at])
		copy(newRemap[newOff:], oldRemap[oldOff:oldOff+at])
		copy(newBuf[newOff+at:], p)
		copy(newRemap[newOff+at:], masksFor(p, policy))
		copy(newBuf[newOff+at+len(p):], oldBuf[oldOff+at:oldOff+oldLen])
		copy(newRemap[newOff+at+len(p):], oldRemap[oldOff+at:oldOff+oldLen])
		b.buf, b.remap, b.off = newBuf, newRemap, newOff
	}

	b.len += len(p)
	b.buf[b.off+b.len] = 0
	if nottyped {
		b.maplen += len(p)
	}
	if silent {
		b.silent += len(p)
	}
	b.clampCounters()
	b.changes++
	return nil
}

func masksFor(p []byte, policy RemapPolicy) []mask {
	m := make([]mask, len(p))
	for i := range p {
		m[i] = maskFor(policy, i, len(p))
	}
	return m
}

// Delete removes n bytes starting at logical offset `at`.
func (b *Buffer) Delete(n, at int) {
	if n <= 0 {
		return
	}
	if at+n > b.len {
		n = b.len - at
	}
	if n <= 0 {
		return
	}
	if at == 0 {
		// Fast path: just advance off.
		b.off += n
	} else {
		dst := b.off + at
		copy(b.buf[dst:], b.buf[dst+n:b.off+b.len])
		copy(b.remap[dst:], b.remap[dst+n:b.off+b.len])
	}
	b.len -= n
	b.buf[b.off+b.len] = 0

	// Shift off back toward the margin if it has drifted, so future
	// appends stay cheap (spec.md §4.3's "slow path" note).
	if b.off > len(b.buf)/2 && b.off > Margin {
		shift := b.off - Margin
		if shift > b.off {
			shift = b.off
		}
		copy(b.buf[b.off-shift:], b.buf[b.off:b.off+b.len])
		copy(b.remap[b.off-shift:], b.remap[b.off:b.off+b.len])
		b.off -= shift
		b.buf[b.off+b.len] = 0
	}

	if at < b.maplen {
		b.maplen -= min(n, b.maplen-at)
	}
	if at < b.silent {
		b.silent -= min(n, b.silent-at)
	}
	if at < b.noAbbr {
		b.noAbbr -= min(n, b.noAbbr-at)
	}
	b.clampCounters()
	b.changes++
}

func (b *Buffer) clampCounters() {
	if b.maplen > b.len {
		b.maplen = b.len
	}
	if b.silent > b.len {
		b.silent = b.len
	}
	if b.noAbbr > b.len {
		b.noAbbr = b.len
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FlushMode selects how much of the buffer Flush drops.
type FlushMode int

const (
	// FlushInput drops everything: pending input as well as any mapped
	// prefix.
	FlushInput FlushMode = iota
	// FlushMinimal drops only the mapped-prefix bytes, leaving anything
	// typed by the user (used when aborting a mapping expansion).
	FlushMinimal
)

// Flush clears the buffer per mode (spec.md §4.3).
func (b *Buffer) Flush(mode FlushMode) {
	switch mode {
	case FlushInput:
		b.off = Margin
		b.len = 0
		b.maplen, b.silent, b.noAbbr = 0, 0, 0
		b.buf[b.off] = 0
	case FlushMinimal:
		if b.maplen > 0 {
			b.Delete(b.maplen, 0)
		}
	}
	b.changes++
}

// PutBackChar encodes and inserts one logical key at the very front of the
// buffer under RemapAll (spec.md §4.3). The key reader uses it to requeue
// the unmodified key when it splits an Alt-modified key into ESC followed
// by that key.
func (b *Buffer) PutBackChar(k keycode.Key) error {
	var buf []byte
	if k.Special == keycode.Mouse {
		buf = keycode.EncodeMouse(buf, k.Mouse, k.Mods)
	} else {
		buf = keycode.Encode(buf, k.Rune, k.Special, k.Mods)
	}
	return b.Insert(buf, RemapAll, 0, false, false)
}

// Snapshot is a deep copy of the buffer's valid bytes, remap masks, and
// prefix counters, taken by Save and reinstated by Restore. It backs the
// nested-invocation frames of the state save/restore layer (spec.md §4.11).
type Snapshot struct {
	buf    []byte
	remap  []mask
	maplen int
	silent int
	noAbbr int
}

// Save returns a deep-copied Snapshot of the current contents.
func (b *Buffer) Save() Snapshot {
	return Snapshot{
		buf:    append([]byte(nil), b.buf[b.off:b.off+b.len]...),
		remap:  append([]mask(nil), b.remap[b.off:b.off+b.len]...),
		maplen: b.maplen,
		silent: b.silent,
		noAbbr: b.noAbbr,
	}
}

// Restore replaces the buffer's contents with the snapshot. Everything but
// the change count is restored bitwise; the change count only ever grows
// (spec.md testable property 10).
func (b *Buffer) Restore(s Snapshot) {
	need := len(s.buf) + 2*Margin + lookahead
	if need > len(b.buf) {
		b.realloc(need)
	}
	b.off = Margin
	b.len = len(s.buf)
	copy(b.buf[b.off:], s.buf)
	copy(b.remap[b.off:], s.remap)
	b.buf[b.off+b.len] = 0
	b.maplen, b.silent, b.noAbbr = s.maplen, s.silent, s.noAbbr
	b.changes++
}

// realloc allocates a fresh, empty backing array of the given logical size
// (plus a trailing sentinel byte) and centres the (empty) valid region at
// Margin. Used by New, and by Restore when a snapshot does not fit the
// current array; Insert's own reallocation path lays out old and new data
// directly, since by the time it needs to grow there is always existing
// data to place.
func (b *Buffer) realloc(size int) {
	b.buf = make([]byte, size+1)
	b.remap = make([]mask, size+1)
	b.off = Margin
}
