// Package block implements the linked-list byte-block buffer that backs the
// stuff, redo, and record rings: a chain of growable blocks with a single
// read cursor into the oldest block and an append cursor into the newest.
package block

import "errors"

// MinBlockSize is the minimum capacity of a newly allocated block. A block
// requested smaller than this is rounded up so that small, frequent appends
// (a single stuffed keystroke) don't each pay for their own allocation.
const MinBlockSize = 128

// ErrReadAfterConsumed is returned by DeleteTail when asked to shrink bytes
// that have already been read off the front of the buffer.
var ErrReadAfterConsumed = errors.New("block: delete_tail past read cursor")

type node struct {
	buf  []byte
	next *node
}

// Buffer is a singly linked chain of byte blocks with a read cursor into the
// first block and an append cursor into the last. Bytes already written to
// it are assumed to be pre-escaped (K_SPECIAL-escaped) by the caller; Buffer
// itself is byte-oblivious.
type Buffer struct {
	head *node // sentinel; head.buf is always empty
	tail *node // block bytes are currently appended to
	ridx int   // read index into head.next (or head, if head==tail)

	forceNewBlock bool // set by StartRead; next Append always allocates
}

// New returns an empty Buffer.
func New() *Buffer {
	sentinel := &node{}
	return &Buffer{head: sentinel, tail: sentinel}
}

// Empty reports whether the buffer holds zero unread bytes.
func (b *Buffer) Empty() bool {
	return b.head == b.tail && b.ridx >= len(b.head.buf)
}

// Append adds bytes to the end of the buffer. If the tail block has spare
// capacity and a new block hasn't been forced, bytes are appended in place;
// otherwise a new block is linked on. Never fails (callers are expected to
// run in a process where allocation failure is fatal, matching the
// original's abort-on-OOM behavior — see spec.md §4.1).
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	if !b.forceNewBlock && b.tail != b.head && cap(b.tail.buf)-len(b.tail.buf) >= len(p) {
		b.tail.buf = append(b.tail.buf, p...)
		return
	}
	size := MinBlockSize
	if len(p) > size {
		size = len(p)
	}
	n := &node{buf: make([]byte, 0, size)}
	n.buf = append(n.buf, p...)
	b.tail.next = n
	b.tail = n
	b.forceNewBlock = false
}

// StartRead marks that the next Append must allocate a fresh block rather
// than growing the current tail in place, so a reader walking the block
// chain never observes a block mutating underneath it mid-read.
func (b *Buffer) StartRead() {
	b.forceNewBlock = true
}

// Read returns the next unread byte, or (0, false) if the buffer is empty.
// If advance is true the read cursor moves past it, freeing any block that
// becomes fully exhausted.
func (b *Buffer) Read(advance bool) (byte, bool) {
	cur := b.head
	if cur == b.tail {
		if b.ridx >= len(cur.buf) {
			return 0, false
		}
	} else {
		cur = b.head.next
	}
	if cur == nil || b.ridx >= len(cur.buf) {
		return 0, false
	}
	c := cur.buf[b.ridx]
	if advance {
		b.ridx++
		if b.ridx >= len(cur.buf) {
			if cur == b.tail {
				b.head.next = nil
				b.tail = b.head
			} else {
				b.head.next = cur.next
			}
			b.ridx = 0
		}
	}
	return c, true
}

// DeleteTail shortens the most recently appended block by n bytes. The
// caller must guarantee those bytes were just appended and not yet read;
// violating that returns ErrReadAfterConsumed.
func (b *Buffer) DeleteTail(n int) error {
	if n == 0 {
		return nil
	}
	if b.tail == b.head {
		return ErrReadAfterConsumed
	}
	if n > len(b.tail.buf) {
		return ErrReadAfterConsumed
	}
	b.tail.buf = b.tail.buf[:len(b.tail.buf)-n]
	return nil
}

// AsSingleString concatenates every unread byte in the chain into one freshly
// allocated slice, without consuming them.
func (b *Buffer) AsSingleString() []byte {
	var out []byte
	offset := b.ridx
	for cur := b.head.next; cur != nil; cur = cur.next {
		out = append(out, cur.buf[offset:]...)
		offset = 0
	}
	return out
}

// Clear frees every block, leaving the buffer empty.
func (b *Buffer) Clear() {
	sentinel := &node{}
	b.head = sentinel
	b.tail = sentinel
	b.ridx = 0
	b.forceNewBlock = false
}
