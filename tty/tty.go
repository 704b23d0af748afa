// Copyright 2013 Google, Inc.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tty puts the controlling terminal into raw mode and exposes it as
// a chunked byte source (C12). It is the thing the source multiplexer's
// final fallback tier ultimately reads from when every internal buffer is
// empty.
package tty

import (
	"io"
	"time"

	"golang.org/x/term"
)

// ReadBufferLength is the number of completed chunks buffered between the
// reading goroutine and Read callers.
const ReadBufferLength = 32

// DefaultRawBufferSize is the size of each read from the console.
const DefaultRawBufferSize = 256

// Device wraps one file descriptor's terminal state: the settings captured
// at Open time (restored by Restore) and a background goroutine shuttling
// raw chunks from the console over a channel so reads can be bounded by a
// timeout without platform-specific poll calls.
type Device struct {
	fd      int
	console io.Reader
	state   *term.State

	next    chan []byte // completed chunks
	partial []byte      // store partial reads
	err     error       // the error when the reader closed
}

// Open captures the current terminal settings of fd and starts the
// background reader over console (usually os.Stdin). The terminal mode is
// not changed until MakeRaw.
func Open(fd int, console io.Reader) (*Device, error) {
	state, err := term.GetState(fd)
	if err != nil {
		return nil, err
	}
	d := &Device{
		fd:      fd,
		console: console,
		state:   state,
		next:    make(chan []byte, ReadBufferLength),
	}
	go d.run()
	return d, nil
}

// NewPipe builds a Device over an arbitrary io.Reader with no terminal
// attached, for tests and script-driven use. MakeRaw and Restore are no-ops
// on a pipe Device; Size reports an error.
func NewPipe(console io.Reader) *Device {
	d := &Device{
		fd:      -1,
		console: console,
		next:    make(chan []byte, ReadBufferLength),
	}
	go d.run()
	return d
}

// MakeRaw sets the terminal to raw mode.
//
// I recommend this being done early on in main() and having a deferred call
// to Restore so that the changes will be reverted when everything exits
// cleanly.
func (d *Device) MakeRaw() error {
	if d.fd < 0 {
		return nil
	}
	state, err := term.MakeRaw(d.fd)
	if err != nil {
		return err
	}
	// Keep the pre-raw state from Open; MakeRaw's return is the same
	// snapshot unless something changed the terminal in between.
	if d.state == nil {
		d.state = state
	}
	return nil
}

// Restore sets the terminal settings to match those that were in effect
// when the call to Open was made.
func (d *Device) Restore() error {
	if d.fd < 0 || d.state == nil {
		return nil
	}
	return term.Restore(d.fd, d.state)
}

// Size returns the width and height of the terminal.
func (d *Device) Size() (width, height int, err error) {
	return term.GetSize(d.fd)
}

// run is the primary reading goroutine. It reads chunks from the console
// and forwards them over the next channel; reading takes data directly from
// that channel.
func (d *Device) run() {
	defer close(d.next)
	buffer := make([]byte, DefaultRawBufferSize)
	for {
		n, err := d.console.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			d.next <- chunk
		}
		if err != nil {
			d.err = err
			return
		}
	}
}

// Read reads the next raw chunk from the console.
func (d *Device) Read(b []byte) (n int, err error) {
	if len(d.partial) == 0 {
		var ok bool
		if d.partial, ok = <-d.next; !ok {
			if d.err != nil {
				return 0, d.err
			}
			return 0, io.EOF
		}
	}
	n = copy(b, d.partial)
	d.partial = d.partial[n:]
	return
}

// ReadTimeout reads the next raw chunk, waiting at most timeout for one to
// arrive. A negative timeout blocks forever; a zero timeout polls. It
// returns (nil, nil) when the timeout elapses with no input, which is how
// the mapping engine's partial-match grace period observes "nothing more
// came".
func (d *Device) ReadTimeout(timeout time.Duration) ([]byte, error) {
	if len(d.partial) > 0 {
		chunk := d.partial
		d.partial = nil
		return chunk, nil
	}
	if timeout < 0 {
		chunk, ok := <-d.next
		if !ok {
			return nil, d.closedErr()
		}
		return chunk, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk, ok := <-d.next:
		if !ok {
			return nil, d.closedErr()
		}
		return chunk, nil
	case <-timer.C:
		return nil, nil
	}
}

func (d *Device) closedErr() error {
	if d.err != nil {
		return d.err
	}
	return io.EOF
}
