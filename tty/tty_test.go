package tty

import (
	"io"
	"testing"
	"time"
)

// duplex simulates the two ends of a console: the device side is handed to
// NewPipe as its reader, the test side plays the terminal writing
// keystrokes into it.
type duplex struct {
	device *io.PipeReader
	term   *io.PipeWriter
}

func newDuplex() *duplex {
	r, w := io.Pipe()
	return &duplex{device: r, term: w}
}

// expectChunks reads r until EOF and checks each chunk against want, in
// order, signalling done when the stream ends.
func expectChunks(t *testing.T, desc string, r io.Reader, want []string, done chan bool) {
	raw := make([]byte, 4096)
	var idx int
	for idx = 0; idx < 1000; idx++ {
		n, err := r.Read(raw)
		if err == io.EOF {
			break
		} else if err != nil {
			t.Errorf("%s: chunk[%d]: %s", desc, idx, err)
			continue
		}
		if idx >= len(want) {
			t.Errorf("%s: extra chunk: %q", desc, string(raw[:n]))
			continue
		}
		if got := string(raw[:n]); got != want[idx] {
			t.Errorf("%s: chunk[%d] = %q, want %q", desc, idx, got, want[idx])
		}
	}
	for idx < len(want) {
		t.Errorf("%s: missing chunk: %q", desc, want[idx])
		idx++
	}
	done <- true
}

func TestRawPassthrough(t *testing.T) {
	tests := []struct {
		desc   string
		writes []string
		reads  []string
	}{
		{
			desc:   "single chunk",
			writes: []string{"hello"},
			reads:  []string{"hello"},
		},
		{
			desc:   "chunk per write",
			writes: []string{"j", "k", "\x1b[A"},
			reads:  []string{"j", "k", "\x1b[A"},
		},
		{
			desc:   "control bytes pass unmolested",
			writes: []string{"\x03", "\x80\x01\x00"},
			reads:  []string{"\x03", "\x80\x01\x00"},
		},
	}

	for _, test := range tests {
		pipe := newDuplex()
		dev := NewPipe(pipe.device)

		done := make(chan bool)
		go expectChunks(t, test.desc, dev, test.reads, done)

		for _, w := range test.writes {
			if _, err := pipe.term.Write([]byte(w)); err != nil {
				t.Errorf("%s: write %q: %s", test.desc, w, err)
			}
			// Give the reader goroutine a chance to forward each write as
			// its own chunk, matching interactive keystroke pacing.
			time.Sleep(time.Millisecond)
		}
		pipe.term.Close()
		<-done
	}
}

func TestReadTimeoutExpires(t *testing.T) {
	pipe := newDuplex()
	dev := NewPipe(pipe.device)
	defer pipe.term.Close()

	chunk, err := dev.ReadTimeout(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("ReadTimeout: %v", err)
	}
	if chunk != nil {
		t.Fatalf("ReadTimeout = %q, want nil (timeout with no input)", chunk)
	}
}

func TestReadTimeoutDeliversPendingInput(t *testing.T) {
	pipe := newDuplex()
	dev := NewPipe(pipe.device)

	go func() {
		pipe.term.Write([]byte("x"))
		pipe.term.Close()
	}()

	chunk, err := dev.ReadTimeout(time.Second)
	if err != nil {
		t.Fatalf("ReadTimeout: %v", err)
	}
	if string(chunk) != "x" {
		t.Fatalf("ReadTimeout = %q, want %q", chunk, "x")
	}
}

func TestPipeDeviceRawRestoreAreNoops(t *testing.T) {
	pipe := newDuplex()
	dev := NewPipe(pipe.device)
	defer pipe.term.Close()

	if err := dev.MakeRaw(); err != nil {
		t.Errorf("MakeRaw on pipe device: %v", err)
	}
	if err := dev.Restore(); err != nil {
		t.Errorf("Restore on pipe device: %v", err)
	}
}
