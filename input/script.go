package input

import (
	"fmt"
	"io"
	"os"

	"github.com/kylelemons/modaline/typeahead"
)

// MaxScriptDepth bounds how deeply script sources may nest.
const MaxScriptDepth = 15

// scriptFrame is one pushed script source: the open file, the reader it
// displaced, and the typeahead contents saved at push time.
type scriptFrame struct {
	src  io.ReadCloser
	prev io.Reader
	ta   typeahead.Snapshot
}

// OpenScript pushes path as a new byte source: the file's contents (in the
// wire protocol, the same stream stuff_literal expects) are read before
// any further user input, and the typeahead is saved until the script is
// exhausted.
func (r *Reader) OpenScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := r.PushScript(f); err != nil {
		f.Close()
		return err
	}
	return nil
}

// PushScript installs an already-open source as the top script frame, for
// callers feeding synthetic scripts (and tests) without a file.
func (r *Reader) PushScript(src io.ReadCloser) error {
	if len(r.scripts) >= MaxScriptDepth {
		return fmt.Errorf("input: script source depth exceeds %d", MaxScriptDepth)
	}
	ta := r.Engine.Typeahead
	frame := &scriptFrame{src: src, prev: r.Mux.Reader(), ta: ta.Save()}
	ta.Flush(typeahead.FlushInput)
	r.Mux.SetReader(src)
	r.scripts = append(r.scripts, frame)
	return nil
}

func (r *Reader) popScript() {
	if len(r.scripts) == 0 {
		return
	}
	frame := r.scripts[len(r.scripts)-1]
	r.scripts = r.scripts[:len(r.scripts)-1]
	frame.src.Close()
	r.Mux.SetReader(frame.prev)
	r.Engine.Typeahead.Restore(frame.ta)
}

// CloseAllScripts pops every script frame, restoring the reader that was
// installed before the first push.
func (r *Reader) CloseAllScripts() {
	for len(r.scripts) > 0 {
		r.popScript()
	}
}

// UsingScript reports whether any script frame is currently being read.
func (r *Reader) UsingScript() bool { return len(r.scripts) > 0 }
