package input

import (
	"errors"

	"github.com/kylelemons/modaline/block"
	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/record"
	"github.com/kylelemons/modaline/redo"
	"github.com/kylelemons/modaline/source"
	"github.com/kylelemons/modaline/typeahead"
)

// ErrUnbalancedRestore is returned by RestoreState with no matching
// SaveState; pairs must be balanced (spec.md §4.11).
var ErrUnbalancedRestore = errors.New("input: unbalanced state restore")

// State is one saved frame of the whole input pipeline, snapshotted around
// a nested invocation (a sourced file, a :normal sequence, an
// autocommand). The typeahead contents transfer into the frame; the unread
// contents of the stuff and redo-replay rings are copied into the frame and
// those same rings are emptied for the nested scope; redo is deep-copied so
// a "." inside the nested
// call still works (spec.md §4.11).
type State struct {
	typeahead  typeahead.Snapshot
	stuff      []byte
	redoReplay []byte
	putBack    source.PutBackState
	redoFrame  redo.Frame
	sinkFrame  record.Frame
	mods       keycode.ModMask
}

// drain copies a ring's unread contents and empties it. Contents are
// copied rather than the ring pointers swapped so every collaborator
// holding a *block.Buffer keeps a valid reference across the nesting.
func drain(b *block.Buffer) []byte {
	out := b.AsSingleString()
	b.Clear()
	return out
}

// SaveState pushes a frame capturing every input buffer, leaving the
// pipeline empty for the nested invocation.
func (r *Reader) SaveState() {
	ta := r.Engine.Typeahead
	st := &State{
		typeahead:  ta.Save(),
		stuff:      drain(r.Mux.Stuff),
		redoReplay: drain(r.Mux.RedoReplay),
		putBack:    r.Mux.SavePutBack(),
		mods:       r.mods,
	}
	ta.Flush(typeahead.FlushInput)
	if r.Redo != nil {
		st.redoFrame = r.Redo.SaveRedo()
	}
	if r.Sink != nil {
		st.sinkFrame = r.Sink.Save()
	}
	r.mods = 0
	r.saves = append(r.saves, st)
}

// RestoreState pops the most recent frame, discarding whatever the nested
// invocation left behind in the temporary buffers.
func (r *Reader) RestoreState() error {
	if len(r.saves) == 0 {
		return ErrUnbalancedRestore
	}
	st := r.saves[len(r.saves)-1]
	r.saves = r.saves[:len(r.saves)-1]

	r.Engine.Typeahead.Restore(st.typeahead)
	r.Mux.Stuff.Clear()
	r.Mux.Stuff.Append(st.stuff)
	r.Mux.RedoReplay.Clear()
	r.Mux.RedoReplay.Append(st.redoReplay)
	r.Mux.RestorePutBack(st.putBack)
	if r.Redo != nil {
		r.Redo.RestoreRedo(st.redoFrame)
	}
	if r.Sink != nil {
		r.Sink.Restore(st.sinkFrame)
	}
	r.mods = st.mods
	return nil
}
