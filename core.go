// Package modaline implements the input pipeline of a modal text editor:
// the byte stream from a terminal, script file, or programmatic feed is
// escaped into the in-band key-code protocol, matched against the mapping
// table, and assembled into logical keys for the command dispatcher.
//
// InputCore is the single owned value holding all pipeline state — the
// typeahead buffer, the stuff/redo/record rings, the mapping table, the
// put-back slot, and the script-source stack — so nested invocations push
// frames instead of saving shadowed globals.
package modaline

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/kylelemons/modaline/dispatch"
	"github.com/kylelemons/modaline/input"
	"github.com/kylelemons/modaline/keycode"
	"github.com/kylelemons/modaline/mapping"
	"github.com/kylelemons/modaline/record"
	"github.com/kylelemons/modaline/redo"
	"github.com/kylelemons/modaline/source"
	"github.com/kylelemons/modaline/tty"
	"github.com/kylelemons/modaline/typeahead"
)

// Config carries the tunables the pipeline reads; the field names mirror
// the options they descend from ('timeoutlen', 'ttimeoutlen',
// 'maxmapdepth').
type Config struct {
	TimeoutLen  time.Duration
	TTimeoutLen time.Duration
	Timeout     bool
	TTimeout    bool
	MaxMapDepth int
	Logger      *log.Logger
}

// Option adjusts a Config before the core is built.
type Option func(*Config)

// WithTimeoutLen sets the mapping-completion grace period.
func WithTimeoutLen(d time.Duration) Option {
	return func(c *Config) { c.TimeoutLen = d }
}

// WithTTimeoutLen sets the key-code-completion grace period.
func WithTTimeoutLen(d time.Duration) Option {
	return func(c *Config) { c.TTimeoutLen = d }
}

// WithTimeouts enables or disables the two grace periods; a disabled
// timeout blocks forever.
func WithTimeouts(timeout, ttimeout bool) Option {
	return func(c *Config) { c.Timeout, c.TTimeout = timeout, ttimeout }
}

// WithMaxMapDepth caps mapping recursion.
func WithMaxMapDepth(n int) Option {
	return func(c *Config) { c.MaxMapDepth = n }
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// InputCore owns one instance of every pipeline piece. All methods must be
// called from the single logical thread of control; producers on other
// goroutines inject keys through the stuff buffer only (spec.md §5).
type InputCore struct {
	Typeahead *typeahead.Buffer
	Mux       *source.Multiplexer
	Table     *mapping.Table
	Engine    *mapping.Engine
	Sink      *record.Sink
	Redo      *redo.Engine
	Reader    *input.Reader

	log *log.Logger
}

// New builds a fully wired InputCore with no input source attached; use
// AttachTTY, SetSource, or OpenScript to give it one.
func New(opts ...Option) *InputCore {
	cfg := Config{
		TimeoutLen:  time.Second,
		TTimeoutLen: 50 * time.Millisecond,
		Timeout:     true,
		TTimeout:    true,
		MaxMapDepth: 1000,
		Logger:      log.New(os.Stderr, "modaline ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ta := typeahead.New()
	mux := source.New(ta)
	table := mapping.NewTable()
	eng := mapping.NewEngine(table, ta)
	eng.MaxMapDepth = cfg.MaxMapDepth
	sink := record.NewSink()
	rd := redo.NewEngine()

	reader := input.New(mux, eng, sink, rd)
	reader.Timeout = cfg.Timeout
	reader.TTimeout = cfg.TTimeout
	reader.TimeoutLen = cfg.TimeoutLen
	reader.TTimeoutLen = cfg.TTimeoutLen

	core := &InputCore{
		Typeahead: ta,
		Mux:       mux,
		Table:     table,
		Engine:    eng,
		Sink:      sink,
		Redo:      rd,
		Reader:    reader,
		log:       cfg.Logger,
	}

	// Mapping trigger bytes reach the record sink at match time; the
	// expansion's output never does (spec.md §4.6).
	eng.OnRecord = func(trigger []byte) {
		for _, c := range trigger {
			sink.Feed(c)
		}
	}
	return core
}

func (c *InputCore) logf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

// AttachTTY installs dev as the live input source: its raw chunks are
// escaped into the wire protocol on the way in, and the bounded reads the
// mapping timeouts need go through the same escaper.
func (c *InputCore) AttachTTY(dev *tty.Device) {
	esc := keycode.NewEscaper(dev)
	c.Mux.SetReader(esc)
	c.Reader.Timed = esc
}

// SetSource installs an arbitrary io.Reader of raw (unescaped) bytes as
// the input source, for programmatic feeds and tests.
func (c *InputCore) SetSource(r io.Reader) {
	esc := keycode.NewEscaper(r)
	c.Mux.SetReader(esc)
	c.Reader.Timed = esc
}

// NextKey returns the next logical key from the pipeline.
func (c *InputCore) NextKey() (keycode.Key, error) {
	return c.Reader.GetOneKey()
}

// Feed appends already-typed bytes to the typeahead buffer, as if the
// user had typed them (a feedkeys-style programmatic feed). The bytes
// must be in the wire protocol.
func (c *InputCore) Feed(p []byte) error {
	return c.Typeahead.Insert(p, typeahead.RemapAll, c.Typeahead.Len(), false, false)
}

// PutBackKey installs exactly one logical key to be returned by the very
// next NextKey, overwriting any previous put-back.
func (c *InputCore) PutBackKey(key keycode.Key) {
	c.Mux.PutBack(key, false)
}

// StuffLiteral, StuffTyped, and StuffEscaped append to the stuff buffer.
func (c *InputCore) StuffLiteral(p []byte)                 { c.Mux.StuffLiteral(p) }
func (c *InputCore) StuffTyped(text string)                { c.Mux.StuffTyped(text) }
func (c *InputCore) StuffEscaped(text string, literally bool) { c.Mux.StuffEscaped(text, literally) }

// DefineMapping adds a mapping; lhs and rhs are in angle-bracket notation
// (<Esc>, <C-x>, <Cmd>...). A <Cmd> RHS is shape-checked at definition
// time (spec.md §6's E1255/E1136 family).
func (c *InputCore) DefineMapping(modes mapping.Mode, lhs, rhs string, flags mapping.Flags) error {
	lhsBytes := mapping.Keys(lhs)
	rhsBytes := mapping.Keys(rhs)
	if err := mapping.ValidateCmdRHS(rhsBytes); err != nil {
		return err
	}
	c.Table.Add(&mapping.Entry{LHS: lhsBytes, RHS: rhsBytes, Modes: modes, Flags: flags}, false)
	c.logf("mapping defined lhs=%q rhs=%q modes=%v", lhs, rhs, modes)
	return nil
}

// RemoveMapping tombstones every mapping matching lhs under modes.
func (c *InputCore) RemoveMapping(modes mapping.Mode, lhs string) {
	c.Table.Remove(mapping.Keys(lhs), modes, false)
}

// RegisterOnKey installs the on-key observer; a "swallow" return makes
// the dispatcher see Ignore instead of the key.
func (c *InputCore) RegisterOnKey(cb record.OnKeyFunc) {
	c.Sink.OnKey = cb
}

// StartRecording begins a q<reg>-style capture, returning its Session.
func (c *InputCore) StartRecording(reg byte) *record.Session {
	s := c.Sink.StartRecording(reg)
	c.logf("recording started reg=%q session=%s", reg, s.ID)
	return s
}

// StopRecording ends the capture and returns the recorded bytes.
func (c *InputCore) StopRecording() []byte {
	if s := c.Sink.Session(); s != nil {
		c.logf("recording stopped reg=%q session=%s", s.Register, s.ID)
	}
	return c.Sink.StopRecording()
}

// OpenScript, CloseAllScripts, and UsingScript manage the script-source
// stack.
func (c *InputCore) OpenScript(path string) error {
	if err := c.Reader.OpenScript(path); err != nil {
		return err
	}
	c.logf("script opened path=%q", path)
	return nil
}

func (c *InputCore) CloseAllScripts() { c.Reader.CloseAllScripts() }

func (c *InputCore) UsingScript() bool { return c.Reader.UsingScript() }

// SaveState and RestoreState bracket a nested invocation (a sourced file,
// a :normal sequence, an autocommand) with a full pipeline snapshot.
func (c *InputCore) SaveState() { c.Reader.SaveState() }

func (c *InputCore) RestoreState() error { return c.Reader.RestoreState() }

// ErrUnbalancedRestore is returned by RestoreState with no matching
// SaveState.
var ErrUnbalancedRestore = input.ErrUnbalancedRestore

// Interrupt flags the pipeline as interrupted, observed at the next safe
// point.
func (c *InputCore) Interrupt() { c.Reader.Interrupt() }

// NewDispatcher wires a command dispatcher over this core and the given
// editor collaborator.
func (c *InputCore) NewDispatcher(ed dispatch.Editor) *dispatch.Dispatcher {
	d := dispatch.New(c.Reader, ed)
	d.Redo = c.Redo
	d.ReplayBuf = c.Mux.RedoReplay
	d.Stuff = c.Mux
	d.Record = c.Sink
	return d
}
