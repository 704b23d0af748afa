package dispatch

import "errors"

// ErrNoQuickfixList is returned by the bundled NoQuickfix navigator.
var ErrNoQuickfixList = errors.New("dispatch: no quickfix list")

// QuickfixNavigator is the contract the bracket commands dispatch through.
// The quickfix/location-list engine itself lives outside this subsystem;
// the dispatcher only needs somewhere real to route ]q and [q.
type QuickfixNavigator interface {
	Next(count int) error
	Prev(count int) error
}

// NoQuickfix is the default navigator: every call reports that no list
// exists, keeping the command-table entries exercised without an engine.
type NoQuickfix struct{}

func (NoQuickfix) Next(count int) error { return ErrNoQuickfixList }
func (NoQuickfix) Prev(count int) error { return ErrNoQuickfixList }
