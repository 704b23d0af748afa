package dispatch

// VisualMode selects how an active selection extends.
type VisualMode int

const (
	VisualChar VisualMode = iota
	VisualLine
	VisualBlock
)

// VisualState tracks the active selection: the anchor stays put while the
// cursor end moves with every motion (spec.md §4.10's interposition).
type VisualState struct {
	Active bool
	Mode   VisualMode
	Anchor Position
}

// Start begins (or switches the mode of) a selection anchored at pos.
func (v *VisualState) Start(mode VisualMode, pos Position) {
	if v.Active && v.Mode == mode {
		// Same visual command again stops the selection.
		v.Active = false
		return
	}
	if !v.Active {
		v.Anchor = pos
	}
	v.Active = true
	v.Mode = mode
}

// Stop ends the selection.
func (v *VisualState) Stop() { v.Active = false }

// MotionType reports the range type the active mode produces.
func (v *VisualState) MotionType() MotionType {
	switch v.Mode {
	case VisualLine:
		return LineWise
	case VisualBlock:
		return BlockWise
	}
	return CharWise
}
