package chunk

import "strings"

const (
	bitExplored uint8 = 1 << iota
	bitVisible
	bitRevealed
)

// State is the fog-of-war state of one chunk. The zero value is hidden.
// States only change through the transitions below, which keep VISIBLE and
// REVEALED from ever being set without EXPLORED.
type State struct {
	bits uint8
}

func (s State) Explored() bool { return s.bits&bitExplored != 0 }
func (s State) Visible() bool  { return s.bits&bitVisible != 0 }
func (s State) Revealed() bool { return s.bits&bitRevealed != 0 }
func (s State) Hidden() bool   { return s.bits == 0 }

func (s State) String() string {
	if s.Hidden() {
		return "hidden"
	}
	var parts []string
	if s.Explored() {
		parts = append(parts, "explored")
	}
	if s.Visible() {
		parts = append(parts, "visible")
	}
	if s.Revealed() {
		parts = append(parts, "revealed")
	}
	return strings.Join(parts, "|")
}

func (s State) explore() State     { return State{bits: s.bits | bitExplored} }
func (s State) show() State        { return State{bits: s.bits | bitExplored | bitVisible} }
func (s State) hide() State        { return State{bits: s.bits &^ bitVisible} }
func (s State) forceReveal() State { return State{bits: s.bits | bitExplored | bitRevealed} }
