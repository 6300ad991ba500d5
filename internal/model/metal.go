// Package model holds the plain data types shared across the index engine:
// metal identity, price samples, weight vectors, regime state, and the
// per-tick risk parameters the risk moderator hands to the weight solver.
package model

// Metal identifies one of the four precious metals the engine tracks.
type Metal int

const (
	XAU Metal = iota // gold
	XAG               // silver
	XPT               // platinum
	XPD               // palladium
)

// Metals is the fixed, stable iteration order used everywhere "for each
// metal" applies — callers must not re-sort or re-derive this set.
var Metals = [4]Metal{XAU, XAG, XPT, XPD}

func (m Metal) String() string {
	switch m {
	case XAU:
		return "XAU"
	case XAG:
		return "XAG"
	case XPT:
		return "XPT"
	case XPD:
		return "XPD"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the goldapi.io path component for this metal.
func (m Metal) Symbol() string { return m.String() }
