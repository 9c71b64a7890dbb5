package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a task is moved along an edge the
// lifecycle does not allow, or when its current status is not the expected one.
var ErrInvalidTransition = errors.New("invalid state transition")

// ExpiryWindow is how long a generated task stays active.
const ExpiryWindow = 24 * time.Hour

// CanTransition reports whether from -> to is a legal edge.
// Only active tasks move, and only to a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusActive && (to == StatusCompleted || to == StatusFailed)
}

// CheckTransition returns ErrInvalidTransition wrapped with context when the
// edge is illegal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// XPBand is the inclusive reward range of a difficulty tier.
type XPBand struct {
	Min int64
	Max int64
}

// Contains reports whether xp falls inside the band.
func (b XPBand) Contains(xp int64) bool {
	return xp >= b.Min && xp <= b.Max
}

// Clamp moves xp into the band.
func (b XPBand) Clamp(xp int64) int64 {
	if xp < b.Min {
		return b.Min
	}
	if xp > b.Max {
		return b.Max
	}
	return xp
}

var xpBands = map[Difficulty]XPBand{
	DifficultyEasy:   {Min: 50, Max: 100},
	DifficultyMedium: {Min: 150, Max: 250},
	DifficultyHard:   {Min: 250, Max: 500},
}

// BandFor returns the XP band of a tier. Unknown tiers get the easy band.
func BandFor(d Difficulty) XPBand {
	if b, ok := xpBands[d]; ok {
		return b
	}
	return xpBands[DifficultyEasy]
}

// DefaultPenaltyFor is the credits penalty stamped on generated tasks that
// did not declare one.
func DefaultPenaltyFor(d Difficulty) Penalty {
	switch d {
	case DifficultyMedium:
		return Penalty{Type: PenaltyCredits, Amount: 20}
	case DifficultyHard:
		return Penalty{Type: PenaltyCredits, Amount: 40}
	default:
		return Penalty{Type: PenaltyCredits, Amount: 10}
	}
}
