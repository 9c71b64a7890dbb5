package model

import "math"

// levelCoef scales the threshold curve: XP(L) = ceil(levelCoef * (L-1)^1.5).
const levelCoef = 100.0

// XPRequiredForLevel returns the XP at which level is reached.
// Level 1 requires 0 XP.
func XPRequiredForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Ceil(levelCoef * math.Pow(float64(level-1), 1.5)))
}

// LevelForXP returns the highest level whose threshold is at most xp.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return InitialLevel
	}

	low, high := 1, 2
	for XPRequiredForLevel(high) <= xp {
		low = high
		high *= 2
		if high > 1_000_000 {
			break
		}
	}
	for low+1 < high {
		mid := low + (high-low)/2
		if XPRequiredForLevel(mid) <= xp {
			low = mid
		} else {
			high = mid
		}
	}
	return low
}

// TitleForLevel returns the display title for a level.
func TitleForLevel(level int) string {
	switch {
	case level >= 35:
		return "Legendary Hero"
	case level >= 20:
		return "Elite Champion"
	case level >= 10:
		return "Seasoned Quester"
	case level >= 5:
		return "Rising Adventurer"
	default:
		return "Novice Challenger"
	}
}
