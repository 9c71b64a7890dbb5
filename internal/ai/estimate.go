package ai

import (
	"strings"
	"unicode/utf8"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// EstimateDifficulty grades a user-written task by how much it describes.
// Short tasks are easy, long ones hard; the XP is the bottom of the band.
func EstimateDifficulty(title, description string) (model.Difficulty, int64) {
	text := strings.TrimSpace(title + " " + description)
	n := utf8.RuneCountInString(text)

	var d model.Difficulty
	switch {
	case n < 50:
		d = model.DifficultyEasy
	case n < 100:
		d = model.DifficultyMedium
	default:
		d = model.DifficultyHard
	}
	return d, model.BandFor(d).Min
}
