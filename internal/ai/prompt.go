package ai

import (
	"fmt"
	"strings"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

const systemPrompt = `You design real-life quests for a gamified self-improvement app.
Reply with a single JSON object and nothing else.`

// Overused tasks the model tends to repeat.
var genericTasks = []string{
	"drink 8 glasses of water",
	"go for a 10 minute walk",
	"read for 20 minutes",
	"make your bed",
	"meditate for 5 minutes",
	"write a gratitude list",
}

// penaltyBand is the credits range the model is asked to use per tier.
func penaltyBand(d model.Difficulty) (int64, int64) {
	switch d {
	case model.DifficultyMedium:
		return 20, 30
	case model.DifficultyHard:
		return 40, 60
	default:
		return 5, 15
	}
}

func buildPrompt(req Request, d model.Difficulty, count int, temperature float64) Prompt {
	band := model.BandFor(d)
	penMin, penMax := penaltyBand(d)

	var b strings.Builder
	if req.Special {
		fmt.Fprintf(&b, "Create %d special challenge", count)
	} else {
		fmt.Fprintf(&b, "Create %d", count)
	}
	fmt.Fprintf(&b, " %s difficulty task(s)", d)
	if req.User != nil {
		fmt.Fprintf(&b, " for a level %d player titled %q with a %d-day streak", req.User.Level, req.User.Title, req.User.Streak)
	}
	b.WriteString(".\n")

	fmt.Fprintf(&b, "Each xpReward must be an integer between %d and %d.\n", band.Min, band.Max)
	fmt.Fprintf(&b, "Each failurePenalty must be {\"type\": \"credits\" or \"xp\", \"amount\": integer between %d and %d}.\n", penMin, penMax)
	if req.Special {
		b.WriteString("Special challenges are rare, memorable and a little outside the player's comfort zone.\n")
	}

	b.WriteString("Be creative and specific. Avoid generic, overused tasks such as: ")
	b.WriteString(strings.Join(genericTasks, "; "))
	b.WriteString(".\n")
	if len(req.Avoid) > 0 {
		b.WriteString("Do not repeat any of these recent tasks: ")
		b.WriteString(strings.Join(req.Avoid, "; "))
		b.WriteString(".\n")
	}

	b.WriteString(`Respond as {"tasks": [{"title": string, "description": string, "category": string, ` +
		`"difficulty": string, "proofType": "photo" or "text", "xpReward": integer, ` +
		`"aiRecommendation": string, "failurePenalty": {"type": string, "amount": integer}}]}`)

	if req.Special {
		temperature += 0.1
	}
	return Prompt{System: systemPrompt, User: b.String(), Temperature: temperature}
}
