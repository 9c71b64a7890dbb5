package ai

import (
	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Template is a curated task used when generation is unavailable.
type Template struct {
	Title          string
	Description    string
	Category       string
	Difficulty     model.Difficulty
	ProofType      model.ProofType
	XPReward       int64
	Penalty        model.Penalty
	Recommendation string
	Special        bool
}

func credits(n int64) model.Penalty { return model.Penalty{Type: model.PenaltyCredits, Amount: n} }

// FallbackPool holds the curated templates. Every XPReward sits inside the
// band of its difficulty.
var FallbackPool = []Template{
	// easy
	{
		Title:          "Nature Sketch Challenge",
		Description:    "Find a plant, tree or flower outside and sketch it in detail for 15 minutes.",
		Category:       "Creativity",
		Difficulty:     model.DifficultyEasy,
		ProofType:      model.ProofPhoto,
		XPReward:       80,
		Penalty:        credits(10),
		Recommendation: "Focus on texture and shading rather than perfect proportions.",
	},
	{
		Title:          "5-Minute Hand-Eye Coordination",
		Description:    "Juggle, bounce a ball against a wall or catch coins off your elbow for 5 focused minutes.",
		Category:       "Fitness",
		Difficulty:     model.DifficultyEasy,
		ProofType:      model.ProofText,
		XPReward:       60,
		Penalty:        credits(8),
		Recommendation: "Count your best streak and try to beat it tomorrow.",
	},
	{
		Title:          "Memory Palace Builder",
		Description:    "Memorize a list of 10 random objects by placing them along a route through your home.",
		Category:       "Learning",
		Difficulty:     model.DifficultyEasy,
		ProofType:      model.ProofText,
		XPReward:       70,
		Penalty:        credits(12),
		Recommendation: "Make each image absurd; strange pictures stick better.",
	},
	{
		Title:          "Mindful Nature Observation",
		Description:    "Spend 10 minutes outside observing without your phone and write down five things you noticed.",
		Category:       "Mindfulness",
		Difficulty:     model.DifficultyEasy,
		ProofType:      model.ProofText,
		XPReward:       50,
		Penalty:        credits(10),
		Recommendation: "Use all five senses, not just sight.",
	},
	{
		Title:          "Learn 10 New Words",
		Description:    "Pick a language and learn 10 new words, then use each one in a sentence.",
		Category:       "Learning",
		Difficulty:     model.DifficultyEasy,
		ProofType:      model.ProofText,
		XPReward:       50,
		Penalty:        credits(10),
		Recommendation: "Group the words by theme to remember them faster.",
	},
	// medium
	{
		Title:          "Shadow Boxing Workout",
		Description:    "Complete 20 minutes of shadow boxing in three-minute rounds with one-minute rests.",
		Category:       "Fitness",
		Difficulty:     model.DifficultyMedium,
		ProofType:      model.ProofPhoto,
		XPReward:       200,
		Penalty:        credits(22),
		Recommendation: "Keep your guard up and breathe out on every punch.",
	},
	{
		Title:          "Foreign Language Immersion Hour",
		Description:    "Spend one hour consuming media only in a language you are learning.",
		Category:       "Learning",
		Difficulty:     model.DifficultyMedium,
		ProofType:      model.ProofText,
		XPReward:       180,
		Penalty:        credits(25),
		Recommendation: "Turn on subtitles in the same language, not your native one.",
	},
	{
		Title:          "Handwritten Letter",
		Description:    "Write a one-page letter by hand to someone who influenced you and send or deliver it.",
		Category:       "Social",
		Difficulty:     model.DifficultyMedium,
		ProofType:      model.ProofPhoto,
		XPReward:       160,
		Penalty:        credits(20),
		Recommendation: "Mention one specific memory you share.",
	},
	{
		Title:          "Learn a New Song",
		Description:    "Learn the full lyrics of a song you have never sung and perform it once start to finish.",
		Category:       "Creativity",
		Difficulty:     model.DifficultyMedium,
		ProofType:      model.ProofText,
		XPReward:       150,
		Penalty:        credits(20),
		Recommendation: "Learn it verse by verse and chain the parts together.",
	},
	// hard
	{
		Title:          "Master 5 Magic Tricks",
		Description:    "Learn five close-up magic tricks and perform each for someone without being caught.",
		Category:       "Creativity",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofPhoto,
		XPReward:       320,
		Penalty:        credits(40),
		Recommendation: "Practice in front of a mirror before your first audience.",
	},
	{
		Title:          "Cold Shower Challenge",
		Description:    "Finish your shower with three full minutes of cold water while breathing slowly.",
		Category:       "Wellness",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofText,
		XPReward:       280,
		Penalty:        credits(35),
		Recommendation: "Start with your hands and feet, then move to your back.",
	},
	{
		Title:          "City Explorer",
		Description:    "Walk to three places in your area you have never visited and document each one.",
		Category:       "Adventure",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofPhoto,
		XPReward:       350,
		Penalty:        credits(45),
		Recommendation: "Plan a loop so the last place is close to home.",
	},
	{
		Title:          "Advanced Yoga Flow",
		Description:    "Complete a 45-minute advanced yoga flow including three balance poses held for 30 seconds.",
		Category:       "Fitness",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofPhoto,
		XPReward:       300,
		Penalty:        credits(40),
		Recommendation: "Warm up your hips and wrists first.",
	},
	// special challenges
	{
		Title:          "Photo Storytelling",
		Description:    "Tell a complete story in exactly five photos taken today, with no captions.",
		Category:       "Creativity",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofPhoto,
		XPReward:       280,
		Penalty:        credits(30),
		Recommendation: "Sketch the story arc before taking any pictures.",
		Special:        true,
	},
	{
		Title:          "Cook From Another Culture",
		Description:    "Cook a traditional dish from a cuisine you have never cooked before, from scratch.",
		Category:       "Cooking",
		Difficulty:     model.DifficultyMedium,
		ProofType:      model.ProofPhoto,
		XPReward:       250,
		Penalty:        credits(25),
		Recommendation: "Read about the dish's origin while it cooks.",
		Special:        true,
	},
	{
		Title:          "Random Act of Kindness Marathon",
		Description:    "Perform five separate acts of kindness for five different people today.",
		Category:       "Social",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofText,
		XPReward:       300,
		Penalty:        credits(35),
		Recommendation: "At least one act should be for a stranger.",
		Special:        true,
	},
	{
		Title:          "Skill-Teaching Video",
		Description:    "Record a three-minute video teaching someone a skill you are good at.",
		Category:       "Learning",
		Difficulty:     model.DifficultyHard,
		ProofType:      model.ProofPhoto,
		XPReward:       270,
		Penalty:        credits(30),
		Recommendation: "Show the end result first, then break it down.",
		Special:        true,
	},
}

// Draft converts a template into a draft without timestamps.
func (t Template) Draft() model.TaskDraft {
	penalty := t.Penalty
	var rec *string
	if t.Recommendation != "" {
		r := t.Recommendation
		rec = &r
	}
	return model.TaskDraft{
		Title:              t.Title,
		Description:        t.Description,
		Category:           t.Category,
		Difficulty:         t.Difficulty,
		ProofType:          t.ProofType,
		XPReward:           t.XPReward,
		CreatedBy:          model.CreatedByAI,
		AIRecommendation:   rec,
		IsSpecialChallenge: t.Special,
		FailurePenalty:     &penalty,
	}
}

// fromPool picks up to count templates of difficulty d, rotating the start
// by seed so consecutive days see different tasks. Templates whose title is
// in skip are passed over. Special challenges are only returned when special
// is set, and then only those.
func fromPool(d model.Difficulty, special bool, count int, seed int, skip map[string]bool) []model.TaskDraft {
	var matches []Template
	for _, t := range FallbackPool {
		if t.Special != special {
			continue
		}
		if d != model.DifficultyUnspecified && t.Difficulty != d {
			continue
		}
		if skip[t.Title] {
			continue
		}
		matches = append(matches, t)
	}
	if len(matches) == 0 || count <= 0 {
		return nil
	}
	if count > len(matches) {
		count = len(matches)
	}

	start := seed % len(matches)
	if start < 0 {
		start = -start
	}
	out := make([]model.TaskDraft, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, matches[(start+i)%len(matches)].Draft())
	}
	return out
}
