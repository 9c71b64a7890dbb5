package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
	"github.com/Anthonytesla02/Level-Up/internal/service"
)

const genericErrorReply = "❌ Something went wrong, try again later"

// ErrorReply turns a service error into a reply.
func ErrorReply(err error) string {
	switch {
	case errors.Is(err, service.ErrUserLocked):
		return "🔒 Choose a punishment for your failed quest before taking new ones."
	case errors.Is(err, service.ErrBusy), errors.Is(err, lock.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		return "⏳ Another request is still running, try again in a moment."
	case errors.Is(err, service.ErrTaskExpired):
		return "⌛ That quest has expired and counts as failed. Send /options with its id to choose a punishment."
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, repository.ErrNotFound):
		return "❓ No such quest or option."
	case errors.Is(err, model.ErrInvalidTransition):
		return "That quest is no longer active."
	case errors.Is(err, service.ErrTaskNotFailed):
		return "That quest has not failed."
	case errors.Is(err, service.ErrPunishmentResolved):
		return "A punishment was already chosen for that quest."
	case errors.Is(err, service.ErrOptionMismatch):
		return "That option belongs to another quest. Send /options with the quest id to list its own."
	case errors.Is(err, repository.ErrUserExists):
		return "That username or email is already taken."
	case errors.Is(err, service.ErrInvalidInput):
		return "⚠️ Invalid input, check the command and try again."
	default:
		return genericErrorReply
	}
}

// FormatProfile renders the /me reply.
func FormatProfile(u *model.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s (%s)\n", u.Username, u.Title)
	fmt.Fprintf(&b, "Level %d · %d XP · %d credits\n", u.Level, u.XP, u.XPass)
	fmt.Fprintf(&b, "🔥 Streak: %d day(s)", u.Streak)
	if u.IsLocked {
		b.WriteString("\n🔒 Locked: choose a punishment for your failed quest")
	}
	return b.String()
}

// FormatQuests renders the /quests reply.
func FormatQuests(tasks []*model.Task, now time.Time) string {
	if len(tasks) == 0 {
		return "No active quests."
	}
	var b strings.Builder
	b.WriteString("📜 Active quests:\n")
	for _, t := range tasks {
		left := t.ExpiresAt.Sub(now).Truncate(time.Minute)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(&b, "• #%d %s [%s, %d XP] %s left\n", t.ID, t.Title, t.Difficulty, t.XPReward, left)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTaskList renders quests of any status.
func FormatTaskList(tasks []*model.Task) string {
	if len(tasks) == 0 {
		return "No quests."
	}
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "• #%d %s [%s, %d XP] %s\n", t.ID, t.Title, t.Difficulty, t.XPReward, t.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSuggestions renders drafts numbered for /accept.
func FormatSuggestions(drafts []model.TaskDraft) string {
	if len(drafts) == 0 {
		return "No suggestions right now, try again later."
	}
	var b strings.Builder
	b.WriteString("💡 Suggestions:\n")
	for i, d := range drafts {
		star := ""
		if d.IsSpecialChallenge {
			star = "⭐ "
		}
		fmt.Fprintf(&b, "%d. %s%s [%s, %d XP]\n", i+1, star, d.Title, d.Difficulty, d.XPReward)
	}
	b.WriteString("Send /accept <number> to take one.")
	return b.String()
}

// FormatOptions renders the punishment options of a quest.
func FormatOptions(d *service.TaskDetail) string {
	if d.Task.Status != model.StatusFailed {
		return fmt.Sprintf("Quest #%d is %s, there is nothing to choose.", d.Task.ID, d.Task.Status)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚖️ Punishments for #%d %s:\n", d.Task.ID, d.Task.Title)
	for _, o := range d.PunishmentOptions {
		mark := ""
		if o.IsSelected {
			mark = " ✔"
		}
		fmt.Fprintf(&b, "• [%d] %s (-%d %s)%s\n", o.ID, o.Description, o.PenaltyAmount, o.PenaltyType, mark)
	}
	fmt.Fprintf(&b, "Send /punish %d <option> to choose.", d.Task.ID)
	return b.String()
}

// FormatResolution renders a charged punishment.
func FormatResolution(r *service.Resolution) string {
	text := fmt.Sprintf("Charged: %s (-%d %s). You have %d XP and %d credits.",
		r.Option.Description, r.Option.PenaltyAmount, r.Option.PenaltyType, r.User.XP, r.User.XPass)
	if r.User.IsLocked {
		return text + "\n🔒 Other failed quests still need a punishment."
	}
	return text + "\n🔓 You can take quests again."
}

// FormatHistory renders ledger entries, newest first.
func FormatHistory(entries []*model.LedgerEntry) string {
	if len(entries) == 0 {
		return "No history yet."
	}
	var b strings.Builder
	b.WriteString("📒 Recent changes:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s %+d %s (%s)", e.CreatedAt.Format("Jan 2 15:04"), e.Amount, e.Resource, e.Kind)
		if e.Description != nil {
			fmt.Fprintf(&b, " %s", *e.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAchievements renders unlocked achievements.
func FormatAchievements(achievements []*model.Achievement) string {
	if len(achievements) == 0 {
		return "No achievements yet. Keep your streak going!"
	}
	var b strings.Builder
	b.WriteString("🏅 Achievements:\n")
	for _, a := range achievements {
		fmt.Fprintf(&b, "• %s: %s\n", a.Title, a.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatLeaderboard renders the overall ranking.
func FormatLeaderboard(users []*model.User) string {
	if len(users) == 0 {
		return "Nobody is ranked yet."
	}
	var b strings.Builder
	b.WriteString("🏆 Leaderboard:\n")
	for i, u := range users {
		fmt.Fprintf(&b, "%d. %s · level %d · %d XP\n", i+1, u.Username, u.Level, u.XP)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDailyLeaders renders today's XP ranking.
func FormatDailyLeaders(ranks []*model.DailyRank) string {
	if len(ranks) == 0 {
		return "No XP earned today yet."
	}
	var b strings.Builder
	b.WriteString("📈 Today:\n")
	for i, r := range ranks {
		fmt.Fprintf(&b, "%d. %s +%d XP\n", i+1, r.Username, r.XPGained)
	}
	return strings.TrimRight(b.String(), "\n")
}
