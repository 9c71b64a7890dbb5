package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/service"
)

const (
	suggestionCount = 3
	listLimit       = 10
)

// handleStart tells the user whether the chat is linked and how to link it.
func (b *Bot) handleStart(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if userID, ok := b.links.UserForChat(chat.ID); ok {
		return c.Send(fmt.Sprintf("This chat receives quest notifications for user %d. Send /daily for today's quests.", userID))
	}
	return c.Send(fmt.Sprintf(
		"This chat is not linked yet. Send /register <username> <email> to create an account, "+
			"or add chat id %d to telegram.chats for an existing one.", chat.ID))
}

func (b *Bot) handleRegister(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if userID, ok := b.links.UserForChat(chat.ID); ok {
		return c.Send(fmt.Sprintf("This chat is already linked to user %d.", userID))
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Usage: /register <username> <email>")
	}

	nu := model.NewUser{Username: args[0], Email: args[1]}
	if sender := c.Sender(); sender != nil {
		nu.DisplayName = strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	}
	ctx, cancel := b.context()
	defer cancel()
	user, err := b.services.Register(ctx, nu)
	if err != nil {
		return b.replyError(c, err, "Failed to register user")
	}

	b.links.Link(user.ID, chat.ID)
	log.Info().
		Int64("user_id", user.ID).
		Int64("chat_id", chat.ID).
		Msg("Chat linked to new user, add it to telegram.chats to keep it across restarts")
	return c.Send(fmt.Sprintf(
		"🎉 Welcome, %s! You start at level %d with %d credits. Send /daily for today's quests.",
		user.Username, user.Level, user.XPass))
}

// handleMe records the daily check-in and shows the profile.
func (b *Bot) handleMe(c tele.Context) error {
	userID := LinkedUser(c)
	ctx, cancel := b.context()
	defer cancel()
	res, err := b.services.RecordLogin(ctx, userID, b.now())
	if err != nil {
		return b.replyError(c, err, "Failed to record login")
	}
	text := FormatProfile(res.User)
	for _, a := range res.Achievements {
		text += fmt.Sprintf("\n🏅 New achievement: %s (+%d XP)", a.Title, a.XPReward)
	}
	return c.Send(text)
}

// handleQuests lists quests: /quests [done|failed|all]. Active ones by
// default.
func (b *Bot) handleQuests(c tele.Context) error {
	userID := LinkedUser(c)
	ctx, cancel := b.context()
	defer cancel()

	filter := ""
	if args := c.Args(); len(args) > 0 {
		filter = strings.ToLower(args[0])
	}
	var (
		tasks []*model.Task
		err   error
	)
	switch filter {
	case "":
		tasks, err = b.services.ActiveTasks(ctx, userID)
		if err == nil {
			return c.Send(FormatQuests(tasks, b.now()))
		}
	case "done":
		tasks, err = b.services.CompletedTasks(ctx, userID)
	case "failed":
		tasks, err = b.services.FailedTasks(ctx, userID)
	case "all":
		tasks, err = b.services.Tasks(ctx, userID)
	default:
		return c.Send("Usage: /quests [done|failed|all]")
	}
	if err != nil {
		return b.replyError(c, err, "Failed to load quests")
	}
	return c.Send(FormatTaskList(tasks))
}

func (b *Bot) handleDaily(c tele.Context) error {
	userID := LinkedUser(c)
	ctx, cancel := b.context()
	defer cancel()
	created, err := b.services.GenerateDaily(ctx, userID)
	if err != nil {
		return b.replyError(c, err, "Failed to generate daily quests")
	}
	if len(created) == 0 {
		return c.Send("Today's quests are already on your board. Use /quests to see them.")
	}
	return c.Send(fmt.Sprintf("🎲 %d new quest(s) for today!\n%s", len(created), FormatQuests(created, b.now())))
}

// handleAdd creates a user-written quest: /add [easy|medium|hard] <title>.
func (b *Bot) handleAdd(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("Usage: /add [easy|medium|hard] <title>")
	}
	var in service.CreateTaskInput
	if d := model.Difficulty(strings.ToLower(args[0])); d.Valid() {
		in.Difficulty = d
		args = args[1:]
	}
	in.Title = strings.Join(args, " ")

	ctx, cancel := b.context()
	defer cancel()
	task, err := b.services.Create(ctx, LinkedUser(c), in)
	if err != nil {
		return b.replyError(c, err, "Failed to create quest")
	}
	return c.Send(fmt.Sprintf("📝 Quest #%d added: %s [%s, %d XP]", task.ID, task.Title, task.Difficulty, task.XPReward))
}

// handleSuggest shows drafts to pick from: /suggest [easy|medium|hard|special].
func (b *Bot) handleSuggest(c tele.Context) error {
	var (
		d       model.Difficulty
		special bool
	)
	if args := c.Args(); len(args) > 0 {
		switch arg := strings.ToLower(args[0]); arg {
		case "special":
			special = true
		default:
			d = model.Difficulty(arg)
			if !d.Valid() {
				return c.Send("Usage: /suggest [easy|medium|hard|special]")
			}
		}
	}

	userID := LinkedUser(c)
	ctx, cancel := b.context()
	defer cancel()
	drafts, err := b.services.Suggest(ctx, userID, d, special, suggestionCount)
	if err != nil {
		return b.replyError(c, err, "Failed to suggest quests")
	}
	b.rememberSuggestions(userID, drafts)
	return c.Send(FormatSuggestions(drafts))
}

// handleAccept stores a suggestion: /accept <n>.
func (b *Bot) handleAccept(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /accept <number>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Send("Usage: /accept <number>")
	}

	userID := LinkedUser(c)
	draft, ok := b.takeSuggestion(userID, n)
	if !ok {
		return c.Send("No such suggestion. Send /suggest first.")
	}
	ctx, cancel := b.context()
	defer cancel()
	task, err := b.services.Accept(ctx, userID, draft)
	if err != nil {
		return b.replyError(c, err, "Failed to accept quest")
	}
	return c.Send(fmt.Sprintf("📝 Quest #%d accepted: %s [%s, %d XP]", task.ID, task.Title, task.Difficulty, task.XPReward))
}

// handleComplete finishes a quest: /complete <id> [proof].
func (b *Bot) handleComplete(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("Usage: /complete <quest id> [proof]")
	}
	taskID, ok := parseID(args[0])
	if !ok {
		return c.Send("Usage: /complete <quest id> [proof]")
	}
	proof := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Data()), args[0]))

	ctx, cancel := b.context()
	defer cancel()
	done, err := b.services.Complete(ctx, LinkedUser(c), taskID, proof)
	if err != nil {
		return b.replyError(c, err, "Failed to complete quest")
	}
	return c.Send(fmt.Sprintf("✅ Quest #%d complete. Level %d · %d XP", done.Task.ID, done.User.Level, done.User.XP))
}

// handleFail gives up on a quest: /fail <id>.
func (b *Bot) handleFail(c tele.Context) error {
	taskID, ok := singleID(c)
	if !ok {
		return c.Send("Usage: /fail <quest id>")
	}
	ctx, cancel := b.context()
	defer cancel()
	failure, err := b.services.Fail(ctx, LinkedUser(c), taskID)
	if err != nil {
		return b.replyError(c, err, "Failed to fail quest")
	}
	if failure.Applied != nil {
		return c.Send(fmt.Sprintf("❌ Quest #%d failed. %s", taskID, FormatResolution(failure.Applied)))
	}
	return c.Send(fmt.Sprintf("❌ Quest #%d failed. Send /options %d to see your punishments.", taskID, taskID))
}

// handleOptions lists the punishments of a failed quest: /options <id>.
func (b *Bot) handleOptions(c tele.Context) error {
	taskID, ok := singleID(c)
	if !ok {
		return c.Send("Usage: /options <quest id>")
	}
	ctx, cancel := b.context()
	defer cancel()
	detail, err := b.services.Detail(ctx, taskID)
	if err != nil {
		return b.replyError(c, err, "Failed to load punishment options")
	}
	if detail.Task.UserID != LinkedUser(c) {
		return c.Send(ErrorReply(service.ErrNotOwner))
	}
	return c.Send(FormatOptions(detail))
}

// handlePunish chooses a punishment: /punish <quest id> [option id]. Without
// an option the first one is taken.
func (b *Bot) handlePunish(c tele.Context) error {
	const usage = "Usage: /punish <quest id> [option id]"
	args := c.Args()
	if len(args) == 0 || len(args) > 2 {
		return c.Send(usage)
	}
	taskID, ok := parseID(args[0])
	if !ok {
		return c.Send(usage)
	}

	userID := LinkedUser(c)
	ctx, cancel := b.context()
	defer cancel()

	var (
		res *service.Resolution
		err error
	)
	if len(args) == 2 {
		optionID, ok := parseID(args[1])
		if !ok {
			return c.Send(usage)
		}
		res, err = b.services.Apply(ctx, userID, taskID, optionID)
	} else {
		var detail *service.TaskDetail
		detail, err = b.services.Detail(ctx, taskID)
		if err == nil && detail.Task.UserID != userID {
			err = service.ErrNotOwner
		}
		if err == nil {
			res, err = b.services.ApplyDefault(ctx, taskID)
		}
	}
	if err != nil {
		return b.replyError(c, err, "Failed to apply punishment")
	}
	return c.Send(FormatResolution(res))
}

func (b *Bot) handleHistory(c tele.Context) error {
	ctx, cancel := b.context()
	defer cancel()
	entries, err := b.services.History(ctx, LinkedUser(c), listLimit)
	if err != nil {
		return b.replyError(c, err, "Failed to load history")
	}
	return c.Send(FormatHistory(entries))
}

func (b *Bot) handleAchievements(c tele.Context) error {
	ctx, cancel := b.context()
	defer cancel()
	achievements, err := b.services.Achievements(ctx, LinkedUser(c))
	if err != nil {
		return b.replyError(c, err, "Failed to load achievements")
	}
	return c.Send(FormatAchievements(achievements))
}

// handleRank shows the leaderboard: /rank [today].
func (b *Bot) handleRank(c tele.Context) error {
	ctx, cancel := b.context()
	defer cancel()
	if args := c.Args(); len(args) > 0 && strings.EqualFold(args[0], "today") {
		ranks, err := b.services.DailyLeaders(ctx, listLimit)
		if err != nil {
			return b.replyError(c, err, "Failed to load daily leaders")
		}
		return c.Send(FormatDailyLeaders(ranks))
	}
	users, err := b.services.TopUsers(ctx, listLimit)
	if err != nil {
		return b.replyError(c, err, "Failed to load leaderboard")
	}
	return c.Send(FormatLeaderboard(users))
}

// handleGrant adjusts a user's balance: /grant <user id> <xp|credits> <amount>.
func (b *Bot) handleGrant(c tele.Context) error {
	const usage = "Usage: /grant <user id> <xp|credits> <amount>"
	args := c.Args()
	if len(args) != 3 {
		return c.Send(usage)
	}
	userID, ok := parseID(args[0])
	if !ok {
		return c.Send(usage)
	}
	amount, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return c.Send(usage)
	}

	ctx, cancel := b.context()
	defer cancel()
	switch model.PenaltyType(strings.ToLower(args[1])) {
	case model.PenaltyXP:
		award, err := b.services.AwardXP(ctx, userID, amount)
		if err != nil {
			return b.replyError(c, err, "Failed to grant XP")
		}
		return c.Send(fmt.Sprintf("User %d now has %d XP (level %d).", userID, award.User.XP, award.User.Level))
	case model.PenaltyCredits:
		user, err := b.services.AddXPass(ctx, userID, amount)
		if err != nil {
			return b.replyError(c, err, "Failed to grant credits")
		}
		return c.Send(fmt.Sprintf("User %d now has %d credits.", userID, user.XPass))
	default:
		return c.Send(usage)
	}
}

// handleAward grants an achievement: /award <user id> <title>.
func (b *Bot) handleAward(c tele.Context) error {
	const usage = "Usage: /award <user id> <title>"
	args := c.Args()
	if len(args) < 2 {
		return c.Send(usage)
	}
	userID, ok := parseID(args[0])
	if !ok {
		return c.Send(usage)
	}

	ctx, cancel := b.context()
	defer cancel()
	a, err := b.services.GrantAchievement(ctx, model.Achievement{
		UserID:      userID,
		Title:       strings.Join(args[1:], " "),
		Description: "Granted by an administrator",
		Icon:        "🏅",
		UnlockedAt:  b.now(),
	})
	if err != nil {
		return b.replyError(c, err, "Failed to grant achievement")
	}
	return c.Send(fmt.Sprintf("🏅 User %d unlocked %s.", userID, a.Title))
}

func (b *Bot) replyError(c tele.Context, err error, msg string) error {
	reply := ErrorReply(err)
	ev := log.Debug()
	if reply == genericErrorReply {
		ev = log.Error()
	}
	ev.Err(err).Int64("user_id", LinkedUser(c)).Msg(msg)
	return c.Send(reply)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	return id, err == nil && id > 0
}

func singleID(c tele.Context) (int64, bool) {
	args := c.Args()
	if len(args) != 1 {
		return 0, false
	}
	return parseID(args[0])
}
