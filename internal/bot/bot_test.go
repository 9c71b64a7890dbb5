package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"github.com/Anthonytesla02/Level-Up/internal/ai"
	"github.com/Anthonytesla02/Level-Up/internal/config"
	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
	"github.com/Anthonytesla02/Level-Up/internal/service"
)

// TestChatLinkRoundTripProperty checks that every configured link resolves
// in both directions.
func TestChatLinkRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "links")
		cfg := &config.TelegramConfig{Chats: make(map[string]int64)}
		users := make(map[int64]int64)
		usedChats := make(map[int64]bool)
		for i := 0; i < n; i++ {
			userID := rapid.Int64Range(1, 1_000_000).Draw(t, "userID")
			chatID := rapid.Int64Range(1, 1_000_000_000).Draw(t, "chatID")
			if _, dup := users[userID]; dup || usedChats[chatID] {
				continue
			}
			users[userID] = chatID
			usedChats[chatID] = true
			cfg.Chats[fmt.Sprintf("%d", userID)] = chatID
		}

		links := NewLinks(cfg)
		for userID, chatID := range users {
			got, ok := links.ChatFor(userID)
			if !ok || got != chatID {
				t.Fatalf("ChatFor(%d) = %d, %v; want %d", userID, got, ok, chatID)
			}
			back, ok := links.UserForChat(chatID)
			if !ok || back != userID {
				t.Fatalf("UserForChat(%d) = %d, %v; want %d", chatID, back, ok, userID)
			}
		}

		stranger := -rapid.Int64Range(1, 1_000_000_000).Draw(t, "stranger")
		if _, ok := links.UserForChat(stranger); ok {
			t.Fatalf("unlinked chat %d resolved to a user", stranger)
		}
	})
}

func newOfflineBot(t *testing.T, sent *atomic.Int32) *tele.Bot {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
	}))
	t.Cleanup(api.Close)

	b, err := tele.NewBot(tele.Settings{Token: "test", URL: api.URL, Offline: true})
	require.NoError(t, err)
	return b
}

func TestLinkedChatMiddleware(t *testing.T) {
	cfg := &config.TelegramConfig{Chats: map[string]int64{"42": 700}}
	var sent atomic.Int32
	b := newOfflineBot(t, &sent)

	var seen int64
	handler := LinkedChatMiddleware(NewLinks(cfg))(func(c tele.Context) error {
		seen = LinkedUser(c)
		return nil
	})

	linked := b.NewContext(tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: 700}, Text: "/me"}})
	require.NoError(t, handler(linked))
	assert.Equal(t, int64(42), seen)
	assert.Equal(t, int32(0), sent.Load())

	seen = 0
	unlinked := b.NewContext(tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: 701}, Text: "/me"}})
	require.NoError(t, handler(unlinked))
	assert.Zero(t, seen)
	assert.Equal(t, int32(1), sent.Load())
}

func TestRecoveryMiddleware(t *testing.T) {
	var sent atomic.Int32
	b := newOfflineBot(t, &sent)

	handler := RecoveryMiddleware()(func(c tele.Context) error {
		panic("boom")
	})
	c := b.NewContext(tele.Update{Message: &tele.Message{Chat: &tele.Chat{ID: 1}}})
	assert.NotPanics(t, func() { _ = handler(c) })
	assert.Equal(t, int32(1), sent.Load())
}

func TestFormatProfile(t *testing.T) {
	u := &model.User{Username: "ada", Title: "Rising Adventurer", Level: 6, XP: 1200, XPass: 80, Streak: 4}
	out := FormatProfile(u)
	assert.Contains(t, out, "ada (Rising Adventurer)")
	assert.Contains(t, out, "Level 6 · 1200 XP · 80 credits")
	assert.NotContains(t, out, "Locked")

	u.IsLocked = true
	assert.Contains(t, FormatProfile(u), "Locked")
}

func TestFormatQuests(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "No active quests.", FormatQuests(nil, now))

	out := FormatQuests([]*model.Task{
		{ID: 4, Title: "Shadow Boxing", Difficulty: model.DifficultyMedium, XPReward: 200, ExpiresAt: now.Add(90 * time.Minute)},
		{ID: 5, Title: "Late", Difficulty: model.DifficultyEasy, XPReward: 50, ExpiresAt: now.Add(-time.Hour)},
	}, now)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "• #4 Shadow Boxing [medium, 200 XP] 1h30m0s left", lines[1])
	assert.Equal(t, "• #5 Late [easy, 50 XP] 0s left", lines[2])
}

func TestErrorReply(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrapped: %w", service.ErrUserLocked), "Choose a punishment"},
		{service.ErrBusy, "still running"},
		{lock.ErrLockTimeout, "still running"},
		{service.ErrTaskExpired, "expired"},
		{repository.ErrTaskNotFound, "No such quest"},
		{model.ErrInvalidTransition, "no longer active"},
		{service.ErrPunishmentResolved, "already chosen"},
		{repository.ErrUserExists, "already taken"},
		{fmt.Errorf("%w: title", service.ErrInvalidInput), "Invalid input"},
		{errors.New("db down"), "try again later"},
	}
	for _, tt := range tests {
		assert.Contains(t, ErrorReply(tt.err), tt.want, tt.err.Error())
	}
}

func TestLinks_LinkAtRuntime(t *testing.T) {
	links := NewLinks(&config.TelegramConfig{Chats: map[string]int64{"1": 10, "bad": 11}})
	_, ok := links.UserForChat(11)
	assert.False(t, ok)

	links.Link(2, 20)
	user, ok := links.UserForChat(20)
	require.True(t, ok)
	assert.Equal(t, int64(2), user)

	links.Link(2, 21)
	_, ok = links.UserForChat(20)
	assert.False(t, ok)
	chat, _ := links.ChatFor(2)
	assert.Equal(t, int64(21), chat)
}

func TestFormatResolution(t *testing.T) {
	opt := &model.PunishmentOption{Description: "Pay 10 credits", PenaltyType: model.PenaltyCredits, PenaltyAmount: 10}
	free := FormatResolution(&service.Resolution{User: &model.User{XP: 5, XPass: 90}, Option: opt})
	assert.Contains(t, free, "Pay 10 credits (-10 credits)")
	assert.Contains(t, free, "take quests again")

	locked := FormatResolution(&service.Resolution{User: &model.User{IsLocked: true}, Option: opt})
	assert.Contains(t, locked, "still need a punishment")
}

type chatServices struct {
	*service.AccountService
	*service.TaskService
	*service.QuestService
	*service.PunishmentResolver
	*service.LeaderboardService
}

// chatHarness drives a Bot over real services and an in-memory store and
// records every reply.
type chatHarness struct {
	bot *Bot

	mu      sync.Mutex
	replies []string
}

func newChatHarness(t *testing.T, cfg *config.TelegramConfig) *chatHarness {
	t.Helper()
	h := &chatHarness{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.mu.Lock()
		h.replies = append(h.replies, body.Text)
		h.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
	}))
	t.Cleanup(api.Close)

	teleBot, err := tele.NewBot(tele.Settings{Token: "test", URL: api.URL, Offline: true, Synchronous: true})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	locks := lock.NewKeyedLock()
	accounts := service.NewAccountService(store, locks)
	resolver := service.NewPunishmentResolver(store, nil, locks)
	tasks := service.NewTaskService(store, accounts, resolver, nil, locks)
	h.bot = newBot(teleBot, cfg, &chatServices{
		AccountService:     accounts,
		TaskService:        tasks,
		QuestService:       service.NewQuestService(tasks, ai.NewGenerator(nil, ai.Options{})),
		PunishmentResolver: resolver,
		LeaderboardService: service.NewLeaderboardService(store, time.Local),
	})
	return h
}

// say sends text from chatID and returns the bot's last reply.
func (h *chatHarness) say(chatID int64, text string) string {
	h.bot.bot.ProcessUpdate(tele.Update{Message: &tele.Message{
		Chat:   &tele.Chat{ID: chatID},
		Sender: &tele.User{ID: chatID, FirstName: "Test"},
		Text:   text,
	}})
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.replies) == 0 {
		return ""
	}
	return h.replies[len(h.replies)-1]
}

func TestCommands_QuestLifecycle(t *testing.T) {
	h := newChatHarness(t, &config.TelegramConfig{})
	const chat = 500

	assert.Contains(t, h.say(chat, "/start"), "not linked")
	assert.Contains(t, h.say(chat, "/me"), "not linked")
	assert.Contains(t, h.say(chat, "/register hero"), "Usage")
	assert.Contains(t, h.say(chat, "/register hero hero@example.com"), "Welcome, hero")
	assert.Contains(t, h.say(chat, "/register hero2 hero2@example.com"), "already linked")
	assert.Contains(t, h.say(chat, "/start"), "user 1")

	me := h.say(chat, "/me")
	assert.Contains(t, me, "hero")
	assert.Contains(t, me, "Streak: 1")

	assert.Contains(t, h.say(chat, "/add hard Run a marathon"), "Quest #1 added: Run a marathon [hard")
	assert.Contains(t, h.say(chat, "/quests"), "#1 Run a marathon")
	assert.Contains(t, h.say(chat, "/complete 1 finished in 4h"), "Quest #1 complete")
	assert.Contains(t, h.say(chat, "/complete 1"), "no longer active")

	assert.Contains(t, h.say(chat, "/add easy Stretch"), "Quest #2 added")
	assert.Contains(t, h.say(chat, "/fail 2"), "Send /options 2")
	assert.Contains(t, h.say(chat, "/daily"), "Choose a punishment")
	assert.Contains(t, h.say(chat, "/options 2"), "/punish 2 <option>")

	resolved := h.say(chat, "/punish 2")
	assert.Contains(t, resolved, "Charged: Pay 10 credits")
	assert.Contains(t, resolved, "take quests again")
	assert.Contains(t, h.say(chat, "/punish 2"), "already chosen")

	assert.Contains(t, h.say(chat, "/quests done"), "#1 Run a marathon")
	assert.Contains(t, h.say(chat, "/quests failed"), "#2 Stretch")
	assert.Contains(t, h.say(chat, "/quests all"), "#2 Stretch [easy")
	assert.Contains(t, h.say(chat, "/quests later"), "Usage")

	assert.Contains(t, h.say(chat, "/daily"), "new quest(s) for today")
	assert.Contains(t, h.say(chat, "/daily"), "already on your board")

	assert.Contains(t, h.say(chat, "/history"), "task_reward")
	assert.Contains(t, h.say(chat, "/rank"), "1. hero")
	assert.Contains(t, h.say(chat, "/rank today"), "hero +")
}

func TestCommands_SuggestAndAccept(t *testing.T) {
	h := newChatHarness(t, &config.TelegramConfig{})
	const chat = 600
	h.say(chat, "/register sam sam@example.com")

	assert.Contains(t, h.say(chat, "/accept 1"), "Send /suggest first")
	assert.Contains(t, h.say(chat, "/suggest impossible"), "Usage")
	assert.Contains(t, h.say(chat, "/suggest medium"), "Send /accept <number>")
	assert.Contains(t, h.say(chat, "/accept 1"), "accepted")
	assert.Contains(t, h.say(chat, "/accept 1"), "Send /suggest first")
	assert.Contains(t, h.say(chat, "/accept 2"), "accepted")
	assert.Contains(t, h.say(chat, "/achievements"), "No achievements yet")
}

func TestCommands_OtherUsersQuestsAreHidden(t *testing.T) {
	h := newChatHarness(t, &config.TelegramConfig{})
	h.say(700, "/register ann ann@example.com")
	h.say(701, "/register ben ben@example.com")

	h.say(700, "/add Read a chapter")
	h.say(700, "/fail 1")

	assert.Contains(t, h.say(701, "/options 1"), "No such quest")
	assert.Contains(t, h.say(701, "/punish 1"), "No such quest")
	assert.Contains(t, h.say(701, "/complete 1"), "No such quest")
	assert.Contains(t, h.say(701, "/options 99"), "No such quest")
}

func TestCommands_GrantIsAdminOnly(t *testing.T) {
	h := newChatHarness(t, &config.TelegramConfig{Admins: []int64{900}})
	h.say(800, "/register cat cat@example.com")

	assert.Contains(t, h.say(800, "/grant 1 credits 50"), "administrators")
	assert.Contains(t, h.say(900, "/grant 1 credits 50"), "150 credits")
	assert.Contains(t, h.say(900, "/grant 1 xp 120"), "120 XP")
	assert.Contains(t, h.say(900, "/grant 1 gold 5"), "Usage")
	assert.Contains(t, h.say(900, "/grant 1 xp -5"), "Invalid input")

	assert.Contains(t, h.say(800, "/award 1 Early Bird"), "administrators")
	assert.Contains(t, h.say(900, "/award 1 Early Bird"), "unlocked Early Bird")
	assert.Contains(t, h.say(800, "/achievements"), "Early Bird")
}
