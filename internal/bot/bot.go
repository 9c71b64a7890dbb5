// Package bot runs the optional Telegram bot: it delivers notifications to
// linked chats and lets users play from the chat.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/Anthonytesla02/Level-Up/internal/config"
	"github.com/Anthonytesla02/Level-Up/internal/model"
	"github.com/Anthonytesla02/Level-Up/internal/service"
)

// commandTimeout bounds the service calls of one command.
const commandTimeout = 30 * time.Second

// Services is what the commands need from the service layer.
type Services interface {
	Register(ctx context.Context, nu model.NewUser) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	RecordLogin(ctx context.Context, userID int64, now time.Time) (*service.LoginResult, error)
	AwardXP(ctx context.Context, userID, amount int64) (*service.XPAward, error)
	AddXPass(ctx context.Context, userID, amount int64) (*model.User, error)
	GrantAchievement(ctx context.Context, a model.Achievement) (*model.Achievement, error)
	Achievements(ctx context.Context, userID int64) ([]*model.Achievement, error)
	History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)

	Create(ctx context.Context, userID int64, in service.CreateTaskInput) (*model.Task, error)
	Tasks(ctx context.Context, userID int64) ([]*model.Task, error)
	ActiveTasks(ctx context.Context, userID int64) ([]*model.Task, error)
	CompletedTasks(ctx context.Context, userID int64) ([]*model.Task, error)
	FailedTasks(ctx context.Context, userID int64) ([]*model.Task, error)
	Complete(ctx context.Context, userID, taskID int64, proof string) (*service.Completion, error)
	Fail(ctx context.Context, userID, taskID int64) (*service.Failure, error)
	Detail(ctx context.Context, taskID int64) (*service.TaskDetail, error)

	Suggest(ctx context.Context, userID int64, d model.Difficulty, special bool, count int) ([]model.TaskDraft, error)
	Accept(ctx context.Context, userID int64, draft model.TaskDraft) (*model.Task, error)
	GenerateDaily(ctx context.Context, userID int64) ([]*model.Task, error)

	Apply(ctx context.Context, userID, taskID, optionID int64) (*service.Resolution, error)
	ApplyDefault(ctx context.Context, taskID int64) (*service.Resolution, error)

	TopUsers(ctx context.Context, limit int) ([]*model.User, error)
	DailyLeaders(ctx context.Context, limit int) ([]*model.DailyRank, error)
}

// Bot wraps the telebot instance.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.TelegramConfig
	services Services
	links    *Links
	now      func() time.Time

	mu          sync.Mutex
	suggestions map[int64][]model.TaskDraft
}

// New creates a Bot using long polling.
func New(cfg *config.TelegramConfig, services Services) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newBot(teleBot, cfg, services), nil
}

func newBot(teleBot *tele.Bot, cfg *config.TelegramConfig, services Services) *Bot {
	b := &Bot{
		bot:         teleBot,
		cfg:         cfg,
		services:    services,
		links:       NewLinks(cfg),
		now:         time.Now,
		suggestions: make(map[int64][]model.TaskDraft),
	}
	b.registerMiddleware()
	b.registerHandlers()
	return b
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/register", b.handleRegister)

	linked := b.bot.Group()
	linked.Use(LinkedChatMiddleware(b.links))
	linked.Handle("/me", b.handleMe)
	linked.Handle("/quests", b.handleQuests)
	linked.Handle("/daily", b.handleDaily)
	linked.Handle("/add", b.handleAdd)
	linked.Handle("/suggest", b.handleSuggest)
	linked.Handle("/accept", b.handleAccept)
	linked.Handle("/complete", b.handleComplete)
	linked.Handle("/fail", b.handleFail)
	linked.Handle("/options", b.handleOptions)
	linked.Handle("/punish", b.handlePunish)
	linked.Handle("/history", b.handleHistory)
	linked.Handle("/achievements", b.handleAchievements)
	linked.Handle("/rank", b.handleRank)

	admin := b.bot.Group()
	admin.Use(AdminMiddleware(b.cfg))
	admin.Handle("/grant", b.handleGrant)
	admin.Handle("/award", b.handleAward)
}

// ChatFor returns the chat linked to a quest user, for the notification sink.
func (b *Bot) ChatFor(userID int64) (int64, bool) {
	return b.links.ChatFor(userID)
}

// Send implements notify.Sender.
func (b *Bot) Send(chatID int64, text string) error {
	if _, err := b.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("failed to send to chat %d: %w", chatID, err)
	}
	return nil
}

// Start starts polling. It blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting telegram bot...")
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping telegram bot...")
	b.bot.Stop()
}

func (b *Bot) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (b *Bot) rememberSuggestions(userID int64, drafts []model.TaskDraft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suggestions[userID] = drafts
}

// takeSuggestion removes and returns the nth (1-based) remembered draft.
func (b *Bot) takeSuggestion(userID int64, n int) (model.TaskDraft, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	drafts := b.suggestions[userID]
	if n < 1 || n > len(drafts) {
		return model.TaskDraft{}, false
	}
	d := drafts[n-1]
	drafts[n-1] = model.TaskDraft{}
	return d, d.Title != ""
}
