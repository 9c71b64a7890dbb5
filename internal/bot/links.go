package bot

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/config"
)

// Links maps quest users to Telegram chats. It starts from telegram.chats
// and grows as chats register. Runtime links live in memory only.
type Links struct {
	mu     sync.RWMutex
	byUser map[int64]int64
}

// NewLinks seeds Links from the configured chats. Keys that are not user
// ids are skipped.
func NewLinks(cfg *config.TelegramConfig) *Links {
	l := &Links{byUser: make(map[int64]int64, len(cfg.Chats))}
	for key, chat := range cfg.Chats {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			log.Warn().Str("key", key).Msg("Skipping telegram chat link with a non-numeric user id")
			continue
		}
		l.byUser[id] = chat
	}
	return l
}

// ChatFor returns the chat linked to a quest user.
func (l *Links) ChatFor(userID int64) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	chat, ok := l.byUser[userID]
	return chat, ok
}

// UserForChat returns the quest user linked to a chat.
func (l *Links) UserForChat(chatID int64) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for user, chat := range l.byUser {
		if chat == chatID {
			return user, true
		}
	}
	return 0, false
}

// Link points userID at chatID, replacing any earlier chat of that user.
func (l *Links) Link(userID, chatID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byUser[userID] = chatID
}
