package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// ChatResolver maps a user to the chat that receives their notifications.
type ChatResolver func(userID int64) (int64, bool)

type outgoing struct {
	chatID int64
	text   string
	userID int64
}

// TelegramSink formats events as chat messages. Messages are queued and sent
// by a single worker; when the queue is full the event is dropped.
type TelegramSink struct {
	sender  Sender
	chatFor ChatResolver
	queue   chan outgoing
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewTelegramSink starts the send worker. Close stops it.
func NewTelegramSink(sender Sender, chatFor ChatResolver, queueSize int) *TelegramSink {
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &TelegramSink{
		sender:  sender,
		chatFor: chatFor,
		queue:   make(chan outgoing, queueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit implements Emitter.
func (s *TelegramSink) Emit(_ context.Context, e Event) {
	chatID, ok := s.chatFor(e.UserID)
	if !ok {
		return
	}
	text := FormatMessage(e)
	if text == "" {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- outgoing{chatID: chatID, text: text, userID: e.UserID}:
	default:
		log.Warn().Int64("user_id", e.UserID).Str("type", string(e.Type)).Msg("Telegram queue full, dropping event")
	}
}

func (s *TelegramSink) run() {
	defer close(s.done)
	for msg := range s.queue {
		if err := s.sender.Send(msg.chatID, msg.text); err != nil {
			log.Warn().Err(err).
				Int64("user_id", msg.userID).
				Int64("chat_id", msg.chatID).
				Msg("Failed to send telegram notification")
		}
	}
}

// Close sends what is queued and stops the worker.
func (s *TelegramSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// FormatMessage renders an event as chat text. Unknown events render empty.
func FormatMessage(e Event) string {
	switch e.Type {
	case TypeTaskFailed:
		d, ok := e.Data.(TaskFailedData)
		if !ok || d.Task == nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "❌ Quest failed: %s\n", d.Task.Title)
		if a := d.Applied; a != nil {
			fmt.Fprintf(&b, "Declared penalty charged: %s (-%d %s)", a.Description, a.PenaltyAmount, a.PenaltyType)
			return b.String()
		}
		b.WriteString("Choose your punishment:\n")
		for _, o := range d.PunishmentOptions {
			fmt.Fprintf(&b, "• [%d] %s (-%d %s)\n", o.ID, o.Description, o.PenaltyAmount, o.PenaltyType)
		}
		fmt.Fprintf(&b, "Your account is locked until you pick one with /punish %d <option>.", d.Task.ID)
		return b.String()
	case TypeTaskCompleted:
		d, ok := e.Data.(TaskCompletedData)
		if !ok || d.Task == nil {
			return ""
		}
		text := fmt.Sprintf("✅ Quest complete: %s\n+%d XP", d.Task.Title, d.XPDelta)
		if d.LevelUp {
			text += fmt.Sprintf("\n🎉 Level up! You are now level %d", d.Level)
		}
		return text
	case TypeNewTask:
		t, ok := e.Data.(*model.Task)
		if !ok || t == nil {
			return ""
		}
		text := fmt.Sprintf("🆕 New quest: %s (%s, %d XP)", t.Title, t.Difficulty, t.XPReward)
		if t.IsSpecialChallenge {
			text = "⭐ " + text
		}
		return text
	}
	return ""
}
