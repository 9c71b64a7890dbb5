package bot

import (
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/Anthonytesla02/Level-Up/internal/config"
)

const linkedUserKey = "linked_user"

// ChatLinks resolves the quest user of a chat.
type ChatLinks interface {
	UserForChat(chatID int64) (int64, bool)
}

// LinkedChatMiddleware ignores commands from chats that are not linked to a
// quest user and stores the user id on the context otherwise.
func LinkedChatMiddleware(links ChatLinks) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			userID, ok := links.UserForChat(chat.ID)
			if !ok {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring command from unlinked chat")
				return c.Send("This chat is not linked. Send /start for instructions.")
			}
			c.Set(linkedUserKey, userID)
			return next(c)
		}
	}
}

// AdminMiddleware only lets chats listed in telegram.admins through.
func AdminMiddleware(cfg *config.TelegramConfig) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || !slices.Contains(cfg.Admins, chat.ID) {
				return c.Send("⛔ This command is for administrators.")
			}
			return next(c)
		}
	}
}

// LinkedUser returns the user id stored by LinkedChatMiddleware.
func LinkedUser(c tele.Context) int64 {
	id, _ := c.Get(linkedUserKey).(int64)
	return id
}

// LoggingMiddleware logs each update with the handler's outcome and latency.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			if chat := c.Chat(); chat != nil {
				ev = ev.Int64("chat_id", chat.ID)
			}
			if sender := c.Sender(); sender != nil {
				ev = ev.Str("username", sender.Username)
			}
			ev.Str("text", c.Text()).
				Dur("took", time.Since(start)).
				Msg("Handled update")
			return err
		}
	}
}

// RecoveryMiddleware turns a handler panic into an apology to the chat.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ev := log.Error().Interface("panic", r)
				if chat := c.Chat(); chat != nil {
					ev = ev.Int64("chat_id", chat.ID)
				}
				ev.Msg("Handler panicked")
				err = c.Send("❌ Something went wrong, try again later")
			}()
			return next(c)
		}
	}
}
