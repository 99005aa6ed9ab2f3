
// Package membership adapts the Telegram getChatMember call into the gate's
// oracle interface.
package membership

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/unknownwarrior911/course-sales-bot/internal/gate"
)

// ChatMemberOracle queries membership through the Bot API. Each check is a
// single attempt bounded by the configured timeout; anything ambiguous
// (API error, timeout, unknown status) reports gate.StatusError so the gate
// can fail open for that channel.
type ChatMemberOracle struct {
	bot     *tgbotapi.BotAPI
	timeout time.Duration
}

func NewChatMemberOracle(bot *tgbotapi.BotAPI, timeout time.Duration) *ChatMemberOracle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChatMemberOracle{bot: bot, timeout: timeout}
}

func (o *ChatMemberOracle) MembershipStatus(ctx context.Context, channelID, userID int64) gate.Status {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type reply struct {
		member tgbotapi.ChatMember
		err    error
	}
	ch := make(chan reply, 1)

	// The bot-api client has no context support; run the call aside and
	// abandon it on timeout.
	go func() {
		member, err := o.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: channelID,
				UserID: userID,
			},
		})
		ch <- reply{member: member, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Printf("[membership] check timed out for channel %d user %d", channelID, userID)
		return gate.StatusError
	case r := <-ch:
		if r.err != nil {
			log.Printf("[membership] check failed for channel %d user %d: %v", channelID, userID, r.err)
			return gate.StatusError
		}
		return mapStatus(r.member)
	}
}

func mapStatus(m tgbotapi.ChatMember) gate.Status {
	switch m.Status {
	case "creator":
		return gate.StatusOwner
	case "administrator":
		return gate.StatusAdmin
	case "member":
		return gate.StatusMember
	case "restricted":
		// Restricted users are still in the chat unless Telegram says otherwise.
		if m.IsMember {
			return gate.StatusMember
		}
		return gate.StatusLeft
	case "left":
		return gate.StatusLeft
	case "kicked":
		return gate.StatusKicked
	default:
		return gate.StatusError
	}
}
