// Package membership checks that users have joined the channels the bot requires.
package membership

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/sync/errgroup"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// MemberLookup is the part of the Telegram API the gate needs. *telego.Bot implements it.
type MemberLookup interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// Channel is a chat users must join.
type Channel struct {
	ChatID telego.ChatID
	Name   string
	Link   string
}

// Gate answers whether a user has joined every required channel. Results are never cached.
type Gate struct {
	lookup   MemberLookup
	channels []Channel
}

// NewGate creates a gate over the given channels.
func NewGate(lookup MemberLookup, channels []Channel) *Gate {
	return &Gate{lookup: lookup, channels: channels}
}

// ChannelsFromConfig turns "@name" or numeric chat references into channels with join links.
func ChannelsFromConfig(cfgs []config.ChannelConfig) ([]Channel, error) {
	channels := make([]Channel, 0, len(cfgs))
	for _, c := range cfgs {
		chat := strings.TrimSpace(c.Chat)
		ch := Channel{Name: chat, Link: c.Link}

		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			ch.ChatID = tu.ID(id)
			if ch.Link == "" {
				return nil, fmt.Errorf("channel %s: a link is required for numeric chat ids", chat)
			}
		} else {
			if !strings.HasPrefix(chat, "@") {
				chat = "@" + chat
			}
			ch.Name = chat
			ch.ChatID = tu.Username(chat)
			if ch.Link == "" {
				ch.Link = "https://t.me/" + strings.TrimPrefix(chat, "@")
			}
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// IsMember reports whether userID is a member, administrator or creator of
// every channel. A failed lookup counts as not a member. Lookups run
// concurrently and the first negative answer cancels the rest.
func (g *Gate) IsMember(ctx context.Context, userID int64) bool {
	if len(g.channels) == 0 {
		return true
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, ch := range g.channels {
		eg.Go(func() error {
			member, err := g.lookup.GetChatMember(egCtx, &telego.GetChatMemberParams{
				ChatID: ch.ChatID,
				UserID: userID,
			})
			if err != nil {
				return fmt.Errorf("lookup %d in %s: %w", userID, ch.Name, models.NewTransportError("getChatMember", err))
			}
			if !isMemberStatus(member.MemberStatus()) {
				return fmt.Errorf("user %d in %s has status %q: %w", userID, ch.Name, member.MemberStatus(), models.ErrNotMember)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Debugf("Membership check failed: %v", err)
		return false
	}
	return true
}

// Check is IsMember as an error: nil or models.ErrNotMember.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	if !g.IsMember(ctx, userID) {
		return models.ErrNotMember
	}
	return nil
}

// JoinKeyboard builds one URL button per channel, each on its own row.
func (g *Gate) JoinKeyboard(buttonFormat string) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(g.channels))
	for _, ch := range g.channels {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf(buttonFormat, ch.Name)).WithURL(ch.Link),
		))
	}
	return tu.InlineKeyboard(rows...)
}

func isMemberStatus(status string) bool {
	switch status {
	case telego.MemberStatusMember, telego.MemberStatusAdministrator, telego.MemberStatusCreator:
		return true
	default:
		return false
	}
}
