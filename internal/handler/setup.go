package handler

import (
	"context"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-vaultbot/internal/crash"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/service"
)

// Dependencies are the services the update handlers dispatch to.
type Dependencies struct {
	Resolver *service.Resolver
	Admin    *service.Admin
	Menu     *service.Menu
}

// SetupMessageHandlers configures all bot message and update handlers.
// Handlers are tried in registration order; commands come before free text.
func SetupMessageHandlers(bh *th.BotHandler, deps Dependencies) {
	RegisterCommands(bh, deps)

	// Menu buttons and search queries
	bh.HandleMessage(tracked("text", func(ctx *th.Context, message telego.Message) error {
		if !isPrivateUserMessage(message) {
			return nil
		}
		return handleText(ctx, deps, message)
	}), th.AnyMessageWithText())

	// New videos in the archive channel
	bh.HandleChannelPost(tracked("channel_post", func(ctx *th.Context, post telego.Message) error {
		incrementCounter(&totalChannelPosts)
		return deps.Admin.IndexVideo(ctx, post)
	}))
}

// handleText treats any text as the query while a search is pending, menu
// buttons included. Otherwise only menu buttons are acted on.
func handleText(ctx context.Context, deps Dependencies, message telego.Message) error {
	req := service.RequestFromMessage(message)

	if deps.Resolver.Awaiting(ctx, req) {
		recordOutcome(deps.Resolver.HandleQuery(ctx, req, message.Text))
		return nil
	}

	key, ok := matchMenuButton(message.Text)
	if !ok {
		recordOutcome(service.OutcomeIgnored)
		return nil
	}
	switch key {
	case "button_search":
		recordOutcome(deps.Resolver.BeginSearch(ctx, req))
	case "button_stats":
		return deps.Menu.Stats(ctx, req)
	case "button_help":
		return deps.Menu.Help(ctx, req)
	}
	return nil
}

// chatLocks serializes handling per chat. telegohandler runs every update in
// its own goroutine, so without it a query could race the /search that
// precedes it.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

var handlerLocks = &chatLocks{locks: make(map[int64]*chatLock)}

// lock blocks until chatID is free and returns the matching unlock.
// Entries are dropped once no goroutine holds or waits for them.
func (c *chatLocks) lock(chatID int64) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}

func (c *chatLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}

// tracked counts the update, logs handler errors and recovers from panics.
// Updates from one chat are handled one at a time. Errors are never returned
// to the bot handler so one bad update cannot stop the update loop.
func tracked(name string, fn th.MessageHandler) th.MessageHandler {
	return func(ctx *th.Context, message telego.Message) error {
		unlock := handlerLocks.lock(message.Chat.ID)
		defer unlock()
		defer crash.RecoverWithStack("handler:" + name)
		incrementCounter(&totalMessagesProcessed)

		if err := fn(ctx, message); err != nil {
			incrementCounter(&totalErrors)
			logger.Warningf("Handler %s failed for chat %d: %v", name, message.Chat.ID, err)
		}
		return nil
	}
}

func isPrivateUserMessage(message telego.Message) bool {
	return message.Chat.Type == telego.ChatTypePrivate && message.From != nil && !message.From.IsBot
}
