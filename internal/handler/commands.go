package handler

import (
	"strings"
	"unicode"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
	"tg-vaultbot/internal/service"
)

// RegisterCommands registers bot commands
func RegisterCommands(bh *th.BotHandler, deps Dependencies) {
	bh.HandleMessage(privateCommand("start", func(ctx *th.Context, message telego.Message, args string) error {
		req := service.RequestFromMessage(message)
		deps.Menu.Register(ctx, req)

		if args != "" {
			recordOutcome(deps.Resolver.HandleDeepLink(ctx, req, args))
			return nil
		}
		return deps.Menu.Welcome(ctx, req)
	}), th.CommandEqual("start"))

	bh.HandleMessage(privateCommand("search", func(ctx *th.Context, message telego.Message, _ string) error {
		recordOutcome(deps.Resolver.BeginSearch(ctx, service.RequestFromMessage(message)))
		return nil
	}), th.CommandEqual("search"))

	bh.HandleMessage(privateCommand("cancel", func(ctx *th.Context, message telego.Message, _ string) error {
		recordOutcome(deps.Resolver.Cancel(ctx, service.RequestFromMessage(message)))
		return nil
	}), th.CommandEqual("cancel"))

	bh.HandleMessage(privateCommand("help", func(ctx *th.Context, message telego.Message, _ string) error {
		return deps.Menu.Help(ctx, service.RequestFromMessage(message))
	}), th.CommandEqual("help"))

	bh.HandleMessage(privateCommand("stats", func(ctx *th.Context, message telego.Message, _ string) error {
		return deps.Menu.Stats(ctx, service.RequestFromMessage(message))
	}), th.CommandEqual("stats"))

	// Admin commands
	bh.HandleMessage(privateCommand("getlink", func(ctx *th.Context, message telego.Message, args string) error {
		return deps.Admin.GetLink(ctx, service.RequestFromMessage(message), args)
	}), th.CommandEqual("getlink"))

	bh.HandleMessage(privateCommand("delvideo", func(ctx *th.Context, message telego.Message, args string) error {
		return deps.Admin.DeleteContent(ctx, service.RequestFromMessage(message), args)
	}), th.CommandEqual("delvideo"))

	// Unknown commands must not be taken as a search query.
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		logger.Debugf("Ignoring unknown command %q from chat %d", message.Text, message.Chat.ID)
		return nil
	}, th.AnyCommand())
}

type commandHandler func(ctx *th.Context, message telego.Message, args string) error

// privateCommand restricts a command to private chats with real users and
// hands it the text after the command name.
func privateCommand(name string, fn commandHandler) th.MessageHandler {
	return tracked("/"+name, func(ctx *th.Context, message telego.Message) error {
		if !isPrivateUserMessage(message) {
			return nil
		}
		return fn(ctx, message, commandArgs(message.Text))
	})
}

// commandArgs returns everything after the command, so names with spaces survive.
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func matchMenuButton(text string) (string, bool) {
	return models.MatchMenuButton(strings.TrimSpace(text))
}
