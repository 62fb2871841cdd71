package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// allowedUpdates are the update kinds the handlers consume.
var allowedUpdates = []string{"message", "channel_post"}

// BotService represents the Telegram bot service
type BotService struct {
	Bot      *telego.Bot
	Handler  *th.BotHandler
	Username string
	Webhook  *WebhookServer
}

// Start runs the webhook server, if any, and blocks handling updates until Stop.
func (b *BotService) Start() {
	if b.Webhook != nil {
		go func() {
			if err := b.Webhook.Start(); err != nil {
				logger.Errorf("Webhook server stopped: %v", err)
			}
		}()
	}
	b.Handler.Start()
}

// Stop stops the bot handler and the webhook server.
func (b *BotService) Stop(ctx context.Context) {
	b.Handler.Stop()
	if b.Webhook != nil {
		if err := b.Webhook.Shutdown(ctx); err != nil {
			logger.Warningf("Error shutting down webhook server: %v", err)
		}
	}
}

// Initialize connects to Telegram, publishes the command menu and opens the
// update source selected by bot.mode. status feeds the webhook debug page.
func Initialize(ctx context.Context, cfg *config.Config, status func() string) (*BotService, error) {
	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithLogger(logger.TelegoLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	setLocalizedCommands(ctx, bot)

	service := &BotService{Bot: bot, Username: botUser.Username}

	var updates <-chan telego.Update
	switch cfg.Bot.Mode {
	case "webhook":
		updates, service.Webhook, err = SetupWebhook(ctx, bot, cfg.Bot.Webhook, webhookSecret(cfg.Bot.Token), status)
		if err != nil {
			return nil, fmt.Errorf("failed to setup webhook: %w", err)
		}
	default:
		// A leftover webhook makes getUpdates fail.
		if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return nil, fmt.Errorf("failed to delete existing webhook: %w", err)
		}
		updates, err = bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start long polling: %w", err)
		}
		logger.Infof("Receiving updates via long polling")
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}
	service.Handler = bh

	return service, nil
}

// webhookSecret derives a stable secret token from the bot token.
func webhookSecret(token string) string {
	if len(token) < 6 {
		return "vaultbot_webhook_" + token
	}
	return "vaultbot_webhook_" + token[len(token)-6:]
}

// userCommands are shown in the Telegram command menu. Admin commands stay hidden.
var userCommands = []struct {
	Command string
	DescKey string
}{
	{Command: "start", DescKey: "cmd_desc_start"},
	{Command: "search", DescKey: "cmd_desc_search"},
	{Command: "cancel", DescKey: "cmd_desc_cancel"},
	{Command: "stats", DescKey: "cmd_desc_stats"},
	{Command: "help", DescKey: "cmd_desc_help"},
}

func localizedCommands(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(userCommands))
	for _, cmd := range userCommands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: models.GetTranslation(lang, cmd.DescKey),
		})
	}
	return commands
}

// setLocalizedCommands sets bot commands in different languages
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	// Map of language codes to Telegram language codes
	langCodes := map[string]string{
		models.LangEnglish:           "en",
		models.LangSimplifiedChinese: "zh",
	}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     localizedCommands(lang),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	// Default commands (no language code)
	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: localizedCommands(models.DefaultLanguage),
	}); err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}
