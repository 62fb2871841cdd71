package service

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// Menu serves the greeting, help and stats screens and registers users.
type Menu struct {
	users     UserStore
	videos    VideoStore
	messenger Messenger
}

func NewMenu(users UserStore, videos VideoStore, messenger Messenger) *Menu {
	return &Menu{users: users, videos: videos, messenger: messenger}
}

// Register records the user on first contact. Failures are logged only.
func (m *Menu) Register(ctx context.Context, req Request) {
	created, err := m.users.Register(ctx, req.UserID)
	if err != nil {
		logger.Warningf("Error registering user %d: %v", req.UserID, err)
		return
	}
	if created {
		logger.Infof("New user %d (%s)", req.UserID, req.FirstName)
	}
}

// Welcome greets the user and shows the reply keyboard.
func (m *Menu) Welcome(ctx context.Context, req Request) error {
	lang := req.language()
	keyboard := tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton(models.GetTranslation(lang, "button_search"))),
		tu.KeyboardRow(
			tu.KeyboardButton(models.GetTranslation(lang, "button_stats")),
			tu.KeyboardButton(models.GetTranslation(lang, "button_help")),
		),
	).WithResizeKeyboard()

	text := fmt.Sprintf(models.GetTranslation(lang, "welcome"), req.FirstName)
	_, err := m.messenger.SendMessage(ctx, tu.Message(tu.ID(req.ChatID), text).WithReplyMarkup(keyboard))
	return models.NewTransportError("sendMessage", err)
}

// Help sends the usage hint.
func (m *Menu) Help(ctx context.Context, req Request) error {
	_, err := m.messenger.SendMessage(ctx, tu.Message(tu.ID(req.ChatID), models.GetTranslation(req.language(), "help_text")))
	return models.NewTransportError("sendMessage", err)
}

// Stats sends the user and video totals.
func (m *Menu) Stats(ctx context.Context, req Request) error {
	lang := req.language()

	users, err := m.users.Count(ctx)
	if err != nil {
		return m.failed(ctx, req, fmt.Errorf("count users: %w", err))
	}
	videos, err := m.videos.Count(ctx)
	if err != nil {
		return m.failed(ctx, req, fmt.Errorf("count videos: %w", err))
	}

	text := fmt.Sprintf(models.GetTranslation(lang, "stats_text"), users, videos)
	_, err = m.messenger.SendMessage(ctx, tu.Message(tu.ID(req.ChatID), text))
	return models.NewTransportError("sendMessage", err)
}

func (m *Menu) failed(ctx context.Context, req Request, cause error) error {
	logger.Errorf("Error building stats for user %d: %v", req.UserID, cause)
	_, err := m.messenger.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: tu.ID(req.ChatID),
		Text:   models.GetTranslation(req.language(), "generic_error"),
	})
	return models.NewTransportError("sendMessage", err)
}
