package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// VideoStore is the write side of the content index. *storage.VideoRepository implements it.
type VideoStore interface {
	ContentIndex
	Insert(ctx context.Context, name string, messageID int) (*models.Video, error)
	DeleteByNameSubstring(ctx context.Context, query string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// UserStore registers and counts users. *storage.UserRepository implements it.
type UserStore interface {
	Register(ctx context.Context, userID int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// AdminConfig identifies the administrator, the archive chat and the bot itself.
type AdminConfig struct {
	AdminID       int64
	ArchiveChatID int64
	BotUsername   string
}

// Admin handles archive indexing and the administrator commands.
type Admin struct {
	videos    VideoStore
	messenger Messenger
	cfg       AdminConfig
}

func NewAdmin(videos VideoStore, messenger Messenger, cfg AdminConfig) *Admin {
	return &Admin{videos: videos, messenger: messenger, cfg: cfg}
}

// IsAdmin reports whether userID is the configured administrator.
func (a *Admin) IsAdmin(userID int64) bool {
	return a.cfg.AdminID != 0 && userID == a.cfg.AdminID
}

// DeepLink returns the t.me link that makes /start deliver video id.
func (a *Admin) DeepLink(id uint) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", a.cfg.BotUsername, id)
}

// IndexVideo stores a video posted in the archive chat under its caption.
// Posts from other chats and posts without a video are ignored. The
// administrator is told about every indexing attempt.
func (a *Admin) IndexVideo(ctx context.Context, post telego.Message) error {
	if post.Chat.ID != a.cfg.ArchiveChatID || post.Video == nil {
		return nil
	}

	lang := models.DefaultLanguage
	name := strings.TrimSpace(post.Caption)
	if name == "" {
		logger.Warningf("Archive post %d has no caption, skipping", post.MessageID)
		return a.notifyAdmin(ctx, models.GetTranslation(lang, "index_no_caption"))
	}

	video, err := a.videos.Insert(ctx, name, post.MessageID)
	switch {
	case errors.Is(err, models.ErrDuplicateName):
		logger.Infof("Archive post %d duplicates %q", post.MessageID, name)
		return a.notifyAdmin(ctx, fmt.Sprintf(models.GetTranslation(lang, "index_duplicate"), html.EscapeString(name)))
	case err != nil:
		logger.Errorf("Error indexing archive post %d: %v", post.MessageID, err)
		return a.notifyAdmin(ctx, fmt.Sprintf(models.GetTranslation(lang, "index_failed"), html.EscapeString(err.Error())))
	}

	logger.Infof("Indexed video %d %q from archive post %d", video.ID, video.Name, video.MessageID)
	return a.notifyAdmin(ctx, fmt.Sprintf(models.GetTranslation(lang, "index_done"), html.EscapeString(video.Name), video.ID))
}

// GetLink answers the administrator with the deep link of the first video matching name.
func (a *Admin) GetLink(ctx context.Context, req Request, name string) error {
	if !a.IsAdmin(req.UserID) {
		return nil
	}

	lang := req.language()
	name = strings.TrimSpace(name)
	if name == "" {
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "getlink_usage"))
	}

	video, err := a.videos.FindByNameSubstring(ctx, name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "getlink_not_found"))
	case err != nil:
		logger.Errorf("Error looking up %q for getlink: %v", name, err)
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "generic_error"))
	}

	text := fmt.Sprintf(models.GetTranslation(lang, "getlink_result"), html.EscapeString(video.Name), a.DeepLink(video.ID))
	return a.send(ctx, req.ChatID, text)
}

// DeleteContent removes every video whose name contains name.
func (a *Admin) DeleteContent(ctx context.Context, req Request, name string) error {
	if !a.IsAdmin(req.UserID) {
		return nil
	}

	lang := req.language()
	name = strings.TrimSpace(name)
	if name == "" {
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "delvideo_usage"))
	}

	deleted, err := a.videos.DeleteByNameSubstring(ctx, name)
	if err != nil {
		logger.Errorf("Error deleting videos matching %q: %v", name, err)
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "generic_error"))
	}
	if deleted == 0 {
		return a.send(ctx, req.ChatID, models.GetTranslation(lang, "delvideo_not_found"))
	}

	logger.Infof("Admin %d deleted %d video(s) matching %q", req.UserID, deleted, name)
	return a.send(ctx, req.ChatID, fmt.Sprintf(models.GetTranslation(lang, "delvideo_done"), deleted, html.EscapeString(name)))
}

func (a *Admin) notifyAdmin(ctx context.Context, text string) error {
	if a.cfg.AdminID == 0 {
		return nil
	}
	return a.send(ctx, a.cfg.AdminID, text)
}

func (a *Admin) send(ctx context.Context, chatID int64, text string) error {
	_, err := a.messenger.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML))
	return models.NewTransportError("sendMessage", err)
}
