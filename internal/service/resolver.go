package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-vaultbot/internal/delivery"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// ContentIndex resolves videos by id or by name. *storage.VideoRepository implements it.
type ContentIndex interface {
	FindByID(ctx context.Context, id uint) (*models.Video, error)
	FindByNameSubstring(ctx context.Context, query string) (*models.Video, error)
}

// Gate decides whether a user may receive content. *membership.Gate implements it.
type Gate interface {
	Check(ctx context.Context, userID int64) error
	JoinKeyboard(buttonFormat string) *telego.InlineKeyboardMarkup
}

// Messenger is the part of the Telegram API used to talk to users. *telego.Bot implements it.
type Messenger interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error)
}

// CleanupScheduler removes delivered messages later. *delivery.Scheduler implements it.
type CleanupScheduler interface {
	ScheduleCleanup(chatID int64, messageIDs []int, delay time.Duration) *delivery.CleanupHandle
}

// Request describes who is asking and where to answer.
type Request struct {
	ChatID       int64
	UserID       int64
	FirstName    string
	LanguageCode string
}

// RequestFromMessage builds a Request from an incoming private message.
func RequestFromMessage(message telego.Message) Request {
	req := Request{ChatID: message.Chat.ID}
	if message.From != nil {
		req.UserID = message.From.ID
		req.FirstName = message.From.FirstName
		req.LanguageCode = message.From.LanguageCode
	}
	return req
}

func (r Request) key() models.ConversationKey {
	return models.ConversationKey{ChatID: r.ChatID, UserID: r.UserID}
}

func (r Request) language() string {
	return models.LanguageFor(r.LanguageCode)
}

// Outcome is how a request ended.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeNotMember
	OutcomeNotFound
	OutcomeFailed
	OutcomePrompted
	OutcomeCancelled
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeNotMember:
		return "not_member"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	case OutcomePrompted:
		return "prompted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ResolverConfig holds the delivery settings of a Resolver.
type ResolverConfig struct {
	ArchiveChatID int64
	DeleteAfter   time.Duration
}

// Resolver turns deep links and search queries into deliveries. It keeps no
// state of its own; the search conversation lives in the ConversationStore.
type Resolver struct {
	index         ContentIndex
	gate          Gate
	messenger     Messenger
	scheduler     CleanupScheduler
	conversations models.ConversationStore
	cfg           ResolverConfig
}

func NewResolver(index ContentIndex, gate Gate, messenger Messenger, scheduler CleanupScheduler,
	conversations models.ConversationStore, cfg ResolverConfig) *Resolver {
	return &Resolver{
		index:         index,
		gate:          gate,
		messenger:     messenger,
		scheduler:     scheduler,
		conversations: conversations,
		cfg:           cfg,
	}
}

// HandleDeepLink delivers the video whose id is carried by a /start argument.
func (r *Resolver) HandleDeepLink(ctx context.Context, req Request, arg string) Outcome {
	lang := req.language()

	if err := r.gate.Check(ctx, req.UserID); err != nil {
		r.sendJoinPrompt(ctx, req, "join_required_link")
		return OutcomeNotMember
	}

	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 0)
	if err != nil || id == 0 {
		logger.Debugf("User %d sent malformed deep link %q", req.UserID, arg)
		r.reply(ctx, req, models.GetTranslation(lang, "link_not_found"))
		return OutcomeNotFound
	}

	video, err := r.index.FindByID(ctx, uint(id))
	switch {
	case errors.Is(err, models.ErrNotFound):
		r.reply(ctx, req, models.GetTranslation(lang, "link_not_found"))
		return OutcomeNotFound
	case err != nil:
		logger.Errorf("Error resolving video %d for user %d: %v", id, req.UserID, err)
		r.reply(ctx, req, models.GetTranslation(lang, "generic_error"))
		return OutcomeFailed
	}

	return r.deliver(ctx, req, video)
}

// BeginSearch gates the user and, if allowed, waits for a search query.
// A search already in progress for the same session is replaced.
func (r *Resolver) BeginSearch(ctx context.Context, req Request) Outcome {
	if err := r.gate.Check(ctx, req.UserID); err != nil {
		r.endConversation(ctx, req)
		r.sendJoinPrompt(ctx, req, "join_required_search")
		return OutcomeNotMember
	}

	if err := r.conversations.Set(ctx, req.key(), models.StateAwaitingQuery); err != nil {
		logger.Errorf("Error starting search for %s: %v", req.key(), err)
		r.reply(ctx, req, models.GetTranslation(req.language(), "generic_error"))
		return OutcomeFailed
	}

	r.reply(ctx, req, models.GetTranslation(req.language(), "search_prompt"))
	return OutcomePrompted
}

// HandleQuery treats text as the search query if the session is awaiting one.
// The conversation ends whatever the result. Returns OutcomeIgnored when no
// search is pending.
func (r *Resolver) HandleQuery(ctx context.Context, req Request, text string) Outcome {
	if !r.awaitingQuery(ctx, req) {
		return OutcomeIgnored
	}
	r.endConversation(ctx, req)

	lang := req.language()
	query := strings.TrimSpace(text)
	if query == "" {
		r.reply(ctx, req, models.GetTranslation(lang, "search_not_found"))
		return OutcomeNotFound
	}

	video, err := r.index.FindByNameSubstring(ctx, query)
	switch {
	case errors.Is(err, models.ErrNotFound):
		r.reply(ctx, req, models.GetTranslation(lang, "search_not_found"))
		return OutcomeNotFound
	case err != nil:
		logger.Errorf("Error searching %q for user %d: %v", query, req.UserID, err)
		r.reply(ctx, req, models.GetTranslation(lang, "generic_error"))
		return OutcomeFailed
	}

	return r.deliver(ctx, req, video)
}

// Cancel ends a pending search without resolving anything. The user gets the
// same confirmation whether or not a search was pending.
func (r *Resolver) Cancel(ctx context.Context, req Request) Outcome {
	outcome := OutcomeIgnored
	if r.awaitingQuery(ctx, req) {
		r.endConversation(ctx, req)
		outcome = OutcomeCancelled
	}
	r.reply(ctx, req, models.GetTranslation(req.language(), "search_cancelled"))
	return outcome
}

// Awaiting reports whether the session has a pending search.
func (r *Resolver) Awaiting(ctx context.Context, req Request) bool {
	return r.awaitingQuery(ctx, req)
}

func (r *Resolver) awaitingQuery(ctx context.Context, req Request) bool {
	state, err := r.conversations.Get(ctx, req.key())
	if err != nil {
		logger.Warningf("Error reading conversation %s: %v", req.key(), err)
		return false
	}
	return state.Active()
}

func (r *Resolver) endConversation(ctx context.Context, req Request) {
	if err := r.conversations.Set(ctx, req.key(), models.StateTerminated); err != nil {
		logger.Warningf("Error ending conversation %s: %v", req.key(), err)
	}
}

// deliver copies the archived post to the user, warns about the expiry and
// schedules both messages for deletion.
func (r *Resolver) deliver(ctx context.Context, req Request, video *models.Video) Outcome {
	lang := req.language()

	copied, err := r.messenger.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(req.ChatID),
		FromChatID: tu.ID(r.cfg.ArchiveChatID),
		MessageID:  video.MessageID,
	})
	if err != nil {
		err = models.NewTransportError("copyMessage", err)
		logger.Errorf("Error delivering video %d to chat %d: %v", video.ID, req.ChatID, err)
		r.reply(ctx, req, fmt.Sprintf(models.GetTranslation(lang, "delivery_failed"), err))
		return OutcomeFailed
	}

	toDelete := []int{copied.MessageID}
	warning := fmt.Sprintf(models.GetTranslation(lang, "delivery_warning"), FormatDelay(lang, r.cfg.DeleteAfter))
	if sent := r.reply(ctx, req, warning); sent != nil {
		toDelete = append(toDelete, sent.MessageID)
	}

	r.scheduler.ScheduleCleanup(req.ChatID, toDelete, r.cfg.DeleteAfter)
	logger.Infof("Delivered video %d (%s) to user %d", video.ID, video.Name, req.UserID)
	return OutcomeDelivered
}

func (r *Resolver) sendJoinPrompt(ctx context.Context, req Request, key string) {
	lang := req.language()
	params := tu.Message(tu.ID(req.ChatID), models.GetTranslation(lang, key)).
		WithReplyMarkup(r.gate.JoinKeyboard(models.GetTranslation(lang, "join_button")))
	if _, err := r.messenger.SendMessage(ctx, params); err != nil {
		logger.Warningf("Error sending join prompt to chat %d: %v", req.ChatID, models.NewTransportError("sendMessage", err))
	}
}

func (r *Resolver) reply(ctx context.Context, req Request, text string) *telego.Message {
	sent, err := r.messenger.SendMessage(ctx, tu.Message(tu.ID(req.ChatID), text))
	if err != nil {
		logger.Warningf("Error replying to chat %d: %v", req.ChatID, models.NewTransportError("sendMessage", err))
		return nil
	}
	return sent
}

// FormatDelay renders d in whole minutes when possible, seconds otherwise.
func FormatDelay(lang string, d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf(models.GetTranslation(lang, "duration_minutes"), int(d/time.Minute))
	}
	return fmt.Sprintf(models.GetTranslation(lang, "duration_seconds"), int(d.Round(time.Second)/time.Second))
}
