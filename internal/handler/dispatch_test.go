package handler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-vaultbot/internal/delivery"
	"tg-vaultbot/internal/models"
	"tg-vaultbot/internal/service"
)

type fakeMessenger struct {
	mu     sync.Mutex
	nextID int
	sent   []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, params.Text)
	return &telego.Message{MessageID: f.nextID, Chat: telego.Chat{ID: params.ChatID.ID}}, nil
}

func (f *fakeMessenger) CopyMessage(_ context.Context, _ *telego.CopyMessageParams) (*telego.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return &telego.MessageID{MessageID: f.nextID}, nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, _ *telego.DeleteMessageParams) error {
	return nil
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type openGate struct{}

func (openGate) Check(context.Context, int64) error { return nil }
func (openGate) JoinKeyboard(string) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{}
}

// fakeVideos holds a single video and records every name lookup.
type fakeVideos struct {
	mu      sync.Mutex
	queries []string
	counts  int
}

func (f *fakeVideos) FindByID(context.Context, uint) (*models.Video, error) {
	return nil, models.ErrNotFound
}

func (f *fakeVideos) FindByNameSubstring(_ context.Context, query string) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if strings.Contains("Inception (2010)", query) {
		return &models.Video{ID: 1, Name: "Inception (2010)", MessageID: 42}, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeVideos) Insert(context.Context, string, int) (*models.Video, error) {
	return nil, models.ErrDuplicateName
}

func (f *fakeVideos) DeleteByNameSubstring(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeVideos) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	return 1, nil
}

func (f *fakeVideos) lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeUsers struct{}

func (fakeUsers) Register(context.Context, int64) (bool, error) { return true, nil }
func (fakeUsers) Count(context.Context) (int64, error)          { return 3, nil }

type dispatchFixture struct {
	deps      Dependencies
	messenger *fakeMessenger
	videos    *fakeVideos
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	messenger := &fakeMessenger{nextID: 100}
	videos := &fakeVideos{}
	scheduler := delivery.NewScheduler(messenger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		scheduler.Flush(ctx)
	})

	return &dispatchFixture{
		messenger: messenger,
		videos:    videos,
		deps: Dependencies{
			Resolver: service.NewResolver(videos, openGate{}, messenger, scheduler,
				models.NewMemoryConversationStore(time.Minute),
				service.ResolverConfig{ArchiveChatID: -100500, DeleteAfter: time.Hour}),
			Admin: service.NewAdmin(videos, messenger, service.AdminConfig{AdminID: 1, ArchiveChatID: -100500, BotUsername: "VaultBot"}),
			Menu:  service.NewMenu(fakeUsers{}, videos, messenger),
		},
	}
}

func privateText(userID int64, text string) telego.Message {
	return telego.Message{
		Chat: telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
		From: &telego.User{ID: userID, FirstName: "Ada", LanguageCode: "en"},
		Text: text,
	}
}

func TestPendingSearchTakesMenuButtonAsQuery(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	req := service.RequestFromMessage(privateText(7, "/search"))
	f.deps.Resolver.BeginSearch(ctx, req)

	statsButton := models.GetTranslation(models.LangEnglish, "button_stats")
	if err := handleText(ctx, f.deps, privateText(7, statsButton)); err != nil {
		t.Fatalf("handleText: %v", err)
	}

	if got := f.videos.lookups(); len(got) != 1 || got[0] != statsButton {
		t.Errorf("lookups = %q, want [%q]", got, statsButton)
	}
	if f.deps.Resolver.Awaiting(ctx, req) {
		t.Error("search still pending after the query")
	}
	if f.videos.counts != 0 {
		t.Error("stats screen was shown instead of searching")
	}
	texts := f.messenger.texts()
	if want := models.GetTranslation(models.LangEnglish, "search_not_found"); texts[len(texts)-1] != want {
		t.Errorf("last reply = %q, want %q", texts[len(texts)-1], want)
	}
}

func TestIdleMenuButtonOpensScreen(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)

	statsButton := models.GetTranslation(models.LangEnglish, "button_stats")
	if err := handleText(ctx, f.deps, privateText(7, statsButton)); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if f.videos.counts != 1 {
		t.Errorf("video count calls = %d, want 1", f.videos.counts)
	}
	if got := f.videos.lookups(); len(got) != 0 {
		t.Errorf("lookups = %q, want none", got)
	}

	searchButton := models.GetTranslation(models.LangEnglish, "button_search")
	if err := handleText(ctx, f.deps, privateText(7, searchButton)); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if !f.deps.Resolver.Awaiting(ctx, service.RequestFromMessage(privateText(7, ""))) {
		t.Error("search button did not start a search")
	}
}

func TestIdlePlainTextIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)

	if err := handleText(ctx, f.deps, privateText(7, "Inception")); err != nil {
		t.Fatalf("handleText: %v", err)
	}
	if got := f.messenger.texts(); len(got) != 0 {
		t.Errorf("replies = %q, want none", got)
	}
	if got := f.videos.lookups(); len(got) != 0 {
		t.Errorf("lookups = %q, want none", got)
	}
}

func TestTrackedSerializesPerChat(t *testing.T) {
	var inFlight, maxInFlight int32
	handler := tracked("serial", func(_ *th.Context, _ telego.Message) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler(nil, telego.Message{Chat: telego.Chat{ID: 99}})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("updates for one chat ran %d at a time, want 1", got)
	}
	if got := handlerLocks.size(); got != 0 {
		t.Errorf("chat locks left behind = %d, want 0", got)
	}
}

func TestChatLocksDoNotBlockOtherChats(t *testing.T) {
	locks := &chatLocks{locks: make(map[int64]*chatLock)}
	unlock := locks.lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		locks.lock(2)()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for chat 2 waited on chat 1")
	}
}
