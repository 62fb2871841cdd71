package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/models"
)

// fakeLookup answers GetChatMember from a table keyed by channel username.
type fakeLookup struct {
	mu       sync.Mutex
	members  map[string]telego.ChatMember
	failures map[string]error
	calls    int
}

func (f *fakeLookup) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	chat := params.ChatID.Username
	if err, ok := f.failures[chat]; ok {
		return nil, err
	}
	if m, ok := f.members[chat]; ok {
		return m, nil
	}
	return &telego.ChatMemberLeft{}, nil
}

func testChannels(t *testing.T, names ...string) []Channel {
	t.Helper()
	cfgs := make([]config.ChannelConfig, 0, len(names))
	for _, n := range names {
		cfgs = append(cfgs, config.ChannelConfig{Chat: n})
	}
	channels, err := ChannelsFromConfig(cfgs)
	if err != nil {
		t.Fatalf("ChannelsFromConfig: %v", err)
	}
	return channels
}

func TestIsMember(t *testing.T) {
	tests := []struct {
		name     string
		members  map[string]telego.ChatMember
		failures map[string]error
		want     bool
	}{
		{
			name: "member everywhere",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberMember{},
				"@two": &telego.ChatMemberMember{},
			},
			want: true,
		},
		{
			name: "administrator and creator count",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberAdministrator{},
				"@two": &telego.ChatMemberOwner{},
			},
			want: true,
		},
		{
			name: "left one channel",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberMember{},
			},
			want: false,
		},
		{
			name: "restricted is not enough",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberMember{},
				"@two": &telego.ChatMemberRestricted{IsMember: true},
			},
			want: false,
		},
		{
			name: "banned",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberBanned{},
				"@two": &telego.ChatMemberMember{},
			},
			want: false,
		},
		{
			name: "lookup error fails closed",
			members: map[string]telego.ChatMember{
				"@one": &telego.ChatMemberMember{},
			},
			failures: map[string]error{
				"@two": errors.New("Bad Request: user not found"),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &fakeLookup{members: tt.members, failures: tt.failures}
			gate := NewGate(lookup, testChannels(t, "@one", "two"))

			if got := gate.IsMember(context.Background(), 7); got != tt.want {
				t.Errorf("IsMember = %v, want %v", got, tt.want)
			}

			err := gate.Check(context.Background(), 7)
			if tt.want && err != nil {
				t.Errorf("Check = %v, want nil", err)
			}
			if !tt.want && !errors.Is(err, models.ErrNotMember) {
				t.Errorf("Check = %v, want ErrNotMember", err)
			}
		})
	}
}

func TestIsMemberWithoutChannels(t *testing.T) {
	lookup := &fakeLookup{}
	gate := NewGate(lookup, nil)

	if !gate.IsMember(context.Background(), 1) {
		t.Error("IsMember with no required channels = false, want true")
	}
	if lookup.calls != 0 {
		t.Errorf("lookup called %d times, want 0", lookup.calls)
	}
}

// TestIsMemberRechecksEveryCall verifies membership changes are picked up immediately.
func TestIsMemberRechecksEveryCall(t *testing.T) {
	lookup := &fakeLookup{members: map[string]telego.ChatMember{}}
	gate := NewGate(lookup, testChannels(t, "@one"))
	ctx := context.Background()

	if gate.IsMember(ctx, 1) {
		t.Fatal("IsMember before joining = true")
	}

	lookup.mu.Lock()
	lookup.members["@one"] = &telego.ChatMemberMember{}
	lookup.mu.Unlock()

	if !gate.IsMember(ctx, 1) {
		t.Fatal("IsMember after joining = false")
	}
	if lookup.calls != 2 {
		t.Errorf("lookup calls = %d, want 2", lookup.calls)
	}
}

func TestChannelsFromConfig(t *testing.T) {
	channels, err := ChannelsFromConfig([]config.ChannelConfig{
		{Chat: "@lexobit"},
		{Chat: "movies"},
		{Chat: "-1001234", Link: "https://t.me/+invite"},
	})
	if err != nil {
		t.Fatalf("ChannelsFromConfig: %v", err)
	}

	if channels[0].Link != "https://t.me/lexobit" || channels[0].ChatID.Username != "@lexobit" {
		t.Errorf("channel 0 = %+v", channels[0])
	}
	if channels[1].Name != "@movies" || channels[1].Link != "https://t.me/movies" {
		t.Errorf("channel 1 = %+v", channels[1])
	}
	if channels[2].ChatID.ID != -1001234 || channels[2].Link != "https://t.me/+invite" {
		t.Errorf("channel 2 = %+v", channels[2])
	}

	if _, err := ChannelsFromConfig([]config.ChannelConfig{{Chat: "-100"}}); err == nil {
		t.Error("numeric chat without link should fail")
	}
}

func TestJoinKeyboard(t *testing.T) {
	gate := NewGate(&fakeLookup{}, testChannels(t, "@one", "@two"))

	kb := gate.JoinKeyboard("Join %s")
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(kb.InlineKeyboard))
	}
	for i, name := range []string{"one", "two"} {
		btn := kb.InlineKeyboard[i][0]
		if btn.Text != "Join @"+name {
			t.Errorf("button %d text = %q", i, btn.Text)
		}
		if !strings.HasSuffix(btn.URL, "/"+name) {
			t.Errorf("button %d url = %q", i, btn.URL)
		}
	}
}
