package bot

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tg-vaultbot/internal/models"
)

func TestWebhookPath(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"https://bot.example.com/tg/hook", "/tg/hook", false},
		{"https://bot.example.com", "/webhook", false},
		{"https://bot.example.com/", "/webhook", false},
		{"", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := webhookPath(tt.endpoint)
		if (err != nil) != tt.wantErr {
			t.Errorf("webhookPath(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("webhookPath(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestWebhookSecret(t *testing.T) {
	if got := webhookSecret("123456:ABCDEFxyz123"); got != "vaultbot_webhook_xyz123" {
		t.Errorf("webhookSecret = %q", got)
	}
	if got := webhookSecret("abc"); got != "vaultbot_webhook_abc" {
		t.Errorf("webhookSecret(short) = %q", got)
	}
}

func TestLocalizedCommands(t *testing.T) {
	en := localizedCommands(models.LangEnglish)
	zh := localizedCommands(models.LangSimplifiedChinese)

	if len(en) != len(userCommands) || len(zh) != len(userCommands) {
		t.Fatalf("command counts = %d, %d; want %d", len(en), len(zh), len(userCommands))
	}
	for i := range en {
		if en[i].Command != zh[i].Command {
			t.Errorf("command %d differs: %q vs %q", i, en[i].Command, zh[i].Command)
		}
		if en[i].Description == "" || en[i].Description == userCommands[i].DescKey {
			t.Errorf("command %s has no description", en[i].Command)
		}
	}
	for _, cmd := range en {
		if cmd.Command == "getlink" || cmd.Command == "delvideo" {
			t.Errorf("admin command %s listed in the public menu", cmd.Command)
		}
	}
}

func TestRouter(t *testing.T) {
	srv := httptest.NewServer(NewRouter("/debug", func() string { return "status ok" }))
	defer srv.Close()

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/healthz", http.StatusOK, "ok\n"},
		{"/debug", http.StatusOK, "status ok"},
		{"/missing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.wantCode {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantCode)
		}
		if tt.wantBody != "" && string(body) != tt.wantBody {
			t.Errorf("GET %s body = %q, want %q", tt.path, body, tt.wantBody)
		}
	}
}
