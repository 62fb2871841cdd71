package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mymmrac/telego"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/logger"
)

// WebhookServer represents a webhook HTTP server
type WebhookServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

// Start starts the webhook server
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	var err error
	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		err = ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	} else {
		logger.Warningf("Running without TLS. Make sure you have a HTTPS proxy in front of this server")
		err = ws.server.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// webhookPath returns the path Telegram posts updates to.
func webhookPath(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("webhook endpoint is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return "/webhook", nil
	}
	return parsed.Path, nil
}

// NewRouter builds the HTTP routes served next to the webhook: a health check
// and, when debugPath is set, a plain-text status page.
func NewRouter(debugPath string, status func() string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	if debugPath != "" && status != nil {
		r.Get(debugPath, func(w http.ResponseWriter, r *http.Request) {
			logger.Infof("Debug endpoint accessed: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(status()))
		})
	}
	return r
}

// SetupWebhook registers the webhook with Telegram and returns the update
// channel together with the server that feeds it.
func SetupWebhook(ctx context.Context, bot *telego.Bot, cfg config.WebhookConfig, secretToken string, status func() string) (<-chan telego.Update, *WebhookServer, error) {
	path, err := webhookPath(cfg.Endpoint)
	if err != nil {
		return nil, nil, err
	}

	listenPort := cfg.ListenPort
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	if (cfg.CertFile == "" || cfg.KeyFile == "") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	logger.Infof("Setting webhook to: %s", cfg.Endpoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            cfg.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    secretToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	if info, err := bot.GetWebhookInfo(ctx); err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, PendingUpdateCount=%d", info.URL, info.PendingUpdateCount)
		if info.LastErrorDate > 0 {
			logger.Warningf("Webhook last error: [%s] %s",
				time.Unix(int64(info.LastErrorDate), 0).Format("2006-01-02 15:04:05"), info.LastErrorMessage)
		}
	}

	router := NewRouter(cfg.DebugPath, status)

	// telego registers its handler on a ServeMux; chi forwards the webhook path to it.
	mux := http.NewServeMux()
	updates, err := bot.UpdatesViaWebhook(ctx, telego.WebhookHTTPServeMux(mux, path, secretToken))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get updates channel: %w", err)
	}
	router.Handle(path, mux)

	return updates, &WebhookServer{
		server: &http.Server{
			Addr:              "0.0.0.0:" + listenPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}, nil
}
