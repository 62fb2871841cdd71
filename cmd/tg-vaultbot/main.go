package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"tg-vaultbot/internal/bot"
	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/crash"
	"tg-vaultbot/internal/delivery"
	"tg-vaultbot/internal/handler"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/membership"
	"tg-vaultbot/internal/models"
	"tg-vaultbot/internal/service"
	"tg-vaultbot/internal/storage"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")
	crash.SetupCrashHandler()

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Refusing to start: %v", cfgErr)
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := storage.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer storage.Close(db)
	logger.Infof("Database connection established (%s)", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conversations, sweeper, redisClient, err := openConversationStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to set up conversation store: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var scheduler *delivery.Scheduler
	botService, err := bot.Initialize(ctx, cfg, func() string { return handler.GetDetailedStatus(scheduler) })
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}
	scheduler = delivery.NewScheduler(botService.Bot)

	channels, err := membership.ChannelsFromConfig(cfg.Bot.RequiredChannels)
	if err != nil {
		logger.Fatalf("Invalid required channels: %v", err)
	}
	gate := membership.NewGate(botService.Bot, channels)

	videos := storage.NewVideoRepository(db)
	users := storage.NewUserRepository(db)

	handler.SetupMessageHandlers(botService.Handler, handler.Dependencies{
		Resolver: service.NewResolver(videos, gate, botService.Bot, scheduler, conversations, service.ResolverConfig{
			ArchiveChatID: cfg.Bot.ArchiveChatID,
			DeleteAfter:   cfg.Delivery.DeleteAfter,
		}),
		Admin: service.NewAdmin(videos, botService.Bot, service.AdminConfig{
			AdminID:       cfg.Bot.AdminID,
			ArchiveChatID: cfg.Bot.ArchiveChatID,
			BotUsername:   botService.Username,
		}),
		Menu: service.NewMenu(users, videos, botService.Bot),
	})

	monitor, err := handler.StartStatusMonitoring(scheduler, sweeper)
	if err != nil {
		logger.Fatalf("Failed to start status monitoring: %v", err)
	}

	crash.SafeGoroutine("bot-handler", botService.Start)
	logger.Infof("Bot @%s is running in %s mode with %d required channel(s)", botService.Username, cfg.Bot.Mode, len(channels))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// cancelling ctx closes the update channel so the handler can drain
	cancel()
	botService.Stop(shutdownCtx)
	<-monitor.Stop().Done()

	if cfg.Delivery.FlushOnShutdown {
		if err := scheduler.Flush(shutdownCtx); err != nil {
			logger.Warningf("Pending cleanups did not finish: %v", err)
		}
	} else if n := scheduler.Pending(); n > 0 {
		logger.Warningf("Dropping %d pending cleanups", n)
	}

	logger.Info("Bot gracefully stopped")
}

// openConversationStore returns the configured store. The sweeper is only set
// for the in-memory store; Redis expires keys itself.
func openConversationStore(ctx context.Context, cfg *config.Config) (models.ConversationStore, handler.Sweeper, *redis.Client, error) {
	if cfg.Conversation.Backend == "redis" {
		client, err := storage.NewRedisClient(ctx, cfg.Conversation.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Infof("Search sessions are kept in Redis at %s", cfg.Conversation.Redis.Addr)
		return storage.NewRedisConversationStore(client, cfg.Conversation.TTL), nil, client, nil
	}

	store := models.NewMemoryConversationStore(cfg.Conversation.TTL)
	return store, store, nil, nil
}
