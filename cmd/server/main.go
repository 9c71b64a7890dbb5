// Package main is the entry point for the Level-Up quest server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Anthonytesla02/Level-Up/internal/ai"
	"github.com/Anthonytesla02/Level-Up/internal/bot"
	"github.com/Anthonytesla02/Level-Up/internal/config"
	"github.com/Anthonytesla02/Level-Up/internal/mirror"
	"github.com/Anthonytesla02/Level-Up/internal/notify"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/db"
	"github.com/Anthonytesla02/Level-Up/internal/pkg/lock"
	"github.com/Anthonytesla02/Level-Up/internal/repository"
	"github.com/Anthonytesla02/Level-Up/internal/service"
)

const leasePrefix = "levelup:lease:"

// botServices backs the bot commands with the services.
type botServices struct {
	*service.AccountService
	*service.TaskService
	*service.QuestService
	*service.PunishmentResolver
	*service.LeaderboardService
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(&cfg.Log)
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store
	var (
		store  repository.Store
		health healthChecker
	)
	if cfg.Database.Enabled {
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		if err := repository.Migrate(ctx, pool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		store = repository.NewPgStore(pool.Pool)
		health = pool
	} else {
		log.Warn().Msg("Database disabled, using in-memory store")
		store = repository.NewMemoryStore()
	}

	if cfg.Mirror.Enabled() {
		airtable, err := mirror.NewAirtableMirror(mirror.AirtableConfig{
			APIKey:     cfg.Mirror.APIKey,
			BaseID:     cfg.Mirror.BaseID,
			BaseURL:    cfg.Mirror.BaseURL,
			MaxRetries: cfg.Mirror.MaxRetries,
			Timeout:    cfg.Mirror.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create airtable mirror")
		}
		async := mirror.NewAsync(airtable, cfg.Mirror.QueueSize, cfg.Mirror.Timeout)
		defer async.Close()
		store = repository.NewMirrored(store, async)
		log.Info().Str("base_id", cfg.Mirror.BaseID).Msg("Airtable mirror enabled")
	}

	// Scan lease
	var lease lock.Lease
	if cfg.Redis.Addr != "" {
		client, err := db.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer func(c *redis.Client) { _ = c.Close() }(client)
		lease = lock.NewRedisLease(client, leasePrefix)
	}

	// Notifications
	hub := notify.NewHub(cfg.Notify.SendBuffer)
	emitters := notify.Multi{hub}

	services := &botServices{}
	var telegramBot *bot.Bot
	if cfg.Telegram.Token != "" {
		telegramBot, err = bot.New(&cfg.Telegram, services)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		sink := notify.NewTelegramSink(telegramBot, telegramBot.ChatFor, 0)
		defer sink.Close()
		emitters = append(emitters, sink)
	}

	// Generator
	var completer ai.Completer
	if cfg.AI.APIKey != "" {
		completer = ai.NewMistralClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout)
	} else {
		log.Warn().Msg("No AI credentials configured, quests come from the fallback pool")
	}
	generator := ai.NewGenerator(completer, ai.Options{
		Timeout:     cfg.AI.Timeout,
		Temperature: cfg.AI.Temperature,
	})

	// Services
	userLock := lock.NewKeyedLock()
	accounts := service.NewAccountService(store, userLock)
	resolver := service.NewPunishmentResolver(store, emitters, userLock,
		service.WithAutoApplyDeclared(cfg.Punishment.AutoApplyPredeclared))
	tasks := service.NewTaskService(store, accounts, resolver, emitters, userLock)
	services.AccountService = accounts
	services.TaskService = tasks
	services.QuestService = service.NewQuestService(tasks, generator)
	services.PunishmentResolver = resolver
	services.LeaderboardService = service.NewLeaderboardService(store, time.Local)

	scanOpts := []service.ScannerOption{service.WithInterval(cfg.Scanner.Interval)}
	if lease != nil {
		scanOpts = append(scanOpts, service.WithLease(lease, cfg.Scanner.LeaseTTL))
	}
	scanner := service.NewExpirationScanner(store, resolver, scanOpts...)
	scanner.Start(ctx)
	defer scanner.Stop()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(http.HandlerFunc(hub.ServeWS), health),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if telegramBot != nil {
		go telegramBot.Start()
		defer telegramBot.Stop()
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shut down")
	}
	log.Info().Msg("Server stopped gracefully")
}

func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.JSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
