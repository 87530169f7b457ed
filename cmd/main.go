package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strangerchat/backend/internal/activity"
	"strangerchat/backend/internal/api/handler"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/errlog"
	"strangerchat/backend/internal/heartbeat"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/logging"
	"strangerchat/backend/internal/storage"
	"strangerchat/backend/internal/telegram"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	return db, rdb, nil
}

// restoreState loads what survives a restart. Sessions do not: rooms left
// active by the previous process are closed.
func restoreState(ctx context.Context, s storage.Storage, m *chathub.MatcherService, log zerolog.Logger) error {
	bans, err := s.LoadBans(ctx)
	if err != nil {
		return fmt.Errorf("load bans: %w", err)
	}
	users, err := s.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	closed, err := s.CloseActiveRooms(ctx, "restart")
	if err != nil {
		return fmt.Errorf("close stale rooms: %w", err)
	}

	log.Info().
		Int("bans", m.Bans.Restore(bans)).
		Int("participants", m.Participants.Restore(users)).
		Int64("stale_rooms", closed).
		Msg("State restored")
	return nil
}

func openLog(dir, name string, closers *[]io.Closer, log zerolog.Logger) zerolog.Logger {
	l, c, err := logging.OpenFile(dir, name)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("Log file unavailable, writing to the process log")
		return log.With().Str("log", name).Logger()
	}
	*closers = append(*closers, c)
	return l
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb, err := setupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("Database and Redis connections established, migrations complete")

	loc, err := localization.Default()
	if err != nil {
		return err
	}

	matcher := chathub.NewMatcherService(
		chathub.NewBanRegistry(nil),
		chathub.NewWaitingPool(),
		chathub.NewSessionTable(),
		chathub.NewParticipantRegistry(nil),
		nil,
	)
	if err := restoreState(ctx, s, matcher, log); err != nil {
		return err
	}
	mod := chathub.NewModerationService(matcher, s, log)
	hub := chathub.NewManagerService(mod, s, loc, log)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	act := activity.NewRecorder(openLog(cfg.Log.Dir, "chat_activity.jsonl", &closers, log), 0)
	errs := errlog.NewRecorder(openLog(cfg.Log.Dir, "errors.jsonl", &closers, log), errlog.DefaultRecent)
	hub.Activity = act
	hub.Errors = errs

	complaints := complaint.NewService(s, hub, cfg.Moderation, log)

	go hub.Run(ctx)
	go hub.RunMaintenance(ctx, chathub.BanSweepInterval, chathub.AutosaveInterval) // Очищення банів і автозбереження
	hub.StartAdminListener(ctx)

	var hb *heartbeat.Monitor
	if cfg.Telegram.Token != "" {
		api, err := telegram.NewBotAPI(cfg.Telegram, log)
		if err != nil {
			return err
		}
		bot := telegram.NewBotService(api, hub, complaints, nil, cfg.Telegram, log)
		hb = heartbeat.NewMonitor(cfg.Heartbeat.Interval, cfg.Heartbeat.AllowedMissed, bot.AlertAdmins, log)
		bot.Heartbeat = hb

		go hb.Run(ctx)
		go bot.Run(ctx, telegram.PollUpdates(api))
	}

	var server *http.Server
	if cfg.HTTP.Addr != "" {
		if !cfg.Telegram.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		r := gin.New()
		r.Use(gin.Recovery())
		handler.NewHandler(hub, handler.Options{
			JWTSecret:      cfg.HTTP.JWTSecret,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Errors:         errs,
			Activity:       act,
			Heartbeat:      hb,
		}, log).Register(r)

		server = &http.Server{
			Addr:           cfg.HTTP.Addr,
			Handler:        r,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server failed")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown")
		}
	}
	<-hub.Done()
	hub.SaveParticipants(shutdownCtx)
	if rdb != nil {
		rdb.Close()
	}
	return nil
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().Msg("Starting strangerchat backend")
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Service stopped")
	}
}
