package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slotter-org/clinic-voice-scheduler/internal/agent"
	"github.com/slotter-org/clinic-voice-scheduler/internal/config"
	"github.com/slotter-org/clinic-voice-scheduler/internal/db"
	"github.com/slotter-org/clinic-voice-scheduler/internal/handlers"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
	"github.com/slotter-org/clinic-voice-scheduler/internal/middleware"
	"github.com/slotter-org/clinic-voice-scheduler/internal/pipeline"
	"github.com/slotter-org/clinic-voice-scheduler/internal/providers"
	"github.com/slotter-org/clinic-voice-scheduler/internal/repos"
	"github.com/slotter-org/clinic-voice-scheduler/internal/server"
	"github.com/slotter-org/clinic-voice-scheduler/internal/services"
	"github.com/slotter-org/clinic-voice-scheduler/internal/socket"
	"github.com/slotter-org/clinic-voice-scheduler/internal/status"
	"github.com/slotter-org/clinic-voice-scheduler/internal/utils"
)

func main() {
	// Logger Setup
	log, err := logger.New(utils.GetEnv("LOG_MODE", "development", nil))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("Scheduler exited with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Environment Variables
	log.Info("Attempting to load configuration for Main now...")
	cfg, err := config.Load(log)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc := cfg.Location()
	log.Debug("Configuration loaded for Main :)",
		"port", cfg.Port,
		"storeDriver", cfg.StoreDriver,
		"clinicTimezone", cfg.ClinicTimezone,
		"avatarTimeout", cfg.AvatarTimeout,
	)

	// Store Setup
	log.Info("Setting Up Store from Main now...", "driver", cfg.StoreDriver)
	var (
		store *repos.Store
		ping  func(context.Context) error
	)
	switch cfg.StoreDriver {
	case "postgres":
		postgresService, err := db.NewPostgresService(db.PostgresDSN(log), log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer postgresService.Close()
		if cfg.AutoMigrate {
			if err := postgresService.AutoMigrateAll(); err != nil {
				return fmt.Errorf("postgres auto migration: %w", err)
			}
		}
		store = repos.NewPostgresStore(postgresService.DB(), log)
		ping = postgresService.Ping
	default:
		boltService, err := db.NewBoltService(cfg.BoltPath, log)
		if err != nil {
			return fmt.Errorf("bolt: %w", err)
		}
		defer boltService.Close()
		store = repos.NewBoltStore(boltService.DB(), log)
	}
	log.Info("Store Set Up From Main Successful :)")

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main Now...")
	wsHub := socket.NewHub(log)
	var relay *socket.RedisRelay
	if cfg.RedisAddress != "" {
		relay, err = socket.NewRedisRelay(ctx, socket.RedisOptions{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			Channel:  cfg.RedisChannel,
		}, log)
		if err != nil {
			log.Warn("Failed to init redis relay; observers see local calls only", "error", err)
		} else if err := wsHub.AttachRelay(relay); err != nil {
			log.Warn("Failed to attach redis relay", "error", err)
			_ = relay.Close()
			relay = nil
		} else {
			log.Info("Redis relay is active!")
		}
	}
	log.Info("Websocket Hub Set Up From Main Successful :)")

	// Services Setup
	log.Info("Setting up Services from Main now...")
	var textService services.TextService
	if ts, err := services.NewTextService(log); err != nil {
		log.Warn("Could not init TextService; SMS confirmations disabled", "error", err)
	} else {
		textService = ts
	}
	var emailService services.EmailService
	if es, err := services.NewEmailService(log); err != nil {
		log.Warn("Could not init EmailService; email confirmations disabled", "error", err)
	} else {
		emailService = es
	}
	notifier := services.NewNotifier(textService, emailService, loc, log)
	tokenService, err := services.NewTokenService(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.TokenTTL, log)
	if err != nil {
		return err
	}
	sessionRegistry := services.NewSessionRegistry(store.Sessions, log)
	identityResolver := services.NewIdentityResolver(store.Users, log)
	appointmentService := services.NewAppointmentService(store.Appointments, services.ClinicHours{
		Location:    loc,
		OpenHour:    cfg.ClinicOpenHour,
		CloseHour:   cfg.ClinicCloseHour,
		SlotMinutes: cfg.SlotMinutes,
	}, log)
	log.Info("Services Set Up From Main Successful :)")

	// Providers Setup
	log.Info("Setting Up Providers from Main now...")
	stt := providers.NewDeepgramSTT(cfg.DeepgramAPIKey, cfg.DeepgramURL, log)
	llm := providers.NewGeminiLLM(cfg.GeminiAPIKey, cfg.GeminiModel, log)
	defer llm.Close()
	tts := providers.NewCartesiaTTS(cfg.CartesiaAPIKey, cfg.CartesiaURL, cfg.CartesiaVoiceID, log)
	media := providers.NewMediaAgent(cfg.MediaAgentURL, cfg.VADThreshold, log)
	var avatar pipeline.AvatarStarter
	if cfg.BeyAPIKey != "" {
		avatar = providers.NewBeyAvatar(cfg.BeyAPIKey, cfg.BeyURL, cfg.BeyAvatarID, log)
	} else {
		log.Info("No avatar configured; calls run voice-only")
	}
	log.Info("Providers Set Up From Main Successful :)")

	// Worker Setup
	log.Info("Setting Up Agent Worker from Main now...")
	worker, err := agent.NewWorker(agent.Deps{
		Resolver:     identityResolver,
		Appointments: appointmentService,
		Sessions:     sessionRegistry,
		Messages:     store.Messages,
		Notifier:     notifier,
		Sink:         wsHub,
		Logger:       log,
		NewRunner: func(room string, em status.Emitter) (agent.Runner, error) {
			seq, err := pipeline.New(pipeline.Config{
				STT:           stt,
				LLM:           llm,
				TTS:           tts,
				VAD:           media,
				Media:         media,
				Avatar:        avatar,
				Sessions:      sessionRegistry,
				Status:        em,
				AvatarTimeout: cfg.AvatarTimeout,
				SessionSettle: cfg.SessionSettle,
				AvatarSettle:  cfg.AvatarSettle,
				GreetingDelay: cfg.GreetingDelay,
				Greeting:      cfg.Greeting,
				Instructions:  services.Instructions(time.Now(), loc),
				Logger:        log.With("room", room),
			})
			if err != nil {
				return nil, err
			}
			return seq, nil
		},
	})
	if err != nil {
		return err
	}
	log.Info("Agent Worker Set Up From Main Successful :)")

	// Router Setup
	log.Info("Setting Up Router from Main now...")
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:   cfg.AllowOrigins,
		TokenHandler:   handlers.NewTokenHandler(tokenService),
		CallHandler:    handlers.NewCallHandler(worker),
		AuthMiddleware: middleware.NewAuthMiddleware(log, cfg.AgentAPIKey, tokenService),
		TokenLimiter:   middleware.NewRateLimiter(cfg.TokenRPS, cfg.TokenBurst),
		EventsHandler:  handlers.EventsHandler(wsHub, log),
		ReadyHandler:   handlers.Readyz(ping),
	})
	log.Info("Router Set Up From Main Successful :)")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down now...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := worker.Shutdown(shutdownCtx); err != nil {
			log.Warn("Calls did not stop cleanly", "error", err)
		}
		if relay != nil {
			_ = relay.Close()
		}
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Shutdown complete :)")
	return nil
}
