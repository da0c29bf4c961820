package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediline/telecare-api/internal/config"
	"github.com/mediline/telecare-api/internal/database"
	"github.com/mediline/telecare-api/internal/handler"
	"github.com/mediline/telecare-api/internal/middleware"
	"github.com/mediline/telecare-api/internal/models"
	"github.com/mediline/telecare-api/internal/repository"
	"github.com/mediline/telecare-api/internal/router"
	"github.com/mediline/telecare-api/internal/service"
	"github.com/mediline/telecare-api/pkg/ai"
	cloud "github.com/mediline/telecare-api/pkg/cloudinary"
	"github.com/mediline/telecare-api/pkg/rtctoken"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.ActiveSession{},
		&models.ActiveCall{},
		&models.CallLog{},
		&models.ChatMessage{},
		&models.Appointment{},
		&models.IntakeGate{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	}

	var tokenBuilder *rtctoken.Builder
	if cfg.RTCSecret != "" {
		tokenBuilder, err = rtctoken.New(cfg.RTCAppID, cfg.RTCSecret, cfg.RTCTokenTTL)
		if err != nil {
			log.Fatalf("failed to create rtc token builder: %v", err)
		}
	} else {
		logger.Warn().Msg("rtc secret not configured, issuing insecure credentials")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	sessionRepo := repository.NewSessionRepository(db)
	callRepo := repository.NewCallRepository(db)
	chatRepo := repository.NewChatRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	rootCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	events := service.NewRegistryEvents(redisClient, cfg.ChannelBase, natsConn, logger)
	events.Start(rootCtx)

	sessionService := service.NewSessionService(sessionRepo, userRepo, events, validate, cfg.SessionWindow, logger)
	callService := service.NewCallService(callRepo, events, validate, cfg.CallRemoveDelay, logger)
	chatService := service.NewChatService(chatRepo, storage, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	chatService.Start(rootCtx)

	appointmentService, err := service.NewAppointmentService(appointmentRepo, validate, logger)
	if err != nil {
		log.Fatalf("failed to create appointment service: %v", err)
	}
	tokenService := service.NewTokenService(tokenBuilder, logger)
	triageService := service.NewTriageService(buildTriager(cfg, logger), cfg.AIModel, logger)

	sweeper := service.NewSweeper(sessionRepo, callRepo, callService, events, service.SweeperConfig{
		Interval:       cfg.SweepInterval,
		SessionWindow:  cfg.SessionWindow,
		CallRingWindow: cfg.CallRingWindow,
	}, logger)
	sweeper.Start(rootCtx)

	sessionHandler := handler.NewSessionHandler(sessionService, events, logger)
	callHandler := handler.NewCallHandler(callService, events, logger)
	chatHandler := handler.NewChatHandler(chatService, validate, logger)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, logger)
	tokenHandler := handler.NewTokenHandler(tokenService, logger)
	triageHandler := handler.NewTriageHandler(triageService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:     sessionHandler,
		CallHandler:        callHandler,
		ChatHandler:        chatHandler,
		AppointmentHandler: appointmentHandler,
		TokenHandler:       tokenHandler,
		TriageHandler:      triageHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopServices)
}

// buildTriager returns nil when no provider is configured; the triage
// endpoint then reports itself unavailable.
func buildTriager(cfg config.Config, logger zerolog.Logger) ai.Triager {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		triager, err := ai.NewOpenAITriager(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create openai triager")
			return nil
		}
		return triager
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil
		}
		triager, err := ai.NewAnthropicTriager(ai.AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AIModel,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create anthropic triager")
			return nil
		}
		return triager
	default:
		return nil
	}
}

func waitForShutdown(app *fiber.App, stopServices context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopServices()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
