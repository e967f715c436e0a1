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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Sirojiddin1dev/carinfopro/internal/auth"
	"github.com/Sirojiddin1dev/carinfopro/internal/config"
	"github.com/Sirojiddin1dev/carinfopro/internal/handler"
	"github.com/Sirojiddin1dev/carinfopro/internal/hub"
	"github.com/Sirojiddin1dev/carinfopro/internal/idgen"
	"github.com/Sirojiddin1dev/carinfopro/internal/kafka"
	"github.com/Sirojiddin1dev/carinfopro/internal/registry"
	"github.com/Sirojiddin1dev/carinfopro/internal/relay"
	"github.com/Sirojiddin1dev/carinfopro/internal/repository"
	"github.com/Sirojiddin1dev/carinfopro/internal/service"
	"github.com/Sirojiddin1dev/carinfopro/pkg/database"
	"github.com/Sirojiddin1dev/carinfopro/pkg/jwt"
	pkglog "github.com/Sirojiddin1dev/carinfopro/pkg/log"
	"github.com/Sirojiddin1dev/carinfopro/pkg/middleware"
	"github.com/Sirojiddin1dev/carinfopro/pkg/pubsub"
	"github.com/Sirojiddin1dev/carinfopro/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-service",
	})
	logger := pkglog.L()

	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		host, _ := os.Hostname()
		instanceID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	logger = logger.With().Str(pkglog.FieldInstanceID, instanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get database handle")
	}
	defer sqlDB.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	rooms := repository.NewGormRoomDirectory(db)

	// Token verification
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour, cfg.Auth.Leeway)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}
	verifier := auth.NewTokenVerifier(tokens)
	authorizer := auth.NewAuthorizer()

	// Redis is shared by the relay and the presence registry.
	var redisClient *redis.Client
	if cfg.Relay.Driver == "redis" || cfg.Presence.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}

	wsHub := hub.NewHub()

	broadcaster, err := newBroadcaster(cfg, wsHub, redisClient, instanceID)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Relay.Driver).Msg("failed to create relay")
	}
	defer broadcaster.Close()

	var presence registry.Presence = registry.Noop{}
	if cfg.Presence.Enabled {
		presence = registry.NewRedisPresence(redisClient, cfg.Presence, instanceID)
	}

	var producer kafka.MessageProducer = kafka.NoopProducer{}
	if cfg.Events.Enabled {
		producer, err = kafka.NewConfluentProducer(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		logger.Info().Str("brokers", cfg.Events.Brokers).Str("topic", cfg.Events.Topic).Msg("kafka events enabled")
	}

	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize transcript storage")
	}

	messageIDs, err := idgen.NewMessageIDGenerator(cfg.Chat.MessageIDKind)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid message id generator")
	}
	secrets, err := idgen.NewSecretGenerator(cfg.Chat.VisitorSecretKind, cfg.Chat.VisitorSecretSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid visitor secret generator")
	}

	chatSvc := service.NewChatService(service.ChatDeps{
		Rooms:       rooms,
		Resolver:    verifier,
		Authorizer:  authorizer,
		Hub:         wsHub,
		Broadcaster: broadcaster,
		Presence:    presence,
		Producer:    producer,
		MessageIDs:  messageIDs,
	}, service.ChatOptions{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		RateLimit:        cfg.Chat.RateLimit,
		RateBurst:        cfg.Chat.RateBurst,
	})

	roomSvc, err := service.NewRoomService(service.RoomDeps{
		Rooms:       rooms,
		Authorizer:  authorizer,
		Presence:    presence,
		Broadcaster: broadcaster,
		Archive:     archive,
		Secrets:     secrets,
	}, service.RoomOptions{
		PublicWSBase:       cfg.Server.PublicWSBase,
		HistoryPageSize:    cfg.Chat.HistoryPageSize,
		HistoryMaxPageSize: cfg.Chat.HistoryMaxPageSize,
		ArchivePrefix:      cfg.Chat.ArchivePrefix,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create room service")
	}

	if err := chatSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start chat service")
	}

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.RegisterHealth(r, sqlDB)
	handler.NewWSHandler(chatSvc, cfg.WebSocket, cfg.Chat.MaxMessageLength).RegisterRoutes(r)
	handler.NewHandler(roomSvc, middleware.NewAuthMiddleware(verifier)).RegisterRoutes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Removed accounts are cleared from message senders.
	var userDeleted kafka.UserDeletedConsumer
	if cfg.Events.Enabled && cfg.Events.UserDeletedTopic != "" {
		c, err := kafka.NewConfluentConsumer(cfg.Events.Brokers, cfg.Events.UserDeletedTopic, cfg.Events.ConsumerGroup, roomSvc)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize user-deleted consumer")
		}
		if err := c.Start(gctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start user-deleted consumer")
		}
		userDeleted = c
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("relay", cfg.Relay.Driver).Msg("chat-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down chat-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by the server.
		if err := chatSvc.Stop(); err != nil {
			logger.Warn().Err(err).Msg("chat service stop failed")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat-service exited with error")
	}
	if userDeleted != nil {
		if err := userDeleted.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close user-deleted consumer")
		}
	}
	logger.Info().Msg("chat-service stopped")
}

// newBroadcaster picks the relay driver. Non-memory drivers relay through a
// bus shared by every instance.
func newBroadcaster(cfg *config.Config, h *hub.Hub, redisClient *redis.Client, instanceID string) (relay.Broadcaster, error) {
	switch cfg.Relay.Driver {
	case "memory", "":
		return relay.NewLocalBroadcaster(h), nil
	case "redis":
		return relay.NewBusBroadcaster(h, pubsub.NewRedisPubSubFromClient(redisClient), instanceID), nil
	case "kafka":
		kcfg := cfg.Relay.Kafka
		kcfg.GroupID = kcfg.GroupID + "-" + instanceID
		bus, err := pubsub.NewKafkaPubSub(kcfg)
		if err != nil {
			return nil, err
		}
		return relay.NewBusBroadcaster(h, bus, instanceID), nil
	default:
		return nil, fmt.Errorf("unsupported relay driver: %s", cfg.Relay.Driver)
	}
}
