package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/broker"
	"github.com/JackBerck/guyub-rukun-sub001/internal/config"
	"github.com/JackBerck/guyub-rukun-sub001/internal/database"
	"github.com/JackBerck/guyub-rukun-sub001/internal/handler"
	"github.com/JackBerck/guyub-rukun-sub001/internal/health"
	"github.com/JackBerck/guyub-rukun-sub001/internal/middleware"
	"github.com/JackBerck/guyub-rukun-sub001/internal/notifier"
	"github.com/JackBerck/guyub-rukun-sub001/internal/presence"
	"github.com/JackBerck/guyub-rukun-sub001/internal/realtime"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/JackBerck/guyub-rukun-sub001/internal/workerpool"
	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceTTL     = 90 * time.Second
	shutdownTimeout = 10 * time.Second
)

// backend is the pub/sub broker plus the optional Redis connection used
// for presence and rate limiting
type backend struct {
	broker broker.MessageBroker
	redis  *redis.Client
	nats   *nats.Conn

	ownsRedis bool
}

func (b *backend) close() {
	if err := b.broker.Close(); err != nil {
		logger.Log.Warn("Failed to close broker", zap.Error(err))
	}
	if b.ownsRedis && b.redis != nil {
		b.redis.Close()
	}
}

func main() {
	cfg := config.Load()

	if err := logger.Init(!cfg.IsProduction(), cfg.LogLevel); err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Log.Info("Config loaded",
		zap.String("environment", cfg.Environment),
		zap.String("broker", cfg.Broker),
	)

	database.Connect(cfg)
	database.Migrate()

	be, err := connectBackend(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize broker", zap.String("broker", cfg.Broker), zap.Error(err))
	}
	defer be.close()

	var online presence.Store = presence.NewMemoryStore()
	if be.redis != nil {
		online = presence.NewRedisStore(be.redis, presenceTTL)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	// Unread notifications run off the request path
	pool := workerpool.New(cfg.NotifierWorkers, cfg.NotifierQueueSize)
	defer pool.Shutdown()

	// Initialize services
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	authService := service.NewAuthService(userRepo, tokens)
	messageService := service.NewMessageService(
		messageRepo,
		userRepo,
		notifier.New(be.broker, pool),
		cfg.MessageMaxLength,
		cfg.HistoryPageSize,
	)
	unreadService := service.NewUnreadService(messageRepo)
	chatService := service.NewChatService(messageRepo, userRepo, messageService, online)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(be.broker, online, messageService)
	if err := hub.Start(ctx); err != nil {
		logger.Log.Fatal("Failed to start realtime hub", zap.Error(err))
	}

	routes := handler.Routes{
		Auth:      handler.NewAuthHandler(authService, cfg.AvatarBaseURL, cfg.IsProduction(), int(cfg.JWTExpiry.Seconds())),
		Messages:  handler.NewMessageHandler(messageService, unreadService),
		Chats:     handler.NewChatHandler(chatService, messageService, cfg.AvatarBaseURL),
		Broadcast: handler.NewBroadcastHandler(),
		WebSocket: handler.NewWebSocketHandler(hub, cfg.CORSOrigins),
		Health:    handler.NewHealthHandler(health.NewChecker(database.DB, be.redis, be.nats)),
		Tokens:    tokens,
	}
	if be.redis != nil {
		routes.SendLimiter = middleware.NewRateLimiter(be.redis, middleware.RateLimiterConfig{
			Scope:       "send",
			MaxRequests: cfg.RateLimitMaxRequests,
			Window:      cfg.RateLimitWindow,
			BlockTime:   cfg.RateLimitBlockTime,
		})
		routes.AuthLimiter = middleware.NewRateLimiter(be.redis, middleware.RateLimiterConfig{
			Scope:       "auth",
			MaxRequests: 10,
			Window:      time.Minute,
			BlockTime:   cfg.RateLimitBlockTime,
		})
	} else {
		logger.Log.Warn("Redis unavailable, rate limiting disabled and presence kept in memory")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handler.Register(router, routes)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("addr", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Server failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("Graceful shutdown failed", zap.Error(err))
	}

	logger.Log.Info("Server stopped", zap.Int("clients", hub.ClientCount()))
}

func connectBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Broker {
	case "redis":
		rb, err := broker.NewRedisMessageBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &backend{broker: rb, redis: rb.Client()}, nil

	case "nats":
		nb, err := broker.NewNATSMessageBroker(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		return &backend{broker: nb, redis: optionalRedis(cfg.RedisURL), nats: nb.Conn(), ownsRedis: true}, nil

	case "memory":
		return &backend{broker: broker.NewMemoryMessageBroker(), redis: optionalRedis(cfg.RedisURL), ownsRedis: true}, nil

	default:
		return nil, errors.New("unknown broker " + cfg.Broker)
	}
}

// optionalRedis connects when Redis answers a ping, nil otherwise
func optionalRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		logger.Log.Warn("Invalid REDIS_URL", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Warn("Redis not reachable", zap.String("url", opt.Addr), zap.Error(err))
		client.Close()
		return nil
	}
	return client
}
