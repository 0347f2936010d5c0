package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/cache"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	amqpURL := os.Getenv("AMQP_URL")
	eventsExchange := getEnv("AMQP_EXCHANGE", "messaging.events")

	publisher := rabbitmq.NewPublisher(amqpURL, eventsExchange)
	defer publisher.Close()

	audit := telemetry.NewAuditEmitter(
		publisher,
		getEnv("AUDIT_ROUTING_KEY", "audit.messaging"),
		serviceName,
		getEnv("ENVIRONMENT", "development"),
	)

	if amqpURL != "" {
		eventsPub, err := observability.NewAMQPPublisher(amqpURL, eventsExchange)
		if err != nil {
			log.Printf("ws event publishing disabled: %v", err)
		} else {
			observability.SetPublisher(eventsPub)
			defer eventsPub.Close()
		}
	}

	var msgCache cache.MessageCache = cache.Noop{}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisCache, err := cache.Connect(ctx, addr)
		if err != nil {
			log.Printf("message cache disabled: %v", err)
		} else {
			msgCache = redisCache
		}
	}

	userRepo := repositories.NewUserRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	typingRepo := repositories.NewTypingRepo(database)

	syncer := identity.NewSyncer(userRepo, presenceRepo)
	if amqpURL != "" {
		consumer, err := rabbitmq.NewIdentityConsumer(
			amqpURL,
			getEnv("IDENTITY_EXCHANGE", "identity.events"),
			getEnv("IDENTITY_QUEUE", "messaging-service.identity"),
			syncer,
		)
		if err != nil {
			log.Printf("identity sync disabled: %v", err)
		} else {
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Printf("identity consumer stopped: %v", err)
				}
			}()
			defer consumer.Close()
		}
	}

	hub := ws.NewHub()

	jwtSecret := []byte(getEnv("JWT_SECRET", "dev-secret"))

	conversationHandler := handlers.NewConversationHandler(convRepo, userRepo, presenceRepo, audit)
	messageHandler := handlers.NewMessageHandler(msgRepo, convRepo, userRepo, msgCache, hub, audit)
	reactionHandler := handlers.NewReactionHandler(reactionRepo, msgRepo, convRepo, hub)
	presenceHandler := handlers.NewPresenceHandler(presenceRepo, userRepo)
	typingHandler := handlers.NewTypingHandler(typingRepo, convRepo, userRepo, hub)

	conversationWS := ws.NewConversationWebSocketHandler(hub, convRepo, userRepo, jwtSecret)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(jwtSecret, userRepo)

	router.POST("/conversations/direct", authMiddleware, conversationHandler.StartDirect)
	router.POST("/conversations/group", authMiddleware, conversationHandler.CreateGroup)
	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations/:conversation_id/read", authMiddleware, conversationHandler.MarkRead)
	router.DELETE("/conversations/:conversation_id/members/me", authMiddleware, conversationHandler.Leave)

	router.POST("/conversations/:conversation_id/messages", authMiddleware, messageHandler.Send)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.List)
	router.GET("/conversations/:conversation_id/meta", authMiddleware, messageHandler.Meta)
	router.PATCH("/messages/:message_id", authMiddleware, messageHandler.Edit)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.Delete)

	router.POST("/messages/:message_id/reactions", authMiddleware, reactionHandler.Toggle)
	router.GET("/messages/:message_id/reactions", authMiddleware, reactionHandler.Grouped)
	router.POST("/reactions/query", authMiddleware, reactionHandler.Batch)

	router.POST("/presence/heartbeat", authMiddleware, presenceHandler.Heartbeat)
	router.GET("/presence/online", authMiddleware, presenceHandler.Online)

	router.POST("/conversations/:conversation_id/typing", authMiddleware, typingHandler.Set)
	router.GET("/conversations/:conversation_id/typing", authMiddleware, typingHandler.Typers)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, hub, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
