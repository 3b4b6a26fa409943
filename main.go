package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drawchat/internal/auth"
	"drawchat/internal/config"
	"drawchat/internal/db"
	"drawchat/internal/delivery"
	"drawchat/internal/handlers"
	"drawchat/internal/middleware"
	"drawchat/internal/observability"
	"drawchat/internal/rabbitmq"
	"drawchat/internal/repositories"
	"drawchat/internal/telemetry"
	"drawchat/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	emitter := telemetry.NewEmitter(publisher, "drawchat", cfg.Environment)

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokens := auth.NewTokenService(cfg.JWTSecret)
	engine := delivery.NewEngine(chatRepo, messageRepo)
	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(userRepo, tokens)
	chatHandler := handlers.NewChatHandler(engine, chatRepo, messageRepo, userRepo, hub, emitter)
	messageHandler := handlers.NewMessageHandler(engine, chatRepo, messageRepo, hub, emitter)
	wsHandler := ws.NewHandler(hub, engine, userRepo, tokens, emitter)

	router := gin.Default()
	router.Use(middleware.CORS())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "server is running")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)
	router.GET("/api/auth/me", authMiddleware, authHandler.Me)

	router.GET("/api/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/api/chats", authMiddleware, chatHandler.CreateChat)
	router.POST("/api/chats/:chat_id/read", authMiddleware, chatHandler.MarkChatRead)

	router.POST("/api/messages", authMiddleware, messageHandler.SendMessage)
	router.GET("/api/messages/chat/:chat_id", authMiddleware, messageHandler.ListMessages)

	router.GET("/ws", wsHandler.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
