package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"hubly/helpdesk-service/internal/config"
	"hubly/helpdesk-service/internal/handler"
	"hubly/helpdesk-service/internal/live"
	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/repository"
	"hubly/helpdesk-service/internal/services"
	"hubly/helpdesk-service/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Error parsing configs: %v", err)
	}

	ctx, shutdownManager := utils.NewShutdownManager(context.Background(), cfg.Server.ShutdownTimeout)
	shutdownManager.StartListening()

	// MongoDB
	mongoClient, err := utils.NewMongoDBConnection(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Error connecting to MongoDB: %v", err)
	}
	shutdownManager.Register("Closing MongoDB connection", mongoClient.Disconnect)

	db := mongoClient.Database(cfg.MongoDB.DBName)
	if err := utils.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Error creating indexes: %v", err)
	}

	// Redis
	redisClient, err := utils.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Error connecting to Redis: %v", err)
	}
	shutdownManager.Register("Closing Redis connection", func(context.Context) error {
		return redisClient.Close()
	})

	// Optional integrations stay nil interfaces when switched off
	var avatars services.ObjectStore
	if cfg.Minio.Enabled() {
		storage, err := utils.NewObjectStorage(ctx, cfg.Minio)
		if err != nil {
			log.Fatalf("Error connecting to MinIO: %v", err)
		}
		avatars = storage
	} else {
		log.Println("MinIO is not configured, avatar uploads are disabled")
	}

	var mailer services.Mailer
	if cfg.SMTP.Enabled() {
		mailer = utils.NewMailer(cfg.SMTP)
	} else {
		log.Println("SMTP is not configured, missed-chat mails are disabled")
	}

	// Repositories and services
	accountRepo := repository.NewAccountRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	jwtUtil := utils.NewJWTUtil(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	publisher := utils.NewEventPublisher(redisClient)

	authService := services.NewAuthService(accountRepo, jwtUtil, redisClient, avatars)
	memberService := services.NewMemberService(accountRepo, ticketRepo, redisClient)
	ticketService := services.NewTicketService(ticketRepo, accountRepo, publisher)
	settingsService := services.NewSettingsService(settingsRepo, cfg.Widget.BaseURL)
	analyticsService := services.NewAnalyticsService(ticketRepo, accountRepo, settingsService)

	watcher := services.NewMissedChatWatcher(ticketRepo, accountRepo, settingsService, publisher, mailer, cfg.MissedChat.Interval)
	watcher.Start(ctx)

	// Live channel
	hub := live.NewHub()
	go hub.Run(ctx)
	go utils.SubscribeToTicketEvents(ctx, redisClient, hub.Publish)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(memberService)
	ticketHandler := handler.NewTicketHandler(ticketService)
	chatbotHandler := handler.NewChatbotHandler(settingsService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	liveHandler := live.NewHandler(hub, ticketService, jwtUtil, authService, cfg.Server.CORSOrigins)

	// Router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := utils.AuthMiddleware(jwtUtil, authService)
	optionalAuth := utils.OptionalAuth(jwtUtil, authService)
	adminOnly := utils.RequireRoles(models.RoleAdmin)

	api := router.Group("/api", utils.RequestTimeout(cfg.Server.RequestTimeout))
	{
		authRoutes := api.Group("/auth")
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)

		users := api.Group("/users", auth)
		users.GET("/me", authHandler.GetMe)
		users.PUT("/me", authHandler.UpdateMe)
		users.PUT("/me/avatar", authHandler.UploadAvatar)
		users.POST("/change-password", authHandler.ChangePassword)
		users.GET("/members", userHandler.ListMembers)
		users.POST("/members", adminOnly, userHandler.CreateMember)
		users.PUT("/members/:id", adminOnly, userHandler.UpdateMember)
		users.DELETE("/members/:id", adminOnly, userHandler.DeleteMember)

		tickets := api.Group("/tickets")
		tickets.GET("", auth, ticketHandler.ListTickets)
		tickets.POST("/create", ticketHandler.CreateTicket)
		tickets.GET("/:id", optionalAuth, ticketHandler.GetTicket)
		tickets.GET("/:id/messages", optionalAuth, ticketHandler.GetMessages)
		tickets.POST("/:id/message", optionalAuth, ticketHandler.AppendMessage)
		tickets.PUT("/:id/update", ticketHandler.UpdateContactInfo)
		tickets.PUT("/:id/status", auth, ticketHandler.SetStatus)
		tickets.PUT("/:id/assign", auth, ticketHandler.Assign)

		chatbot := api.Group("/chatbot")
		chatbot.GET("/settings", chatbotHandler.GetSettings)
		chatbot.PUT("/settings", auth, adminOnly, chatbotHandler.UpdateSettings)
		chatbot.GET("/qr", chatbotHandler.WidgetQRCode)

		analytics := api.Group("/analytics", auth, adminOnly)
		analytics.GET("/dashboard", analyticsHandler.Dashboard)
		analytics.GET("/detailed", analyticsHandler.Detailed)
		analytics.GET("/members/:id", analyticsHandler.Member)
		analytics.GET("/export", analyticsHandler.Export)
	}

	liveRoutes := router.Group("/live")
	liveRoutes.GET("/tickets/:id", liveHandler.ServeTicket)
	liveRoutes.GET("/staff", liveHandler.ServeStaff)

	// HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Helpdesk service running on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register("Shutting down HTTP server", server.Shutdown)

	<-shutdownManager.Done()
}
