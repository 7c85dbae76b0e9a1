package bootstrap

import (
	"context"
	"log"
	"time"

	"fittrack-be/internal/config"
	"fittrack-be/internal/controller"
	"fittrack-be/internal/handler"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/pkg/mailer"
	"fittrack-be/internal/pkg/serverutils"
	"fittrack-be/internal/repository/implementation"
	"fittrack-be/internal/repository/memory"
	"fittrack-be/internal/repository/unitofwork"
	"fittrack-be/internal/service"
	"fittrack-be/internal/websocket"
	"fittrack-be/pkg/llm/factory"

	pktNats "fittrack-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const activityTopic = "activity.created"

type Container struct {
	// Controllers
	AuthController     controller.IAuthController
	UserController     controller.IUserController
	ChatController     controller.IChatController
	ActivityController controller.IActivityController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets & notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Shared
	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM provider
	llmProvider, err := factory.NewLLMProvider(
		context.Background(),
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	sessionCache := memory.NewSessionCache()

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Services
	publisherService := service.NewPublisherService(activityTopic, pubSub)

	authService := service.NewAuthService(
		uowFactory,
		emailService,
		natsPub,
		sessionCache,
		sysLogger,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour,
	)
	userService := service.NewUserService(uowFactory, sessionCache, sysLogger)
	chatService := service.NewChatService(uowFactory, llmProvider, sysLogger)
	activityService := service.NewActivityService(uowFactory, publisherService, sysLogger)

	// A typed nil must not reach the worker's interface field.
	var goalPublisher service.EventPublisher
	if natsPub != nil {
		goalPublisher = natsPub
	}
	consumerService := service.NewConsumerService(
		pubSub,
		activityTopic,
		uowFactory,
		goalPublisher,
		sysLogger,
	)

	sessionMiddleware := serverutils.NewSessionMiddleware(authService)

	// 6. Notification system
	notifRepo := implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, natsSub, wsHub, wsLogger)
	if natsSub != nil {
		go notifService.Start()
	}
	notifHandler := handler.NewNotificationHandler(notifService, authService, wsHub, sessionMiddleware, wsLogger)

	return &Container{
		AuthController:      controller.NewAuthController(authService),
		UserController:      controller.NewUserController(userService, sessionMiddleware),
		ChatController:      controller.NewChatController(chatService, sessionMiddleware),
		ActivityController:  controller.NewActivityController(activityService, sessionMiddleware),
		ConsumerService:     consumerService,
		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,
		Logger:              sysLogger,
	}
}
