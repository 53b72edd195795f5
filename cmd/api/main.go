package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"tidyhome/internal/adapter/api"
	"tidyhome/internal/adapter/api/handler"
	apimiddleware "tidyhome/internal/adapter/api/middleware"
	"tidyhome/internal/adapter/api/router"
	"tidyhome/internal/adapter/repository"
	"tidyhome/internal/domain/entity"
	domainrepo "tidyhome/internal/domain/repository"
	"tidyhome/internal/infrastructure/email"
	"tidyhome/internal/infrastructure/firebase"
	"tidyhome/internal/infrastructure/ratelimit"
	"tidyhome/internal/infrastructure/websocket"
	"tidyhome/internal/usecase"
	"tidyhome/pkg/config"
	"tidyhome/pkg/logger"
)

// verifier is what the auth middleware and the health check need from the identity backend.
type verifier interface {
	apimiddleware.ViewerVerifier
	handler.ConnectionTester
}

type stores struct {
	conversations domainrepo.ConversationRepository
	receipts      domainrepo.ReadReceiptRepository
	requests      domainrepo.BookingRequestRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repos       stores
		authBackend verifier
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		if cfg.IsProduction() {
			log.Fatalf("STORE_DRIVER=%s is not allowed in production", cfg.StoreDriver)
		}
		logger.Warn("Using the in-memory store and dev tokens (dev:<role>:<uid>[:<name>])")

		store := repository.NewMemoryStore()
		store.PutBookingRequest(&entity.BookingRequest{
			ID:            "demo",
			UserID:        "demo-customer",
			CustomerName:  "Demo Customer",
			CustomerEmail: os.Getenv("DEMO_CUSTOMER_EMAIL"),
		})
		repos = stores{conversations: store, receipts: store, requests: store}
		authBackend = firebase.NewDevViewerVerifier()

	case config.StoreDriverFirestore:
		opt := firebaseCredentials()

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		repos = stores{
			conversations: repository.NewFirestoreConversationRepository(firestoreClient),
			receipts:      repository.NewFirestoreReadReceiptRepository(firestoreClient),
			requests:      repository.NewFirestoreBookingRequestRepository(firestoreClient),
		}
		authBackend = firebase.NewFirebaseAuthClient(authClient)

	default:
		log.Fatalf("Unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	notifier := email.NewNotifier(email.Options{
		APIKey:      cfg.SendgridAPIKey,
		SenderEmail: cfg.SendgridSenderEmail,
		SenderName:  cfg.SendgridSenderName,
		AdminEmail:  cfg.AdminEmail,
	})

	rateLimiter := ratelimit.NewRateLimiter(cfg.Chat.SendRatePerMinute)
	rateLimiter.SetLimit(apimiddleware.ActionAPIRequest, 120, time.Minute)
	rateLimiter.StartCleanupRoutine(ctx)

	chatUseCase := usecase.NewChatUseCase(repos.conversations, repos.receipts, repos.requests, notifier, rateLimiter, cfg.Chat)
	wsManager := websocket.NewManager()

	handler.Setup(chatUseCase, wsManager)
	handler.SetupHealthHandler(authBackend, cfg.StoreDriver)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authBackend)
	adminMiddleware := apimiddleware.NewAdminMiddleware()

	router.Setup(e, authMiddleware, adminMiddleware, apimiddleware.RateLimit(rateLimiter, apimiddleware.ActionAPIRequest))

	go func() {
		logger.Info("Starting server on port %s (store: %s)...", cfg.ServerPort, cfg.StoreDriver)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	wsManager.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	if err := chatUseCase.WaitForBackground(shutdownCtx); err != nil {
		logger.Error("Pending chat side effects were abandoned: %v", err)
	}
}

func firebaseCredentials() option.ClientOption {
	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(serviceAccountJSON))
	}

	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		serviceAccountPath = "./firebase-adminsdk.json"
	}

	if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
		log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
	}

	log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
	return option.WithCredentialsFile(serviceAccountPath)
}
