package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/transport-scheduler/internal/application"
	"github.com/example/transport-scheduler/internal/config"
	httptransport "github.com/example/transport-scheduler/internal/http"
	"github.com/example/transport-scheduler/internal/notify"
	"github.com/example/transport-scheduler/internal/persistence/sqlite"
	"github.com/example/transport-scheduler/internal/places"
	"github.com/example/transport-scheduler/internal/realtime"
	"github.com/example/transport-scheduler/internal/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	changeRequestRepo := sqlite.NewChangeRequestRepository(db)
	tripRepo := sqlite.NewTripRepository(db)
	addressRepo := sqlite.NewAddressRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	deviceTokenRepo := sqlite.NewDeviceTokenRepository(db)

	tokens := token.NewManager(cfg.SessionSecret, "transport-scheduler")

	hub := realtime.NewHub(logger)

	var queue application.NotificationQueue
	var notifyClient *notify.Client
	if cfg.AMQPURL != "" {
		notifyClient, err = notify.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := notifyClient.Close(); cerr != nil {
				logger.Error("failed to close broker connection", "error", cerr)
			}
		}()
		queue = notifyClient

		if cfg.PushEndpoint != "" {
			worker := notify.NewWorker(notifyClient, notificationRepo, deviceTokenRepo, notify.NewHTTPPushClient(cfg.PushEndpoint, cfg.PushAPIKey), logger)
			go func() {
				if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("notification worker stopped", "error", err)
				}
			}()
		} else {
			logger.Warn("push endpoint not configured; queued notifications will not be delivered")
		}
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if cerr := cache.Close(); cerr != nil {
				logger.Error("failed to close cache connection", "error", cerr)
			}
		}()
	}
	placesClient := places.NewClient(cfg.PlacesBaseURL, cfg.PlacesAPIKey, cache, logger)

	authService := application.NewAuthService(userRepo, sessionRepo, newTokenAdapter(tokens), nil, idGenerator, now, cfg.SessionTTL, logger)
	userService := application.NewUserService(userRepo, defaultPasswordHasher, idGenerator, now, logger)
	scheduleService := application.NewScheduleService(scheduleRepo, hub, now, location, cfg.EnforceSubmissionDeadline, logger)
	changeRequestService := application.NewChangeRequestService(changeRequestRepo, hub, now, location, cfg.ChangeLeadDays, logger)
	tripService := application.NewTripService(tripRepo, scheduleRepo, notificationRepo, queue, hub, idGenerator, now, logger)
	addressService := application.NewAddressService(addressRepo, idGenerator, now, logger)
	notificationService := application.NewNotificationService(notificationRepo, deviceTokenRepo, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, userService, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Schedules:      httptransport.NewScheduleHandler(scheduleService, logger),
		ChangeRequests: httptransport.NewChangeRequestHandler(changeRequestService, logger),
		Trips:          httptransport.NewTripHandler(tripService, logger),
		Addresses:      httptransport.NewAddressHandler(addressService, logger),
		Notifications:  httptransport.NewNotificationHandler(notificationService, logger),
		Places:         httptransport.NewPlacesHandler(placesClient, logger),
		Feed:           httptransport.NewFeedHandler(hub, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r) {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("transport API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// isPublicRoute reports whether the request may bypass session validation.
// Only account creation and sign-in are open.
func isPublicRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return strings.EqualFold(r.URL.Path, "/register") || strings.EqualFold(r.URL.Path, "/sessions")
}

func defaultPasswordHasher(password string) (string, error) {
	return application.CreatePasswordHash(password, application.DefaultArgon2idParams)
}

// tokenAdapter narrows the token manager to the claim fields the application
// layer cares about.
type tokenAdapter struct {
	manager *token.Manager
}

func newTokenAdapter(manager *token.Manager) *tokenAdapter {
	return &tokenAdapter{manager: manager}
}

func (a *tokenAdapter) Issue(userID string, isAdmin bool, issuedAt, expiresAt time.Time) (string, error) {
	return a.manager.Issue(userID, isAdmin, issuedAt, expiresAt)
}

func (a *tokenAdapter) Parse(tokenStr string) (string, bool, error) {
	claims, err := a.manager.Parse(tokenStr)
	if err != nil {
		return "", false, err
	}
	return claims.UserID, claims.IsAdmin, nil
}
