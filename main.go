package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pwa-notify-go/internal/handlers"
	"pwa-notify-go/internal/models"
	"pwa-notify-go/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	ctx := context.Background()

	// Subscription registry: PostgreSQL when DATABASE_URL is set, in-memory otherwise
	var subs store.SubscriptionStore
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		pg, err := store.NewPostgresSubscriptions(databaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Database migrations completed")
		subs = pg
	} else {
		log.Println("DATABASE_URL not set, keeping subscriptions in memory")
		subs = store.NewMemorySubscriptions()
	}

	// Notification history: Redis when configured, bounded in-memory otherwise
	var history store.HistoryStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDB = db
			}
		}
		history = store.NewRedisHistory(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		})
	} else {
		history = store.NewMemoryHistory(0)
	}

	h := handlers.NewHandler(subs, history, models.DemoUsers())

	// Public routes
	http.HandleFunc("/api/login", h.LoginHandler)
	http.HandleFunc("/api/logout", h.LogoutHandler)
	http.HandleFunc("/api/vapid-public-key", h.GetVAPIDKeyHandler)
	http.HandleFunc("/api/subscribe", h.SubscribeHandler)
	http.HandleFunc("/api/unsubscribe", h.UnsubscribeHandler)
	http.HandleFunc("/api/stats", h.StatsHandler)
	http.HandleFunc("/api/profile", h.ProfileHandler)
	http.HandleFunc("/api/settings", h.SettingsHandler)
	http.HandleFunc("/api/notifications", h.NotificationsHandler)

	// Broadcast endpoint: open to external callers, guarded by a shared
	// secret signature when NOTIFY_SECRET is set
	http.HandleFunc("/api/send-notification", h.SendNotificationHandler)

	http.HandleFunc("/api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetSubscriptionsHandler(w, r)
		case http.MethodDelete:
			handlers.AuthMiddleware(h.CleanupSubscriptionsHandler)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Admin routes (protected)
	http.HandleFunc("/api/test-notification", handlers.AuthMiddleware(h.TestNotificationHandler))
	http.HandleFunc("/api/notifications/admin/send-by-subscription-type", handlers.AuthMiddleware(h.SendByTypeHandler))
	http.HandleFunc("/api/notifications/admin/subscription-stats", handlers.AuthMiddleware(h.SubscriptionStatsHandler))
	http.HandleFunc("/api/notifications/admin/purge", handlers.AuthMiddleware(h.PurgeNotificationsHandler))

	http.Handle("/metrics", promhttp.Handler())

	// Serve static files (PWA assets)
	fs := http.FileServer(http.Dir("web/static"))
	http.Handle("/static/", http.StripPrefix("/static/", fs))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	log.Println("Demo login: 123456789 / 123456")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
