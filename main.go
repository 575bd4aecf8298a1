package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/auth"
	"github.com/PhilHem/go-totp-identity/backend/config"
	"github.com/PhilHem/go-totp-identity/backend/database"
	"github.com/PhilHem/go-totp-identity/backend/handlers"
	"github.com/PhilHem/go-totp-identity/backend/logger"
	"github.com/PhilHem/go-totp-identity/backend/mfa"
	"github.com/PhilHem/go-totp-identity/backend/middleware"
	"github.com/PhilHem/go-totp-identity/backend/session"
	"github.com/PhilHem/go-totp-identity/backend/store"

	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	var db *gorm.DB
	if config.C.NeedsDatabase() {
		var err error
		if db, err = database.Open(config.C.DatabasePath); err != nil {
			log.Fatal("Failed to open database:", err)
		}
	}

	// Initialize structured logging
	var logDB *gorm.DB
	if config.C.Logs.Persist {
		logDB = db
		go logger.CleanupOldLogs(ctx, db, config.C.Logs.MaxAge, time.Hour)
	}
	slog.SetDefault(slog.New(logger.NewDBHandler(os.Stdout, logDB)))

	var users store.Store
	switch config.C.Store.Driver {
	case "sqlite":
		users = store.NewGormStore(db)
	default:
		users = store.NewMemoryStore()
	}

	var backend session.Backend
	switch config.C.Session.Backend {
	case "redis":
		client, err := database.NewRedis(ctx, config.C.Session.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		defer client.Close()
		backend = session.NewRedisBackend(client, config.C.Session.Timeout)
	default:
		backend = session.NewMemoryBackend(config.C.Session.Timeout)
	}

	passwords, err := auth.SchemeByName(config.C.Auth.PasswordScheme, config.C.Auth.BcryptCost)
	if err != nil {
		log.Fatal("Failed to init password scheme:", err)
	}

	svc := auth.NewService(
		users,
		session.NewManager(backend),
		mfa.NewEngine(config.C.OTP.Issuer, config.C.OTP.QRSize),
		auth.WithPasswordScheme(passwords),
	)
	for _, u := range config.C.Store.SeedUsers {
		if err := svc.Seed(ctx, u.Email, u.Password); err != nil {
			log.Fatal("Failed to seed user:", err)
		}
	}

	secret, generated, err := middleware.SessionSecret(config.C.Session.Secret)
	if err != nil {
		log.Fatal("Failed to init session:", err)
	}
	if generated {
		slog.Warn("no session secret configured, cookies will not survive a restart", "source", "main")
	}
	cookies := middleware.NewCookieStore(secret, config.C.Session.Timeout, config.C.Session.Secure)

	slog.Info("server starting", "source", "main",
		"listen", config.C.Listen,
		"store", config.C.Store.Driver,
		"sessions", config.C.Session.Backend,
	)

	mux := http.NewServeMux()

	// Health check (no session, for load balancers)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	api := http.NewServeMux()
	handlers.NewAPI(svc, config.C.Server.MaxBodySize).Routes(api)
	mux.Handle("/", middleware.BindSession(cookies, config.C.Session.Name)(api))

	handler := middleware.Recovery(middleware.RequestLogger(middleware.SecurityHeaders(mux)))

	srv := &http.Server{
		Addr:              config.C.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Server running at %s\n", config.C.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
