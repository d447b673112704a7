// FRAUD SERVICE - cmd/fraud/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"refnet/internal/fraud"
	"refnet/internal/handler"
	"refnet/internal/middleware"
	"refnet/internal/repository/postgres"
	"refnet/pkg/cache"
	"refnet/pkg/config"
	"refnet/pkg/logger"
	"refnet/pkg/mailer"
	"refnet/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("fraud-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}

	// Probe which fraud tables this deployment has migrated. Features
	// backed by missing tables stay off instead of erroring at runtime.
	schemaCaps, err := postgres.NewSchemaProbe(db).Detect(context.Background())
	if err != nil {
		log.Fatal("Failed to detect schema capabilities", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Schema capabilities detected", map[string]interface{}{
		"device_tracking": schemaCaps.HasDeviceTables,
		"login_history":   schemaCaps.HasLoginHistory,
		"fraud_rules":     schemaCaps.HasFraudRules,
		"fraud_alerts":    schemaCaps.HasFraudAlerts,
		"transactions":    schemaCaps.HasTransactions,
		"security_events": schemaCaps.HasSecurityEvent,
	})

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	deviceRepo := postgres.NewDeviceFingerprintRepository(db)
	ipRepo := postgres.NewIPAddressRepository(db)
	ruleRepo := postgres.NewFraudRuleRepository(db)
	alertRepo := postgres.NewFraudAlertRepository(db)
	loginRepo := postgres.NewLoginHistoryRepository(db)
	txRepo := postgres.NewTransactionRepository(db)
	eventRepo := postgres.NewSecurityEventRepository(db)
	flagStore := postgres.NewFlagStore(db, alertRepo, eventRepo)

	var notifier fraud.Notifier
	if cfg.Fraud.NotifyCriticalAlerts {
		notifier = mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
			UseTLS:   cfg.Email.SMTPUseTLS,
		})
	}

	fraudService := fraud.NewService(fraud.ServiceParams{
		Users:    userRepo,
		Devices:  deviceRepo,
		IPs:      ipRepo,
		Rules:    ruleRepo,
		Alerts:   alertRepo,
		Logins:   loginRepo,
		Txs:      txRepo,
		Flags:    flagStore,
		Events:   eventRepo,
		Notifier: notifier,
		Caps: fraud.Capabilities{
			DeviceTracking: schemaCaps.HasDeviceTables,
			LoginHistory:   schemaCaps.HasLoginHistory,
			FraudRules:     schemaCaps.HasFraudRules,
			FraudAlerts:    schemaCaps.HasFraudAlerts,
			Transactions:   schemaCaps.HasTransactions,
			SecurityEvents: schemaCaps.HasSecurityEvent,
		},
		Policy: fraud.ScoringPolicy(os.Getenv("FRAUD_SCORING_POLICY")),
		Config: cfg.Fraud,
		Logger: log,
	})

	// Initialize handlers
	val := validator.New()
	fraudHandler := handler.NewFraudHandler(fraudService, val, cache.NewFromClient(redisClient), cfg.Fraud, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.NewRateLimiter(redisClient, 120, time.Minute).Limit)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.BodyLimit(1 << 20))

	// Routes
	r.HandleFunc("/health", healthCheck).Methods("GET")

	// Event ingestion from the auth service. Network-internal, not
	// browser-facing.
	events := r.PathPrefix("/internal/v1/events").Subrouter()
	events.HandleFunc("/login-success", fraudHandler.LoginSuccess).Methods("POST")
	events.HandleFunc("/login-failure", fraudHandler.LoginFailure).Methods("POST")

	// Admin API
	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	gate := middleware.NewAccountGate(fraudService)
	api := r.PathPrefix("/api/v1/fraud").Subrouter()
	api.Use(authMW.Authenticate)
	api.Use(gate.Check)
	api.Use(middleware.RequireAdmin)
	api.HandleFunc("/dashboard", fraudHandler.Dashboard).Methods("GET")
	api.HandleFunc("/alerts", fraudHandler.Alerts).Methods("GET")
	api.HandleFunc("/events", fraudHandler.SecurityEvents).Methods("GET")
	api.HandleFunc("/rules", fraudHandler.Rules).Methods("GET")
	api.HandleFunc("/users/{id}", fraudHandler.UserProfile).Methods("GET")
	api.HandleFunc("/users/{id}/related", fraudHandler.RelatedAccounts).Methods("GET")
	api.HandleFunc("/users/{id}/score", fraudHandler.Score).Methods("GET")
	api.HandleFunc("/users/{id}/flag", fraudHandler.Flag).Methods("POST")
	api.HandleFunc("/users/{id}/unflag", fraudHandler.Unflag).Methods("POST")

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Fraud service starting", map[string]interface{}{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"fraud"}`))
}
