package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/api"
	"waba-gateway/internal/auth"
	"waba-gateway/internal/config"
	"waba-gateway/internal/database"
	"waba-gateway/internal/logger"
	"waba-gateway/internal/template"
	"waba-gateway/internal/webhook"
	"waba-gateway/internal/whatsapp"
	"waba-gateway/internal/ws"
)

// store is what the gateway needs from its persistence layer.
type store interface {
	template.Store
	webhook.MessageRecorder
	api.DataStore
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer closeDB()

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; every authenticated route will answer 401")
	}
	if cfg.VerifyToken == "" {
		log.Warn("VERIFY_TOKEN is not set; the subscription handshake will always answer 403")
	}
	if cfg.AppSecret == "" {
		log.Warn("APP_SECRET is not set; webhook deliveries will be rejected")
	}

	hub := ws.NewHub(cfg.CORSOrigin, log)
	go hub.Run(ctx)

	whatsappClient := whatsapp.NewClient(cfg, whatsapp.WithMessageLog(db), whatsapp.WithLogger(log))
	templateService := template.NewService(db, whatsappClient, cfg.WhatsAppBusinessAccountID, log)
	webhookHandler := webhook.NewHandler(cfg, webhook.Deps{
		Recorder:    db,
		Templates:   templateService,
		Sender:      whatsappClient,
		Notifier:    hub,
		Credentials: whatsappClient,
		Log:         log,
	})

	r := api.SetupRouter(api.RouterDeps{
		Config:    cfg,
		Log:       log,
		Templates: templateService,
		Data:      db,
		Client:    whatsappClient,
		Webhook:   webhookHandler,
		Hub:       hub,
		JWT:       auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store, func(), error) {
	if cfg.DBDriver == database.DriverMongo {
		m, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {
			if err := m.Close(context.Background()); err != nil {
				log.WithError(err).Warn("Error disconnecting from MongoDB")
			}
		}, nil
	}

	db, err := database.OpenGorm(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return database.NewGormStore(db), func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}
