// Package main runs the registration and ticketing HTTP server with the live gate feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bis-events/gatepass/config"
	"github.com/bis-events/gatepass/internal/analytics"
	"github.com/bis-events/gatepass/internal/auth"
	"github.com/bis-events/gatepass/internal/compat"
	"github.com/bis-events/gatepass/internal/credentials"
	"github.com/bis-events/gatepass/internal/emaillogs"
	"github.com/bis-events/gatepass/internal/issuance"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/mailer"
	"github.com/bis-events/gatepass/internal/media"
	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/internal/qrcode"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/internal/registrations"
	"github.com/bis-events/gatepass/internal/review"
	"github.com/bis-events/gatepass/internal/verification"
	"github.com/bis-events/gatepass/internal/worker"
	"github.com/bis-events/gatepass/pkg/database"
	"github.com/bis-events/gatepass/pkg/queue"
	"github.com/bis-events/gatepass/pkg/redis"
	"github.com/bis-events/gatepass/pkg/response"
	"github.com/bis-events/gatepass/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := cfg.Event.Location()
	if err != nil {
		logger.Fatal("event timezone", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var blob storage.Blob
	if cfg.AWS.Bucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.Bucket,
			Endpoint:        cfg.AWS.Endpoint,
			PublicRead:      cfg.AWS.PublicRead,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		blob = s3Client
	} else {
		logger.Warn("AWS_S3_BUCKET not set; proofs and QR images are kept in memory")
		blob = storage.NewMemory()
	}

	// Write lock: shared across instances through Redis, in-process otherwise.
	var locker lock.Locker
	var hub *realtime.Hub
	var jobQueue *queue.Queue
	if rdb != nil {
		locker = lock.NewRedis(rdb.Client, cfg.Behavior.WriteLockTimeout, cfg.Behavior.WriteLockLease, logger)
		hub = realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger))
		jobQueue = queue.NewQueue(rdb.Client, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; using in-process write lock and direct email")
		locker = lock.NewLocal(cfg.Behavior.WriteLockTimeout)
		hub = realtime.NewHub(logger, nil)
	}

	var renderer qrcode.Renderer
	if cfg.Behavior.QRRenderer == "local" {
		renderer = qrcode.NewLocal()
	} else {
		renderer = qrcode.NewRemote(cfg.Behavior.QRBaseURL, cfg.Behavior.QRTimeout)
	}

	sender := newSender(cfg.Email, logger)
	tmpl := mailer.NewTicketTemplate(cfg.Email.Subject, cfg.Event.Title, cfg.Event.TeamName)
	var notifier mailer.Notifier
	if cfg.Email.Mode == "queue" && jobQueue != nil {
		notifier = mailer.NewQueuedNotifier(jobQueue, tmpl)
	} else {
		notifier = mailer.NewDirectNotifier(sender, tmpl)
	}

	store := records.NewPostgres(pool)
	gate := auth.NewAdminGate(cfg.Event.AdminKey, cfg.Event.AdminKeyHash)

	workflow := issuance.New(issuance.Deps{
		Store:         store,
		Locker:        locker,
		Credentials:   credentials.NewGenerator(cfg.Event.TicketPrefix),
		Renderer:      renderer,
		Blob:          blob,
		Notifier:      notifier,
		Feed:          hub,
		VerifyBaseURL: cfg.Event.VerifyBaseURL,
		Logger:        logger,
	})

	regService := registrations.NewService(store, locker, blob, gate, hub, registrations.Options{
		Location:          loc,
		StrictProof:       cfg.Behavior.ProofUploadStrict,
		StrictForm:        cfg.Behavior.StrictForm,
		ListRequiresAdmin: cfg.Behavior.ListRequiresAdmin,
	}, logger)
	reviewService := review.NewService(store, locker, gate, workflow, hub, logger)
	verifyService := verification.NewService(store, locker, gate, hub, loc, logger)
	statsService := analytics.NewService(store, gate, loc, logger)
	proxy := media.NewProxy(blob, logger)

	regHandler := registrations.NewHandler(regService)
	reviewHandler := review.NewHandler(reviewService)
	verifyHandler := verification.NewHandler(verifyService)
	statsHandler := analytics.NewHandler(statsService)
	emailLogsHandler := emaillogs.NewHandler(emaillogs.NewRepository(pool), gate)
	execHandler := compat.NewHandler(regService, reviewService, verifyService, statsService, proxy, logger)

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.AdminKey())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public
	router.POST("/registrations", regHandler.Submit)
	router.GET("/registrations", regHandler.List)
	router.GET("/tickets/:ticketId", regHandler.GetTicket)
	router.GET("/media/proxy", proxy.Handle)

	// Admin (key checked by each service)
	admin := router.Group("/admin")
	{
		admin.POST("/checkin", verifyHandler.CheckIn)
		admin.POST("/checkin/manual", verifyHandler.ManualCheckIn)
		admin.POST("/attendance", verifyHandler.MarkAttendance)
		admin.PATCH("/registrations/:id/status", reviewHandler.SetStatus)
		admin.DELETE("/registrations/:id", reviewHandler.Delete)
		admin.GET("/stats", statsHandler.Stats)
		admin.GET("/email-logs", emailLogsHandler.List)
	}

	// Single-endpoint contract used by the existing static pages.
	router.POST("/exec", execHandler.Post)
	router.GET("/exec", execHandler.Get)

	router.GET("/ws/feed", realtime.ServeWs(hub, logger, gate.Authorize))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go hub.Run(bgCtx)

	// Issues tickets for rows approved outside the service.
	listener := issuance.NewListener(pool, workflow, logger)
	listener.EnableSweep(cfg.Behavior.IssuanceSweep)
	go listener.Run(bgCtx)

	if jobQueue != nil && cfg.Email.Mode == "queue" && cfg.Email.InlineWorker {
		processor := worker.NewEmailProcessor(jobQueue, sender, emaillogs.NewRepository(pool), logger)
		go processor.Run(bgCtx)
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newSender(cfg config.EmailConfig, logger *zap.Logger) mailer.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set; emails are logged, not sent")
		return mailer.NewLog(logger)
	}
	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
	})
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
