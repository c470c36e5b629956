package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stayhub/booking-core/internal/config"
	"github.com/stayhub/booking-core/internal/database"
	"github.com/stayhub/booking-core/internal/handler"
	"github.com/stayhub/booking-core/internal/middleware"
	"github.com/stayhub/booking-core/internal/repository"
	"github.com/stayhub/booking-core/internal/router"
	"github.com/stayhub/booking-core/internal/service"
	"github.com/stayhub/booking-core/internal/storage"
	"github.com/stayhub/booking-core/internal/verifier"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if cfg.Env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and token status caching disabled")
	}

	store, err := storage.New(log)
	if err != nil {
		log.WithError(err).Fatal("proof storage init failed")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	rooms := repository.NewRoomRepo(db)
	blocked := repository.NewBlockedDateRepo(db)
	bookings := repository.NewBookingRepo(db)
	locks := repository.NewLockRepo(db)
	slips := repository.NewSlipRepo(db)
	uploadTokens := repository.NewUploadTokenRepo(db)

	// Services.
	notify := service.NewAMQPNotifier(log)
	availability := service.NewAvailability(blocked, bookings)
	lockMgr := service.NewLockManager(locks, time.Duration(cfg.LockTTLMin)*time.Minute, service.UTCNow, log)
	lifecycle := service.NewLifecycle(bookings, rooms, availability, lockMgr, notify, service.UTCNow,
		cfg.RequireLock, time.Duration(cfg.CancelWindowHours)*time.Hour, log)

	var verify verifier.Verifier
	if cfg.VerifierEnabled {
		verify = verifier.NewClient(cfg.VerifierBaseURL, cfg.VerifierAPIKey)
	}
	pipeline := service.NewPipeline(slips, lifecycle, lockMgr, verify, notify, service.UTCNow,
		cfg.AmountTolerance, time.Duration(cfg.RecencyHours)*time.Hour, log)

	broker := service.NewUploadBroker(uploadTokens, store, rdb,
		time.Duration(cfg.UploadTokenTTLMin)*time.Minute, cfg.MaxProofBytes, service.UTCNow, log)

	// Stays whose checkout date has passed are swept hourly.
	go func() {
		for range time.Tick(time.Hour) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := lifecycle.CompleteElapsed(ctx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("complete elapsed bookings failed")
			} else if n > 0 {
				log.WithField("count", n).Info("bookings marked completed")
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users, tokens),
		Room:    handler.NewRoomHandler(rooms, blocked, users, availability),
		Lock:    handler.NewLockHandler(lockMgr),
		Booking: handler.NewBookingHandler(lifecycle),
		Proof:   handler.NewPaymentProofHandler(pipeline),
		Upload:  handler.NewUploadTokenHandler(broker, cfg.MaxProofBytes),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
