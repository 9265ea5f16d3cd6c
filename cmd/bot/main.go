package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"

	"github.com/digkill/TGFaceSwapBot/internal/admin"
	"github.com/digkill/TGFaceSwapBot/internal/config"
	"github.com/digkill/TGFaceSwapBot/internal/database"
	"github.com/digkill/TGFaceSwapBot/internal/detector"
	"github.com/digkill/TGFaceSwapBot/internal/faceswap"
	"github.com/digkill/TGFaceSwapBot/internal/ratelimit"
	"github.com/digkill/TGFaceSwapBot/internal/redis"
	"github.com/digkill/TGFaceSwapBot/internal/repository"
	"github.com/digkill/TGFaceSwapBot/internal/service"
	"github.com/digkill/TGFaceSwapBot/internal/session"
	"github.com/digkill/TGFaceSwapBot/internal/telegram"
	"github.com/digkill/TGFaceSwapBot/pkg/logger"
)

type usageStore interface {
	ratelimit.Store
	service.ActivityCounter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogEncoding)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	checks := []admin.HealthCheck{{Name: "mysql", Check: db.PingContext}}
	usage, check, err := newUsageStore(ctx, cfg, db)
	if err != nil {
		log.Fatalf("usage store: %v", err)
	}
	if check != nil {
		checks = append(checks, *check)
	}

	faceDetector, err := newDetector(cfg, logr)
	if err != nil {
		log.Fatalf("detector: %v", err)
	}
	policy, err := faceswap.ParsePolicy(cfg.FaceSelection)
	if err != nil {
		log.Fatalf("face selection: %v", err)
	}
	interp, err := faceswap.ParseInterpolation(cfg.ResizeInterpolation)
	if err != nil {
		log.Fatalf("resize interpolation: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	clock := clockwork.NewRealClock()
	userRepo := repository.NewUserRepository(db)
	swapRepo := repository.NewSwapRepository(db)

	limiter := ratelimit.NewLimiter(usage, clock, cfg.DailySwapLimit)
	sessions := session.NewTracker(clock, cfg.SessionTTL)
	engine := faceswap.NewEngine(faceDetector, policy, interp)
	sender := telegram.NewSender(botAPI)

	userService := service.NewUserService(userRepo)
	swapService := service.NewSwapService(logr, limiter, sessions, engine, swapRepo, cfg.JPEGQuality, cfg.MaxImagePixels)
	statsService := service.NewStatsService(userRepo, usage, swapRepo, clock)
	broadcastService := service.NewBroadcastService(logr, userService, sender)

	bot := telegram.NewBot(cfg, botAPI, logr, userService, swapService, limiter, broadcastService, statsService, sender)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, broadcastService, statsService, checks...)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	logr.Info("face swap bot starting",
		"usage_backend", cfg.UsageBackend,
		"detector_backend", cfg.DetectorBackend,
		"face_selection", policy.String(),
	)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}

func newUsageStore(ctx context.Context, cfg config.Config, db *sql.DB) (usageStore, *admin.HealthCheck, error) {
	switch cfg.UsageBackend {
	case config.UsageBackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		check := &admin.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}}
		return redis.NewUsageStore(rdb), check, nil
	case config.UsageBackendMemory:
		return ratelimit.NewMemoryStore(), nil, nil
	default:
		return repository.NewUsageRepository(db), nil, nil
	}
}

func newDetector(cfg config.Config, logr *slog.Logger) (faceswap.Detector, error) {
	if cfg.DetectorBackend == config.DetectorBackendPigo {
		p, err := detector.NewPigo(cfg.PigoCascadePath, cfg.PigoMinFaceSize)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return detector.NewHTTPClient(cfg.DetectorURL, cfg.DetectorAPIKey, cfg.RequestTimeout, logr), nil
}
