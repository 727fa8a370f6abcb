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

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/hireline/recruiting-core/internal/config"
	"github.com/hireline/recruiting-core/internal/db"
	"github.com/hireline/recruiting-core/internal/dispatch"
	"github.com/hireline/recruiting-core/internal/httpapi"
	"github.com/hireline/recruiting-core/internal/logger"
	"github.com/hireline/recruiting-core/internal/messaging"
	"github.com/hireline/recruiting-core/internal/metrics"
	"github.com/hireline/recruiting-core/internal/model"
	"github.com/hireline/recruiting-core/internal/repository"
	"github.com/hireline/recruiting-core/internal/scheduler"
	"github.com/hireline/recruiting-core/internal/service"
)

func main() {
	// .env для локального запуска; в проде переменные приходят из окружения.
	_ = godotenv.Load()

	zlog, err := logger.InitLogger()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	// 1. Конфигурация из env.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Репозитории (реализации на GORM).
	slotRepo := repository.NewGormSlotRepository(gormDB)
	outboxRepo := repository.NewGormOutboxRepository(gormDB)
	logRepo := repository.NewGormNotificationLogRepository(gormDB)
	scheduleRepo := repository.NewGormScheduleRepository(gormDB)
	userRepo := repository.NewGormUserRepository(gormDB)
	candidateRepo := repository.NewGormCandidateRepository(gormDB)
	recruiterRepo := repository.NewGormRecruiterRepository(gormDB)
	cityRepo := repository.NewGormCityRepository(gormDB)

	// 5. Доменные сервисы.
	reservationSvc := service.NewReservationService(gormDB, zlog)
	calendarSvc := service.NewCalendarService(slotRepo, scheduleRepo, recruiterRepo, cityRepo, zlog)
	identitySvc := service.NewIdentityService(userRepo, candidateRepo)

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Пайплайн доставки: общий лимитер, отправитель и пул воркеров.
	limiter := rate.NewLimiter(rate.Limit(appCfg.RateLimitPerSec), 1)
	health := dispatch.NewHealth()
	sender := messaging.NewTelegramSender(appCfg.BotAPIURL, appCfg.BotToken, appCfg.SendTimeout)
	pool := dispatch.NewPool(dispatch.Config{
		Workers:      appCfg.WorkerCount,
		PollInterval: appCfg.PollInterval,
		RetryBase:    appCfg.RetryBase,
		RetryCap:     appCfg.RetryCap,
		MaxAttempts:  appCfg.MaxAttempts,
		ClaimLease:   appCfg.ClaimLease,
	}, outboxRepo, logRepo, sender, limiter, health, zlog)
	go pool.Run(ctx)

	// 7. Планировщик напоминаний.
	reminder := scheduler.NewReminder(gormDB, scheduler.WindowsFromOffsets(appCfg.ReminderOffsets), appCfg.PollInterval, zlog)
	go reminder.Run(ctx)

	// 8. HTTP API.
	api := httpapi.NewServer(reservationSvc, calendarSvc, identitySvc, outboxRepo, health, zlog)
	srv := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("recruiting core listening on %s", appCfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
