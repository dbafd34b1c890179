package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/activity"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/auth"
	"github.com/Skotchmaster/marketfeed/internal/backup"
	"github.com/Skotchmaster/marketfeed/internal/catalog"
	"github.com/Skotchmaster/marketfeed/internal/config"
	"github.com/Skotchmaster/marketfeed/internal/feed"
	"github.com/Skotchmaster/marketfeed/internal/httpserver"
	"github.com/Skotchmaster/marketfeed/internal/ledger"
	"github.com/Skotchmaster/marketfeed/internal/messages"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/mykafka"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/internal/people"
	"github.com/Skotchmaster/marketfeed/internal/search"
	"github.com/Skotchmaster/marketfeed/internal/settings"
	"github.com/Skotchmaster/marketfeed/internal/support"
	"github.com/Skotchmaster/marketfeed/internal/wallet"
	"github.com/Skotchmaster/marketfeed/pkg/db"
	"github.com/Skotchmaster/marketfeed/pkg/lock"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/metrics"
	authmw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
	"github.com/Skotchmaster/marketfeed/pkg/middleware/csrf"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("notice: .env not loaded: %v, using the process environment", err)
	}
	cfg := config.MustLoad()
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if cfg.AutoMigrate {
		if err := gdb.AutoMigrate(models.All()...); err != nil {
			log.Fatalf("auto migrate: %v", err)
		}
	}

	m := metrics.New()
	logs := activity.New(activity.DefaultCapacity)

	var dl lock.DistributedLock = lock.Nop{}
	if cfg.RedisAddr != "" {
		rdb, err := lock.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		dl = lock.NewRedisLock(rdb)
	}

	var (
		producer  *mykafka.Producer
		publisher notify.Publisher = notify.LogPublisher{Log: logger}
		sink      backup.Sink      = backup.FileSink{Dir: cfg.BackupDir}
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		publisher = &notify.KafkaPublisher{Producer: producer, Topic: cfg.KafkaNotifyTopic}
		sink = backup.Multi{sink, backup.KafkaSink{Producer: producer, Topic: cfg.KafkaBackupTopic}}
	}

	notifier := notify.NewNotifier(publisher, cfg.NotifyBuffer, logger, m)
	go notifier.Run(context.Background())

	arch := &archive.ArchiveService{
		Store:   archive.NewFileStore(cfg.ArchivePath, dl, cfg.ArchiveLockTTL),
		Snap:    &archive.Snapshotter{DB: gdb},
		Purger:  archive.NewPurger(gdb),
		Metrics: m,
	}

	exporter := &backup.Exporter{DB: gdb, Archive: arch, PrimaryAdmin: cfg.PrimaryAdmin}
	queue := backup.NewQueue(exporter, sink, logger, m)
	var scheduler *backup.Scheduler
	if cfg.BackupCron != "" {
		scheduler, err = backup.NewScheduler(cfg.BackupCron, queue, dl, logger)
		if err != nil {
			log.Fatalf("backup scheduler: %v", err)
		}
		scheduler.Start()
	}

	cat := &catalog.CatalogService{Repo: &catalog.GormRepo{DB: gdb}, Archive: arch, PrimaryAdminEmail: cfg.PrimaryAdmin}
	var searchSvc *search.SearchService
	if len(cfg.ESAddrs) > 0 {
		esCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := search.Connect(esCtx, search.ClientConfig{Addresses: cfg.ESAddrs, Username: cfg.ESUsername, Password: cfg.ESPassword}, logger)
		if err == nil {
			ix := &search.Index{Client: client, Name: cfg.ESIndex}
			if err = ix.Ensure(esCtx); err == nil {
				cat.Index = ix
				searchSvc = &search.SearchService{Index: ix, Catalog: cat}
			}
		}
		cancel()
		if err != nil {
			logger.Warn("search_disabled", "error", err)
		}
	}

	authSvc := &auth.AuthService{Repo: &auth.GormRepo{DB: gdb}, JWTSecret: cfg.JWTSecret, AccessTTL: cfg.AccessTTL, Activity: logs}
	led := &ledger.LedgerService{Repo: &ledger.GormRepo{DB: gdb}, Backup: queue, Metrics: m}
	wal := &wallet.WalletService{Repo: &wallet.GormRepo{DB: gdb}, Archive: arch, Notifier: notifier}
	ppl := &people.PeopleService{DB: gdb, Archive: arch, PrimaryAdminEmail: cfg.PrimaryAdmin}
	set := settings.NewSettingsService(gdb, cfg.SettingsTTL)
	nots := &notify.NotificationService{Repo: &notify.GormRepo{DB: gdb}, Notifier: notifier, Retention: cfg.NotifyKeep}
	posts := &feed.FeedService{Repo: &feed.GormRepo{DB: gdb}, Archive: arch, Notifier: notifier, PrimaryAdminEmail: cfg.PrimaryAdmin}

	e := httpserver.New(logger, logs, m)
	httpserver.Register(e, &httpserver.Deps{
		Auth:          &httpserver.AuthHTTP{Svc: authSvc, SecureCookie: cfg.CookieSecure},
		Products:      &httpserver.ProductHTTP{Catalog: cat, Ledger: led},
		Posts:         &httpserver.PostHTTP{Svc: posts},
		Users:         &httpserver.UserHTTP{Svc: ppl},
		Wallet:        &httpserver.WalletHTTP{Svc: wal, Auth: authSvc},
		Settings:      &httpserver.SettingsHTTP{Svc: set},
		Notifications: &httpserver.NotificationHTTP{Svc: nots},
		Support:       &httpserver.SupportHTTP{Svc: &support.SupportService{DB: gdb, Notifier: notifier, InboxUserID: cfg.SupportInbox}},
		Messages:      &httpserver.MessageHTTP{Svc: &messages.MessageService{DB: gdb, Notifier: notifier}},
		Search:        &httpserver.SearchHTTP{Svc: searchSvc},
		Admin: &httpserver.AdminHTTP{
			Ledger:        led,
			Wallet:        wal,
			Catalog:       cat,
			People:        ppl,
			Settings:      set,
			Notifications: nots,
			Archive:       arch,
			Backup:        queue,
			Exporter:      exporter,
			Activity:      logs,
		},
		AuthMw:         authmw.NewAuthMiddleware(cfg.JWTSecret, authSvc),
		Metrics:        m,
		CSRF:           csrf.Middleware(csrf.Config{Secure: cfg.CookieSecure, SkipPaths: []string{"/auth/login", "/auth/register"}}),
		RequestTimeout: cfg.RequestTimeout,
		Ready:          ping(gdb),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := queue.Close(ctx); err != nil {
		logger.Error("backup_queue_close_error", "error", err)
	}
	if err := notifier.Close(ctx); err != nil {
		logger.Error("notifier_close_error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_error", "error", err)
		}
	}
	logger.Info("shutdown_complete")
}

func ping(gdb *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
