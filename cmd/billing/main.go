package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/wealthops/advisorybilling/internal/billing/application"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"github.com/wealthops/advisorybilling/internal/billing/infrastructure/messaging"
	memoryrepo "github.com/wealthops/advisorybilling/internal/billing/infrastructure/persistence/memory"
	mysqlrepo "github.com/wealthops/advisorybilling/internal/billing/infrastructure/persistence/mysql"
	billinghttp "github.com/wealthops/advisorybilling/internal/billing/interfaces/http"
	"github.com/wealthops/advisorybilling/pkg/config"
	"github.com/wealthops/advisorybilling/pkg/logger"
	"github.com/wealthops/advisorybilling/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/billing.toml", "path to config file")
	seed := flag.Bool("seed", false, "register default fee schedules and client on startup")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Logger
	slogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	// 3. Repositories：默认内存注册表，开启数据库后切换持久化实现，
	// 计算算法不感知差异
	var scheduleRepo domain.ScheduleRepository
	var clientRepo domain.ClientRepository
	if cfg.Database.Enabled {
		db, err := gorm.Open(mysql.Open(cfg.Database.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("failed to access database pool: %v", err)
		}
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

		if err := db.AutoMigrate(&mysqlrepo.FeeScheduleModel{}, &mysqlrepo.ClientModel{}); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		scheduleRepo = mysqlrepo.NewScheduleRepository(db)
		clientRepo = mysqlrepo.NewClientRepository(db)
	} else {
		scheduleRepo = memoryrepo.NewScheduleRepository()
		clientRepo = memoryrepo.NewClientRepository()
	}

	// 4. Messaging
	var publisher messaging.EventPublisher = messaging.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// 5. Layers
	m := metrics.New("billing")
	engine := domain.NewEngine(scheduleRepo, clientRepo)
	app := application.NewBillingService(engine, publisher, m, slogger)
	handler := billinghttp.NewBillingHandler(app)

	if *seed {
		if err := app.SeedDefaults(context.Background()); err != nil {
			log.Fatalf("failed to seed defaults: %v", err)
		}
	}

	// 6. HTTP server
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), m.GinMiddleware())
	handler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		slogger.Info("server started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slogger.Error("forced shutdown", "error", err)
	}
}
