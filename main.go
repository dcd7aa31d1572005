package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-restaurant-ordering/checkout"
	"go-restaurant-ordering/config"
	"go-restaurant-ordering/controllers"
	"go-restaurant-ordering/database"
	"go-restaurant-ordering/delivery"
	"go-restaurant-ordering/gateway"
	"go-restaurant-ordering/helpers"
	"go-restaurant-ordering/logger"
	"go-restaurant-ordering/metrics"
	"go-restaurant-ordering/notify"
	"go-restaurant-ordering/routes"
	"go-restaurant-ordering/session"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env", ".")
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	var (
		gw            gateway.OrderGateway
		notifications interface {
			notify.NotificationStore
			controllers.NotificationLister
		}
	)
	if cfg.MongoURI != "" {
		client, err := database.DBinstance(ctx, cfg.MongoURI, log)
		if err != nil {
			log.Fatal("connect mongo", zap.Error(err))
		}
		defer client.Disconnect(context.Background())
		mongoGW := gateway.NewMongoGateway(client, cfg.MongoDB)
		if err := mongoGW.EnsureIndexes(ctx); err != nil {
			log.Fatal("ensure indexes", zap.Error(err))
		}
		gw = mongoGW
		notifications = notify.NewMongoNotificationStore(client, cfg.MongoDB)
	} else {
		log.Warn("MONGO_URI not set, keeping carts and orders in memory")
		gw = gateway.NewMemoryGateway()
		notifications = notify.NewMemoryNotificationStore()
	}

	estOpts := delivery.Options{
		Branches: cfg.Branches,
		Pricing: delivery.Pricing{
			Base:     cfg.BaseFee,
			PerKm:    cfg.PerKmFee,
			Fallback: cfg.FallbackFee,
			Max:      cfg.MaxFee,
		},
		Timeout: cfg.RouteTimeout,
		Logger:  log,
		Metrics: m,
	}
	if cfg.RouteURL != "" {
		estOpts.Provider = delivery.NewHTTPRouteProvider(cfg.RouteURL, cfg.RouteAPIKey)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, quoting without cache", zap.Error(err))
		} else {
			estOpts.Cache = delivery.NewRedisQuoteCache(rdb, cfg.QuoteCacheTTL)
		}
	}
	estimator := delivery.NewEstimator(estOpts)

	hub := notify.NewHub(log)
	targets := []notify.Target{
		notify.NewAdminTarget(notifications, hub),
		notify.NewCustomerTarget(notifications, hub),
	}
	if cfg.SMSURL != "" {
		targets = append(targets, notify.NewSMSTarget(notify.NewHTTPSMSSender(cfg.SMSURL, cfg.SMSAPIKey, cfg.SMSFrom)))
	} else {
		log.Warn("SMS_URL not set, order confirmations will not be texted")
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		targets = append(targets, notify.NewEventTarget(writer))
	}

	sessions := session.NewManager(session.Options{
		Gateway:   gw,
		Estimator: estimator,
		Publisher: hub,
		Window:    cfg.DebounceWindow,
		Settle:    cfg.AddressSettle,
		Logger:    log,
		Metrics:   m,
	})
	go sessions.Run(ctx)

	orch := checkout.NewOrchestrator(checkout.Options{
		Gateway:   gw,
		Fanout:    notify.NewFanout(cfg.NotificationTimeout, log, m),
		Targets:   targets,
		Publisher: hub,
		Logger:    log,
		Metrics:   m,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"POST", "GET", "PATCH", "DELETE", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.Register(router, routes.Deps{
		Tokens:        helpers.NewTokenHelper(cfg.SecretKey),
		Sessions:      sessions,
		Gateway:       gw,
		Checkout:      orch,
		Hub:           hub,
		WSOrigins:     cfg.CORSOrigins,
		Notifications: notifications,
		Metrics:       metrics.Handler(),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	sessions.Shutdown(shutdownCtx)
}
