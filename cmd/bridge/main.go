package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"broker-bridgev1/config"
	"broker-bridgev1/internal/api"
	"broker-bridgev1/internal/catalog"
	"broker-bridgev1/internal/gateway"
	"broker-bridgev1/internal/logger"
	"broker-bridgev1/internal/metrics"
	"broker-bridgev1/internal/netinfo"
	"broker-bridgev1/internal/notify"
	"broker-bridgev1/internal/orders"
	"broker-bridgev1/internal/session"
	sqlitestore "broker-bridgev1/internal/store/sqlite"
	"broker-bridgev1/pkg/mofsl"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[bridge] starting...")

	// ---- Load config from env ----
	cfg := config.Load()
	preload := cfg.ParseExchanges()

	logger.Init("broker-bridge", slog.LevelInfo)

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus(cfg.RedisAddr != "", cfg.SQLitePath != "")
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Scrip-master snapshot cache (optional) ----
	var snaps *sqlitestore.SnapshotStore
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		var err error
		snaps, err = sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("[bridge] sqlite init failed: %v", err)
		}
		defer snaps.Close()
		log.Println("[bridge] scrip snapshot store ready")
	}

	// ---- Order event gateway (optional) ----
	var (
		rdb       *goredis.Client
		publisher *gateway.Publisher
		hub       *gateway.Hub
	)
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[bridge] WARNING: redis unreachable: %v (continuing without order stream)", err)
			rdb.Close()
			rdb = nil
		} else {
			publisher = gateway.NewPublisher(rdb)
			hub = gateway.NewHub(rdb)
			go hub.Run(ctx)
			log.Println("[bridge] order event gateway ready")
		}
	}

	// ---- Periodic liveness checks ----
	var snapDB *sql.DB
	if snaps != nil {
		snapDB = snaps.DB()
	}
	health.StartLivenessChecker(ctx, rdb, snapDB, 10*time.Second)

	// ---- Broker transport ----
	localIP := netinfo.LocalIP()
	publicIP := netinfo.PublicIP()
	mac := netinfo.MACAddress()
	log.Printf("[bridge] device fingerprint: local=%s public=%s mac=%s", localIP, publicIP, mac)

	client := mofsl.NewClient(mofsl.Config{
		BaseURL:        cfg.BrokerBaseURL,
		Timeout:        cfg.BrokerTimeout,
		ClientLocalIP:  localIP,
		ClientPublicIP: publicIP,
		MACAddress:     mac,
		Observe:        prom.ObserveBroker,
	})

	// ---- Core services ----
	cat := catalog.New(client, snaps)
	mgr := session.NewManager(client, session.NewRegistry())

	// ---- Order event sinks ----
	var sinks orders.Publishers
	if publisher != nil {
		sinks = append(sinks, publisher)
	}
	var notifiers []notify.Notifier
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(notifiers) > 0 {
		sinks = append(sinks, notify.NewOrderAlerter(notifiers...))
		log.Printf("[bridge] %d alert channel(s) configured", len(notifiers))
	}

	var events orders.EventPublisher
	if len(sinks) > 0 {
		events = sinks
	}
	trans := orders.NewTranslator(client, cat, events)

	// ---- Warm the instrument catalog ----
	go func() {
		loadCtx, loadCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer loadCancel()
		cat.Load(loadCtx, preload...)
		log.Printf("[bridge] catalog preloaded: %v", cat.TableSizes())
	}()

	// ---- Gauge refresher ----
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.LiveSessions.Set(float64(mgr.Registry().Count()))
				if hub != nil {
					prom.WSClients.Set(float64(hub.ClientCount()))
				}
				for exc, rows := range cat.TableSizes() {
					prom.CatalogRows.WithLabelValues(exc).Set(float64(rows))
				}
			}
		}
	}()

	// ---- HTTP surface ----
	router := api.NewRouter(&api.Handlers{
		Sessions: mgr,
		Orders:   trans,
		Catalog:  cat,
		Hub:      hub,
		Metrics:  prom,
		Preload:  preload,
	})
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		log.Printf("[bridge] listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[bridge] http server failed: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[bridge] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if rdb != nil {
		rdb.Close()
	}

	log.Println("[bridge] shutdown complete.")
}
