package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/svdberg/atwood-monitor/app/api"
	"github.com/svdberg/atwood-monitor/app/broker"
	"github.com/svdberg/atwood-monitor/app/cache"
	"github.com/svdberg/atwood-monitor/app/cfg"
	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/feed"
	"github.com/svdberg/atwood-monitor/app/mail"
	"github.com/svdberg/atwood-monitor/app/metrics"
	"github.com/svdberg/atwood-monitor/app/monitor"
	"github.com/svdberg/atwood-monitor/app/notify"
	"github.com/svdberg/atwood-monitor/app/push"
	"github.com/svdberg/atwood-monitor/app/subscribers"
	"github.com/svdberg/atwood-monitor/app/tasks"
)

// pushMessageTTL is how long (seconds) a push service keeps an undelivered
// message. Zero means deliver now or drop.
const pushMessageTTL = 0

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	switch appCfg.Command {
	case cfg.CommandVAPIDKeys:
		if err := printVAPIDKeys(); err != nil {
			slog.Error("Failed to generate VAPID keys", "error", err)
			os.Exit(1)
		}
	case cfg.CommandCheck:
		if err := runCheck(appCfg); err != nil {
			slog.Error("Feed check failed", "error", err)
			os.Exit(1)
		}
	default:
		if err := runServe(appCfg); err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func printVAPIDKeys() error {
	publicKey, privateKey, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
	return nil
}

type stores struct {
	items  database.ItemRepository
	emails database.EmailRepository
	pushes database.PushRepository
	close  func() error
}

func openStores(ctx context.Context, appCfg *cfg.Cfg) (*stores, error) {
	if appCfg.Store == cfg.StoreRedis {
		client, err := cache.NewClient(ctx, appCfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return &stores{
			items:  cache.NewItemRepository(client),
			emails: cache.NewEmailRepository(client),
			pushes: cache.NewPushRepository(client),
			close:  client.Close,
		}, nil
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Database schema ready", "path", appCfg.DBPath, "version", version, "dirty", dirty)

	return &stores{
		items:  database.NewItemRepository(db),
		emails: database.NewEmailRepository(db),
		pushes: database.NewPushRepository(db),
		close:  db.Close,
	}, nil
}

// components is everything both serve and check need.
type components struct {
	stores   *stores
	bus      broker.Bus
	detector *monitor.Detector
	engine   *push.Engine
	mailer   mail.Mailer
	registry *prometheus.Registry
}

func build(ctx context.Context, appCfg *cfg.Cfg) (*components, error) {
	monitorCfg, err := feed.LoadMonitorConfig(appCfg.MonitorConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitor configuration: %w", err)
	}

	st, err := openStores(ctx, appCfg)
	if err != nil {
		return nil, err
	}

	var bus broker.Bus = broker.NewMemoryBus()
	if appCfg.Broker == cfg.BrokerKafka {
		bus = broker.NewKafkaBus(appCfg.KafkaBrokers, appCfg.KafkaGroup)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, monitorCfg.Feed.GetTimeout())
	publisher := notify.NewPublisher(bus, monitorCfg.Notification.Title,
		broker.TopicNotifications, broker.TopicWebNotifications)

	detector, err := monitor.NewDetector(monitorCfg, fetcher, st.items, publisher)
	if err != nil {
		st.close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := metrics.NewPrometheusSink(registry, appCfg.Environment)

	if appCfg.VAPIDPublicKey == "" || appCfg.VAPIDPrivateKey == "" {
		slog.Warn("VAPID keys not configured, web push deliveries will fail")
	}
	sender := push.NewWebPushSender(appCfg.VAPIDPublicKey, appCfg.VAPIDPrivateKey, appCfg.VAPIDSubject, pushMessageTTL, httpClient)
	engine := push.NewEngine(st.pushes, sender, sink, push.Options{
		Concurrency: appCfg.PushConcurrency,
		Fallback: push.Fallback{
			Title: monitorCfg.Notification.FallbackTitle,
			Body:  monitorCfg.Notification.FallbackBody,
			URL:   monitorCfg.Notification.FallbackURL,
		},
	})

	var mailer mail.Mailer = mail.LogRelay{}
	if appCfg.SMTPAddr != "" {
		mailer = mail.NewRelay(appCfg.SMTPAddr, appCfg.SMTPUser, appCfg.SMTPPassword, appCfg.MailFrom, st.emails)
	} else {
		slog.Warn("SMTP not configured, email notifications are disabled")
	}

	return &components{
		stores:   st,
		bus:      bus,
		detector: detector,
		engine:   engine,
		mailer:   mailer,
		registry: registry,
	}, nil
}

// subscribe wires both fan-out topics to their consumers.
func (c *components) subscribe(scheduler tasks.TaskSchedulerInterface) {
	c.bus.Subscribe(broker.TopicNotifications, func(ctx context.Context, payload []byte) error {
		return scheduler.RunTask(ctx, tasks.NewRelayEmailTask(payload, c.mailer))
	})
	c.bus.Subscribe(broker.TopicWebNotifications, func(ctx context.Context, payload []byte) error {
		return scheduler.RunTask(ctx, tasks.NewDeliverPushTask(payload, c.engine))
	})
}

func (c *components) close() {
	if err := c.bus.Close(); err != nil {
		slog.Warn("Failed to close message bus", "error", err)
	}
	if err := c.stores.close(); err != nil {
		slog.Warn("Failed to close store", "error", err)
	}
}

// runCheck performs one detection run and waits for its notifications to be
// handed off.
func runCheck(appCfg *cfg.Cfg) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := build(ctx, appCfg)
	if err != nil {
		return err
	}
	defer c.close()

	scheduler := tasks.NewScheduler(appCfg.Schedule, 1, nil, nil)
	defer scheduler.Stop()

	// With Kafka the running server's consumers deliver; a one-shot check
	// only publishes.
	if appCfg.Broker == cfg.BrokerMemory {
		c.subscribe(scheduler)
	}
	if err := c.bus.Start(ctx); err != nil {
		return err
	}

	return scheduler.RunTask(ctx, tasks.NewDetectTask(c.detector))
}

func runServe(appCfg *cfg.Cfg) error {
	slog.Info("Starting Atwood Monitor", "version", appCfg.Version, "store", appCfg.Store, "broker", appCfg.Broker, "environment", appCfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := build(ctx, appCfg)
	if err != nil {
		return err
	}
	defer c.close()

	scheduler := tasks.NewScheduler(appCfg.Schedule, appCfg.WorkerCount,
		func() tasks.TaskInterface { return tasks.NewDetectTask(c.detector) }, c.stores.pushes)

	c.subscribe(scheduler)
	if err := c.bus.Start(ctx); err != nil {
		return err
	}

	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler := api.NewHandler(c.stores.items, c.stores.emails, c.stores.pushes,
		subscribers.NewEmailRegistry(c.stores.emails, c.mailer),
		subscribers.NewPushRegistry(c.stores.pushes),
		appCfg.VAPIDPublicKey)
	router := api.NewServer(handler, appCfg.APIAccessKey, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}

	slog.Info("Atwood Monitor shutdown complete")
	return runErr
}
