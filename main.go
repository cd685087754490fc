package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"busway-cloud/internal/audit"
	"busway-cloud/internal/auth"
	"busway-cloud/internal/billing/application"
	billingrepo "busway-cloud/internal/billing/infrastructure/postgres"
	billinghttp "busway-cloud/internal/billing/interfaces"
	"busway-cloud/internal/gateway"
	"busway-cloud/internal/notify"
	"busway-cloud/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	policyCfg, err := application.LoadPolicyConfig()
	if err != nil {
		logger.Fatalf("billing policy error: %v", err)
	}

	dueRepo := billingrepo.NewDueRepository(db)
	waiverRepo := billingrepo.NewWaiverRepository(db)
	students := billingrepo.NewStudentReader(db)

	var notifier application.Notifier
	if cfg.NotifyWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatalf("notify channel error: %v", err)
		}
		feeNotifier, err := notify.NewFeeNotifier(channel, logger, notify.WithDedupeWindow(cfg.NotifyDedupeWindow))
		if err != nil {
			logger.Fatalf("fee notifier error: %v", err)
		}
		notifier = feeNotifier
	}

	gatewayClient, err := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret)
	if err != nil {
		logger.Fatalf("gateway client error: %v", err)
	}

	clock := application.SystemClock{}
	generationService, err := application.NewDueGenerationService(dueRepo, students, policyCfg, logger)
	if err != nil {
		logger.Fatalf("due generation service error: %v", err)
	}
	orderService, err := application.NewPaymentOrderService(dueRepo, students, orderCreator{client: gatewayClient}, policyCfg, clock)
	if err != nil {
		logger.Fatalf("payment order service error: %v", err)
	}
	reconcileService, err := application.NewReconcileService(dueRepo, students, notifier, policyCfg, []byte(cfg.GatewayKeySecret), clock, logger)
	if err != nil {
		logger.Fatalf("reconcile service error: %v", err)
	}
	waiverService, err := application.NewWaiverService(waiverRepo, dueRepo, students, notifier, clock, logger)
	if err != nil {
		logger.Fatalf("waiver service error: %v", err)
	}
	queryService, err := application.NewDueQueryService(dueRepo, students, policyCfg, clock)
	if err != nil {
		logger.Fatalf("due query service error: %v", err)
	}
	reminderService, err := application.NewReminderService(dueRepo, students, notifier, clock, logger)
	if err != nil {
		logger.Fatalf("reminder service error: %v", err)
	}
	if cfg.ReminderDailyAt != "" {
		scheduler := application.NewReminderScheduler(reminderService, cfg.ReminderDailyAt, logger)
		go scheduler.Start(context.Background())
	}

	paymentsHandler, err := billinghttp.NewPaymentsHandler(orderService, reconcileService, auditRepo)
	if err != nil {
		logger.Fatalf("payments handler error: %v", err)
	}
	duesHandler, err := billinghttp.NewDuesHandler(generationService, queryService, reconcileService, reminderService, auditRepo)
	if err != nil {
		logger.Fatalf("dues handler error: %v", err)
	}
	waiversHandler, err := billinghttp.NewWaiversHandler(waiverService, auditRepo)
	if err != nil {
		logger.Fatalf("waivers handler error: %v", err)
	}
	exportsHandler, err := billinghttp.NewExportsHandler(queryService)
	if err != nil {
		logger.Fatalf("exports handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics", "/api/v1/payments/webhook"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	webhookAuth := gateway.NewWebhookAuthMiddleware([]byte(cfg.GatewayWebhookSecret))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/payments/create-order", paymentsHandler)
	mux.Handle("/api/v1/payments/verify", paymentsHandler)
	mux.Handle("/api/v1/payments/webhook", webhookAuth.Wrap(paymentsHandler))
	mux.Handle("/api/v1/dues", duesHandler)
	mux.Handle("/api/v1/dues/", duesHandler)
	mux.Handle("/api/v1/notifications/send-reminders", duesHandler)
	mux.Handle("/api/v1/waivers", waiversHandler)
	mux.Handle("/api/v1/waivers/", waiversHandler)
	mux.Handle("/api/v1/exports/dues.csv", exportsHandler)
	mux.Handle("/api/v1/exports/dues.xlsx", exportsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	GatewayBaseURL       string
	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	JWTSecret            string
	NotifyWebhookURL     string
	NotifyDedupeWindow   time.Duration
	ReminderDailyAt      string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		GatewayBaseURL:       getenvDefault("GATEWAY_BASE_URL", ""),
		GatewayKeyID:         getenvDefault("GATEWAY_KEY_ID", ""),
		GatewayKeySecret:     getenvDefault("GATEWAY_KEY_SECRET", ""),
		GatewayWebhookSecret: getenvDefault("GATEWAY_WEBHOOK_SECRET", ""),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		NotifyWebhookURL:     getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		NotifyDedupeWindow:   getenvDuration("NOTIFY_DEDUP_WINDOW", 20*time.Hour),
		ReminderDailyAt:      getenvDefault("REMINDER_DAILY_AT", "09:00"),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.GatewayBaseURL == "" || cfg.GatewayKeyID == "" || cfg.GatewayKeySecret == "" {
		log.Fatal("GATEWAY_BASE_URL, GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required")
	}
	if cfg.GatewayWebhookSecret == "" {
		log.Fatal("GATEWAY_WEBHOOK_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ---- Adapters ----

type orderCreator struct {
	client *gateway.Client
}

func (c orderCreator) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (application.CreatedOrder, error) {
	order, err := c.client.CreateOrder(ctx, amountMinor, currency, receipt)
	if err != nil {
		return application.CreatedOrder{}, err
	}
	return application.CreatedOrder{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}
