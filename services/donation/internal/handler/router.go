package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/pet-adoption/pkg/metrics"
	"example.com/pet-adoption/services/donation/internal/middleware"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация HTTP роутера Donation Service.
type Router struct {
	engine          *gin.Engine
	donationHandler *DonationHandler
	webhookHandler  *WebhookHandler
	authMW          *middleware.AuthMiddleware
	rateLimitMW     *middleware.RateLimitMiddleware
	tracingMW       *middleware.TracingMiddleware
	readinessCheck  ReadinessChecker // опциональная проверка готовности
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	DonationHandler *DonationHandler
	WebhookHandler  *WebhookHandler
	AuthMW          *middleware.AuthMiddleware
	RateLimitMW     *middleware.RateLimitMiddleware
	TracingMW       *middleware.TracingMiddleware
	ReadinessCheck  ReadinessChecker // опциональная проверка готовности для /readyz
	Debug           bool             // Режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Стандартные middleware Gin
	engine.Use(gin.Recovery())

	// CORS — обработка cross-origin запросов
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Security headers — защита от clickjacking, MIME-sniffing, XSS
	engine.Use(middleware.SecurityHeaders())

	// OpenTelemetry tracing — создаёт spans для Jaeger
	engine.Use(otelgin.Middleware("donation"))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware("donation"))

	r := &Router{
		engine:          engine,
		donationHandler: cfg.DonationHandler,
		webhookHandler:  cfg.WebhookHandler,
		authMW:          cfg.AuthMW,
		rateLimitMW:     cfg.RateLimitMW,
		tracingMW:       cfg.TracingMW,
		readinessCheck:  cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	// Глобальные middleware
	if r.tracingMW != nil {
		r.engine.Use(r.tracingMW.Handle())
	}

	// Health endpoints (без rate limiting и auth)
	r.engine.GET("/health", r.healthCheck)           // legacy, оставлен для совместимости
	r.engine.GET("/healthz", r.livenessCheck)        // k3s liveness probe
	r.engine.GET("/readyz", r.readinessCheckHandler) // k3s readiness probe

	// API v1
	v1 := r.engine.Group("/api/v1")

	// === Webhook (без auth и rate limiting) ===
	// Аутентификация — подпись шлюза; rate limiting ломал бы ретраи доставки.
	if r.webhookHandler != nil {
		v1.POST("/webhooks/payment", r.webhookHandler.Handle)
	}

	// === Donation routes (защищённые) ===
	donations := v1.Group("/donations")
	if r.rateLimitMW != nil {
		donations.Use(r.rateLimitMW.Handle())
	}
	if r.authMW != nil {
		donations.Use(r.authMW.Handle())
	}
	{
		donations.POST("/intent", r.donationHandler.CreateIntent)
		donations.POST("/confirm", r.donationHandler.Confirm)
		donations.GET("", r.donationHandler.List)
		donations.GET("/:id", r.donationHandler.GetByID)
		donations.GET("/intent/:intent_id", r.donationHandler.GetByIntentID)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// healthCheck — базовая проверка живости (legacy endpoint).
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "donation"})
}

// livenessCheck — liveness probe: процесс жив и обрабатывает запросы.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — readiness probe: проверяет зависимости (MySQL, Redis).
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
