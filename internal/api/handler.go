package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"demand-forecast-service/internal/forecast"
	"demand-forecast-service/internal/models"
	"demand-forecast-service/internal/service"
	"demand-forecast-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Handler contains HTTP handlers
type Handler struct {
	forecastService *service.ForecastService
	predictLimiter  *rate.Limiter
}

// NewHandler creates a new HTTP handler. predictRateLimit is requests per
// second on the predict route; zero disables limiting.
func NewHandler(forecastService *service.ForecastService, predictRateLimit float64) *Handler {
	var limiter *rate.Limiter
	if predictRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(predictRateLimit), int(predictRateLimit))
	}
	return &Handler{
		forecastService: forecastService,
		predictLimiter:  limiter,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/demand/predict", h.rateLimit(), h.predictDemand)
		v1.POST("/demand/train", h.trainModel)
		v1.GET("/demand/info", h.modelInfo)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when a trained artifact is live, so a
// fresh deployment stays out of rotation until it has trained or loaded one.
func (h *Handler) readinessCheck(c *gin.Context) {
	info := h.forecastService.Info()
	if !info.IsTrained {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "no model loaded",
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// predictDemand handles forecast requests
func (h *Handler) predictDemand(c *gin.Context) {
	var query models.PredictionQuery

	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.forecastService.Predict(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err, "Prediction failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

type trainRequest struct {
	ModelType string `json:"model_type"`
	Period    string `json:"period"`
}

// trainModel triggers a synchronous training run
func (h *Handler) trainModel(c *gin.Context) {
	var req trainRequest

	// Empty body means "train with configured defaults".
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.forecastService.Train(c.Request.Context(), req.ModelType, req.Period)
	if err != nil {
		h.writeError(c, err, "Training failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// modelInfo reports the live model status
func (h *Handler) modelInfo(c *gin.Context) {
	info := h.forecastService.Info()
	if artifact := h.forecastService.Artifact(); artifact != nil {
		info.Metrics = artifact.Metrics
		info.FeatureImportance = artifact.Importance
	}
	c.JSON(http.StatusOK, info)
}

// writeError maps domain errors to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	var validationErr *forecast.ValidationError
	var insufficientErr *forecast.InsufficientDataError
	var schemaErr *forecast.SchemaMismatchError

	switch {
	case errors.As(err, &validationErr):
		util.PredictionsFailedTotal.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   msg,
			"details": validationErr.Errors,
		})
	case errors.Is(err, forecast.ErrTrainingInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Training already in progress",
		})
	case errors.Is(err, forecast.ErrArtifactUnavailable):
		util.PredictionsFailedTotal.WithLabelValues("no_model").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "No trained model available",
			"details": "trigger training via POST /api/v1/demand/train first",
		})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": insufficientErr.Error(),
		})
	case errors.As(err, &schemaErr):
		util.GetLogger().Error("Feature schema mismatch serving request")
		util.PredictionsFailedTotal.WithLabelValues("schema_mismatch").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": schemaErr.Error(),
		})
	default:
		util.PredictionsFailedTotal.WithLabelValues("internal").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	}
}

// rateLimit sheds load on the predict route
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.predictLimiter != nil && !h.predictLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
