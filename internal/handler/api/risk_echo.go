package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	icache "RiskPulse/internal/service/cache"
	metricsvc "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// Error codes returned by the risk API.
const (
	CodeEmptyInput          = "ERR_EMPTY_INPUT"
	CodeInsufficientHistory = "ERR_INSUFFICIENT_HISTORY"
	CodeModelNotTrained     = "ERR_MODEL_NOT_TRAINED"
	CodeMalformedInput      = "ERR_MALFORMED_INPUT"
	CodeTrainingInProgress  = "ERR_TRAINING_IN_PROGRESS"
	CodeInternal            = "ERR_INTERNAL"
)

// RateLimit is a token bucket setting applied per client and route.
type RateLimit struct {
	Capacity   float64
	RefillRate float64
}

// CacheTTL sets how long trend and anomaly responses are reused.
type CacheTTL struct {
	Trends    time.Duration
	Anomalies time.Duration
}

// RiskEchoHandler serves the risk analytics API.
type RiskEchoHandler struct {
	logger    *xlogger.Logger
	analytics *usecase.RiskAnalytics
	overview  *usecase.OverviewUseCase
	trainer   *usecase.ModelTrainer
	scheduler *usecase.TrainScheduler

	cache icache.BytesCache
	ttl   CacheTTL
	rl    *ratelimit.Limiter
	limit RateLimit
}

func NewRiskEchoHandler(
	logger *xlogger.Logger,
	analytics *usecase.RiskAnalytics,
	overview *usecase.OverviewUseCase,
	trainer *usecase.ModelTrainer,
	scheduler *usecase.TrainScheduler,
) *RiskEchoHandler {
	metricsvc.Register()
	return &RiskEchoHandler{
		logger:    logger,
		analytics: analytics,
		overview:  overview,
		trainer:   trainer,
		scheduler: scheduler,
		rl:        ratelimit.New(),
		limit:     RateLimit{Capacity: 10, RefillRate: 1},
	}
}

// SetCache enables response caching for trends and anomalies.
func (h *RiskEchoHandler) SetCache(c icache.BytesCache, ttl CacheTTL) {
	h.cache = c
	h.ttl = ttl
}

// SetRateLimit overrides the predict/train rate limit.
func (h *RiskEchoHandler) SetRateLimit(l RateLimit) {
	if l.Capacity > 0 && l.RefillRate > 0 {
		h.limit = l
	}
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/risk")
	g.GET("/forecast", h.Forecast)
	g.GET("/trends", h.Trends)
	g.GET("/anomalies", h.Anomalies)
	g.GET("/overview", h.Overview)
	g.GET("/models", h.Models)
	g.POST("/predict", h.Predict, h.rateLimited("predict"))
	g.POST("/train", h.Train, h.rateLimited("train"))
}

func (h *RiskEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analytics.Forecast(c.Request().Context(), usecase.ForecastParams{
		Days:          req.Days,
		IncludeTrends: req.IncludeTrends == "true",
	})
	if err != nil {
		return h.fail(c, "forecast", start, err)
	}
	metricsvc.Observe("forecast", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Trends(c echo.Context) error {
	start := time.Now()
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	metrics, err := usecase.ParseMetrics(req.Metrics)
	if err != nil {
		return h.fail(c, "trends", start, err)
	}
	w := h.window(req.StartDate, req.EndDate, h.analytics.Lookbacks().Trends)

	key := fmt.Sprintf("trends:%d:%d:%s", w.From.Unix(), w.To.Unix(), strings.Join(metricNames(metrics), ","))
	res, hit, err := icache.Fetch(h.cache, key, h.ttl.Trends, func() (*models.TrendSummary, error) {
		return h.analytics.Trends(c.Request().Context(), usecase.TrendParams{Window: w, Metrics: metrics})
	})
	if err != nil {
		return h.fail(c, "trends", start, err)
	}
	h.observeHit("trends", hit)
	metricsvc.Observe("trends", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Anomalies(c echo.Context) error {
	start := time.Now()
	req := &models.AnomalyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	w := h.window(req.StartDate, req.EndDate, h.analytics.Lookbacks().Anomalies)

	key := fmt.Sprintf("anomalies:%d:%d:%g", w.From.Unix(), w.To.Unix(), req.Threshold)
	res, hit, err := icache.Fetch(h.cache, key, h.ttl.Anomalies, func() (*models.AnomalySummary, error) {
		return h.analytics.Anomalies(c.Request().Context(), usecase.AnomalyParams{Window: w, Threshold: req.Threshold})
	})
	if err != nil {
		return h.fail(c, "anomalies", start, err)
	}
	h.observeHit("anomalies", hit)
	metricsvc.Observe("anomalies", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Predict(c echo.Context) error {
	start := time.Now()
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analytics.PredictTransaction(c.Request().Context(), usecase.PredictParams{
		Amount:      decimal.NewFromFloat(req.Amount),
		Hour:        req.Hour,
		DayOfWeek:   req.DayOfWeek,
		Description: req.Description,
	})
	if err != nil {
		return h.fail(c, "predict", start, err)
	}
	metricsvc.Observe("predict", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Overview(c echo.Context) error {
	start := time.Now()
	req := &models.OverviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.overview.GetOverview(c.Request().Context(), usecase.OverviewParams{Days: req.Days})
	if err != nil {
		return h.fail(c, "overview", start, err)
	}
	metricsvc.Observe("overview", start, "")
	return xhttp.SuccessResponse(c, res)
}

// modelsResponse describes the installed model set.
type modelsResponse struct {
	Trained   bool                    `json:"trained"`
	Summary   *models.TrainingSummary `json:"summary,omitempty"`
	LastError string                  `json:"last_error,omitempty"`
}

func (h *RiskEchoHandler) Models(c echo.Context) error {
	res := modelsResponse{LastError: h.trainer.LastError()}
	if s, ok := h.trainer.LastSummary(); ok {
		res.Trained = true
		res.Summary = &s
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RiskEchoHandler) Train(c echo.Context) error {
	start := time.Now()
	if err := h.scheduler.RequestTraining(c.Request().Context(), "api"); err != nil {
		return h.fail(c, "train", start, err)
	}
	metricsvc.Observe("train", start, "")
	return xhttp.AcceptedResponse(c, map[string]string{"status": "queued"})
}

func (h *RiskEchoHandler) rateLimited(route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !h.rl.Allow(c.RealIP()+":"+route, h.limit.Capacity, h.limit.RefillRate) {
				h.logger.Warn("risk api rate limited",
					xlogger.String("route", route),
					xlogger.String("remote", c.RealIP()),
				)
				metricsvc.Observe(route, time.Now(), "ERR_RATE_LIMITED")
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}

// window resolves optional bounds against a clock truncated to the minute,
// so default windows share cache keys within that minute.
func (h *RiskEchoHandler) window(from, to string, def time.Duration) domrepo.Window {
	now := h.analytics.Now().Truncate(time.Minute)
	return domrepo.NormalizeWindow(from, to, def, now)
}

func (h *RiskEchoHandler) observeHit(endpoint string, hit bool) {
	if hit {
		metricsvc.CacheHits.WithLabelValues(endpoint).Inc()
	}
}

func (h *RiskEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := ToAppError(err)
	metricsvc.Observe(endpoint, start, appErr.Code)
	if appErr.Code == CodeInternal {
		h.logger.Error("risk api error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	} else {
		h.logger.Debug("risk api rejected", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// ToAppError maps domain errors to API errors.
func ToAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, models.ErrEmptyInput):
		return xhttp.NotFoundError(CodeEmptyInput, "no transactions in the requested window").WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.UnprocessableError(CodeInsufficientHistory, err.Error()).WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.ConflictError(CodeModelNotTrained, "models are not trained yet").WithError(err)
	case errors.Is(err, usecase.ErrTrainingInProgress):
		return xhttp.ConflictError(CodeTrainingInProgress, err.Error()).WithError(err)
	case errors.Is(err, models.ErrMalformedInput):
		return xhttp.BadRequestError(CodeMalformedInput, err.Error()).WithError(err)
	default:
		return xhttp.InternalError(CodeInternal, "internal error").WithError(err)
	}
}

func metricNames(ms []models.Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}
