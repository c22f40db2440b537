package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownie44l1/braintumor-api/internal/handlers"
	"github.com/Brownie44l1/braintumor-api/internal/metrics"
	"github.com/Brownie44l1/braintumor-api/internal/middleware"
)

func SetupRoutes(h *handlers.Handler, origins []string, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger, m),
		middleware.Recovery(logger),
		middleware.CORS(origins),
	)

	r.GET("/ping", h.Ping)
	r.POST("/braintumor/predict", h.Predict)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
