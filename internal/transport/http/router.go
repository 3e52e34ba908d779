package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/coin-wallet/internal/config"
	"github.com/richardliu001/coin-wallet/internal/metrics"
	"github.com/richardliu001/coin-wallet/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.WalletService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("")
	api.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(api, svc)
	RegisterAdminHandlers(api, svc)
	return r
}
