package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/coin-wallet/internal/service"
)

// RegisterAdminHandlers mounts the operator routes.
func RegisterAdminHandlers(r gin.IRouter, svc *service.WalletService) {
	a := r.Group("/v1/admin")
	{
		a.GET("/wallet/settings", getSettingsHandler(svc))
		a.PUT("/wallet/settings", updateSettingsHandler(svc))
		a.GET("/wallet/statistics", statisticsHandler(svc))
		a.POST("/wallet/expire", expireHandler(svc))
		a.POST("/users/:userId/wallet/adjust", adjustHandler(svc))
		a.GET("/users/:userId/wallet/transactions", transactionsHandler(svc))
	}
}

func getSettingsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := svc.GetSettings(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func updateSettingsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch service.SettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := svc.UpdateSettings(c, patch)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func statisticsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.GetStatistics(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func expireHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ProcessExpiredCoins(c)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"expired_coins": n})
	}
}

type adjustReq struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func adjustHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		var req adjustReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w, err := svc.Adjust(c, id, req.Amount, req.Description)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}
