package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/coin-wallet/internal/service"
)

// RegisterHandlers mounts the user-facing wallet routes.
func RegisterHandlers(r gin.IRouter, svc *service.WalletService) {
	u := r.Group("/v1/users/:userId/wallet")
	{
		u.GET("", walletHandler(svc))
		u.GET("/transactions", transactionsHandler(svc))
		u.POST("/credit", creditHandler(svc))
		u.POST("/redeem", redeemHandler(svc))
		u.POST("/first-purchase", firstPurchaseHandler(svc))
	}
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrExceedsMaxRedeemable),
		errors.Is(err, service.ErrInvalidSettings):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrWalletDisabled),
		errors.Is(err, service.ErrSettingsNotConfigured):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func userID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func walletHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		w, err := svc.GetWallet(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		if w == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

func transactionsHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		res, err := svc.ListTransactions(c, id, page, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type coinsReq struct {
	Amount        int64   `json:"amount" binding:"required"`
	ReferenceType string  `json:"reference_type"`
	ReferenceID   *uint64 `json:"reference_id"`
	Description   string  `json:"description"`
}

func creditHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		var req coinsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w, err := svc.Credit(c, service.CreditRequest{
			UserID:        id,
			Amount:        req.Amount,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			Description:   req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, w)
	}
}

func redeemHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		var req coinsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.Redeem(c, service.RedeemRequest{
			UserID:        id,
			Amount:        req.Amount,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			Description:   req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type firstPurchaseReq struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

func firstPurchaseHandler(svc *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}
		var req firstPurchaseReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w, err := svc.GrantFirstPurchaseBonus(c, id, req.OrderID)
		if err != nil {
			writeError(c, err)
			return
		}
		if w == nil {
			c.JSON(http.StatusOK, gin.H{"granted": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"granted": true, "wallet": w})
	}
}
