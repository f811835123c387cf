package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionstrading/internal/pool/application"
	"github.com/wyfcoding/optionstrading/internal/pool/domain"
	"github.com/wyfcoding/optionstrading/pkg/logger"
)

// PoolHandler HTTP 处理器
type PoolHandler struct {
	poolService *application.PoolService
}

// NewPoolHandler 创建 HTTP 处理器
func NewPoolHandler(poolService *application.PoolService) *PoolHandler {
	return &PoolHandler{poolService: poolService}
}

// RegisterRoutes 注册路由
func (h *PoolHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/pool")
	{
		api.PUT("/trigger", h.SetOptionTrigger)
		api.GET("/tokens/:token/locked", h.GetLockedAmount)
		api.GET("/tokens/:token/unlocked", h.GetUnlockedAmount)
		api.GET("/tokens/:token/fees", h.GetFees)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCaller):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientLocked), errors.Is(err, domain.ErrInsufficientUnlocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SetTriggerRequest 绑定触发器请求
type SetTriggerRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Trigger string `json:"trigger" binding:"required"`
}

// SetOptionTrigger 绑定触发器地址
func (h *PoolHandler) SetOptionTrigger(c *gin.Context) {
	var req SetTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.poolService.SetOptionTrigger(c.Request.Context(), req.Caller, req.Trigger); err != nil {
		logger.Error(c.Request.Context(), "Failed to set option trigger", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *PoolHandler) replyAmount(c *gin.Context, field string, amount decimal.Decimal, err error) {
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to query pool balance", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": c.Param("token"), field: amount})
}

// GetLockedAmount 查询锁定余额
func (h *PoolHandler) GetLockedAmount(c *gin.Context) {
	amount, err := h.poolService.GetLockedAmount(c.Request.Context(), c.Param("token"))
	h.replyAmount(c, "locked", amount, err)
}

// GetUnlockedAmount 查询可用余额
func (h *PoolHandler) GetUnlockedAmount(c *gin.Context) {
	amount, err := h.poolService.GetUnlockedAmount(c.Request.Context(), c.Param("token"))
	h.replyAmount(c, "unlocked", amount, err)
}

// GetFees 查询累计手续费
func (h *PoolHandler) GetFees(c *gin.Context) {
	amount, err := h.poolService.GetFees(c.Request.Context(), c.Param("token"))
	h.replyAmount(c, "fees", amount, err)
}
