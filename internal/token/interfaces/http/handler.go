package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionstrading/internal/token/application"
	"github.com/wyfcoding/optionstrading/internal/token/domain"
	"github.com/wyfcoding/optionstrading/pkg/logger"
)

// TokenHandler HTTP 处理器
type TokenHandler struct {
	tokenService *application.TokenService
}

// NewTokenHandler 创建 HTTP 处理器
func NewTokenHandler(tokenService *application.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// RegisterRoutes 注册路由
func (h *TokenHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/tokens")
	{
		api.POST("/mint", h.Mint)
		api.POST("/approve", h.Approve)
		api.GET("/:token/balances/:holder", h.BalanceOf)
		api.GET("/:token/allowances/:owner/:spender", h.Allowance)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrInsufficientAllowance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// MintRequest 铸币请求
type MintRequest struct {
	Token  string `json:"token" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// Mint 给指定账户铸币
func (h *TokenHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := h.tokenService.Mint(c.Request.Context(), req.Token, req.To, amount); err != nil {
		logger.Error(c.Request.Context(), "Failed to mint", "token", req.Token, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ApproveRequest 授权请求
type ApproveRequest struct {
	Token   string `json:"token" binding:"required"`
	Owner   string `json:"owner" binding:"required"`
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

// Approve 设置代扣授权额度
func (h *TokenHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := h.tokenService.Approve(c.Request.Context(), req.Token, req.Owner, req.Spender, amount); err != nil {
		logger.Error(c.Request.Context(), "Failed to approve", "token", req.Token, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// BalanceOf 查询余额
func (h *TokenHandler) BalanceOf(c *gin.Context) {
	bal, err := h.tokenService.BalanceOf(c.Request.Context(), c.Param("token"), c.Param("holder"))
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get balance", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": c.Param("token"), "holder": c.Param("holder"), "balance": bal})
}

// Allowance 查询授权额度
func (h *TokenHandler) Allowance(c *gin.Context) {
	allowance, err := h.tokenService.Allowance(c.Request.Context(), c.Param("token"), c.Param("owner"), c.Param("spender"))
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get allowance", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": c.Param("token"), "owner": c.Param("owner"), "spender": c.Param("spender"), "allowance": allowance})
}
