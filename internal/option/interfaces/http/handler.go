package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionstrading/internal/flashloan"
	"github.com/wyfcoding/optionstrading/internal/option/application"
	"github.com/wyfcoding/optionstrading/internal/option/domain"
	"github.com/wyfcoding/optionstrading/internal/swap"
	"github.com/wyfcoding/optionstrading/pkg/logger"
)

// OptionHandler HTTP 处理器
type OptionHandler struct {
	optionService *application.OptionService
}

// NewOptionHandler 创建 HTTP 处理器
func NewOptionHandler(optionService *application.OptionService) *OptionHandler {
	return &OptionHandler{optionService: optionService}
}

// RegisterRoutes 注册路由
func (h *OptionHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/options", h.SellOption)
		api.GET("/options", h.ListOptions)
		api.GET("/options/:id", h.GetOption)
		api.POST("/options/:id/buy", h.BuyOption)
		api.POST("/options/:id/exercise", h.ExerciseOption)
		api.POST("/options/:id/exercise/flash", h.ExerciseOptionFlashLoan)
		api.POST("/options/:id/cancel", h.CancelOption)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStrikeTooSmall),
		errors.Is(err, domain.ErrAmountTooSmall),
		errors.Is(err, domain.ErrPeriodTooShort),
		errors.Is(err, domain.ErrPeriodTooLong),
		errors.Is(err, domain.ErrPaymentTokenInvalid),
		errors.Is(err, domain.ErrPremiumInvalid),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotBuyer),
		errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOptionExpired),
		errors.Is(err, domain.ErrCannotCancel),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrOptionBusy),
		errors.Is(err, flashloan.ErrRepaymentShort),
		errors.Is(err, flashloan.ErrInsufficientLiquidity),
		errors.Is(err, swap.ErrSlippage),
		errors.Is(err, swap.ErrNoRoute):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SellOptionRequest 开仓请求
type SellOptionRequest struct {
	Seller        string `json:"seller" binding:"required"`
	Strike        string `json:"strike" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Premium       string `json:"premium" binding:"required"`
	PeriodSeconds int64  `json:"period_seconds" binding:"required"`
	PaymentToken  string `json:"payment_token" binding:"required"`
	OptionToken   string `json:"option_token" binding:"required"`
	OptionType    int8   `json:"option_type"`
}

// SellOption 卖方挂出期权
func (h *OptionHandler) SellOption(c *gin.Context) {
	var req SellOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strike, err := decimal.NewFromString(req.Strike)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strike"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	premium, err := decimal.NewFromString(req.Premium)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid premium"})
		return
	}

	opt, err := h.optionService.SellOption(
		c.Request.Context(),
		req.Seller,
		strike, amount, premium,
		time.Duration(req.PeriodSeconds)*time.Second,
		req.PaymentToken, req.OptionToken,
		domain.OptionType(req.OptionType),
	)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to sell option", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, opt)
}

// BuyOptionRequest 购买请求
type BuyOptionRequest struct {
	Buyer        string `json:"buyer" binding:"required"`
	PaymentToken string `json:"payment_token" binding:"required"`
	Premium      string `json:"premium" binding:"required"`
}

// BuyOption 买入期权
func (h *OptionHandler) BuyOption(c *gin.Context) {
	id, ok := h.optionID(c)
	if !ok {
		return
	}

	var req BuyOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	premium, err := decimal.NewFromString(req.Premium)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid premium"})
		return
	}

	opt, err := h.optionService.BuyOption(c.Request.Context(), req.Buyer, id, req.PaymentToken, premium)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to buy option", "option_id", id, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, opt)
}

// ExerciseOptionRequest 行权请求
type ExerciseOptionRequest struct {
	Caller       string `json:"caller" binding:"required"`
	PaymentToken string `json:"payment_token" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
}

func (h *OptionHandler) exercise(c *gin.Context, flash bool) {
	id, ok := h.optionID(c)
	if !ok {
		return
	}

	var req ExerciseOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	var opt *domain.Option
	if flash {
		opt, err = h.optionService.ExerciseOptionFlashLoan(c.Request.Context(), req.Caller, id, req.PaymentToken, amount)
	} else {
		opt, err = h.optionService.ExerciseOption(c.Request.Context(), req.Caller, id, req.PaymentToken, amount)
	}
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to exercise option", "option_id", id, "flash", flash, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, opt)
}

// ExerciseOption 行权
func (h *OptionHandler) ExerciseOption(c *gin.Context) {
	h.exercise(c, false)
}

// ExerciseOptionFlashLoan 闪电行权
func (h *OptionHandler) ExerciseOptionFlashLoan(c *gin.Context) {
	h.exercise(c, true)
}

// CancelOptionRequest 取消请求
type CancelOptionRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// CancelOption 卖方撤回期权
func (h *OptionHandler) CancelOption(c *gin.Context) {
	id, ok := h.optionID(c)
	if !ok {
		return
	}

	var req CancelOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opt, err := h.optionService.CancelOption(c.Request.Context(), req.Caller, id)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to cancel option", "option_id", id, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, opt)
}

// GetOption 查询单个期权
func (h *OptionHandler) GetOption(c *gin.Context) {
	id, ok := h.optionID(c)
	if !ok {
		return
	}

	opt, err := h.optionService.GetOption(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to get option", "option_id", id, "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, opt)
}

// ListOptions 查询期权列表，支持 seller / buyer 过滤
func (h *OptionHandler) ListOptions(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		opts []*domain.Option
		err  error
	)
	switch {
	case c.Query("seller") != "":
		opts, err = h.optionService.GetSellerOptions(ctx, c.Query("seller"))
	case c.Query("buyer") != "":
		opts, err = h.optionService.GetBuyerOptions(ctx, c.Query("buyer"))
	default:
		opts, err = h.optionService.GetAllOptions(ctx)
	}
	if err != nil {
		logger.Error(ctx, "Failed to list options", "error", err)
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": opts, "total": len(opts)})
}

func (h *OptionHandler) optionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid option id"})
		return 0, false
	}
	return uint(id), true
}
