package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/models"
	"xmrbet/internal/repository"
	"xmrbet/internal/service"
)

type SlipsHandler struct {
	Aggregator *service.SlipAggregator
	Repo       repository.Repository
	Logger     *zap.Logger
}

func (h *SlipsHandler) Register(r *gin.Engine) {
	draft := r.Group("/api/slip-draft/:key_id")
	draft.GET("", h.getDraft)
	draft.POST("/legs", h.addLeg)
	draft.DELETE("/legs/:leg_id", h.removeLeg)
	draft.POST("/legs/:leg_id/amount", h.updateLegAmount)
	draft.POST("/undo", h.undoRemove)
	draft.POST("/reorder", h.reorderLegs)
	draft.POST("/clear", h.clearDraft)
	draft.POST("/checkout", h.checkout)

	group := r.Group("/api/slips")
	group.GET("", h.listSlips)
	group.GET("/:id", h.getSlip)
	group.POST("/:id/refresh", h.refreshStatus)
	group.POST("/:id/payout-address", h.setPayoutAddress)
}

func (h *SlipsHandler) getDraft(c *gin.Context) {
	Ok(c, h.Aggregator.Draft(c.Param("key_id")), nil)
}

type addLegRequest struct {
	MarketID  string          `json:"market_id" binding:"required"`
	Side      string          `json:"side" binding:"required"`
	AmountUSD decimal.Decimal `json:"amount_usd" binding:"required"`
}

func (h *SlipsHandler) addLeg(c *gin.Context) {
	var req addLegRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	side := models.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	view, err := h.Aggregator.AddLeg(c.Request.Context(), c.Param("key_id"),
		req.MarketID, side, req.AmountUSD)
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

func (h *SlipsHandler) removeLeg(c *gin.Context) {
	view, err := h.Aggregator.RemoveLeg(c.Param("key_id"), c.Param("leg_id"))
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

type legAmountRequest struct {
	AmountUSD decimal.Decimal `json:"amount_usd" binding:"required"`
}

func (h *SlipsHandler) updateLegAmount(c *gin.Context) {
	var req legAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	view, err := h.Aggregator.UpdateLegAmount(c.Param("key_id"), c.Param("leg_id"), req.AmountUSD)
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

func (h *SlipsHandler) undoRemove(c *gin.Context) {
	view, err := h.Aggregator.UndoRemove(c.Param("key_id"))
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

type reorderRequest struct {
	LegIDs []string `json:"leg_ids" binding:"required"`
}

func (h *SlipsHandler) reorderLegs(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	view, err := h.Aggregator.ReorderLegs(c.Param("key_id"), req.LegIDs)
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, view, nil)
}

func (h *SlipsHandler) clearDraft(c *gin.Context) {
	Ok(c, h.Aggregator.Clear(c.Param("key_id")), nil)
}

type checkoutRequest struct {
	PayoutAddress string `json:"payout_address" binding:"required"`
}

func (h *SlipsHandler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	slip, err := h.Aggregator.Checkout(c.Request.Context(), c.Param("key_id"), req.PayoutAddress)
	if err != nil {
		h.Logger.Warn("slip checkout failed",
			zap.String("key_id", c.Param("key_id")), zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"slip":        slip,
		"deposit_uri": models.DepositURI(slip.XMRAddress, slip.TotalAmountXMR),
	}, nil)
}

func (h *SlipsHandler) listSlips(c *gin.Context) {
	keyID := strings.TrimSpace(c.Query("key_id"))
	if keyID == "" {
		Error(c, http.StatusBadRequest, "key_id required", nil)
		return
	}
	slips, err := h.Repo.ListSlipsByKey(c.Request.Context(), keyID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, slips, map[string]any{"total": len(slips)})
}

func (h *SlipsHandler) getSlip(c *gin.Context) {
	slip, err := h.Repo.GetSlip(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if slip == nil {
		Error(c, http.StatusNotFound, "slip not found", nil)
		return
	}
	Ok(c, gin.H{
		"slip":        slip,
		"deposit_uri": models.DepositURI(slip.XMRAddress, slip.TotalAmountXMR),
	}, nil)
}

func (h *SlipsHandler) refreshStatus(c *gin.Context) {
	status, err := h.Aggregator.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"slip_id": c.Param("id"), "status": status}, nil)
}

func (h *SlipsHandler) setPayoutAddress(c *gin.Context) {
	var req payoutAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Aggregator.SubmitPayoutAddress(c.Request.Context(), c.Param("id"), req.PayoutAddress); err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"slip_id": c.Param("id")}, nil)
}
