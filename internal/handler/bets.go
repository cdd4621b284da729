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

type BetsHandler struct {
	Tracker *service.BetTracker
	Repo    repository.Repository
	Logger  *zap.Logger
}

func (h *BetsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/bets")
	group.POST("", h.placeBet)
	group.GET("", h.listBets)
	group.GET("/:id", h.getBet)
	group.POST("/:id/refresh", h.refreshStatus)
	group.POST("/:id/payout-address", h.setPayoutAddress)
}

type placeBetRequest struct {
	MarketID      string          `json:"market_id" binding:"required"`
	Side          string          `json:"side" binding:"required"`
	AmountUSD     decimal.Decimal `json:"amount_usd" binding:"required"`
	PayoutAddress string          `json:"payout_address" binding:"required"`
	KeyID         string          `json:"key_id" binding:"required"`
}

func (h *BetsHandler) placeBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	side := models.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	result, err := h.Tracker.PlaceBet(c.Request.Context(), req.MarketID, side,
		req.AmountUSD, req.PayoutAddress, req.KeyID)
	if err != nil {
		h.Logger.Warn("place bet failed",
			zap.String("market_id", req.MarketID), zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"bet":         result.Bet,
		"deposit_uri": result.DepositURI,
	}, nil)
}

func (h *BetsHandler) listBets(c *gin.Context) {
	keyID := strings.TrimSpace(c.Query("key_id"))
	if keyID == "" {
		Error(c, http.StatusBadRequest, "key_id required", nil)
		return
	}
	bets, err := h.Repo.ListBetsByKey(c.Request.Context(), keyID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, bets, map[string]any{"total": len(bets)})
}

func (h *BetsHandler) getBet(c *gin.Context) {
	bet, err := h.Repo.GetBet(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if bet == nil {
		Error(c, http.StatusNotFound, "bet not found", nil)
		return
	}
	Ok(c, gin.H{
		"bet":         bet,
		"deposit_uri": models.DepositURI(bet.DepositAddress, bet.AmountXMR),
	}, nil)
}

// refreshStatus forces an immediate remote poll instead of waiting for the
// background cadence.
func (h *BetsHandler) refreshStatus(c *gin.Context) {
	status, err := h.Tracker.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"bet_id": c.Param("id"), "status": status}, nil)
}

type payoutAddressRequest struct {
	PayoutAddress string `json:"payout_address" binding:"required"`
}

func (h *BetsHandler) setPayoutAddress(c *gin.Context) {
	var req payoutAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Tracker.SubmitPayoutAddress(c.Request.Context(), c.Param("id"), req.PayoutAddress); err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"bet_id": c.Param("id")}, nil)
}
