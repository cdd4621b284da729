package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"xmrbet/internal/betwindow"
	"xmrbet/internal/client/predictions"
	"xmrbet/internal/client/xmrrate"
	"xmrbet/internal/models"
	"xmrbet/internal/odds"
	"xmrbet/internal/repository"
	"xmrbet/internal/service"
)

type MarketsHandler struct {
	Repo        repository.Repository
	Sync        *service.MarketSyncService
	Client      *predictions.Client
	Rate        *xmrrate.Source
	Logger      *zap.Logger
	ClosingSoon time.Duration
}

func (h *MarketsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/markets")
	group.GET("", h.listMarkets)
	group.GET("/:id", h.getMarket)
	group.GET("/:id/preview", h.previewBet)
	group.POST("/refresh", h.refresh)

	admin := r.Group("/api/admin/markets")
	admin.POST("", h.createMarket)
	admin.DELETE("/:id", h.deleteMarket)
	admin.POST("/:id/resolve", h.resolveMarket)
	admin.POST("/:id/process-payouts", h.processPayouts)
}

// marketView is a market row annotated with display odds and window state.
type marketView struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	OracleType     string          `json:"oracle_type"`
	ResolutionTime int64           `json:"resolution_time"`
	YesPoolXMR     decimal.Decimal `json:"yes_pool_xmr"`
	NoPoolXMR      decimal.Decimal `json:"no_pool_xmr"`
	YesPct         int64           `json:"yes_pct"`
	NoPct          int64           `json:"no_pct"`
	Window         betwindow.State `json:"window"`
	Resolved       bool            `json:"resolved"`
	Outcome        *string         `json:"outcome,omitempty"`
}

func (h *MarketsHandler) view(m models.Market, now time.Time) marketView {
	yesPct, noPct := odds.PoolPercents(m.YesPoolXMR, m.NoPoolXMR)
	return marketView{
		ID:             m.ID,
		Title:          m.Title,
		OracleType:     m.OracleType,
		ResolutionTime: m.ResolutionTime,
		YesPoolXMR:     m.YesPoolXMR,
		NoPoolXMR:      m.NoPoolXMR,
		YesPct:         yesPct,
		NoPct:          noPct,
		Window:         betwindow.Compute(&m, now, h.ClosingSoon),
		Resolved:       m.Resolved,
		Outcome:        m.Outcome,
	}
}

func (h *MarketsHandler) listMarkets(c *gin.Context) {
	includeResolved := boolQueryDefault(c, "include_resolved", false)
	var (
		items []models.Market
		err   error
	)
	if includeResolved {
		items, err = h.Repo.ListMarkets(c.Request.Context(), true)
	} else {
		items, err = h.Repo.ListValidMarkets(c.Request.Context())
	}
	if err != nil {
		h.Logger.Warn("list markets failed", zap.Error(err))
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	now := time.Now()
	views := make([]marketView, 0, len(items))
	for _, m := range items {
		views = append(views, h.view(m, now))
	}
	Ok(c, views, map[string]any{"total": len(views)})
}

func (h *MarketsHandler) getMarket(c *gin.Context) {
	market, err := h.Repo.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	Ok(c, h.view(*market, time.Now()), nil)
}

// previewBet projects the pari-mutuel payout for a hypothetical stake without
// touching the remote API. The USD stake is converted at the cached display
// rate; the authoritative conversion happens server-side at bet creation.
func (h *MarketsHandler) previewBet(c *gin.Context) {
	side := models.Side(strings.ToUpper(strings.TrimSpace(c.Query("side"))))
	if !side.Valid() {
		Error(c, http.StatusBadRequest, "side must be YES or NO", nil)
		return
	}
	amountUSD := decimalQueryPtr(c, "amount_usd")
	if amountUSD == nil {
		Error(c, http.StatusBadRequest, "amount_usd required", nil)
		return
	}

	market, err := h.Repo.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}

	stakeXMR, ok := h.Rate.PreviewXMR(*amountUSD)
	if !ok {
		Error(c, errStatus(service.ErrRateUnavailable), service.ErrRateUnavailable.Error(), nil)
		return
	}
	projection := odds.Preview(market.YesPoolXMR, market.NoPoolXMR, stakeXMR, side)

	Ok(c, gin.H{
		"market_id":  market.ID,
		"side":       side,
		"amount_usd": amountUSD,
		"amount_xmr": stakeXMR,
		"projection": projection,
		"window":     betwindow.Compute(market, time.Now(), h.ClosingSoon),
	}, nil)
}

func (h *MarketsHandler) refresh(c *gin.Context) {
	h.Sync.RequestRefresh()
	Ok(c, gin.H{"refresh": "scheduled"}, nil)
}

func (h *MarketsHandler) createMarket(c *gin.Context) {
	var req predictions.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	market, err := h.Client.CreateMarket(c.Request.Context(), req)
	if err != nil {
		h.Logger.Warn("create market failed", zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	h.Sync.RequestRefresh()
	Ok(c, market, nil)
}

// deleteMarket proxies the admin delete. The server refuses once any bet has
// been placed, so deletion here is best effort.
func (h *MarketsHandler) deleteMarket(c *gin.Context) {
	id := c.Param("id")
	if err := h.Client.DeleteMarket(c.Request.Context(), id); err != nil {
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	if err := h.Repo.DeleteMarket(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

func (h *MarketsHandler) resolveMarket(c *gin.Context) {
	var req predictions.ResolveMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	outcome := models.Side(strings.ToUpper(strings.TrimSpace(req.Outcome)))
	if !outcome.Valid() {
		Error(c, http.StatusBadRequest, "outcome must be YES or NO", nil)
		return
	}
	if err := h.Client.ResolveMarket(c.Request.Context(), c.Param("id"), outcome); err != nil {
		h.Logger.Warn("resolve market failed", zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	h.Sync.RequestRefresh()
	Ok(c, gin.H{"resolved": c.Param("id"), "outcome": outcome}, nil)
}

func (h *MarketsHandler) processPayouts(c *gin.Context) {
	if err := h.Client.ProcessPayouts(c.Request.Context(), c.Param("id")); err != nil {
		h.Logger.Warn("process payouts failed", zap.Error(err))
		Error(c, errStatus(err), err.Error(), nil)
		return
	}
	Ok(c, gin.H{"payouts": "processed"}, nil)
}
