package predictions

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"xmrbet/internal/models"
)

// Market is the wire shape of a market record. resolved comes over as 0/1.
type Market struct {
	MarketID        string          `json:"market_id"`
	Title           string          `json:"title"`
	OracleType      string          `json:"oracle_type"`
	ResolutionTime  int64           `json:"resolution_time"`
	BettingClosesAt *int64          `json:"betting_closes_at,omitempty"`
	BettingOpen     *bool           `json:"betting_open,omitempty"`
	CommenceTime    *int64          `json:"commence_time,omitempty"`
	YesPoolXMR      decimal.Decimal `json:"yes_pool_xmr"`
	NoPoolXMR       decimal.Decimal `json:"no_pool_xmr"`
	Resolved        int             `json:"resolved"`
	Outcome         *string         `json:"outcome,omitempty"`
}

// ToModel converts the wire record into the local mirror row, keeping the raw
// payload for fields this client does not interpret.
func (m Market) ToModel(raw []byte, now time.Time) models.Market {
	return models.Market{
		ID:              m.MarketID,
		Title:           m.Title,
		OracleType:      m.OracleType,
		ResolutionTime:  m.ResolutionTime,
		BettingClosesAt: m.BettingClosesAt,
		BettingOpen:     m.BettingOpen,
		CommenceTime:    m.CommenceTime,
		YesPoolXMR:      m.YesPoolXMR,
		NoPoolXMR:       m.NoPoolXMR,
		Resolved:        m.Resolved != 0,
		Outcome:         m.Outcome,
		LastSeenAt:      now,
		RawJSON:         raw,
	}
}

type CreateMarketRequest struct {
	Title           string `json:"title"`
	OracleType      string `json:"oracle_type"`
	ResolutionTime  int64  `json:"resolution_time"`
	BettingClosesAt *int64 `json:"betting_closes_at,omitempty"`
	CommenceTime    *int64 `json:"commence_time,omitempty"`
}

type ResolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

// Pool is the probe payload for GET /predictions/pool/{market_id}. Balances
// and view key are only present when the pool exists.
type Pool struct {
	Exists     bool             `json:"exists"`
	YesPoolXMR *decimal.Decimal `json:"yes_pool_xmr,omitempty"`
	NoPoolXMR  *decimal.Decimal `json:"no_pool_xmr,omitempty"`
	ViewKey    *string          `json:"view_key,omitempty"`
}

type CreateBetRequest struct {
	MarketID      string          `json:"market_id"`
	Side          models.Side     `json:"side"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	PayoutAddress string          `json:"payout_address"`
}

// BetReceipt is the response to bet creation. amount_xmr is fixed here from
// the server's point-in-time exchange rate and never recomputed.
type BetReceipt struct {
	BetID          string          `json:"bet_id"`
	DepositAddress string          `json:"deposit_address"`
	AmountXMR      decimal.Decimal `json:"amount_xmr"`
	AddressIndex   int64           `json:"address_index"`
	ViewKey        string          `json:"view_key"`
	ExpiresAt      int64           `json:"expires_at"`
	Status         models.Status   `json:"status"`
}

type BetStatus struct {
	BetID  string        `json:"bet_id"`
	Status models.Status `json:"status"`
}

type PayoutAddressRequest struct {
	PayoutAddress string `json:"payout_address"`
}

type SlipLegRequest struct {
	MarketID  string          `json:"market_id"`
	Side      models.Side     `json:"side"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
}

type CreateSlipRequest struct {
	Legs          []SlipLegRequest `json:"legs"`
	PayoutAddress string           `json:"payout_address"`
}

type SlipReceipt struct {
	SlipID         string          `json:"slip_id"`
	XMRAddress     string          `json:"xmr_address"`
	TotalAmountXMR decimal.Decimal `json:"total_amount_xmr"`
	ViewKey        string          `json:"view_key"`
	ExpiresAt      int64           `json:"expires_at"`
	Status         models.Status   `json:"status"`
}

type SlipLegStatus struct {
	MarketID string  `json:"market_id"`
	Outcome  *string `json:"outcome,omitempty"`
}

type SlipStatus struct {
	SlipID string          `json:"slip_id"`
	Status models.Status   `json:"status"`
	Legs   []SlipLegStatus `json:"legs,omitempty"`
}

type RegisterRequest struct {
	PublicKey string `json:"public_key"`
	PoWNonce  uint64 `json:"pow_nonce"`
}

type RegisterResponse struct {
	KeyID string `json:"key_id"`
}

// errorBody is the shape of a structured server rejection.
type errorBody struct {
	Error string `json:"error"`
}

func parseErrorCode(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Error
}
