package odds

import (
	"github.com/shopspring/decimal"

	"xmrbet/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PoolPercents returns the YES/NO pool split as whole percentages. An empty
// market has no information, so it reads as an even 50/50 prior.
//
// Each side is rounded independently, so the two percentages can sum to 99 or
// 101. Displayed odds have always worked this way; do not clamp.
func PoolPercents(yesPool, noPool decimal.Decimal) (int64, int64) {
	total := yesPool.Add(noPool)
	if total.IsZero() {
		return 50, 50
	}
	yesPct := yesPool.Mul(hundred).Div(total).Round(0).IntPart()
	noPct := noPool.Mul(hundred).Div(total).Round(0).IntPart()
	return yesPct, noPct
}

// Projection is the live payout preview for a hypothetical stake. Recomputed
// on every edit of the stake field; pure, no side effects.
type Projection struct {
	YesPool    decimal.Decimal `json:"yes_pool"`
	NoPool     decimal.Decimal `json:"no_pool"`
	Share      decimal.Decimal `json:"share"`
	Payout     decimal.Decimal `json:"payout"`
	Profit     decimal.Decimal `json:"profit"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Preview projects the pari-mutuel payout of staking stake XMR on side, as if
// the stake were already added to its pool. Winners split the combined pool in
// proportion to their share of the winning side.
func Preview(yesPool, noPool, stake decimal.Decimal, side models.Side) Projection {
	newYes := yesPool
	newNo := noPool
	if side == models.SideYes {
		newYes = newYes.Add(stake)
	} else {
		newNo = newNo.Add(stake)
	}

	p := Projection{YesPool: newYes, NoPool: newNo}
	if stake.LessThanOrEqual(decimal.Zero) {
		return p
	}

	sidePool := newYes
	if side == models.SideNo {
		sidePool = newNo
	}
	total := newYes.Add(newNo)

	p.Share = stake.Div(sidePool)
	p.Payout = p.Share.Mul(total)
	p.Profit = p.Payout.Sub(stake)
	p.Multiplier = p.Payout.Div(stake)
	return p
}
