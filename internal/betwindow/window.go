package betwindow

import (
	"context"
	"time"

	"xmrbet/internal/models"
)

// DefaultClosingSoon is the warning threshold before a market closes.
const DefaultClosingSoon = 5 * time.Minute

type State struct {
	Open        bool  `json:"open"`
	ClosingSoon bool  `json:"closing_soon"`
	Closed      bool  `json:"closed"`
	ClosesAt    int64 `json:"closes_at"`
}

// CloseInstant resolves the instant betting closes. Markets carry up to three
// timestamps; the first defined one wins: explicit close, event commence,
// oracle resolution.
func CloseInstant(m *models.Market) time.Time {
	switch {
	case m.BettingClosesAt != nil:
		return time.Unix(*m.BettingClosesAt, 0)
	case m.CommenceTime != nil:
		return time.Unix(*m.CommenceTime, 0)
	default:
		return time.Unix(m.ResolutionTime, 0)
	}
}

// Compute derives the betting window state of m at now. A market with
// betting_open explicitly false is closed no matter what the clock says.
func Compute(m *models.Market, now time.Time, closingSoon time.Duration) State {
	if closingSoon <= 0 {
		closingSoon = DefaultClosingSoon
	}
	closeAt := CloseInstant(m)

	open := now.Before(closeAt) && !m.Resolved
	if m.BettingOpen != nil && !*m.BettingOpen {
		open = false
	}

	return State{
		Open:        open,
		ClosingSoon: open && closeAt.Sub(now) < closingSoon,
		Closed:      !open,
		ClosesAt:    closeAt.Unix(),
	}
}

// Watch fires fn exactly once when the market's window closes, driven by a
// single timer armed for the close instant. If the window is already closed,
// fn fires immediately. Cancel ctx to drop the watch without firing.
func Watch(ctx context.Context, m *models.Market, now time.Time, fn func()) {
	st := Compute(m, now, 0)
	if !st.Open {
		fn()
		return
	}
	timer := time.NewTimer(CloseInstant(m).Sub(now))
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			fn()
		}
	}()
}
