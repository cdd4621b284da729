package service

import (
	"context"
	"sort"
	"sync"

	"xmrbet/internal/models"
)

// stubRepo is an in-memory Repository for service tests.
type stubRepo struct {
	mu         sync.Mutex
	markets    map[string]models.Market
	bets       map[string]models.Bet
	slips      map[string]models.Slip
	identities map[string]models.Identity
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		markets:    map[string]models.Market{},
		bets:       map[string]models.Bet{},
		slips:      map[string]models.Slip{},
		identities: map[string]models.Identity{},
	}
}

func (r *stubRepo) UpsertMarkets(_ context.Context, items []models.Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range items {
		prev, ok := r.markets[m.ID]
		if ok {
			m.PoolExists = prev.PoolExists
		}
		r.markets[m.ID] = m
	}
	return nil
}

func (r *stubRepo) SetPoolExists(_ context.Context, marketIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	valid := map[string]bool{}
	for _, id := range marketIDs {
		valid[id] = true
	}
	for id, m := range r.markets {
		m.PoolExists = valid[id]
		r.markets[id] = m
	}
	return nil
}

func (r *stubRepo) ListMarkets(_ context.Context, includeResolved bool) ([]models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Market
	for _, m := range r.markets {
		if !includeResolved && m.Resolved {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolutionTime < out[j].ResolutionTime })
	return out, nil
}

func (r *stubRepo) ListValidMarkets(_ context.Context) ([]models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Market
	for _, m := range r.markets {
		if m.PoolExists && !m.Resolved {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolutionTime < out[j].ResolutionTime })
	return out, nil
}

func (r *stubRepo) GetMarket(_ context.Context, marketID string) (*models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markets[marketID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *stubRepo) DeleteMarket(_ context.Context, marketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markets, marketID)
	return nil
}

func (r *stubRepo) InsertBet(_ context.Context, item *models.Bet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bets[item.BetID] = *item
	return nil
}

func (r *stubRepo) GetBet(_ context.Context, betID string) (*models.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bets[betID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *stubRepo) ListBetsByKey(_ context.Context, keyID string) ([]models.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Bet
	for _, b := range r.bets {
		if b.KeyID == keyID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubRepo) ListOpenBets(_ context.Context) ([]models.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Bet
	for _, b := range r.bets {
		if !b.Status.Terminal() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateBetStatus(_ context.Context, betID string, status models.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bets[betID]
	if !ok {
		return nil
	}
	b.Status = status
	r.bets[betID] = b
	return nil
}

func (r *stubRepo) UpdateBetPayoutAddress(_ context.Context, betID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bets[betID]
	if !ok {
		return nil
	}
	b.PayoutAddress = address
	r.bets[betID] = b
	return nil
}

func (r *stubRepo) SaveSlip(_ context.Context, item *models.Slip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *item
	stored.Legs = make([]models.SlipLeg, len(item.Legs))
	copy(stored.Legs, item.Legs)
	r.slips[item.SlipID] = stored
	return nil
}

func (r *stubRepo) GetSlip(_ context.Context, slipID string) (*models.Slip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slips[slipID]
	if !ok {
		return nil, nil
	}
	out := s
	out.Legs = make([]models.SlipLeg, len(s.Legs))
	copy(out.Legs, s.Legs)
	return &out, nil
}

func (r *stubRepo) ListSlipsByKey(_ context.Context, keyID string) ([]models.Slip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Slip
	for _, s := range r.slips {
		if s.KeyID == keyID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) ListOpenSlips(_ context.Context) ([]models.Slip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Slip
	for _, s := range r.slips {
		if s.Status != models.StatusDraft && !s.Status.Terminal() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateSlipStatus(_ context.Context, slipID string, status models.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slips[slipID]
	if !ok {
		return nil
	}
	s.Status = status
	r.slips[slipID] = s
	return nil
}

func (r *stubRepo) UpdateSlipPayoutAddress(_ context.Context, slipID, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slips[slipID]
	if !ok {
		return nil
	}
	s.PayoutAddress = address
	r.slips[slipID] = s
	return nil
}

func (r *stubRepo) UpdateLegOutcome(_ context.Context, legID string, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.slips {
		for i := range s.Legs {
			if s.Legs[i].LegID == legID {
				s.Legs[i].Outcome = &outcome
				r.slips[id] = s
				return nil
			}
		}
	}
	return nil
}

func (r *stubRepo) InsertIdentity(_ context.Context, item *models.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[item.KeyID] = *item
	return nil
}

func (r *stubRepo) GetIdentityByKeyID(_ context.Context, keyID string) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.identities[keyID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}
