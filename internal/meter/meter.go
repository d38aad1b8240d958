// Package meter implements the prepaid credit ledger that gates every
// billable fetch. All mutation goes through one mutex so that no two
// callers can observe the same remaining balance as sufficient for the
// same unit.
package meter

import (
	"sync"

	"github.com/rotisserie/eris"
)

// Unit is a billable fetch kind.
type Unit string

const (
	UnitSearchPage Unit = "search_page"
	UnitDetailPage Unit = "detail_page"
)

// Costs holds the per-unit credit prices.
type Costs struct {
	SearchPage int `json:"search_page"`
	DetailPage int `json:"detail_page"`
}

// Cost returns the price of one unit of the given kind.
func (c Costs) Cost(u Unit) int {
	if u == UnitDetailPage {
		return c.DetailPage
	}
	return c.SearchPage
}

// Breakdown reports how the budget has been spent so far.
type Breakdown struct {
	Frozen      int `json:"frozen"`
	Spent       int `json:"spent"`
	Balance     int `json:"balance"`
	SearchUnits int `json:"search_units"`
	DetailUnits int `json:"detail_units"`
}

// Meter is the single arbitration point for a task's credit budget.
// Deduct must be called before the corresponding network call is issued,
// never after; a false return means the unit is skipped, not billed.
type Meter struct {
	mu          sync.Mutex
	frozen      int
	spent       int
	costs       Costs
	searchUnits int
	detailUnits int
}

// New creates a meter over a frozen budget.
func New(budget int, costs Costs) (*Meter, error) {
	if budget < 0 {
		return nil, eris.Errorf("meter: budget must be >= 0, got %d", budget)
	}
	if costs.SearchPage < 1 || costs.DetailPage < 1 {
		return nil, eris.New("meter: unit costs must be >= 1")
	}
	return &Meter{frozen: budget, costs: costs}, nil
}

// CanAfford reports whether one unit of the given kind fits in the
// remaining balance. Advisory only: a later Deduct may still fail if a
// concurrent caller spends first.
func (m *Meter) CanAfford(u Unit) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen-m.spent >= m.costs.Cost(u)
}

// Deduct atomically checks and deducts one unit. Returns ok=false and the
// unchanged balance when the remaining budget cannot cover the unit.
func (m *Meter) Deduct(u Unit) (ok bool, balanceAfter int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cost := m.costs.Cost(u)
	if m.frozen-m.spent < cost {
		return false, m.frozen - m.spent
	}
	m.spent += cost
	if u == UnitDetailPage {
		m.detailUnits++
	} else {
		m.searchUnits++
	}
	return true, m.frozen - m.spent
}

// AffordableCount returns how many of n units of the given kind the
// remaining balance can cover, for pre-trimming a batch before dispatch.
func (m *Meter) AffordableCount(n int, u Unit) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	affordable := (m.frozen - m.spent) / m.costs.Cost(u)
	if affordable > n {
		return n
	}
	return affordable
}

// Balance returns the remaining credits.
func (m *Meter) Balance() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen - m.spent
}

// Spent returns the credits consumed so far.
func (m *Meter) Spent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent
}

// CostBreakdown returns a snapshot of the ledger.
func (m *Meter) CostBreakdown() Breakdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Breakdown{
		Frozen:      m.frozen,
		Spent:       m.spent,
		Balance:     m.frozen - m.spent,
		SearchUnits: m.searchUnits,
		DetailUnits: m.detailUnits,
	}
}

// Costs returns the configured unit prices.
func (m *Meter) Costs() Costs {
	return m.costs
}
