package meter

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduct_Sequential(t *testing.T) {
	m, err := New(5, Costs{SearchPage: 2, DetailPage: 1})
	require.NoError(t, err)

	ok, balance := m.Deduct(UnitSearchPage)
	assert.True(t, ok)
	assert.Equal(t, 3, balance)

	ok, balance = m.Deduct(UnitSearchPage)
	assert.True(t, ok)
	assert.Equal(t, 1, balance)

	// 1 credit left cannot cover a 2-credit search page.
	ok, balance = m.Deduct(UnitSearchPage)
	assert.False(t, ok)
	assert.Equal(t, 1, balance)

	// But it covers a 1-credit detail page.
	ok, balance = m.Deduct(UnitDetailPage)
	assert.True(t, ok)
	assert.Equal(t, 0, balance)
}

func TestDeduct_NoDoubleSpendUnderConcurrency(t *testing.T) {
	const budget = 250
	const callers = 2000

	m, err := New(budget, Costs{SearchPage: 1, DetailPage: 1})
	require.NoError(t, err)

	var successes atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := m.Deduct(UnitDetailPage); ok {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(budget), successes.Load(), "successful deductions must equal the budget exactly")
	assert.Equal(t, 0, m.Balance())
	assert.Equal(t, budget, m.Spent())
}

func TestDeduct_ConcurrentMixedUnits_NeverOverspends(t *testing.T) {
	const budget = 101

	m, err := New(budget, Costs{SearchPage: 3, DetailPage: 2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Deduct(UnitSearchPage)
			} else {
				m.Deduct(UnitDetailPage)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Spent(), budget)
	assert.GreaterOrEqual(t, m.Balance(), 0)

	bd := m.CostBreakdown()
	assert.Equal(t, m.Spent(), bd.SearchUnits*3+bd.DetailUnits*2)
}

func TestAffordableCount(t *testing.T) {
	m, err := New(10, Costs{SearchPage: 1, DetailPage: 3})
	require.NoError(t, err)

	assert.Equal(t, 7, m.AffordableCount(7, UnitSearchPage))
	assert.Equal(t, 10, m.AffordableCount(50, UnitSearchPage))
	assert.Equal(t, 3, m.AffordableCount(50, UnitDetailPage))
	assert.Equal(t, 2, m.AffordableCount(2, UnitDetailPage))
}

func TestCanAfford(t *testing.T) {
	m, err := New(2, Costs{SearchPage: 1, DetailPage: 3})
	require.NoError(t, err)

	assert.True(t, m.CanAfford(UnitSearchPage))
	assert.False(t, m.CanAfford(UnitDetailPage))
}

func TestCostBreakdown(t *testing.T) {
	m, err := New(10, Costs{SearchPage: 2, DetailPage: 1})
	require.NoError(t, err)

	m.Deduct(UnitSearchPage)
	m.Deduct(UnitDetailPage)
	m.Deduct(UnitDetailPage)

	bd := m.CostBreakdown()
	assert.Equal(t, 10, bd.Frozen)
	assert.Equal(t, 4, bd.Spent)
	assert.Equal(t, 6, bd.Balance)
	assert.Equal(t, 1, bd.SearchUnits)
	assert.Equal(t, 2, bd.DetailUnits)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(-1, Costs{SearchPage: 1, DetailPage: 1})
	assert.Error(t, err)

	_, err = New(10, Costs{SearchPage: 0, DetailPage: 1})
	assert.Error(t, err)
}

func TestZeroBudget_DeclinesEverything(t *testing.T) {
	m, err := New(0, Costs{SearchPage: 1, DetailPage: 1})
	require.NoError(t, err)

	ok, balance := m.Deduct(UnitSearchPage)
	assert.False(t, ok)
	assert.Equal(t, 0, balance)
	assert.Equal(t, 0, m.AffordableCount(5, UnitDetailPage))
}
