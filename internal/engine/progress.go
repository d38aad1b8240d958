package engine

import (
	"sync"

	"github.com/sells-group/peoplesearch-cli/internal/model"
)

// MessageFunc receives human-readable progress lines. May be nil.
type MessageFunc func(line string)

// progressState accumulates the task counters under one mutex so pool
// workers can bump them concurrently.
type progressState struct {
	mu sync.Mutex
	p  model.Progress
}

func (s *progressState) addSearchRequest() {
	s.mu.Lock()
	s.p.SearchPageRequests++
	s.mu.Unlock()
}

func (s *progressState) addDetailRequest() {
	s.mu.Lock()
	s.p.DetailPageRequests++
	s.mu.Unlock()
}

func (s *progressState) addCacheHits(n int) {
	s.mu.Lock()
	s.p.CacheHits += n
	s.mu.Unlock()
}

func (s *progressState) addFilteredOut(n int) {
	s.mu.Lock()
	s.p.FilteredOut += n
	s.mu.Unlock()
}

func (s *progressState) setTotals(results, creditsUsed int) {
	s.mu.Lock()
	s.p.TotalResults = results
	s.p.CreditsUsed = creditsUsed
	s.mu.Unlock()
}

func (s *progressState) snapshot() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}
