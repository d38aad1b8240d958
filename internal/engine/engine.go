// Package engine orchestrates one metered scraping task end to end:
// decompose the request into subtasks, fan search fetches out across the
// pool, aggregate and dedup the parsed records, fan detail fetches out,
// and settle the task. Every billable fetch deducts from the credit
// meter before it is issued; when the meter declines, dispatch stops and
// the task settles as insufficient_credits with its partial results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/peoplesearch-cli/internal/aggregate"
	"github.com/sells-group/peoplesearch-cli/internal/config"
	"github.com/sells-group/peoplesearch-cli/internal/meter"
	"github.com/sells-group/peoplesearch-cli/internal/model"
	"github.com/sells-group/peoplesearch-cli/internal/pool"
	"github.com/sells-group/peoplesearch-cli/internal/sites"
	"github.com/sells-group/peoplesearch-cli/internal/store"
)

// ErrBudgetExhausted marks a unit skipped because the meter declined it.
// It is a control signal, not a failure.
var ErrBudgetExhausted = eris.New("engine: credit budget exhausted")

// Fetcher performs one policy-wrapped page fetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Request describes one task submission.
type Request struct {
	// ID optionally pre-assigns the task id so callers that launch Run
	// asynchronously can hand the id out before the row exists. Empty
	// means the store mints one.
	ID        string         `json:"-"`
	Site      string         `json:"site"`
	Mode      model.TaskMode `json:"mode"`
	Names     []string       `json:"names"`
	Locations []string       `json:"locations,omitempty"`
	Filter    model.Filter   `json:"filter"`
	Credits   int            `json:"credits"`
}

// Validate checks the request before any work is created.
func (r Request) Validate() error {
	if len(r.Names) == 0 {
		return eris.New("engine: request needs at least one name")
	}
	if r.Mode == model.ModeNameLocation && len(r.Locations) == 0 {
		return eris.New("engine: nameLocation mode needs at least one location")
	}
	if r.Credits <= 0 {
		return eris.New("engine: request needs a positive credit budget")
	}
	return nil
}

// Engine runs tasks. Safe for concurrent Run calls; each task gets its
// own meter, pools, and log ring.
type Engine struct {
	engineCfg config.EngineConfig
	credits   config.CreditsConfig
	cacheCfg  config.CacheConfig
	st        store.Store
	fetcher   Fetcher
	registry  *sites.Registry
	sink      MessageFunc

	mu      sync.Mutex
	running map[string]*taskHandle
}

// New creates an engine.
func New(cfg *config.Config, st store.Store, fetcher Fetcher, registry *sites.Registry, sink MessageFunc) *Engine {
	return &Engine{
		engineCfg: cfg.Engine,
		credits:   cfg.Credits,
		cacheCfg:  cfg.Cache,
		st:        st,
		fetcher:   fetcher,
		registry:  registry,
		sink:      sink,
		running:   make(map[string]*taskHandle),
	}
}

// Cancel requests a graceful stop of a running task. Returns ErrNotFound
// if the task is not currently running in this process.
func (e *Engine) Cancel(taskID string) error {
	e.mu.Lock()
	h, ok := e.running[taskID]
	e.mu.Unlock()
	if !ok {
		return eris.Wrapf(store.ErrNotFound, "engine: no running task %s", taskID)
	}
	h.cancel()
	return nil
}

// Run executes one task to a terminal state. The returned stats are valid
// for every terminal status, including failed (partial results are
// persisted for audit before the error is returned).
func (e *Engine) Run(ctx context.Context, req Request) (*model.TaskStats, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	site, err := e.registry.Get(req.Site)
	if err != nil {
		return nil, err
	}

	subs := Decompose(req.Mode, req.Names, req.Locations)
	if len(subs) == 0 {
		return nil, eris.New("engine: request decomposed to zero subtasks")
	}

	task := &model.Task{
		ID:        req.ID,
		Site:      req.Site,
		Mode:      req.Mode,
		Names:     req.Names,
		Locations: req.Locations,
		Filter:    req.Filter,
		Credits:   req.Credits,
		Status:    model.StatusPending,
		Log:       model.NewLogRing(100),
	}
	if err := e.st.CreateTask(ctx, task); err != nil {
		return nil, eris.Wrap(err, "engine: create task")
	}

	m, err := meter.New(req.Credits, meter.Costs{
		SearchPage: e.credits.SearchUnitCost,
		DetailPage: e.credits.DetailUnitCost,
	})
	if err != nil {
		return nil, err
	}

	handle := &taskHandle{}
	e.mu.Lock()
	e.running[task.ID] = handle
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, task.ID)
		e.mu.Unlock()
	}()

	log := zap.L().With(zap.String("task_id", task.ID), zap.String("site", req.Site))
	prog := &progressState{}
	say := func(format string, args ...any) {
		task.Log.Append(format, args...)
		if e.sink != nil {
			e.sink(fmt.Sprintf(format, args...))
		}
	}

	say("task %s: %d subtasks on %s, budget %d credits", task.ID, len(subs), req.Site, req.Credits)

	stats, runErr := e.execute(ctx, task, site, subs, m, handle, prog, say, log)

	stats.CreditsUsed = m.Spent()
	prog.setTotals(stats.TotalResults, stats.CreditsUsed)

	if runErr != nil {
		// Unexpected failure: partial results are already persisted;
		// record the error and logs for audit.
		say("task failed: %v", runErr)
		stats.Status = model.StatusFailed
		if failErr := e.st.FailTask(ctx, task.ID, runErr.Error(), task.Log.Lines()); failErr != nil {
			log.Error("engine: persist failure state", zap.Error(failErr))
		}
		return stats, runErr
	}

	if err := e.st.CompleteTask(ctx, task.ID, *stats, task.Log.Lines()); err != nil {
		return stats, eris.Wrap(err, "engine: complete task")
	}

	log.Info("engine: task settled",
		zap.String("status", string(stats.Status)),
		zap.Int("total_results", stats.TotalResults),
		zap.Int("credits_used", stats.CreditsUsed),
		zap.Bool("stopped_due_to_credits", stats.StoppedDueToCredits),
	)
	return stats, nil
}

// detailOutcome is the pool task value for one detail fetch.
type detailOutcome struct {
	link   string
	html   string
	person *model.Person
}

func (e *Engine) execute(
	ctx context.Context,
	task *model.Task,
	site sites.Site,
	subs []model.SubTask,
	m *meter.Meter,
	handle *taskHandle,
	prog *progressState,
	say func(string, ...any),
	log *zap.Logger,
) (*model.TaskStats, error) {
	stats := &model.TaskStats{Status: model.StatusCompleted}

	finish := func() *model.TaskStats {
		switch {
		case handle.cancelled.Load() || ctx.Err() != nil:
			stats.Status = model.StatusCancelled
		case handle.budgetOut.Load():
			stats.Status = model.StatusInsufficientCredits
			stats.StoppedDueToCredits = true
		}
		p := prog.snapshot()
		stats.SearchPageRequests = p.SearchPageRequests
		stats.DetailPageRequests = p.DetailPageRequests
		stats.CacheHits = p.CacheHits
		stats.FilteredOut = p.FilteredOut
		return stats
	}

	// ---- Search phase ----
	// The task stays pending until the first unit of work is actually
	// dispatched; searchPhase marks it running once the trimmed batch is
	// known to be non-empty.
	searchRecs, err := e.searchPhase(ctx, task, site, subs, m, handle, prog, say, log)
	if err != nil {
		return finish(), err
	}
	e.persistProgress(ctx, task.ID, prog, log)
	say("search phase done: %d records from %d subtasks", len(searchRecs), len(subs))

	// Age bounds can be applied before detail fetches; phone and property
	// predicates need detail data and run again after enrichment.
	preFilter := model.Filter{MinAge: task.Filter.MinAge, MaxAge: task.Filter.MaxAge}
	kept, dropped := aggregate.Apply(searchRecs, preFilter)
	prog.addFilteredOut(dropped)

	// ---- Detail phase ----
	final, err := e.detailPhase(ctx, task, site, kept, m, handle, prog, say, log)
	if err != nil {
		return finish(), err
	}

	// Final filter pass over enriched records, then whole-task identity
	// dedup: the same person can surface under several subtasks.
	final, dropped = aggregate.Apply(final, task.Filter)
	prog.addFilteredOut(dropped)
	final = aggregate.DedupIdentity(final)

	groups := aggregate.GroupBySubtask(final)
	for idx, recs := range groups {
		if err := e.st.SaveResults(ctx, task.ID, idx, recs); err != nil {
			return finish(), eris.Wrapf(err, "engine: save results for subtask %d", idx)
		}
		e.persistProgress(ctx, task.ID, prog, log)
	}

	stats.TotalResults = len(final)
	return finish(), nil
}

// searchPhase runs one pool batch over the subtasks and returns every
// parsed record, tagged with its subtask index.
func (e *Engine) searchPhase(
	ctx context.Context,
	task *model.Task,
	site sites.Site,
	subs []model.SubTask,
	m *meter.Meter,
	handle *taskHandle,
	prog *progressState,
	say func(string, ...any),
	log *zap.Logger,
) ([]model.Person, error) {
	affordable := m.AffordableCount(len(subs), meter.UnitSearchPage)
	if affordable < len(subs) {
		handle.budgetOut.Store(true)
		say("budget covers %d of %d search pages; trimming batch", affordable, len(subs))
	}
	batch := subs[:affordable]
	if len(batch) == 0 {
		return nil, nil
	}

	if err := e.st.UpdateTaskStatus(ctx, task.ID, model.StatusRunning); err != nil {
		return nil, eris.Wrap(err, "engine: mark running")
	}

	p := pool.New(e.poolConfig(), len(batch), func(completed, total int) {
		e.persistProgress(ctx, task.ID, prog, log)
	})
	handle.setPool(p)

	tasks := make([]pool.Task, len(batch))
	for i, sub := range batch {
		tasks[i] = pool.Task{
			ID:      fmt.Sprintf("search-%d", sub.Index),
			Payload: sub,
			Execute: func(ctx context.Context) (any, error) {
				if ok, balance := m.Deduct(meter.UnitSearchPage); !ok {
					handle.stopForBudget()
					say("search subtask %d skipped: balance %d below unit cost", sub.Index, balance)
					return nil, ErrBudgetExhausted
				}
				prog.addSearchRequest()

				html, err := e.fetcher.Fetch(ctx, site.SearchURL(sub))
				if err != nil {
					return nil, eris.Wrapf(err, "search fetch for subtask %d", sub.Index)
				}

				recs, err := site.ParseSearchPage(html)
				if err != nil {
					return nil, eris.Wrapf(err, "parse search page for subtask %d", sub.Index)
				}
				for j := range recs {
					recs[j].SubtaskIndex = sub.Index
				}
				return recs, nil
			},
		}
	}

	results := p.Execute(ctx, tasks)

	var out []model.Person
	for _, res := range results {
		switch {
		case res.Skipped || errors.Is(res.Err, ErrBudgetExhausted):
			// Already accounted for by the budget flag.
		case res.Err != nil:
			say("search unit %s failed: %v", res.ID, res.Err)
		case res.Value != nil:
			out = append(out, res.Value.([]model.Person)...)
		}
	}
	return out, nil
}

// detailPhase dedups detail links, serves what it can from the page
// cache, fetches the rest under the meter, and merges detail data back
// into the owning search records. Records with no detail link pass
// through unchanged.
func (e *Engine) detailPhase(
	ctx context.Context,
	task *model.Task,
	site sites.Site,
	recs []model.Person,
	m *meter.Meter,
	handle *taskHandle,
	prog *progressState,
	say func(string, ...any),
	log *zap.Logger,
) ([]model.Person, error) {
	links := aggregate.DedupLinks(recs)

	// One owning record per unique link: the first search hit wins; its
	// siblings collapse later in identity dedup.
	owners := make(map[string]model.Person, len(links))
	var linkless []model.Person
	for _, r := range recs {
		if r.DetailLink == "" {
			linkless = append(linkless, r)
			continue
		}
		if _, ok := owners[r.DetailLink]; !ok {
			owners[r.DetailLink] = r
		}
	}

	var toFetch []string
	if e.cacheCfg.Enabled {
		cached, err := e.st.GetCachedPages(ctx, links)
		if err != nil {
			// Cache trouble never fails the task; fetch fresh instead.
			log.Warn("engine: page cache read failed", zap.Error(err))
			cached = nil
		}
		for _, link := range links {
			body, ok := cached[link]
			if !ok {
				toFetch = append(toFetch, link)
				continue
			}
			prog.addCacheHits(1)
			if det, err := site.ParseDetailPage(body); err == nil && det != nil {
				merged := mergeDetail(owners[link], det)
				merged.FromCache = true
				owners[link] = merged
			}
		}
		if len(links) > len(toFetch) {
			say("detail cache: %d of %d links served from cache", len(links)-len(toFetch), len(links))
		}
	} else {
		toFetch = links
	}

	if handle.cancelled.Load() || ctx.Err() != nil {
		return collectOwners(owners, linkless), nil
	}

	affordable := m.AffordableCount(len(toFetch), meter.UnitDetailPage)
	if affordable < len(toFetch) {
		handle.budgetOut.Store(true)
		say("budget covers %d of %d detail pages; trimming batch", affordable, len(toFetch))
	}
	batch := toFetch[:affordable]
	if len(batch) == 0 {
		return collectOwners(owners, linkless), nil
	}

	p := pool.New(e.poolConfig(), len(batch), func(completed, total int) {
		e.persistProgress(ctx, task.ID, prog, log)
	})
	handle.setPool(p)

	tasks := make([]pool.Task, len(batch))
	for i, link := range batch {
		tasks[i] = pool.Task{
			ID:      fmt.Sprintf("detail-%d", i),
			Payload: link,
			Execute: func(ctx context.Context) (any, error) {
				if ok, balance := m.Deduct(meter.UnitDetailPage); !ok {
					handle.stopForBudget()
					say("detail link skipped: balance %d below unit cost", balance)
					return nil, ErrBudgetExhausted
				}
				prog.addDetailRequest()

				html, err := e.fetcher.Fetch(ctx, site.ResolveLink(link))
				if err != nil {
					return nil, eris.Wrap(err, "detail fetch")
				}

				det, err := site.ParseDetailPage(html)
				if err != nil {
					return nil, eris.Wrap(err, "parse detail page")
				}
				return detailOutcome{link: link, html: html, person: det}, nil
			},
		}
	}

	results := p.Execute(ctx, tasks)

	pages := make(map[string]string)
	for _, res := range results {
		switch {
		case res.Skipped || errors.Is(res.Err, ErrBudgetExhausted):
		case res.Err != nil:
			say("detail unit %s failed: %v", res.ID, res.Err)
		case res.Value != nil:
			out := res.Value.(detailOutcome)
			pages[out.link] = out.html
			if out.person != nil {
				owners[out.link] = mergeDetail(owners[out.link], out.person)
			}
		}
	}

	if e.cacheCfg.Enabled && len(pages) > 0 {
		ttl := time.Duration(e.cacheCfg.TTLDays) * 24 * time.Hour
		if err := e.st.SetCachedPages(ctx, pages, ttl); err != nil {
			log.Warn("engine: page cache write failed", zap.Error(err))
		}
	}

	e.persistProgress(ctx, task.ID, prog, log)
	return collectOwners(owners, linkless), nil
}

func (e *Engine) poolConfig() pool.Config {
	return pool.Config{
		GlobalMaxConcurrency: e.engineCfg.GlobalMaxConcurrency,
		PerWorkerConcurrency: e.engineCfg.PerWorkerConcurrency,
		QueueSize:            e.engineCfg.QueueSize,
	}
}

func (e *Engine) persistProgress(ctx context.Context, taskID string, prog *progressState, log *zap.Logger) {
	if err := e.st.UpdateTaskProgress(ctx, taskID, prog.snapshot()); err != nil {
		log.Warn("engine: persist progress failed", zap.Error(err))
	}
}

// mergeDetail folds detail-page data into the search record that owns the
// link. Search data wins for identity fields; detail data supplies
// contact depth.
func mergeDetail(base model.Person, det *model.Person) model.Person {
	if base.Name == "" {
		base.Name = det.Name
	}
	if base.Age == 0 {
		base.Age = det.Age
	}
	if len(det.Phones) > 0 {
		base.Phones = det.Phones
	}
	if len(det.Emails) > 0 {
		base.Emails = det.Emails
	}
	if len(det.Addresses) > 0 {
		base.Addresses = det.Addresses
	}
	if det.PropertyValue > 0 {
		base.PropertyValue = det.PropertyValue
	}
	return base
}

func collectOwners(owners map[string]model.Person, linkless []model.Person) []model.Person {
	out := make([]model.Person, 0, len(owners)+len(linkless))
	out = append(out, linkless...)
	for _, r := range owners {
		out = append(out, r)
	}
	return out
}
