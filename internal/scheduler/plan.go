package scheduler

import (
	"sort"
	"time"

	"github.com/duffmahn/hummingbot-track-a/internal/config"
	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
	"github.com/duffmahn/hummingbot-track-a/internal/intel"
	"github.com/duffmahn/hummingbot-track-a/internal/metrics"
	"github.com/duffmahn/hummingbot-track-a/internal/registry"
)

// planItem is one unit of refresh work.
type planItem struct {
	desc   registry.Descriptor
	params map[string]string
	// forced items bypass the freshness filter (trigger semantics).
	forced bool
	// immediate items (missing/too_old) sort before stale revalidation.
	immediate bool
}

// activeScope is the bounded pool/pair universe for one tick.
type activeScope struct {
	pools []string
	pairs []string
}

// plan enumerates the needed query plan for this tick: every enabled
// descriptor crossed with the active scope, minus fresh entries, ordered
// by (immediacy, priority, cost, key) and budget-capped on expensive
// items. Returns the plan plus the count of budget-deferred items.
func (s *Scheduler) plan(scope activeScope, triggers []model.Trigger) ([]planItem, int) {
	items := make([]planItem, 0, 32)

	for _, desc := range s.reg.Enabled() {
		for _, params := range s.expand(desc, scope) {
			item := planItem{desc: desc, params: params}
			item.forced = s.triggerForces(desc, params, triggers)
			quality := s.quality(desc, params)
			if !item.forced && quality == model.QualityFresh {
				continue
			}
			item.immediate = quality == model.QualityMissing || quality == model.QualityTooOld || item.forced
			items = append(items, item)
		}
	}

	sort.Slice(items, func(a, b int) bool {
		ia, ib := items[a], items[b]
		if ia.immediate != ib.immediate {
			return ia.immediate
		}
		pa, pb := registry.PriorityRank(ia.desc.Priority), registry.PriorityRank(ib.desc.Priority)
		if pa != pb {
			return pa < pb
		}
		ca, cb := registry.CostRank(ia.desc.Cost), registry.CostRank(ib.desc.Cost)
		if ca != cb {
			return ca < cb
		}
		return intel.CanonicalKey(ia.desc.Key, ia.params) < intel.CanonicalKey(ib.desc.Key, ib.params)
	})

	return s.applyBudget(items)
}

// expand crosses a descriptor with the active scope. An empty pool or
// pair set skips that scope's items rather than erroring.
func (s *Scheduler) expand(desc registry.Descriptor, scope activeScope) []map[string]string {
	switch desc.Scope {
	case registry.ScopeGlobal:
		return []map[string]string{nil}
	case registry.ScopePool:
		out := make([]map[string]string, 0, len(scope.pools))
		for _, pool := range scope.pools {
			out = append(out, map[string]string{"pool": pool})
		}
		return out
	case registry.ScopePair:
		out := make([]map[string]string, 0, len(scope.pairs))
		for _, pair := range scope.pairs {
			out = append(out, map[string]string{"pair": pair})
		}
		return out
	case registry.ScopeWindowed:
		return s.expandWindowed(desc, scope)
	default:
		return nil
	}
}

func (s *Scheduler) expandWindowed(desc registry.Descriptor, scope activeScope) []map[string]string {
	out := make([]map[string]string, 0, len(registry.Windows)*(len(scope.pools)+len(scope.pairs)))
	for _, window := range registry.Windows {
		switch desc.Key {
		case "swaps_for_pair":
			for _, pair := range scope.pairs {
				out = append(out, map[string]string{"pair": pair, "window": window})
			}
		default:
			for _, pool := range scope.pools {
				out = append(out, map[string]string{"pool": pool, "window": window})
			}
		}
	}
	return out
}

func (s *Scheduler) quality(desc registry.Descriptor, params map[string]string) model.Quality {
	_, rec := s.store.GetQuality(
		intel.CanonicalKey(desc.Key, params),
		time.Duration(desc.TTLSeconds)*time.Second,
		time.Duration(desc.MaxAgeSeconds)*time.Second,
	)
	return rec.Quality
}

// triggerForces reports whether a drained trigger forces this item to be
// re-enqueued regardless of freshness. Only P0/P1 items touching the
// trigger's pool or pair are forced; a trigger naming a query key forces
// that key alone.
func (s *Scheduler) triggerForces(desc registry.Descriptor, params map[string]string, triggers []model.Trigger) bool {
	for _, trig := range triggers {
		if trig.QueryKey != "" {
			if trig.QueryKey != desc.Key {
				continue
			}
			if trig.Pool != "" && params["pool"] != "" && params["pool"] != trig.Pool {
				continue
			}
			if trig.Pair != "" && params["pair"] != "" && params["pair"] != trig.Pair {
				continue
			}
			return true
		}
		if desc.Priority != registry.P0 && desc.Priority != registry.P1 {
			continue
		}
		if trig.Pool != "" && params["pool"] == trig.Pool {
			return true
		}
		if trig.Pair != "" && params["pair"] == trig.Pair {
			return true
		}
	}
	return false
}

// applyBudget caps expensive-class items per tick. P0 items are exempt;
// in soft mode the cap only logs.
func (s *Scheduler) applyBudget(items []planItem) ([]planItem, int) {
	if s.cfg.ExpensivePerTick <= 0 {
		return items, 0
	}
	kept := make([]planItem, 0, len(items))
	expensive := 0
	deferred := 0
	for _, item := range items {
		if item.desc.Cost != registry.CostExpensive || item.desc.Priority == registry.P0 {
			kept = append(kept, item)
			continue
		}
		expensive++
		if expensive > s.cfg.ExpensivePerTick {
			metrics.SchedulerBudgetDeferred.Inc()
			if s.cfg.ExpensiveMode == config.BudgetSoft {
				s.logger.Debug("expensive budget exceeded (soft)", "query", item.desc.Key)
				kept = append(kept, item)
				continue
			}
			deferred++
			continue
		}
		kept = append(kept, item)
	}
	return kept, deferred
}
