package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/duffmahn/hummingbot-track-a/internal/domain/model"
)

const defaultPair = "WETH-USDC"

// activeScope computes the bounded pool/pair universe for one tick:
// explicit configuration wins, then pools seen in the most recent run's
// episodes, then nothing. Trigger pools/pairs join the scope for this
// tick only. The pool set is capped to keep the query plan from growing
// with the pool universe.
func (s *Scheduler) activeScope(triggers []model.Trigger) activeScope {
	pools := append([]string(nil), s.pools...)
	pairs := append([]string(nil), s.pairs...)

	if len(pools) == 0 {
		pools = s.poolsFromRecentEpisodes()
	}
	for _, trig := range triggers {
		if trig.Pool != "" {
			pools = appendUnique(pools, trig.Pool)
		}
		if trig.Pair != "" {
			pairs = appendUnique(pairs, trig.Pair)
		}
	}
	if len(pools) > s.cfg.PoolCap {
		pools = pools[:s.cfg.PoolCap]
	}
	if len(pairs) == 0 && len(pools) > 0 {
		pairs = []string{defaultPair}
	}
	return activeScope{pools: pools, pairs: pairs}
}

// poolsFromRecentEpisodes scans the latest run directory and collects
// pool addresses from episode proposals in insertion order.
func (s *Scheduler) poolsFromRecentEpisodes() []string {
	runsDir := filepath.Join(s.baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil
	}

	runs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && model.ValidRunID(entry.Name()) {
			runs = append(runs, entry.Name())
		}
	}
	if len(runs) == 0 {
		return nil
	}
	// Run ids embed their creation time, so lexical order is creation order.
	sort.Strings(runs)
	latest := runs[len(runs)-1]

	episodesDir := filepath.Join(runsDir, latest, "episodes")
	epEntries, err := os.ReadDir(episodesDir)
	if err != nil {
		return nil
	}
	epIDs := make([]string, 0, len(epEntries))
	for _, entry := range epEntries {
		if entry.IsDir() && model.ValidEpisodeID(entry.Name()) {
			epIDs = append(epIDs, entry.Name())
		}
	}
	sort.Strings(epIDs)

	pools := make([]string, 0, s.cfg.PoolCap)
	// Walk newest first so the cap keeps the most recent pools.
	for i := len(epIDs) - 1; i >= 0 && len(pools) < s.cfg.PoolCap; i-- {
		raw, err := os.ReadFile(filepath.Join(episodesDir, epIDs[i], "proposal.json"))
		if err != nil {
			continue
		}
		var proposal model.Proposal
		if err := json.Unmarshal(raw, &proposal); err != nil {
			continue
		}
		if proposal.PoolAddress != "" {
			pools = appendUnique(pools, proposal.PoolAddress)
		}
	}
	return pools
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
