package reconcile

import (
	"sync"

	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
)

// Engine matches source findings against destination findings and replays
// triage state onto the matches under bounded concurrency.
type Engine struct {
	replay         *replayer
	issueWorkers   int
	hotspotWorkers int
}

// NewEngine wires the reconciliation engine. The ledger may be nil, in
// which case comment replay is not deduplicated across runs.
func NewEngine(issues IssueWriter, hotspots HotspotWriter, ledger Ledger, issueWorkers, hotspotWorkers int) *Engine {
	return &Engine{
		replay: &replayer{
			issues:   issues,
			hotspots: hotspots,
			ledger:   ledger,
		},
		issueWorkers:   issueWorkers,
		hotspotWorkers: hotspotWorkers,
	}
}

// SyncIssues reconciles source issues against destination issues.
func (e *Engine) SyncIssues(source, dest []models.Finding) *models.ReconcileResult {
	return e.run(source, dest, e.issueWorkers, e.replay.replayIssue)
}

// SyncHotspots reconciles source hotspots against destination hotspots.
func (e *Engine) SyncHotspots(source, dest []models.Finding) *models.ReconcileResult {
	return e.run(source, dest, e.hotspotWorkers, e.replay.replayHotspot)
}

// run matches the two sides and feeds the pairs through a worker pool.
// Completion order of individual pairs is not guaranteed; only the
// aggregate counts are deterministic for a given input.
func (e *Engine) run(source, dest []models.Finding, workers int, apply func(matchedPair, *counters)) *models.ReconcileResult {
	pairs := matchFindings(source, dest)

	c := &counters{}
	c.result.Matched = len(pairs)

	if len(pairs) == 0 {
		return &c.result
	}
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan matchedPair)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range jobs {
				apply(pair, c)
			}
		}()
	}
	for _, pair := range pairs {
		jobs <- pair
	}
	close(jobs)
	wg.Wait()

	logging.Info("reconciliation batch finished",
		"matched", c.result.Matched,
		"status_changed", c.result.StatusChanged,
		"assigned", c.result.Assigned,
		"commented", c.result.Commented,
		"tagged", c.result.Tagged,
		"failed", c.result.Failed)

	return &c.result
}
