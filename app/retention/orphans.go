package retention

import (
	"fmt"
	"time"

	"github.com/newsloom/janitor/app/database"
)

// Collector deletes file rows that no live owner references anymore.
// The candidate list from resolution is not trusted: a file referenced
// by a surviving news, post or story row must stay even if something
// just deleted also referenced it, and an owner written by a concurrent
// ingester between scan and execution must win. The grace period keeps
// files that were created but not yet attached to their owner out of
// the orphan set.
type Collector struct {
	gracePeriod time.Duration
}

// NewCollector creates a new orphan blob collector
func NewCollector(gracePeriod time.Duration) *Collector {
	return &Collector{gracePeriod: gracePeriod}
}

// Run re-verifies candidateFileIDs against all three owner slots and
// deletes the confirmed orphans, returning their ids. Must run after
// the cascade deletes, inside the same transaction.
//
// Besides the candidates, it sweeps for unreferenced files outside the
// grace window. A file whose owner was deleted while the file was
// still inside the grace window never re-enters the candidate stream,
// so the sweep is what makes every orphan eventually collectable.
func (c *Collector) Run(tx database.RetentionTx, candidateFileIDs []int64, now time.Time) ([]int64, error) {
	createdBefore := now.Add(-c.gracePeriod)

	var orphans []int64
	if len(candidateFileIDs) > 0 {
		verified, err := tx.FilterOrphanFiles(candidateFileIDs, createdBefore)
		if err != nil {
			return nil, fmt.Errorf("failed to verify orphan files: %w", err)
		}
		orphans = verified
	}

	swept, err := tx.ListUnreferencedFiles(createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep unreferenced files: %w", err)
	}
	orphans = dedupe(append(orphans, swept...))
	if len(orphans) == 0 {
		return nil, nil
	}

	deleted, err := tx.DeleteFiles(orphans)
	if err != nil {
		return nil, fmt.Errorf("failed to delete orphan files: %w", err)
	}
	if err := checkCount("files", deleted, len(orphans)); err != nil {
		return nil, err
	}

	return orphans, nil
}
