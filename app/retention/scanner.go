package retention

import (
	"fmt"
	"slices"
	"time"

	"github.com/newsloom/janitor/app/database"
)

// Scanner selects the news rows whose content has expired under the
// configured policy. Read-only: it sees the snapshot of the pass
// transaction, so concurrent inserts cannot join the pass midway.
type Scanner struct {
	mode Mode
}

// NewScanner creates a new candidate scanner
func NewScanner(mode Mode) *Scanner {
	return &Scanner{mode: mode}
}

// Run returns the ids of news rows with published_at strictly before
// cutoff. In preserve-published mode, news with a live published row is
// excluded from the expired set entirely.
func (s *Scanner) Run(tx database.RetentionTx, cutoff time.Time) ([]int64, error) {
	expired, err := tx.ScanExpiredNews(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired news: %w", err)
	}

	if s.mode != ModePreservePublished || len(expired) == 0 {
		return expired, nil
	}

	published, err := tx.FilterPublishedNewsIDs(expired)
	if err != nil {
		return nil, fmt.Errorf("failed to check publication status: %w", err)
	}
	if len(published) == 0 {
		return expired, nil
	}

	kept := make([]int64, 0, len(expired))
	for _, id := range expired {
		if !slices.Contains(published, id) {
			kept = append(kept, id)
		}
	}

	return kept, nil
}
