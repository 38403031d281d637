package retention

import (
	"fmt"
	"time"
)

// Mode selects how expired news with live published records are
// handled. The two policies are mutually exclusive and must be chosen
// explicitly: silently mixing them is the easiest way to lose data in
// this subsystem.
type Mode string

const (
	// ModePreservePublished excludes any expired news row with a live
	// published record from the pass entirely. Published posts and their
	// stories are never deleted in this mode.
	ModePreservePublished Mode = "preserve-published"

	// ModeUnconditional deletes expired news regardless of publication
	// status, cascading through published records and stories.
	ModeUnconditional Mode = "unconditional"
)

// ParseMode validates a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePreservePublished, ModeUnconditional:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown retention mode %q (expected %q or %q)",
			s, ModePreservePublished, ModeUnconditional)
	}
}

// Config holds the policy knobs of a retention pass.
type Config struct {
	// Window is how long news stays retained after its published_at.
	Window time.Duration

	// Mode is the published-content policy.
	Mode Mode

	// GracePeriod bounds the race between a file being created and being
	// attached to its owner: files younger than this are never orphan
	// candidates.
	GracePeriod time.Duration
}

// Plan is the full set of rows a pass will remove, computed before any
// write happens so it can be logged or returned to a dry-run caller.
// CandidateFileIDs are only candidates: files are re-verified against
// live owners at deletion time.
type Plan struct {
	NewsIDs          []int64 `json:"news_ids"`
	InstagramPostIDs []int64 `json:"instagram_post_ids"`
	PublishedIDs     []int64 `json:"published_ids"`
	StoryIDs         []int64 `json:"story_ids"`
	CandidateFileIDs []int64 `json:"candidate_file_ids"`
}

// IsEmpty reports whether the plan would touch nothing.
func (p *Plan) IsEmpty() bool {
	return len(p.NewsIDs) == 0 && len(p.InstagramPostIDs) == 0 &&
		len(p.PublishedIDs) == 0 && len(p.StoryIDs) == 0 &&
		len(p.CandidateFileIDs) == 0
}

// Report carries the per-entity counts of one pass. On a dry run the
// counts reflect the plan (candidate files included) and Plan holds the
// resolved ids; nothing was written.
type Report struct {
	Cutoff                time.Time     `json:"cutoff"`
	Mode                  Mode          `json:"mode"`
	DryRun                bool          `json:"dry_run"`
	NewsDeleted           int64         `json:"news_deleted"`
	InstagramPostsDeleted int64         `json:"instagram_posts_deleted"`
	PublishedDeleted      int64         `json:"published_deleted"`
	StoriesDeleted        int64         `json:"stories_deleted"`
	FilesDeleted          int64         `json:"files_deleted"`
	Duration              time.Duration `json:"-"`

	Plan *Plan `json:"plan,omitempty"`
}

// TotalDeleted returns the number of rows removed across all tables.
func (r *Report) TotalDeleted() int64 {
	return r.NewsDeleted + r.InstagramPostsDeleted + r.PublishedDeleted +
		r.StoriesDeleted + r.FilesDeleted
}
