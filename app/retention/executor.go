package retention

import (
	"fmt"

	"github.com/newsloom/janitor/app/database"
)

// Counts holds the number of rows each stage of a pass removed.
type Counts struct {
	News           int64
	InstagramPosts int64
	Published      int64
	Stories        int64
	Files          int64
}

// Executor applies a plan in strict dependency order: stories, then
// published records, then instagram posts, then news. Files are not
// touched here; the orphan collector re-verifies and deletes them
// afterwards within the same transaction.
type Executor struct{}

// NewExecutor creates a new cascade executor
func NewExecutor() *Executor {
	return &Executor{}
}

// Run executes the deletions of the plan. Any mismatch between the
// planned and the affected row count aborts the pass: it means the
// snapshot the plan was computed on no longer holds, and a partial
// cleanup is worse than a failed one.
func (e *Executor) Run(tx database.RetentionTx, plan *Plan) (Counts, error) {
	var counts Counts

	deleted, err := tx.DeleteStories(plan.StoryIDs)
	if err != nil {
		return counts, fmt.Errorf("failed to delete stories: %w", err)
	}
	if err := checkCount("stories", deleted, len(plan.StoryIDs)); err != nil {
		return counts, err
	}
	counts.Stories = deleted

	deleted, err = tx.DeletePublished(plan.PublishedIDs)
	if err != nil {
		return counts, fmt.Errorf("failed to delete published records: %w", err)
	}
	if err := checkCount("published", deleted, len(plan.PublishedIDs)); err != nil {
		return counts, err
	}
	counts.Published = deleted

	deleted, err = tx.DeletePosts(plan.InstagramPostIDs)
	if err != nil {
		return counts, fmt.Errorf("failed to delete instagram posts: %w", err)
	}
	if err := checkCount("instagram_posts", deleted, len(plan.InstagramPostIDs)); err != nil {
		return counts, err
	}
	counts.InstagramPosts = deleted

	deleted, err = tx.DeleteNews(plan.NewsIDs)
	if err != nil {
		return counts, fmt.Errorf("failed to delete news: %w", err)
	}
	if err := checkCount("news", deleted, len(plan.NewsIDs)); err != nil {
		return counts, err
	}
	counts.News = deleted

	return counts, nil
}

func checkCount(table string, deleted int64, planned int) error {
	if deleted != int64(planned) {
		return fmt.Errorf("deleted %d of %d planned rows from %s", deleted, planned, table)
	}
	return nil
}
