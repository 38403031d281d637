package retention

import (
	"fmt"
	"slices"

	"github.com/newsloom/janitor/app/database"
)

// Resolver computes the full set of dependent rows that must go when a
// set of news rows expires. It performs no writes: the result is a Plan
// that can be logged or shown to a dry-run caller before execution.
//
// Dangling dependents are resolved too: instagram posts and published
// records whose news_id no longer matches any news row are leftovers of
// an interrupted pass or a hard external delete, and are cleaned up
// regardless of the current expired set.
type Resolver struct {
	mode Mode
}

// NewResolver creates a new dependency resolver
func NewResolver(mode Mode) *Resolver {
	return &Resolver{mode: mode}
}

// Run resolves expiredNewsIDs into a deletion plan.
func (r *Resolver) Run(tx database.RetentionTx, expiredNewsIDs []int64) (*Plan, error) {
	plan := &Plan{NewsIDs: dedupe(expiredNewsIDs)}
	var candidateFiles []int64

	posts, err := r.resolvePosts(tx, plan.NewsIDs)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		plan.InstagramPostIDs = append(plan.InstagramPostIDs, post.ID)
		if post.ImageFileID != nil {
			candidateFiles = append(candidateFiles, *post.ImageFileID)
		}
	}

	if r.mode == ModeUnconditional {
		published, err := r.resolvePublished(tx, plan.NewsIDs)
		if err != nil {
			return nil, err
		}
		for _, pub := range published {
			plan.PublishedIDs = append(plan.PublishedIDs, pub.ID)
		}

		stories, err := tx.GetStoriesForPublished(plan.PublishedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stories: %w", err)
		}
		for _, story := range stories {
			plan.StoryIDs = append(plan.StoryIDs, story.ID)
			if story.ImageFileID != nil {
				candidateFiles = append(candidateFiles, *story.ImageFileID)
			}
		}
	}

	newsRefs, err := tx.GetNewsFileRefs(plan.NewsIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve news file refs: %w", err)
	}
	for _, ref := range newsRefs {
		if ref.ContentFileID != nil {
			candidateFiles = append(candidateFiles, *ref.ContentFileID)
		}
		if ref.ImageFileID != nil {
			candidateFiles = append(candidateFiles, *ref.ImageFileID)
		}
	}

	plan.InstagramPostIDs = dedupe(plan.InstagramPostIDs)
	plan.PublishedIDs = dedupe(plan.PublishedIDs)
	plan.StoryIDs = dedupe(plan.StoryIDs)
	plan.CandidateFileIDs = dedupe(candidateFiles)

	return plan, nil
}

// resolvePosts collects posts attached to the expired news plus posts
// whose news row is already gone. In preserve-published mode a dangling
// post that is still referenced by a published record stays: deleting
// it would break the published row this mode exists to protect.
func (r *Resolver) resolvePosts(tx database.RetentionTx, newsIDs []int64) ([]database.PostRef, error) {
	posts, err := tx.GetPostsForNews(newsIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve posts: %w", err)
	}

	dangling, err := tx.GetDanglingPosts()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dangling posts: %w", err)
	}

	seen := make(map[int64]bool, len(posts))
	for _, post := range posts {
		seen[post.ID] = true
	}
	for _, post := range dangling {
		if !seen[post.ID] {
			seen[post.ID] = true
			posts = append(posts, post)
		}
	}

	if r.mode != ModePreservePublished || len(posts) == 0 {
		return posts, nil
	}

	postIDs := make([]int64, len(posts))
	for i, post := range posts {
		postIDs[i] = post.ID
	}
	protected, err := tx.FilterPublishedPostIDs(postIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check post publication status: %w", err)
	}
	if len(protected) == 0 {
		return posts, nil
	}

	kept := posts[:0]
	for _, post := range posts {
		if !slices.Contains(protected, post.ID) {
			kept = append(kept, post)
		}
	}

	return kept, nil
}

// resolvePublished collects published rows attached to the expired news
// plus published rows whose news row is already gone.
func (r *Resolver) resolvePublished(tx database.RetentionTx, newsIDs []int64) ([]database.PublishedRef, error) {
	published, err := tx.GetPublishedForNews(newsIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve published records: %w", err)
	}

	dangling, err := tx.GetDanglingPublished()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dangling published records: %w", err)
	}

	seen := make(map[int64]bool, len(published))
	for _, pub := range published {
		seen[pub.ID] = true
	}
	for _, pub := range dangling {
		if !seen[pub.ID] {
			seen[pub.ID] = true
			published = append(published, pub)
		}
	}

	return published, nil
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
