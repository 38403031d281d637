package database

import (
	"context"
	"time"
)

// PostRef is the slice of an instagram_posts row the retention engine
// needs: identity, the (possibly dangling) news reference, and the
// integrated image file slot.
type PostRef struct {
	ID          int64
	NewsID      *int64
	ImageFileID *int64
}

// PublishedRef identifies a published row and its references.
type PublishedRef struct {
	ID              int64
	NewsID          *int64
	InstagramPostID *int64
}

// StoryRef identifies a story row, its parent published row and its
// image file slot.
type StoryRef struct {
	ID          int64
	PublishedID int64
	ImageFileID *int64
}

// NewsFileRef carries the two optional file slots of a news row.
type NewsFileRef struct {
	ID            int64
	ContentFileID *int64
	ImageFileID   *int64
}

// RetentionTx is the set of row-level operations a retention pass
// performs. All methods run inside the single transaction opened by
// RetentionStore.WithTx, so reads see one consistent snapshot and
// any failed write aborts the whole pass.
type RetentionTx interface {
	// ScanExpiredNews returns ids of news rows whose published_at is
	// strictly before cutoff. published_at is the retention clock, not
	// created_at.
	ScanExpiredNews(cutoff time.Time) ([]int64, error)

	// FilterPublishedNewsIDs returns the subset of newsIDs that have at
	// least one live published row.
	FilterPublishedNewsIDs(newsIDs []int64) ([]int64, error)

	// GetPostsForNews returns instagram post rows whose news_id is in
	// newsIDs.
	GetPostsForNews(newsIDs []int64) ([]PostRef, error)

	// GetDanglingPosts returns instagram post rows whose news_id is set
	// but no longer matches any news row.
	GetDanglingPosts() ([]PostRef, error)

	// FilterPublishedPostIDs returns the subset of postIDs referenced by
	// at least one published row.
	FilterPublishedPostIDs(postIDs []int64) ([]int64, error)

	// GetPublishedForNews returns published rows whose news_id is in
	// newsIDs.
	GetPublishedForNews(newsIDs []int64) ([]PublishedRef, error)

	// GetDanglingPublished returns published rows whose news_id is set
	// but no longer matches any news row.
	GetDanglingPublished() ([]PublishedRef, error)

	// GetStoriesForPublished returns story rows whose published_id is in
	// publishedIDs.
	GetStoriesForPublished(publishedIDs []int64) ([]StoryRef, error)

	// GetNewsFileRefs returns the file slots of the given news rows.
	GetNewsFileRefs(newsIDs []int64) ([]NewsFileRef, error)

	DeleteStories(ids []int64) (int64, error)
	DeletePublished(ids []int64) (int64, error)
	DeletePosts(ids []int64) (int64, error)
	DeleteNews(ids []int64) (int64, error)

	// FilterOrphanFiles returns the subset of candidateIDs that exist,
	// were created before createdBefore, and are referenced by no live
	// news, instagram post or story row.
	FilterOrphanFiles(candidateIDs []int64, createdBefore time.Time) ([]int64, error)

	// ListUnreferencedFiles returns every file created before
	// createdBefore that no live owner references, regardless of how it
	// became unreferenced. Picks up files a previous pass deferred under
	// the grace period.
	ListUnreferencedFiles(createdBefore time.Time) ([]int64, error)

	DeleteFiles(ids []int64) (int64, error)
}

// RetentionStore opens the single transaction a retention pass runs in.
// An error returned by fn rolls the transaction back; nil commits it.
type RetentionStore interface {
	WithTx(ctx context.Context, fn func(tx RetentionTx) error) error
}

// EntityCounts holds per-table row counts for the stats endpoint.
type EntityCounts struct {
	Media          int
	Feeds          int
	News           int
	Files          int
	ChosenNews     int
	InstagramPosts int
	Published      int
	Stories        int
}

// StatsStore provides the read-only queries behind the stats endpoint.
type StatsStore interface {
	GetEntityCounts() (EntityCounts, error)
	GetNewsTimeRange() (oldest *time.Time, newest *time.Time, err error)
}
