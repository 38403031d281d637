package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// RetentionRepository implements RetentionStore on top of PostgreSQL.
// Every pass runs in a single repeatable-read transaction so the
// expired set observed at scan time matches the set acted upon at
// commit time.
type RetentionRepository struct {
	db *DB
}

// NewRetentionRepository creates a new retention repository
func NewRetentionRepository(db *DB) *RetentionRepository {
	return &RetentionRepository{db: db}
}

var _ RetentionStore = (*RetentionRepository)(nil)

// WithTx runs fn inside one transaction. fn returning an error rolls
// everything back; the store is left unchanged.
func (r *RetentionRepository) WithTx(ctx context.Context, fn func(tx RetentionTx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&retentionTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type retentionTx struct {
	tx *sql.Tx
}

func (t *retentionTx) ScanExpiredNews(cutoff time.Time) ([]int64, error) {
	rows, err := t.tx.Query(`
		SELECT id FROM news
		WHERE published_at IS NOT NULL AND published_at < $1
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired news: %w", err)
	}
	return scanIDs(rows)
}

func (t *retentionTx) FilterPublishedNewsIDs(newsIDs []int64) ([]int64, error) {
	if len(newsIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT DISTINCT news_id FROM published
		WHERE news_id = ANY($1)
		ORDER BY news_id
	`, pq.Array(newsIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to filter published news: %w", err)
	}
	return scanIDs(rows)
}

func (t *retentionTx) GetPostsForNews(newsIDs []int64) ([]PostRef, error) {
	if len(newsIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT id, news_id, integrated_image_id
		FROM instagram_posts
		WHERE news_id = ANY($1)
		ORDER BY id
	`, pq.Array(newsIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get posts for news: %w", err)
	}
	return scanPostRefs(rows)
}

func (t *retentionTx) GetDanglingPosts() ([]PostRef, error) {
	rows, err := t.tx.Query(`
		SELECT p.id, p.news_id, p.integrated_image_id
		FROM instagram_posts p
		LEFT JOIN news n ON n.id = p.news_id
		WHERE p.news_id IS NOT NULL AND n.id IS NULL
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get dangling posts: %w", err)
	}
	return scanPostRefs(rows)
}

func (t *retentionTx) FilterPublishedPostIDs(postIDs []int64) ([]int64, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT DISTINCT instagram_post_id FROM published
		WHERE instagram_post_id = ANY($1)
		ORDER BY instagram_post_id
	`, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to filter published posts: %w", err)
	}
	return scanIDs(rows)
}

func (t *retentionTx) GetPublishedForNews(newsIDs []int64) ([]PublishedRef, error) {
	if len(newsIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT id, news_id, instagram_post_id
		FROM published
		WHERE news_id = ANY($1)
		ORDER BY id
	`, pq.Array(newsIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get published for news: %w", err)
	}
	return scanPublishedRefs(rows)
}

func (t *retentionTx) GetDanglingPublished() ([]PublishedRef, error) {
	rows, err := t.tx.Query(`
		SELECT p.id, p.news_id, p.instagram_post_id
		FROM published p
		LEFT JOIN news n ON n.id = p.news_id
		WHERE p.news_id IS NOT NULL AND n.id IS NULL
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get dangling published: %w", err)
	}
	return scanPublishedRefs(rows)
}

func (t *retentionTx) GetStoriesForPublished(publishedIDs []int64) ([]StoryRef, error) {
	if len(publishedIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT id, published_id, image_file_id
		FROM stories
		WHERE published_id = ANY($1)
		ORDER BY id
	`, pq.Array(publishedIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get stories for published: %w", err)
	}
	defer rows.Close()

	var refs []StoryRef
	for rows.Next() {
		var ref StoryRef
		var imageFileID sql.NullInt64
		if err := rows.Scan(&ref.ID, &ref.PublishedID, &imageFileID); err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		if imageFileID.Valid {
			ref.ImageFileID = &imageFileID.Int64
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return refs, nil
}

func (t *retentionTx) GetNewsFileRefs(newsIDs []int64) ([]NewsFileRef, error) {
	if len(newsIDs) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(`
		SELECT id, content_file_id, image_file_id
		FROM news
		WHERE id = ANY($1)
		ORDER BY id
	`, pq.Array(newsIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get news file refs: %w", err)
	}
	defer rows.Close()

	var refs []NewsFileRef
	for rows.Next() {
		var ref NewsFileRef
		var contentFileID, imageFileID sql.NullInt64
		if err := rows.Scan(&ref.ID, &contentFileID, &imageFileID); err != nil {
			return nil, fmt.Errorf("failed to scan news file ref row: %w", err)
		}
		if contentFileID.Valid {
			ref.ContentFileID = &contentFileID.Int64
		}
		if imageFileID.Valid {
			ref.ImageFileID = &imageFileID.Int64
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news file ref rows: %w", err)
	}

	return refs, nil
}

func (t *retentionTx) DeleteStories(ids []int64) (int64, error) {
	return t.deleteByIDs("stories", ids)
}

func (t *retentionTx) DeletePublished(ids []int64) (int64, error) {
	return t.deleteByIDs("published", ids)
}

func (t *retentionTx) DeletePosts(ids []int64) (int64, error) {
	return t.deleteByIDs("instagram_posts", ids)
}

func (t *retentionTx) DeleteNews(ids []int64) (int64, error) {
	return t.deleteByIDs("news", ids)
}

func (t *retentionTx) FilterOrphanFiles(candidateIDs []int64, createdBefore time.Time) ([]int64, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	// Re-verified against live owners at this point in the transaction,
	// i.e. after the cascade deletes have run. A file referenced by any
	// surviving row is not an orphan regardless of how it entered the
	// candidate list.
	rows, err := t.tx.Query(`
		SELECT f.id FROM files f
		WHERE f.id = ANY($1)
		  AND f.created_at < $2
		  AND NOT EXISTS (
		        SELECT 1 FROM news n
		        WHERE n.content_file_id = f.id OR n.image_file_id = f.id)
		  AND NOT EXISTS (
		        SELECT 1 FROM instagram_posts p
		        WHERE p.integrated_image_id = f.id)
		  AND NOT EXISTS (
		        SELECT 1 FROM stories s
		        WHERE s.image_file_id = f.id)
		ORDER BY f.id
	`, pq.Array(candidateIDs), createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to filter orphan files: %w", err)
	}
	return scanIDs(rows)
}

func (t *retentionTx) ListUnreferencedFiles(createdBefore time.Time) ([]int64, error) {
	rows, err := t.tx.Query(`
		SELECT f.id FROM files f
		WHERE f.created_at < $1
		  AND NOT EXISTS (
		        SELECT 1 FROM news n
		        WHERE n.content_file_id = f.id OR n.image_file_id = f.id)
		  AND NOT EXISTS (
		        SELECT 1 FROM instagram_posts p
		        WHERE p.integrated_image_id = f.id)
		  AND NOT EXISTS (
		        SELECT 1 FROM stories s
		        WHERE s.image_file_id = f.id)
		ORDER BY f.id
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreferenced files: %w", err)
	}
	return scanIDs(rows)
}

func (t *retentionTx) DeleteFiles(ids []int64) (int64, error) {
	return t.deleteByIDs("files", ids)
}

// deleteByIDs deletes rows by primary key. The table name is always
// one of the fixed schema tables, never user input.
func (t *retentionTx) deleteByIDs(table string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := t.tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", table), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return affected, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating id rows: %w", err)
	}

	return ids, nil
}

func scanPostRefs(rows *sql.Rows) ([]PostRef, error) {
	defer rows.Close()

	var refs []PostRef
	for rows.Next() {
		var ref PostRef
		var newsID, imageFileID sql.NullInt64
		if err := rows.Scan(&ref.ID, &newsID, &imageFileID); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		if newsID.Valid {
			ref.NewsID = &newsID.Int64
		}
		if imageFileID.Valid {
			ref.ImageFileID = &imageFileID.Int64
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return refs, nil
}

func scanPublishedRefs(rows *sql.Rows) ([]PublishedRef, error) {
	defer rows.Close()

	var refs []PublishedRef
	for rows.Next() {
		var ref PublishedRef
		var newsID, postID sql.NullInt64
		if err := rows.Scan(&ref.ID, &newsID, &postID); err != nil {
			return nil, fmt.Errorf("failed to scan published row: %w", err)
		}
		if newsID.Valid {
			ref.NewsID = &newsID.Int64
		}
		if postID.Valid {
			ref.InstagramPostID = &postID.Int64
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating published rows: %w", err)
	}

	return refs, nil
}
