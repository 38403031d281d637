package retention

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/newsloom/janitor/app/database"
)

// memStore is an in-memory database.RetentionStore used to exercise
// the engine without a running database. WithTx snapshots all tables
// and restores them when fn fails, mirroring transactional rollback.
type memStore struct {
	news      map[int64]*database.News
	files     map[int64]*database.File
	posts     map[int64]*database.InstagramPost
	published map[int64]*database.Published
	stories   map[int64]*database.Story

	// failOn makes the named RetentionTx method return an error,
	// for rollback tests.
	failOn string
}

func newMemStore() *memStore {
	return &memStore{
		news:      make(map[int64]*database.News),
		files:     make(map[int64]*database.File),
		posts:     make(map[int64]*database.InstagramPost),
		published: make(map[int64]*database.Published),
		stories:   make(map[int64]*database.Story),
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx database.RetentionTx) error) error {
	snapNews := copyMap(s.news)
	snapFiles := copyMap(s.files)
	snapPosts := copyMap(s.posts)
	snapPublished := copyMap(s.published)
	snapStories := copyMap(s.stories)

	if err := fn(&memTx{store: s}); err != nil {
		s.news = snapNews
		s.files = snapFiles
		s.posts = snapPosts
		s.published = snapPublished
		s.stories = snapStories
		return err
	}

	return nil
}

func copyMap[V any](m map[int64]*V) map[int64]*V {
	out := make(map[int64]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

type memTx struct {
	store *memStore
}

func (t *memTx) fail(method string) error {
	if t.store.failOn == method {
		return fmt.Errorf("injected failure in %s", method)
	}
	return nil
}

func (t *memTx) ScanExpiredNews(cutoff time.Time) ([]int64, error) {
	if err := t.fail("ScanExpiredNews"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, n := range t.store.news {
		if n.PublishedAt != nil && n.PublishedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) FilterPublishedNewsIDs(newsIDs []int64) ([]int64, error) {
	if err := t.fail("FilterPublishedNewsIDs"); err != nil {
		return nil, err
	}
	var ids []int64
	for _, pub := range t.store.published {
		if pub.NewsID != nil && slices.Contains(newsIDs, *pub.NewsID) &&
			!slices.Contains(ids, *pub.NewsID) {
			ids = append(ids, *pub.NewsID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) GetPostsForNews(newsIDs []int64) ([]database.PostRef, error) {
	if err := t.fail("GetPostsForNews"); err != nil {
		return nil, err
	}
	var refs []database.PostRef
	for _, post := range t.store.posts {
		if post.NewsID != nil && slices.Contains(newsIDs, *post.NewsID) {
			refs = append(refs, postRef(post))
		}
	}
	sortRefs(refs)
	return refs, nil
}

func (t *memTx) GetDanglingPosts() ([]database.PostRef, error) {
	if err := t.fail("GetDanglingPosts"); err != nil {
		return nil, err
	}
	var refs []database.PostRef
	for _, post := range t.store.posts {
		if post.NewsID != nil {
			if _, ok := t.store.news[*post.NewsID]; !ok {
				refs = append(refs, postRef(post))
			}
		}
	}
	sortRefs(refs)
	return refs, nil
}

func (t *memTx) FilterPublishedPostIDs(postIDs []int64) ([]int64, error) {
	if err := t.fail("FilterPublishedPostIDs"); err != nil {
		return nil, err
	}
	var ids []int64
	for _, pub := range t.store.published {
		if pub.InstagramPostID != nil && slices.Contains(postIDs, *pub.InstagramPostID) &&
			!slices.Contains(ids, *pub.InstagramPostID) {
			ids = append(ids, *pub.InstagramPostID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) GetPublishedForNews(newsIDs []int64) ([]database.PublishedRef, error) {
	if err := t.fail("GetPublishedForNews"); err != nil {
		return nil, err
	}
	var refs []database.PublishedRef
	for _, pub := range t.store.published {
		if pub.NewsID != nil && slices.Contains(newsIDs, *pub.NewsID) {
			refs = append(refs, publishedRef(pub))
		}
	}
	sortPublishedRefs(refs)
	return refs, nil
}

func (t *memTx) GetDanglingPublished() ([]database.PublishedRef, error) {
	if err := t.fail("GetDanglingPublished"); err != nil {
		return nil, err
	}
	var refs []database.PublishedRef
	for _, pub := range t.store.published {
		if pub.NewsID != nil {
			if _, ok := t.store.news[*pub.NewsID]; !ok {
				refs = append(refs, publishedRef(pub))
			}
		}
	}
	sortPublishedRefs(refs)
	return refs, nil
}

func (t *memTx) GetStoriesForPublished(publishedIDs []int64) ([]database.StoryRef, error) {
	if err := t.fail("GetStoriesForPublished"); err != nil {
		return nil, err
	}
	var refs []database.StoryRef
	for _, story := range t.store.stories {
		if slices.Contains(publishedIDs, story.PublishedID) {
			refs = append(refs, database.StoryRef{
				ID:          story.ID,
				PublishedID: story.PublishedID,
				ImageFileID: story.ImageFileID,
			})
		}
	}
	slices.SortFunc(refs, func(a, b database.StoryRef) int {
		return int(a.ID - b.ID)
	})
	return refs, nil
}

func (t *memTx) GetNewsFileRefs(newsIDs []int64) ([]database.NewsFileRef, error) {
	if err := t.fail("GetNewsFileRefs"); err != nil {
		return nil, err
	}
	var refs []database.NewsFileRef
	for _, id := range newsIDs {
		if n, ok := t.store.news[id]; ok {
			refs = append(refs, database.NewsFileRef{
				ID:            n.ID,
				ContentFileID: n.ContentFileID,
				ImageFileID:   n.ImageFileID,
			})
		}
	}
	return refs, nil
}

func (t *memTx) DeleteStories(ids []int64) (int64, error) {
	if err := t.fail("DeleteStories"); err != nil {
		return 0, err
	}
	return deleteFrom(t.store.stories, ids), nil
}

func (t *memTx) DeletePublished(ids []int64) (int64, error) {
	if err := t.fail("DeletePublished"); err != nil {
		return 0, err
	}
	// Integrity check the real schema enforces with a foreign key:
	// a published row must not be removed while a story references it.
	for _, story := range t.store.stories {
		if slices.Contains(ids, story.PublishedID) {
			return 0, fmt.Errorf("story %d still references published %d", story.ID, story.PublishedID)
		}
	}
	return deleteFrom(t.store.published, ids), nil
}

func (t *memTx) DeletePosts(ids []int64) (int64, error) {
	if err := t.fail("DeletePosts"); err != nil {
		return 0, err
	}
	for _, pub := range t.store.published {
		if pub.InstagramPostID != nil && slices.Contains(ids, *pub.InstagramPostID) {
			return 0, fmt.Errorf("published %d still references post %d", pub.ID, *pub.InstagramPostID)
		}
	}
	return deleteFrom(t.store.posts, ids), nil
}

func (t *memTx) DeleteNews(ids []int64) (int64, error) {
	if err := t.fail("DeleteNews"); err != nil {
		return 0, err
	}
	return deleteFrom(t.store.news, ids), nil
}

func (t *memTx) FilterOrphanFiles(candidateIDs []int64, createdBefore time.Time) ([]int64, error) {
	if err := t.fail("FilterOrphanFiles"); err != nil {
		return nil, err
	}
	var orphans []int64
	for _, id := range candidateIDs {
		f, ok := t.store.files[id]
		if !ok || !f.CreatedAt.Before(createdBefore) {
			continue
		}
		if t.fileReferenced(id) {
			continue
		}
		orphans = append(orphans, id)
	}
	slices.Sort(orphans)
	return orphans, nil
}

func (t *memTx) ListUnreferencedFiles(createdBefore time.Time) ([]int64, error) {
	if err := t.fail("ListUnreferencedFiles"); err != nil {
		return nil, err
	}
	var ids []int64
	for id, f := range t.store.files {
		if f.CreatedAt.Before(createdBefore) && !t.fileReferenced(id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) DeleteFiles(ids []int64) (int64, error) {
	if err := t.fail("DeleteFiles"); err != nil {
		return 0, err
	}
	for _, id := range ids {
		if t.fileReferenced(id) {
			return 0, fmt.Errorf("file %d is still referenced", id)
		}
	}
	return deleteFrom(t.store.files, ids), nil
}

func (t *memTx) fileReferenced(fileID int64) bool {
	for _, n := range t.store.news {
		if ptrEq(n.ContentFileID, fileID) || ptrEq(n.ImageFileID, fileID) {
			return true
		}
	}
	for _, post := range t.store.posts {
		if ptrEq(post.IntegratedImageID, fileID) {
			return true
		}
	}
	for _, story := range t.store.stories {
		if ptrEq(story.ImageFileID, fileID) {
			return true
		}
	}
	return false
}

func deleteFrom[V any](m map[int64]*V, ids []int64) int64 {
	var deleted int64
	for _, id := range ids {
		if _, ok := m[id]; ok {
			delete(m, id)
			deleted++
		}
	}
	return deleted
}

func ptrEq(p *int64, v int64) bool {
	return p != nil && *p == v
}

func postRef(post *database.InstagramPost) database.PostRef {
	return database.PostRef{
		ID:          post.ID,
		NewsID:      post.NewsID,
		ImageFileID: post.IntegratedImageID,
	}
}

func publishedRef(pub *database.Published) database.PublishedRef {
	return database.PublishedRef{
		ID:              pub.ID,
		NewsID:          pub.NewsID,
		InstagramPostID: pub.InstagramPostID,
	}
}

func sortRefs(refs []database.PostRef) {
	slices.SortFunc(refs, func(a, b database.PostRef) int {
		return int(a.ID - b.ID)
	})
}

func sortPublishedRefs(refs []database.PublishedRef) {
	slices.SortFunc(refs, func(a, b database.PublishedRef) int {
		return int(a.ID - b.ID)
	})
}

// --- fixture helpers ---

func ptr(v int64) *int64 {
	return &v
}

func (s *memStore) addNews(id int64, publishedAt time.Time, contentFileID, imageFileID *int64) {
	pub := publishedAt
	s.news[id] = &database.News{
		ID:            id,
		Link:          fmt.Sprintf("https://example.com/news/%d", id),
		Title:         fmt.Sprintf("news %d", id),
		PublishedAt:   &pub,
		CreatedAt:     pub,
		ContentFileID: contentFileID,
		ImageFileID:   imageFileID,
	}
}

func (s *memStore) addFile(id int64, createdAt time.Time) {
	s.files[id] = &database.File{
		ID:          id,
		Filename:    fmt.Sprintf("%d.bin", id),
		ContentType: "application/octet-stream",
		CreatedAt:   createdAt,
	}
}

func (s *memStore) addPost(id int64, newsID, imageFileID *int64) {
	s.posts[id] = &database.InstagramPost{
		ID:                id,
		NewsID:            newsID,
		IntegratedImageID: imageFileID,
	}
}

func (s *memStore) addPublished(id int64, newsID, postID *int64, publishedAt time.Time) {
	s.published[id] = &database.Published{
		ID:              id,
		NewsID:          newsID,
		InstagramPostID: postID,
		PublishedAt:     publishedAt,
	}
}

func (s *memStore) addStory(id, publishedID int64, imageFileID *int64) {
	s.stories[id] = &database.Story{
		ID:          id,
		PublishedID: publishedID,
		ImageFileID: imageFileID,
	}
}
