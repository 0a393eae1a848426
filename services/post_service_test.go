package services

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/bettercampus/config"
	"github.com/cppla/bettercampus/models"
	"github.com/cppla/bettercampus/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to :memory: would be a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db, &models.Post{}, &models.Comment{}))
	return db
}

type fakeUploader struct {
	calls int
	path  string
	err   error
}

func (f *fakeUploader) Save(fh *multipart.FileHeader) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreatePostThenListPosts(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, "Hello", "World", nil)
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0].Title)
	assert.Equal(t, "World", posts[0].Content)
	assert.Nil(t, posts[0].Image)
	assert.Equal(t, 0, posts[0].Likes)
	assert.Equal(t, config.AnonymousUserID, posts[0].UserID)
	assert.False(t, posts[0].CreatedAt.IsZero())
}

func TestCreatePostKeepsTextVerbatim(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	cases := []struct{ title, content string }{
		{"  padded  ", "line one\nline two"},
		{"<b>bold</b>", "a & b < c"},
		{"ünïcødé ✓", "日本語のテキスト"},
	}
	for _, c := range cases {
		_, err := svc.CreatePost(ctx, c.title, c.content, nil)
		require.NoError(t, err)
	}

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, len(cases))
	// newest first
	for i, c := range cases {
		got := posts[len(cases)-1-i]
		assert.Equal(t, c.title, got.Title)
		assert.Equal(t, c.content, got.Content)
		assert.Equal(t, 0, got.Likes)
	}
}

func TestListPostsNewestFirst(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	a, err := svc.CreatePost(ctx, "A", "first", nil)
	require.NoError(t, err)
	b, err := svc.CreatePost(ctx, "B", "second", nil)
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, b.ID, posts[0].ID)
	assert.Equal(t, a.ID, posts[1].ID)
	assert.Nil(t, posts[0].Comments, "homepage listing must not load comments")
}

func TestCreatePostValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db)
	ctx := context.Background()

	for _, tc := range []struct {
		name, title, content string
	}{
		{"missing title", "", "body"},
		{"missing content", "title", ""},
		{"missing both", "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tc.title, tc.content, nil)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "Title and content are required", ve.Message)
		})
	}
	assert.Zero(t, countRows(t, db, &models.Post{}))
}

func TestCreatePostWithImage(t *testing.T) {
	db := newTestDB(t)
	up := &fakeUploader{path: "/uploads/abc.png"}
	svc := NewPostService(db, WithUploader(up))
	ctx := context.Background()

	post, err := svc.CreatePostWithImage(ctx, "Pic", "look", &multipart.FileHeader{Filename: "cat.png"})
	require.NoError(t, err)
	require.NotNil(t, post.Image)
	assert.Equal(t, "/uploads/abc.png", *post.Image)
	assert.Equal(t, 1, up.calls)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Image)
	assert.Equal(t, "/uploads/abc.png", *got.Image)
}

func TestCreatePostWithImageWithoutFile(t *testing.T) {
	up := &fakeUploader{path: "/uploads/never.png"}
	svc := NewPostService(newTestDB(t), WithUploader(up))

	post, err := svc.CreatePostWithImage(context.Background(), "Plain", "no picture", nil)
	require.NoError(t, err)
	assert.Nil(t, post.Image)
	assert.Zero(t, up.calls)
}

func TestCreatePostWithImageValidatesBeforeUpload(t *testing.T) {
	db := newTestDB(t)
	up := &fakeUploader{path: "/uploads/x.png"}
	svc := NewPostService(db, WithUploader(up))

	_, err := svc.CreatePostWithImage(context.Background(), "", "body", &multipart.FileHeader{Filename: "x.png"})
	assert.True(t, IsValidation(err))
	assert.Zero(t, up.calls, "no file may be written for an invalid form")
	assert.Zero(t, countRows(t, db, &models.Post{}))
}

func TestCreatePostWithRejectedUpload(t *testing.T) {
	db := newTestDB(t)
	up := &fakeUploader{err: &utils.UploadRejectedError{Reason: "only image files are allowed"}}
	svc := NewPostService(db, WithUploader(up))

	_, err := svc.CreatePostWithImage(context.Background(), "t", "c", &multipart.FileHeader{Filename: "x.txt"})
	require.Error(t, err)
	assert.True(t, utils.IsUploadRejected(err))
	assert.Zero(t, countRows(t, db, &models.Post{}))
}

func TestGetPostWithComments(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "P", "content", nil)
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, post.ID, "nice")
	require.NoError(t, err)

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "nice", got.Comments[0].Content)
	assert.Equal(t, post.ID, got.Comments[0].PostID)
	assert.Equal(t, config.AnonymousUserID, got.Comments[0].UserID)
}

func TestGetPostCommentsInCreationOrder(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "P", "content", nil)
	require.NoError(t, err)
	for _, c := range []string{"first", "second", "third"} {
		_, err := svc.CreateComment(ctx, post.ID, c)
		require.NoError(t, err)
	}

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 3)
	assert.Equal(t, "first", got.Comments[0].Content)
	assert.Equal(t, "second", got.Comments[1].Content)
	assert.Equal(t, "third", got.Comments[2].Content)
}

func TestGetPostNotFound(t *testing.T) {
	svc := NewPostService(newTestDB(t))

	_, err := svc.GetPost(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCommentMissingPost(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db)

	_, err := svc.CreateComment(context.Background(), 999, "hello?")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, countRows(t, db, &models.Comment{}))
}

func TestCreateCommentEmptyContent(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "P", "content", nil)
	require.NoError(t, err)

	_, err = svc.CreateComment(ctx, post.ID, "")
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Comment content is required", ve.Message)
	assert.Zero(t, countRows(t, db, &models.Comment{}))
}

func TestListPostsWithComments(t *testing.T) {
	svc := NewPostService(newTestDB(t))
	ctx := context.Background()

	a, err := svc.CreatePost(ctx, "A", "a", nil)
	require.NoError(t, err)
	b, err := svc.CreatePost(ctx, "B", "b", nil)
	require.NoError(t, err)
	_, err = svc.CreateComment(ctx, a.ID, "on a")
	require.NoError(t, err)

	posts, err := svc.ListPostsWithComments(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	byID := map[uint]models.Post{}
	for _, p := range posts {
		byID[p.ID] = p
	}
	require.Len(t, byID[a.ID].Comments, 1)
	assert.Equal(t, "on a", byID[a.ID].Comments[0].Content)
	assert.NotNil(t, byID[b.ID].Comments, "posts without comments carry an empty array")
	assert.Len(t, byID[b.ID].Comments, 0)
}

func TestListPostsWithCommentsCacheInvalidatedOnWrite(t *testing.T) {
	cache := utils.NewMemoryCache()
	svc := NewPostService(newTestDB(t), WithCache(cache, 0))
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "A", "a", nil)
	require.NoError(t, err)

	first, err := svc.ListPostsWithComments(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, cached := cache.GetBytes(ctx, postsWithCommentsKey)
	assert.True(t, cached)

	_, err = svc.CreateComment(ctx, post.ID, "fresh")
	require.NoError(t, err)
	_, cached = cache.GetBytes(ctx, postsWithCommentsKey)
	assert.False(t, cached, "a new comment must drop the cached listing")

	second, err := svc.ListPostsWithComments(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Len(t, second[0].Comments, 1)
	assert.Equal(t, "fresh", second[0].Comments[0].Content)
}

func TestListPostsWithCommentsSkipsCacheWhenWrittenDuringRead(t *testing.T) {
	db := newTestDB(t)
	cache := utils.NewMemoryCache()
	svc := NewPostService(db, WithCache(cache, 0))
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, "A", "a", nil)
	require.NoError(t, err)

	// A concurrent write lands after the posts were read but before the cache is filled.
	fired := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:concurrent_write", func(tx *gorm.DB) {
		if !fired {
			fired = true
			svc.invalidate(ctx)
		}
	}))

	posts, err := svc.ListPostsWithComments(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.True(t, fired)

	_, cached := cache.GetBytes(ctx, postsWithCommentsKey)
	assert.False(t, cached, "a listing read across a write must not be cached")

	_, err = svc.ListPostsWithComments(ctx)
	require.NoError(t, err)
	_, cached = cache.GetBytes(ctx, postsWithCommentsKey)
	assert.True(t, cached)
}

func TestStoreFailureIsStoreError(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostService(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.ListPosts(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
	assert.False(t, IsValidation(err))
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.GetPost(context.Background(), 1)
	assert.True(t, IsStoreError(err))
}

func TestWithAuthor(t *testing.T) {
	svc := NewPostService(newTestDB(t), WithAuthor("guest"))
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "t", "c", nil)
	require.NoError(t, err)
	comment, err := svc.CreateComment(ctx, post.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "guest", post.UserID)
	assert.Equal(t, "guest", comment.UserID)
}
