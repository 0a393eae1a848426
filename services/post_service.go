package services

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bettercampus/config"
	"github.com/cppla/bettercampus/models"
	"github.com/cppla/bettercampus/utils"
)

const (
	// postsCachePrefix namespaces every cached listing so one SCAN clears them all.
	postsCachePrefix     = "cache:posts:"
	postsWithCommentsKey = postsCachePrefix + "with-comments"
)

// Uploader stores an attached file and returns its public path ("" when fh is nil).
type Uploader interface {
	Save(fh *multipart.FileHeader) (string, error)
}

// PostService implements the create/read operations on posts and comments.
type PostService struct {
	db       *gorm.DB
	uploader Uploader
	cache    utils.Cache
	cacheTTL time.Duration
	author   string
	logger   *zap.SugaredLogger

	// generation is bumped by every write; a listing read across a bump is not cached.
	cacheMu    sync.Mutex
	generation uint64
}

// Option configures a PostService.
type Option func(*PostService)

// WithUploader sets the image store used by CreatePostWithImage.
func WithUploader(u Uploader) Option {
	return func(s *PostService) { s.uploader = u }
}

// WithCache enables caching of the JSON listing.
func WithCache(c utils.Cache, ttl time.Duration) Option {
	return func(s *PostService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithAuthor overrides the identity stamped on new rows.
func WithAuthor(userID string) Option {
	return func(s *PostService) { s.author = userID }
}

// WithLogger sets the logger for best-effort paths such as cache failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *PostService) { s.logger = l }
}

// NewPostService creates a PostService over db.
func NewPostService(db *gorm.DB, opts ...Option) *PostService {
	s := &PostService{
		db:     db,
		author: config.AnonymousUserID,
		logger: utils.Sugar,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type newPost struct {
	Title   string `validate:"required"`
	Content string `validate:"required"`
}

type newComment struct {
	Content string `validate:"required"`
}

// ListPosts returns every post, newest first, without comments.
func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, &StoreError{Op: "list posts", Err: err}
	}
	return posts, nil
}

// ListPostsWithComments returns every post in store order with its comments attached.
// Unlike ListPosts no ordering is applied to the posts themselves.
func (s *PostService) ListPostsWithComments(ctx context.Context) ([]models.Post, error) {
	if s.cache != nil {
		if b, ok := s.cache.GetBytes(ctx, postsWithCommentsKey); ok {
			var cached []models.Post
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
			s.logger.Warnw("discarding undecodable cached listing", "key", postsWithCommentsKey)
		}
	}

	gen := s.currentGeneration()
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Find(&posts).Error
	if err != nil {
		return nil, &StoreError{Op: "list posts with comments", Err: err}
	}
	for i := range posts {
		if posts[i].Comments == nil {
			posts[i].Comments = []models.Comment{}
		}
	}

	if s.cache != nil {
		s.cacheMu.Lock()
		if s.generation == gen {
			utils.CacheSetJSON(ctx, s.cache, postsWithCommentsKey, posts, s.cacheTTL)
		}
		s.cacheMu.Unlock()
	}
	return posts, nil
}

// CreatePost inserts a post. image is the stored upload path or nil.
func (s *PostService) CreatePost(ctx context.Context, title, content string, image *string) (*models.Post, error) {
	if err := validateInput(newPost{Title: title, Content: content}, "Title and content are required"); err != nil {
		return nil, err
	}

	post := models.Post{
		UserID:  s.author,
		Title:   title,
		Content: content,
		Image:   image,
		Likes:   0,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, &StoreError{Op: "create post", Err: err}
	}

	s.invalidate(ctx)
	return &post, nil
}

// CreatePostWithImage validates the form, stores fh (if any) and inserts the post.
// Nothing touches the disk when the form is invalid, and nothing touches the store
// when the upload is rejected.
func (s *PostService) CreatePostWithImage(ctx context.Context, title, content string, fh *multipart.FileHeader) (*models.Post, error) {
	if err := validateInput(newPost{Title: title, Content: content}, "Title and content are required"); err != nil {
		return nil, err
	}

	var image *string
	if fh != nil {
		if s.uploader == nil {
			return nil, errors.New("no uploader configured")
		}
		p, err := s.uploader.Save(fh)
		if err != nil {
			return nil, err
		}
		if p != "" {
			image = &p
		}
	}
	return s.CreatePost(ctx, title, content, image)
}

// GetPost returns the post with its comments in creation order.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get post", Err: err}
	}
	return &post, nil
}

// CreateComment attaches a comment to an existing post.
func (s *PostService) CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	if err := validateInput(newComment{Content: content}, "Comment content is required"); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var post models.Post
	if err := db.Select("id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "load post", Err: err}
	}

	comment := models.Comment{
		PostID:  post.ID,
		UserID:  s.author,
		Content: content,
	}
	if err := db.Create(&comment).Error; err != nil {
		return nil, &StoreError{Op: "create comment", Err: err}
	}

	s.invalidate(ctx)
	return &comment, nil
}

func (s *PostService) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

func (s *PostService) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if s.cache == nil {
		return
	}
	s.cache.InvalidateByPrefix(ctx, postsCachePrefix)
}
