package controllers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/bettercampus/middleware"
	"github.com/cppla/bettercampus/services"
	"github.com/cppla/bettercampus/utils"
)

// formSlack leaves room for the text fields and multipart framing around the image.
const formSlack = 1 << 20

// PostController serves the board's pages and JSON listing.
type PostController struct {
	svc            *services.PostService
	metrics        *middleware.Metrics
	logger         *zap.SugaredLogger
	maxUploadBytes int64
}

// NewPostController creates a new PostController instance.
func NewPostController(svc *services.PostService, metrics *middleware.Metrics, maxUploadBytes int64) *PostController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = utils.DefaultMaxUploadBytes
	}
	return &PostController{svc: svc, metrics: metrics, logger: utils.Sugar, maxUploadBytes: maxUploadBytes}
}

// Index renders the homepage: every post, newest first, without comments.
func (p *PostController) Index(ctx *gin.Context) {
	posts, err := p.svc.ListPosts(ctx.Request.Context())
	if err != nil {
		p.logger.Errorw("Error fetching posts", "error", err)
		utils.Text(ctx, http.StatusInternalServerError, "Error loading posts")
		return
	}
	ctx.HTML(http.StatusOK, "index.tmpl", gin.H{"Title": "Home", "Posts": posts})
}

// CreatePost handles the new-post form, including the optional image.
func (p *PostController) CreatePost(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, p.maxUploadBytes+formSlack)

	fh, err := formImage(ctx, "image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			p.rejectUpload(ctx, &utils.UploadRejectedError{Reason: "request body too large", TooLarge: true})
			return
		}
		utils.Text(ctx, http.StatusBadRequest, "Invalid form submission")
		return
	}

	title := ctx.PostForm("title")
	content := ctx.PostForm("body")

	_, err = p.svc.CreatePostWithImage(ctx.Request.Context(), title, content, fh)
	if err != nil {
		var ve *services.ValidationError
		var re *utils.UploadRejectedError
		switch {
		case errors.As(err, &ve):
			utils.Text(ctx, http.StatusBadRequest, ve.Message)
		case errors.As(err, &re):
			p.rejectUpload(ctx, re)
		default:
			p.logger.Errorw("Error creating post", "error", err)
			utils.Text(ctx, http.StatusInternalServerError, "Error creating post")
		}
		return
	}

	p.metrics.PostsCreated.Inc()
	ctx.Redirect(http.StatusFound, "/")
}

// GetPost renders a single post with its comments.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Text(ctx, http.StatusNotFound, "Post not found")
		return
	}

	post, err := p.svc.GetPost(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Text(ctx, http.StatusNotFound, "Post not found")
			return
		}
		p.logger.Errorw("Error fetching post", "id", id, "error", err)
		utils.Text(ctx, http.StatusInternalServerError, "Error loading post")
		return
	}
	ctx.HTML(http.StatusOK, "post.tmpl", gin.H{"Title": post.Title, "Post": post})
}

// CreateComment handles the comment form on a post page.
func (p *PostController) CreateComment(ctx *gin.Context) {
	content := ctx.PostForm("comment")
	rawID := ctx.Param("id")

	id, ok := parseID(rawID)
	if !ok {
		if content == "" {
			utils.Text(ctx, http.StatusBadRequest, "Comment content is required")
			return
		}
		utils.Text(ctx, http.StatusNotFound, "Post not found")
		return
	}

	_, err := p.svc.CreateComment(ctx.Request.Context(), id, content)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			utils.Text(ctx, http.StatusBadRequest, ve.Message)
		case errors.Is(err, services.ErrNotFound):
			utils.Text(ctx, http.StatusNotFound, "Post not found")
		default:
			p.logger.Errorw("Error adding comment", "post_id", id, "error", err)
			utils.Text(ctx, http.StatusInternalServerError, "Error adding comment")
		}
		return
	}

	p.metrics.CommentsCreated.Inc()
	ctx.Redirect(http.StatusFound, "/posts/"+rawID)
}

// ListPostsAPI returns the raw JSON array polled by the homepage.
func (p *PostController) ListPostsAPI(ctx *gin.Context) {
	posts, err := p.svc.ListPostsWithComments(ctx.Request.Context())
	if err != nil {
		p.logger.Errorw("Error fetching API posts", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error loading posts"})
		return
	}
	ctx.JSON(http.StatusOK, posts)
}

func (p *PostController) rejectUpload(ctx *gin.Context, re *utils.UploadRejectedError) {
	p.logger.Infow("upload rejected", "reason", re.Reason, "ip", ctx.ClientIP())
	if re.TooLarge {
		p.metrics.UploadsRejected.WithLabelValues("too_large").Inc()
		utils.Text(ctx, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	p.metrics.UploadsRejected.WithLabelValues("not_image").Inc()
	utils.Text(ctx, http.StatusBadRequest, "Only image files are allowed!")
}

// formImage parses the request form and returns the single file under field, or nil.
func formImage(ctx *gin.Context, field string) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		return nil, ctx.Request.ParseForm()
	}
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	return fh, nil
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
