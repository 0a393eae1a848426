package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bettercampus/models"
	"github.com/cppla/bettercampus/utils"
)

// StatsController reports board totals.
type StatsController struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db, logger: utils.Sugar}
}

// GetStats returns post, comment and image counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := s.db.WithContext(ctx.Request.Context())
	var postCount int64
	var commentCount int64
	var imageCount int64

	if err := db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		s.storeFailure(ctx, "count posts", err)
		return
	}

	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		s.storeFailure(ctx, "count comments", err)
		return
	}

	if err := db.Model(&models.Post{}).Where("image IS NOT NULL AND image <> ''").Count(&imageCount).Error; err != nil {
		s.storeFailure(ctx, "count images", err)
		return
	}

	utils.Success(ctx, gin.H{
		"post_count":    postCount,
		"comment_count": commentCount,
		"image_count":   imageCount,
	})
}

// GetPostStats returns the comment count for a given post id.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusNotFound, http.StatusNotFound, "Post not found")
		return
	}

	db := s.db.WithContext(ctx.Request.Context())
	var exists int64
	if err := db.Model(&models.Post{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		s.storeFailure(ctx, "count post", err)
		return
	}
	if exists == 0 {
		utils.Error(ctx, http.StatusNotFound, http.StatusNotFound, "Post not found")
		return
	}

	var commentsCount int64
	if err := db.Model(&models.Comment{}).Where("post_id = ?", id).Count(&commentsCount).Error; err != nil {
		s.storeFailure(ctx, "count post comments", err)
		return
	}

	utils.Success(ctx, gin.H{
		"post_id":        id,
		"comments_count": commentsCount,
	})
}

func (s *StatsController) storeFailure(ctx *gin.Context, op string, err error) {
	s.logger.Errorw("Error loading stats", "op", op, "path", ctx.Request.URL.Path, "error", err)
	utils.Error(ctx, http.StatusInternalServerError, http.StatusInternalServerError, "Error loading stats")
}
