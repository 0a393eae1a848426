package utils

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/bettercampus/models"
)

// SweepOrphanUploads deletes files in dir that no post references and that were last
// modified before grace ago. The grace window covers uploads whose post is still being
// inserted. It returns the number of files removed.
func SweepOrphanUploads(ctx context.Context, db *gorm.DB, dir string, grace time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var images []string
	if err := db.WithContext(ctx).Model(&models.Post{}).Where("image IS NOT NULL").Pluck("image", &images).Error; err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(images))
	for _, img := range images {
		referenced[path.Base(img)] = struct{}{}
	}

	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := referenced[e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			Sugar.Warnw("upload cleaner remove failed", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartUploadCleaner launches a background goroutine that periodically sweeps orphaned
// uploads until ctx is cancelled. It is best-effort and logs failures.
func StartUploadCleaner(ctx context.Context, db *gorm.DB, dir string, interval, grace time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := SweepOrphanUploads(ctx, db, dir, grace)
			if err != nil {
				Sugar.Warnw("upload cleaner sweep failed", "dir", dir, "error", err)
				continue
			}
			if n > 0 {
				Sugar.Infow("upload cleaner removed orphaned files", "count", n)
			}
		}
	}()
}
