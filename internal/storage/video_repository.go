package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg-vaultbot/internal/models"

	"gorm.io/gorm"
)

// likeEscaper escapes LIKE wildcards; '!' is used as the escape character
// because it needs no quoting in sqlite, mysql or postgres.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// VideoRepository is the content index: id → archive locator and name → id.
// Each call runs in its own transaction.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// MigrateTable ensures the videos table exists
func (r *VideoRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.Video{})
}

// Insert indexes a new video. It fails with models.ErrDuplicateName when a
// video with the same normalized name exists, leaving that record untouched.
func (r *VideoRepository) Insert(ctx context.Context, name string, messageID int) (*models.Video, error) {
	name = strings.TrimSpace(name)
	normalized := models.NormalizeName(name)
	if normalized == "" {
		return nil, models.ErrEmptyName
	}

	video := &models.Video{
		Name:           name,
		NormalizedName: normalized,
		MessageID:      messageID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Video{}).Where("normalized_name = ?", normalized).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicateName
		}
		return tx.Create(video).Error
	})
	if err != nil {
		// the unique index catches inserts racing past the count check
		if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, models.ErrDuplicateName) {
			return nil, fmt.Errorf("insert %q: %w", name, models.ErrDuplicateName)
		}
		return nil, fmt.Errorf("insert %q: %w", name, err)
	}

	return video, nil
}

// FindByID returns the video with the exact id, or models.ErrNotFound.
func (r *VideoRepository) FindByID(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.First(&video, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find video %d: %w", id, err)
	}
	return &video, nil
}

// FindByNameSubstring returns the video with the lowest id whose name
// contains query (case-sensitive), or models.ErrNotFound.
func (r *VideoRepository) FindByNameSubstring(ctx context.Context, query string) (*models.Video, error) {
	var found *models.Video
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches, err := matchingVideos(tx, query, 1)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			found = &matches[0]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search videos %q: %w", query, err)
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return found, nil
}

// DeleteByNameSubstring removes every video whose name contains query and
// returns how many were deleted. An empty query is refused.
func (r *VideoRepository) DeleteByNameSubstring(ctx context.Context, query string) (int64, error) {
	if query == "" {
		return 0, models.ErrEmptyName
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches, err := matchingVideos(tx, query, 0)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(matches))
		for _, v := range matches {
			ids = append(ids, v.ID)
		}

		result := tx.Delete(&models.Video{}, ids)
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete videos %q: %w", query, err)
	}
	return deleted, nil
}

// Count returns the number of indexed videos.
func (r *VideoRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Video{}).Count(&count).Error
	})
	return count, err
}

// matchingVideos returns videos containing query ordered by id, at most limit
// of them when limit > 0. LIKE narrows the candidates; its case sensitivity
// differs between engines, so strings.Contains has the final word.
func matchingVideos(tx *gorm.DB, query string, limit int) ([]models.Video, error) {
	var candidates []models.Video
	pattern := "%" + likeEscaper.Replace(query) + "%"
	if err := tx.Where("name LIKE ? ESCAPE '!'", pattern).Order("id").Find(&candidates).Error; err != nil {
		return nil, err
	}

	matches := candidates[:0]
	for _, v := range candidates {
		if !strings.Contains(v.Name, query) {
			continue
		}
		matches = append(matches, v)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}
