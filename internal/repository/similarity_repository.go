package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/projectaudit/engine/internal/models"
	appErr "github.com/projectaudit/engine/pkg/errors"
)

// SimilarityRepository is the pairwise similarity store. Each ordered pair
// has at most one row; writes replace the stored score.
type SimilarityRepository interface {
	Upsert(ctx context.Context, a, b uuid.UUID, score float64) error
	Get(ctx context.Context, a, b uuid.UUID) (*models.ProjectSimilarity, error)
	// ListAmong returns every row whose two ends are both in ids.
	ListAmong(ctx context.Context, ids []uuid.UUID) ([]models.ProjectSimilarity, error)
	DeleteForProject(ctx context.Context, id uuid.UUID) error
}

type similarityRepository struct {
	db *gorm.DB
}

func NewSimilarityRepository(db *gorm.DB) SimilarityRepository {
	return &similarityRepository{db: db}
}

func (r *similarityRepository) Upsert(ctx context.Context, a, b uuid.UUID, score float64) error {
	row := models.ProjectSimilarity{
		ProjectID1: a,
		ProjectID2: b,
		Similarity: score,
		UpdatedAt:  time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id_1"}, {Name: "project_id_2"}},
		DoUpdates: clause.AssignmentColumns([]string{"similarity", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return appErr.Internal(err, "upsert pairwise similarity")
	}
	return nil
}

func (r *similarityRepository) Get(ctx context.Context, a, b uuid.UUID) (*models.ProjectSimilarity, error) {
	var row models.ProjectSimilarity
	err := r.db.WithContext(ctx).Where("project_id_1 = ? AND project_id_2 = ?", a, b).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.NotFound("pairwise similarity")
		}
		return nil, appErr.Internal(err, "get pairwise similarity")
	}
	return &row, nil
}

func (r *similarityRepository) ListAmong(ctx context.Context, ids []uuid.UUID) ([]models.ProjectSimilarity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.ProjectSimilarity
	if err := r.db.WithContext(ctx).
		Where("project_id_1 IN ? AND project_id_2 IN ?", ids, ids).
		Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list pairwise similarity")
	}
	return out, nil
}

func (r *similarityRepository) DeleteForProject(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("project_id_1 = ? OR project_id_2 = ?", id, id).
		Delete(&models.ProjectSimilarity{}).Error; err != nil {
		return appErr.Internal(err, "delete pairwise similarity")
	}
	return nil
}
