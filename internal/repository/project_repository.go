package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/projectaudit/engine/internal/models"
	appErr "github.com/projectaudit/engine/pkg/errors"
)

// ReviewUpdate carries the fields a faculty review may change.
type ReviewUpdate struct {
	Status    string
	Comment   *string
	UpdatedAt time.Time
}

// ResubmitUpdate carries the fields a resubmission rewrites.
type ResubmitUpdate struct {
	Title                string
	Description          string
	SimilarityPercentage float64
	SimilarityFlag       string
	SimilarityDetails    datatypes.JSON
	At                   time.Time
}

type ProjectRepository interface {
	BaseRepository[models.Project]
	ListBySubmitter(ctx context.Context, email string) ([]models.Project, error)
	ListByFaculty(ctx context.Context, facultyEmail string) ([]models.Project, error)
	// ListExcludingSubmitter returns every project not submitted by submitter,
	// optionally excluding one project id.
	ListExcludingSubmitter(ctx context.Context, submitter string, exclude *uuid.UUID) ([]models.Project, error)
	// ListFacultySiblings returns the faculty's projects other than exclude.
	ListFacultySiblings(ctx context.Context, facultyEmail string, exclude uuid.UUID) ([]models.Project, error)
	UpdateReview(ctx context.Context, id uuid.UUID, upd ReviewUpdate) error
	UpdateResubmission(ctx context.Context, id uuid.UUID, upd ResubmitUpdate) error
	// DeleteCascade removes the project together with its pairwise rows.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

func (r *projectRepository) ListBySubmitter(ctx context.Context, email string) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).
		Where("LOWER(submitted_by) = LOWER(?)", email).
		Order("submitted_on DESC").
		Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list projects by submitter")
	}
	return out, nil
}

func (r *projectRepository) ListByFaculty(ctx context.Context, facultyEmail string) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).
		Where("LOWER(assigned_faculty_email) = LOWER(?)", facultyEmail).
		Order("similarity_percentage DESC").
		Order("submitted_on DESC").
		Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list projects by faculty")
	}
	return out, nil
}

func (r *projectRepository) ListExcludingSubmitter(ctx context.Context, submitter string, exclude *uuid.UUID) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Where("submitted_by <> ?", submitter)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var out []models.Project
	if err := q.Order("submitted_on ASC").Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list candidate projects")
	}
	return out, nil
}

func (r *projectRepository) ListFacultySiblings(ctx context.Context, facultyEmail string, exclude uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).
		Where("LOWER(assigned_faculty_email) = LOWER(?) AND id <> ?", facultyEmail, exclude).
		Order("submitted_on ASC").
		Find(&out).Error; err != nil {
		return nil, appErr.Internal(err, "list faculty projects")
	}
	return out, nil
}

func (r *projectRepository) UpdateReview(ctx context.Context, id uuid.UUID, upd ReviewUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(map[string]any{
		"status":          upd.Status,
		"faculty_comment": upd.Comment,
		"updated_at":      upd.UpdatedAt,
	})
	if res.Error != nil {
		return appErr.Internal(res.Error, "update project review")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound("project")
	}
	return nil
}

func (r *projectRepository) UpdateResubmission(ctx context.Context, id uuid.UUID, upd ResubmitUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(map[string]any{
		"title":                 upd.Title,
		"description":           upd.Description,
		"status":                models.StatusPending,
		"faculty_comment":       nil,
		"similarity_percentage": upd.SimilarityPercentage,
		"similarity_flag":       upd.SimilarityFlag,
		"similarity_details":    upd.SimilarityDetails,
		"updated_at":            upd.At,
		"submitted_on":          upd.At,
	})
	if res.Error != nil {
		return appErr.Internal(res.Error, "resubmit project")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound("project")
	}
	return nil
}

func (r *projectRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewSimilarityRepository(tx).DeleteForProject(ctx, id); err != nil {
			return err
		}
		res := tx.Delete(&models.Project{}, "id = ?", id)
		if res.Error != nil {
			return appErr.Internal(res.Error, "delete project")
		}
		if res.RowsAffected == 0 {
			return appErr.NotFound("project")
		}
		return nil
	})
}
