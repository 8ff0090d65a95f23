package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectSimilarity is one directed row of the pairwise similarity graph.
// Both (a,b) and (b,a) are stored; the pair is unique.
type ProjectSimilarity struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	ProjectID1 uuid.UUID `gorm:"column:project_id_1;type:uuid;not null;index:idx_project_similarity_pair,unique,priority:1" json:"project_id_1"`
	ProjectID2 uuid.UUID `gorm:"column:project_id_2;type:uuid;not null;index:idx_project_similarity_pair,unique,priority:2;index" json:"project_id_2"`
	Similarity float64   `gorm:"not null" json:"similarity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (ProjectSimilarity) TableName() string { return "project_similarity" }
