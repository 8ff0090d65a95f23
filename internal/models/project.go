package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Review workflow states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Project is a student proposal assigned to one faculty member. The similarity
// score and flag are a snapshot taken at (re)submission time.
//
// JSON names follow the public API contract.
type Project struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title                string     `gorm:"not null" json:"title" validate:"required"`
	Domain               string     `gorm:"type:varchar(128)" json:"domain"`
	Description          string     `gorm:"type:text" json:"description"`
	AssignedFacultyEmail string     `gorm:"not null;index" json:"assignedFacultyEmail" validate:"required,email"`
	AssignedFacultyName  string     `gorm:"not null" json:"assignedFacultyName"`
	SubmittedBy          string     `gorm:"not null;index" json:"submittedBy" validate:"required,email"`
	SubmittedByName      string     `gorm:"not null" json:"submittedByName"`
	SubmittedOn          time.Time  `gorm:"index" json:"submittedOn"`
	UpdatedAt            *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	Status               string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status" validate:"required,oneof=pending approved rejected"`
	SimilarityPercentage float64    `gorm:"not null;default:0" json:"similarity_percentage"`
	SimilarityFlag       string     `gorm:"type:varchar(32);not null;default:'UNIQUE'" json:"similarity_flag"`
	FacultyComment       *string    `gorm:"type:text" json:"faculty_comment"`

	// SimilarityDetails records the scoring method and, on the embedding
	// path, which project matched best.
	SimilarityDetails datatypes.JSON `json:"similarity_details,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Text is what similarity scoring compares for this project.
func (p *Project) Text() string {
	return ProjectText(p.Title, p.Description)
}

// ProjectText joins title and description the way scoring expects.
func ProjectText(title, description string) string {
	return title + " " + description
}
