package types

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=student faculty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=student faculty"`
}

type SubmitProjectRequest struct {
	Title                string `json:"title" validate:"required"`
	Domain               string `json:"domain" validate:"required"`
	Description          string `json:"description" validate:"required"`
	AssignedFacultyEmail string `json:"assignedFacultyEmail" validate:"required,email"`
	SubmittedByEmail     string `json:"submittedByEmail" validate:"required,email"`
	SubmittedByName      string `json:"submittedByName" validate:"required"`
}

type ResubmitProjectRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type ReviewProjectRequest struct {
	Status         string  `json:"status" validate:"required,oneof=pending approved rejected"`
	FacultyComment *string `json:"faculty_comment"`
}
