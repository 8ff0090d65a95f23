package types

type APIResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// SubmitProjectData is returned after a first submission.
type SubmitProjectData struct {
	Project           ProjectSummary `json:"project"`
	SimilarityWarning string         `json:"similarity_warning,omitempty"`
}

type ProjectSummary struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	SimilarityPercentage float64 `json:"similarity_percentage"`
	SimilarityFlag       string  `json:"similarity_flag"`
}

type LoginData struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserSummary `json:"user"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SimilarityStatus describes the scoring path chosen at startup.
type SimilarityStatus struct {
	Method     string             `json:"method"`
	Model      string             `json:"model,omitempty"`
	Thresholds map[string]float64 `json:"thresholds"`
}
