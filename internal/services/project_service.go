package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/repository"
	"github.com/projectaudit/engine/internal/similarity"
	appErr "github.com/projectaudit/engine/pkg/errors"
	"github.com/projectaudit/engine/pkg/logger"
)

// ProjectService runs the submission and review workflow.
type ProjectService interface {
	Submit(ctx context.Context, input *SubmitProjectInput) (*SubmitProjectResult, error)
	Resubmit(ctx context.Context, projectID uuid.UUID, input *ResubmitProjectInput) (*SimilarityOutcome, error)
	Review(ctx context.Context, projectID uuid.UUID, input *ReviewProjectInput) error
	// Delete is open to the submitting student and the assigned faculty.
	Delete(ctx context.Context, projectID uuid.UUID, callerEmail string) error
	ListByStudent(ctx context.Context, email string) ([]models.Project, error)
	ListByFaculty(ctx context.Context, email string) ([]models.Project, error)
	// RebuildPairwise rescores every pair of the faculty's projects and
	// rewrites both directed rows. It returns the number of pairs written.
	RebuildPairwise(ctx context.Context, facultyEmail string) (int, error)
}

type SubmitProjectInput struct {
	Title                string
	Domain               string
	Description          string
	AssignedFacultyEmail string
	SubmittedByEmail     string
	SubmittedByName      string
}

type ResubmitProjectInput struct {
	Title       string
	Description string
	// CallerEmail must match the project's submitter.
	CallerEmail string
}

type ReviewProjectInput struct {
	Status  string
	Comment *string
	// ReviewerEmail, when set, must match the project's assigned faculty.
	ReviewerEmail string
}

// SimilarityOutcome is the score snapshot reported back to the submitter.
type SimilarityOutcome struct {
	SimilarityPercentage float64         `json:"similarity_percentage"`
	SimilarityFlag       similarity.Flag `json:"similarity_flag"`
}

type SubmitProjectResult struct {
	Project models.Project
	SimilarityOutcome
	Warning string
}

const defaultRejectComment = "Rejected by faculty"

type projectService struct {
	projects   repository.ProjectRepository
	users      repository.UserRepository
	pairs      repository.SimilarityRepository
	scorer     *similarity.Scorer
	thresholds similarity.Thresholds
	now        func() time.Time
}

func NewProjectService(
	projects repository.ProjectRepository,
	users repository.UserRepository,
	pairs repository.SimilarityRepository,
	scorer *similarity.Scorer,
	thresholds similarity.Thresholds,
) ProjectService {
	return &projectService{
		projects:   projects,
		users:      users,
		pairs:      pairs,
		scorer:     scorer,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Submit(ctx context.Context, input *SubmitProjectInput) (*SubmitProjectResult, error) {
	in := *input
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.SubmittedByName = strings.TrimSpace(in.SubmittedByName)
	in.AssignedFacultyEmail = normalizeEmail(in.AssignedFacultyEmail)
	in.SubmittedByEmail = normalizeEmail(in.SubmittedByEmail)

	if in.Title == "" || in.Domain == "" || in.Description == "" ||
		in.AssignedFacultyEmail == "" || in.SubmittedByEmail == "" || in.SubmittedByName == "" {
		return nil, appErr.New(appErr.CodeInvalid, "missing required project fields")
	}

	logger.Ctx(ctx).Info("submit project called",
		zap.String("submitted_by", in.SubmittedByEmail),
		zap.String("faculty", in.AssignedFacultyEmail))

	var faculty models.User
	if err := s.users.GetByEmail(ctx, in.AssignedFacultyEmail, &faculty); err != nil || faculty.Role != models.RoleFaculty {
		if err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, err
		}
		return nil, appErr.New(appErr.CodeInvalid, "assigned faculty not found or invalid")
	}
	var student models.User
	if err := s.users.GetByEmail(ctx, in.SubmittedByEmail, &student); err != nil || student.Role != models.RoleStudent {
		if err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, err
		}
		return nil, appErr.New(appErr.CodeInvalid, "submitting user not found or is not a student")
	}

	existing, err := s.projects.ListExcludingSubmitter(ctx, in.SubmittedByEmail, nil)
	if err != nil {
		return nil, err
	}
	text := models.ProjectText(in.Title, in.Description)
	res := s.scorer.Score(ctx, text, candidatesOf(existing))
	flag := s.thresholds.Classify(res.Score)
	match := bestMatch(res, existing)

	p := models.Project{
		Title:                in.Title,
		Domain:               in.Domain,
		Description:          in.Description,
		AssignedFacultyEmail: in.AssignedFacultyEmail,
		AssignedFacultyName:  faculty.Name,
		SubmittedBy:          in.SubmittedByEmail,
		SubmittedByName:      in.SubmittedByName,
		SubmittedOn:          s.now(),
		Status:               models.StatusPending,
		SimilarityPercentage: res.Score,
		SimilarityFlag:       string(flag),
		SimilarityDetails:    similarityDetails(res, match),
	}
	if err := s.projects.Create(ctx, &p); err != nil {
		return nil, err
	}

	s.refreshPairwise(ctx, &p)

	out := &SubmitProjectResult{
		Project: p,
		SimilarityOutcome: SimilarityOutcome{
			SimilarityPercentage: round2(res.Score),
			SimilarityFlag:       flag,
		},
		Warning: similarityWarning(flag, res.Score, match),
	}

	logger.Ctx(ctx).Info("project submitted",
		zap.String("project_id", p.ID.String()),
		zap.Float64("similarity", res.Score),
		zap.String("flag", string(flag)),
		zap.String("method", string(res.Method)))
	return out, nil
}

func (s *projectService) Resubmit(ctx context.Context, projectID uuid.UUID, input *ResubmitProjectInput) (*SimilarityOutcome, error) {
	logger.Ctx(ctx).Info("resubmit project called", zap.String("project_id", projectID.String()))

	var p models.Project
	if err := s.projects.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}

	if !strings.EqualFold(normalizeEmail(input.CallerEmail), p.SubmittedBy) {
		return nil, appErr.New(appErr.CodeForbidden, "only the submitting student can resubmit a project")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, appErr.New(appErr.CodeInvalid, "title and description are required")
	}

	existing, err := s.projects.ListExcludingSubmitter(ctx, p.SubmittedBy, &p.ID)
	if err != nil {
		return nil, err
	}
	res := s.scorer.Score(ctx, models.ProjectText(title, description), candidatesOf(existing))
	flag := s.thresholds.Classify(res.Score)

	at := s.now()
	if err := s.projects.UpdateResubmission(ctx, p.ID, repository.ResubmitUpdate{
		Title:                title,
		Description:          description,
		SimilarityPercentage: res.Score,
		SimilarityFlag:       string(flag),
		SimilarityDetails:    similarityDetails(res, bestMatch(res, existing)),
		At:                   at,
	}); err != nil {
		return nil, err
	}

	p.Title, p.Description = title, description
	s.refreshPairwise(ctx, &p)

	logger.Ctx(ctx).Info("project resubmitted",
		zap.String("project_id", p.ID.String()),
		zap.Float64("similarity", res.Score),
		zap.String("flag", string(flag)))
	return &SimilarityOutcome{SimilarityPercentage: round2(res.Score), SimilarityFlag: flag}, nil
}

func (s *projectService) Review(ctx context.Context, projectID uuid.UUID, input *ReviewProjectInput) error {
	logger.Ctx(ctx).Info("review project called", zap.String("project_id", projectID.String()), zap.String("status", input.Status))

	var p models.Project
	if err := s.projects.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	switch input.Status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return appErr.New(appErr.CodeInvalid, "invalid status")
	}
	if input.ReviewerEmail != "" && !strings.EqualFold(normalizeEmail(input.ReviewerEmail), p.AssignedFacultyEmail) {
		return appErr.New(appErr.CodeForbidden, "project is assigned to another faculty member")
	}

	comment := input.Comment
	if comment != nil && *comment == "" {
		comment = nil
	}
	if input.Status == models.StatusRejected && comment == nil {
		c := defaultRejectComment
		comment = &c
	}

	if err := s.projects.UpdateReview(ctx, p.ID, repository.ReviewUpdate{
		Status:    input.Status,
		Comment:   comment,
		UpdatedAt: s.now(),
	}); err != nil {
		return err
	}
	logger.Ctx(ctx).Info("project reviewed", zap.String("project_id", p.ID.String()), zap.String("status", input.Status))
	return nil
}

func (s *projectService) Delete(ctx context.Context, projectID uuid.UUID, callerEmail string) error {
	logger.Ctx(ctx).Info("delete project", zap.String("project_id", projectID.String()))

	var p models.Project
	if err := s.projects.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	caller := normalizeEmail(callerEmail)
	if caller == "" || (!strings.EqualFold(caller, p.SubmittedBy) && !strings.EqualFold(caller, p.AssignedFacultyEmail)) {
		return appErr.New(appErr.CodeForbidden, "project belongs to another user")
	}

	if err := s.projects.DeleteCascade(ctx, projectID); err != nil {
		return err
	}
	logger.Ctx(ctx).Info("project deleted", zap.String("project_id", projectID.String()))
	return nil
}

func (s *projectService) ListByStudent(ctx context.Context, email string) ([]models.Project, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, appErr.New(appErr.CodeInvalid, "student email is required")
	}
	out, err := s.projects.ListBySubmitter(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		logger.Ctx(ctx).Debug("no projects found for student", zap.String("email", email))
	}
	return out, nil
}

func (s *projectService) ListByFaculty(ctx context.Context, email string) ([]models.Project, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, appErr.New(appErr.CodeInvalid, "faculty email is required")
	}
	return s.projects.ListByFaculty(ctx, email)
}

func (s *projectService) RebuildPairwise(ctx context.Context, facultyEmail string) (int, error) {
	facultyEmail = normalizeEmail(facultyEmail)
	if facultyEmail == "" {
		return 0, appErr.New(appErr.CodeInvalid, "faculty email is required")
	}
	projects, err := s.projects.ListByFaculty(ctx, facultyEmail)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range projects {
		for j := i + 1; j < len(projects); j++ {
			if err := ctx.Err(); err != nil {
				return written, appErr.Wrap(err, appErr.CodeUnavailable, "pairwise rebuild interrupted")
			}
			if s.writePair(ctx, &projects[i], &projects[j]) {
				written++
			}
		}
	}
	logger.Ctx(ctx).Info("pairwise similarity rebuilt",
		zap.String("faculty", facultyEmail),
		zap.Int("projects", len(projects)),
		zap.Int("pairs", written))
	return written, nil
}

// refreshPairwise rescores p against each of its faculty siblings. Failures
// are logged and the affected pair is skipped; the caller's write stands.
func (s *projectService) refreshPairwise(ctx context.Context, p *models.Project) {
	siblings, err := s.projects.ListFacultySiblings(ctx, p.AssignedFacultyEmail, p.ID)
	if err != nil {
		logger.Ctx(ctx).Error("list faculty siblings failed", zap.String("project_id", p.ID.String()), zap.Error(err))
		return
	}
	for i := range siblings {
		s.writePair(ctx, p, &siblings[i])
	}
}

func (s *projectService) writePair(ctx context.Context, a, b *models.Project) bool {
	res := s.scorer.Score(ctx, a.Text(), []similarity.Candidate{candidateOf(b)})
	ok := true
	for _, dir := range [][2]uuid.UUID{{a.ID, b.ID}, {b.ID, a.ID}} {
		if err := s.pairs.Upsert(ctx, dir[0], dir[1], res.Score); err != nil {
			logger.Ctx(ctx).Error("pairwise similarity upsert failed",
				zap.String("project_id_1", dir[0].String()),
				zap.String("project_id_2", dir[1].String()),
				zap.Error(err))
			ok = false
		}
	}
	return ok
}

// candidateOf embeds a project by title and description but compares words
// against the description alone.
func candidateOf(p *models.Project) similarity.Candidate {
	return similarity.Candidate{Ref: p.ID.String(), Text: p.Text(), LexicalText: p.Description}
}

func candidatesOf(projects []models.Project) []similarity.Candidate {
	out := make([]similarity.Candidate, len(projects))
	for i := range projects {
		out[i] = candidateOf(&projects[i])
	}
	return out
}

// bestMatch resolves the scorer's best match back to its project.
func bestMatch(res similarity.Result, existing []models.Project) *models.Project {
	if res.BestMatch == nil {
		return nil
	}
	for i := range existing {
		if existing[i].ID.String() == res.BestMatch.Ref {
			return &existing[i]
		}
	}
	return nil
}

type scoreDetails struct {
	Method         similarity.Method `json:"method"`
	BestMatchID    string            `json:"best_match_id,omitempty"`
	BestMatchTitle string            `json:"best_match_title,omitempty"`
}

func similarityDetails(res similarity.Result, match *models.Project) datatypes.JSON {
	d := scoreDetails{Method: res.Method}
	if match != nil {
		d.BestMatchID = match.ID.String()
		d.BestMatchTitle = match.Title
	}
	b, err := json.Marshal(d)
	if err != nil {
		logger.L().Warn("marshal similarity details failed", zap.Error(err))
		return nil
	}
	return datatypes.JSON(b)
}

func similarityWarning(flag similarity.Flag, score float64, match *models.Project) string {
	switch flag {
	case similarity.FlagDuplicate:
		msg := fmt.Sprintf("POTENTIAL DUPLICATE: Your project is %.1f%% similar to an existing project.", score)
		if match != nil {
			msg += fmt.Sprintf(" Similar to '%s'", match.Title)
		}
		return msg
	case similarity.FlagHighSimilarity:
		return fmt.Sprintf("HIGH SIMILARITY: Your project is %.1f%% similar to existing content.", score)
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
