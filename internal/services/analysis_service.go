package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/repository"
	"github.com/projectaudit/engine/internal/similarity"
	"github.com/projectaudit/engine/pkg/logger"
)

// Where pair scores in the analysis report come from.
const (
	// AnalysisSourceCached uses max(a, b) of the per-project snapshots.
	AnalysisSourceCached = "cached"
	// AnalysisSourcePairwise uses the stored pairwise rows.
	AnalysisSourcePairwise = "pairwise"
)

type AnalysisService interface {
	Analyze(ctx context.Context, facultyEmail string) (*AnalysisReport, error)
	Stats(ctx context.Context, facultyEmail string) (*FacultyStats, error)
}

type PairMember struct {
	Title   string `json:"title"`
	Student string `json:"student"`
	Status  string `json:"status"`
}

type SimilarPair struct {
	Project1        PairMember `json:"project1"`
	Project2        PairMember `json:"project2"`
	SimilarityScore float64    `json:"similarity_score"`
}

type AnalysisReport struct {
	TotalDuplicates     int           `json:"total_duplicates"`
	TotalHighSimilarity int           `json:"total_high_similarity"`
	AnalysisTimestamp   string        `json:"analysis_timestamp"`
	DuplicatePairs      []SimilarPair `json:"duplicate_pairs"`
	HighSimilarityPairs []SimilarPair `json:"high_similarity_pairs"`
}

type FacultyStats struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	Duplicates    int     `json:"duplicates"`
	AvgSimilarity float64 `json:"avg_similarity"`
}

type analysisService struct {
	projects   repository.ProjectRepository
	pairs      repository.SimilarityRepository
	thresholds similarity.Thresholds
	source     string
	now        func() time.Time
}

func NewAnalysisService(
	projects repository.ProjectRepository,
	pairs repository.SimilarityRepository,
	thresholds similarity.Thresholds,
	source string,
) (AnalysisService, error) {
	switch source {
	case "":
		source = AnalysisSourceCached
	case AnalysisSourceCached, AnalysisSourcePairwise:
	default:
		return nil, fmt.Errorf("unknown analysis source %q", source)
	}
	return &analysisService{
		projects:   projects,
		pairs:      pairs,
		thresholds: thresholds,
		source:     source,
		now:        time.Now,
	}, nil
}

var _ AnalysisService = (*analysisService)(nil)

func (s *analysisService) Analyze(ctx context.Context, facultyEmail string) (*AnalysisReport, error) {
	projects, err := s.projects.ListByFaculty(ctx, normalizeEmail(facultyEmail))
	if err != nil {
		return nil, err
	}

	score, err := s.pairScorer(ctx, projects)
	if err != nil {
		return nil, err
	}

	report := &AnalysisReport{
		AnalysisTimestamp:   s.now().Format(time.RFC3339),
		DuplicatePairs:      []SimilarPair{},
		HighSimilarityPairs: []SimilarPair{},
	}
	for i := range projects {
		for j := i + 1; j < len(projects); j++ {
			sim := score(&projects[i], &projects[j])
			switch s.thresholds.Classify(sim) {
			case similarity.FlagDuplicate:
				report.DuplicatePairs = append(report.DuplicatePairs, newPair(&projects[i], &projects[j], sim))
			case similarity.FlagHighSimilarity:
				report.HighSimilarityPairs = append(report.HighSimilarityPairs, newPair(&projects[i], &projects[j], sim))
			}
		}
	}
	report.TotalDuplicates = len(report.DuplicatePairs)
	report.TotalHighSimilarity = len(report.HighSimilarityPairs)

	logger.Ctx(ctx).Info("similarity analysis built",
		zap.String("faculty", facultyEmail),
		zap.String("source", s.source),
		zap.Int("projects", len(projects)),
		zap.Int("duplicates", report.TotalDuplicates),
		zap.Int("high_similarity", report.TotalHighSimilarity))
	return report, nil
}

type pairScoreFunc func(a, b *models.Project) float64

func (s *analysisService) pairScorer(ctx context.Context, projects []models.Project) (pairScoreFunc, error) {
	if s.source == AnalysisSourceCached {
		return func(a, b *models.Project) float64 {
			return max(a.SimilarityPercentage, b.SimilarityPercentage)
		}, nil
	}

	ids := make([]uuid.UUID, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}
	rows, err := s.pairs.ListAmong(ctx, ids)
	if err != nil {
		return nil, err
	}
	stored := make(map[[2]uuid.UUID]float64, len(rows))
	for _, r := range rows {
		stored[[2]uuid.UUID{r.ProjectID1, r.ProjectID2}] = r.Similarity
	}
	return func(a, b *models.Project) float64 {
		ab, okAB := stored[[2]uuid.UUID{a.ID, b.ID}]
		ba, okBA := stored[[2]uuid.UUID{b.ID, a.ID}]
		switch {
		case okAB && okBA:
			return max(ab, ba)
		case okAB:
			return ab
		case okBA:
			return ba
		}
		return 0
	}, nil
}

func newPair(a, b *models.Project, score float64) SimilarPair {
	return SimilarPair{
		Project1:        PairMember{Title: a.Title, Student: a.SubmittedByName, Status: a.Status},
		Project2:        PairMember{Title: b.Title, Student: b.SubmittedByName, Status: b.Status},
		SimilarityScore: score,
	}
}

func (s *analysisService) Stats(ctx context.Context, facultyEmail string) (*FacultyStats, error) {
	projects, err := s.projects.ListByFaculty(ctx, normalizeEmail(facultyEmail))
	if err != nil {
		return nil, err
	}

	st := &FacultyStats{Total: len(projects)}
	sum := 0.0
	for i := range projects {
		p := &projects[i]
		switch p.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusApproved:
			st.Approved++
		case models.StatusRejected:
			st.Rejected++
		}
		if p.SimilarityPercentage >= s.thresholds.Duplicate {
			st.Duplicates++
		}
		sum += p.SimilarityPercentage
	}
	if st.Total > 0 {
		st.AvgSimilarity = round2(sum / float64(st.Total))
	}
	return st, nil
}
