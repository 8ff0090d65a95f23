package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/testutil"
	appErr "github.com/projectaudit/engine/pkg/errors"
	"github.com/projectaudit/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

func seedProject(t *testing.T, db *gorm.DB, title, faculty, student string, score float64, at time.Time) models.Project {
	t.Helper()
	p := models.Project{
		Title:                title,
		Domain:               "ml",
		Description:          title + " description",
		AssignedFacultyEmail: faculty,
		AssignedFacultyName:  "Dr " + faculty,
		SubmittedBy:          student,
		SubmittedByName:      student,
		SubmittedOn:          at,
		Status:               models.StatusPending,
		SimilarityPercentage: score,
		SimilarityFlag:       "UNIQUE",
	}
	require.NoError(t, NewProjectRepository(db).Create(context.Background(), &p))
	return p
}

func TestUserRepositoryGetByEmailNormalizes(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := models.User{Name: "Ada", Email: "ada@uni.edu", PasswordHash: "x", Role: models.RoleFaculty}
	require.NoError(t, repo.Create(ctx, &u))
	assert.NotEqual(t, uuid.Nil, u.ID)

	var got models.User
	require.NoError(t, repo.GetByEmail(ctx, "  ADA@uni.edu ", &got))
	assert.Equal(t, u.ID, got.ID)

	err := repo.GetByEmail(ctx, "nobody@uni.edu", &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestUserRepositoryDuplicateEmailConflicts(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "A", Email: "a@uni.edu", PasswordHash: "x", Role: models.RoleStudent}))
	err := repo.Create(ctx, &models.User{Name: "B", Email: "a@uni.edu", PasswordHash: "y", Role: models.RoleStudent})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "got %v", err)
}

func TestUserRepositoryListByRole(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	for _, u := range []models.User{
		{Name: "Zed", Email: "z@uni.edu", Role: models.RoleFaculty},
		{Name: "Amy", Email: "a@uni.edu", Role: models.RoleFaculty},
		{Name: "Sam", Email: "s@uni.edu", Role: models.RoleStudent},
	} {
		u.PasswordHash = "x"
		require.NoError(t, repo.Create(ctx, &u))
	}

	faculty, err := repo.ListByRole(ctx, models.RoleFaculty)
	require.NoError(t, err)
	require.Len(t, faculty, 2)
	assert.Equal(t, "Amy", faculty[0].Name)
	assert.Equal(t, "Zed", faculty[1].Name)
}

func TestProjectRepositoryListings(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	p1 := seedProject(t, db, "one", "f@uni.edu", "s1@uni.edu", 10, base)
	p2 := seedProject(t, db, "two", "f@uni.edu", "s2@uni.edu", 80, base.Add(time.Hour))
	p3 := seedProject(t, db, "three", "f@uni.edu", "s1@uni.edu", 10, base.Add(2*time.Hour))
	p4 := seedProject(t, db, "four", "g@uni.edu", "s2@uni.edu", 0, base.Add(3*time.Hour))

	mine, err := repo.ListBySubmitter(ctx, "S1@uni.edu")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, p3.ID, mine[0].ID)
	assert.Equal(t, p1.ID, mine[1].ID)

	faculty, err := repo.ListByFaculty(ctx, "f@uni.edu")
	require.NoError(t, err)
	require.Len(t, faculty, 3)
	assert.Equal(t, []uuid.UUID{p2.ID, p3.ID, p1.ID}, []uuid.UUID{faculty[0].ID, faculty[1].ID, faculty[2].ID})

	others, err := repo.ListExcludingSubmitter(ctx, "s1@uni.edu", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{p2.ID, p4.ID}, ids(others))

	others, err = repo.ListExcludingSubmitter(ctx, "s1@uni.edu", &p2.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{p4.ID}, ids(others))

	siblings, err := repo.ListFacultySiblings(ctx, "f@uni.edu", p1.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{p2.ID, p3.ID}, ids(siblings))
}

func TestProjectRepositoryReviewAndResubmit(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	p := seedProject(t, db, "one", "f@uni.edu", "s1@uni.edu", 10, time.Now().UTC())

	comment := "needs scope"
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateReview(ctx, p.ID, ReviewUpdate{Status: models.StatusRejected, Comment: &comment, UpdatedAt: now}))

	var got models.Project
	require.NoError(t, repo.GetByID(ctx, p.ID, &got))
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.FacultyComment)
	assert.Equal(t, comment, *got.FacultyComment)
	require.NotNil(t, got.UpdatedAt)

	later := now.Add(time.Hour)
	require.NoError(t, repo.UpdateResubmission(ctx, p.ID, ResubmitUpdate{
		Title: "one v2", Description: "rewritten", SimilarityPercentage: 70, SimilarityFlag: "MEDIUM_SIMILARITY", At: later,
	}))
	require.NoError(t, repo.GetByID(ctx, p.ID, &got))
	assert.Equal(t, "one v2", got.Title)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.FacultyComment)
	assert.Equal(t, 70.0, got.SimilarityPercentage)
	assert.True(t, got.SubmittedOn.Equal(later))

	err := repo.UpdateReview(ctx, uuid.New(), ReviewUpdate{Status: models.StatusApproved, UpdatedAt: now})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestSimilarityUpsertIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSimilarityRepository(db)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, repo.Upsert(ctx, a, b, 40))
	require.NoError(t, repo.Upsert(ctx, a, b, 55.5))
	require.NoError(t, repo.Upsert(ctx, b, a, 55.5))

	var count int64
	require.NoError(t, db.Model(&models.ProjectSimilarity{}).Where("project_id_1 = ? AND project_id_2 = ?", a, b).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	row, err := repo.Get(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 55.5, row.Similarity)

	_, err = repo.Get(ctx, a, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestSimilarityListAmong(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSimilarityRepository(db)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, repo.Upsert(ctx, a, b, 10))
	require.NoError(t, repo.Upsert(ctx, b, a, 10))
	require.NoError(t, repo.Upsert(ctx, a, c, 20))

	rows, err := repo.ListAmong(ctx, []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListAmong(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteCascadeRemovesPairwiseRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	projects := NewProjectRepository(db)
	sims := NewSimilarityRepository(db)
	ctx := context.Background()

	p1 := seedProject(t, db, "one", "f@uni.edu", "s1@uni.edu", 0, time.Now().UTC())
	p2 := seedProject(t, db, "two", "f@uni.edu", "s2@uni.edu", 0, time.Now().UTC())
	p3 := seedProject(t, db, "three", "f@uni.edu", "s3@uni.edu", 0, time.Now().UTC())
	require.NoError(t, sims.Upsert(ctx, p1.ID, p2.ID, 30))
	require.NoError(t, sims.Upsert(ctx, p2.ID, p1.ID, 30))
	require.NoError(t, sims.Upsert(ctx, p2.ID, p3.ID, 50))

	require.NoError(t, projects.DeleteCascade(ctx, p1.ID))

	var count int64
	require.NoError(t, db.Model(&models.ProjectSimilarity{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	err := projects.DeleteCascade(ctx, p1.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestFacultyListingsIgnoreEmailCase(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProjectRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	p1 := seedProject(t, db, "one", "f@uni.edu", "s1@uni.edu", 0, base)
	p2 := seedProject(t, db, "two", "F@Uni.edu", "s2@uni.edu", 0, base.Add(time.Hour))

	siblings, err := repo.ListFacultySiblings(ctx, "f@uni.edu", p1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p2.ID}, ids(siblings))

	faculty, err := repo.ListByFaculty(ctx, "F@UNI.EDU")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{p1.ID, p2.ID}, ids(faculty))
}

func TestSimilarityDeleteForProject(t *testing.T) {
	db := testutil.NewTestDB(t)
	sims := NewSimilarityRepository(db)
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, sims.Upsert(ctx, a, b, 10))
	require.NoError(t, sims.Upsert(ctx, c, a, 20))
	require.NoError(t, sims.Upsert(ctx, b, c, 30))

	require.NoError(t, sims.DeleteForProject(ctx, a))
	rows, err := sims.ListAmong(ctx, []uuid.UUID{a, b, c})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b, rows[0].ProjectID1)
}

func ids(ps []models.Project) []uuid.UUID {
	out := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
