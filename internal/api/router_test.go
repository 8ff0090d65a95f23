package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/internal/api/handlers"
	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/api/validators"
	"github.com/projectaudit/engine/internal/repository"
	"github.com/projectaudit/engine/internal/services"
	"github.com/projectaudit/engine/internal/similarity"
	"github.com/projectaudit/engine/internal/testutil"
	"github.com/projectaudit/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *types.APIError `json:"error"`
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) do(method, path, token string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	c.h.ServeHTTP(rr, req)

	var env envelope
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	}
	return rr.Code, env
}

func (c client) login(email, password, role string) string {
	c.t.Helper()
	code, env := c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password, "role": role})
	require.Equal(c.t, http.StatusOK, code, env.Error)
	var data types.LoginData
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	return data.AccessToken
}

func newTestRouter(t *testing.T) client {
	t.Helper()
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db)
	projects := repository.NewProjectRepository(db)
	pairs := repository.NewSimilarityRepository(db)

	secret := []byte("router-secret")
	scorer := similarity.NewScorer(similarity.LexicalEncoder{}, zap.NewNop())
	th := similarity.DefaultThresholds()
	projectSvc := services.NewProjectService(projects, users, pairs, scorer, th)
	analysisSvc, err := services.NewAnalysisService(projects, pairs, th, services.AnalysisSourceCached)
	require.NoError(t, err)
	v := validators.New()

	return client{t: t, h: NewRouter(Dependencies{
		HMACSecret:      secret,
		AuthHandler:     handlers.NewAuthHandler(services.NewAuthService(users, secret), v),
		ProjectsHandler: handlers.NewProjectsHandler(projectSvc, v),
		AnalysisHandler: handlers.NewAnalysisHandler(analysisSvc),
		SimilarityHandler: handlers.NewSimilarityHandler(types.SimilarityStatus{
			Method:     string(scorer.Method()),
			Thresholds: map[string]float64{"duplicate": th.Duplicate, "high": th.High, "medium": th.Medium},
		}, nil, projectSvc),
	})}
}

func TestSubmissionReviewFlow(t *testing.T) {
	c := newTestRouter(t)

	for _, u := range []map[string]string{
		{"name": "Prof", "email": "prof@uni.edu", "password": "pw", "role": "faculty"},
		{"name": "Ann", "email": "ann@uni.edu", "password": "pw", "role": "student"},
		{"name": "Bob", "email": "bob@uni.edu", "password": "pw", "role": "student"},
	} {
		code, env := c.do(http.MethodPost, "/api/v1/auth/register", "", u)
		require.Equal(t, http.StatusCreated, code, env.Error)
	}
	code, _ := c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "Dup", "email": "PROF@uni.edu", "password": "x", "role": "faculty"})
	assert.Equal(t, http.StatusConflict, code)

	code, env := c.do(http.MethodGet, "/api/v1/faculty", "", nil)
	require.Equal(t, http.StatusOK, code)
	var faculty []types.UserSummary
	require.NoError(t, json.Unmarshal(env.Data, &faculty))
	require.Len(t, faculty, 1)

	ann := c.login("ann@uni.edu", "pw", "student")
	bob := c.login("bob@uni.edu", "pw", "student")
	prof := c.login("prof@uni.edu", "pw", "faculty")

	submit := func(token, email, name, desc string) types.SubmitProjectData {
		t.Helper()
		code, env := c.do(http.MethodPost, "/api/v1/projects", token, map[string]string{
			"title": "Crop Yield", "domain": "agritech", "description": desc,
			"assignedFacultyEmail": "prof@uni.edu", "submittedByEmail": email, "submittedByName": name,
		})
		require.Equal(t, http.StatusCreated, code, env.Error)
		var out types.SubmitProjectData
		require.NoError(t, json.Unmarshal(env.Data, &out))
		return out
	}
	first := submit(ann, "ann@uni.edu", "Ann", "machine learning for crop yield prediction")
	assert.Equal(t, "UNIQUE", first.Project.SimilarityFlag)
	second := submit(bob, "bob@uni.edu", "Bob", "machine learning for crop yield prediction using satellite data")
	assert.Equal(t, "MEDIUM_SIMILARITY", second.Project.SimilarityFlag)
	assert.Equal(t, 66.67, second.Project.SimilarityPercentage)

	code, _ = c.do(http.MethodPost, "/api/v1/projects", ann, map[string]string{
		"title": "t", "domain": "d", "description": "x",
		"assignedFacultyEmail": "prof@uni.edu", "submittedByEmail": "bob@uni.edu", "submittedByName": "Bob",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = c.do(http.MethodGet, "/api/v1/projects/faculty", prof, nil)
	require.Equal(t, http.StatusOK, code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, second.Project.ID, listed[0]["id"])
	assert.Equal(t, "MEDIUM_SIMILARITY", listed[0]["similarity_flag"])
	assert.Contains(t, listed[0], "assignedFacultyEmail")

	code, _ = c.do(http.MethodPut, "/api/v1/projects/"+first.Project.ID+"/status", prof, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, code)
	code, env = c.do(http.MethodPut, "/api/v1/projects/"+first.Project.ID+"/status", prof, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid", env.Error.Code)

	code, env = c.do(http.MethodGet, "/api/v1/projects/student", ann, nil)
	require.Equal(t, http.StatusOK, code)
	listed = nil
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "rejected", listed[0]["status"])
	assert.Equal(t, "Rejected by faculty", listed[0]["faculty_comment"])

	code, env = c.do(http.MethodGet, "/api/v1/analysis/stats", prof, nil)
	require.Equal(t, http.StatusOK, code)
	var st services.FacultyStats
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, services.FacultyStats{Total: 2, Pending: 1, Rejected: 1, AvgSimilarity: 33.33}, st)

	code, env = c.do(http.MethodGet, "/api/v1/analysis/similarity?email=prof@uni.edu", prof, nil)
	require.Equal(t, http.StatusOK, code)
	var report services.AnalysisReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Zero(t, report.TotalDuplicates)
	assert.Zero(t, report.TotalHighSimilarity)

	code, env = c.do(http.MethodPut, "/api/v1/projects/"+first.Project.ID, bob, map[string]string{
		"title": "Hijacked", "description": "replaced text",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Error.Code)
	code, _ = c.do(http.MethodDelete, "/api/v1/projects/"+first.Project.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = c.do(http.MethodGet, "/api/v1/projects/student?email=ann@uni.edu", bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = c.do(http.MethodGet, "/api/v1/projects/student?email=ann@uni.edu", ann, nil)
	require.Equal(t, http.StatusOK, code)
	listed = nil
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Crop Yield", listed[0]["title"])
	assert.Equal(t, "machine learning for crop yield prediction", listed[0]["description"])
	assert.Equal(t, "rejected", listed[0]["status"])

	code, env = c.do(http.MethodPut, "/api/v1/projects/"+first.Project.ID, ann, map[string]string{
		"title": "Crop Yield", "description": "machine learning for crop yield prediction using satellite data",
	})
	require.Equal(t, http.StatusOK, code)
	var outcome services.SimilarityOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	assert.Equal(t, similarity.FlagDuplicate, outcome.SimilarityFlag)

	code, env = c.do(http.MethodPost, "/api/v1/similarity/rebuild", prof, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"pairs":1}`, string(env.Data))

	code, _ = c.do(http.MethodDelete, "/api/v1/projects/"+first.Project.ID, ann, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = c.do(http.MethodDelete, "/api/v1/projects/"+first.Project.ID, ann, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestAccessControl(t *testing.T) {
	c := newTestRouter(t)
	c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "Ann", "email": "ann@uni.edu", "password": "pw", "role": "student"})

	code, _ := c.do(http.MethodGet, "/api/v1/projects/student", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = c.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ann@uni.edu", "password": "pw", "role": "faculty"})
	assert.Equal(t, http.StatusUnauthorized, code)

	ann := c.login("ann@uni.edu", "pw", "student")
	code, _ = c.do(http.MethodGet, "/api/v1/analysis/stats", ann, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = c.do(http.MethodPut, "/api/v1/projects/not-a-uuid/status", ann, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := c.do(http.MethodGet, "/api/v1/ai/status", ann, nil)
	require.Equal(t, http.StatusOK, code)
	var st types.SimilarityStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "lexical", st.Method)
	assert.Equal(t, 92.0, st.Thresholds["duplicate"])
}

func TestRequestValidation(t *testing.T) {
	c := newTestRouter(t)

	code, env := c.do(http.MethodPost, "/api/v1/auth/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no data received", env.Error.Message)

	code, env = c.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "A", "email": "a@uni.edu", "password": "x", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "role must be one of: student faculty", env.Error.Message)

	code, _ = c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}
