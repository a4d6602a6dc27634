package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/judge/verdict"
	"ojcore/internal/submit/repository"
	"ojcore/internal/submit/service"
	appErr "ojcore/pkg/errors"
)

type fakeService struct {
	lastReq service.SubmitRequest
	subs    map[string]*repository.Submission
}

func (f *fakeService) Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResponse, error) {
	f.lastReq = req
	if req.Language == "cobol" {
		return service.SubmitResponse{}, appErr.New(appErr.UnsupportedLanguage)
	}
	return service.SubmitResponse{SubmissionID: "s1", Attempt: 1, Verdict: verdict.Pending}, nil
}

func (f *fakeService) Rejudge(ctx context.Context, id string) (service.SubmitResponse, error) {
	if _, ok := f.subs[id]; !ok {
		return service.SubmitResponse{}, appErr.New(appErr.SubmissionNotFound)
	}
	return service.SubmitResponse{SubmissionID: id, Attempt: 2, Verdict: verdict.Pending}, nil
}

func (f *fakeService) GetSubmission(ctx context.Context, id string) (*repository.Submission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	return sub, nil
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewSubmitController(svc).Register(r)
	return r
}

func TestCreateSubmission(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/submissions",
		strings.NewReader(`{"problem_id":1,"user_id":2,"language":"python","source_code":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", " k1 ")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "k1", svc.lastReq.IdempotencyKey)
	var body struct {
		Data service.SubmitResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.Data.SubmissionID)
	assert.Equal(t, verdict.Pending, body.Data.Verdict)
}

func TestCreateSubmissionBadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(`{"problem_id":1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSubmissionUnsupportedLanguage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submissions",
		strings.NewReader(`{"problem_id":1,"user_id":2,"language":"cobol","source_code":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(w, req)

	assert.Equal(t, appErr.UnsupportedLanguage.HTTPStatus(), w.Code)
}

func TestGetSubmissionHidesSource(t *testing.T) {
	svc := &fakeService{subs: map[string]*repository.Submission{
		"s1": {SubmissionID: "s1", SourceCode: "secret", Verdict: verdict.Accepted, Score: 100, JudgeAttempt: 1},
	}}
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/submissions/s1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	var body struct {
		Data SubmissionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, verdict.Accepted, body.Data.Verdict)
	assert.Equal(t, int64(1), body.Data.Attempt)
}

func TestRejudgeMissing(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submissions/nope/rejudge", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
