package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

type mapStatus map[string]model.JudgeStatus

func (m mapStatus) Get(ctx context.Context, id string) (model.JudgeStatus, error) {
	s, ok := m[id]
	if !ok {
		return model.JudgeStatus{}, appErr.New(appErr.NotFound).WithMessage("submission status not found")
	}
	return s, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewJudgeController(mapStatus{
		"s1": {SubmissionID: "s1", Attempt: 1, Verdict: verdict.Judging, Progress: model.Progress{TotalTests: 3, DoneTests: 1}},
	}).Register(r)
	return r
}

func TestGetStatus(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/judge/status/s1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data model.JudgeStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, verdict.Judging, body.Data.Verdict)
	assert.Equal(t, 1, body.Data.Progress.DoneTests)
}

func TestGetStatusMissing(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/judge/status/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
