package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/cli/command"
	httpclient "ojcore/internal/cli/http"
	"ojcore/internal/cli/state"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "message": "Success", "data": data})
}

func newSession(t *testing.T, srv *httptest.Server, in string) (*Session, *bytes.Buffer, *state.SessionState) {
	t.Helper()
	out := &bytes.Buffer{}
	st := &state.SessionState{}
	client := httpclient.New(srv.URL, time.Second)
	s := New(client, command.Registry(), st, Options{
		StatePath:     filepath.Join(t.TempDir(), "state.json"),
		WatchInterval: 5 * time.Millisecond,
		WatchTimeout:  time.Second,
	}, strings.NewReader(in), out)
	return s, out, st
}

func TestSubmitRemembersSubmission(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		writeEnvelope(w, http.StatusAccepted, map[string]interface{}{"submission_id": "sub-1", "attempt": 1, "verdict": "PENDING"})
	}))
	defer srv.Close()

	s, out, st := newSession(t, srv, "")
	err := s.Exec(context.Background(), `submit create problem_id=1 user_id=2 lang=python source_code="print(1)" idempotency_key=k9`)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", st.LastSubmissionID)
	assert.Equal(t, "k9", gotKey)
	assert.Contains(t, out.String(), "HTTP 202")

	saved, err := state.Load(s.opts.StatePath)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", saved.LastSubmissionID)
}

func TestWatchStopsAtTerminalVerdict(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/judge/status/sub-1", r.URL.Path)
		n := atomic.AddInt32(&calls, 1)
		status := model.JudgeStatus{SubmissionID: "sub-1", Verdict: verdict.Judging, Progress: model.Progress{TotalTests: 2, DoneTests: int(n) - 1}}
		if n >= 3 {
			status.Verdict = verdict.Accepted
			status.Score = 100
			status.Progress.DoneTests = 2
		}
		writeEnvelope(w, http.StatusOK, status)
	}))
	defer srv.Close()

	s, out, st := newSession(t, srv, "")
	st.LastSubmissionID = "sub-1"
	require.NoError(t, s.Exec(context.Background(), "judge watch"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, out.String(), "final: ACCEPTED score=100")
}

func TestRunPromptsForMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/submissions/xyz", r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"submission_id": "xyz"})
	}))
	defer srv.Close()

	s, out, _ := newSession(t, srv, "submit get\nxyz\nexit\n")
	s.Run(context.Background())
	assert.Contains(t, out.String(), "submission_id:")
	assert.Contains(t, out.String(), "HTTP 200")
	assert.Contains(t, out.String(), "bye")
}
