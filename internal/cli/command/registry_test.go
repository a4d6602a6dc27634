package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSubmitCreateFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("class Solution: pass\n"), 0o644))

	params := Params{}
	params.Set("problem_id", "7")
	params.Set("user_id", "3")
	params.Set("lang", "python")
	params.Set("source_code", "_file_")
	params.Set("file", path)
	params.Set("idempotency_key", "k-1")

	req, err := BuildRequest(Registry()["submit create"], params)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/v1/submissions", req.Path)
	assert.Equal(t, "k-1", req.Headers["Idempotency-Key"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "python", body["language"])
	assert.Equal(t, float64(7), body["problem_id"])
	assert.Equal(t, "class Solution: pass\n", body["source_code"])
}

func TestBuildRequestPathParam(t *testing.T) {
	params := Params{}
	params.Set("submission_id", "abc")
	req, err := BuildRequest(Registry()["submit rejudge"], params)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/submissions/abc/rejudge", req.Path)
	assert.Nil(t, req.Body)

	_, err = BuildRequest(Registry()["judge status"], Params{})
	assert.Error(t, err)
}

func TestWatchCommandPollsStatus(t *testing.T) {
	cmd, ok := Registry()["judge watch"]
	require.True(t, ok)
	assert.True(t, cmd.Watch)
	assert.Equal(t, "GET", cmd.Method)
}

func TestParseParamsRejectsBareToken(t *testing.T) {
	params, err := ParseParams([]string{"ID=abc", "lang=go"})
	require.NoError(t, err)
	assert.Equal(t, "abc", params.Get("id"))

	_, err = ParseParams([]string{"oops"})
	assert.Error(t, err)
	_, err = ParseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestBuildRequestEscapesPathParam(t *testing.T) {
	params := Params{}
	params.Set("id", "a/b")
	req, err := BuildRequest(Registry()["submit get"], params)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/submissions/a%2Fb", req.Path)
}

func TestBuildSubmitCreateRejectsBadProblemID(t *testing.T) {
	params := Params{}
	params.Set("problem_id", "seven")
	params.Set("user_id", "1")
	params.Set("source_code", "x")
	_, err := BuildRequest(Registry()["submit create"], params)
	assert.ErrorContains(t, err, "invalid problem_id")
}
