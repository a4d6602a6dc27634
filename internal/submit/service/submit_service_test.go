package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/artifact"
	"ojcore/internal/judge/model"
	judgeRepo "ojcore/internal/judge/repository"
	"ojcore/internal/judge/verdict"
	problemRepo "ojcore/internal/problem/repository"
	"ojcore/internal/submit/repository"
	appErr "ojcore/pkg/errors"
)

type memSubmissions struct {
	mu   sync.Mutex
	rows map[string]*repository.Submission
}

func (m *memSubmissions) Create(ctx context.Context, tx db.Transaction, sub *repository.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	cp.Verdict = verdict.Pending
	m.rows[sub.SubmissionID] = &cp
	return nil
}

func (m *memSubmissions) GetByID(ctx context.Context, tx db.Transaction, id string) (*repository.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *memSubmissions) MarkDispatched(ctx context.Context, id string, attempt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.rows[id]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	if sub.PendingAttempt >= attempt {
		return repository.ErrStaleAttempt
	}
	sub.PendingAttempt = attempt
	sub.Verdict = verdict.Pending
	sub.Score = 0
	return nil
}

func (m *memSubmissions) ApplyResult(ctx context.Context, res model.JudgeResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.rows[res.SubmissionID]
	if !ok || sub.JudgeAttempt >= res.Attempt || sub.PendingAttempt > res.Attempt {
		return false, nil
	}
	sub.Verdict, sub.Score, sub.JudgeAttempt, sub.JudgeInfo = res.Verdict, res.Score, res.Attempt, res.JudgeInfo
	return true, nil
}

func (m *memSubmissions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type staticProblems struct {
	problem problemRepo.Problem
	tests   []problemRepo.TestCase
}

func (p staticProblems) GetProblem(ctx context.Context, id int64) (problemRepo.Problem, error) {
	if id != p.problem.ID {
		return problemRepo.Problem{}, appErr.New(appErr.ProblemNotFound)
	}
	return p.problem, nil
}

func (p staticProblems) ListTestCases(ctx context.Context, id int64) ([]problemRepo.TestCase, error) {
	return p.tests, nil
}

func addProblem(argTag string) staticProblems {
	input := func(name, content string, order int) problemRepo.TestInput {
		return problemRepo.TestInput{Name: name, TypeTag: argTag, Content: content, OrderIndex: order}
	}
	p := problemRepo.Problem{ID: 1, FunctionName: "add", ReturnType: "INT", Difficulty: "EASY"}
	p.ApplyDefaults()
	return staticProblems{
		problem: p,
		tests: []problemRepo.TestCase{
			{ID: 11, ProblemID: 1, Weight: 10, Sample: true, Expected: " 3 ", Inputs: []problemRepo.TestInput{input("a", "1", 0), input("b", "2", 1)}},
			{ID: 12, ProblemID: 1, Weight: 10, Expected: "-5", Inputs: []problemRepo.TestInput{input("a", "-2", 0), input("b", "-3", 1)}},
		},
	}
}

type failingDispatcher struct{}

func (failingDispatcher) DispatchJob(ctx context.Context, job model.JudgeJob) error {
	return appErr.Wrapf(errors.New("broker down"), appErr.MQPublishFailed, "publish failed")
}

type offloadingHarness struct {
	mu      sync.Mutex
	removed []string
}

func (h *offloadingHarness) Attach(ctx context.Context, job *model.JudgeJob, source string) error {
	job.HarnessSource = ""
	job.HarnessRef = &model.HarnessRef{Bucket: "harness", Key: "harness/" + job.SubmissionID, Size: int64(len(source))}
	return nil
}

func (h *offloadingHarness) Remove(ctx context.Context, ref *model.HarnessRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, ref.Key)
	return nil
}

type fixture struct {
	svc         *SubmitService
	submissions *memSubmissions
	queue       *mq.MemoryQueue
	status      *judgeRepo.StatusRepository
	redis       *miniredis.Miniredis
}

func newFixture(t *testing.T, problems staticProblems, dispatcher JobDispatcher) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)

	queue := mq.NewMemoryQueue()
	if dispatcher == nil {
		dispatcher = dispatch.New(queue, dispatch.Config{})
	}
	f := &fixture{
		submissions: &memSubmissions{rows: make(map[string]*repository.Submission)},
		queue:       queue,
		status:      judgeRepo.NewStatusRepository(redisCache, "", time.Hour),
		redis:       mr,
	}
	svc, err := NewSubmitService(Config{
		Submissions: f.submissions,
		Problems:    problems,
		Attempts:    judgeRepo.NewAttemptRepository(redisCache, "", time.Hour),
		Harness:     artifact.NewStore(nil, artifact.Config{}),
		Dispatcher:  dispatcher,
		Status:      f.status,
		Cache:       redisCache,
		RateLimit:   RateLimitConfig{UserMax: 3, Window: time.Minute},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) jobs(t *testing.T) []model.JudgeJob {
	t.Helper()
	var jobs []model.JudgeJob
	for _, msg := range f.queue.Published(dispatch.DefaultJobsTopic) {
		job, err := dispatch.DecodeJob(msg)
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	return jobs
}

func resultMessage(t *testing.T, res model.JudgeResult) *mq.Message {
	t.Helper()
	body, err := json.Marshal(res)
	require.NoError(t, err)
	msg := mq.NewMessage(res.SubmissionID, body)
	msg.SetHeader(model.AttemptHeader, strconv.FormatInt(res.Attempt, 10))
	return msg
}

const pythonSolution = "class Solution:\n    def add(self, a, b):\n        return a + b\n"

func TestSubmitDispatchesCanonicalJob(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)

	resp, err := f.svc.Submit(context.Background(), SubmitRequest{ProblemID: 1, UserID: 9, Language: "Python3", SourceCode: pythonSolution})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Attempt)
	assert.Equal(t, verdict.Pending, resp.Verdict)

	jobs := f.jobs(t)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, resp.SubmissionID, job.SubmissionID)
	assert.Equal(t, "python", job.Language)
	assert.Equal(t, int64(1000), job.TimeLimitMs)
	assert.Equal(t, int64(256), job.MemoryLimitMB)
	assert.Equal(t, verdict.FailFast, job.AggregationMode)
	require.Len(t, job.Tests, 2)
	assert.Equal(t, "1\n2\n", job.Tests[0].Stdin)
	assert.Equal(t, "3", job.Tests[0].Expected)
	assert.True(t, job.Tests[0].Sample)
	assert.Contains(t, job.HarnessSource, "def add(self, a, b):")

	status, err := f.status.Get(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Pending, status.Verdict)
}

func TestSubmitUnsupportedLanguageBeforeDispatch(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{ProblemID: 1, UserID: 9, Language: "cobol", SourceCode: "DISPLAY 'HI'."})
	require.Error(t, err)
	assert.Equal(t, appErr.UnsupportedLanguage, appErr.GetCode(err))
	assert.Zero(t, f.submissions.count())
	assert.Empty(t, f.queue.Published(dispatch.DefaultJobsTopic))
}

func TestSubmitUnsupportedTypeTag(t *testing.T) {
	f := newFixture(t, addProblem("QUATERNION"), nil)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{ProblemID: 1, UserID: 9, Language: "java", SourceCode: "class Solution {}"})
	assert.Equal(t, appErr.UnsupportedTypeTag, appErr.GetCode(err))
	assert.Zero(t, f.submissions.count())
	assert.Empty(t, f.queue.Published(dispatch.DefaultJobsTopic))
}

func TestSubmitDispatchFailureRecordsSystemError(t *testing.T) {
	f := newFixture(t, addProblem("INT"), failingDispatcher{})

	resp, err := f.svc.Submit(context.Background(), SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution})
	require.Error(t, err)
	assert.Equal(t, verdict.SystemError, resp.Verdict)

	sub, err := f.svc.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.SystemError, sub.Verdict)
	assert.Contains(t, sub.JudgeInfo, "dispatch failed")
}

func TestSubmitDispatchFailureRemovesOffloadedHarness(t *testing.T) {
	f := newFixture(t, addProblem("INT"), failingDispatcher{})
	store := &offloadingHarness{}
	f.svc.harness = store

	resp, err := f.svc.Submit(context.Background(), SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution})
	require.Error(t, err)
	assert.Equal(t, []string{"harness/" + resp.SubmissionID}, store.removed)
}

func TestHandleResultMessageIsIdempotent(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	ctx := context.Background()
	resp, err := f.svc.Submit(ctx, SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution})
	require.NoError(t, err)

	ac := model.JudgeResult{SubmissionID: resp.SubmissionID, Attempt: 1, Verdict: verdict.Accepted, Score: 20}
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, ac)))

	wa := ac
	wa.Verdict, wa.Score = verdict.WrongAnswer, 10
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, wa)))

	sub, err := f.svc.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, sub.Verdict)
	assert.Equal(t, 20, sub.Score)

	status, err := f.status.Get(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, status.Verdict)
}

func TestRejudgeSupersedesOlderAttempt(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	ctx := context.Background()
	resp, err := f.svc.Submit(ctx, SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution})
	require.NoError(t, err)

	re, err := f.svc.Rejudge(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), re.Attempt)
	require.Len(t, f.jobs(t), 2)

	old := model.JudgeResult{SubmissionID: resp.SubmissionID, Attempt: 1, Verdict: verdict.WrongAnswer}
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, old)))
	sub, err := f.svc.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Pending, sub.Verdict)

	fresh := model.JudgeResult{SubmissionID: resp.SubmissionID, Attempt: 2, Verdict: verdict.Accepted, Score: 20}
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, fresh)))
	sub, err = f.svc.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, sub.Verdict)
}

func TestRejudgeAfterAttemptCounterLoss(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	ctx := context.Background()
	resp, err := f.svc.Submit(ctx, SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.svc.Rejudge(ctx, resp.SubmissionID)
		require.NoError(t, err)
	}
	third := model.JudgeResult{SubmissionID: resp.SubmissionID, Attempt: 3, Verdict: verdict.WrongAnswer}
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, third)))

	f.redis.FlushAll()

	re, err := f.svc.Rejudge(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), re.Attempt)

	fresh := model.JudgeResult{SubmissionID: resp.SubmissionID, Attempt: 4, Verdict: verdict.Accepted, Score: 20}
	require.NoError(t, f.svc.HandleResultMessage(ctx, resultMessage(t, fresh)))
	sub, err := f.svc.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, sub.Verdict)
	assert.Equal(t, int64(4), sub.JudgeAttempt)
}

func TestSubmitIdempotencyKey(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	req := SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution, IdempotencyKey: "k1"}

	first, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.SubmissionID, second.SubmissionID)
	assert.Len(t, f.jobs(t), 1)
}

func TestSubmitRateLimit(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	req := SubmitRequest{ProblemID: 1, UserID: 9, Language: "python", SourceCode: pythonSolution}
	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(context.Background(), req)
		require.NoError(t, err)
	}
	_, err := f.svc.Submit(context.Background(), req)
	assert.Equal(t, appErr.SubmitTooFrequently, appErr.GetCode(err))
}

func TestGetSubmissionNotFound(t *testing.T) {
	f := newFixture(t, addProblem("INT"), nil)
	_, err := f.svc.GetSubmission(context.Background(), "missing")
	assert.Equal(t, appErr.SubmissionNotFound, appErr.GetCode(err))
}
