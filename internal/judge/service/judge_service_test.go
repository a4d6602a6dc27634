package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/common/mq"
	"ojcore/internal/dispatch"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/sandbox"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	results []execResult
	// block makes Execute wait for cancellation.
	block bool
}

type execResult struct {
	out verdict.Outcome
	err error
}

func (f *fakeExecutor) Execute(ctx context.Context, job model.JudgeJob, source string, check sandbox.StaleFunc) (verdict.Outcome, error) {
	if f.block {
		<-ctx.Done()
		return verdict.Outcome{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].out, f.results[i].err
}

type memHarness struct {
	mu      sync.Mutex
	removed []string
}

func (h *memHarness) Fetch(ctx context.Context, job model.JudgeJob) (string, error) {
	if job.HarnessRef != nil {
		return "print(1)", nil
	}
	return job.HarnessSource, nil
}

func (h *memHarness) Remove(ctx context.Context, ref *model.HarnessRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, ref.Key)
	return nil
}

type recordingPublisher struct {
	results []model.JudgeResult
	err     error
}

func (p *recordingPublisher) PublishResult(ctx context.Context, res model.JudgeResult) error {
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, res)
	return nil
}

type memStatus struct {
	mu       sync.Mutex
	statuses []model.JudgeStatus
}

func (m *memStatus) Get(ctx context.Context, id string) (model.JudgeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return model.JudgeStatus{}, appErr.New(appErr.NotFound)
	}
	return m.statuses[len(m.statuses)-1], nil
}

func (m *memStatus) Save(ctx context.Context, s model.JudgeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, s)
	return nil
}

func (m *memStatus) last() model.JudgeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[len(m.statuses)-1]
}

type fixedAttempts struct{ latest int64 }

func (f fixedAttempts) IsStale(ctx context.Context, id string, attempt int64) (bool, error) {
	return f.latest > attempt, nil
}

type fakeLock struct {
	mu        sync.Mutex
	held      bool
	heldUntil time.Time
	unlocked  bool
	extendOK  bool
	ttl       time.Duration
}

func newFakeLock() *fakeLock {
	return &fakeLock{extendOK: true, ttl: time.Minute}
}

func (l *fakeLock) TryLock(ctx context.Context, id string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held || time.Now().Before(l.heldUntil) {
		return "", appErr.New(appErr.JudgeJobLocked)
	}
	return "token", nil
}

func (l *fakeLock) Extend(ctx context.Context, id, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.extendOK, nil
}

func (l *fakeLock) Unlock(ctx context.Context, id, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocked = true
	return nil
}

func (l *fakeLock) TTL() time.Duration { return l.ttl }

type fixture struct {
	svc       *Service
	exec      *fakeExecutor
	harness   *memHarness
	publisher *recordingPublisher
	status    *memStatus
	lock      *fakeLock
}

func newFixture(t *testing.T, latest int64, results ...execResult) *fixture {
	t.Helper()
	f := &fixture{
		exec:      &fakeExecutor{results: results},
		harness:   &memHarness{},
		publisher: &recordingPublisher{},
		status:    &memStatus{},
		lock:      newFakeLock(),
	}
	f.svc = f.service(t, latest, f.publisher, 20*time.Millisecond)
	return f
}

func (f *fixture) service(t *testing.T, latest int64, publisher ResultPublisher, lockWait time.Duration) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Executor:  f.exec,
		Harness:   f.harness,
		Publisher: publisher,
		Status:    f.status,
		Attempts:  fixedAttempts{latest: latest},
		Lock:      f.lock,
		ExecRetry: dispatch.RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: 2},
		LockWait:  lockWait,
	})
	require.NoError(t, err)
	return svc
}

func jobMessage(t *testing.T, attempt int64) *mq.Message {
	t.Helper()
	return encodeJob(t, sampleJob(attempt))
}

func encodeJob(t *testing.T, job model.JudgeJob) *mq.Message {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	msg := mq.NewMessage(job.SubmissionID, body)
	msg.SetHeader(model.AttemptHeader, strconv.FormatInt(job.Attempt, 10))
	return msg
}

func sampleJob(attempt int64) model.JudgeJob {
	return model.JudgeJob{
		SubmissionID:  "sub-1",
		Attempt:       attempt,
		Language:      "python",
		HarnessSource: "print(1)",
		Tests: []model.TestSpec{
			{TestID: 1, Stdin: "1\n", Expected: "1", Weight: 10},
			{TestID: 2, Stdin: "2\n", Expected: "2", Weight: 10},
		},
	}
}

func accepted() verdict.Outcome {
	return verdict.Outcome{
		Verdict: verdict.Accepted,
		Score:   20,
		TimeMs:  12,
		Tests: []verdict.TestResult{
			{TestID: 1, Verdict: verdict.Accepted, Score: 10},
			{TestID: 2, Verdict: verdict.Accepted, Score: 10},
		},
	}
}

func TestHandleMessagePublishesVerdict(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))

	require.Len(t, f.publisher.results, 1)
	res := f.publisher.results[0]
	assert.Equal(t, verdict.Accepted, res.Verdict)
	assert.Equal(t, 20, res.Score)
	assert.Equal(t, int64(1), res.Attempt)
	assert.True(t, f.lock.unlocked)

	assert.Equal(t, verdict.Judging, f.status.statuses[0].Verdict)
	final := f.status.last()
	assert.Equal(t, verdict.Accepted, final.Verdict)
	assert.Equal(t, 2, final.Progress.DoneTests)
}

func TestHandleMessageRetriesInfraErrors(t *testing.T) {
	f := newFixture(t, 1,
		execResult{err: appErr.New(appErr.SandboxError).WithMessage("cgroup busy")},
		execResult{out: accepted()},
	)

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))
	require.Len(t, f.publisher.results, 1)
	assert.Equal(t, verdict.Accepted, f.publisher.results[0].Verdict)
}

func TestHandleMessageRecordsSystemErrorAfterRetries(t *testing.T) {
	partial := verdict.Outcome{Tests: []verdict.TestResult{{TestID: 1, Verdict: verdict.Accepted, Score: 10}}}
	f := newFixture(t, 1, execResult{out: partial, err: appErr.New(appErr.SandboxError).WithMessage("helper crashed")})

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))

	require.Len(t, f.publisher.results, 1)
	res := f.publisher.results[0]
	assert.Equal(t, verdict.SystemError, res.Verdict)
	assert.Zero(t, res.Score)
	assert.Len(t, res.Tests, 1)
	assert.Contains(t, res.JudgeInfo, "helper crashed")
	assert.Equal(t, 3, f.exec.calls, "one try plus two retries")
	assert.Equal(t, int(appErr.SandboxError), f.status.last().ErrorCode)
}

func TestHandleMessageDropsStaleJob(t *testing.T) {
	f := newFixture(t, 3, execResult{out: accepted()})

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 2)))
	assert.Empty(t, f.publisher.results)
	assert.Empty(t, f.status.statuses)
}

func TestHandleMessageDiscardsSupersededRun(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted(), err: sandbox.ErrStaleJob})

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))
	assert.Empty(t, f.publisher.results)
	assert.Equal(t, 1, f.exec.calls, "stale runs are not retried")
}

func TestHandleMessageLockContention(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})
	f.lock.held = true

	err := f.svc.HandleMessage(context.Background(), jobMessage(t, 1))
	assert.Equal(t, appErr.JudgeJobLocked, appErr.GetCode(err))
	assert.Empty(t, f.publisher.results)
}

func TestHandleMessagePublishFailureRedelivers(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})
	f.publisher.err = errors.New("broker down")

	err := f.svc.HandleMessage(context.Background(), jobMessage(t, 1))
	require.Error(t, err)
	assert.False(t, dispatch.IsPermanent(err))
}

func TestHandleMessageMalformedIsPermanent(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})

	err := f.svc.HandleMessage(context.Background(), mq.NewMessage("x", []byte("not json")))
	require.Error(t, err)
	assert.True(t, dispatch.IsPermanent(err))
}

func TestHandleMessageLockLostDiscardsRun(t *testing.T) {
	f := newFixture(t, 1)
	f.exec.block = true
	f.lock.ttl = 30 * time.Millisecond
	f.lock.extendOK = false

	err := f.svc.HandleMessage(context.Background(), jobMessage(t, 1))
	require.Error(t, err)
	assert.Equal(t, appErr.LockFailed, appErr.GetCode(err))
	assert.False(t, dispatch.IsPermanent(err), "the job must be redelivered")
	assert.Empty(t, f.publisher.results)
	assert.NotEqual(t, verdict.SystemError, f.status.last().Verdict)
}

func TestHandleMessageWaitsOutCrashedWorkerLock(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})
	f.lock.heldUntil = time.Now().Add(150 * time.Millisecond)

	queue := mq.NewMemoryQueue()
	defer queue.Close()
	d := dispatch.New(queue, dispatch.Config{
		Jobs: dispatch.ConsumerConfig{MaxRetries: 1, RetryDelayMs: 1, MaxRetryDelay: 5},
	})
	svc := f.service(t, 1, d, 2*time.Second)

	require.NoError(t, d.ConsumeJobs(context.Background(), svc.HandleMessage))
	require.NoError(t, queue.Start())
	require.NoError(t, d.DispatchJob(context.Background(), sampleJob(1)))

	require.Eventually(t, func() bool {
		return len(queue.Published(d.Topics().Results)) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, queue.Published(d.Topics().JobsDLQ))

	res, err := dispatch.DecodeResult(queue.Published(d.Topics().Results)[0])
	require.NoError(t, err)
	assert.Equal(t, verdict.Accepted, res.Verdict)
}

func TestHandleMessageSkipsFinishedAttempt(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})
	require.NoError(t, f.status.Save(context.Background(), model.JudgeStatus{SubmissionID: "sub-1", Attempt: 1, Verdict: verdict.WrongAnswer}))

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))
	assert.Empty(t, f.publisher.results)
	assert.Zero(t, f.exec.calls)
}

func TestHandleMessageRemovesOffloadedHarness(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})
	job := sampleJob(1)
	job.HarnessSource = ""
	job.HarnessRef = &model.HarnessRef{Key: "harness/sub-1/1-abc.zst"}

	require.NoError(t, f.svc.HandleMessage(context.Background(), encodeJob(t, job)))
	require.Len(t, f.publisher.results, 1)
	assert.Equal(t, []string{"harness/sub-1/1-abc.zst"}, f.harness.removed)
}

func TestHandleMessageKeepsInlineHarnessUntouched(t *testing.T) {
	f := newFixture(t, 1, execResult{out: accepted()})

	require.NoError(t, f.svc.HandleMessage(context.Background(), jobMessage(t, 1)))
	assert.Empty(t, f.harness.removed)
}
