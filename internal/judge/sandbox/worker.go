// Package sandbox compiles a generated harness and runs it against the tests
// of one judge job.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ojcore/internal/judge/model"
	"ojcore/internal/judge/sandbox/config"
	"ojcore/internal/judge/sandbox/observer"
	"ojcore/internal/judge/sandbox/profile"
	"ojcore/internal/judge/sandbox/runner"
	"ojcore/internal/judge/sandbox/spec"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

// ErrStaleJob is returned when a newer attempt supersedes the running job.
var ErrStaleJob = errors.New("judge attempt superseded")

// WorkerConfig controls the worker's filesystem layout and limits.
type WorkerConfig struct {
	WorkRoot    string            `yaml:"workRoot"`
	KeepWorkDir bool              `yaml:"keepWorkDir"`
	Wall        runner.WallPolicy `yaml:"wall"`
}

// Worker is the sandbox scheduling unit.
// It executes the compile/run workflow for one job at a time per lease.
type Worker struct {
	runner         runner.Runner
	langRepo       config.LanguageSpecRepository
	profileRepo    config.TaskProfileRepository
	pool           *Pool
	cfg            WorkerConfig
	statusReporter StatusReporter
	metrics        observer.MetricsRecorder
}

// NewWorker creates a new worker with required dependencies.
func NewWorker(
	r runner.Runner,
	langRepo config.LanguageSpecRepository,
	profileRepo config.TaskProfileRepository,
	pool *Pool,
	cfg WorkerConfig,
) *Worker {
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = filepath.Join(os.TempDir(), "ojcore-judge")
	}
	if cfg.Wall.Factor <= 0 {
		cfg.Wall = runner.DefaultWallPolicy
	}
	if pool == nil {
		pool = NewPool(1, nil)
	}
	return &Worker{
		runner:      r,
		langRepo:    langRepo,
		profileRepo: profileRepo,
		pool:        pool,
		cfg:         cfg,
		metrics:     observer.NoopMetricsRecorder{},
	}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// SetMetrics injects the metrics recorder used for per-test observations.
func (w *Worker) SetMetrics(metrics observer.MetricsRecorder) {
	if metrics != nil {
		w.metrics = metrics
	}
}

// Execute compiles the harness and runs the job's tests in order.
// Program outcomes, compile errors included, are reported in the Outcome.
// Infrastructure failures are returned as errors together with the partial
// outcome gathered so far. When check reports the job stale, Execute stops
// before the next test and returns ErrStaleJob.
func (w *Worker) Execute(ctx context.Context, job model.JudgeJob, harnessSource string, check StaleFunc) (verdict.Outcome, error) {
	if err := job.Validate(); err != nil {
		return verdict.Outcome{}, err
	}
	if w.runner == nil || w.langRepo == nil || w.profileRepo == nil {
		return verdict.Outcome{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}

	lang, err := w.langRepo.GetLanguageSpec(ctx, job.Language)
	if err != nil {
		return verdict.Outcome{}, err
	}
	runProfile, err := w.profileRepo.GetTaskProfile(ctx, profile.TaskTypeRun, lang.ID)
	if err != nil {
		return verdict.Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "load run profile failed")
	}
	var compileProfile profile.TaskProfile
	if lang.CompileEnabled {
		compileProfile, err = w.profileRepo.GetTaskProfile(ctx, profile.TaskTypeCompile, lang.ID)
		if err != nil {
			return verdict.Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "load compile profile failed")
		}
	} else {
		compileProfile = profile.TaskProfile{LanguageID: lang.ID, TaskType: profile.TaskTypeCompile}
	}

	lease, err := w.pool.Acquire(ctx)
	if err != nil {
		return verdict.Outcome{}, err
	}
	defer lease.Release()
	defer func() {
		if ctx.Err() != nil {
			w.abort(ctx, job.SubmissionID)
		}
	}()

	root := filepath.Join(w.cfg.WorkRoot, fmt.Sprintf("%s-%d", job.SubmissionID, job.Attempt))
	if err := os.MkdirAll(root, 0755); err != nil {
		return verdict.Outcome{}, appErr.Wrapf(err, appErr.JudgeSystemError, "create submission work root failed")
	}
	if !w.cfg.KeepWorkDir {
		defer func() {
			_ = os.RemoveAll(root)
		}()
	}

	agg := verdict.NewAggregator(job.AggregationMode)
	total := len(job.Tests)
	w.reportStatus(ctx, job, total, 0)

	compileDir := filepath.Join(root, "compile")
	compileRes, err := w.runner.Compile(ctx, runner.CompileRequest{
		SubmissionID: job.SubmissionID,
		Language:     lang,
		Profile:      compileProfile,
		WorkDir:      compileDir,
		Source:       harnessSource,
	})
	if err != nil {
		return agg.Outcome(), err
	}
	agg.Compile(verdict.CompileOutcome{
		OK:       compileRes.OK,
		Info:     compileRes.Log,
		TimeMs:   compileRes.TimeMs,
		MemoryKB: compileRes.MemoryKB,
	})
	if !compileRes.OK {
		logger.Info(ctx, "harness compilation failed", zap.String("language", lang.ID), zap.Int("exit_code", compileRes.ExitCode))
		return agg.Outcome(), nil
	}

	limits := runner.ResolveLimits(spec.ResourceLimit{
		CPUTimeMs: job.TimeLimitMs,
		MemoryMB:  job.MemoryLimitMB,
	}, runProfile.DefaultLimits, lang, w.cfg.Wall)

	for i, tc := range job.Tests {
		if w.isStale(ctx, check) {
			return agg.Outcome(), ErrStaleJob
		}
		testID := strconv.FormatInt(tc.TestID, 10)
		runRes, err := w.runner.Run(ctx, runner.RunRequest{
			SubmissionID: job.SubmissionID,
			TestID:       testID,
			Language:     lang,
			Profile:      runProfile,
			WorkDir:      compileDir,
			IODir:        filepath.Join(root, "tests", fmt.Sprintf("%03d-%s", i, testID)),
			Stdin:        tc.Stdin,
			Limits:       limits,
		})
		if err != nil {
			logger.Warn(ctx, "sandbox run failed", zap.String("test_id", testID), zap.Error(err))
			return agg.Outcome(), err
		}

		v := verdict.Classify(verdict.Input{
			ExitCode:      runRes.ExitCode,
			TimedOut:      runRes.TimedOut,
			OomKilled:     runRes.OomKilled,
			TimeMs:        runRes.TimeMs,
			MemoryKB:      runRes.MemoryKB,
			OutputKB:      runRes.OutputKB,
			Stdout:        runRes.Stdout,
			Stderr:        runRes.Stderr,
			Expected:      tc.Expected,
			TimeLimitMs:   limits.CPUTimeMs,
			MemoryLimitKB: limits.MemoryMB * 1024,
			OutputLimitKB: limits.OutputMB * 1024,
		})
		w.metrics.ObserveRun(ctx, lang.ID, v.Short(), runRes.TimeMs, runRes.MemoryKB, runRes.OutputKB)

		cont := agg.Add(verdict.TestResult{
			TestID:   tc.TestID,
			Verdict:  v,
			TimeMs:   runRes.TimeMs,
			MemoryKB: runRes.MemoryKB,
			ExitCode: runRes.ExitCode,
			Weight:   tc.Weight,
			Sample:   tc.Sample,
			Actual:   runRes.Stdout,
			Expected: tc.Expected,
			Stderr:   runRes.Stderr,
		})
		w.reportStatus(ctx, job, total, i+1)
		if !cont {
			break
		}
	}
	return agg.Outcome(), nil
}

// abort kills sandboxes a cancelled run may have left behind.
func (w *Worker) abort(ctx context.Context, submissionID string) {
	if err := w.runner.Abort(context.WithoutCancel(ctx), submissionID); err != nil {
		logger.Warn(ctx, "abort sandbox failed", zap.Error(err))
	}
}

func (w *Worker) isStale(ctx context.Context, check StaleFunc) bool {
	if check == nil {
		return false
	}
	stale, err := check(ctx)
	if err != nil {
		// The attempt guard on apply still rejects a stale result.
		logger.Warn(ctx, "stale check failed", zap.Error(err))
		return false
	}
	return stale
}

func (w *Worker) reportStatus(ctx context.Context, job model.JudgeJob, total, done int) {
	if w.statusReporter == nil {
		return
	}
	err := w.statusReporter.ReportStatus(ctx, model.JudgeStatus{
		SubmissionID: job.SubmissionID,
		Attempt:      job.Attempt,
		Verdict:      verdict.Judging,
		Progress:     model.Progress{TotalTests: total, DoneTests: done},
		ReceivedAt:   receivedAt(job),
	})
	if err != nil {
		logger.Warn(ctx, "report judge status failed", zap.Error(err))
	}
}

func receivedAt(job model.JudgeJob) int64 {
	if job.CreatedAt > 0 {
		return job.CreatedAt
	}
	return time.Now().Unix()
}
