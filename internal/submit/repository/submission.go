package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/judge/model"
	"ojcore/internal/judge/verdict"
)

const (
	defaultSubmissionCacheTTL      = 30 * time.Minute
	defaultSubmissionCacheEmptyTTL = 5 * time.Minute
	submissionCacheKeyPrefix       = "submission:"
)

var (
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("submission already exists")
	ErrStaleAttempt        = errors.New("judge attempt already superseded")
)

// Submission represents a judge submission record.
type Submission struct {
	SubmissionID   string               `json:"submission_id"`
	ProblemID      int64                `json:"problem_id"`
	UserID         int64                `json:"user_id"`
	Language       string               `json:"language"`
	SourceCode     string               `json:"source_code"`
	Verdict        verdict.Verdict      `json:"verdict"`
	Score          int                  `json:"score"`
	TimeMs         int64                `json:"time_ms"`
	MemoryKB       int64                `json:"memory_kb"`
	CompileInfo    string               `json:"compile_info,omitempty"`
	JudgeInfo      string               `json:"judge_info,omitempty"`
	ErrorRef       *verdict.ErrorRef    `json:"error_ref,omitempty"`
	Tests          []verdict.TestResult `json:"tests,omitempty"`
	JudgeAttempt   int64                `json:"judge_attempt"`
	PendingAttempt int64                `json:"pending_attempt"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *Submission) error
	GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error)
	MarkDispatched(ctx context.Context, submissionID string, attempt int64) error
	ApplyResult(ctx context.Context, result model.JudgeResult) (bool, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db     db.Database
	cached *cache.Aside[*Submission]
}

// NewSubmissionRepository creates a submission repository with defaults.
func NewSubmissionRepository(database db.Database, cacheClient cache.BasicOps) *MySQLSubmissionRepository {
	return NewSubmissionRepositoryWithTTL(database, cacheClient, defaultSubmissionCacheTTL, defaultSubmissionCacheEmptyTTL)
}

// NewSubmissionRepositoryWithTTL creates a submission repository with custom TTL.
func NewSubmissionRepositoryWithTTL(database db.Database, cacheClient cache.BasicOps, ttl, emptyTTL time.Duration) *MySQLSubmissionRepository {
	if ttl <= 0 {
		ttl = defaultSubmissionCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultSubmissionCacheEmptyTTL
	}
	return &MySQLSubmissionRepository{
		db:     database,
		cached: cache.NewAside[*Submission](cacheClient, ttl, emptyTTL),
	}
}

const submissionColumns = `submission_id, problem_id, user_id, language, source_code, verdict, score, time_ms, memory_kb,
	compile_info, judge_info, error_ref, test_results, judge_attempt, pending_attempt, created_at, updated_at`

// Create inserts a PENDING submission.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.SubmissionID == "" {
		return errors.New("submissionID is required")
	}
	if submission.ProblemID <= 0 {
		return errors.New("problemID is required")
	}
	if submission.Language == "" {
		return errors.New("language is required")
	}
	submission.Verdict = verdict.Pending

	query := `
		INSERT INTO submissions
		(submission_id, problem_id, user_id, language, source_code, verdict)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.SubmissionID,
		submission.ProblemID,
		submission.UserID,
		submission.Language,
		submission.SourceCode,
		string(submission.Verdict),
	)
	if _, dup := db.UniqueViolation(err); dup {
		return ErrDuplicateSubmission
	}
	if err != nil {
		return err
	}
	if tx == nil {
		r.invalidate(ctx, submission.SubmissionID)
	}
	return nil
}

// MarkDispatched resets the submission to PENDING for attempt. Results of
// earlier attempts are rejected from then on. It returns ErrStaleAttempt when
// the record already holds attempt or a newer one.
func (r *MySQLSubmissionRepository) MarkDispatched(ctx context.Context, submissionID string, attempt int64) error {
	query := `
		UPDATE submissions
		SET verdict = ?, score = 0, time_ms = 0, memory_kb = 0, compile_info = '', judge_info = '',
		    error_ref = NULL, test_results = NULL, pending_attempt = ?
		WHERE submission_id = ? AND pending_attempt < ?
	`
	affected, err := r.exec(ctx, query, string(verdict.Pending), attempt, submissionID, attempt)
	if err != nil {
		return err
	}
	if affected == 0 {
		var pending int64
		row := r.db.QueryRow(ctx, "SELECT pending_attempt FROM submissions WHERE submission_id = ? LIMIT 1", submissionID)
		if err := row.Scan(&pending); err != nil {
			if db.IsNoRows(err) {
				return ErrSubmissionNotFound
			}
			return err
		}
		return fmt.Errorf("%w: attempt %d, recorded %d", ErrStaleAttempt, attempt, pending)
	}
	r.invalidate(ctx, submissionID)
	return nil
}

// ApplyResult stores a terminal verdict for result.Attempt. It reports false
// without error when the result is a duplicate or was superseded.
func (r *MySQLSubmissionRepository) ApplyResult(ctx context.Context, result model.JudgeResult) (bool, error) {
	if result.SubmissionID == "" {
		return false, errors.New("submissionID is required")
	}
	if !result.Verdict.Terminal() {
		return false, errors.New("verdict must be terminal")
	}
	errorRef, err := nullJSON(result.ErrorRef, result.ErrorRef == nil)
	if err != nil {
		return false, err
	}
	tests, err := nullJSON(result.Tests, len(result.Tests) == 0)
	if err != nil {
		return false, err
	}
	score := result.Score
	if result.Verdict == verdict.SystemError {
		score = 0
	}

	query := `
		UPDATE submissions
		SET verdict = ?, score = ?, time_ms = ?, memory_kb = ?, compile_info = ?, judge_info = ?,
		    error_ref = ?, test_results = ?, judge_attempt = ?
		WHERE submission_id = ? AND judge_attempt < ? AND pending_attempt <= ?
	`
	affected, err := r.exec(ctx, query,
		string(result.Verdict),
		score,
		result.TimeMs,
		result.MemoryKB,
		result.CompileInfo,
		result.JudgeInfo,
		errorRef,
		tests,
		result.Attempt,
		result.SubmissionID,
		result.Attempt,
		result.Attempt,
	)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	r.invalidate(ctx, result.SubmissionID)
	return true, nil
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	if tx != nil {
		return r.getByIDFromDB(ctx, tx, submissionID)
	}
	submission, err := r.cached.Get(ctx, submissionCacheKey(submissionID), func(ctx context.Context) (*Submission, error) {
		submission, err := r.getByIDFromDB(ctx, nil, submissionID)
		if errors.Is(err, ErrSubmissionNotFound) {
			return nil, cache.ErrAbsent
		}
		return submission, err
	})
	if errors.Is(err, cache.ErrAbsent) {
		return nil, ErrSubmissionNotFound
	}
	return submission, err
}

func (r *MySQLSubmissionRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE submission_id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)
	submission := &Submission{}
	var (
		v           string
		compileInfo sql.NullString
		judgeInfo   sql.NullString
		errorRef    sql.NullString
		tests       sql.NullString
	)
	if err := row.Scan(
		&submission.SubmissionID,
		&submission.ProblemID,
		&submission.UserID,
		&submission.Language,
		&submission.SourceCode,
		&v,
		&submission.Score,
		&submission.TimeMs,
		&submission.MemoryKB,
		&compileInfo,
		&judgeInfo,
		&errorRef,
		&tests,
		&submission.JudgeAttempt,
		&submission.PendingAttempt,
		&submission.CreatedAt,
		&submission.UpdatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	submission.Verdict = verdict.Verdict(v)
	submission.CompileInfo = compileInfo.String
	submission.JudgeInfo = judgeInfo.String
	if errorRef.Valid && errorRef.String != "" {
		submission.ErrorRef = &verdict.ErrorRef{}
		if err := json.Unmarshal([]byte(errorRef.String), submission.ErrorRef); err != nil {
			return nil, err
		}
	}
	if tests.Valid && tests.String != "" {
		if err := json.Unmarshal([]byte(tests.String), &submission.Tests); err != nil {
			return nil, err
		}
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MySQLSubmissionRepository) invalidate(ctx context.Context, submissionID string) {
	r.cached.Forget(ctx, submissionCacheKey(submissionID))
}

func nullJSON(v interface{}, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func submissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}
