// Package repository reads problems and their test cases. The tables are
// owned by the problem service; this package never writes them.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	defaultLocalTTL        = time.Minute
	defaultLocalSize       = 512
	problemKeyPrefix       = "problem:judge:"
	testCasesKeyPrefix     = "problem:tests:"
)

// ErrProblemNotFound is returned when the problem does not exist.
var ErrProblemNotFound = errors.New("problem not found")

// ProblemRepository loads what the judging pipeline needs from the problem
// store.
type ProblemRepository interface {
	GetProblem(ctx context.Context, problemID int64) (Problem, error)
	ListTestCases(ctx context.Context, problemID int64) ([]TestCase, error)
}

// Options tunes the caches in front of MySQL.
type Options struct {
	TTL       time.Duration `yaml:"ttl"`
	EmptyTTL  time.Duration `yaml:"emptyTTL"`
	LocalTTL  time.Duration `yaml:"localTTL"`
	LocalSize int           `yaml:"localSize"`
}

// MySQLProblemRepository reads through an in-process LRU, then redis, then
// MySQL.
type MySQLProblemRepository struct {
	db db.Database

	problems *cache.LRU[Problem]
	tests    *cache.LRU[[]TestCase]

	sharedProblems *cache.Aside[Problem]
	sharedTests    *cache.Aside[[]TestCase]
}

func NewProblemRepository(database db.Database, cacheClient cache.BasicOps, opts Options) *MySQLProblemRepository {
	if opts.TTL <= 0 {
		opts.TTL = defaultProblemTTL
	}
	if opts.EmptyTTL <= 0 {
		opts.EmptyTTL = defaultProblemEmptyTTL
	}
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = defaultLocalTTL
	}
	if opts.LocalSize <= 0 {
		opts.LocalSize = defaultLocalSize
	}
	return &MySQLProblemRepository{
		db:             database,
		problems:       cache.NewLRU[Problem](opts.LocalSize, opts.LocalTTL),
		tests:          cache.NewLRU[[]TestCase](opts.LocalSize, opts.LocalTTL),
		sharedProblems: cache.NewAside[Problem](cacheClient, opts.TTL, opts.EmptyTTL),
		sharedTests:    cache.NewAside[[]TestCase](cacheClient, opts.TTL, opts.EmptyTTL),
	}
}

// GetProblem returns the problem with defaults applied.
func (r *MySQLProblemRepository) GetProblem(ctx context.Context, problemID int64) (Problem, error) {
	if problemID <= 0 {
		return Problem{}, appErr.ValidationError("problem_id", "required")
	}
	key := problemKeyPrefix + strconv.FormatInt(problemID, 10)
	if p, ok := r.problems.Get(key); ok {
		return p, nil
	}

	p, err := r.sharedProblems.Get(ctx, key, func(ctx context.Context) (Problem, error) {
		p, err := r.getProblemFromDB(ctx, problemID)
		if errors.Is(err, ErrProblemNotFound) {
			return Problem{}, cache.ErrAbsent
		}
		return p, err
	})
	if errors.Is(err, cache.ErrAbsent) {
		return Problem{}, appErr.Wrap(ErrProblemNotFound, appErr.ProblemNotFound)
	}
	if err != nil {
		return Problem{}, appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
	}
	p.ApplyDefaults()
	r.problems.Set(key, p, 0)
	return p, nil
}

// ListTestCases returns the problem's tests ordered by order index, each with
// its inputs ordered by order index.
func (r *MySQLProblemRepository) ListTestCases(ctx context.Context, problemID int64) ([]TestCase, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	key := testCasesKeyPrefix + strconv.FormatInt(problemID, 10)
	if tests, ok := r.tests.Get(key); ok {
		return tests, nil
	}

	tests, err := r.sharedTests.Get(ctx, key, func(ctx context.Context) ([]TestCase, error) {
		tests, err := r.listTestCasesFromDB(ctx, problemID)
		if err == nil && len(tests) == 0 {
			return nil, cache.ErrAbsent
		}
		return tests, err
	})
	if errors.Is(err, cache.ErrAbsent) {
		return nil, appErr.Newf(appErr.TestCaseNotFound, "problem %d has no test cases", problemID)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load test cases failed")
	}
	r.tests.Set(key, tests, 0)
	return tests, nil
}

func (r *MySQLProblemRepository) getProblemFromDB(ctx context.Context, problemID int64) (Problem, error) {
	query := `
		SELECT id, title, function_name, return_type, time_limit_sec, memory_limit_mb, difficulty, aggregation_mode
		FROM problem
		WHERE id = ?`
	var (
		p          Problem
		timeSec    sql.NullInt64
		memMB      sql.NullInt64
		difficulty sql.NullString
		mode       sql.NullString
	)
	err := r.db.QueryRow(ctx, query, problemID).Scan(
		&p.ID, &p.Title, &p.FunctionName, &p.ReturnType,
		&timeSec, &memMB, &difficulty, &mode,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return Problem{}, ErrProblemNotFound
		}
		return Problem{}, err
	}
	p.TimeLimitSec = timeSec.Int64
	p.MemoryLimitMB = memMB.Int64
	p.Difficulty = difficulty.String
	p.AggregationMode = verdict.AggregationMode(mode.String)
	return p, nil
}

func (r *MySQLProblemRepository) listTestCasesFromDB(ctx context.Context, problemID int64) ([]TestCase, error) {
	query := `
		SELECT tc.id, tc.order_index, tc.is_sample, tc.weight, tc.expected_output, tc.expected_type,
		       i.param_name, i.type_tag, i.content, i.order_index
		FROM test_case tc
		LEFT JOIN test_case_input i ON i.test_case_id = tc.id
		WHERE tc.problem_id = ?
		ORDER BY tc.order_index, tc.id, i.order_index`
	rows, err := r.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []TestCase
	index := make(map[int64]int)
	for rows.Next() {
		var (
			tc         TestCase
			weight     sql.NullInt64
			name       sql.NullString
			typeTag    sql.NullString
			content    sql.NullString
			inputOrder sql.NullInt64
		)
		if err := rows.Scan(
			&tc.ID, &tc.OrderIndex, &tc.Sample, &weight, &tc.Expected, &tc.ExpectedType,
			&name, &typeTag, &content, &inputOrder,
		); err != nil {
			return nil, err
		}
		pos, ok := index[tc.ID]
		if !ok {
			tc.ProblemID = problemID
			tc.Weight = int(weight.Int64)
			if !weight.Valid || tc.Weight <= 0 {
				tc.Weight = DefaultTestWeight
			}
			tests = append(tests, tc)
			pos = len(tests) - 1
			index[tc.ID] = pos
		}
		if typeTag.Valid {
			tests[pos].Inputs = append(tests[pos].Inputs, TestInput{
				Name:       name.String,
				TypeTag:    typeTag.String,
				Content:    content.String,
				OrderIndex: int(inputOrder.Int64),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tests {
		inputs := tests[i].Inputs
		sort.SliceStable(inputs, func(a, b int) bool { return inputs[a].OrderIndex < inputs[b].OrderIndex })
	}
	sort.SliceStable(tests, func(a, b int) bool { return tests[a].OrderIndex < tests[b].OrderIndex })
	return tests, nil
}
