package repository

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db/dbtest"
	"ojcore/internal/judge/verdict"
	appErr "ojcore/pkg/errors"
)

func problemDB() *dbtest.Fake {
	return &dbtest.Fake{
		QueryFunc: func(query string, args []interface{}) ([][]interface{}, error) {
			switch {
			case strings.Contains(query, "FROM problem") && args[0] == int64(7):
				return [][]interface{}{{
					int64(7), "Two Sum", "twoSum", "INT_ARRAY",
					sql.NullInt64{}, sql.NullInt64{}, sql.NullString{String: "medium", Valid: true}, sql.NullString{String: "score_all", Valid: true},
				}}, nil
			case strings.Contains(query, "FROM test_case") && args[0] == int64(7):
				return [][]interface{}{
					{int64(2), 1, false, sql.NullInt64{Int64: 20, Valid: true}, "[1,2]", "INT_ARRAY",
						sql.NullString{String: "target", Valid: true}, sql.NullString{String: "INT", Valid: true}, sql.NullString{String: "9", Valid: true}, sql.NullInt64{Int64: 1, Valid: true}},
					{int64(2), 1, false, sql.NullInt64{Int64: 20, Valid: true}, "[1,2]", "INT_ARRAY",
						sql.NullString{String: "nums", Valid: true}, sql.NullString{String: "INT_ARRAY", Valid: true}, sql.NullString{String: "[2,7,11]", Valid: true}, sql.NullInt64{Int64: 0, Valid: true}},
					{int64(1), 0, true, sql.NullInt64{}, "[0,1]", "INT_ARRAY",
						sql.NullString{String: "nums", Valid: true}, sql.NullString{String: "INT_ARRAY", Valid: true}, sql.NullString{String: "[2,7]", Valid: true}, sql.NullInt64{Int64: 0, Valid: true}},
				}, nil
			}
			return nil, nil
		},
	}
}

func newRepo(t *testing.T, fake *dbtest.Fake) *MySQLProblemRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	return NewProblemRepository(fake, c, Options{})
}

func TestGetProblemAppliesDefaults(t *testing.T) {
	fake := problemDB()
	repo := newRepo(t, fake)

	p, err := repo.GetProblem(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "twoSum", p.FunctionName)
	assert.Equal(t, DifficultyMedium, p.Difficulty)
	assert.Equal(t, int64(2), p.TimeLimitSec)
	assert.Equal(t, int64(256), p.MemoryLimitMB)
	assert.Equal(t, verdict.ScoreAll, p.AggregationMode)

	_, err = repo.GetProblem(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, fake.Queries(), 1, "second read is served from cache")
}

func TestGetProblemNotFound(t *testing.T) {
	repo := newRepo(t, problemDB())
	_, err := repo.GetProblem(context.Background(), 99)
	assert.Equal(t, appErr.ProblemNotFound, appErr.GetCode(err))
}

func TestListTestCasesGroupsAndOrders(t *testing.T) {
	repo := newRepo(t, problemDB())

	tests, err := repo.ListTestCases(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, tests, 2)

	assert.Equal(t, int64(1), tests[0].ID)
	assert.True(t, tests[0].Sample)
	assert.Equal(t, DefaultTestWeight, tests[0].Weight)

	assert.Equal(t, 20, tests[1].Weight)
	require.Len(t, tests[1].Inputs, 2)
	assert.Equal(t, "nums", tests[1].Inputs[0].Name)
	assert.Equal(t, "target", tests[1].Inputs[1].Name)
}

func TestListTestCasesEmpty(t *testing.T) {
	repo := newRepo(t, problemDB())
	_, err := repo.ListTestCases(context.Background(), 8)
	assert.Equal(t, appErr.TestCaseNotFound, appErr.GetCode(err))
}

func TestApplyDefaultsByDifficulty(t *testing.T) {
	for diff, want := range map[string]int64{"easy": 1, "MEDIUM": 2, "Hard": 3, "": 1} {
		p := Problem{Difficulty: diff}
		p.ApplyDefaults()
		assert.Equal(t, want, p.TimeLimitSec, diff)
	}
}
